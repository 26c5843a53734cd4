// Package capture owns the microphone end of the pipeline: it pulls raw
// chunks from an input device, preprocesses them (normalization, high-pass),
// runs energy-based voice activity detection and fans the resulting frames
// out to subscribers through a bounded queue.
package capture

// Device is a source of raw audio chunks. Start begins delivering fixed-size
// chunks to onChunk from the device's own goroutine until Stop is called.
// Implementations must tolerate Stop being called more than once.
type Device interface {
	Start(onChunk func(samples []float32)) error
	Stop() error
}

// DeviceConfig describes how to open an input device.
type DeviceConfig struct {
	// SampleRate in Hz.
	SampleRate int

	// Channels is the input channel count. The pipeline is mono; values
	// above 1 are downmixed by the device implementation.
	Channels int

	// ChunkSize is the number of samples delivered per callback.
	ChunkSize int

	// DeviceIndex selects the input device. Negative means the system
	// default.
	DeviceIndex int
}
