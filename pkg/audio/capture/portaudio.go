package capture

import (
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
)

// PortAudioDevice reads chunks from a physical input device through
// portaudio. Initialize/Terminate are reference counted by portaudio itself,
// so pairing NewPortAudioDevice with Close is enough.
type PortAudioDevice struct {
	cfg DeviceConfig

	mu      sync.Mutex
	stream  *portaudio.Stream
	buffer  []float32
	running bool
	done    chan struct{}
}

// NewPortAudioDevice initializes portaudio and prepares a device for the
// given configuration. The stream is not opened until Start.
func NewPortAudioDevice(cfg DeviceConfig) (*PortAudioDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("capture: initialize portaudio: %w", err)
	}
	return &PortAudioDevice{
		cfg:    cfg,
		buffer: make([]float32, cfg.ChunkSize*cfg.Channels),
	}, nil
}

// Start opens the stream and begins delivering chunks to onChunk from a
// dedicated goroutine.
func (d *PortAudioDevice) Start(onChunk func(samples []float32)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return nil
	}

	stream, err := d.openStream()
	if err != nil {
		return err
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("capture: start stream: %w", err)
	}

	d.stream = stream
	d.running = true
	d.done = make(chan struct{})

	go d.readLoop(onChunk)
	return nil
}

func (d *PortAudioDevice) openStream() (*portaudio.Stream, error) {
	if d.cfg.DeviceIndex < 0 {
		stream, err := portaudio.OpenDefaultStream(
			d.cfg.Channels, 0,
			float64(d.cfg.SampleRate), d.cfg.ChunkSize,
			d.buffer,
		)
		if err != nil {
			return nil, fmt.Errorf("capture: open default stream: %w", err)
		}
		return stream, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("capture: list devices: %w", err)
	}
	if d.cfg.DeviceIndex >= len(devices) {
		return nil, fmt.Errorf("capture: device index %d out of range (%d devices)",
			d.cfg.DeviceIndex, len(devices))
	}

	params := portaudio.LowLatencyParameters(devices[d.cfg.DeviceIndex], nil)
	params.Input.Channels = d.cfg.Channels
	params.SampleRate = float64(d.cfg.SampleRate)
	params.FramesPerBuffer = d.cfg.ChunkSize

	stream, err := portaudio.OpenStream(params, d.buffer)
	if err != nil {
		return nil, fmt.Errorf("capture: open stream for device %d: %w", d.cfg.DeviceIndex, err)
	}
	return stream, nil
}

func (d *PortAudioDevice) readLoop(onChunk func(samples []float32)) {
	defer close(d.done)

	for {
		d.mu.Lock()
		running := d.running
		stream := d.stream
		d.mu.Unlock()

		if !running || stream == nil {
			return
		}

		if err := stream.Read(); err != nil {
			// Overflow or a transient read failure; back off briefly and
			// keep going unless we were stopped.
			time.Sleep(10 * time.Millisecond)
			continue
		}

		onChunk(d.downmix())
	}
}

// downmix copies the interleaved read buffer into a fresh mono chunk.
func (d *PortAudioDevice) downmix() []float32 {
	if d.cfg.Channels <= 1 {
		out := make([]float32, len(d.buffer))
		copy(out, d.buffer)
		return out
	}
	out := make([]float32, d.cfg.ChunkSize)
	for i := range out {
		var sum float32
		for c := 0; c < d.cfg.Channels; c++ {
			sum += d.buffer[i*d.cfg.Channels+c]
		}
		out[i] = sum / float32(d.cfg.Channels)
	}
	return out
}

// Stop halts the read loop and closes the stream. Safe to call repeatedly.
func (d *PortAudioDevice) Stop() error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	stream := d.stream
	d.stream = nil
	done := d.done
	d.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-time.After(500 * time.Millisecond):
		}
	}

	if stream != nil {
		stream.Stop()
		if err := stream.Close(); err != nil {
			return fmt.Errorf("capture: close stream: %w", err)
		}
	}
	return nil
}

// Close stops the device and releases portaudio.
func (d *PortAudioDevice) Close() error {
	if err := d.Stop(); err != nil {
		return err
	}
	return portaudio.Terminate()
}

// InputDevice describes one available capture device.
type InputDevice struct {
	Index      int
	Name       string
	Channels   int
	SampleRate float64
}

// ListInputDevices enumerates devices with at least one input channel.
// It initializes and terminates portaudio around the enumeration.
func ListInputDevices() ([]InputDevice, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("capture: initialize: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("capture: list devices: %w", err)
	}
	var out []InputDevice
	for i, dev := range devices {
		if dev.MaxInputChannels < 1 {
			continue
		}
		out = append(out, InputDevice{
			Index:      i,
			Name:       dev.Name,
			Channels:   dev.MaxInputChannels,
			SampleRate: dev.DefaultSampleRate,
		})
	}
	return out, nil
}

var _ Device = (*PortAudioDevice)(nil)
