package interpret

import "regexp"

// patternGroup binds a command type to its verb patterns. Groups are scanned
// in order and the first matching pattern wins, so overlapping verbs resolve
// by position: "metti in pausa" is captured by Play's `metti` before Pause is
// reached, and a bare "stop" belongs to Pause.
type patternGroup struct {
	kind     CommandType
	patterns []*regexp.Regexp
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

var commandPatterns = []patternGroup{
	{Play, compileAll(
		`riproduci\s+(.+)`,
		`suona\s+(.+)`,
		`metti\s+(.+)`,
		`ascolta\s+(.+)`,
		`play\s+(.+)`,
		`avvia\s+(.+)`,
		`inizia\s+(.+)`,
	)},
	{Pause, compileAll(
		`pausa`,
		`pause`,
		`ferma`,
		`stop`,
		`metti\s+in\s+pausa`,
	)},
	{Stop, compileAll(
		`stop`,
		`ferma\s+tutto`,
		`basta`,
		`smetti`,
	)},
	{Next, compileAll(
		`prossimo`,
		`avanti`,
		`next`,
		`salta`,
		`prossimo\s+brano`,
		`canzone\s+successiva`,
	)},
	{Previous, compileAll(
		`precedente`,
		`indietro`,
		`previous`,
		`brano\s+precedente`,
		`canzone\s+precedente`,
	)},
	{Volume, compileAll(
		`volume\s+(\d+)`,
		`volume\s+al\s+(\d+)`,
		`alza\s+il\s+volume`,
		`abbassa\s+il\s+volume`,
		`più\s+forte`,
		`più\s+piano`,
	)},
	{Shuffle, compileAll(
		`shuffle`,
		`casuale`,
		`mescola`,
		`modalità\s+casuale`,
	)},
	{Repeat, compileAll(
		`ripeti`,
		`repeat`,
		`loop`,
		`modalità\s+ripetizione`,
	)},
	{Info, compileAll(
		`che\s+cosa\s+sta\s+suonando`,
		`cosa\s+stai\s+riproducendo`,
		`che\s+canzone\s+è`,
		`info`,
		`informazioni`,
	)},
}

// identify returns the command type and any captured target for text.
func identify(text string) (CommandType, string) {
	for _, group := range commandPatterns {
		for _, re := range group.patterns {
			m := re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			if len(m) > 1 {
				return group.kind, m[1]
			}
			return group.kind, ""
		}
	}
	return Unknown, ""
}
