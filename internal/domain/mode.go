// Package domain holds the closed enumerations and sentinel errors of the
// flight kernel: operating modes, task identifiers, device names, and the
// stable error codes devices report. Domain types are pure — no
// infrastructure dependency.
package domain

// Mode is one named operating regime of the spacecraft.
type Mode uint8

const (
	ModeStartup Mode = iota
	ModeNominal
	ModeDownlink
	ModeLowPower
	ModeSafe

	modeCount
)

// Modes lists every operating mode, in declaration order.
func Modes() []Mode {
	all := make([]Mode, 0, modeCount)
	for m := Mode(0); m < modeCount; m++ {
		all = append(all, m)
	}
	return all
}

// String returns the uplink/downlink name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeStartup:
		return "STARTUP"
	case ModeNominal:
		return "NOMINAL"
	case ModeDownlink:
		return "DOWNLINK"
	case ModeLowPower:
		return "LOW_POWER"
	case ModeSafe:
		return "SAFE"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether m is one of the declared modes.
func (m Mode) Valid() bool { return m < modeCount }

// ParseMode resolves an uplinked mode name. The bool is false for names
// outside the closed enumeration.
func ParseMode(name string) (Mode, bool) {
	for m := Mode(0); m < modeCount; m++ {
		if m.String() == name {
			return m, true
		}
	}
	return 0, false
}

// Adjacency is the fixed graph of legal non-forced transitions. SAFE is
// reachable from everywhere through the forced path only; the normal graph
// deliberately keeps safety exits narrow.
var Adjacency = map[Mode][]Mode{
	ModeStartup:  {ModeNominal},
	ModeNominal:  {ModeDownlink, ModeLowPower, ModeSafe},
	ModeDownlink: {ModeNominal},
	ModeLowPower: {ModeNominal, ModeSafe},
	ModeSafe:     {ModeNominal},
}

// Adjacent reports whether target is reachable from m by a normal
// transition.
func (m Mode) Adjacent(target Mode) bool {
	for _, t := range Adjacency[m] {
		if t == target {
			return true
		}
	}
	return false
}
