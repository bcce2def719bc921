// Package model holds the controller's domain types: subsystem modes and the
// actual output status the engine derives from them.
package model

import "fmt"

// Mode is the operating intent commanded for a subsystem.
type Mode int

const (
	ModeOff Mode = iota
	ModeOn
	ModeAuto
)

// ParseMode converts the wire value (0, 1, 2) into a Mode.
func ParseMode(v int) (Mode, error) {
	m := Mode(v)
	if !m.Valid() {
		return ModeOff, fmt.Errorf("model: invalid mode %d", v)
	}
	return m, nil
}

func (m Mode) Valid() bool { return m >= ModeOff && m <= ModeAuto }

func (m Mode) String() string {
	switch m {
	case ModeOff:
		return "OFF"
	case ModeOn:
		return "ON"
	case ModeAuto:
		return "AUTO"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Subsystem names one of the actuated outputs. The string value is the
// command name used on both transports.
type Subsystem string

const (
	Irrigation Subsystem = "irrigation"
	Lighting   Subsystem = "lighting"
	Oxygen     Subsystem = "oxygen"
)

// Subsystems lists every subsystem in emission order.
var Subsystems = []Subsystem{Irrigation, Lighting, Oxygen}

// Modes is the commanded mode of every subsystem.
type Modes struct {
	Irrigation Mode
	Lighting   Mode
	Oxygen     Mode
}

// DefaultModes puts every subsystem under automatic control.
func DefaultModes() Modes {
	return Modes{Irrigation: ModeAuto, Lighting: ModeAuto, Oxygen: ModeAuto}
}

// Get returns the mode of s.
func (m Modes) Get(s Subsystem) Mode {
	switch s {
	case Irrigation:
		return m.Irrigation
	case Lighting:
		return m.Lighting
	case Oxygen:
		return m.Oxygen
	}
	return ModeOff
}

// Set stores the mode of s. Unknown subsystems are ignored.
func (m *Modes) Set(s Subsystem, mode Mode) {
	switch s {
	case Irrigation:
		m.Irrigation = mode
	case Lighting:
		m.Lighting = mode
	case Oxygen:
		m.Oxygen = mode
	}
}
