package model

// StatusField names a tracked output. The string value is the suffix of the
// "status.<field>" remote event.
type StatusField string

const (
	StatusIrrigation StatusField = "irrigation"
	StatusLighting   StatusField = "lighting"
	StatusOxygen     StatusField = "oxygen"
	StatusLightLevel StatusField = "lightLevel"
)

// StatusFields lists every status field in emission order.
var StatusFields = []StatusField{StatusIrrigation, StatusLighting, StatusOxygen, StatusLightLevel}

// Status is the actual output state computed by the engine.
type Status struct {
	IrrigationOn bool
	OxygenOn     bool
	// LightLevel is the last ambient reading, within [0, readingScale].
	LightLevel int
	// LightIntensity is the commanded driver level, within [0, 1].
	LightIntensity float64
}

// Value returns the field's value as it is reported to the remote peer.
func (s Status) Value(f StatusField) any {
	switch f {
	case StatusIrrigation:
		return s.IrrigationOn
	case StatusLighting:
		return s.LightIntensity
	case StatusOxygen:
		return s.OxygenOn
	case StatusLightLevel:
		return s.LightLevel
	}
	return nil
}

// Changed reports whether field f differs between prev and s. A nil prev
// means nothing has been reported yet.
func (s Status) Changed(prev *Status, f StatusField) bool {
	if prev == nil {
		return true
	}
	return prev.Value(f) != s.Value(f)
}
