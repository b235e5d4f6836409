package detector

import (
	"fmt"
	"math"
)

// Gauge is one report entry in the format the external metrics collector
// consumes. Values are plain scalars; NaN marks undefined rates.
type Gauge struct {
	Type  string  `json:"type"`
	Key   string  `json:"key"`
	Value float64 `json:"value"`
}

func gauge(key string, value float64) Gauge {
	return Gauge{Type: "GAUGE", Key: key, Value: value}
}

// MarshalJSON encodes NaN values as null; encoding/json rejects NaN floats.
func (g Gauge) MarshalJSON() ([]byte, error) {
	if math.IsNaN(g.Value) {
		return []byte(fmt.Sprintf(`{"type":%q,"key":%q,"value":null}`, g.Type, g.Key)), nil
	}
	return []byte(fmt.Sprintf(`{"type":%q,"key":%q,"value":%g}`, g.Type, g.Key, g.Value)), nil
}
