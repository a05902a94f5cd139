package repos

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

// MarshalVector encodes an embedding for the nullable jsonb column.
func MarshalVector(vec []float32) (datatypes.JSON, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(vec)
	if err != nil {
		return nil, fmt.Errorf("marshal embedding: %w", err)
	}
	return datatypes.JSON(raw), nil
}

// ParseVector decodes a stored embedding; nil/empty columns yield a nil
// vector, not an error.
func ParseVector(raw datatypes.JSON) ([]float32, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var vec []float32
	if err := json.Unmarshal(raw, &vec); err != nil {
		return nil, fmt.Errorf("parse embedding: %w", err)
	}
	return vec, nil
}
