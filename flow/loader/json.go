package loader

import (
	"encoding/json"
	"fmt"
)

func decodeJSON(data []byte) (*Program, error) {
	var p Program
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidProgram, err)
	}
	return &p, nil
}
