package utils

import (
	"encoding/json"
	"fmt"
)

// MustMarshalJSON marshals v and panics on failure. Reserved for task and
// notification payloads whose types are known to be marshalable.
func MustMarshalJSON(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(fmt.Sprintf("failed to marshal JSON: %v", err))
	}
	return data
}

// UnmarshalJSON decodes data into v.
func UnmarshalJSON(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}
