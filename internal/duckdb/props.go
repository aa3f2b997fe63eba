package duckdb

import (
	"bytes"
	"encoding/json"
)

// mergeProps applies src onto dst; nil values remove the property.
func mergeProps(dst, src map[string]any) {
	for k, v := range src {
		if v == nil {
			delete(dst, k)
			continue
		}
		dst[k] = v
	}
}

func encodeProps(props map[string]any) (string, error) {
	raw, err := json.Marshal(props)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// decodeProps keeps numbers as json.Number so integers survive a merge
// round trip unchanged.
func decodeProps(raw string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	props := make(map[string]any)
	if err := dec.Decode(&props); err != nil {
		return nil, err
	}
	return props, nil
}
