package entity

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ComputeJobHash fingerprints a job configuration. The configuration is decoded and
// re-encoded first so that key order and whitespace do not change the hash.
func ComputeJobHash(configurationType string, configuration json.RawMessage) (string, error) {
	canonical, err := Canonicalize(configuration)
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write([]byte(configurationType))
	h.Write([]byte{0})
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Canonicalize returns configuration with sorted object keys and no insignificant whitespace.
// Empty input is treated as an empty object.
func Canonicalize(configuration json.RawMessage) (json.RawMessage, error) {
	if len(bytes.TrimSpace(configuration)) == 0 {
		return json.RawMessage(`{}`), nil
	}
	dec := json.NewDecoder(bytes.NewReader(configuration))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid job configuration: %w", err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("invalid job configuration: %w", err)
	}
	return out, nil
}
