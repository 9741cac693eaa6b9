package duckdb

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// CanonicalJSON encodes value so that equal configs give equal bytes
// regardless of struct layout or map order: it is marshalled once, decoded
// into plain maps and slices, and marshalled again with sorted keys.
func CanonicalJSON(value any) ([]byte, error) {
	raw, ok := value.(json.RawMessage)
	if !ok {
		var err error
		if raw, err = json.Marshal(value); err != nil {
			return nil, fmt.Errorf("canonical json: %w", err)
		}
	}
	var plain any
	if err := json.Unmarshal(raw, &plain); err != nil {
		return nil, fmt.Errorf("canonical json: %w", err)
	}
	return json.Marshal(plain)
}

// FingerprintJSON is the hex SHA-256 of CanonicalJSON(value).
func FingerprintJSON(value any) (string, error) {
	data, err := CanonicalJSON(value)
	if err != nil {
		return "", err
	}
	return fingerprintBytes(data), nil
}

func fingerprintBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
