package jsonutil

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrNoObject means no {...} span could be recovered from the payload.
var ErrNoObject = errors.New("jsonutil: no JSON object found")

// ExtractObject returns the outermost {...} span in raw. Model providers
// occasionally wrap the requested JSON in prose or markdown fences; this
// recovers the object without attempting a full repair.
func ExtractObject(raw []byte) ([]byte, error) {
	start := bytes.IndexByte(raw, '{')
	if start < 0 {
		return nil, ErrNoObject
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], nil
			}
		}
	}
	// Unbalanced braces: fall back to the last closing brace.
	end := bytes.LastIndexByte(raw, '}')
	if end <= start {
		return nil, ErrNoObject
	}
	return raw[start : end+1], nil
}

// UnmarshalFlex unmarshals raw into v, and on failure retries against the
// outermost object span extracted from raw. It reports the original parse
// error when recovery also fails.
func UnmarshalFlex(raw []byte, v any) error {
	err := json.Unmarshal(raw, v)
	if err == nil {
		return nil
	}
	span, exErr := ExtractObject(raw)
	if exErr != nil {
		return err
	}
	if err2 := json.Unmarshal(span, v); err2 == nil {
		return nil
	}
	return err
}

// MarshalNoEscape encodes v into JSON without escaping <, >, & sequences.
func MarshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
