// Package jsonx is the JSON codec used for stored documents and API bodies.
package jsonx

import (
	"encoding/json"

	jsoniter "github.com/json-iterator/go"
)

var (
	// JSON behaves like encoding/json, including struct tags and RawMessage handling.
	JSON = jsoniter.ConfigCompatibleWithStandardLibrary

	Marshal    = JSON.Marshal
	Unmarshal  = JSON.Unmarshal
	NewDecoder = JSON.NewDecoder
	NewEncoder = JSON.NewEncoder
)

// Valid reports whether data is a syntactically valid JSON document.
func Valid(data []byte) bool {
	return JSON.Valid(data)
}

// RawMessage defers decoding of a value; jsoniter handles it like encoding/json does.
type RawMessage = json.RawMessage
