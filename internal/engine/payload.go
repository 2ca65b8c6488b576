package engine

import (
	"encoding/base64"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

var enc, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
var dec, _ = zstd.NewReader(nil)

// Reports maps a plugin name to its computed values.
type Reports map[string]map[string]any

// EncodeReports encodes the reports as JSON, compresses and base64-url encodes them.
func EncodeReports(r Reports) (string, error) {
	s, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	b := enc.EncodeAll(s, make([]byte, 0, len(s)))
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// DecodeReports reverses EncodeReports. An empty blob decodes to no reports.
func DecodeReports(in string) (Reports, error) {
	out := Reports{}
	if in == "" {
		return out, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(in)
	if err != nil {
		return nil, err
	}
	raw, err := dec.DecodeAll(b, nil)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
