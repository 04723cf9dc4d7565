package content

import (
	"bytes"
	"encoding/json"
)

// MarshalRecords renders records as a pretty-printed JSON array. HTML
// escaping is disabled so Korean text and prompt markup are written
// literally and round-trip byte-for-byte.
func MarshalRecords(records []Record) ([]byte, error) {
	if records == nil {
		records = []Record{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalRecords parses a JSON array of objects. Elements that are not
// objects are dropped; the second return reports how many were.
func UnmarshalRecords(data []byte) ([]Record, int, error) {
	var raw []any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, err
	}

	records := make([]Record, 0, len(raw))
	dropped := 0
	for _, e := range raw {
		m, ok := e.(map[string]any)
		if !ok {
			dropped++
			continue
		}
		records = append(records, Record(m))
	}
	return records, dropped, nil
}
