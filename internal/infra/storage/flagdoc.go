package storage

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const emptyDocument = "{}"

// getPath reads key from doc, returning nil when absent.
func getPath(doc []byte, key string) []byte {
	res := gjson.GetBytes(doc, key)
	if !res.Exists() {
		return nil
	}
	return []byte(res.Raw)
}

// setPath writes value at key in doc and returns the new document.
func setPath(doc []byte, key string, value any) ([]byte, error) {
	if len(doc) == 0 {
		doc = []byte(emptyDocument)
	}
	var (
		out []byte
		err error
	)
	switch v := value.(type) {
	case json.RawMessage:
		out, err = sjson.SetRawBytes(doc, key, v)
	case []byte:
		out, err = sjson.SetRawBytes(doc, key, v)
	default:
		out, err = sjson.SetBytes(doc, key, v)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to set flag %q: %w", key, err)
	}
	return out, nil
}

// unsetPath removes key from doc and returns the new document.
func unsetPath(doc []byte, key string) ([]byte, error) {
	if len(doc) == 0 || !gjson.GetBytes(doc, key).Exists() {
		return doc, nil
	}
	out, err := sjson.DeleteBytes(doc, key)
	if err != nil {
		return nil, fmt.Errorf("failed to unset flag %q: %w", key, err)
	}
	return out, nil
}
