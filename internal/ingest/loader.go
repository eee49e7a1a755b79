package ingest

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/gjson"

	"phone-catalog-ingest/internal/model"
	"phone-catalog-ingest/internal/stats"
)

// recordArrayKeys are the wrapper keys the record array may sit under.
var recordArrayKeys = []string{"products", "data", "items"}

// Record is one entry of a normalized file. Err is set when the entry could
// not be decoded; Product is then zero.
type Record struct {
	File    string
	Index   int
	Product model.NormalizedProduct
	Err     error
}

// Identifier names the record in error lists.
func (r Record) Identifier() string {
	if r.Err == nil {
		if id := r.Product.Identifier(); id != "" {
			return id
		}
	}
	return fmt.Sprintf("%s#%d", r.File, r.Index)
}

// DecodeError reports a record that is not a valid product object.
type DecodeError struct {
	File  string
	Index int
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode record %d of %s: %v", e.Index, e.File, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (e *DecodeError) ErrorKind() string { return stats.KindDecode }

// LoadFile reads a normalized file. The records are the root array or the
// first array found under products, data or items. Entries that fail to
// decode are returned with Err set so the caller can count them.
func LoadFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseRecords(path, data)
}

// ParseRecords extracts the records of one file already in memory.
func ParseRecords(name string, data []byte) ([]Record, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("failed to parse %s: invalid JSON", name)
	}

	array, ok := recordArray(gjson.ParseBytes(data))
	if !ok {
		return nil, fmt.Errorf("failed to parse %s: no record array at root or under %v", name, recordArrayKeys)
	}

	entries := array.Array()
	records := make([]Record, 0, len(entries))
	for i, entry := range entries {
		rec := Record{File: name, Index: i}
		if !entry.IsObject() {
			rec.Err = &DecodeError{File: name, Index: i, Err: fmt.Errorf("expected object, got %s", entry.Type)}
		} else if err := json.Unmarshal([]byte(entry.Raw), &rec.Product); err != nil {
			rec.Err = &DecodeError{File: name, Index: i, Err: err}
		}
		records = append(records, rec)
	}
	return records, nil
}

func recordArray(root gjson.Result) (gjson.Result, bool) {
	if root.IsArray() {
		return root, true
	}
	for _, key := range recordArrayKeys {
		if r := root.Get(key); r.IsArray() {
			return r, true
		}
	}
	return gjson.Result{}, false
}
