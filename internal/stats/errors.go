package stats

import (
	"errors"
	"strings"
)

// Error kinds for the run error list
const (
	KindMissingIdentifier = "missing_identifier"
	KindStoreQuery        = "store_query"
	KindDecode            = "decode"
	KindUnknown           = "unknown"
)

// ErrorEntry is one line of the run error list.
type ErrorEntry struct {
	Identifier string `json:"identifier"`
	Kind       string `json:"kind"`
	Op         string `json:"op,omitempty"`
	Message    string `json:"message"`
}

// ReviewFlag marks a record whose brand or model disagreed between its
// specification table and its title. The record is still ingested.
type ReviewFlag struct {
	Identifier string `json:"identifier"`
	Field      string `json:"field"`
	Expected   string `json:"expected"`
	Actual     string `json:"actual"`
	Score      int    `json:"score"`
}

// NewErrorEntry builds the error list line for a failed record.
func NewErrorEntry(identifier string, err error) ErrorEntry {
	entry := ErrorEntry{
		Identifier: identifier,
		Kind:       ClassifyError(err),
		Op:         errorOp(err),
	}
	if err != nil {
		entry.Message = err.Error()
	}
	return entry
}

// ClassifyError categorizes an error into one of the Kind constants. Errors
// that carry their own kind win; otherwise the message is inspected.
func ClassifyError(err error) string {
	if err == nil {
		return KindUnknown
	}

	var kinded interface{ ErrorKind() string }
	if errors.As(err, &kinded) {
		return kinded.ErrorKind()
	}

	msg := strings.ToLower(err.Error())
	switch {
	case containsAny(msg, "model name", "no identifier", "missing brand"):
		return KindMissingIdentifier
	case containsAny(msg, "connection", "timeout", "dial", "sql", "database", "deadline"):
		return KindStoreQuery
	case containsAny(msg, "json", "decode", "unmarshal", "parse", "invalid character"):
		return KindDecode
	default:
		return KindUnknown
	}
}

// errorOp extracts the failing operation from errors that expose one.
func errorOp(err error) string {
	var withOp interface{ Operation() string }
	if errors.As(err, &withOp) {
		return withOp.Operation()
	}
	return ""
}

func containsAny(s string, substrs ...string) bool {
	for _, sub := range substrs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
