package model

import (
	"reflect"
	"time"
)

// AuditStatus is the outcome class of one processing stage.
type AuditStatus string

const (
	AuditInfo    AuditStatus = "info"
	AuditSuccess AuditStatus = "success"
	AuditWarning AuditStatus = "warning"
	AuditSkipped AuditStatus = "skipped"
	AuditFailure AuditStatus = "failure"
)

// AuditEntry is one line of a message's processing trail.
type AuditEntry struct {
	Timestamp time.Time      `json:"timestamp"`
	Status    AuditStatus    `json:"status"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

// AuditTrail is append-only; Append is its only mutator.
type AuditTrail []AuditEntry

// Append returns the trail with e added at the end. Nil-valued detail keys
// are dropped.
func (t AuditTrail) Append(e AuditEntry) AuditTrail {
	e.Details = CompactDetails(e.Details)
	return append(t, e)
}

// Last returns the most recent entry, or false when the trail is empty.
func (t AuditTrail) Last() (AuditEntry, bool) {
	if len(t) == 0 {
		return AuditEntry{}, false
	}
	return t[len(t)-1], true
}

// CompactDetails removes nil values, including typed nil slices, maps and
// pointers. It returns nil when nothing is left.
func CompactDetails(details map[string]any) map[string]any {
	if len(details) == 0 {
		return nil
	}
	out := make(map[string]any, len(details))
	for k, v := range details {
		if isNil(v) {
			continue
		}
		out[k] = v
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Pointer, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
