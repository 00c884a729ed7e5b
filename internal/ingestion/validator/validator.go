// Package validator checks ingestion requests and reports every failing
// field at once.
package validator

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/textplot/internal/ingestion"
)

const (
	maxNameLength  = 256
	maxTextLength  = 1 << 20
	maxMetaKeys    = 64
	maxMetaValue   = 1024
	maxIdempotency = 255
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// ValidateIngestRequest checks name, text, metadata and idempotency key.
func ValidateIngestRequest(req *ingestion.IngestRequest) error {
	errs := make(map[string]string)

	name := strings.TrimSpace(req.Name)
	switch {
	case name == "":
		errs["name"] = "name is required"
	case name != req.Name:
		errs["name"] = "name must not have leading or trailing spaces"
	case len(name) > maxNameLength:
		errs["name"] = fmt.Sprintf("name must be at most %d characters", maxNameLength)
	case strings.IndexFunc(name, unicode.IsControl) >= 0:
		errs["name"] = "name must not contain control characters"
	}

	text := strings.TrimSpace(req.Text)
	if text == "" {
		errs["text"] = "text is required and must not be blank"
	} else if len(req.Text) > maxTextLength {
		errs["text"] = fmt.Sprintf("text must be at most %d bytes", maxTextLength)
	}

	if len(req.Meta) > maxMetaKeys {
		errs["meta"] = fmt.Sprintf("at most %d metadata variables are allowed", maxMetaKeys)
	} else {
		for k, v := range req.Meta {
			if strings.TrimSpace(k) == "" {
				errs["meta"] = "metadata keys must not be blank"
				break
			}
			if len(v) > maxMetaValue {
				errs["meta"] = fmt.Sprintf("metadata value %q must be at most %d characters", k, maxMetaValue)
				break
			}
		}
	}

	if len(req.IdempotencyKey) > maxIdempotency {
		errs["idempotency_key"] = fmt.Sprintf("idempotency key must be at most %d characters", maxIdempotency)
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}
