// File: internal/api/errors.go
package api

import (
	"encoding/json"
	"fmt"

	"servicebook_client/internal/common"
)

// The backend reports per-field violations as arrays keyed by the Django
// field name, e.g. {"phone_number": ["already exists"]}. These keys are
// checked before any generic fallback so a structured rejection never
// degrades into an opaque message. Order matters: it decides which field is
// reported when several are rejected at once.
var fieldErrorKeys = []struct {
	key   string
	field string
}{
	{"email", "email"},
	{"phone_number", "phone"},
	{"first_name", "first_name"},
	{"last_name", "last_name"},
}

// parseErrorBody decodes a raw error payload. A body that is not a JSON
// object yields an empty map, so callers fall through to their generic
// mapping.
func parseErrorBody(body []byte) map[string]interface{} {
	payload := make(map[string]interface{})
	if len(body) == 0 {
		return payload
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return map[string]interface{}{}
	}
	return payload
}

// fieldErrorFrom returns a FieldValidationError for the first known
// per-field key present in the payload, or nil when none matches.
func fieldErrorFrom(payload map[string]interface{}) *common.AuthError {
	for _, fk := range fieldErrorKeys {
		raw, ok := payload[fk.key]
		if !ok {
			continue
		}
		if msg := firstString(raw); msg != "" {
			return common.NewFieldError(fk.field, msg)
		}
	}
	return nil
}

// firstString extracts a message from either a bare string or the Django
// convention of a one-element string array.
func firstString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []interface{}:
		if len(t) > 0 {
			if s, ok := t[0].(string); ok {
				return s
			}
		}
	}
	return ""
}

// detailFrom returns the payload's "detail" message, if any.
func detailFrom(payload map[string]interface{}) string {
	return firstString(payload["detail"])
}

// nonFieldFrom returns the first entry of "non_field_errors", if any.
func nonFieldFrom(payload map[string]interface{}) string {
	return firstString(payload["non_field_errors"])
}

// messageFrom returns the payload's "message", if any.
func messageFrom(payload map[string]interface{}) string {
	return firstString(payload["message"])
}

// genericStatusMessage is the fallback when a rejection carries no usable body.
func genericStatusMessage(status int) string {
	return fmt.Sprintf("request failed with status %d", status)
}
