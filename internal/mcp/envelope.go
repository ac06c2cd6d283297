package mcp

import (
	"encoding/json"
	"fmt"
	"time"

	engerr "dementia-mcp/internal/errors"
)

// successEnvelope wraps a tool result in the {success: true, ...} form.
// Object results are merged into the envelope; everything else lands under
// "result". Every value is guaranteed JSON-serializable on the way out.
func successEnvelope(result interface{}) map[string]interface{} {
	envelope := map[string]interface{}{
		"success":   true,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	switch v := sanitizeValue(result).(type) {
	case nil:
	case map[string]interface{}:
		for key, value := range v {
			if key == "success" || key == "timestamp" {
				continue
			}
			envelope[key] = value
		}
	default:
		envelope["result"] = v
	}
	return envelope
}

// errorEnvelope renders an operation failure. Tool failures are payload, not
// protocol errors: the transport call itself succeeded.
func errorEnvelope(err error) map[string]interface{} {
	envelope := map[string]interface{}{
		"success":    false,
		"error":      err.Error(),
		"error_type": string(engerr.KindOf(err)),
		"timestamp":  time.Now().UTC().Format(time.RFC3339),
	}
	if ee := engerr.As(err); ee != nil && len(ee.Context) > 0 {
		envelope["context"] = sanitizeValue(ee.Context)
	}
	return envelope
}

// sanitizeValue round-trips a value through encoding/json, replacing
// anything non-serializable with a stringified form carrying its type tag.
func sanitizeValue(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v (unserializable %T)", v, v)
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Sprintf("%v (unserializable %T)", v, v)
	}
	return out
}
