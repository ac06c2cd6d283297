package memory

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"dementia-mcp/internal/storage"
)

// ContextLock is the in-memory form of a locked context row.
type ContextLock struct {
	ID          string                 `json:"id"`
	SessionID   string                 `json:"session_id"`
	Label       string                 `json:"label"`
	Version     Version                `json:"-"`
	Content     string                 `json:"content,omitempty"`
	ContentHash string                 `json:"content_hash"`
	Preview     string                 `json:"preview"`
	KeyConcepts []string               `json:"key_concepts"`
	Priority    string                 `json:"priority"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	LockedAt    time.Time              `json:"locked_at"`
	LastAccess  *time.Time             `json:"last_accessed,omitempty"`
	AccessCount int64                  `json:"access_count"`
	Embedding   []float32              `json:"-"`
}

// lockColumns is the select list matching scanLock.
const lockColumns = `id, session_id, label, version_major, version_minor, content,
	content_hash, preview, key_concepts, priority, metadata, locked_at,
	last_accessed, access_count, embedding`

// scanLock decodes an adapter row into a ContextLock. The adapter returns
// Postgres arrays in their textual form; the parsers below undo that.
func scanLock(row storage.Row) *ContextLock {
	lock := &ContextLock{}
	lock.ID, _ = row["id"].(string)
	lock.SessionID, _ = row["session_id"].(string)
	lock.Label, _ = row["label"].(string)
	lock.Version = Version{Major: asInt(row["version_major"]), Minor: asInt(row["version_minor"])}
	lock.Content, _ = row["content"].(string)
	lock.ContentHash, _ = row["content_hash"].(string)
	lock.Preview, _ = row["preview"].(string)
	lock.Priority, _ = row["priority"].(string)
	lock.AccessCount = asInt64(row["access_count"])

	if raw, ok := row["key_concepts"].(string); ok {
		lock.KeyConcepts = parseTextArray(raw)
	}
	if raw, ok := row["embedding"].(string); ok {
		lock.Embedding = parseFloatArray(raw)
	}
	if raw, ok := row["metadata"].(string); ok && raw != "" {
		_ = json.Unmarshal([]byte(raw), &lock.Metadata)
	}
	if ts, ok := row["locked_at"].(time.Time); ok {
		lock.LockedAt = ts
	}
	if ts, ok := row["last_accessed"].(time.Time); ok {
		lock.LastAccess = &ts
	}
	return lock
}

func asInt(v interface{}) int {
	return int(asInt64(v))
}

func asInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	case string:
		parsed, _ := strconv.ParseInt(n, 10, 64)
		return parsed
	default:
		return 0
	}
}

// parseTextArray decodes the textual form of a Postgres TEXT[] value,
// handling double-quoted elements with backslash escapes.
func parseTextArray(raw string) []string {
	raw = strings.TrimSpace(raw)
	if len(raw) < 2 || raw[0] != '{' || raw[len(raw)-1] != '}' {
		return nil
	}
	body := raw[1 : len(raw)-1]
	if body == "" {
		return []string{}
	}

	var out []string
	var elem strings.Builder
	inQuotes := false
	escaped := false
	flush := func() {
		s := elem.String()
		elem.Reset()
		if s == "NULL" {
			s = ""
		}
		out = append(out, s)
	}
	for _, r := range body {
		switch {
		case escaped:
			elem.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			flush()
		default:
			elem.WriteRune(r)
		}
	}
	flush()
	return out
}

// parseFloatArray decodes the textual form of a Postgres FLOAT8[] value.
func parseFloatArray(raw string) []float32 {
	raw = strings.TrimSpace(raw)
	if len(raw) < 2 || raw[0] != '{' || raw[len(raw)-1] != '}' {
		return nil
	}
	body := raw[1 : len(raw)-1]
	if body == "" {
		return nil
	}

	parts := strings.Split(body, ",")
	out := make([]float32, 0, len(parts))
	for _, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil
		}
		out = append(out, float32(f))
	}
	return out
}

// floats64 widens an embedding for pq.Array, which has no []float32 path.
func floats64(vec []float32) []float64 {
	if vec == nil {
		return nil
	}
	out := make([]float64, len(vec))
	for i, f := range vec {
		out[i] = float64(f)
	}
	return out
}
