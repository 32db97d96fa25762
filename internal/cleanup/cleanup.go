// Package cleanup reduces noise and volume in session logs before they are
// sent to a model. Three levels build on each other: minimal strips blank and
// debug lines, medium also drops static-asset and heartbeat traffic, and
// aggressive additionally compresses runs of repeated entries.
package cleanup

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

type Level string

const (
	LevelMinimal    Level = "minimal"
	LevelMedium     Level = "medium"
	LevelAggressive Level = "aggressive"
)

// ParseLevel validates a level name from flags or settings.
func ParseLevel(s string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelMinimal:
		return LevelMinimal, nil
	case LevelMedium:
		return LevelMedium, nil
	case LevelAggressive:
		return LevelAggressive, nil
	}
	return "", fmt.Errorf("unknown cleanup level %q (want minimal, medium or aggressive)", s)
}

var (
	timestampRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:?\d{2})?`)
	debugLineRe = regexp.MustCompile(`(?i)\b(debug|verbose|trace|info)\b`)
	staticRe    = regexp.MustCompile(`(?i)\.(css|js|png|jpe?g|gif|ico|svg|woff2?|ttf|map)(\?|\s|$)`)
	heartbeatRe = regexp.MustCompile(`(?i)(/health\b|/healthz\b|/ping\b|/heartbeat\b|keep-?alive)`)
	spaceRe     = regexp.MustCompile(`\s+`)
)

// Session milestones worth keeping when filtering structured entries.
var keyEvents = []string{
	"login", "logout", "register", "purchase", "add_to_cart",
	"checkout", "payment", "menu", "add_menu_item", "delete",
	"edit", "update", "create", "submit", "success", "error",
	"api_call", "request", "response", "redirect", "navigate",
}

var timestampFields = fieldSet("timestamp", "time", "@timestamp", "created_at", "updated_at")
var debugFields = fieldSet("debug", "verbose", "trace", "info", "level")
var noiseFields = fieldSet("ip_address", "user_agent", "processing_time", "content_length", "details", "schema_version", "id")
var essentialFields = fieldSet(
	"event_name", "endpoint", "method", "route", "status_code",
	"response_size", "content_type", "log_type", "attempt_id",
	"session_id", "browser_id", "url",
)

func fieldSet(names ...string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set
}

// Clean reduces one log document. JSON object or array logs are cleaned
// entry by entry; everything else is treated as plain text lines.
func Clean(content string, level Level) string {
	if cleaned, ok := cleanJSON(content, level); ok {
		return cleaned
	}
	return cleanText(content, level)
}

func cleanText(content string, level Level) string {
	var kept []string
	for _, line := range strings.Split(content, "\n") {
		if !keepLine(line, level) {
			continue
		}
		line = timestampRe.ReplaceAllString(line, "")
		line = strings.TrimSpace(spaceRe.ReplaceAllString(line, " "))
		if line != "" {
			kept = append(kept, line)
		}
	}

	if level == LevelAggressive {
		kept = compressLines(kept)
	}
	return strings.Join(kept, "\n")
}

func keepLine(line string, level Level) bool {
	if strings.TrimSpace(line) == "" {
		return false
	}
	if debugLineRe.MatchString(line) {
		return false
	}
	if level == LevelMinimal {
		return true
	}
	if staticRe.MatchString(line) || heartbeatRe.MatchString(line) {
		return false
	}
	return true
}

// compressLines collapses runs of three or more identical lines into one
// line with a repetition marker.
func compressLines(lines []string) []string {
	var out []string
	for i := 0; i < len(lines); {
		j := i
		for j < len(lines) && lines[j] == lines[i] {
			j++
		}
		run := j - i
		if run >= 3 {
			out = append(out, fmt.Sprintf("%s (repeated %d times)", lines[i], run))
		} else {
			out = append(out, lines[i:j]...)
		}
		i = j
	}
	return out
}

func cleanJSON(content string, level Level) (string, bool) {
	var parsed any
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return "", false
	}

	switch v := parsed.(type) {
	case []any:
		var entries []map[string]any
		for _, raw := range v {
			entry, ok := raw.(map[string]any)
			if !ok {
				return "", false
			}
			if cleaned := cleanEntry(entry, level); cleaned != nil {
				entries = append(entries, cleaned)
			}
		}
		if level == LevelAggressive {
			entries = compressEntries(entries)
		}
		return marshalEntries(entries), true
	case map[string]any:
		cleaned := cleanEntry(v, level)
		if cleaned == nil {
			return "", true
		}
		out, err := json.MarshalIndent(cleaned, "", "  ")
		if err != nil {
			return "", false
		}
		return string(out), true
	}
	return "", false
}

func marshalEntries(entries []map[string]any) string {
	if entries == nil {
		entries = []map[string]any{}
	}
	out, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return ""
	}
	return string(out)
}

// cleanEntry filters one structured entry according to the level. It returns
// nil when the whole entry should be dropped.
func cleanEntry(entry map[string]any, level Level) map[string]any {
	cleaned := make(map[string]any, len(entry))

	for key, value := range entry {
		lower := strings.ToLower(key)
		if timestampFields[lower] {
			continue
		}
		switch level {
		case LevelMinimal:
			cleaned[key] = value
		case LevelMedium:
			if noiseFields[lower] || debugFields[lower] {
				continue
			}
			cleaned[key] = value
		case LevelAggressive:
			if !essentialFields[lower] {
				continue
			}
			cleaned[key] = value
		}
	}

	if len(cleaned) == 0 {
		return nil
	}
	if level != LevelMinimal && !hasKeyEvent(cleaned) {
		return nil
	}
	return cleaned
}

// hasKeyEvent keeps entries that describe session milestones: a key event in
// the endpoint, route or event name, or an HTTP status worth seeing (2xx
// success, 4xx+ failure).
func hasKeyEvent(entry map[string]any) bool {
	for _, field := range []string{"endpoint", "route", "event_name"} {
		s, _ := entry[field].(string)
		s = strings.ToLower(s)
		for _, event := range keyEvents {
			if strings.Contains(s, event) {
				return true
			}
		}
	}

	if code, ok := entry["status_code"].(float64); ok {
		if (code >= 200 && code < 300) || code >= 400 {
			return true
		}
	}

	name, _ := entry["event_name"].(string)
	switch strings.ToLower(name) {
	case "http_request", "http_response":
		return true
	}
	return false
}

func groupKey(entry map[string]any) string {
	endpoint, _ := entry["endpoint"].(string)
	method, _ := entry["method"].(string)
	event, _ := entry["event_name"].(string)
	return endpoint + "|" + method + "|" + event
}

// compressEntries collapses runs of three or more entries sharing the same
// endpoint|method|event key down to the first and last entry, marking the
// first with a repetition note.
func compressEntries(entries []map[string]any) []map[string]any {
	var out []map[string]any
	for i := 0; i < len(entries); {
		j := i
		for j < len(entries) && groupKey(entries[j]) == groupKey(entries[i]) {
			j++
		}
		run := j - i
		if run >= 3 {
			first := make(map[string]any, len(entries[i])+1)
			for k, v := range entries[i] {
				first[k] = v
			}
			first["_note"] = fmt.Sprintf("(repeated %d times)", run)
			out = append(out, first, entries[j-1])
		} else {
			out = append(out, entries[i:j]...)
		}
		i = j
	}
	return out
}
