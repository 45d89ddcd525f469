package adapters

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"resumetex/internal/logging/types"
)

const textTimeLayout = "2006-01-02T15:04:05.000Z07:00"

// render formats an entry as json (the default) or text.
func render(format string, entry *types.LogEntry, colorized bool) (string, error) {
	if strings.EqualFold(format, "text") {
		return renderText(entry, colorized), nil
	}
	return renderJSON(entry)
}

func renderJSON(entry *types.LogEntry) (string, error) {
	payload := make(map[string]interface{}, len(entry.Fields)+3)
	for k, v := range entry.Fields {
		payload[k] = jsonSafe(v)
	}
	payload["level"] = entry.Level.String()
	payload["message"] = entry.Message
	payload["time"] = entry.Timestamp.Format(time.RFC3339)

	data, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// jsonSafe turns errors into their message; json.Marshal renders most error
// values as {}.
func jsonSafe(v interface{}) interface{} {
	if err, ok := v.(error); ok && err != nil {
		return err.Error()
	}
	return v
}

func renderText(entry *types.LogEntry, colorized bool) string {
	level := strings.ToUpper(entry.Level.String())
	if colorized {
		level = colorizeLevel(level)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s [%s] %s", entry.Timestamp.Format(textTimeLayout), level, entry.Message)

	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%v", k, entry.Fields[k])
	}
	return b.String()
}

func colorizeLevel(level string) string {
	const (
		red    = "\033[31m"
		yellow = "\033[33m"
		blue   = "\033[34m"
		gray   = "\033[90m"
		reset  = "\033[0m"
	)

	switch level {
	case "DEBUG":
		return gray + level + reset
	case "INFO":
		return blue + level + reset
	case "WARN":
		return yellow + level + reset
	case "ERROR", "FATAL":
		return red + level + reset
	default:
		return level
	}
}
