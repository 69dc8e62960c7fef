// Package format turns the sandboxed agent's NDJSON stdout stream into
// human-readable lines for Ralph's terminal output.
package format

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"
)

type streamMessage struct {
	Type    string `json:"type"`
	Message *struct {
		Content []contentBlock `json:"content"`
	} `json:"message"`
	Result string `json:"result"`
}

type contentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// Line formats one raw NDJSON stream line, returning ("", false) for
// anything that produces no visible output: non-JSON lines, unknown
// `type` values, malformed JSON, and empty content blocks.
func Line(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "{") {
		return "", false
	}

	var msg streamMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return "", false
	}

	switch msg.Type {
	case "assistant":
		return formatAssistant(msg)
	case "result":
		if msg.Result == "" {
			return "", false
		}
		return msg.Result, true
	default:
		return "", false
	}
}

func formatAssistant(msg streamMessage) (string, bool) {
	if msg.Message == nil {
		return "", false
	}
	var parts []string
	for _, block := range msg.Message.Content {
		switch block.Type {
		case "text":
			if block.Text != "" {
				parts = append(parts, block.Text)
			}
		case "tool_use":
			parts = append(parts, fmt.Sprintf("-> %s(%s)", block.Name, toolDetail(block)))
		}
	}
	if len(parts) == 0 {
		return "", false
	}
	return strings.Join(parts, "\n"), true
}

func toolDetail(block contentBlock) string {
	var input map[string]any
	if err := json.Unmarshal(block.Input, &input); err != nil {
		return ""
	}

	switch block.Name {
	case "Read":
		path, _ := input["file_path"].(string)
		offset, hasOffset := input["offset"]
		limit, hasLimit := input["limit"]
		switch {
		case hasOffset && hasLimit:
			return fmt.Sprintf("%s %v:%v", path, offset, limit)
		case hasOffset:
			return fmt.Sprintf("%s %v", path, offset)
		case hasLimit:
			return fmt.Sprintf("%s :%v", path, limit)
		default:
			return path
		}
	case "Edit", "Write":
		path, _ := input["file_path"].(string)
		return path
	case "Bash":
		cmd, _ := input["command"].(string)
		return truncateUTF8(cmd, 100)
	case "Glob", "Grep":
		pattern, _ := input["pattern"].(string)
		return pattern
	case "TodoWrite":
		if todos, ok := input["todos"].([]any); ok {
			return fmt.Sprintf("%d items", len(todos))
		}
		return "0 items"
	default:
		return fallbackDetail(block.Input)
	}
}

// fallbackDetail prints the first string-valued field of an unknown
// tool's input, truncated to 80 characters -- every known tool above is
// handled explicitly; this only fires for tools this formatter has
// never seen. The raw input is walked token by token so "first" follows
// the field order of the JSON object.
func fallbackDetail(raw json.RawMessage) string {
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return ""
	}
	for dec.More() {
		if _, err := dec.Token(); err != nil {
			return ""
		}
		var v any
		if err := dec.Decode(&v); err != nil {
			return ""
		}
		if s, ok := v.(string); ok {
			return truncateUTF8(s, 80)
		}
	}
	return ""
}

// truncateUTF8 cuts s to at most n runes, appending "..." if anything
// was cut, without splitting a multi-byte rune.
func truncateUTF8(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
