package mcpserver

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// requireString returns a non-blank string argument.
func requireString(req mcp.CallToolRequest, key string) (string, error) {
	v := strings.TrimSpace(req.GetString(key, ""))
	if v == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return v, nil
}

// requireIndex returns a required integer argument. JSON numbers arrive
// as float64.
func requireIndex(req mcp.CallToolRequest, key string) (int, error) {
	v, ok := req.GetArguments()[key]
	if !ok {
		return 0, fmt.Errorf("%s is required", key)
	}
	switch n := v.(type) {
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%s must be an integer", key)
		}
		return int(n), nil
	case int:
		return n, nil
	default:
		return 0, fmt.Errorf("%s must be a number", key)
	}
}

// optionalString returns a string argument and whether it was supplied
// at all; an explicit null counts as not supplied.
func optionalString(req mcp.CallToolRequest, key string) (string, bool) {
	v, ok := req.GetArguments()[key].(string)
	return v, ok
}

// stringList reads an array-of-strings argument. A JSON-encoded array
// passed as a string is accepted too.
func stringList(req mcp.CallToolRequest, key string) []string {
	switch v := req.GetArguments()[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		var out []string
		if err := json.Unmarshal([]byte(v), &out); err == nil {
			return out
		}
		return []string{v}
	default:
		return nil
	}
}

// intArg reads an optional integer argument.
func intArg(req mcp.CallToolRequest, key string, def int) int {
	switch n := req.GetArguments()[key].(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return def
	}
}

// boolArg reads an optional boolean argument; absent means false.
func boolArg(req mcp.CallToolRequest, key string) bool {
	b, _ := req.GetArguments()[key].(bool)
	return b
}
