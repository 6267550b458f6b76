package cliutil

import (
	"fmt"
	"strings"
)

// ParseHeaders turns "Name: Value" flag values into a header map.
//
// Names keep their spelling. A repeated name keeps its last value.
func ParseHeaders(values []string) (map[string]string, error) {
	headers := make(map[string]string, len(values))
	for _, value := range values {
		name, v, ok := strings.Cut(value, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid header %q, expected \"Name: Value\"", value)
		}
		headers[name] = strings.TrimSpace(v)
	}
	return headers, nil
}
