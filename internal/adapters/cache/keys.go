package cache

import (
	"strings"

	"github.com/rotisserie/eris"
)

// uniqueKeys trims keys and drops blanks and duplicates, keeping order.
func uniqueKeys(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}

func checkDestination(op, destination string) error {
	if strings.TrimSpace(destination) == "" {
		return eris.Errorf("%s: destination must not be empty", op)
	}
	return nil
}
