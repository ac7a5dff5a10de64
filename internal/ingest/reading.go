package ingest

import (
	"fmt"
	"net/url"
	"strings"
)

type Pair struct {
	Key   string
	Value string
}

// Reading is one upload from a station: raw fields in the order received.
type Reading []Pair

func (r Reading) Get(key string) (string, bool) {
	for _, p := range r {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// ParseQuery decodes a raw query string. A key sent twice keeps its first
// value and position.
func ParseQuery(raw string) (Reading, error) {
	var r Reading
	seen := make(map[string]bool)
	for part := range strings.SplitSeq(raw, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, fmt.Errorf("query key %q: %w", k, err)
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return nil, fmt.Errorf("query value for %q: %w", key, err)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		r = append(r, Pair{Key: key, Value: value})
	}
	return r, nil
}
