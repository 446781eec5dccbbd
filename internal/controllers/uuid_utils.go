package controllers

import (
	"strings"

	"github.com/google/uuid"
)

// canonicalIDs parses a slice of string UUIDs and returns them in canonical form.
func canonicalIDs(ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		val, err := uuid.Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, val.String())
	}
	return out, nil
}
