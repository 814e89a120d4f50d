package model

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// PrefixLen is the number of characters that select an agent.
const PrefixLen = 2

var (
	ErrNoRoutes        = errors.New("routing table has no routes")
	ErrInvalidPrefix   = errors.New("invalid routing prefix")
	ErrDuplicatePrefix = errors.New("duplicate routing prefix")
	ErrEmptyAgentID    = errors.New("empty agent id")
)

type Route struct {
	Prefix  string
	AgentID string
}

// RoutingTable maps message prefixes to agent ids. It is immutable once built.
type RoutingTable struct {
	routes   []Route
	byPrefix map[string]string
}

// NewRoutingTable validates routes and keeps their order for user-facing listings.
func NewRoutingTable(routes ...Route) (*RoutingTable, error) {
	if len(routes) == 0 {
		return nil, ErrNoRoutes
	}

	t := &RoutingTable{
		routes:   make([]Route, 0, len(routes)),
		byPrefix: make(map[string]string, len(routes)),
	}
	for _, r := range routes {
		if utf8.RuneCountInString(r.Prefix) != PrefixLen || strings.TrimSpace(r.Prefix) != r.Prefix {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPrefix, r.Prefix)
		}
		if strings.TrimSpace(r.AgentID) == "" {
			return nil, fmt.Errorf("%w for prefix %q", ErrEmptyAgentID, r.Prefix)
		}
		if _, dup := t.byPrefix[r.Prefix]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicatePrefix, r.Prefix)
		}
		t.byPrefix[r.Prefix] = r.AgentID
		t.routes = append(t.routes, r)
	}

	return t, nil
}

func (t *RoutingTable) Lookup(prefix string) (string, bool) {
	id, ok := t.byPrefix[prefix]
	return id, ok
}

// Prefixes returns the prefixes in configuration order.
func (t *RoutingTable) Prefixes() []string {
	out := make([]string, 0, len(t.routes))
	for _, r := range t.routes {
		out = append(out, r.Prefix)
	}
	return out
}
