// Realtime eligibility policy of screens in Agora.

package room

import (
	"strings"
)

// Screens that never hold realtime rooms.
var DefaultDenyPaths = []string{
	"/profile",
	"/settings",
	"/login",
	"/register",
	"/forgot-password",
	"/reset-password",
	"/verify-email",
	"/auth",
	"/banned",
}

// Policy decides whether a screen path may join realtime rooms.
type Policy struct {
	prefixes []string
}

// Returns a Policy denying every path equal to or under one of prefixes.
// Paths ending in /banned are always denied.
func NewPolicy(prefixes []string) Policy {
	cleaned := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		cleaned = append(cleaned, strings.TrimSuffix(p, "/"))
	}
	return Policy{prefixes: cleaned}
}

// Permits reports whether the screen at path is realtime-eligible.
func (p Policy) Permits(path string) bool {
	path = normalize(path)
	if path == "/banned" || strings.HasSuffix(path, "/banned") {
		return false
	}
	for _, prefix := range p.prefixes {
		if prefix == "" {
			continue
		}
		if path == prefix || strings.HasPrefix(path, prefix+"/") {
			return false
		}
	}
	return true
}

// normalize strips the query, fragment and trailing slash of a screen path.
func normalize(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return path
}
