// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// ProtectedPolicy identifies demo or otherwise protected accounts whose
// password cannot be reset and which cannot be deleted.
type ProtectedPolicy struct {
	patterns []glob.Glob
}

// NewProtectedPolicy compiles email glob patterns such as
// "demo@example.com" or "*@demo.example.com". Patterns are matched against
// normalized emails.
func NewProtectedPolicy(patterns []string) (*ProtectedPolicy, error) {
	p := &ProtectedPolicy{patterns: make([]glob.Glob, 0, len(patterns))}
	for _, raw := range patterns {
		pattern := NormalizeEmail(raw)
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, oops.Code("PROTECTED_PATTERN_INVALID").With("pattern", raw).Wrap(err)
		}
		p.patterns = append(p.patterns, g)
	}
	return p, nil
}

// IsProtected reports whether email matches any protected pattern.
// A nil policy protects nothing.
func (p *ProtectedPolicy) IsProtected(email string) bool {
	if p == nil {
		return false
	}
	email = NormalizeEmail(email)
	for _, g := range p.patterns {
		if g.Match(email) {
			return true
		}
	}
	return false
}
