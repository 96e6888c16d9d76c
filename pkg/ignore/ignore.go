// Package ignore interprets per-directory ignore files into an exclusion
// predicate usable during a directory walk.
package ignore

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// vcsDir is always pruned, ignore file or not
const vcsDir = ".git"

// Decision is the outcome of matching a path against a rule set
type Decision int

const (
	// Include means the path participates in the fingerprint
	Include Decision = iota
	// Exclude means the path is skipped
	Exclude
	// Prune means the path and everything beneath it is skipped without
	// being visited
	Prune
)

type ruleKind int

const (
	// pattern ended in a path separator: prune the subtree
	dirRule ruleKind = iota
	// pattern started with a dot: base-name suffix match at any depth
	dotRule
	// anything else: exact base-name match at any depth
	nameRule
)

type rule struct {
	kind ruleKind
	name string
}

// RuleSet is an ordered, immutable set of parsed ignore rules
type RuleSet struct {
	rules []rule
}

// ReadRules reads the ignore file inside dir. A missing file yields an
// empty rule set, not an error.
func ReadRules(dir, filename string) (*RuleSet, error) {
	data, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return &RuleSet{}, nil
		}
		return nil, fmt.Errorf("failed to read ignore file in %s: %w", dir, err)
	}
	return Parse(string(data)), nil
}

// Parse classifies every non-blank, non-comment line of an ignore file.
// Lines are trimmed before classification; comments start with '#'.
func Parse(content string) *RuleSet {
	rs := &RuleSet{}
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		switch {
		case strings.HasSuffix(line, "/"):
			name := strings.TrimRight(line, "/")
			if name == "" {
				continue
			}
			rs.rules = append(rs.rules, rule{kind: dirRule, name: name})
		case strings.HasPrefix(line, "."):
			rs.rules = append(rs.rules, rule{kind: dotRule, name: line})
		default:
			rs.rules = append(rs.rules, rule{kind: nameRule, name: line})
		}
	}
	return rs
}

// Len returns the number of parsed rules
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// Match decides whether the slash-separated path relative to the walk root
// is included, excluded, or pruned together with its subtree. Directories
// that match any rule are pruned so their descendants are never visited.
func (rs *RuleSet) Match(relPath string, isDir bool) Decision {
	base := path.Base(relPath)

	if isDir && base == vcsDir {
		return Prune
	}

	for _, r := range rs.rules {
		switch r.kind {
		case dirRule:
			if isDir && base == r.name {
				return Prune
			}
		case dotRule:
			if base == r.name || strings.HasSuffix(base, r.name) {
				if isDir {
					return Prune
				}
				return Exclude
			}
		case nameRule:
			if base == r.name {
				if isDir {
					return Prune
				}
				return Exclude
			}
		}
	}

	return Include
}
