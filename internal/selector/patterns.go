// internal/selector/patterns.go
package selector

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultKey is the page-type slot used when no page-specific query exists.
const DefaultKey = "default"

//go:embed patterns.yaml
var builtinPatterns []byte

// Library is the versioned table of default queries, target -> page type -> query.
type Library struct {
	Version  string                       `yaml:"version" json:"version"`
	Patterns map[Target]map[string]string `yaml:"patterns" json:"patterns"`
}

// DefaultLibrary returns the built-in pattern library.
func DefaultLibrary() *Library {
	lib, err := ParseLibrary(builtinPatterns)
	if err != nil {
		// the embedded file is part of the build
		panic(fmt.Sprintf("builtin pattern library is invalid: %v", err))
	}
	return lib
}

// ParseLibrary decodes and validates a YAML pattern library.
func ParseLibrary(data []byte) (*Library, error) {
	var lib Library
	if err := yaml.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("failed to parse pattern library: %w", err)
	}
	if err := lib.Validate(); err != nil {
		return nil, err
	}
	return &lib, nil
}

// LoadLibrary reads a pattern file and layers it over the built-in library.
// Entries in the file win; targets and page types it omits keep their defaults.
func LoadLibrary(path string) (*Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pattern library %s: %w", path, err)
	}
	var override Library
	if err := yaml.Unmarshal(data, &override); err != nil {
		return nil, fmt.Errorf("failed to parse pattern library %s: %w", path, err)
	}
	lib := DefaultLibrary().Merge(&override)
	if err := lib.Validate(); err != nil {
		return nil, err
	}
	return lib, nil
}

// Validate requires a known target with a non-empty default for every entry,
// and every known target to be present.
func (l *Library) Validate() error {
	if l == nil || len(l.Patterns) == 0 {
		return fmt.Errorf("pattern library is empty")
	}
	for target, byPage := range l.Patterns {
		if !target.IsValid() {
			return fmt.Errorf("pattern library: unknown target %q", target)
		}
		if byPage[DefaultKey] == "" {
			return fmt.Errorf("pattern library: target %q has no default query", target)
		}
		for page := range byPage {
			if page == DefaultKey {
				continue
			}
			if !PageType(page).IsValid() {
				return fmt.Errorf("pattern library: target %q has unknown page type %q", target, page)
			}
		}
	}
	for _, target := range AllTargets() {
		if _, ok := l.Patterns[target]; !ok {
			return fmt.Errorf("pattern library: missing target %q", target)
		}
	}
	return nil
}

// Lookup returns the query for a page type, falling back to the target default.
func (l *Library) Lookup(pageType PageType, target Target) (string, bool) {
	if l == nil {
		return "", false
	}
	byPage, ok := l.Patterns[target]
	if !ok {
		return "", false
	}
	if q, ok := byPage[string(pageType)]; ok && q != "" {
		return q, true
	}
	q, ok := byPage[DefaultKey]
	return q, ok && q != ""
}

// Merge returns a copy of l with the entries of other layered on top.
func (l *Library) Merge(other *Library) *Library {
	out := &Library{Version: l.Version, Patterns: make(map[Target]map[string]string, len(l.Patterns))}
	for target, byPage := range l.Patterns {
		out.Patterns[target] = make(map[string]string, len(byPage))
		for page, q := range byPage {
			out.Patterns[target][page] = q
		}
	}
	if other == nil {
		return out
	}
	if other.Version != "" {
		out.Version = other.Version
	}
	for target, byPage := range other.Patterns {
		if out.Patterns[target] == nil {
			out.Patterns[target] = make(map[string]string, len(byPage))
		}
		for page, q := range byPage {
			if q != "" {
				out.Patterns[target][page] = q
			}
		}
	}
	return out
}

// Entry is one row of the flattened library.
type Entry struct {
	Target   Target `json:"target"`
	PageType string `json:"pageType"`
	Query    string `json:"query"`
}

// Entries flattens the library into a sorted list.
func (l *Library) Entries() []Entry {
	var out []Entry
	for target, byPage := range l.Patterns {
		for page, q := range byPage {
			out = append(out, Entry{Target: target, PageType: page, Query: q})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Target != out[j].Target {
			return out[i].Target < out[j].Target
		}
		return out[i].PageType < out[j].PageType
	})
	return out
}
