package filtering

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/gobwas/glob"

	"github.com/stacklok/scm-mirror/internal/store"
)

// Rules configures a Filter.
type Rules struct {
	Include          []string
	Exclude          []string
	IncludeLanguages []string
	ExcludeLanguages []string
	SkipArchived     bool
}

// IsEmpty reports whether the rules let every repository through.
func (r Rules) IsEmpty() bool {
	return len(r.Include) == 0 && len(r.Exclude) == 0 &&
		len(r.IncludeLanguages) == 0 && len(r.ExcludeLanguages) == 0 && !r.SkipArchived
}

type pattern struct {
	raw string
	g   glob.Glob
}

// Filter selects repositories by name, language and archived state.
type Filter struct {
	include          []pattern
	exclude          []pattern
	includeLanguages []string
	excludeLanguages []string
	skipArchived     bool
}

// New compiles rules into a Filter.
func New(rules Rules) (*Filter, error) {
	include, err := compilePatterns(rules.Include)
	if err != nil {
		return nil, fmt.Errorf("invalid include pattern: %w", err)
	}
	exclude, err := compilePatterns(rules.Exclude)
	if err != nil {
		return nil, fmt.Errorf("invalid exclude pattern: %w", err)
	}
	return &Filter{
		include:          include,
		exclude:          exclude,
		includeLanguages: lowerAll(rules.IncludeLanguages),
		excludeLanguages: lowerAll(rules.ExcludeLanguages),
		skipArchived:     rules.SkipArchived,
	}, nil
}

func compilePatterns(raw []string) ([]pattern, error) {
	out := make([]pattern, 0, len(raw))
	for _, p := range raw {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			return nil, fmt.Errorf("empty pattern")
		}
		// filepath.Match catches malformed character classes early
		if _, err := filepath.Match(p, "test"); err != nil {
			return nil, fmt.Errorf("%q: %w", p, err)
		}
		g, err := glob.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", p, err)
		}
		out = append(out, pattern{raw: p, g: g})
	}
	return out, nil
}

func lowerAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.ToLower(strings.TrimSpace(v)); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// ShouldInclude reports whether repo takes part in activity sync, with the
// reason for the decision. A nil Filter includes everything.
func (f *Filter) ShouldInclude(repo *store.Repository) (bool, string) {
	if f == nil {
		return true, "no repository filter"
	}
	if f.skipArchived && repo.Archived {
		return false, "repository is archived"
	}
	if ok, reason := f.matchName(repo.Name); !ok {
		return false, reason
	}
	return f.matchLanguage(repo.Language)
}

func (f *Filter) matchName(name string) (bool, string) {
	name = strings.ToLower(name)
	for _, p := range f.exclude {
		if p.g.Match(name) {
			return false, fmt.Sprintf("excluded by pattern '%s'", p.raw)
		}
	}
	if len(f.include) == 0 {
		return true, "no include patterns"
	}
	for _, p := range f.include {
		if p.g.Match(name) {
			return true, fmt.Sprintf("included by pattern '%s'", p.raw)
		}
	}
	return false, "no match found in include patterns"
}

func (f *Filter) matchLanguage(language string) (bool, string) {
	language = strings.ToLower(language)
	if language != "" && slices.Contains(f.excludeLanguages, language) {
		return false, fmt.Sprintf("excluded by language '%s'", language)
	}
	if len(f.includeLanguages) == 0 {
		return true, "no language filters"
	}
	if language != "" && slices.Contains(f.includeLanguages, language) {
		return true, fmt.Sprintf("included by language '%s'", language)
	}
	return false, fmt.Sprintf("language %q not in include list %v", language, f.includeLanguages)
}
