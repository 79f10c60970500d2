// Package categorize assigns categories to transaction descriptions with an
// ordered keyword table. The assignment is deterministic and total: the same
// description always yields the same category, and every description yields
// one, with domain.CategoryOther as the fallback.
package categorize

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/ovoloshko/statement-ingest/internal/domain"
)

// Categorizer resolves a description to a category by scanning its keyword
// table in category declaration order and returning the first category with
// a substring match.
type Categorizer struct {
	rules []rule
}

// New returns a Categorizer with the built-in keyword table.
func New() *Categorizer {
	return &Categorizer{rules: defaultRules}
}

// NewFromFile returns a Categorizer whose keyword lists are overridden from a
// YAML file mapping category names to keyword lists:
//
//	Food & Dining:
//	  - starbucks
//	  - bistro
//
// Categories absent from the file keep their built-in keywords. The category
// set itself is closed: names outside it are rejected, as is the fallback
// category, which takes no keywords. Priority stays the declaration order of
// the set regardless of file order.
func NewFromFile(path string) (*Categorizer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading keyword rules %s: %w", path, err)
	}

	raw := make(map[string][]string)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing keyword rules %s: %w", path, err)
	}

	overrides := make(map[domain.Category][]string, len(raw))
	for name, keywords := range raw {
		cat, ok := domain.ParseCategory(name)
		if !ok {
			return nil, fmt.Errorf("keyword rules %s: unknown category %q", path, name)
		}
		if cat == domain.CategoryOther {
			return nil, fmt.Errorf("keyword rules %s: %q is the fallback and takes no keywords", path, name)
		}
		lowered := make([]string, 0, len(keywords))
		for _, kw := range keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			lowered = append(lowered, kw)
		}
		overrides[cat] = lowered
	}

	rules := make([]rule, 0, len(defaultRules))
	for _, r := range defaultRules {
		if kws, ok := overrides[r.category]; ok {
			rules = append(rules, rule{category: r.category, keywords: kws})
			continue
		}
		rules = append(rules, r)
	}
	return &Categorizer{rules: rules}, nil
}

// Categorize returns the category for a description. The first category in
// declaration order with any keyword contained in the lowercased description
// wins; no match falls back to domain.CategoryOther.
func (c *Categorizer) Categorize(description string) domain.Category {
	lower := strings.ToLower(description)
	for _, r := range c.rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.category
			}
		}
	}
	return domain.CategoryOther
}
