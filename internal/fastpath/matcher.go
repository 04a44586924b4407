package fastpath

import (
	"fmt"
	"strings"

	"github.com/eleven-am/label-scan/internal/verdict"
)

type entry struct {
	needles []string
}

// Matcher scans free text for known forbidden ingredients. Matching is
// case-insensitive substring containment with no word boundaries, so
// "ham" also fires inside "graham".
type Matcher struct {
	entries []entry
}

func NewMatcher(list TermList) *Matcher {
	m := &Matcher{entries: make([]entry, 0, len(list.Terms))}
	for _, t := range list.Terms {
		needles := make([]string, 0, len(t.Aliases)+1)
		needles = append(needles, normalize(t.Name))
		for _, a := range t.Aliases {
			needles = append(needles, normalize(a))
		}
		m.entries = append(m.entries, entry{needles: needles})
	}
	return m
}

// NewDefaultMatcher uses the embedded list, or the file at path when set.
func NewDefaultMatcher(path string) (*Matcher, error) {
	var (
		list TermList
		err  error
	)
	if path != "" {
		list, err = LoadTerms(path)
	} else {
		list, err = DefaultTerms()
	}
	if err != nil {
		return nil, fmt.Errorf("load fast-path terms: %w", err)
	}
	return NewMatcher(list), nil
}

// Match returns one HARAM ingredient per matched term, in list order, named
// after the first needle found in the text. Nil means nothing matched.
func (m *Matcher) Match(text string) []verdict.Ingredient {
	haystack := normalize(text)
	if haystack == "" {
		return nil
	}

	var matches []verdict.Ingredient
	for _, e := range m.entries {
		for _, n := range e.needles {
			if strings.Contains(haystack, n) {
				matches = append(matches, verdict.Ingredient{Name: n, Status: verdict.IngredientHaram})
				break
			}
		}
	}
	return matches
}

func (m *Matcher) Len() int {
	return len(m.entries)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
