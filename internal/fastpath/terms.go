package fastpath

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed terms.yaml
var defaultTerms []byte

// Term is one forbidden ingredient. Aliases cover the second language and
// additive codes.
type Term struct {
	Name    string   `yaml:"name"`
	Aliases []string `yaml:"aliases"`
}

type TermList struct {
	Version string `yaml:"version"`
	Terms   []Term `yaml:"terms"`
}

func DefaultTerms() (TermList, error) {
	return ParseTerms(defaultTerms)
}

// LoadTerms reads an override list from disk.
func LoadTerms(path string) (TermList, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return TermList{}, fmt.Errorf("read terms: %w", err)
	}
	return ParseTerms(raw)
}

func ParseTerms(raw []byte) (TermList, error) {
	var list TermList
	if err := yaml.Unmarshal(raw, &list); err != nil {
		return TermList{}, fmt.Errorf("parse terms: %w", err)
	}
	if err := validate(list); err != nil {
		return TermList{}, err
	}
	return list, nil
}

func validate(list TermList) error {
	if len(list.Terms) == 0 {
		return errors.New("terms: list is empty")
	}

	seen := make(map[string]struct{}, len(list.Terms))
	for _, t := range list.Terms {
		name := strings.ToLower(strings.TrimSpace(t.Name))
		if name == "" {
			return errors.New("terms: name is required")
		}
		if _, ok := seen[name]; ok {
			return fmt.Errorf("terms: duplicate name: %s", name)
		}
		seen[name] = struct{}{}

		for _, a := range t.Aliases {
			if strings.TrimSpace(a) == "" {
				return fmt.Errorf("terms: empty alias for %s", name)
			}
		}
	}
	return nil
}
