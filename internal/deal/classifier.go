package deal

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed categories.yaml
var defaultCategoryTable []byte

// Category pairs a category name with the keywords that select it
type Category struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// Classifier maps titles to categories using an ordered keyword table.
// It is immutable after construction and safe for concurrent use.
type Classifier struct {
	fallback   string
	categories []Category
}

type categoryTable struct {
	Default    string     `yaml:"default"`
	Categories []Category `yaml:"categories"`
}

var defaultClassifier = mustParseClassifier(defaultCategoryTable)

// DefaultClassifier returns the classifier built from the embedded category table
func DefaultClassifier() *Classifier {
	return defaultClassifier
}

// ParseClassifier builds a classifier from a YAML category table
func ParseClassifier(data []byte) (*Classifier, error) {
	var table categoryTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse category table: %w", err)
	}
	if table.Default == "" {
		return nil, fmt.Errorf("category table has no default category")
	}

	c := &Classifier{fallback: table.Default}
	for _, cat := range table.Categories {
		if cat.Name == "" {
			return nil, fmt.Errorf("category table has an unnamed category")
		}
		normalized := Category{Name: cat.Name}
		for _, kw := range cat.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				normalized.Keywords = append(normalized.Keywords, kw)
			}
		}
		c.categories = append(c.categories, normalized)
	}
	return c, nil
}

func mustParseClassifier(data []byte) *Classifier {
	c, err := ParseClassifier(data)
	if err != nil {
		panic(err)
	}
	return c
}

// Classify returns the first matching category for title, or the default one
func (c *Classifier) Classify(title string) string {
	lower := strings.ToLower(title)
	for _, cat := range c.categories {
		for _, kw := range cat.Keywords {
			if strings.Contains(lower, kw) {
				return cat.Name
			}
		}
	}
	return c.fallback
}

// Names returns every category name the classifier can produce, default last
func (c *Classifier) Names() []string {
	names := make([]string, 0, len(c.categories)+1)
	for _, cat := range c.categories {
		names = append(names, cat.Name)
	}
	return append(names, c.fallback)
}
