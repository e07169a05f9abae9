package core

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// CategoryTable is the one keyword-to-category mapping. Filtering,
// categorisation of new records and fallback prompts all consult it.
type CategoryTable struct {
	categories []string
	keywords   map[string]string
	// matching order: longer keywords first so "uber eats" beats "uber"
	ordered []string
	aliases map[string][]string
}

// categoryFile is the YAML layout accepted by LoadCategoryTable.
type categoryFile struct {
	Categories map[string][]string `yaml:"categories"`
	Aliases    map[string][]string `yaml:"aliases"`
}

var defaultCategories = map[string][]string{
	"groceries":     {"grocery", "supermarket", "market", "walmart", "costco", "aldi", "whole foods", "trader joe"},
	"dining":        {"restaurant", "lunch", "dinner", "breakfast", "brunch", "coffee", "cafe", "pizza", "burger", "takeout", "starbucks", "mcdonalds", "uber eats", "doordash"},
	"transport":     {"gas", "fuel", "petrol", "uber", "lyft", "taxi", "bus", "train", "metro", "parking", "toll"},
	"housing":       {"rent", "mortgage", "repair", "furniture", "ikea"},
	"utilities":     {"electric", "electricity", "water", "internet", "phone", "heating"},
	"entertainment": {"netflix", "spotify", "movie", "movies", "cinema", "concert", "game", "games", "hulu"},
	"health":        {"doctor", "pharmacy", "medicine", "dentist", "gym", "hospital"},
	"shopping":      {"amazon", "clothes", "shoes", "ebay", "target", "electronics"},
	"travel":        {"flight", "hotel", "airbnb", "vacation"},
}

var defaultAliases = map[string][]string{
	"food":  {"groceries", "dining"},
	"bills": {"utilities", "housing"},
	"fun":   {"entertainment"},
	"car":   {"transport"},
}

// DefaultCategoryTable returns the built-in table.
func DefaultCategoryTable() *CategoryTable {
	return NewCategoryTable(defaultCategories, defaultAliases)
}

// NewCategoryTable builds a table. Category names always match themselves.
func NewCategoryTable(categories map[string][]string, aliases map[string][]string) *CategoryTable {
	t := &CategoryTable{
		keywords: make(map[string]string),
		aliases:  make(map[string][]string),
	}
	for name, kws := range categories {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		t.categories = append(t.categories, name)
		t.keywords[name] = name
		for _, kw := range kws {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			if _, taken := t.keywords[kw]; !taken {
				t.keywords[kw] = name
			}
		}
	}
	sort.Strings(t.categories)
	for alias, targets := range aliases {
		alias = strings.ToLower(strings.TrimSpace(alias))
		var known []string
		for _, c := range targets {
			c = strings.ToLower(strings.TrimSpace(c))
			if t.isCategory(c) {
				known = append(known, c)
			}
		}
		if alias != "" && len(known) > 0 {
			sort.Strings(known)
			t.aliases[alias] = known
		}
	}
	for kw := range t.keywords {
		t.ordered = append(t.ordered, kw)
	}
	sort.Slice(t.ordered, func(i, j int) bool {
		a, b := t.ordered[i], t.ordered[j]
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a < b
	})
	return t
}

// LoadCategoryTable reads a YAML override. An empty path returns the default.
func LoadCategoryTable(path string) (*CategoryTable, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultCategoryTable(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read categories file: %w", err)
	}
	var f categoryFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse categories file: %w", err)
	}
	if len(f.Categories) == 0 {
		return nil, fmt.Errorf("categories file %s defines no categories", path)
	}
	return NewCategoryTable(f.Categories, f.Aliases), nil
}

func (t *CategoryTable) isCategory(name string) bool {
	i := sort.SearchStrings(t.categories, name)
	return i < len(t.categories) && t.categories[i] == name
}

// Categories returns the category names in sorted order.
func (t *CategoryTable) Categories() []string {
	return append([]string(nil), t.categories...)
}

// Categorize maps a free-text description to a category, or "" when no
// keyword matches on word boundaries.
func (t *CategoryTable) Categorize(description string) string {
	padded := " " + strings.Join(words(description), " ") + " "
	if padded == "  " {
		return ""
	}
	for _, kw := range t.ordered {
		if strings.Contains(padded, " "+kw+" ") {
			return t.keywords[kw]
		}
	}
	return ""
}

// Expand resolves a filter term to the categories it stands for: an alias
// yields its members, a category name yields itself.
func (t *CategoryTable) Expand(term string) ([]string, bool) {
	term = strings.ToLower(strings.TrimSpace(term))
	if cats, ok := t.aliases[term]; ok {
		return append([]string(nil), cats...), true
	}
	if t.isCategory(term) {
		return []string{term}, true
	}
	return nil, false
}

// Known reports whether term is a category, alias or keyword.
func (t *CategoryTable) Known(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if _, ok := t.aliases[term]; ok {
		return true
	}
	_, ok := t.keywords[term]
	return ok
}

// CategoryOf returns the stored category or derives one from the description.
func (t *CategoryTable) CategoryOf(e Expense) string {
	if e.Category != "" {
		return e.Category
	}
	return t.Categorize(e.Description)
}

// Matches is the single filter predicate: case-insensitive substring on the
// description, or category membership through alias expansion.
func (t *CategoryTable) Matches(e Expense, term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	if strings.Contains(strings.ToLower(e.Description), term) {
		return true
	}
	cats, ok := t.Expand(term)
	if !ok {
		return false
	}
	have := t.CategoryOf(e)
	for _, c := range cats {
		if c == have {
			return true
		}
	}
	return false
}

// Describe renders the table for prompts, one category per line, sorted.
func (t *CategoryTable) Describe() string {
	byCat := make(map[string][]string)
	for kw, c := range t.keywords {
		if kw != c {
			byCat[c] = append(byCat[c], kw)
		}
	}
	var b strings.Builder
	for _, c := range t.categories {
		kws := byCat[c]
		sort.Strings(kws)
		fmt.Fprintf(&b, "- %s: %s\n", c, strings.Join(kws, ", "))
	}
	aliases := make([]string, 0, len(t.aliases))
	for a := range t.aliases {
		aliases = append(aliases, a)
	}
	sort.Strings(aliases)
	for _, a := range aliases {
		fmt.Fprintf(&b, "- %q means %s\n", a, strings.Join(t.aliases[a], " or "))
	}
	return b.String()
}

func words(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
