package core

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCategorize(t *testing.T) {
	tbl := DefaultCategoryTable()
	cases := map[string]string{
		"Groceries":          "groceries",
		"lunch with Ana":     "dining",
		"uber eats order":    "dining",
		"uber to airport":    "transport",
		"gas":                "transport",
		"gasoline":           "",
		"netflix":            "entertainment",
		"something else":     "",
		"":                   "",
		"Whole Foods market": "groceries",
	}
	for in, want := range cases {
		if got := tbl.Categorize(in); got != want {
			t.Fatalf("Categorize(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExpandAliases(t *testing.T) {
	tbl := DefaultCategoryTable()
	got, ok := tbl.Expand("Food")
	if !ok || strings.Join(got, ",") != "dining,groceries" {
		t.Fatalf("Expand(food) = %v, %v", got, ok)
	}
	if got, ok := tbl.Expand("dining"); !ok || len(got) != 1 {
		t.Fatalf("category names expand to themselves, got %v", got)
	}
	if _, ok := tbl.Expand("coffee"); ok {
		t.Fatalf("keywords are not expandable")
	}
}

func TestMatches(t *testing.T) {
	tbl := DefaultCategoryTable()
	lunch := Expense{Description: "Lunch", Amount: Money{Cents: 1200}}
	bread := Expense{Description: "bread", Category: "groceries"}
	gas := Expense{Description: "gas"}

	if !tbl.Matches(lunch, "food") || !tbl.Matches(bread, "food") {
		t.Fatalf("food must cover dining and groceries")
	}
	if tbl.Matches(gas, "food") {
		t.Fatalf("gas is not food")
	}
	if !tbl.Matches(lunch, "lun") {
		t.Fatalf("substring match on description")
	}
}

func TestLoadCategoryTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "categories.yaml")
	body := "categories:\n  pets: [vet, kibble]\n  dining: [lunch]\naliases:\n  animals: [pets]\n  ghosts: [nothing]\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	tbl, err := LoadCategoryTable(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if tbl.Categorize("vet visit") != "pets" {
		t.Fatalf("custom keyword not applied")
	}
	if _, ok := tbl.Expand("ghosts"); ok {
		t.Fatalf("alias to unknown categories must be dropped")
	}
	if !strings.Contains(tbl.Describe(), `"animals" means pets`) {
		t.Fatalf("Describe missing alias:\n%s", tbl.Describe())
	}

	if _, err := LoadCategoryTable(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
	if tbl, err := LoadCategoryTable(""); err != nil || len(tbl.Categories()) == 0 {
		t.Fatalf("empty path must return default table")
	}
}
