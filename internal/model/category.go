package model

import "strings"

// CatchAllSlug identifies the category every unmatched label falls back to.
const CatchAllSlug = "other"

// Category is a top-level entry in the fixed taxonomy.
type Category struct {
	Name string
	Slug string
	ID   int
}

// SubCategory belongs to exactly one Category.
type SubCategory struct {
	Name       string
	Slug       string
	ID         int
	CategoryID int
}

// Taxonomy is the closed category set. It is read-only once built.
type Taxonomy struct {
	byID       map[int]Category
	subByID    map[int]SubCategory
	Categories []Category
	Subs       []SubCategory
}

// NewTaxonomy indexes categories and subcategories.
func NewTaxonomy(categories []Category, subs []SubCategory) *Taxonomy {
	t := &Taxonomy{
		Categories: categories,
		Subs:       subs,
		byID:       make(map[int]Category, len(categories)),
		subByID:    make(map[int]SubCategory, len(subs)),
	}
	for _, c := range categories {
		t.byID[c.ID] = c
	}
	for _, s := range subs {
		t.subByID[s.ID] = s
	}
	return t
}

// Category returns the category with the given id.
func (t *Taxonomy) Category(id int) (Category, bool) {
	c, ok := t.byID[id]
	return c, ok
}

// SubCategory returns the subcategory with the given id.
func (t *Taxonomy) SubCategory(id int) (SubCategory, bool) {
	s, ok := t.subByID[id]
	return s, ok
}

// CatchAll returns the "Other" category if the taxonomy has one.
func (t *Taxonomy) CatchAll() (Category, bool) {
	for _, c := range t.Categories {
		if c.Slug == CatchAllSlug || strings.EqualFold(c.Name, "Other") {
			return c, true
		}
	}
	return Category{}, false
}

// SubCategoriesOf returns the children of a category in declaration order.
func (t *Taxonomy) SubCategoriesOf(categoryID int) []SubCategory {
	var out []SubCategory
	for _, s := range t.Subs {
		if s.CategoryID == categoryID {
			out = append(out, s)
		}
	}
	return out
}

// Slugify lowercases a label and joins its words with dashes.
func Slugify(label string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(label) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			dash = false
		case b.Len() > 0 && !dash:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
