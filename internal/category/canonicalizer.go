// Package category maps free-form category labels, merchant names, and
// merchant category codes onto the fixed taxonomy. Every mapping it returns
// names a category that exists in the taxonomy.
package category

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Veraticus/cardwise/internal/common"
	"github.com/Veraticus/cardwise/internal/merchant"
	"github.com/Veraticus/cardwise/internal/model"
)

// Confidence assigned by each step of the fallback chain.
const (
	ExactConfidence     = 1.0
	PatternConfidence   = 0.85
	SubstringConfidence = 0.7
	MCCConfidence       = 0.8
	CatchAllConfidence  = 0.3
)

// minPatternOverlap is the shortest pattern considered for substring overlap.
const minPatternOverlap = 3

var _ merchant.CategoryValidator = (*Canonicalizer)(nil)

// CategoryRequest is the input to Map. Any field may be empty.
type CategoryRequest struct {
	Label    string
	SubLabel string
	MCCCode  string
	Merchant string
}

// Mapping is a placement in the taxonomy.
type Mapping struct {
	SubCategoryID *int
	CategoryID    int
	Confidence    float64
	IsExactMatch  bool
	FallbackUsed  bool
}

type placement struct {
	subID      *int
	categoryID int
}

// Canonicalizer is read-only after construction and safe for concurrent use.
type Canonicalizer struct {
	taxonomy    *model.Taxonomy
	categories  map[string]int
	subs        map[string]model.SubCategory
	patterns    map[string]placement
	patternKeys []string
	mccs        map[string]placement
	catchAll    model.Category
}

// NewCanonicalizer indexes the taxonomy and the MCC reference table. It fails
// with a fatal error when the taxonomy has no catch-all category.
func NewCanonicalizer(taxonomy *model.Taxonomy, mccs []model.MCCCode) (*Canonicalizer, error) {
	if taxonomy == nil {
		return nil, common.NewFatalError(fmt.Errorf("%w: taxonomy is empty", common.ErrCatchAllMissing))
	}
	catchAll, ok := taxonomy.CatchAll()
	if !ok {
		return nil, common.NewFatalError(common.ErrCatchAllMissing)
	}

	c := &Canonicalizer{
		taxonomy:   taxonomy,
		catchAll:   catchAll,
		categories: make(map[string]int, len(taxonomy.Categories)*2),
		subs:       make(map[string]model.SubCategory, len(taxonomy.Subs)*2),
		patterns:   make(map[string]placement),
		mccs:       make(map[string]placement, len(mccs)),
	}

	for _, cat := range taxonomy.Categories {
		for _, key := range []string{labelKey(cat.Name), labelKey(cat.Slug)} {
			if key != "" {
				c.categories[key] = cat.ID
			}
		}
	}
	for _, sub := range taxonomy.Subs {
		if _, ok := taxonomy.Category(sub.CategoryID); !ok {
			continue
		}
		for _, key := range []string{labelKey(sub.Name), labelKey(sub.Slug)} {
			if _, taken := c.subs[key]; key != "" && !taken {
				c.subs[key] = sub
			}
		}
	}

	for _, m := range mccs {
		p, ok := c.placementFor(m)
		if !ok {
			continue
		}
		c.mccs[m.Code] = p
		for _, pattern := range m.MerchantPatterns {
			key := patternKey(pattern)
			if key == "" {
				continue
			}
			if _, taken := c.patterns[key]; !taken {
				c.patterns[key] = p
				c.patternKeys = append(c.patternKeys, key)
			}
		}
	}

	// Longest pattern first so the most specific overlap wins.
	sort.Slice(c.patternKeys, func(i, j int) bool {
		a, b := c.patternKeys[i], c.patternKeys[j]
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return a < b
	})

	return c, nil
}

// Taxonomy returns the taxonomy the canonicalizer was built from.
func (c *Canonicalizer) Taxonomy() *model.Taxonomy {
	return c.taxonomy
}

// Map places a request in the taxonomy using the first step that matches:
// exact label, merchant pattern, MCC code, then the catch-all.
func (c *Canonicalizer) Map(req CategoryRequest) (Mapping, error) {
	if c == nil || c.taxonomy == nil {
		return Mapping{}, common.NewFatalError(common.ErrCatchAllMissing)
	}

	if m, ok := c.matchLabel(req.Label, req.SubLabel); ok {
		return m, nil
	}
	if m, ok := c.matchMerchant(req.Merchant); ok {
		return m, nil
	}
	if p, ok := c.mccs[strings.TrimSpace(req.MCCCode)]; ok {
		return Mapping{CategoryID: p.categoryID, SubCategoryID: p.subID, Confidence: MCCConfidence}, nil
	}

	return Mapping{
		CategoryID:   c.catchAll.ID,
		Confidence:   CatchAllConfidence,
		FallbackUsed: true,
	}, nil
}

// ValidateProposal checks an oracle's proposed category against the taxonomy.
func (c *Canonicalizer) ValidateProposal(label, subLabel, mccCode, merchantName string) (merchant.CategoryCheck, error) {
	m, err := c.Map(CategoryRequest{
		Label:    label,
		SubLabel: subLabel,
		MCCCode:  mccCode,
		Merchant: merchantName,
	})
	if err != nil {
		return merchant.CategoryCheck{}, err
	}
	return merchant.CategoryCheck{
		CategoryID:    m.CategoryID,
		SubCategoryID: m.SubCategoryID,
		Confidence:    m.Confidence,
	}, nil
}

func (c *Canonicalizer) matchLabel(label, subLabel string) (Mapping, bool) {
	key := labelKey(label)
	if key == "" {
		return Mapping{}, false
	}

	id, ok := c.categories[key]
	if !ok {
		id, ok = c.categories[model.Slugify(label)]
	}
	if ok {
		return Mapping{
			CategoryID:    id,
			SubCategoryID: c.subWithin(id, subLabel),
			Confidence:    ExactConfidence,
			IsExactMatch:  true,
		}, true
	}

	// A label naming a subcategory places the transaction under its parent.
	sub, ok := c.subs[key]
	if !ok {
		sub, ok = c.subs[model.Slugify(label)]
	}
	if ok {
		id := sub.ID
		return Mapping{
			CategoryID:    sub.CategoryID,
			SubCategoryID: &id,
			Confidence:    ExactConfidence,
			IsExactMatch:  true,
		}, true
	}

	return Mapping{}, false
}

func (c *Canonicalizer) subWithin(categoryID int, subLabel string) *int {
	key := labelKey(subLabel)
	if key == "" {
		return nil
	}
	for _, sub := range c.taxonomy.SubCategoriesOf(categoryID) {
		if labelKey(sub.Name) == key || sub.Slug == model.Slugify(subLabel) {
			id := sub.ID
			return &id
		}
	}
	return nil
}

func (c *Canonicalizer) matchMerchant(name string) (Mapping, bool) {
	key := merchant.Normalize(name)
	if key == "" {
		return Mapping{}, false
	}

	if p, ok := c.patterns[key]; ok {
		return Mapping{CategoryID: p.categoryID, SubCategoryID: p.subID, Confidence: PatternConfidence}, true
	}

	for _, pattern := range c.patternKeys {
		if len(pattern) < minPatternOverlap {
			continue
		}
		if merchant.ContainsPattern(key, pattern) || (len(key) >= minPatternOverlap && merchant.ContainsPattern(pattern, key)) {
			p := c.patterns[pattern]
			return Mapping{CategoryID: p.categoryID, SubCategoryID: p.subID, Confidence: SubstringConfidence}, true
		}
	}

	return Mapping{}, false
}

// placementFor drops MCC rows whose category is not in the taxonomy, and
// subcategories that do not belong to the row's category.
func (c *Canonicalizer) placementFor(m model.MCCCode) (placement, bool) {
	if _, ok := c.taxonomy.Category(m.CategoryID); !ok {
		return placement{}, false
	}
	p := placement{categoryID: m.CategoryID}
	if m.SubCategoryID != nil {
		if sub, ok := c.taxonomy.SubCategory(*m.SubCategoryID); ok && sub.CategoryID == m.CategoryID {
			id := sub.ID
			p.subID = &id
		}
	}
	return p, true
}

func labelKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// patternKey normalizes a stored merchant pattern, dropping wildcards.
func patternKey(pattern string) string {
	pattern = strings.NewReplacer("*", " ", "?", " ").Replace(pattern)
	return merchant.Normalize(pattern)
}
