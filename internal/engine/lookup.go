package engine

import (
	"context"
	"strings"

	"github.com/Veraticus/cardwise/internal/merchant"
	"github.com/Veraticus/cardwise/internal/model"
)

// Lookup is the dry-run placement of a single merchant descriptor.
type Lookup struct {
	Resolution  model.Resolution
	Category    string
	SubCategory string
	Confidence  float64
	NeedsReview bool
}

// Lookup resolves and places one merchant without writing anything. The
// oracle is consulted when configured, but nothing it proposes is learned.
func (e *Engine) Lookup(ctx context.Context, descriptor string) (Lookup, error) {
	snap, err := e.snapshot()
	if err != nil {
		return Lookup{}, err
	}
	canon, ref, err := e.loadReference(ctx)
	if err != nil {
		return Lookup{}, err
	}

	resolver := merchant.NewResolver(ref, merchant.Config{
		Oracle:              e.oracle,
		Validator:           canon,
		FuzzyThreshold:      snap.Resolver.FuzzyThreshold,
		OracleConfidenceCap: snap.Resolver.OracleConfidenceCap,
		AliasLearnThreshold: snap.Resolver.AliasLearnThreshold,
		OracleBatchSize:     snap.Resolver.OracleBatchSize,
	}, e.logger)

	descriptor = strings.TrimSpace(descriptor)
	results, _ := resolver.ResolveAll(ctx, []string{descriptor})
	res, ok := results[descriptor]
	if !ok {
		res = model.Resolution{Source: model.SourceUnresolved}
	}

	r := &run{canon: canon, snap: snap}
	mapping, err := r.place(descriptor, res)
	if err != nil {
		return Lookup{}, err
	}
	var t model.Transaction
	r.apply(&t, descriptor, res, mapping)

	out := Lookup{
		Resolution:  res,
		Confidence:  t.ResolutionConfidence,
		NeedsReview: t.NeedsReview,
	}
	tax := canon.Taxonomy()
	if c, ok := tax.Category(mapping.CategoryID); ok {
		out.Category = c.Name
	}
	if mapping.SubCategoryID != nil {
		if sc, ok := tax.SubCategory(*mapping.SubCategoryID); ok {
			out.SubCategory = sc.Name
		}
	}
	return out, nil
}
