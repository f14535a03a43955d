package merchant

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/cardwise/internal/model"
)

// Fixed strategy confidences.
const (
	ExactConfidence            = 0.98
	AbbreviationCredit         = 0.85
	WildcardPatternConfidence  = 0.85
	ExactPatternConfidence     = 0.95
	SubstringPatternConfidence = 0.75

	minSubstringPattern = 3
	minAbbreviation     = 3
)

// ReferenceData is the immutable dataset a Resolver matches against.
type ReferenceData struct {
	MCCCodes []model.MCCCode
	Aliases  []model.MerchantAlias
}

// Learner persists oracle discoveries.
type Learner interface {
	UpsertMerchantAlias(ctx context.Context, alias *model.MerchantAlias) error
	AppendMerchantPattern(ctx context.Context, code, pattern string) error
	SaveMCCCode(ctx context.Context, mcc *model.MCCCode) error
}

// Config tunes a Resolver and wires its optional collaborators.
type Config struct {
	Oracle              Oracle
	Validator           CategoryValidator
	Learner             Learner
	Sleep               func(ctx context.Context, d time.Duration) error
	FuzzyThreshold      float64
	OracleConfidenceCap float64
	AliasLearnThreshold float64
	OracleBatchSize     int
	OracleBatchDelay    time.Duration
}

// Stats counts resolutions by source.
type Stats struct {
	Total      int `json:"total"`
	ByDatabase int `json:"byDatabase"`
	ByFuzzy    int `json:"byFuzzy"`
	ByPattern  int `json:"byPattern"`
	ByOracle   int `json:"byOracle"`
	Unresolved int `json:"unresolved"`
	Learned    int `json:"learned"`
}

func (s *Stats) count(source model.ResolutionSource) {
	s.Total++
	switch source {
	case model.SourceDatabase:
		s.ByDatabase++
	case model.SourceFuzzyMatch:
		s.ByFuzzy++
	case model.SourcePatternMatch:
		s.ByPattern++
	case model.SourceAIOracle:
		s.ByOracle++
	default:
		s.Unresolved++
	}
}

type aliasEntry struct {
	name       string
	mcc        string
	candidates []string
	confidence float64
}

type patternEntry struct {
	wildcard *regexp.Regexp
	pattern  string
	code     string
}

// Resolver runs the exact, fuzzy and pattern strategies, then the oracle.
type Resolver struct {
	exact    map[string]int
	mccs     map[string]model.MCCCode
	logger   *slog.Logger
	aliases  []aliasEntry
	patterns []patternEntry
	hints    []MCCHint
	cfg      Config
}

// NewResolver indexes ref. A nil logger uses slog.Default().
func NewResolver(ref ReferenceData, cfg Config, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OracleBatchSize <= 0 {
		cfg.OracleBatchSize = 20
	}
	if cfg.Sleep == nil {
		cfg.Sleep = sleepContext
	}

	r := &Resolver{
		exact:  make(map[string]int),
		mccs:   make(map[string]model.MCCCode, len(ref.MCCCodes)),
		logger: logger.With("component", "resolver"),
		cfg:    cfg,
	}

	aliases := append([]model.MerchantAlias(nil), ref.Aliases...)
	sort.SliceStable(aliases, func(i, j int) bool {
		if aliases[i].Confidence != aliases[j].Confidence {
			return aliases[i].Confidence > aliases[j].Confidence
		}
		return aliases[i].MerchantName < aliases[j].MerchantName
	})
	for _, a := range aliases {
		if !model.IsMCC(a.MCCCode) {
			continue
		}
		entry := aliasEntry{name: Normalize(a.MerchantName), mcc: a.MCCCode, confidence: a.Confidence}
		for _, c := range append([]string{a.MerchantName}, a.Aliases...) {
			if n := Normalize(c); n != "" {
				entry.candidates = append(entry.candidates, n)
			}
		}
		idx := len(r.aliases)
		r.aliases = append(r.aliases, entry)
		for _, c := range entry.candidates {
			if _, taken := r.exact[c]; !taken {
				r.exact[c] = idx
			}
		}
	}

	for _, m := range ref.MCCCodes {
		r.mccs[m.Code] = m
		r.hints = append(r.hints, MCCHint{Code: m.Code, Description: m.Description})
		for _, p := range m.MerchantPatterns {
			entry := patternEntry{code: m.Code}
			if strings.ContainsAny(p, "*?") {
				entry.pattern = normalizePattern(p)
				re, err := compileWildcard(entry.pattern)
				if err != nil {
					r.logger.Warn("Skipping invalid merchant pattern", "mcc", m.Code, "pattern", p, "error", err)
					continue
				}
				entry.wildcard = re
			} else {
				entry.pattern = Normalize(p)
			}
			if entry.pattern != "" {
				r.patterns = append(r.patterns, entry)
			}
		}
	}
	sort.Slice(r.hints, func(i, j int) bool { return r.hints[i].Code < r.hints[j].Code })

	return r
}

// normalizePattern normalizes a wildcard pattern while keeping * and ?.
func normalizePattern(p string) string {
	parts := strings.FieldsFunc(p, func(r rune) bool { return r == '*' || r == '?' })
	out := p
	for _, part := range parts {
		out = strings.Replace(out, part, Normalize(part), 1)
	}
	return strings.Join(strings.Fields(out), " ")
}

func compileWildcard(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteString("(?i)^")
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	return regexp.Compile(b.String())
}

// Resolve runs the local strategies (exact, fuzzy, pattern) for one
// descriptor. It never calls the oracle.
func (r *Resolver) Resolve(ctx context.Context, raw string) (res model.Resolution) {
	defer func() {
		if p := recover(); p != nil {
			r.logger.Error("Resolver strategy panicked", "merchant", raw, "panic", fmt.Sprint(p))
			res = model.Resolution{Source: model.SourceUnresolved}
		}
	}()

	if ctx.Err() != nil {
		return model.Resolution{Source: model.SourceUnresolved}
	}

	tokens := Tokens(raw)
	if len(tokens) == 0 {
		return model.Resolution{Source: model.SourceUnresolved}
	}
	name := strings.Join(tokens, " ")

	if res, ok := r.matchExact(name); ok {
		return res
	}
	if res, ok := r.matchFuzzy(tokens); ok {
		return res
	}
	if res, ok := r.matchPattern(name); ok {
		return res
	}
	return model.Resolution{Source: model.SourceUnresolved}
}

func (r *Resolver) matchExact(name string) (model.Resolution, bool) {
	idx, ok := r.exact[name]
	if !ok {
		return model.Resolution{}, false
	}
	return model.Resolution{
		MCCCode:    r.aliases[idx].mcc,
		Source:     model.SourceDatabase,
		Confidence: ExactConfidence,
	}, true
}

func (r *Resolver) matchFuzzy(tokens []string) (model.Resolution, bool) {
	windows := leadingWindows(tokens)
	first := tokens[0]

	bestIdx := -1
	var bestSim, bestConf float64
	for i, a := range r.aliases {
		for _, c := range a.candidates {
			sim := 0.0
			for _, w := range windows {
				if s := Similarity(w, c); s > sim {
					sim = s
				}
			}
			if len(c) >= minAbbreviation && c != first && strings.HasPrefix(first, c) && sim < AbbreviationCredit {
				sim = AbbreviationCredit
			}
			if sim < r.cfg.FuzzyThreshold {
				continue
			}
			conf := sim * a.confidence
			if bestIdx < 0 || sim > bestSim || (sim == bestSim && conf > bestConf) {
				bestIdx, bestSim, bestConf = i, sim, conf
			}
		}
	}
	if bestIdx < 0 {
		return model.Resolution{}, false
	}
	return model.Resolution{
		MCCCode:    r.aliases[bestIdx].mcc,
		Source:     model.SourceFuzzyMatch,
		Confidence: bestConf,
	}, true
}

func (r *Resolver) matchPattern(name string) (model.Resolution, bool) {
	var (
		best     *patternEntry
		bestConf float64
	)
	for i := range r.patterns {
		p := &r.patterns[i]
		var conf float64
		switch {
		case p.wildcard != nil:
			if p.wildcard.MatchString(name) {
				conf = WildcardPatternConfidence
			}
		case p.pattern == name:
			conf = ExactPatternConfidence
		case len(p.pattern) >= minSubstringPattern && ContainsPattern(name, p.pattern):
			conf = SubstringPatternConfidence
		}
		if conf == 0 {
			continue
		}
		if best == nil || conf > bestConf ||
			(conf == bestConf && len(p.pattern) > len(best.pattern)) ||
			(conf == bestConf && len(p.pattern) == len(best.pattern) && p.code < best.code) {
			best, bestConf = p, conf
		}
	}
	if best == nil {
		return model.Resolution{}, false
	}
	return model.Resolution{
		MCCCode:    best.code,
		Source:     model.SourcePatternMatch,
		Confidence: bestConf,
	}, true
}

// ProgressFunc is told how many of total distinct descriptors the local
// strategies have finished. A non-nil error aborts resolution.
type ProgressFunc func(done, total int) error

// ResolveAll resolves every distinct descriptor in merchants. Descriptors the
// local strategies miss are sent to the oracle in batches; a failing batch
// leaves its merchants unresolved and the remaining batches still run.
// The returned map is keyed by the raw descriptor.
func (r *Resolver) ResolveAll(ctx context.Context, merchants []string) (map[string]model.Resolution, Stats) {
	results, stats, _ := r.ResolveAllProgress(ctx, merchants, 0, nil)
	return results, stats
}

// ResolveAllProgress is ResolveAll with progress reported every `every`
// descriptors of the local pass. All local misses then go to the oracle in
// a single batched pass, so batch sizes and delays do not depend on every.
func (r *Resolver) ResolveAllProgress(ctx context.Context, merchants []string, every int, progress ProgressFunc) (map[string]model.Resolution, Stats, error) {
	unique := distinct(merchants)
	results := make(map[string]model.Resolution, len(unique))
	byName := make(map[string][]string)

	for i, raw := range unique {
		res := r.Resolve(ctx, raw)
		results[raw] = res
		if !res.Resolved() {
			if name := Normalize(raw); name != "" {
				byName[name] = append(byName[name], raw)
			}
		}
		done := i + 1
		if progress != nil && every > 0 && (done%every == 0 || done == len(unique)) {
			if err := progress(done, len(unique)); err != nil {
				return results, Stats{}, err
			}
		}
	}

	var proposals map[string]OracleResult
	if r.cfg.Oracle != nil && r.cfg.Validator != nil && len(byName) > 0 {
		proposals = r.consultOracle(ctx, byName, results)
	}

	var stats Stats
	for _, raw := range unique {
		stats.count(results[raw].Source)
	}
	if r.cfg.Learner != nil {
		stats.Learned = r.learn(ctx, results, proposals)
	}
	return results, stats, nil
}

// consultOracle fills results from the oracle and returns the accepted
// proposals keyed by normalized name.
func (r *Resolver) consultOracle(ctx context.Context, byName map[string][]string, results map[string]model.Resolution) map[string]OracleResult {
	accepted := make(map[string]OracleResult)
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	for start, batchNum := 0, 0; start < len(names); start, batchNum = start+r.cfg.OracleBatchSize, batchNum+1 {
		end := start + r.cfg.OracleBatchSize
		if end > len(names) {
			end = len(names)
		}
		batch := names[start:end]

		if batchNum > 0 && r.cfg.OracleBatchDelay > 0 {
			if err := r.cfg.Sleep(ctx, r.cfg.OracleBatchDelay); err != nil {
				r.logger.Warn("Oracle batching interrupted", "remaining", len(names)-start, "error", err)
				return accepted
			}
		}

		resp, err := r.cfg.Oracle.ResolveMerchants(ctx, OracleRequest{MerchantNames: batch, KnownMCCHints: r.hints})
		if err != nil {
			r.logger.Warn("Oracle batch failed, leaving merchants unresolved",
				"batch", batchNum, "size", len(batch), "error", err)
			continue
		}

		inBatch := make(map[string]bool, len(batch))
		for _, n := range batch {
			inBatch[n] = true
		}
		for _, proposal := range resp.Results {
			name := Normalize(proposal.Merchant)
			if !inBatch[name] {
				r.logger.Debug("Ignoring oracle result for unknown merchant", "merchant", proposal.Merchant)
				continue
			}
			res, ok := r.acceptProposal(name, proposal)
			if !ok {
				continue
			}
			for _, raw := range byName[name] {
				results[raw] = res
			}
			accepted[name] = proposal
			delete(inBatch, name)
		}
	}
	return accepted
}

func (r *Resolver) acceptProposal(name string, p OracleResult) (model.Resolution, bool) {
	code := strings.TrimSpace(p.MCCCode)
	if !model.IsMCC(code) {
		r.logger.Debug("Rejecting oracle result with invalid mcc", "merchant", name, "mcc", p.MCCCode)
		return model.Resolution{}, false
	}
	conf := p.Confidence
	if conf > r.cfg.OracleConfidenceCap {
		conf = r.cfg.OracleConfidenceCap
	}
	if conf <= 0 {
		return model.Resolution{}, false
	}

	check, err := r.cfg.Validator.ValidateProposal(p.Category, p.SubCategory, code, name)
	if err != nil {
		r.logger.Warn("Oracle category failed validation", "merchant", name, "mcc", code, "error", err)
		return model.Resolution{}, false
	}
	r.logger.Debug("Accepted oracle result", "merchant", name, "mcc", code,
		"confidence", conf, "reasoning", p.Reasoning)

	return model.Resolution{
		MCCCode:            code,
		Source:             model.SourceAIOracle,
		Confidence:         conf,
		CategoryID:         check.CategoryID,
		SubCategoryID:      check.SubCategoryID,
		CategoryConfidence: check.Confidence,
	}, true
}

// learn persists oracle results that clear the learning threshold. A code
// missing from the reference data is saved with the oracle's description.
func (r *Resolver) learn(ctx context.Context, results map[string]model.Resolution, proposals map[string]OracleResult) int {
	seen := make(map[string]bool)
	created := make(map[string]bool)
	keys := make([]string, 0, len(results))
	for raw := range results {
		keys = append(keys, raw)
	}
	sort.Strings(keys)

	learned := 0
	for _, raw := range keys {
		res := results[raw]
		if res.Source != model.SourceAIOracle || res.Confidence < r.cfg.AliasLearnThreshold {
			continue
		}
		name := Normalize(raw)
		if seen[name] {
			continue
		}
		seen[name] = true

		err := r.cfg.Learner.UpsertMerchantAlias(ctx, &model.MerchantAlias{
			MerchantName: name,
			MCCCode:      res.MCCCode,
			Confidence:   res.Confidence,
		})
		if err != nil {
			r.logger.Warn("Failed to learn merchant alias", "merchant", name, "error", err)
			continue
		}
		learned++

		if _, known := r.mccs[res.MCCCode]; known || created[res.MCCCode] {
			if err := r.cfg.Learner.AppendMerchantPattern(ctx, res.MCCCode, name); err != nil {
				r.logger.Warn("Failed to extend mcc patterns", "merchant", name, "mcc", res.MCCCode, "error", err)
			}
			continue
		}
		description := strings.TrimSpace(proposals[name].Description)
		if description == "" || res.CategoryID <= 0 {
			continue
		}
		err = r.cfg.Learner.SaveMCCCode(ctx, &model.MCCCode{
			Code:             res.MCCCode,
			Description:      description,
			CategoryID:       res.CategoryID,
			SubCategoryID:    res.SubCategoryID,
			MerchantPatterns: []string{name},
			Confidence:       res.Confidence,
		})
		if err != nil {
			r.logger.Warn("Failed to save learned mcc", "mcc", res.MCCCode, "error", err)
			continue
		}
		created[res.MCCCode] = true
	}
	return learned
}

// MCC returns the reference record for code.
func (r *Resolver) MCC(code string) (model.MCCCode, bool) {
	m, ok := r.mccs[code]
	return m, ok
}

func distinct(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if !seen[v] {
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
