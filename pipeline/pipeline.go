// Package pipeline validates, de-duplicates and ranks price candidates, and
// writes run reports.
package pipeline

import (
	"sort"
	"strings"

	"github.com/aluiziolira/go-price-watch/config"
	"github.com/aluiziolira/go-price-watch/models"
	"github.com/aluiziolira/go-price-watch/parser"
	"github.com/shopspring/decimal"
)

// Rejection reasons reported in RankedResult.Rejected.
const (
	RejectInvalid   = "invalid_record"
	RejectMissing   = "missing_token"
	RejectExcluded  = "excluded_token"
	RejectDuplicate = "duplicate"
)

// Constraints are the declarative predicates a candidate must satisfy.
// Token matching ignores case and whitespace, so "32 GB" also matches "32GB".
type Constraints struct {
	Floor          decimal.Decimal
	RequiredTokens []string
	ExcludedTokens []string
}

// ConstraintsFor builds the constraints of one source.
func ConstraintsFor(src config.Source, cfg *config.Config) Constraints {
	return Constraints{
		Floor:          src.Floor(cfg.PriceFloor),
		RequiredTokens: src.RequiredTokens,
		ExcludedTokens: src.ExcludedTokens,
	}
}

// Check returns the rejection reason for c, or "" when c satisfies every constraint.
func (k Constraints) Check(c models.Candidate) string {
	if err := parser.ValidateCandidate(c, k.Floor); err != nil {
		return RejectInvalid
	}
	name := squash(c.Name)
	for _, token := range k.RequiredTokens {
		if !strings.Contains(name, squash(token)) {
			return RejectMissing
		}
	}
	for _, token := range k.ExcludedTokens {
		if t := squash(token); t != "" && strings.Contains(name, t) {
			return RejectExcluded
		}
	}
	return ""
}

// RankedResult is a de-duplicated, price-ascending candidate sequence.
type RankedResult struct {
	Candidates []models.Candidate
	Rejected   map[string]int
}

// Winner returns the cheapest candidate, if any survived filtering.
func (r RankedResult) Winner() (models.Candidate, bool) {
	if len(r.Candidates) == 0 {
		return models.Candidate{}, false
	}
	return r.Candidates[0], true
}

// Rank filters cands by k, keeps the lowest price per (normalized name, URL)
// and sorts ascending by price. Equal prices keep first-seen order.
func Rank(cands []models.Candidate, k Constraints) RankedResult {
	res := RankedResult{Rejected: make(map[string]int)}
	index := make(map[string]int, len(cands))

	for _, c := range cands {
		c.Name = parser.NormalizeName(c.Name)
		if reason := k.Check(c); reason != "" {
			res.Rejected[reason]++
			continue
		}

		key := dedupeKey(c)
		if i, ok := index[key]; ok {
			res.Rejected[RejectDuplicate]++
			if c.Price.LessThan(res.Candidates[i].Price) {
				res.Candidates[i].Price = c.Price
			}
			continue
		}
		index[key] = len(res.Candidates)
		res.Candidates = append(res.Candidates, c)
	}

	sort.SliceStable(res.Candidates, func(i, j int) bool {
		return res.Candidates[i].Price.LessThan(res.Candidates[j].Price)
	})
	return res
}

func dedupeKey(c models.Candidate) string {
	return strings.ToLower(c.Name) + "\x00" + c.URL
}

func squash(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}
