package parser

import (
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-price-watch/models"
)

// RegexStrategy ignores cell structure and scans each row's visible text for
// currency tokens, letting the price policy choose among them.
type RegexStrategy struct {
	rowSelectors []string
	policy       Policy
}

// NewRegexStrategy builds the last-resort strategy over the same rows the
// DOM strategy uses.
func NewRegexStrategy(rowSelectors []string, policy Policy) *RegexStrategy {
	return &RegexStrategy{rowSelectors: rowSelectors, policy: policy}
}

func (s *RegexStrategy) Name() string { return "regex" }

func (s *RegexStrategy) Extract(ctx context.Context, doc *models.Document) Result {
	page, base, ok := parseDocument(doc)
	if !ok {
		return Result{}
	}
	rows := findRows(page, s.rowSelectors)
	if rows == nil {
		return Result{}
	}

	policy := s.policy.For(doc)
	var res Result
	rows.Each(func(_ int, row *goquery.Selection) {
		text := cleanText(row.Text())
		price, ok := policy.Pick(ParsePrices(text))
		if !ok {
			res.Skipped++
			return
		}

		name, link := rowLink(row, base)
		if name == "" {
			name = leadingName(text)
		}
		if name == "" {
			res.Skipped++
			return
		}
		res.Candidates = append(res.Candidates, models.Candidate{
			Name:   name,
			Price:  price,
			URL:    link,
			Source: doc.Source,
		})
	})
	return res
}

// leadingName uses the row text before its first price token as the name.
func leadingName(text string) string {
	loc := priceToken.FindStringIndex(text)
	if loc == nil {
		return NormalizeName(text)
	}
	return NormalizeName(strings.TrimSpace(text[:loc[0]]))
}
