// Package parser turns fetched listing pages into price candidates.
package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/aluiziolira/go-price-watch/config"
	"github.com/aluiziolira/go-price-watch/models"
	"github.com/shopspring/decimal"
)

var (
	priceToken     = regexp.MustCompile(`(?:CA\$|C\$|US\$|\$|£|€)\s?(\d{1,3}(?:,\d{3})+|\d+)(?:\.(\d{1,2}))?`)
	bareAmount     = regexp.MustCompile(`^\s*(?:CA\$|C\$|US\$|\$|£|€)?\s*(\d{1,3}(?:,\d{3})+|\d+)(?:\.(\d+))?\s*$`)
	ratingSuffix   = regexp.MustCompile(`\s*\(\d+\)$`)
	whitespaceRuns = regexp.MustCompile(`\s+`)
)

// ParsePrices returns every currency-formatted amount in text, in order of
// appearance.
func ParsePrices(text string) []decimal.Decimal {
	matches := priceToken.FindAllStringSubmatch(text, -1)
	out := make([]decimal.Decimal, 0, len(matches))
	for _, m := range matches {
		if v, ok := amount(m[1], m[2]); ok {
			out = append(out, v)
		}
	}
	return out
}

// ParseAmount parses a single amount that may or may not carry a currency
// symbol, such as "179.50" or "$1,049.99".
func ParseAmount(s string) (decimal.Decimal, bool) {
	m := bareAmount.FindStringSubmatch(s)
	if m == nil {
		return decimal.Decimal{}, false
	}
	return amount(m[1], m[2])
}

func amount(whole, frac string) (decimal.Decimal, bool) {
	raw := strings.ReplaceAll(whole, ",", "")
	if frac != "" {
		raw += "." + frac
	}
	v, err := decimal.NewFromString(raw)
	if err != nil || v.IsNegative() {
		return decimal.Decimal{}, false
	}
	return v, true
}

// Policy decides which price token represents a row.
type Policy struct {
	Floor     decimal.Decimal
	Selection string
}

// PolicyFromConfig builds the row price policy from cfg.
func PolicyFromConfig(cfg *config.Config) Policy {
	return Policy{Floor: cfg.PriceFloor, Selection: cfg.PriceSelection}
}

// For returns the policy to apply to doc, honouring its source floor.
func (p Policy) For(doc *models.Document) Policy {
	if doc != nil && doc.Floor.Valid {
		p.Floor = doc.Floor.Decimal
	}
	return p
}

// Pick drops tokens at or below the floor (per-unit prices, rebates) and
// returns the minimum of the rest, or the maximum under the max policy.
func (p Policy) Pick(tokens []decimal.Decimal) (decimal.Decimal, bool) {
	var (
		best  decimal.Decimal
		found bool
	)
	for _, t := range tokens {
		if t.LessThanOrEqual(p.Floor) {
			continue
		}
		if !found {
			best, found = t, true
			continue
		}
		if p.Selection == config.SelectMax {
			if t.GreaterThan(best) {
				best = t
			}
		} else if t.LessThan(best) {
			best = t
		}
	}
	return best, found
}

// NormalizeName trims the name and strips one trailing "(<digits>)" review count.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	name = ratingSuffix.ReplaceAllString(name, "")
	return strings.TrimSpace(name)
}

// ValidateCandidate ensures a candidate carries a name and a price above floor.
func ValidateCandidate(c models.Candidate, floor decimal.Decimal) error {
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("candidate missing name")
	}
	if c.Price.LessThanOrEqual(floor) {
		return fmt.Errorf("candidate %q price %s not above floor %s", c.Name, c.Price, floor)
	}
	return nil
}

func cleanText(s string) string {
	return strings.TrimSpace(whitespaceRuns.ReplaceAllString(s, " "))
}
