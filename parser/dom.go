package parser

import (
	"bytes"
	"context"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-price-watch/models"
	"github.com/shopspring/decimal"
)

// DOMStrategy reads product rows by structural selectors: the first link
// names the product and a price cell carries the amount.
type DOMStrategy struct {
	rowSelectors   []string
	priceSelectors []string
	policy         Policy
}

// NewDOMStrategy builds a selector-driven strategy. Row selectors are tried
// in order and the first one that matches anything wins.
func NewDOMStrategy(rowSelectors, priceSelectors []string, policy Policy) *DOMStrategy {
	return &DOMStrategy{rowSelectors: rowSelectors, priceSelectors: priceSelectors, policy: policy}
}

func (s *DOMStrategy) Name() string { return "dom" }

func (s *DOMStrategy) Extract(ctx context.Context, doc *models.Document) Result {
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
		name, link := rowLink(row, base)
		price, ok := s.rowPrice(row, policy)
		if name == "" || !ok {
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

// rowPrice prefers the amount inside a link in the price cell, which skips
// "save $X" and rebate text, and falls back to the whole cell.
func (s *DOMStrategy) rowPrice(row *goquery.Selection, policy Policy) (decimal.Decimal, bool) {
	for _, sel := range s.priceSelectors {
		cell := row.Find(sel).First()
		if cell.Length() == 0 {
			continue
		}
		var linked []decimal.Decimal
		cell.Find("a").Each(func(_ int, a *goquery.Selection) {
			linked = append(linked, ParsePrices(cleanText(a.Text()))...)
		})
		if price, ok := policy.Pick(linked); ok {
			return price, true
		}
		if price, ok := policy.Pick(ParsePrices(cleanText(cell.Text()))); ok {
			return price, true
		}
	}
	return decimal.Decimal{}, false
}

func parseDocument(doc *models.Document) (*goquery.Document, *url.URL, bool) {
	if len(doc.Body) == 0 {
		return nil, nil, false
	}
	page, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		return nil, nil, false
	}
	base, err := url.Parse(doc.URL)
	if err != nil {
		return nil, nil, false
	}
	return page, base, true
}

func findRows(page *goquery.Document, selectors []string) *goquery.Selection {
	for _, sel := range selectors {
		rows := page.Find(sel)
		if rows.Length() > 0 {
			return rows
		}
	}
	return nil
}

// rowLink returns the normalized text of the first link that has any and
// its absolute href.
func rowLink(row *goquery.Selection, base *url.URL) (string, string) {
	var name, link string
	row.Find("a").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		text := NormalizeName(cleanText(a.Text()))
		if text == "" {
			return true
		}
		if _, isPrice := ParseAmount(text); isPrice {
			return true
		}
		name = text
		if href, ok := a.Attr("href"); ok {
			if ref, err := url.Parse(href); err == nil {
				link = base.ResolveReference(ref).String()
			}
		}
		return false
	})
	if link == "" {
		link = base.String()
	}
	return name, link
}
