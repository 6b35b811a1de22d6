package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/aluiziolira/go-price-watch/models"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shopspring/decimal"
)

// maxEndpointRefs bounds how many embedded data endpoints one page may trigger.
const maxEndpointRefs = 3

var (
	nameKeys  = []string{"name", "title", "productName", "product_name", "displayName", "display_name"}
	priceKeys = []string{"price", "prices", "salePrice", "sale_price", "currentPrice", "current_price", "total", "price_total", "amount"}
	urlKeys   = []string{"url", "href", "link", "productUrl", "product_url"}

	// namePricePair recovers name/price pairs from a blob that is not valid JSON.
	namePricePair = regexp.MustCompile(`"(?:name|title|productName)"\s*:\s*"((?:[^"\\]|\\.)*)"[^{}]*?"(?:price|salePrice|total)"\s*:\s*"?((?:CA\$|C\$|\$)?\s*[\d,]+(?:\.\d+)?)`)
)

// EndpointStrategy looks for a same-origin JSON data endpoint referenced by
// the page, fetches it and walks the decoded tree for product records.
type EndpointStrategy struct {
	fetcher Fetcher
	pattern *regexp.Regexp
	policy  Policy
	cache   *lru.Cache[string, []byte]
}

// NewEndpointStrategy compiles pattern and sizes the response cache. An empty
// pattern disables the strategy.
func NewEndpointStrategy(fetcher Fetcher, pattern string, policy Policy, cacheSize int) (*EndpointStrategy, error) {
	s := &EndpointStrategy{fetcher: fetcher, policy: policy}
	if pattern != "" {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compile endpoint pattern: %w", err)
		}
		s.pattern = re
	}
	if cacheSize <= 0 {
		cacheSize = 1
	}
	cache, err := lru.New[string, []byte](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create endpoint cache: %w", err)
	}
	s.cache = cache
	return s, nil
}

func (s *EndpointStrategy) Name() string { return "endpoint" }

func (s *EndpointStrategy) Extract(ctx context.Context, doc *models.Document) Result {
	if s.pattern == nil || s.fetcher == nil {
		return Result{}
	}
	base, err := url.Parse(doc.URL)
	if err != nil {
		return Result{}
	}

	policy := s.policy.For(doc)
	var res Result
	for _, endpoint := range s.references(doc.Body, base) {
		body, ok := s.load(ctx, endpoint, doc.Tier)
		if !ok {
			continue
		}
		cands, skipped := decode(body, policy, base, doc.Source)
		res.Skipped += skipped
		if len(cands) > 0 {
			res.Candidates = cands
			return res
		}
	}
	return res
}

// references returns the distinct endpoint URLs referenced by body, resolved
// against the page URL so they stay on the page's origin.
func (s *EndpointStrategy) references(body []byte, base *url.URL) []string {
	text := strings.ReplaceAll(string(body), `\/`, "/")
	text = strings.ReplaceAll(text, "&amp;", "&")

	seen := make(map[string]bool)
	var out []string
	for _, match := range s.pattern.FindAllString(text, -1) {
		ref, err := url.Parse(match)
		if err != nil {
			continue
		}
		abs := base.ResolveReference(ref)
		if abs.Host != base.Host {
			continue
		}
		key := abs.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
		if len(out) == maxEndpointRefs {
			break
		}
	}
	return out
}

func (s *EndpointStrategy) load(ctx context.Context, endpoint string, tier models.Tier) ([]byte, bool) {
	if body, ok := s.cache.Get(endpoint); ok {
		return body, true
	}
	res := s.fetcher.Fetch(ctx, endpoint, tier)
	if !res.OK() {
		slog.Debug("data endpoint unavailable",
			slog.String("endpoint", endpoint),
			slog.Any("error", res.Err),
		)
		return nil, false
	}
	s.cache.Add(endpoint, res.Body)
	return res.Body, true
}

func decode(body []byte, policy Policy, base *url.URL, source string) ([]models.Candidate, int) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var tree any
	if err := dec.Decode(&tree); err != nil {
		return scanPairs(body, policy, base, source)
	}

	w := walker{policy: policy, base: base, source: source}
	w.walk(tree)
	return w.out, w.skipped
}

// scanPairs is the fallback for blobs that fail strict JSON decoding.
func scanPairs(body []byte, policy Policy, base *url.URL, source string) ([]models.Candidate, int) {
	var (
		out     []models.Candidate
		skipped int
	)
	for _, m := range namePricePair.FindAllSubmatch(body, -1) {
		name := NormalizeName(unquote(string(m[1])))
		price, ok := ParseAmount(string(m[2]))
		if name == "" || !ok || price.LessThanOrEqual(policy.Floor) {
			skipped++
			continue
		}
		out = append(out, models.Candidate{Name: name, Price: price, URL: base.String(), Source: source})
	}
	return out, skipped
}

type walker struct {
	policy  Policy
	base    *url.URL
	source  string
	out     []models.Candidate
	skipped int
}

func (w *walker) walk(node any) {
	switch v := node.(type) {
	case map[string]any:
		for _, k := range sortedKeys(v) {
			w.walk(v[k])
		}
	case []any:
		if !isRecordArray(v) {
			for _, elem := range v {
				w.walk(elem)
			}
			return
		}
		for _, elem := range v {
			obj, ok := elem.(map[string]any)
			if !ok {
				w.skipped++
				continue
			}
			if c, ok := w.record(obj); ok {
				w.out = append(w.out, c)
			} else {
				w.skipped++
			}
		}
	}
}

func (w *walker) record(obj map[string]any) (models.Candidate, bool) {
	var name string
	if raw, ok := lookup(obj, nameKeys); ok {
		if s, ok := raw.(string); ok {
			name = NormalizeName(cleanText(s))
		}
	}
	if name == "" {
		return models.Candidate{}, false
	}

	raw, ok := lookup(obj, priceKeys)
	if !ok {
		return models.Candidate{}, false
	}
	price, ok := w.policy.Pick(priceTokens(raw, 0))
	if !ok {
		return models.Candidate{}, false
	}

	link := w.base.String()
	if raw, ok := lookup(obj, urlKeys); ok {
		if s, ok := raw.(string); ok && s != "" {
			if ref, err := url.Parse(s); err == nil {
				link = w.base.ResolveReference(ref).String()
			}
		}
	}
	return models.Candidate{Name: name, Price: price, URL: link, Source: w.source}, true
}

// priceTokens collects every amount found in a price-like value. Nested
// objects such as {"price": {"total": 149.99}} are followed a few levels.
func priceTokens(node any, depth int) []decimal.Decimal {
	if depth > 3 {
		return nil
	}
	switch v := node.(type) {
	case json.Number:
		if d, ok := ParseAmount(v.String()); ok {
			return []decimal.Decimal{d}
		}
	case string:
		if d, ok := ParseAmount(v); ok {
			return []decimal.Decimal{d}
		}
		return ParsePrices(v)
	case []any:
		var out []decimal.Decimal
		for _, elem := range v {
			out = append(out, priceTokens(elem, depth+1)...)
		}
		return out
	case map[string]any:
		var out []decimal.Decimal
		for _, k := range priceKeys {
			if elem, ok := v[k]; ok {
				out = append(out, priceTokens(elem, depth+1)...)
			}
		}
		if elem, ok := v["value"]; ok {
			out = append(out, priceTokens(elem, depth+1)...)
		}
		return out
	}
	return nil
}

func isRecordArray(arr []any) bool {
	for _, elem := range arr {
		obj, ok := elem.(map[string]any)
		if !ok {
			continue
		}
		_, hasName := lookup(obj, nameKeys)
		_, hasPrice := lookup(obj, priceKeys)
		if hasName && hasPrice {
			return true
		}
	}
	return false
}

// lookup returns the first present key, matching case-insensitively.
func lookup(obj map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := obj[k]; ok {
			return v, true
		}
	}
	for _, k := range sortedKeys(obj) {
		for _, want := range keys {
			if strings.EqualFold(k, want) {
				return obj[k], true
			}
		}
	}
	return nil, false
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func unquote(s string) string {
	if u, err := strconv.Unquote(`"` + s + `"`); err == nil {
		return u
	}
	return s
}
