package parser

import (
	"testing"

	"github.com/aluiziolira/go-price-watch/config"
	"github.com/aluiziolira/go-price-watch/models"
	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "rating count", input: "Corsair Vengeance 32 GB (42)", expected: "Corsair Vengeance 32 GB"},
		{name: "keeps inner parentheses", input: "G.Skill Trident Z5 (2 x 16 GB) (128)", expected: "G.Skill Trident Z5 (2 x 16 GB)"},
		{name: "only one suffix", input: "Kit (12) (34)", expected: "Kit (12)"},
		{name: "no space before suffix", input: "Kit(7)", expected: "Kit"},
		{name: "surrounding whitespace", input: "  Kingston Fury (3)  ", expected: "Kingston Fury"},
		{name: "non numeric suffix", input: "Kit (RGB)", expected: "Kit (RGB)"},
		{name: "no suffix", input: "Kingston Fury Beast", expected: "Kingston Fury Beast"},
		{name: "suffix only", input: "(15)", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeName(tt.input); got != tt.expected {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestNormalizeNameStripsExactlyTheSuffix(t *testing.T) {
	bases := []string{"Kit A", "Team T-Force Delta RGB 32 GB (2 x 16 GB) DDR5-6000", "Patriot Viper Venom"}
	suffixes := []string{"(0)", "(1)", "(99)", "(12345)"}
	for _, base := range bases {
		for _, suffix := range suffixes {
			input := base + " " + suffix
			if got := NormalizeName(input); got != base {
				t.Errorf("NormalizeName(%q) = %q, want %q", input, got, base)
			}
		}
	}
}

func TestParsePrices(t *testing.T) {
	got := ParsePrices("Save $60.00 now $1,049.99 or CA$5.00/GB (was £12)")
	want := []decimal.Decimal{dec("60.00"), dec("1049.99"), dec("5.00"), dec("12")}
	if len(got) != len(want) {
		t.Fatalf("ParsePrices returned %d tokens, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if !got[i].Equal(want[i]) {
			t.Errorf("token %d = %s, want %s", i, got[i], want[i])
		}
	}

	if got := ParsePrices("32 GB DDR5-6000 CL30"); len(got) != 0 {
		t.Errorf("expected no tokens without currency symbol, got %v", got)
	}
}

func TestParseAmount(t *testing.T) {
	tests := []struct {
		input  string
		want   string
		wantOK bool
	}{
		{input: "179.50", want: "179.5", wantOK: true},
		{input: "$1,049.99", want: "1049.99", wantOK: true},
		{input: " CA$ 149 ", want: "149", wantOK: true},
		{input: "abc", wantOK: false},
		{input: "", wantOK: false},
		{input: "12.3.4", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := ParseAmount(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ParseAmount(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if ok && !got.Equal(dec(tt.want)) {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestPolicyPick(t *testing.T) {
	tokens := []decimal.Decimal{dec("5.00"), dec("199.99"), dec("149.99"), dec("50")}

	minPolicy := Policy{Floor: dec("50"), Selection: config.SelectMin}
	if got, ok := minPolicy.Pick(tokens); !ok || !got.Equal(dec("149.99")) {
		t.Errorf("min pick = %s (%v), want 149.99", got, ok)
	}

	maxPolicy := Policy{Floor: dec("50"), Selection: config.SelectMax}
	if got, ok := maxPolicy.Pick(tokens); !ok || !got.Equal(dec("199.99")) {
		t.Errorf("max pick = %s (%v), want 199.99", got, ok)
	}

	if got, ok := minPolicy.Pick([]decimal.Decimal{dec("5"), dec("50"), dec("12.99")}); ok {
		t.Errorf("expected no pick when every token is at or below floor, got %s", got)
	}
	if _, ok := minPolicy.Pick(nil); ok {
		t.Error("expected no pick for empty tokens")
	}
}

func TestPolicyFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	p := PolicyFromConfig(cfg)
	if !p.Floor.Equal(cfg.PriceFloor) || p.Selection != config.SelectMin {
		t.Fatalf("unexpected policy %+v", p)
	}
}

func TestValidateCandidate(t *testing.T) {
	floor := dec("50")
	tests := []struct {
		name      string
		candidate models.Candidate
		wantErr   bool
	}{
		{name: "valid", candidate: models.Candidate{Name: "Kit", Price: dec("149.99")}, wantErr: false},
		{name: "missing name", candidate: models.Candidate{Name: "  ", Price: dec("149.99")}, wantErr: true},
		{name: "at floor", candidate: models.Candidate{Name: "Kit", Price: dec("50")}, wantErr: true},
		{name: "below floor", candidate: models.Candidate{Name: "Kit", Price: dec("5")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateCandidate(tt.candidate, floor)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateCandidate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
