package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Report is what the notifier receives once a winner is known.
type Report struct {
	Winner  Candidate
	Average decimal.Decimal
	Trend   Trend
	Samples int
}

// SourceResult summarises one source within a run.
type SourceResult struct {
	Source      string
	Pages       int
	Attempts    int
	Tier        Tier
	Strategy    string
	Candidates  int
	SkippedRows int
	Found       bool
}

// RunResult holds the overall result of a discovery run.
type RunResult struct {
	RunID     string
	StartTime time.Time
	EndTime   time.Time
	Sources   []SourceResult
	Ranked    []Candidate
	Found     bool
	Report    *Report
	History   History
}
