package model

import (
	"strings"
	"time"
)

// Run is one persisted analysis of an uploaded report. The pipeline never
// creates runs itself; callers decide whether to keep a result.
type Run struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Source          string          `json:"source"`
	TargetROAS      float64         `json:"target_roas"`
	Report          ReportSummary   `json:"report"`
	Summary         BatchSummary    `json:"summary"`
	Recommendations []ScoredKeyword `json:"recommendations,omitempty"`
	Insights        string          `json:"insights,omitempty"`
	Memo            string          `json:"memo,omitempty"`
	Tags            []string        `json:"tags,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// NormalizeTags trims tags, drops blanks and duplicates, and keeps the first
// occurrence order. It never returns nil.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
