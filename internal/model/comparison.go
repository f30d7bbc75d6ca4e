package model

import "time"

// Trend is the direction of a metric change from the performance point of
// view: up is always better, whichever way the raw value moved.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
	TrendFlat Trend = "flat"
)

// MetricChange compares one metric between two runs.
type MetricChange struct {
	Metric   string  `json:"metric"`
	Label    string  `json:"label"`
	Current  float64 `json:"current"`
	Previous float64 `json:"previous"`
	// ChangePct is the relative change against Previous, rounded to one
	// decimal. It is 0 when Previous is 0.
	ChangePct     float64 `json:"change_pct"`
	LowerIsBetter bool    `json:"lower_is_better"`
	Trend         Trend   `json:"trend"`
}

// RunRef identifies a run inside a comparison.
type RunRef struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// Comparison is the period-over-period view of two saved runs.
type Comparison struct {
	Current  RunRef         `json:"current"`
	Previous RunRef         `json:"previous"`
	Metrics  []MetricChange `json:"metrics"`
	// Summary lists the notable improvements and declines in Korean.
	Summary string `json:"summary"`
}
