package domain

import "time"

// Report is a stored reconciliation run for one bridge instance.
type Report struct {
	RunID     string          `json:"run_id"`
	Bridge    string          `json:"bridge"`
	CreatedAt time.Time       `json:"created_at"`
	Result    AggregateResult `json:"result"`
}
