package audit

import "time"

// Entry represents one recorded pipeline run.
type Entry struct {
	Seq      uint64     `json:"seq"`
	Time     time.Time  `json:"ts"`
	PrevHash string     `json:"prev_hash"`
	RunID    string     `json:"run_id"`
	Tokens   []string   `json:"tokens"`          // raw token stream
	Stages   [][]string `json:"stages"`          // argv of each stage after segmentation
	Outcomes []string   `json:"outcomes"`        // per-stage outcome, stage order
	ExitCode int        `json:"exit_code"`       // aggregate
	Error    string     `json:"error,omitempty"` // parent-side failure, if any
	Duration float64    `json:"duration_ms"`     // wall time in milliseconds
	Cwd      string     `json:"cwd"`             // working directory
	Hash     string     `json:"hash"`            // SHA-256 of this entry (with hash field empty)
}
