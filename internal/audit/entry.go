package audit

import "time"

// Entry represents one evaluated command line in the audit log.
type Entry struct {
	Seq      uint64    `json:"seq"`
	Time     time.Time `json:"ts"`
	PrevHash string    `json:"prev_hash"`
	Command  string    `json:"command"`         // the command line as evaluated
	Verbs    []string  `json:"verbs"`           // leaf verbs, left to right
	ExitCode int       `json:"exit_code"`       // 0 = success
	Error    string    `json:"error,omitempty"` // engine error, if any
	Duration float64   `json:"duration_ms"`     // evaluation time in milliseconds
	Cwd      string    `json:"cwd"`             // interpreter working directory
	Hash     string    `json:"hash"`            // SHA-256 of this entry (with hash field empty)
}
