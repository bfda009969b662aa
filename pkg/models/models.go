package models

// RemovedLease describes a lease block dropped from the lease file
type RemovedLease struct {
	Address   string `json:"mac"`
	FirstLine string `json:"lease"`
}

// RewriteResult holds the outcome of a single rewrite pass
type RewriteResult struct {
	OriginalCount int            `json:"originalCount"`
	NewCount      int            `json:"newCount"`
	Removed       []RemovedLease `json:"removed"`
	Truncated     bool           `json:"truncated"`
}

// RemovedCount returns the number of lease blocks that did not survive the rewrite
func (r *RewriteResult) RemovedCount() int {
	return r.OriginalCount - r.NewCount
}

// Summary is reported at the end of a reconciliation run
type Summary struct {
	Addresses     int            `json:"addresses"`
	Removed       int            `json:"removed"`
	Total         int            `json:"total"`
	Remaining     int            `json:"remaining"`
	RemovedLeases []RemovedLease `json:"removedLeases"`
	BackupFile    string         `json:"backupFile"`
	DryRun        bool           `json:"dryRun"`
	Truncated     bool           `json:"truncated"`
}
