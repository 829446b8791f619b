package model

import "time"

// Verdict is the reconciliation outcome for one transaction version.
type Verdict struct {
	UpdatedAt            time.Time
	TransactionID        string
	RunID                string
	Notes                []string
	ActualVendorAmount   float64
	ExpectedVendorAmount float64
	TransactionVersion   int
	Reconciled           bool
	Automatic            bool
}

// IsCurrent reports whether the verdict was computed against the given transaction version.
func (v *Verdict) IsCurrent(txn *Transaction) bool {
	return v != nil && txn != nil && v.TransactionVersion == txn.Version
}

// ValidationRun records one batch sweep over the transaction history.
type ValidationRun struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Since      time.Time
	ID         string
	Processed  int
	Skipped    int
	Failed     int
	Reconciled int
}
