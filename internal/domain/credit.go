package domain

import "time"

// CreditBalance is the one piece of mutable shared state in the system.
// Amount never goes negative and is only ever mutated through the ledger's
// ApplyDelta operation.
type CreditBalance struct {
	OwnerID string
	Amount  int64
}

// SettlementRecord marks an external event as applied to a balance. The
// existence of a record for a given ExternalEventID is the sole source of
// truth for "already applied"; at most one record exists per event.
type SettlementRecord struct {
	ExternalEventID string
	AppliedAt       time.Time
}
