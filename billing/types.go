/*
types.go - Core domain types for the water-billing system

PURPOSE:
  Defines the entities persisted by the store (clients, payments, consumption
  records) and the derived views computed per query (client status rows,
  dashboard aggregates). These types carry no behavior beyond status
  derivation; all persistence lives in store/sqlite.

ENTITIES:
  Client:             Identity + active/inactive flag. Never hard-deleted.
  Payment:            Immutable once recorded. Amount is a decimal, not float.
  ConsumptionRecord:  One per (client, month, year); upserted in place.

DERIVED:
  ClientStatusView:   Client joined with its latest payment and latest
                      consumption reading. Recomputed from the store on every
                      query - there is no application-level cache.
  DashboardStats:     Four distinct-client counts over ALL historical records
                      (deliberately broader than the latest-only view rows).

SEE ALSO:
  - status.go: DisplayStatus derivation rules
  - store.go:  Store interface exposing these types
*/
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// Client statuses.
const (
	ClientActive   = "active"
	ClientInactive = "inactive"
)

// Payment statuses.
const (
	PaymentPaid    = "paid"
	PaymentPending = "pending"
)

// Client is a billed water-service customer.
type Client struct {
	ID        int64
	Name      string
	Address   string
	Status    string // active | inactive
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Payment is a recorded payment for a client. Payments are immutable once
// created; there is no update or delete operation.
type Payment struct {
	ID          int64
	ClientID    int64
	Amount      decimal.Decimal
	PaymentDate time.Time
	Status      string // paid | pending
	CreatedAt   time.Time
}

// PaymentWithClient joins a payment with the owning client's identity.
// Used by the day-view calendar ("what payments happened on day D").
type PaymentWithClient struct {
	Payment
	ClientName    string
	ClientAddress string
}

// ConsumptionRecord is a monthly meter reading for a client. Exactly one
// record exists per (client, month, year); registering the same period again
// replaces the numeric fields and notes in place.
type ConsumptionRecord struct {
	ID                int64
	ClientID          int64
	Month             string // two-digit month, e.g. "03"
	Year              int
	NormalConsumption float64
	ExcessConsumption float64
	Notes             string
	CreatedAt         time.Time
}

// ClientStatusView is a client row joined with its most recent payment and
// most recent consumption reading. Clients with no history still produce a
// row, with the documented defaults.
type ClientStatusView struct {
	Client
	LastPaymentDate   string  // calendar date of the latest payment, "" if none
	PaymentStatus     string  // status of the latest payment, "pending" if none
	ExcessConsumption float64 // excess on the latest consumption record, 0 if none
}

// DashboardStats holds the four aggregate counters shown on the dashboard.
// Note that these are computed over every historical record, not just the
// latest one per client, so they can disagree with per-row DisplayStatus
// badges for the same client. That asymmetry is intentional.
type DashboardStats struct {
	TotalClients           int `json:"totalClients"`
	ClientsWithDebt        int `json:"clientsWithDebt"`
	ClientsPaid            int `json:"clientsPaid"`
	ExcessConsumptionCount int `json:"excessConsumptionCount"`
}
