/*
store.go - Storage interface for the billing query layer

PURPOSE:
  Defines the full set of operations the API layer depends on. Handlers are
  constructed with this interface (dependency injection), never with a
  concrete store, so tests and future backends can substitute freely.

CONTRACTS:
  - Every operation re-reads the database; no call depends on another.
  - List/Search return one row per client regardless of history, ordered by
    name ascending. Search matches name, address or id-as-text, substring,
    case-insensitively; the empty term matches everything.
  - GetClient returns nil, nil when the client is absent.
  - UpdateClient returns ErrClientNotFound when zero rows match.
  - UpsertConsumption is a single atomic insert-or-update keyed on
    (client_id, month, year); the existing row's id and created_at survive.
  - VerifyPIN returns store errors as errors, never as a false match.

SEE ALSO:
  - store/sqlite: the SQLite implementation
*/
package billing

import (
	"context"
	"time"
)

// Store is the persistence and query interface for the billing domain.
type Store interface {
	// Credential.
	VerifyPIN(ctx context.Context, candidate string) (bool, error)
	UpdatePIN(ctx context.Context, newPIN string) error

	// Clients.
	ListClients(ctx context.Context) ([]ClientStatusView, error)
	SearchClients(ctx context.Context, term string) ([]ClientStatusView, error)
	AddClient(ctx context.Context, name, address, status string) (*Client, error)
	UpdateClient(ctx context.Context, id int64, name, address, status string) (*Client, error)
	GetClient(ctx context.Context, id int64) (*Client, error)

	// Payments.
	AddPayment(ctx context.Context, p Payment) (*Payment, error)
	ListPayments(ctx context.Context, clientID int64) ([]Payment, error)
	ListPaymentsByDate(ctx context.Context, day time.Time) ([]PaymentWithClient, error)

	// Consumption.
	UpsertConsumption(ctx context.Context, rec ConsumptionRecord) (*ConsumptionRecord, error)
	ListConsumption(ctx context.Context, clientID int64) ([]ConsumptionRecord, error)

	// Dashboard.
	DashboardStats(ctx context.Context) (*DashboardStats, error)
}
