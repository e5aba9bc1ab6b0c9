/*
Package sqlite provides the SQLite-backed implementation of billing.Store.

PURPOSE:
  Implements the whole status aggregation and query layer over a single local
  database file. Every operation is stateless between calls and re-reads the
  database; derived views are computed per query, never cached.

KEY TABLES:
  admin:        Single-row credential (bcrypt hash of the operator PIN)
  clients:      Customer identity and active/inactive status
  payments:     Immutable payment history
  consumption:  Monthly meter readings, unique per (client_id, month, year)

LATEST-ROW-PER-CLIENT JOIN:
  List/Search attach each client's most recent payment and most recent
  consumption record via ROW_NUMBER() window subqueries. Ties on the ordering
  date are broken by row id descending so the chosen row is deterministic.

ATOMIC UPSERT:
  Consumption registration uses INSERT ... ON CONFLICT DO UPDATE against the
  unique (client_id, month, year) index, so concurrent registrations of the
  same period cannot double-insert. The existing row keeps its id and
  created_at.

SEEDING:
  On first initialization, an empty admin table is seeded with the default
  PIN. This is the only data the store creates without an explicit caller
  request.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't block the
  single writer.

USAGE:
  store, err := sqlite.New("./data/agua.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"github.com/aguaflow/waterdesk/billing"
)

// DefaultPIN seeds the admin table on first run. Operators are expected to
// change it through UpdatePIN.
const DefaultPIN = "1234"

// Store implements billing.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ billing.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// The store mutex serializes access anyway; one connection also keeps
	// ":memory:" databases stable across calls.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the schema idempotently and seeds the credential row.
func (s *Store) migrate() error {
	schema := `
	-- Admin credential (single row, bcrypt hash)
	CREATE TABLE IF NOT EXISTS admin (
		id INTEGER PRIMARY KEY,
		pin TEXT NOT NULL
	);

	-- Clients
	CREATE TABLE IF NOT EXISTS clients (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_clients_name ON clients(name);

	-- Payments (immutable history; client_id is advisory, not enforced)
	CREATE TABLE IF NOT EXISTS payments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id INTEGER NOT NULL,
		amount TEXT NOT NULL,
		payment_date TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'paid',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payments_client_date
		ON payments(client_id, payment_date DESC);

	-- Consumption readings, one per client/month/year
	CREATE TABLE IF NOT EXISTS consumption (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id INTEGER NOT NULL,
		month TEXT NOT NULL,
		year INTEGER NOT NULL,
		normal_consumption REAL NOT NULL DEFAULT 0,
		excess_consumption REAL NOT NULL DEFAULT 0,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	-- Backs the atomic upsert
	CREATE UNIQUE INDEX IF NOT EXISTS idx_consumption_period
		ON consumption(client_id, month, year);

	CREATE INDEX IF NOT EXISTS idx_consumption_client_created
		ON consumption(client_id, created_at DESC);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	return s.seedCredential()
}

// seedCredential inserts the default PIN hash if the admin table is empty.
func (s *Store) seedCredential() error {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM admin").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultPIN), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.db.Exec("INSERT INTO admin (id, pin) VALUES (1, ?)", string(hash))
	return err
}

// =============================================================================
// CREDENTIAL
// =============================================================================

// VerifyPIN checks a candidate PIN against the stored credential.
// A store failure is returned as an error, never folded into false.
func (s *Store) VerifyPIN(ctx context.Context, candidate string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hash string
	err := s.db.QueryRowContext(ctx, "SELECT pin FROM admin WHERE id = 1").Scan(&hash)
	if err == sql.ErrNoRows {
		return false, billing.ErrCredentialMissing
	}
	if err != nil {
		return false, fmt.Errorf("failed to read credential: %w", err)
	}

	switch err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(candidate)); err {
	case nil:
		return true, nil
	case bcrypt.ErrMismatchedHashAndPassword:
		return false, nil
	default:
		return false, fmt.Errorf("failed to compare credential: %w", err)
	}
}

// UpdatePIN replaces the stored credential with a hash of newPIN.
func (s *Store) UpdatePIN(ctx context.Context, newPIN string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash, err := bcrypt.GenerateFromPassword([]byte(newPIN), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, "UPDATE admin SET pin = ? WHERE id = 1", string(hash))
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return billing.ErrCredentialMissing
	}
	return nil
}

// =============================================================================
// CLIENTS
// =============================================================================

// clientStatusSelect joins every client with its latest payment (by
// payment_date) and latest consumption record (by created_at). Date ties are
// broken by id DESC so the chosen row is always the same.
const clientStatusSelect = `
	SELECT c.id, c.name, c.address, c.status, c.created_at, c.updated_at,
	       COALESCE(DATE(lp.payment_date), '') AS last_payment_date,
	       COALESCE(lp.status, 'pending') AS payment_status,
	       COALESCE(lc.excess_consumption, 0) AS excess_consumption
	FROM clients c
	LEFT JOIN (
		SELECT client_id, payment_date, status,
		       ROW_NUMBER() OVER (PARTITION BY client_id ORDER BY payment_date DESC, id DESC) AS rn
		FROM payments
	) lp ON lp.client_id = c.id AND lp.rn = 1
	LEFT JOIN (
		SELECT client_id, excess_consumption,
		       ROW_NUMBER() OVER (PARTITION BY client_id ORDER BY created_at DESC, id DESC) AS rn
		FROM consumption
	) lc ON lc.client_id = c.id AND lc.rn = 1
`

// ListClients returns every client with its derived latest-payment and
// latest-consumption fields, ordered by name.
func (s *Store) ListClients(ctx context.Context) ([]billing.ClientStatusView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryClientStatus(ctx, clientStatusSelect+" ORDER BY c.name")
}

// likeEscaper neutralizes LIKE metacharacters so search terms always match
// literally. Queries using the escaped pattern must carry ESCAPE '\'.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchClients restricts ListClients to clients whose name, address or id
// (as text) contains term as a substring. SQLite LIKE is case-insensitive
// for ASCII, matching the store's default collation.
func (s *Store) SearchClients(ctx context.Context, term string) ([]billing.ClientStatusView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := clientStatusSelect + `
	WHERE c.name LIKE ? ESCAPE '\'
	   OR c.address LIKE ? ESCAPE '\'
	   OR CAST(c.id AS TEXT) LIKE ? ESCAPE '\'
	ORDER BY c.name`

	pattern := "%" + likeEscaper.Replace(term) + "%"
	return s.queryClientStatus(ctx, query, pattern, pattern, pattern)
}

func (s *Store) queryClientStatus(ctx context.Context, query string, args ...any) ([]billing.ClientStatusView, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query client status: %w", err)
	}
	defer rows.Close()

	var views []billing.ClientStatusView
	for rows.Next() {
		var (
			v                    billing.ClientStatusView
			createdAt, updatedAt string
		)
		if err := rows.Scan(
			&v.ID, &v.Name, &v.Address, &v.Status, &createdAt, &updatedAt,
			&v.LastPaymentDate, &v.PaymentStatus, &v.ExcessConsumption,
		); err != nil {
			return nil, fmt.Errorf("failed to scan client status: %w", err)
		}
		v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		v.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		views = append(views, v)
	}
	return views, rows.Err()
}

// AddClient creates a client. Status defaults to active when empty.
func (s *Store) AddClient(ctx context.Context, name, address, status string) (*billing.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if status == "" {
		status = billing.ClientActive
	}

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO clients (name, address, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		name, address, status, now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert client: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read client id: %w", err)
	}

	return &billing.Client{
		ID:        id,
		Name:      name,
		Address:   address,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// UpdateClient replaces the three mutable fields and refreshes updated_at.
// Returns ErrClientNotFound when no row matches id.
func (s *Store) UpdateClient(ctx context.Context, id int64, name, address, status string) (*billing.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		"UPDATE clients SET name = ?, address = ?, status = ?, updated_at = ? WHERE id = ?",
		name, address, status, now.Format(time.RFC3339), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update client: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, billing.ErrClientNotFound
	}

	return s.getClient(ctx, id)
}

// GetClient returns a client by id, or nil, nil when absent.
func (s *Store) GetClient(ctx context.Context, id int64) (*billing.Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.getClient(ctx, id)
}

// getClient is the lock-free lookup shared by GetClient and UpdateClient.
func (s *Store) getClient(ctx context.Context, id int64) (*billing.Client, error) {
	var (
		c                    billing.Client
		createdAt, updatedAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, address, status, created_at, updated_at FROM clients WHERE id = ?",
		id,
	).Scan(&c.ID, &c.Name, &c.Address, &c.Status, &createdAt, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	c.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &c, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

// AddPayment records a payment. Status defaults to paid when empty. The
// referenced client is not checked for existence, matching the store's
// advisory foreign-key behavior.
func (s *Store) AddPayment(ctx context.Context, p billing.Payment) (*billing.Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.Status == "" {
		p.Status = billing.PaymentPaid
	}
	p.CreatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO payments (client_id, amount, payment_date, status, created_at) VALUES (?, ?, ?, ?, ?)",
		p.ClientID,
		p.Amount.String(),
		p.PaymentDate.UTC().Format(time.RFC3339),
		p.Status,
		p.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert payment: %w", err)
	}

	p.ID, err = res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read payment id: %w", err)
	}
	return &p, nil
}

// ListPayments returns a client's payments, newest payment date first.
func (s *Store) ListPayments(ctx context.Context, clientID int64) ([]billing.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, client_id, amount, payment_date, status, created_at
		 FROM payments WHERE client_id = ?
		 ORDER BY payment_date DESC, id DESC`,
		clientID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []billing.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// ListPaymentsByDate returns all payments whose calendar date equals day,
// joined with the owning client's name and address. Time-of-day is ignored.
func (s *Store) ListPaymentsByDate(ctx context.Context, day time.Time) ([]billing.PaymentWithClient, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT p.id, p.client_id, p.amount, p.payment_date, p.status, p.created_at,
		        c.name, c.address
		 FROM payments p
		 JOIN clients c ON c.id = p.client_id
		 WHERE DATE(p.payment_date) = ?
		 ORDER BY p.payment_date DESC, p.id DESC`,
		day.Format("2006-01-02"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments by date: %w", err)
	}
	defer rows.Close()

	var result []billing.PaymentWithClient
	for rows.Next() {
		var (
			pc                       billing.PaymentWithClient
			amount, payDate, created string
		)
		if err := rows.Scan(&pc.ID, &pc.ClientID, &amount, &payDate, &pc.Payment.Status,
			&created, &pc.ClientName, &pc.ClientAddress); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		pc.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("corrupt payment amount %q: %w", amount, err)
		}
		pc.PaymentDate, _ = time.Parse(time.RFC3339, payDate)
		pc.Payment.CreatedAt, _ = time.Parse(time.RFC3339, created)
		result = append(result, pc)
	}
	return result, rows.Err()
}

func scanPayment(rows *sql.Rows) (billing.Payment, error) {
	var (
		p                        billing.Payment
		amount, payDate, created string
	)
	if err := rows.Scan(&p.ID, &p.ClientID, &amount, &payDate, &p.Status, &created); err != nil {
		return p, fmt.Errorf("failed to scan payment: %w", err)
	}

	var err error
	p.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return p, fmt.Errorf("corrupt payment amount %q: %w", amount, err)
	}
	p.PaymentDate, _ = time.Parse(time.RFC3339, payDate)
	p.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return p, nil
}

// =============================================================================
// CONSUMPTION
// =============================================================================

// UpsertConsumption inserts or updates the reading for (client, month, year)
// in one atomic statement. On update the existing row keeps its id and
// created_at; only the numeric fields and notes change.
func (s *Store) UpsertConsumption(ctx context.Context, rec billing.ConsumptionRecord) (*billing.ConsumptionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO consumption (client_id, month, year, normal_consumption, excess_consumption, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(client_id, month, year) DO UPDATE SET
			normal_consumption = excluded.normal_consumption,
			excess_consumption = excluded.excess_consumption,
			notes = excluded.notes
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ClientID, rec.Month, rec.Year,
		rec.NormalConsumption, rec.ExcessConsumption,
		nullString(rec.Notes),
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert consumption: %w", err)
	}

	// LastInsertId is not meaningful on the update path, so read the row back.
	return s.getConsumption(ctx, rec.ClientID, rec.Month, rec.Year)
}

func (s *Store) getConsumption(ctx context.Context, clientID int64, month string, year int) (*billing.ConsumptionRecord, error) {
	var (
		rec     billing.ConsumptionRecord
		notes   sql.NullString
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, client_id, month, year, normal_consumption, excess_consumption, notes, created_at
		 FROM consumption WHERE client_id = ? AND month = ? AND year = ?`,
		clientID, month, year,
	).Scan(&rec.ID, &rec.ClientID, &rec.Month, &rec.Year,
		&rec.NormalConsumption, &rec.ExcessConsumption, &notes, &created)
	if err != nil {
		return nil, fmt.Errorf("failed to read consumption: %w", err)
	}

	rec.Notes = notes.String
	rec.CreatedAt, _ = time.Parse(time.RFC3339, created)
	return &rec, nil
}

// ListConsumption returns a client's consumption history, newest first.
func (s *Store) ListConsumption(ctx context.Context, clientID int64) ([]billing.ConsumptionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, client_id, month, year, normal_consumption, excess_consumption, notes, created_at
		 FROM consumption WHERE client_id = ?
		 ORDER BY created_at DESC, id DESC`,
		clientID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query consumption: %w", err)
	}
	defer rows.Close()

	var records []billing.ConsumptionRecord
	for rows.Next() {
		var (
			rec     billing.ConsumptionRecord
			notes   sql.NullString
			created string
		)
		if err := rows.Scan(&rec.ID, &rec.ClientID, &rec.Month, &rec.Year,
			&rec.NormalConsumption, &rec.ExcessConsumption, &notes, &created); err != nil {
			return nil, fmt.Errorf("failed to scan consumption: %w", err)
		}
		rec.Notes = notes.String
		rec.CreatedAt, _ = time.Parse(time.RFC3339, created)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// =============================================================================
// DASHBOARD
// =============================================================================

// DashboardStats computes the four aggregate counts. These deliberately scan
// every historical record, not just the latest one per client: a client with
// an old pending payment and a newer paid one is counted under both
// clientsWithDebt and clientsPaid.
func (s *Store) DashboardStats(ctx context.Context) (*billing.DashboardStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stats billing.DashboardStats
	counts := []struct {
		dest  *int
		query string
	}{
		{&stats.TotalClients,
			"SELECT COUNT(*) FROM clients WHERE status = 'active'"},
		{&stats.ClientsWithDebt, `
			SELECT COUNT(DISTINCT c.id)
			FROM clients c
			LEFT JOIN payments p ON c.id = p.client_id
			WHERE c.status = 'active' AND (p.id IS NULL OR p.status = 'pending')`},
		{&stats.ClientsPaid, `
			SELECT COUNT(DISTINCT c.id)
			FROM clients c
			JOIN payments p ON c.id = p.client_id
			WHERE c.status = 'active' AND p.status = 'paid'`},
		{&stats.ExcessConsumptionCount, `
			SELECT COUNT(DISTINCT client_id)
			FROM consumption
			WHERE excess_consumption > 0`},
	}

	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("failed to compute dashboard stats: %w", err)
		}
	}
	return &stats, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data except the seeded credential (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"payments", "consumption", "clients"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if strings.TrimSpace(s) == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
