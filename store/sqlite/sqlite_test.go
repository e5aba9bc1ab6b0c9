package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aguaflow/waterdesk/billing"
	"github.com/aguaflow/waterdesk/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func addClient(t *testing.T, s *sqlite.Store, name, address string) *billing.Client {
	t.Helper()
	c, err := s.AddClient(context.Background(), name, address, "")
	require.NoError(t, err)
	return c
}

func addPayment(t *testing.T, s *sqlite.Store, clientID int64, date, status string) *billing.Payment {
	t.Helper()
	day, err := time.Parse("2006-01-02", date)
	require.NoError(t, err)
	p, err := s.AddPayment(context.Background(), billing.Payment{
		ClientID:    clientID,
		Amount:      decimal.NewFromInt(50),
		PaymentDate: day,
		Status:      status,
	})
	require.NoError(t, err)
	return p
}

// =============================================================================
// CLIENT STATUS VIEW
// =============================================================================

func TestListClients_NoHistoryDefaults(t *testing.T) {
	// GIVEN: a client with no payments and no consumption
	store := newTestStore(t)
	addClient(t, store, "Ana", "Calle 1")

	// WHEN: listing clients
	views, err := store.ListClients(context.Background())
	require.NoError(t, err)

	// THEN: one row with the documented defaults
	require.Len(t, views, 1)
	v := views[0]
	assert.Equal(t, "Ana", v.Name)
	assert.Equal(t, "", v.LastPaymentDate)
	assert.Equal(t, billing.PaymentPending, v.PaymentStatus)
	assert.Equal(t, 0.0, v.ExcessConsumption)
	assert.Equal(t, billing.StatusPending, v.DisplayStatus())
}

func TestListClients_LatestPaymentWins(t *testing.T) {
	store := newTestStore(t)
	c := addClient(t, store, "Ana", "Calle 1")

	// Older pending payment, newer paid payment.
	addPayment(t, store, c.ID, "2024-01-15", billing.PaymentPending)
	addPayment(t, store, c.ID, "2024-03-01", billing.PaymentPaid)

	views, err := store.ListClients(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)

	assert.Equal(t, "2024-03-01", views[0].LastPaymentDate)
	assert.Equal(t, billing.PaymentPaid, views[0].PaymentStatus)
	assert.Equal(t, billing.StatusPaid, views[0].DisplayStatus())
}

func TestListClients_ExcessOverridesPaid(t *testing.T) {
	store := newTestStore(t)
	c := addClient(t, store, "Ana", "Calle 1")
	addPayment(t, store, c.ID, "2024-03-01", billing.PaymentPaid)

	_, err := store.UpsertConsumption(context.Background(), billing.ConsumptionRecord{
		ClientID:          c.ID,
		Month:             "03",
		Year:              2024,
		ExcessConsumption: 5,
	})
	require.NoError(t, err)

	views, err := store.ListClients(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)

	assert.Equal(t, 5.0, views[0].ExcessConsumption)
	assert.Equal(t, billing.StatusExcess, views[0].DisplayStatus())
}

func TestListClients_SameDatePaymentsDeterministic(t *testing.T) {
	// Two payments on the same date: the later-inserted row (higher id)
	// must be chosen, every time.
	store := newTestStore(t)
	c := addClient(t, store, "Ana", "Calle 1")
	addPayment(t, store, c.ID, "2024-03-01", billing.PaymentPending)
	addPayment(t, store, c.ID, "2024-03-01", billing.PaymentPaid)

	for i := 0; i < 5; i++ {
		views, err := store.ListClients(context.Background())
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, billing.PaymentPaid, views[0].PaymentStatus)
	}
}

func TestListClients_OrderedByName(t *testing.T) {
	store := newTestStore(t)
	addClient(t, store, "Carlos", "Calle 3")
	addClient(t, store, "Ana", "Calle 1")
	addClient(t, store, "Beatriz", "Calle 2")

	views, err := store.ListClients(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 3)
	assert.Equal(t, "Ana", views[0].Name)
	assert.Equal(t, "Beatriz", views[1].Name)
	assert.Equal(t, "Carlos", views[2].Name)
}

// =============================================================================
// SEARCH
// =============================================================================

func TestSearchClients_SubstringAndCase(t *testing.T) {
	store := newTestStore(t)
	addClient(t, store, "Ana Maria", "Calle 1")
	addClient(t, store, "Beatriz", "Avenida Central")

	ctx := context.Background()

	byName, err := store.SearchClients(ctx, "ana")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "Ana Maria", byName[0].Name)

	byAddress, err := store.SearchClients(ctx, "avenida")
	require.NoError(t, err)
	require.Len(t, byAddress, 1)
	assert.Equal(t, "Beatriz", byAddress[0].Name)

	none, err := store.SearchClients(ctx, "zzz")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSearchClients_WildcardsMatchLiterally(t *testing.T) {
	store := newTestStore(t)
	addClient(t, store, "Lote 50% A", "Calle 1")
	addClient(t, store, "Lote 500 B", "Calle 2")
	addClient(t, store, "Lote a_c", "Calle 3")
	addClient(t, store, "Lote abc", "Calle 4")

	ctx := context.Background()

	percent, err := store.SearchClients(ctx, "50%")
	require.NoError(t, err)
	require.Len(t, percent, 1)
	assert.Equal(t, "Lote 50% A", percent[0].Name)

	underscore, err := store.SearchClients(ctx, "a_c")
	require.NoError(t, err)
	require.Len(t, underscore, 1)
	assert.Equal(t, "Lote a_c", underscore[0].Name)
}

func TestSearchClients_ByIDAsText(t *testing.T) {
	store := newTestStore(t)
	c := addClient(t, store, "Ana", "Calle 1")

	views, err := store.SearchClients(context.Background(), "1")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, c.ID, views[0].ID)
}

func TestSearchClients_EmptyTermEqualsList(t *testing.T) {
	store := newTestStore(t)
	addClient(t, store, "Carlos", "Calle 3")
	addClient(t, store, "Ana", "Calle 1")

	ctx := context.Background()
	listed, err := store.ListClients(ctx)
	require.NoError(t, err)
	searched, err := store.SearchClients(ctx, "")
	require.NoError(t, err)

	assert.Equal(t, listed, searched)
}

// =============================================================================
// CLIENT CRUD
// =============================================================================

func TestAddClient_AssignsUniqueIDs(t *testing.T) {
	store := newTestStore(t)
	a := addClient(t, store, "Ana", "Calle 1")
	b := addClient(t, store, "Beatriz", "Calle 2")

	assert.NotZero(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, billing.ClientActive, a.Status)
}

func TestUpdateClient_ReplacesFieldsAndRefreshesUpdatedAt(t *testing.T) {
	store := newTestStore(t)
	c := addClient(t, store, "Ana", "Calle 1")

	updated, err := store.UpdateClient(context.Background(), c.ID, "Ana Maria", "Calle 2", billing.ClientInactive)
	require.NoError(t, err)

	assert.Equal(t, "Ana Maria", updated.Name)
	assert.Equal(t, "Calle 2", updated.Address)
	assert.Equal(t, billing.ClientInactive, updated.Status)
	assert.False(t, updated.UpdatedAt.Before(c.UpdatedAt))
}

func TestUpdateClient_MissingIDIsNotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.UpdateClient(context.Background(), 999, "Nadie", "Ninguna", billing.ClientActive)
	assert.ErrorIs(t, err, billing.ErrClientNotFound)
}

func TestGetClient_AbsentIsNilNotError(t *testing.T) {
	store := newTestStore(t)

	c, err := store.GetClient(context.Background(), 999)
	require.NoError(t, err)
	assert.Nil(t, c)
}

// =============================================================================
// PAYMENTS
// =============================================================================

func TestListPayments_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	c := addClient(t, store, "Ana", "Calle 1")
	addPayment(t, store, c.ID, "2024-01-15", billing.PaymentPaid)
	addPayment(t, store, c.ID, "2024-03-01", billing.PaymentPaid)
	addPayment(t, store, c.ID, "2024-02-10", billing.PaymentPending)

	payments, err := store.ListPayments(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, payments, 3)

	assert.Equal(t, "2024-03-01", payments[0].PaymentDate.Format("2006-01-02"))
	assert.Equal(t, "2024-02-10", payments[1].PaymentDate.Format("2006-01-02"))
	assert.Equal(t, "2024-01-15", payments[2].PaymentDate.Format("2006-01-02"))
}

func TestAddPayment_AmountRoundTripsExactly(t *testing.T) {
	store := newTestStore(t)
	c := addClient(t, store, "Ana", "Calle 1")

	amount := decimal.RequireFromString("123.45")
	_, err := store.AddPayment(context.Background(), billing.Payment{
		ClientID:    c.ID,
		Amount:      amount,
		PaymentDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	payments, err := store.ListPayments(context.Background(), c.ID)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.True(t, amount.Equal(payments[0].Amount))
	// Status defaulted to paid.
	assert.Equal(t, billing.PaymentPaid, payments[0].Status)
}

func TestListPaymentsByDate_FiltersByCalendarDay(t *testing.T) {
	store := newTestStore(t)
	ana := addClient(t, store, "Ana", "Calle 1")
	bea := addClient(t, store, "Beatriz", "Calle 2")

	addPayment(t, store, ana.ID, "2024-03-01", billing.PaymentPaid)
	addPayment(t, store, bea.ID, "2024-03-01", billing.PaymentPending)
	addPayment(t, store, ana.ID, "2024-03-02", billing.PaymentPaid)

	day := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	result, err := store.ListPaymentsByDate(context.Background(), day)
	require.NoError(t, err)
	require.Len(t, result, 2)

	names := []string{result[0].ClientName, result[1].ClientName}
	assert.Contains(t, names, "Ana")
	assert.Contains(t, names, "Beatriz")
	for _, pc := range result {
		assert.Equal(t, "2024-03-01", pc.PaymentDate.Format("2006-01-02"))
		assert.NotEmpty(t, pc.ClientAddress)
	}
}

func TestListPaymentsByDate_IgnoresTimeOfDay(t *testing.T) {
	store := newTestStore(t)
	c := addClient(t, store, "Ana", "Calle 1")

	_, err := store.AddPayment(context.Background(), billing.Payment{
		ClientID:    c.ID,
		Amount:      decimal.NewFromInt(50),
		PaymentDate: time.Date(2024, 3, 1, 16, 45, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	result, err := store.ListPaymentsByDate(context.Background(),
		time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, result, 1)
}

// =============================================================================
// CONSUMPTION UPSERT
// =============================================================================

func TestUpsertConsumption_SecondCallWinsKeepsRow(t *testing.T) {
	store := newTestStore(t)
	c := addClient(t, store, "Ana", "Calle 1")
	ctx := context.Background()

	first, err := store.UpsertConsumption(ctx, billing.ConsumptionRecord{
		ClientID:          c.ID,
		Month:             "03",
		Year:              2024,
		NormalConsumption: 10,
		ExcessConsumption: 0,
		Notes:             "first reading",
	})
	require.NoError(t, err)

	second, err := store.UpsertConsumption(ctx, billing.ConsumptionRecord{
		ClientID:          c.ID,
		Month:             "03",
		Year:              2024,
		NormalConsumption: 12,
		ExcessConsumption: 3,
		Notes:             "corrected",
	})
	require.NoError(t, err)

	// Same row: id and created_at preserved, values replaced.
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, 12.0, second.NormalConsumption)
	assert.Equal(t, 3.0, second.ExcessConsumption)
	assert.Equal(t, "corrected", second.Notes)

	// Exactly one record for the key.
	records, err := store.ListConsumption(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestUpsertConsumption_DistinctPeriodsCoexist(t *testing.T) {
	store := newTestStore(t)
	c := addClient(t, store, "Ana", "Calle 1")
	ctx := context.Background()

	_, err := store.UpsertConsumption(ctx, billing.ConsumptionRecord{ClientID: c.ID, Month: "02", Year: 2024})
	require.NoError(t, err)
	_, err = store.UpsertConsumption(ctx, billing.ConsumptionRecord{ClientID: c.ID, Month: "03", Year: 2024})
	require.NoError(t, err)
	_, err = store.UpsertConsumption(ctx, billing.ConsumptionRecord{ClientID: c.ID, Month: "03", Year: 2025})
	require.NoError(t, err)

	records, err := store.ListConsumption(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

// =============================================================================
// DASHBOARD
// =============================================================================

func TestDashboardStats_CountsAreNotExclusive(t *testing.T) {
	// A client with an old pending payment and a newer paid one counts as
	// both with-debt and paid. The aggregates scan all records, unlike the
	// latest-only display status.
	store := newTestStore(t)
	c := addClient(t, store, "Ana", "Calle 1")
	addPayment(t, store, c.ID, "2024-01-15", billing.PaymentPending)
	addPayment(t, store, c.ID, "2024-03-01", billing.PaymentPaid)

	stats, err := store.DashboardStats(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, stats.TotalClients)
	assert.Equal(t, 1, stats.ClientsWithDebt)
	assert.Equal(t, 1, stats.ClientsPaid)
	assert.Equal(t, 0, stats.ExcessConsumptionCount)

	// Meanwhile the per-row badge uses only the latest payment.
	views, err := store.ListClients(context.Background())
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, billing.StatusPaid, views[0].DisplayStatus())
}

func TestDashboardStats_NoPaymentsCountsAsDebt(t *testing.T) {
	store := newTestStore(t)
	addClient(t, store, "Ana", "Calle 1")

	stats, err := store.DashboardStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalClients)
	assert.Equal(t, 1, stats.ClientsWithDebt)
	assert.Equal(t, 0, stats.ClientsPaid)
}

func TestDashboardStats_InactiveClientsExcluded(t *testing.T) {
	store := newTestStore(t)
	c := addClient(t, store, "Ana", "Calle 1")
	_, err := store.UpdateClient(context.Background(), c.ID, c.Name, c.Address, billing.ClientInactive)
	require.NoError(t, err)

	stats, err := store.DashboardStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalClients)
	assert.Equal(t, 0, stats.ClientsWithDebt)
	assert.Equal(t, 0, stats.ClientsPaid)
}

func TestDashboardStats_ExcessCountsAnyRecord(t *testing.T) {
	// Excess on an OLD reading still counts, even when the latest reading
	// has none.
	store := newTestStore(t)
	c := addClient(t, store, "Ana", "Calle 1")
	ctx := context.Background()

	_, err := store.UpsertConsumption(ctx, billing.ConsumptionRecord{
		ClientID: c.ID, Month: "02", Year: 2024, ExcessConsumption: 7,
	})
	require.NoError(t, err)
	_, err = store.UpsertConsumption(ctx, billing.ConsumptionRecord{
		ClientID: c.ID, Month: "03", Year: 2024, ExcessConsumption: 0,
	})
	require.NoError(t, err)

	stats, err := store.DashboardStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.ExcessConsumptionCount)
}

// =============================================================================
// CREDENTIAL
// =============================================================================

func TestVerifyPIN_DefaultSeed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	ok, err := store.VerifyPIN(ctx, sqlite.DefaultPIN)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.VerifyPIN(ctx, "0000")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdatePIN_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpdatePIN(ctx, "9876"))

	ok, err := store.VerifyPIN(ctx, "9876")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.VerifyPIN(ctx, sqlite.DefaultPIN)
	require.NoError(t, err)
	assert.False(t, ok)
}

// =============================================================================
// UTILITIES
// =============================================================================

func TestReset_ClearsDataKeepsCredential(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := addClient(t, store, "Ana", "Calle 1")
	addPayment(t, store, c.ID, "2024-03-01", billing.PaymentPaid)
	_, err := store.UpsertConsumption(ctx, billing.ConsumptionRecord{
		ClientID: c.ID, Month: "03", Year: 2024, NormalConsumption: 10,
	})
	require.NoError(t, err)

	require.NoError(t, store.Reset(ctx))

	clients, err := store.ListClients(ctx)
	require.NoError(t, err)
	assert.Empty(t, clients)

	payments, err := store.ListPayments(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, payments)

	records, err := store.ListConsumption(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, records)

	ok, err := store.VerifyPIN(ctx, sqlite.DefaultPIN)
	require.NoError(t, err)
	assert.True(t, ok)
}
