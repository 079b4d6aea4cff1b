package importer

import (
	"context"
	"io"
	"reflect"
	"testing"

	"github.com/sirupsen/logrus"

	"commission-service/internal/models"
)

// memStore is an in-memory Store used to exercise reconciliation
// semantics without a database.
type memStore struct {
	customers map[string]*models.Customer
	orders    map[string]*models.Order
	lineItems map[string]*models.LineItem
	flushes   int
}

func newMemStore() *memStore {
	return &memStore{
		customers: make(map[string]*models.Customer),
		orders:    make(map[string]*models.Order),
		lineItems: make(map[string]*models.LineItem),
	}
}

func (s *memStore) FindCustomer(_ context.Context, id string) (*models.Customer, error) {
	if c, ok := s.customers[id]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, nil
}

func (s *memStore) FindOrder(_ context.Context, soNumber string) (*models.Order, error) {
	if o, ok := s.orders[soNumber]; ok {
		copied := *o
		return &copied, nil
	}
	return nil, nil
}

func (s *memStore) Flush(_ context.Context, batch *Batch) error {
	s.flushes++
	for _, c := range batch.Customers {
		copied := *c
		s.customers[c.CustomerID] = &copied
	}
	for _, o := range batch.Orders {
		if existing, ok := s.orders[o.SONumber]; ok && existing.ManuallyLinked {
			continue
		}
		copied := *o
		s.orders[o.SONumber] = &copied
	}
	for _, li := range batch.LineItems {
		copied := *li
		s.lineItems[li.ItemKey] = &copied
	}
	return nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func baseRow(soNumber, soID, itemID string) Row {
	return Row{
		FieldSONumber:      soNumber,
		FieldSalesOrderID:  soID,
		FieldSOItemID:      itemID,
		FieldAccountID:     "ACCT-1",
		FieldCustomerName:  "Acme Supply",
		FieldIssuedDate:    "06-15-2025",
		FieldSalesPerson:   "jdoe",
		FieldProductNumber: "WIDGET-1",
		FieldQuantity:      "2",
		FieldUnitPrice:     "25.00",
		FieldTotalPrice:    "50.00",
	}
}

func TestReconciler_CreatesCustomerOrderAndItems(t *testing.T) {
	store := newMemStore()
	r := NewReconciler(store, testLogger(), 10)

	rows := []Row{
		baseRow("SO-100", "9001", "1"),
		baseRow("SO-100", "9001", "2"),
	}
	stats, err := r.Run(context.Background(), rows, nil)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if stats.CustomersCreated != 1 || stats.OrdersCreated != 1 || stats.ItemsCreated != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if len(store.lineItems) != 2 {
		t.Fatalf("expected 2 line items, got %d", len(store.lineItems))
	}

	order := store.orders["SO-100"]
	if order == nil {
		t.Fatal("order not persisted")
	}
	if order.CommissionMonth != "2025-06" || order.DateMethod != models.DateMethodIssued {
		t.Fatalf("unexpected order date fields: %+v", order)
	}

	customer := store.customers["ACCT-1"]
	if customer == nil || customer.AccountType != models.AccountTypeRetail {
		t.Fatalf("new customer should default to Retail, got %+v", customer)
	}
}

func TestReconciler_CompositeKeyDedup(t *testing.T) {
	store := newMemStore()
	r := NewReconciler(store, testLogger(), 10)

	// Same SO Item ID under different Sales Order IDs must produce two
	// distinct line items.
	rowA := baseRow("SO-100", "9001", "77")
	rowB := baseRow("SO-200", "9002", "77")
	if _, err := r.Run(context.Background(), []Row{rowA, rowB}, nil); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if len(store.lineItems) != 2 {
		t.Fatalf("expected 2 distinct line items, got %d", len(store.lineItems))
	}
	if store.lineItems["9001_77"] == nil || store.lineItems["9002_77"] == nil {
		t.Fatalf("composite keys missing: %v", keys(store.lineItems))
	}
}

func TestReconciler_SkipsRowsMissingIdentifiers(t *testing.T) {
	store := newMemStore()
	r := NewReconciler(store, testLogger(), 10)

	row := baseRow("SO-100", "9001", "1")
	row[FieldAccountID] = ""
	stats, err := r.Run(context.Background(), []Row{row}, nil)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if stats.Skipped != 1 || stats.Processed != 0 {
		t.Fatalf("expected 1 skipped, 0 processed, got %+v", stats)
	}
	if len(store.orders) != 0 || len(store.lineItems) != 0 {
		t.Fatal("nothing should be written for a skipped row")
	}
}

func TestReconciler_ProtectedOrderSkip(t *testing.T) {
	store := newMemStore()
	store.orders["SO-100"] = &models.Order{
		SONumber:        "SO-100",
		SalesOrderID:    "MANUAL",
		CustomerID:      "ACCT-9",
		CommissionMonth: "2024-01",
		ManuallyLinked:  true,
	}

	r := NewReconciler(store, testLogger(), 10)
	stats, err := r.Run(context.Background(), []Row{baseRow("SO-100", "9001", "1")}, nil)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if stats.OrdersUnchanged != 1 {
		t.Fatalf("expected ordersUnchanged=1, got %+v", stats)
	}
	if stats.OrdersCreated != 0 || stats.OrdersUpdated != 0 {
		t.Fatalf("protected order must not be counted as written: %+v", stats)
	}

	order := store.orders["SO-100"]
	if order.SalesOrderID != "MANUAL" || order.CommissionMonth != "2024-01" {
		t.Fatalf("protected order fields were touched: %+v", order)
	}
	// The line item still attaches; only the order header is protected.
	if stats.ItemsCreated != 1 {
		t.Fatalf("line item should still be written, got %+v", stats)
	}
}

func TestReconciler_SkipsOrderOnDateFailure(t *testing.T) {
	store := newMemStore()
	r := NewReconciler(store, testLogger(), 10)

	row := baseRow("SO-100", "9001", "1")
	row[FieldIssuedDate] = "junk"
	stats, err := r.Run(context.Background(), []Row{row}, nil)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	// Order write and line item write each skip independently.
	if stats.Skipped != 2 {
		t.Fatalf("expected 2 skips (order + item), got %+v", stats)
	}
	if len(store.orders) != 0 || len(store.lineItems) != 0 {
		t.Fatal("no writes expected on date failure")
	}
}

func TestReconciler_Idempotence(t *testing.T) {
	store := newMemStore()
	rows := []Row{
		baseRow("SO-100", "9001", "1"),
		baseRow("SO-100", "9001", "2"),
		baseRow("SO-200", "9002", "1"),
	}

	r := NewReconciler(store, testLogger(), 10)
	if _, err := r.Run(context.Background(), rows, nil); err != nil {
		t.Fatalf("first run error: %v", err)
	}

	firstOrders := snapshotOrders(store)
	firstItems := snapshotItems(store)

	r2 := NewReconciler(store, testLogger(), 10)
	stats, err := r2.Run(context.Background(), rows, nil)
	if err != nil {
		t.Fatalf("second run error: %v", err)
	}

	if stats.CustomersCreated != 0 {
		t.Fatalf("re-run must not create customers, got %+v", stats)
	}
	if stats.OrdersCreated != 0 || stats.OrdersUpdated != 2 {
		t.Fatalf("re-run should update existing orders, got %+v", stats)
	}
	if !reflect.DeepEqual(firstOrders, snapshotOrders(store)) {
		t.Fatal("order state diverged across identical runs")
	}
	if !reflect.DeepEqual(firstItems, snapshotItems(store)) {
		t.Fatal("line item state diverged across identical runs")
	}
}

func TestReconciler_BatchBoundariesAndProgress(t *testing.T) {
	store := newMemStore()
	r := NewReconciler(store, testLogger(), 4)

	var rows []Row
	for i := 0; i < 5; i++ {
		rows = append(rows, baseRow("SO-"+string(rune('A'+i)), "9"+string(rune('0'+i)), "1"))
	}

	var checkpoints []Progress
	_, err := r.Run(context.Background(), rows, func(p Progress) {
		checkpoints = append(checkpoints, p)
	})
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}

	if store.flushes < 2 {
		t.Fatalf("expected multiple batch flushes, got %d", store.flushes)
	}
	if len(checkpoints) == 0 {
		t.Fatal("expected progress checkpoints")
	}
	final := checkpoints[len(checkpoints)-1]
	if final.Percentage != 100 || final.CurrentRow != len(rows) {
		t.Fatalf("unexpected final checkpoint: %+v", final)
	}
	if len(store.lineItems) != 5 {
		t.Fatalf("final partial batch not flushed, items=%d", len(store.lineItems))
	}
}

func TestReconciler_RepLockedCustomerKeepsRep(t *testing.T) {
	store := newMemStore()
	store.customers["ACCT-1"] = &models.Customer{
		CustomerID:  "ACCT-1",
		Name:        "Acme Supply",
		AccountType: models.AccountTypeWholesale,
		SalesRep:    "protected-rep",
		RepLocked:   true,
	}

	r := NewReconciler(store, testLogger(), 10)
	if _, err := r.Run(context.Background(), []Row{baseRow("SO-100", "9001", "1")}, nil); err != nil {
		t.Fatalf("Run error: %v", err)
	}

	customer := store.customers["ACCT-1"]
	if customer.SalesRep != "protected-rep" {
		t.Fatalf("rep-locked customer rep was changed to %q", customer.SalesRep)
	}
	if customer.AccountType != models.AccountTypeWholesale {
		t.Fatalf("existing account type was rewritten to %q", customer.AccountType)
	}
}

func TestReconciler_StrictModeRejectsFutureIssuedDates(t *testing.T) {
	now := fixedNow()
	future := baseRow("SO-500", "9500", "1")
	future[FieldIssuedDate] = "12-01-2026"

	store := newMemStore()
	r := NewReconciler(store, testLogger(), 10)
	r.SetResolveOptions(ResolveOptions{Strict: true, Now: now})

	stats, err := r.Run(context.Background(), []Row{future}, nil)
	if err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if stats.Skipped != 2 || len(store.orders) != 0 || len(store.lineItems) != 0 {
		t.Fatalf("strict mode should skip the future-dated order and item, got %+v", stats)
	}

	// The same row is accepted when strict mode is off.
	lenient := newMemStore()
	r = NewReconciler(lenient, testLogger(), 10)
	r.SetResolveOptions(ResolveOptions{Now: now})

	if _, err := r.Run(context.Background(), []Row{future}, nil); err != nil {
		t.Fatalf("Run error: %v", err)
	}
	if lenient.orders["SO-500"] == nil {
		t.Fatal("lenient mode should accept a plausible future issued date")
	}
}

func keys(m map[string]*models.LineItem) []string {
	var out []string
	for k := range m {
		out = append(out, k)
	}
	return out
}

func snapshotOrders(s *memStore) map[string]models.Order {
	out := make(map[string]models.Order, len(s.orders))
	for k, v := range s.orders {
		out[k] = *v
	}
	return out
}

func snapshotItems(s *memStore) map[string]models.LineItem {
	out := make(map[string]models.LineItem, len(s.lineItems))
	for k, v := range s.lineItems {
		out[k] = *v
	}
	return out
}
