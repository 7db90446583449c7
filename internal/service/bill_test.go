package service

import (
	"context"
	"errors"
	"testing"

	"github.com/foodbook/api/internal/database"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

func pgText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: true}
}

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

// mockBillStore is an in-memory BillStore over a seat's orders. Mutations
// update the maps so a test can assert on the end state.
type mockBillStore struct {
	orders   []database.Order
	items    map[uuid.UUID][]database.OrderItem
	user     database.User
	userErr  error
	released map[uuid.UUID]int32

	catalog map[uuid.UUID]*testProduct

	deletedOrders []uuid.UUID
	totalUpdates  map[uuid.UUID]database.UpdateOrderTotalsParams
	createdOrders []database.CreateOrderParams
}

func newMockBillStore() *mockBillStore {
	return &mockBillStore{
		items:        map[uuid.UUID][]database.OrderItem{},
		userErr:      pgx.ErrNoRows,
		released:     map[uuid.UUID]int32{},
		catalog:      map[uuid.UUID]*testProduct{},
		totalUpdates: map[uuid.UUID]database.UpdateOrderTotalsParams{},
	}
}

func (m *mockBillStore) addOrder(total, tax string, lines ...database.OrderItem) database.Order {
	order := database.Order{
		ID:          uuid.New(),
		OwnerEmail:  "a@example.com",
		SeatNumber:  "A1",
		Status:      database.OrderStatusCompleted,
		TotalAmount: makeNumeric(total),
		TaxAmount:   makeNumeric(tax),
	}
	for i := range lines {
		lines[i].OrderID = order.ID
	}
	m.orders = append(m.orders, order)
	m.items[order.ID] = lines
	return order
}

func (m *mockBillStore) GetProduct(ctx context.Context, arg database.GetProductParams) (database.Product, error) {
	if p, ok := m.catalog[arg.ID]; ok && p.Owner == arg.OwnerEmail {
		return database.Product{ID: arg.ID, OwnerEmail: p.Owner, Name: p.Name, Price: makeNumeric(p.Price), Stock: p.Stock}, nil
	}
	return database.Product{}, pgx.ErrNoRows
}

func (m *mockBillStore) ReserveProductStock(ctx context.Context, arg database.ReserveProductStockParams) (database.Product, error) {
	p, ok := m.catalog[arg.ID]
	if !ok || p.Owner != arg.OwnerEmail || p.Stock < arg.Quantity {
		return database.Product{}, pgx.ErrNoRows
	}
	p.Stock -= arg.Quantity
	return database.Product{ID: arg.ID, OwnerEmail: p.Owner, Name: p.Name, Price: makeNumeric(p.Price), Stock: p.Stock}, nil
}

func (m *mockBillStore) ReleaseProductStock(ctx context.Context, arg database.ReleaseProductStockParams) (database.Product, error) {
	p, ok := m.catalog[arg.ID]
	if !ok || p.Owner != arg.OwnerEmail {
		return database.Product{}, pgx.ErrNoRows
	}
	p.Stock += arg.Quantity
	m.released[arg.ID] += arg.Quantity
	return database.Product{ID: arg.ID, Stock: p.Stock}, nil
}

func (m *mockBillStore) SetProductStock(ctx context.Context, arg database.SetProductStockParams) (database.Product, error) {
	panic("not implemented")
}

func (m *mockBillStore) ListCompletedOrdersBySeat(ctx context.Context, arg database.SeatOrdersParams) ([]database.Order, error) {
	return m.orders, nil
}

func (m *mockBillStore) ListCompletedOrdersBySeatForUpdate(ctx context.Context, arg database.SeatOrdersParams) ([]database.Order, error) {
	return m.orders, nil
}

func (m *mockBillStore) ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error) {
	return m.items[orderID], nil
}

func (m *mockBillStore) UpdateOrderItemQuantity(ctx context.Context, arg database.UpdateOrderItemQuantityParams) (database.OrderItem, error) {
	for oid, lines := range m.items {
		for i, line := range lines {
			if line.ID == arg.ID {
				lines[i].Quantity = arg.Quantity
				return m.items[oid][i], nil
			}
		}
	}
	return database.OrderItem{}, pgx.ErrNoRows
}

func (m *mockBillStore) DeleteOrderItem(ctx context.Context, id uuid.UUID) error {
	for oid, lines := range m.items {
		for i, line := range lines {
			if line.ID == id {
				m.items[oid] = append(lines[:i], lines[i+1:]...)
				return nil
			}
		}
	}
	return pgx.ErrNoRows
}

func (m *mockBillStore) UpdateOrderTotals(ctx context.Context, arg database.UpdateOrderTotalsParams) (database.Order, error) {
	m.totalUpdates[arg.ID] = arg
	for i, o := range m.orders {
		if o.ID == arg.ID {
			m.orders[i].TotalAmount = arg.TotalAmount
			m.orders[i].TaxAmount = arg.TaxAmount
			return m.orders[i], nil
		}
	}
	return database.Order{}, pgx.ErrNoRows
}

func (m *mockBillStore) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	m.deletedOrders = append(m.deletedOrders, id)
	for i, o := range m.orders {
		if o.ID == id {
			m.orders = append(m.orders[:i], m.orders[i+1:]...)
			delete(m.items, id)
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *mockBillStore) CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error) {
	m.createdOrders = append(m.createdOrders, arg)
	return database.Order{
		ID:          uuid.New(),
		OwnerEmail:  arg.OwnerEmail,
		SeatNumber:  arg.SeatNumber,
		Status:      arg.Status,
		TotalAmount: arg.TotalAmount,
		TaxAmount:   arg.TaxAmount,
	}, nil
}

func (m *mockBillStore) CreateOrderItem(ctx context.Context, arg database.CreateOrderItemParams) (database.OrderItem, error) {
	return database.OrderItem{
		ID:        uuid.New(),
		OrderID:   arg.OrderID,
		ProductID: arg.ProductID,
		Name:      arg.Name,
		Quantity:  arg.Quantity,
		UnitPrice: arg.UnitPrice,
	}, nil
}

func (m *mockBillStore) GetUserByEmail(ctx context.Context, email string) (database.User, error) {
	return m.user, m.userErr
}

func newTestBillService(store *mockBillStore) (*BillService, *mockTx) {
	tx := &mockTx{}
	pool := &mockTxBeginner{tx: tx}
	newStore := func(db database.DBTX) BillStore { return store }
	return NewBillService(pool, newStore, store), tx
}

func line(productID uuid.UUID, name string, qty int32, price string) database.OrderItem {
	return database.OrderItem{
		ID:        uuid.New(),
		ProductID: productID,
		Name:      name,
		Quantity:  qty,
		UnitPrice: makeNumeric(price),
	}
}

// =====================
// GetBill tests
// =====================

func TestGetBill_NoCompletedOrders(t *testing.T) {
	svc, _ := newTestBillService(newMockBillStore())

	bill, err := svc.GetBill(context.Background(), "A1", "a@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bill != nil {
		t.Fatalf("expected nil bill for empty seat, got: %+v", bill)
	}
}

func TestGetBill_FlattensAcrossOrders(t *testing.T) {
	store := newMockBillStore()
	store.addOrder("236.00", "36.00",
		line(uuid.New(), "Dosa", 2, "100.00"))
	store.addOrder("59.00", "9.00",
		line(uuid.New(), "Idli", 1, "50.00"))

	svc, _ := newTestBillService(store)
	bill, err := svc.GetBill(context.Background(), "A1", "a@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if bill.OrdersCount != 2 {
		t.Errorf("orders count: got %d, want 2", bill.OrdersCount)
	}
	if len(bill.Items) != 2 {
		t.Fatalf("lines: got %d, want 2", len(bill.Items))
	}
	if bill.Items[0].Name != "Dosa" || bill.Items[1].Name != "Idli" {
		t.Errorf("line order: got %q, %q", bill.Items[0].Name, bill.Items[1].Name)
	}
	if !bill.Items[0].LineTotal.Equal(decimalFromString(t, "200.00")) {
		t.Errorf("line total: got %v, want 200.00", bill.Items[0].LineTotal)
	}
	// grand total = 236 + 59 = 295
	if !bill.GrandTotal.Equal(decimalFromString(t, "295.00")) {
		t.Errorf("grand total: got %v, want 295.00", bill.GrandTotal)
	}
}

func TestGetBill_DefaultCompanyName(t *testing.T) {
	store := newMockBillStore()
	store.addOrder("100.00", "0.00", line(uuid.New(), "Dosa", 1, "100.00"))

	svc, _ := newTestBillService(store)
	bill, err := svc.GetBill(context.Background(), "A1", "a@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bill.CompanyName != "FOODBOOK" {
		t.Errorf("company name: got %q, want FOODBOOK", bill.CompanyName)
	}
}

func TestGetBill_TenantCompanyName(t *testing.T) {
	store := newMockBillStore()
	store.addOrder("100.00", "0.00", line(uuid.New(), "Dosa", 1, "100.00"))
	store.user = database.User{Email: "a@example.com", CompanyName: pgText("Annapurna")}
	store.userErr = nil

	svc, _ := newTestBillService(store)
	bill, err := svc.GetBill(context.Background(), "A1", "a@example.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bill.CompanyName != "Annapurna" {
		t.Errorf("company name: got %q, want Annapurna", bill.CompanyName)
	}
}

// =====================
// RemoveItem tests
// =====================

func TestRemoveItem_DecrementsQuantity(t *testing.T) {
	dosaID := uuid.New()
	store := newMockBillStore()
	store.catalog[dosaID] = &testProduct{Owner: "a@example.com", Name: "Dosa", Price: "100.00", Stock: 0}
	// 2x Dosa + 1x Idli, taxed: subtotal 250, tax 45, total 295.
	order := store.addOrder("295.00", "45.00",
		line(dosaID, "Dosa", 2, "100.00"),
		line(uuid.New(), "Idli", 1, "50.00"))

	svc, tx := newTestBillService(store)
	if err := svc.RemoveItem(context.Background(), "A1", "a@example.com", "Dosa"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.items[order.ID][0].Quantity != 1 {
		t.Errorf("dosa quantity: got %d, want 1", store.items[order.ID][0].Quantity)
	}
	if store.released[dosaID] != 1 {
		t.Errorf("released units: got %d, want 1", store.released[dosaID])
	}
	// new subtotal = 100 + 50 = 150, tax = round(150 * 0.18) = 27, total = 177
	update := store.totalUpdates[order.ID]
	if !numericEquals(update.TaxAmount, "27.00") {
		t.Errorf("recomputed tax: got %v, want 27.00", numericToDecimal(update.TaxAmount))
	}
	if !numericEquals(update.TotalAmount, "177.00") {
		t.Errorf("recomputed total: got %v, want 177.00", numericToDecimal(update.TotalAmount))
	}
	if !tx.committed {
		t.Error("remove should commit its transaction")
	}
}

func TestRemoveItem_NoTaxStaysUntaxed(t *testing.T) {
	dosaID := uuid.New()
	store := newMockBillStore()
	store.catalog[dosaID] = &testProduct{Owner: "a@example.com", Name: "Dosa", Price: "100.00", Stock: 0}
	order := store.addOrder("250.00", "0.00",
		line(dosaID, "Dosa", 2, "100.00"),
		line(uuid.New(), "Idli", 1, "50.00"))

	svc, _ := newTestBillService(store)
	if err := svc.RemoveItem(context.Background(), "A1", "a@example.com", "Dosa"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	update := store.totalUpdates[order.ID]
	if !numericEquals(update.TaxAmount, "0.00") {
		t.Errorf("tax on untaxed order: got %v, want 0.00", numericToDecimal(update.TaxAmount))
	}
	if !numericEquals(update.TotalAmount, "150.00") {
		t.Errorf("recomputed total: got %v, want 150.00", numericToDecimal(update.TotalAmount))
	}
}

func TestRemoveItem_LastUnitDeletesLine(t *testing.T) {
	idliID := uuid.New()
	store := newMockBillStore()
	store.catalog[idliID] = &testProduct{Owner: "a@example.com", Name: "Idli", Price: "50.00", Stock: 0}
	order := store.addOrder("250.00", "0.00",
		line(uuid.New(), "Dosa", 2, "100.00"),
		line(idliID, "Idli", 1, "50.00"))

	svc, _ := newTestBillService(store)
	if err := svc.RemoveItem(context.Background(), "A1", "a@example.com", "Idli"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.items[order.ID]) != 1 {
		t.Fatalf("lines after remove: got %d, want 1", len(store.items[order.ID]))
	}
	if store.items[order.ID][0].Name != "Dosa" {
		t.Errorf("surviving line: got %q, want Dosa", store.items[order.ID][0].Name)
	}
}

func TestRemoveItem_LastLineDeletesOrder(t *testing.T) {
	idliID := uuid.New()
	store := newMockBillStore()
	store.catalog[idliID] = &testProduct{Owner: "a@example.com", Name: "Idli", Price: "50.00", Stock: 0}
	order := store.addOrder("50.00", "0.00", line(idliID, "Idli", 1, "50.00"))

	svc, tx := newTestBillService(store)
	if err := svc.RemoveItem(context.Background(), "A1", "a@example.com", "Idli"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.deletedOrders) != 1 || store.deletedOrders[0] != order.ID {
		t.Errorf("deleted orders: got %v, want [%v]", store.deletedOrders, order.ID)
	}
	if !tx.committed {
		t.Error("remove should commit its transaction")
	}
}

func TestRemoveItem_HitsOldestOrderFirst(t *testing.T) {
	dosaID := uuid.New()
	store := newMockBillStore()
	store.catalog[dosaID] = &testProduct{Owner: "a@example.com", Name: "Dosa", Price: "100.00", Stock: 0}
	older := store.addOrder("200.00", "0.00", line(dosaID, "Dosa", 2, "100.00"))
	newer := store.addOrder("100.00", "0.00", line(dosaID, "Dosa", 1, "100.00"))

	svc, _ := newTestBillService(store)
	if err := svc.RemoveItem(context.Background(), "A1", "a@example.com", "Dosa"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if store.items[older.ID][0].Quantity != 1 {
		t.Errorf("older order quantity: got %d, want 1", store.items[older.ID][0].Quantity)
	}
	if store.items[newer.ID][0].Quantity != 1 {
		t.Errorf("newer order must be untouched: got %d, want 1", store.items[newer.ID][0].Quantity)
	}
}

func TestRemoveItem_DeletedProductSkipsRelease(t *testing.T) {
	goneID := uuid.New() // not in catalog
	store := newMockBillStore()
	order := store.addOrder("250.00", "0.00",
		line(goneID, "Gone", 1, "100.00"),
		line(uuid.New(), "Idli", 3, "50.00"))

	svc, _ := newTestBillService(store)
	if err := svc.RemoveItem(context.Background(), "A1", "a@example.com", "Gone"); err != nil {
		t.Fatalf("remove should succeed without a catalog entry: %v", err)
	}
	if len(store.items[order.ID]) != 1 {
		t.Errorf("lines after remove: got %d, want 1", len(store.items[order.ID]))
	}
}

func TestRemoveItem_NotFound(t *testing.T) {
	store := newMockBillStore()
	store.addOrder("100.00", "0.00", line(uuid.New(), "Dosa", 1, "100.00"))

	svc, tx := newTestBillService(store)
	err := svc.RemoveItem(context.Background(), "A1", "a@example.com", "Pizza")
	if !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("expected ErrItemNotFound, got: %v", err)
	}
	if tx.committed {
		t.Error("transaction must not commit when nothing matched")
	}
}

// =====================
// AddItem tests
// =====================

func TestAddItem_CreatesCompletedOrder(t *testing.T) {
	dosaID := uuid.New()
	store := newMockBillStore()
	store.catalog[dosaID] = &testProduct{Owner: "a@example.com", Name: "Dosa", Price: "100.00", Stock: 4}

	svc, tx := newTestBillService(store)
	result, err := svc.AddItem(context.Background(), "A1", "a@example.com", dosaID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.createdOrders) != 1 {
		t.Fatalf("created orders: got %d, want 1", len(store.createdOrders))
	}
	created := store.createdOrders[0]
	if created.Status != database.OrderStatusCompleted {
		t.Errorf("status: got %v, want Completed", created.Status)
	}
	if !numericEquals(created.TotalAmount, "100.00") {
		t.Errorf("total: got %v, want 100.00", numericToDecimal(created.TotalAmount))
	}
	if store.catalog[dosaID].Stock != 3 {
		t.Errorf("stock after add: got %d, want 3", store.catalog[dosaID].Stock)
	}
	if len(result.Items) != 1 || result.Items[0].Name != "Dosa" {
		t.Errorf("result items: got %+v", result.Items)
	}
	if !tx.committed {
		t.Error("add should commit its transaction")
	}
}

func TestAddItem_OutOfStock(t *testing.T) {
	dosaID := uuid.New()
	store := newMockBillStore()
	store.catalog[dosaID] = &testProduct{Owner: "a@example.com", Name: "Dosa", Price: "100.00", Stock: 0}

	svc, tx := newTestBillService(store)
	_, err := svc.AddItem(context.Background(), "A1", "a@example.com", dosaID)
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got: %v", err)
	}
	if tx.committed {
		t.Error("transaction must not commit when out of stock")
	}
	if len(store.createdOrders) != 0 {
		t.Errorf("no order should be created, got %d", len(store.createdOrders))
	}
}

func TestAddItem_UnknownProduct(t *testing.T) {
	store := newMockBillStore()

	svc, _ := newTestBillService(store)
	_, err := svc.AddItem(context.Background(), "A1", "a@example.com", uuid.New())
	if !errors.Is(err, ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound, got: %v", err)
	}
}
