package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"retailpos/internal/model"
	"retailpos/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// memLedger is an in-memory stand-in for the Postgres ledger. Product rows are
// locked per transaction and released at commit/rollback; every write made inside
// a transaction is undone if the transaction fails.
type memLedger struct {
	mu        sync.Mutex
	products  map[uuid.UUID]model.Product
	partners  map[uuid.UUID]model.Partner
	orders    map[uuid.UUID]model.SalesOrder
	items     []model.SalesOrderItem
	movements []model.StockMovement
	payments  []model.Payment
	audits    []model.AuditLog
	rowLocks  map[uuid.UUID]chan struct{}

	// failures maps an operation name ("order.create", "movement.create", ...) to the error it returns
	failures map[string]error
	// onLock runs after a row lock is acquired; tests use it to hold a lock open
	onLock func(ctx context.Context, id uuid.UUID)
}

func newMemLedger() *memLedger {
	return &memLedger{
		products: make(map[uuid.UUID]model.Product),
		partners: make(map[uuid.UUID]model.Partner),
		orders:   make(map[uuid.UUID]model.SalesOrder),
		rowLocks: make(map[uuid.UUID]chan struct{}),
		failures: make(map[string]error),
	}
}

type memTxKey struct{}

type memTx struct {
	undo []func()
	held map[uuid.UUID]chan struct{}
}

func txFrom(ctx context.Context) *memTx {
	tx, _ := ctx.Value(memTxKey{}).(*memTx)
	return tx
}

// RunInTx mirrors database/sql: a context that is done by the time fn returns fails the commit.
func (l *memLedger) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	tx := &memTx{held: make(map[uuid.UUID]chan struct{})}
	err := fn(context.WithValue(ctx, memTxKey{}, tx))
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}

	if err != nil {
		l.mu.Lock()
		for i := len(tx.undo) - 1; i >= 0; i-- {
			tx.undo[i]()
		}
		l.mu.Unlock()
	}
	for _, sem := range tx.held {
		<-sem
	}
	return err
}

// record registers an undo step; callers hold l.mu
func (l *memLedger) record(ctx context.Context, undo func()) {
	if tx := txFrom(ctx); tx != nil {
		tx.undo = append(tx.undo, undo)
	}
}

func (l *memLedger) fail(op string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.failures[op]
}

func (l *memLedger) setFailure(op string, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failures[op] = err
}

func (l *memLedger) lockRow(ctx context.Context, id uuid.UUID) error {
	tx := txFrom(ctx)
	if tx == nil {
		return nil
	}
	if _, ok := tx.held[id]; ok {
		return nil
	}

	l.mu.Lock()
	sem, ok := l.rowLocks[id]
	if !ok {
		sem = make(chan struct{}, 1)
		l.rowLocks[id] = sem
	}
	l.mu.Unlock()

	select {
	case sem <- struct{}{}:
		tx.held[id] = sem
	case <-ctx.Done():
		return ctx.Err()
	}

	if l.onLock != nil {
		l.onLock(ctx, id)
	}
	return nil
}

// --- seeding and inspection helpers ---

func (l *memLedger) addProduct(name string, stock, reorderPoint int) model.Product {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := model.Product{
		ID:           uuid.New(),
		SKU:          fmt.Sprintf("SKU-%d", len(l.products)+1),
		Name:         name,
		Unit:         "pcs",
		CurrentStock: stock,
		ReorderPoint: reorderPoint,
		IsActive:     true,
	}
	l.products[p.ID] = p
	return p
}

func (l *memLedger) addPartner(name, partnerType string) model.Partner {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := model.Partner{ID: uuid.New(), Name: name, Type: partnerType, IsActive: true}
	l.partners[p.ID] = p
	return p
}

func (l *memLedger) stockOf(id uuid.UUID) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.products[id].CurrentStock
}

func (l *memLedger) movementsFor(id uuid.UUID) []model.StockMovement {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []model.StockMovement
	for _, m := range l.movements {
		if m.ProductID == id {
			out = append(out, m)
		}
	}
	return out
}

type ledgerCounts struct {
	orders, items, movements, payments, audits int
}

func (l *memLedger) counts() ledgerCounts {
	l.mu.Lock()
	defer l.mu.Unlock()
	return ledgerCounts{
		orders:    len(l.orders),
		items:     len(l.items),
		movements: len(l.movements),
		payments:  len(l.payments),
		audits:    len(l.audits),
	}
}

func (l *memLedger) repos() (repository.ProductRepository, repository.SalesOrderRepository,
	repository.StockMovementRepository, repository.PaymentRepository,
	repository.PartnerRepository, repository.AuditRepository) {
	return memProducts{l}, memOrders{l}, memMovements{l}, memPayments{l}, memPartners{l}, memAudits{l}
}

func removeByID[T any](rows []T, id uuid.UUID, idOf func(T) uuid.UUID) []T {
	for i := range rows {
		if idOf(rows[i]) == id {
			return append(rows[:i], rows[i+1:]...)
		}
	}
	return rows
}

// --- products ---

type memProducts struct{ l *memLedger }

func (r memProducts) Create(ctx context.Context, product *model.Product) error {
	if err := r.l.fail("product.create"); err != nil {
		return err
	}
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	for _, p := range r.l.products {
		if p.SKU == product.SKU {
			return gorm.ErrDuplicatedKey
		}
	}
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	product.CreatedAt = time.Now()
	product.UpdatedAt = product.CreatedAt
	r.l.products[product.ID] = *product
	id := product.ID
	r.l.record(ctx, func() { delete(r.l.products, id) })
	return nil
}

func (r memProducts) FindByID(_ context.Context, id uuid.UUID) (*model.Product, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	p, ok := r.l.products[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

func (r memProducts) FindBySKU(_ context.Context, sku string) (*model.Product, error) {
	if err := r.l.fail("product.find_sku"); err != nil {
		return nil, err
	}
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	for _, p := range r.l.products {
		if p.SKU == sku {
			return &p, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r memProducts) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	if err := r.l.fail("product.lock"); err != nil {
		return nil, err
	}
	if _, err := r.FindByID(ctx, id); err != nil {
		return nil, err
	}
	if err := r.l.lockRow(ctx, id); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}

func (r memProducts) DecrementStock(ctx context.Context, id uuid.UUID, quantity int) error {
	if err := r.l.fail("product.decrement"); err != nil {
		return err
	}
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	p, ok := r.l.products[id]
	if !ok || p.CurrentStock < quantity {
		return repository.ErrStockUnderflow
	}
	p.CurrentStock -= quantity
	r.l.products[id] = p
	r.l.record(ctx, func() {
		restored := r.l.products[id]
		restored.CurrentStock += quantity
		r.l.products[id] = restored
	})
	return nil
}

func (r memProducts) UpdateStock(ctx context.Context, id uuid.UUID, stock int) error {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	p, ok := r.l.products[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	previous := p.CurrentStock
	p.CurrentStock = stock
	r.l.products[id] = p
	r.l.record(ctx, func() {
		restored := r.l.products[id]
		restored.CurrentStock = previous
		r.l.products[id] = restored
	})
	return nil
}

// --- sales orders ---

type memOrders struct{ l *memLedger }

func (r memOrders) Create(ctx context.Context, order *model.SalesOrder) error {
	if err := r.l.fail("order.create"); err != nil {
		return err
	}
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	for _, o := range r.l.orders {
		if o.OrderNumber == order.OrderNumber {
			return errors.New("duplicate key value violates unique constraint \"idx_sales_orders_order_number\"")
		}
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	stored := *order
	stored.Items = nil
	stored.Customer = nil
	r.l.orders[order.ID] = stored
	id := order.ID
	r.l.record(ctx, func() { delete(r.l.orders, id) })
	return nil
}

func (r memOrders) CreateItem(ctx context.Context, item *model.SalesOrderItem) error {
	if err := r.l.fail("order.create_item"); err != nil {
		return err
	}
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	item.CreatedAt = time.Now()
	r.l.items = append(r.l.items, *item)
	id := item.ID
	r.l.record(ctx, func() {
		r.l.items = removeByID(r.l.items, id, func(i model.SalesOrderItem) uuid.UUID { return i.ID })
	})
	return nil
}

func (r memOrders) FindByIDWithItems(_ context.Context, id uuid.UUID) (*model.SalesOrder, error) {
	if err := r.l.fail("order.find"); err != nil {
		return nil, err
	}
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	order, ok := r.l.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if order.CustomerID != nil {
		if c, ok := r.l.partners[*order.CustomerID]; ok {
			order.Customer = &c
		}
	}
	for _, item := range r.l.items {
		if item.SalesOrderID == id {
			item.Product = r.l.products[item.ProductID]
			order.Items = append(order.Items, item)
		}
	}
	sort.Slice(order.Items, func(i, j int) bool { return order.Items[i].LineNo < order.Items[j].LineNo })
	return &order, nil
}

// --- movements, payments, audit, partners ---

type memMovements struct{ l *memLedger }

func (r memMovements) Create(ctx context.Context, movement *model.StockMovement) error {
	if err := r.l.fail("movement.create"); err != nil {
		return err
	}
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	if movement.ID == uuid.Nil {
		movement.ID = uuid.New()
	}
	movement.CreatedAt = time.Now()
	r.l.movements = append(r.l.movements, *movement)
	id := movement.ID
	r.l.record(ctx, func() {
		r.l.movements = removeByID(r.l.movements, id, func(m model.StockMovement) uuid.UUID { return m.ID })
	})
	return nil
}

type memPayments struct{ l *memLedger }

func (r memPayments) Create(ctx context.Context, payment *model.Payment) error {
	if err := r.l.fail("payment.create"); err != nil {
		return err
	}
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	payment.CreatedAt = time.Now()
	r.l.payments = append(r.l.payments, *payment)
	id := payment.ID
	r.l.record(ctx, func() {
		r.l.payments = removeByID(r.l.payments, id, func(p model.Payment) uuid.UUID { return p.ID })
	})
	return nil
}

type memAudits struct{ l *memLedger }

func (r memAudits) Log(ctx context.Context, entry *model.AuditLog) error {
	if err := r.l.fail("audit.log"); err != nil {
		return err
	}
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CreatedAt = time.Now()
	r.l.audits = append(r.l.audits, *entry)
	id := entry.ID
	r.l.record(ctx, func() {
		r.l.audits = removeByID(r.l.audits, id, func(a model.AuditLog) uuid.UUID { return a.ID })
	})
	return nil
}

type memPartners struct{ l *memLedger }

func (r memPartners) FindByID(_ context.Context, id uuid.UUID) (*model.Partner, error) {
	r.l.mu.Lock()
	defer r.l.mu.Unlock()
	p, ok := r.l.partners[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &p, nil
}

// --- collaborators ---

type recordingNotifier struct {
	mu      sync.Mutex
	changed []model.Product
}

func (n *recordingNotifier) StockChanged(product model.Product) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, product)
}

func (n *recordingNotifier) events() []model.Product {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]model.Product(nil), n.changed...)
}

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	hits    int
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (c *memCache) GetJSON(_ context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return errors.New("cache miss")
	}
	c.hits++
	return json.Unmarshal(raw, dest)
}

func (c *memCache) SetJSON(_ context.Context, key string, value interface{}, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	return nil
}
