package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/payment"
	"storefront/internal/redisclient"
	"storefront/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// memStore is an in-memory stand-in for the Postgres store
type memStore struct {
	mu        sync.Mutex
	users     map[uuid.UUID]models.User
	products  map[uuid.UUID]models.Product
	reviews   map[uuid.UUID][]models.Review
	orders    map[uuid.UUID]models.Order
	processed map[string]bool
	clock     time.Time
	readErr   error
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[uuid.UUID]models.User{},
		products:  map[uuid.UUID]models.Product{},
		reviews:   map[uuid.UUID][]models.Review{},
		orders:    map[uuid.UUID]models.Order{},
		processed: map[string]bool{},
		clock:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memStore) CreateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	for _, u := range m.users {
		if u.Email == user.Email {
			return fmt.Errorf("email %s: %w", user.Email, store.ErrDuplicate)
		}
	}
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	user.CreatedAt = m.tick()
	m.users[user.ID] = *user
	return nil
}

func (m *memStore) GetUserByID(_ context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = strings.ToLower(strings.TrimSpace(email))
	for _, u := range m.users {
		if u.Email == email {
			u := u
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) UpdateUser(_ context.Context, user *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.users[user.ID]
	if !ok {
		return store.ErrNotFound
	}
	existing.Name = user.Name
	existing.Role = user.Role
	existing.Address = user.Address
	existing.Phone = user.Phone
	existing.StoreInfo = user.StoreInfo
	m.users[user.ID] = existing
	return nil
}

func (m *memStore) UpdatePasswordHash(_ context.Context, id uuid.UUID, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return store.ErrNotFound
	}
	u.PasswordHash = hash
	m.users[id] = u
	return nil
}

func (m *memStore) CreateProduct(_ context.Context, product *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}
	product.CreatedAt = m.tick()
	product.UpdatedAt = product.CreatedAt
	stored := *product
	stored.Reviews = nil
	m.products[product.ID] = stored
	return nil
}

func (m *memStore) GetProductByID(_ context.Context, id uuid.UUID) (*models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	p, ok := m.products[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	p.Reviews = append([]models.Review{}, m.reviews[id]...)
	return &p, nil
}

func (m *memStore) ListProducts(_ context.Context, f store.ProductFilter) ([]models.Product, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matched []models.Product
	for _, p := range m.products {
		if f.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(f.Search)) {
			continue
		}
		if f.Category != "" && p.Category != f.Category {
			continue
		}
		if f.SellerID != uuid.Nil && p.SellerID != f.SellerID {
			continue
		}
		matched = append(matched, p)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })

	total := len(matched)
	if f.Offset >= total {
		return []models.Product{}, total, nil
	}
	end := f.Offset + f.Limit
	if end > total {
		end = total
	}
	return matched[f.Offset:end], total, nil
}

func (m *memStore) GetProductsBySeller(_ context.Context, sellerID uuid.UUID) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	out := []models.Product{}
	for _, p := range m.products {
		if p.SellerID == sellerID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) GetProductsByIDs(_ context.Context, ids []uuid.UUID) ([]models.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Product{}
	for _, id := range ids {
		if p, ok := m.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memStore) UpdateProduct(_ context.Context, product *models.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.products[product.ID]
	if !ok {
		return store.ErrNotFound
	}
	updated := *product
	updated.SellerID = existing.SellerID
	updated.Reviews = nil
	updated.UpdatedAt = m.tick()
	product.UpdatedAt = updated.UpdatedAt
	m.products[product.ID] = updated
	return nil
}

func (m *memStore) DeleteProduct(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.products[id]; !ok {
		return store.ErrNotFound
	}
	delete(m.products, id)
	return nil
}

func (m *memStore) AddReview(_ context.Context, review *models.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.products[review.ProductID]
	if !ok {
		return store.ErrNotFound
	}
	for _, r := range m.reviews[review.ProductID] {
		if r.UserID == review.UserID {
			return store.ErrDuplicate
		}
	}
	review.ID = uuid.New()
	review.CreatedAt = m.tick()
	m.reviews[review.ProductID] = append(m.reviews[review.ProductID], *review)

	sum := 0
	for _, r := range m.reviews[review.ProductID] {
		sum += r.Rating
	}
	p.NumReviews = len(m.reviews[review.ProductID])
	p.Rating = decimal.NewFromInt(int64(sum)).Div(decimal.NewFromInt(int64(p.NumReviews))).Round(2)
	m.products[review.ProductID] = p
	return nil
}

func (m *memStore) GetProductStats(_ context.Context, lowStockThreshold int) (*store.ProductStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &store.ProductStats{CategoryStats: []store.CategoryCount{}, InventoryValue: decimal.Zero}
	counts := map[models.Category]int{}
	for _, p := range m.products {
		stats.TotalProducts++
		counts[p.Category]++
		if p.Quantity < lowStockThreshold {
			stats.LowStockProducts++
		}
		stats.InventoryValue = stats.InventoryValue.Add(p.Price.Mul(decimal.NewFromInt(int64(p.Quantity))))
	}
	for c, n := range counts {
		stats.CategoryStats = append(stats.CategoryStats, store.CategoryCount{Category: c, Count: n})
	}
	sort.Slice(stats.CategoryStats, func(i, j int) bool {
		a, b := stats.CategoryStats[i], stats.CategoryStats[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Category < b.Category
	})
	return stats, nil
}

func copyOrder(o models.Order) models.Order {
	o.Items = append([]models.OrderItem{}, o.Items...)
	return o
}

func (m *memStore) CreateOrder(_ context.Context, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.Items {
		order.Items[i].ID = uuid.New()
		order.Items[i].OrderID = order.ID
	}
	order.CreatedAt = m.tick()
	m.orders[order.ID] = copyOrder(*order)
	return nil
}

func (m *memStore) GetOrderByID(_ context.Context, id uuid.UUID) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	o = copyOrder(o)
	return &o, nil
}

func (m *memStore) selectOrders(keep func(models.Order) bool) []models.Order {
	out := []models.Order{}
	for _, o := range m.orders {
		if keep(o) {
			out = append(out, copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memStore) GetOrdersByUserID(_ context.Context, userID uuid.UUID) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectOrders(func(o models.Order) bool { return o.UserID == userID }), nil
}

func (m *memStore) GetOrders(_ context.Context) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.selectOrders(func(models.Order) bool { return true }), nil
}

func (m *memStore) GetOrdersContainingProducts(_ context.Context, productIDs []uuid.UUID) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr != nil {
		return nil, m.readErr
	}
	ids := map[uuid.UUID]bool{}
	for _, id := range productIDs {
		ids[id] = true
	}
	return m.selectOrders(func(o models.Order) bool {
		for _, item := range o.Items {
			if ids[item.ProductID] {
				return true
			}
		}
		return false
	}), nil
}

func (m *memStore) updateOrder(id uuid.UUID, fn func(*models.Order)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return store.ErrNotFound
	}
	fn(&o)
	m.orders[id] = o
	return nil
}

func (m *memStore) SetGatewayOrderID(_ context.Context, orderID uuid.UUID, gatewayOrderID string) error {
	return m.updateOrder(orderID, func(o *models.Order) { o.GatewayOrderID = gatewayOrderID })
}

func (m *memStore) MarkOrderPaid(_ context.Context, orderID uuid.UUID, result models.PaymentResult, paidAt time.Time) (bool, error) {
	applied := false
	err := m.updateOrder(orderID, func(o *models.Order) {
		if o.IsPaid {
			return
		}
		o.IsPaid = true
		o.PaidAt = &paidAt
		o.PaymentResult = result
		applied = true
	})
	return applied, err
}

func (m *memStore) MarkOrderDelivered(_ context.Context, orderID uuid.UUID, deliveredAt time.Time) error {
	return m.updateOrder(orderID, func(o *models.Order) {
		o.IsDelivered = true
		o.DeliveredAt = &deliveredAt
	})
}

func (m *memStore) CommitOrderStock(_ context.Context, eventID, _ string, items []models.OrderItemData) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed[eventID] {
		return false, nil
	}
	m.processed[eventID] = true
	for _, item := range items {
		p, ok := m.products[item.ProductID]
		if !ok {
			continue
		}
		p.Quantity -= item.Quantity
		if p.Quantity < 0 {
			p.Quantity = 0
		}
		m.products[item.ProductID] = p
	}
	return true, nil
}

// recordingEvents captures published events
type recordingEvents struct {
	mu        sync.Mutex
	created   []*models.OrderCreatedEvent
	paid      []*models.OrderPaidEvent
	delivered []*models.OrderDeliveredEvent
	err       error
}

func (r *recordingEvents) PublishOrderCreated(_ context.Context, e *models.OrderCreatedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, e)
	return r.err
}

func (r *recordingEvents) PublishOrderPaid(_ context.Context, e *models.OrderPaidEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paid = append(r.paid, e)
	return r.err
}

func (r *recordingEvents) PublishOrderDelivered(_ context.Context, e *models.OrderDeliveredEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.delivered = append(r.delivered, e)
	return r.err
}

// memIdempotency mirrors the Redis reservation protocol
type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]string
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{keys: map[string]string{}}
}

func (m *memIdempotency) ReserveIdempotencyKey(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.keys[key]
	if !ok {
		m.keys[key] = "pending"
		return "", true, nil
	}
	if v == "pending" {
		return "", false, redisclient.ErrInFlight
	}
	return v, false, nil
}

func (m *memIdempotency) CompleteIdempotencyKey(_ context.Context, key, orderID string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys[key] = orderID
	return nil
}

func (m *memIdempotency) ReleaseIdempotencyKey(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.keys, key)
	return nil
}

// fakeGateway signs with a local secret instead of calling out
type fakeGateway struct {
	secret   string
	created  []decimal.Decimal
	receipts []string
	err      error
}

func (g *fakeGateway) CreateOrder(_ context.Context, amount decimal.Decimal, currency, receipt string) (*payment.ExternalOrder, error) {
	if g.err != nil {
		return nil, g.err
	}
	g.created = append(g.created, amount)
	g.receipts = append(g.receipts, receipt)
	return &payment.ExternalOrder{
		ID:       fmt.Sprintf("order_gw%d", len(g.created)),
		Amount:   payment.MinorUnits(amount),
		Currency: currency,
		Receipt:  receipt,
	}, nil
}

func (g *fakeGateway) Verify(payload, signature string) bool {
	return payment.Sign(payload, g.secret) == signature
}

func (g *fakeGateway) KeyID() string { return "rzp_test_key" }

var errStoreDown = errors.New("connection refused")

func principal(role models.Role) auth.Principal {
	return auth.Principal{ID: uuid.New(), Role: role}
}

func seedUser(t *testing.T, m *memStore, role models.Role) auth.Principal {
	t.Helper()
	u := &models.User{Name: "user-" + string(role), Email: uuid.NewString() + "@example.com", Role: role}
	require.NoError(t, m.CreateUser(context.Background(), u))
	return auth.Principal{ID: u.ID, Role: role}
}

func seedProduct(t *testing.T, m *memStore, seller uuid.UUID, name string, price string, qty int) *models.Product {
	t.Helper()
	p := &models.Product{
		Name:     name,
		Price:    decimal.RequireFromString(price),
		Quantity: qty,
		Category: models.CategoryBooks,
		SellerID: seller,
	}
	require.NoError(t, m.CreateProduct(context.Background(), p))
	return p
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}
