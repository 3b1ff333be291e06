// Package analytics reduces a seller's products and orders into the
// dashboard summary.
//
// Summarize does no I/O. Given the same inputs and the same clock it
// returns identical output, so callers may fetch records in any order.
package analytics

import (
	"sort"
	"time"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	recentOrderLimit = 5
	topProductLimit  = 5
	activityWindow   = 24 * time.Hour
	newProductWindow = 30 * 24 * time.Hour
)

var monthNames = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// Summary is the seller dashboard payload. Money is rendered with two
// decimals and the revenue change with one.
//
// MonthlyRevenue has one bucket per calendar month and folds every year into
// it, so March holds paid revenue from all Marches on record. RevenueChange
// compares the current month against the previous one by year and month.
type Summary struct {
	TotalRevenue   string           `json:"total_revenue"`
	RevenueChange  string           `json:"revenue_change"`
	MonthlyRevenue []MonthlyRevenue `json:"monthly_revenue"`

	TotalOrders       int           `json:"total_orders"`
	RecentOrdersCount int           `json:"recent_orders_count"`
	RecentOrders      []RecentOrder `json:"recent_orders"`

	TotalProducts      int          `json:"total_products"`
	NewProductsCount   int          `json:"new_products_count"`
	TopSellingProducts []TopProduct `json:"top_selling_products"`

	ActiveUsers int `json:"active_users"`
}

type MonthlyRevenue struct {
	Name    string `json:"name"`
	Revenue string `json:"revenue"`
}

// RecentOrder is an order reduced to the seller's share of it.
type RecentOrder struct {
	ID          uuid.UUID `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	TotalAmount string    `json:"total_amount"`
	IsPaid      bool      `json:"is_paid"`
	IsDelivered bool      `json:"is_delivered"`
	ItemCount   int       `json:"item_count"`
}

type TopProduct struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Image        string    `json:"image,omitempty"`
	Price        string    `json:"price"`
	TotalSold    int       `json:"total_sold"`
	TotalRevenue string    `json:"total_revenue"`
}

type productSales struct {
	id       uuid.UUID
	quantity int
	revenue  decimal.Decimal
}

// Summarize builds the dashboard for the seller owning products. Orders
// may include items of other sellers; only items whose product is in
// products are attributed.
func Summarize(products []models.Product, orders []models.Order, now time.Time) *Summary {
	now = now.UTC()

	owned := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		owned[products[i].ID] = &products[i]
	}

	sorted := make([]models.Order, len(orders))
	copy(sorted, orders)
	sort.SliceStable(sorted, func(i, j int) bool {
		if !sorted[i].CreatedAt.Equal(sorted[j].CreatedAt) {
			return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
		}
		return sorted[i].ID.String() < sorted[j].ID.String()
	})

	currentMonth := monthStart(now)
	previousMonth := currentMonth.AddDate(0, -1, 0)
	activitySince := now.Add(-activityWindow)

	var (
		totalRevenue    = decimal.Zero
		currentRevenue  = decimal.Zero
		previousRevenue = decimal.Zero
		monthly         [12]decimal.Decimal
		recent          []RecentOrder
		sellerOrders    int
		recentCount     int
		activeUsers     = make(map[uuid.UUID]struct{})
		sales           []*productSales
		salesIndex      = make(map[uuid.UUID]*productSales)
	)
	for i := range monthly {
		monthly[i] = decimal.Zero
	}

	for _, order := range sorted {
		revenue := decimal.Zero
		matched := 0
		for _, item := range order.Items {
			if _, ok := owned[item.ProductID]; !ok {
				continue
			}
			matched++
			line := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			revenue = revenue.Add(line)

			ps, ok := salesIndex[item.ProductID]
			if !ok {
				ps = &productSales{id: item.ProductID, revenue: decimal.Zero}
				salesIndex[item.ProductID] = ps
				sales = append(sales, ps)
			}
			ps.quantity += item.Quantity
			ps.revenue = ps.revenue.Add(line)
		}
		if matched == 0 {
			continue
		}
		sellerOrders++

		created := order.CreatedAt.UTC()
		if order.IsPaid {
			totalRevenue = totalRevenue.Add(revenue)
			monthly[created.Month()-1] = monthly[created.Month()-1].Add(revenue)

			month := monthStart(created)
			if month.Equal(currentMonth) {
				currentRevenue = currentRevenue.Add(revenue)
			} else if month.Equal(previousMonth) {
				previousRevenue = previousRevenue.Add(revenue)
			}
		}

		if len(recent) < recentOrderLimit {
			recent = append(recent, RecentOrder{
				ID:          order.ID,
				CreatedAt:   order.CreatedAt,
				TotalAmount: revenue.StringFixed(2),
				IsPaid:      order.IsPaid,
				IsDelivered: order.IsDelivered,
				ItemCount:   matched,
			})
		}

		if created.After(activitySince) {
			recentCount++
			activeUsers[order.UserID] = struct{}{}
		}
	}

	summary := &Summary{
		TotalRevenue:       totalRevenue.StringFixed(2),
		RevenueChange:      RevenueChange(currentRevenue, previousRevenue).StringFixed(1),
		MonthlyRevenue:     make([]MonthlyRevenue, 0, len(monthNames)),
		TotalOrders:        sellerOrders,
		RecentOrdersCount:  recentCount,
		RecentOrders:       recent,
		TotalProducts:      len(products),
		NewProductsCount:   countNewProducts(products, now.Add(-newProductWindow)),
		TopSellingProducts: topProducts(sales, owned),
		ActiveUsers:        len(activeUsers),
	}
	if summary.RecentOrders == nil {
		summary.RecentOrders = []RecentOrder{}
	}
	for i, name := range monthNames {
		summary.MonthlyRevenue = append(summary.MonthlyRevenue, MonthlyRevenue{
			Name:    name,
			Revenue: monthly[i].StringFixed(2),
		})
	}

	return summary
}

// RevenueChange is the month-over-month change in percent. A previous
// month without revenue yields 0.
func RevenueChange(current, previous decimal.Decimal) decimal.Decimal {
	if previous.IsZero() {
		return decimal.Zero
	}
	return current.Sub(previous).Div(previous).Mul(decimal.NewFromInt(100))
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func countNewProducts(products []models.Product, since time.Time) int {
	n := 0
	for _, p := range products {
		if p.CreatedAt.After(since) {
			n++
		}
	}
	return n
}

// topProducts ranks by quantity sold; ties keep first-encounter order,
// which is newest order first.
func topProducts(sales []*productSales, owned map[uuid.UUID]*models.Product) []TopProduct {
	ranked := make([]*productSales, len(sales))
	copy(ranked, sales)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].quantity > ranked[j].quantity
	})
	if len(ranked) > topProductLimit {
		ranked = ranked[:topProductLimit]
	}

	out := make([]TopProduct, 0, len(ranked))
	for _, ps := range ranked {
		p := owned[ps.id]
		out = append(out, TopProduct{
			ID:           ps.id,
			Name:         p.Name,
			Image:        p.Image,
			Price:        p.Price.StringFixed(2),
			TotalSold:    ps.quantity,
			TotalRevenue: ps.revenue.StringFixed(2),
		})
	}
	return out
}
