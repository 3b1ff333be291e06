package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// ProductFilter narrows a catalog listing
type ProductFilter struct {
	Search   string
	Category models.Category
	SellerID uuid.UUID
	Limit    int
	Offset   int
}

// CategoryCount is the number of products in one category
type CategoryCount struct {
	Category models.Category `db:"category" json:"category"`
	Count    int             `db:"count" json:"count"`
}

// ProductStats summarises the whole catalog
type ProductStats struct {
	TotalProducts    int             `json:"total_products"`
	CategoryStats    []CategoryCount `json:"category_stats"`
	LowStockProducts int             `json:"low_stock_products"`
	InventoryValue   decimal.Decimal `json:"inventory_value"`
}

// CreateProduct inserts a new product
func (s *Store) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.ID == uuid.Nil {
		product.ID = uuid.New()
	}

	query := `
		INSERT INTO products (id, name, description, price, discount_price, quantity,
			image, category, subcategory, seller_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at`

	row := s.db.QueryRowxContext(ctx, query,
		product.ID, product.Name, product.Description, product.Price, product.DiscountPrice,
		product.Quantity, product.Image, product.Category, product.Subcategory, product.SellerID)
	return row.Scan(&product.CreatedAt, &product.UpdatedAt)
}

// GetProductByID retrieves a product and its reviews
func (s *Store) GetProductByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	product.Reviews = []models.Review{}
	err = s.db.SelectContext(ctx, &product.Reviews,
		"SELECT * FROM product_reviews WHERE product_id = $1 ORDER BY created_at DESC", id)
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProducts returns one page of products matching f, newest first, and
// the total number of matches
func (s *Store) ListProducts(ctx context.Context, f ProductFilter) ([]models.Product, int, error) {
	var (
		where []string
		args  []interface{}
	)
	if f.Search != "" {
		args = append(args, "%"+escapeLike(f.Search)+"%")
		where = append(where, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, fmt.Sprintf("category = $%d", len(args)))
	}
	if f.SellerID != uuid.Nil {
		args = append(args, f.SellerID)
		where = append(where, fmt.Sprintf("seller_id = $%d", len(args)))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM products"+clause, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, f.Limit, f.Offset)
	query := fmt.Sprintf("SELECT * FROM products%s ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d",
		clause, len(args)-1, len(args))

	products := []models.Product{}
	if err := s.db.SelectContext(ctx, &products, query, args...); err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// GetProductsBySeller retrieves every product owned by a seller
func (s *Store) GetProductsBySeller(ctx context.Context, sellerID uuid.UUID) ([]models.Product, error) {
	products := []models.Product{}
	err := s.db.SelectContext(ctx, &products,
		"SELECT * FROM products WHERE seller_id = $1 ORDER BY created_at DESC, id", sellerID)
	return products, err
}

// GetProductsByIDs retrieves multiple products by IDs
func (s *Store) GetProductsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In("SELECT * FROM products WHERE id IN (?)", ids)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var products []models.Product
	err = s.db.SelectContext(ctx, &products, query, args...)
	return products, err
}

// UpdateProduct replaces the mutable fields of a product. The owning seller
// is never changed.
func (s *Store) UpdateProduct(ctx context.Context, product *models.Product) error {
	query := `
		UPDATE products SET name = $1, description = $2, price = $3, discount_price = $4,
			quantity = $5, image = $6, category = $7, subcategory = $8, updated_at = NOW()
		WHERE id = $9
		RETURNING updated_at`

	err := s.db.GetContext(ctx, &product.UpdatedAt, query,
		product.Name, product.Description, product.Price, product.DiscountPrice,
		product.Quantity, product.Image, product.Category, product.Subcategory, product.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("product %s: %w", product.ID, ErrNotFound)
	}
	return err
}

// DeleteProduct removes a product; historical order lines keep their snapshots
func (s *Store) DeleteProduct(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		return err
	}
	return expectAffected(res, "product "+id.String())
}

// AddReview stores a review and recomputes the product rating in the same
// transaction. A second review by the same user yields ErrDuplicate.
func (s *Store) AddReview(ctx context.Context, review *models.Review) error {
	if review.ID == uuid.Nil {
		review.ID = uuid.New()
	}

	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &review.CreatedAt, `
			INSERT INTO product_reviews (id, product_id, user_id, name, rating, comment)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING created_at`,
			review.ID, review.ProductID, review.UserID, review.Name, review.Rating, review.Comment)
		if isUniqueViolation(err) {
			return fmt.Errorf("review by %s: %w", review.UserID, ErrDuplicate)
		}
		if err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE products SET
				num_reviews = (SELECT COUNT(*) FROM product_reviews WHERE product_id = $1),
				rating = (SELECT ROUND(AVG(rating)::numeric, 2) FROM product_reviews WHERE product_id = $1),
				updated_at = NOW()
			WHERE id = $1`, review.ProductID)
		if err != nil {
			return err
		}
		return expectAffected(res, "product "+review.ProductID.String())
	})
}

// GetProductStats aggregates the whole catalog in the database
func (s *Store) GetProductStats(ctx context.Context, lowStockThreshold int) (*ProductStats, error) {
	stats := &ProductStats{CategoryStats: []CategoryCount{}}

	if err := s.db.GetContext(ctx, &stats.TotalProducts, "SELECT COUNT(*) FROM products"); err != nil {
		return nil, err
	}

	err := s.db.SelectContext(ctx, &stats.CategoryStats, `
		SELECT category, COUNT(*) AS count FROM products
		GROUP BY category ORDER BY count DESC, category`)
	if err != nil {
		return nil, err
	}

	err = s.db.GetContext(ctx, &stats.LowStockProducts,
		"SELECT COUNT(*) FROM products WHERE quantity < $1", lowStockThreshold)
	if err != nil {
		return nil, err
	}

	err = s.db.GetContext(ctx, &stats.InventoryValue,
		"SELECT COALESCE(SUM(price * quantity), 0) FROM products")
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
