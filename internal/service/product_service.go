package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/apperr"
	"storefront/internal/auth"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	defaultPageLimit = 10
	maxPageLimit     = 100
)

// ProductService handles catalog business logic
type ProductService struct {
	products          ProductStore
	users             UserStore
	lowStockThreshold int
	logger            *zap.Logger
}

// NewProductService creates a new product service
func NewProductService(products ProductStore, users UserStore, lowStockThreshold int) *ProductService {
	return &ProductService{
		products:          products,
		users:             users,
		lowStockThreshold: lowStockThreshold,
		logger:            util.GetLogger(),
	}
}

// ListProductsQuery selects one page of the catalog
type ListProductsQuery struct {
	Page     int    `form:"page"`
	Limit    int    `form:"limit"`
	Search   string `form:"search"`
	Category string `form:"category"`
	Seller   string `form:"seller"`
}

// Pagination describes the page returned by List
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	TotalPages int `json:"total_pages"`
}

// ProductList is one page of products
type ProductList struct {
	Count      int              `json:"count"`
	Total      int              `json:"total"`
	Pagination Pagination       `json:"pagination"`
	Items      []models.Product `json:"items"`
}

// CreateProductRequest represents a new catalog entry
type CreateProductRequest struct {
	Name          string          `json:"name" binding:"required,max=75"`
	Description   string          `json:"description" binding:"required,max=500"`
	Price         decimal.Decimal `json:"price"`
	DiscountPrice decimal.Decimal `json:"discount_price"`
	Quantity      int             `json:"quantity" binding:"min=0"`
	Image         string          `json:"image"`
	Category      models.Category `json:"category" binding:"required"`
	Subcategory   string          `json:"subcategory"`
}

// UpdateProductRequest is a partial product update; nil fields are kept
type UpdateProductRequest struct {
	Name          *string          `json:"name" binding:"omitempty,max=75"`
	Description   *string          `json:"description" binding:"omitempty,max=500"`
	Price         *decimal.Decimal `json:"price"`
	DiscountPrice *decimal.Decimal `json:"discount_price"`
	Quantity      *int             `json:"quantity" binding:"omitempty,min=0"`
	Image         *string          `json:"image"`
	Category      *models.Category `json:"category"`
	Subcategory   *string          `json:"subcategory"`
}

// AddReviewRequest represents a customer rating
type AddReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"max=500"`
}

// List returns one page of products, newest first
func (s *ProductService) List(ctx context.Context, q *ListProductsQuery) (*ProductList, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.List")
	defer span.End()

	page, limit := normalizePage(q.Page, q.Limit)
	filter := store.ProductFilter{
		Search: strings.TrimSpace(q.Search),
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if q.Category != "" {
		c := models.Category(q.Category)
		if !c.Valid() {
			return nil, apperr.Validation(fmt.Sprintf("Unknown category %q", q.Category))
		}
		filter.Category = c
	}
	if q.Seller != "" {
		id, err := uuid.Parse(q.Seller)
		if err != nil {
			return nil, apperr.Validation("Invalid seller id")
		}
		filter.SellerID = id
	}

	items, total, err := s.products.ListProducts(ctx, filter)
	if err != nil {
		return nil, apperr.Internal("failed to list products", err)
	}

	return &ProductList{
		Count: len(items),
		Total: total,
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			TotalPages: (total + limit - 1) / limit,
		},
		Items: items,
	}, nil
}

// Get returns a product with its reviews
func (s *ProductService) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "Product not found")
	}
	return product, nil
}

// Create adds a product owned by the calling seller
func (s *ProductService) Create(ctx context.Context, p auth.Principal, req *CreateProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.Create")
	defer span.End()

	if err := auth.RequireRole(p, models.RoleSeller); err != nil {
		return nil, err
	}

	product := &models.Product{
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		Price:         req.Price,
		DiscountPrice: req.DiscountPrice,
		Quantity:      req.Quantity,
		Image:         req.Image,
		Category:      req.Category,
		Subcategory:   req.Subcategory,
		SellerID:      p.ID,
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.products.CreateProduct(ctx, product); err != nil {
		return nil, apperr.Internal("failed to create product", err)
	}
	product.Reviews = []models.Review{}

	util.ProductsCreatedTotal.Inc()
	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("seller_id", p.ID.String()))
	return product, nil
}

// Update applies a partial update. The product is resolved before the
// ownership check, so a missing product is NotFound and someone else's is
// Forbidden.
func (s *ProductService) Update(ctx context.Context, p auth.Principal, id uuid.UUID, req *UpdateProductRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.Update")
	defer span.End()

	product, err := s.authorizeProduct(ctx, p, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		product.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.DiscountPrice != nil {
		product.DiscountPrice = *req.DiscountPrice
	}
	if req.Quantity != nil {
		product.Quantity = *req.Quantity
	}
	if req.Image != nil {
		product.Image = *req.Image
	}
	if req.Category != nil {
		product.Category = *req.Category
	}
	if req.Subcategory != nil {
		product.Subcategory = *req.Subcategory
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.products.UpdateProduct(ctx, product); err != nil {
		return nil, storeErr(err, "Product not found")
	}
	return product, nil
}

// Delete removes a product after the same checks as Update
func (s *ProductService) Delete(ctx context.Context, p auth.Principal, id uuid.UUID) error {
	ctx, span := util.StartSpan(ctx, "ProductService.Delete")
	defer span.End()

	if _, err := s.authorizeProduct(ctx, p, id); err != nil {
		return err
	}
	if err := s.products.DeleteProduct(ctx, id); err != nil {
		return storeErr(err, "Product not found")
	}

	s.logger.Info("Product deleted",
		zap.String("product_id", id.String()),
		zap.String("by", p.ID.String()))
	return nil
}

// AddReview records one review per user per product and returns the
// product with its recomputed rating
func (s *ProductService) AddReview(ctx context.Context, p auth.Principal, id uuid.UUID, req *AddReviewRequest) (*models.Product, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.AddReview")
	defer span.End()

	if req.Rating < 1 || req.Rating > 5 {
		return nil, apperr.Validation("Rating must be between 1 and 5")
	}
	if _, err := s.products.GetProductByID(ctx, id); err != nil {
		return nil, storeErr(err, "Product not found")
	}
	user, err := s.users.GetUserByID(ctx, p.ID)
	if err != nil {
		return nil, storeErr(err, "User not found")
	}

	review := &models.Review{
		ProductID: id,
		UserID:    p.ID,
		Name:      user.Name,
		Rating:    req.Rating,
		Comment:   req.Comment,
	}
	if err := s.products.AddReview(ctx, review); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Validation("Product already reviewed")
		}
		return nil, storeErr(err, "Product not found")
	}
	return s.Get(ctx, id)
}

// Stats aggregates the whole catalog for admins
func (s *ProductService) Stats(ctx context.Context, p auth.Principal) (*store.ProductStats, error) {
	ctx, span := util.StartSpan(ctx, "ProductService.Stats")
	defer span.End()

	if err := auth.RequireRole(p, models.RoleAdmin); err != nil {
		return nil, err
	}
	stats, err := s.products.GetProductStats(ctx, s.lowStockThreshold)
	if err != nil {
		return nil, apperr.Internal("failed to aggregate product stats", err)
	}
	return stats, nil
}

func (s *ProductService) authorizeProduct(ctx context.Context, p auth.Principal, id uuid.UUID) (*models.Product, error) {
	if err := auth.RequireRole(p, models.RoleSeller, models.RoleAdmin); err != nil {
		return nil, err
	}
	product, err := s.products.GetProductByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "Product not found")
	}
	if err := auth.RequireOwnership(p, product.SellerID); err != nil {
		return nil, apperr.Forbidden("Not authorized to manage this product")
	}
	return product, nil
}

func validateProduct(p *models.Product) error {
	switch {
	case p.Name == "":
		return apperr.Validation("Please add a product name")
	case len(p.Name) > 75:
		return apperr.Validation("Name cannot be more than 75 characters")
	case len(p.Description) > 500:
		return apperr.Validation("Description cannot be more than 500 characters")
	case p.Price.IsNegative():
		return apperr.Validation("Price must be a positive number")
	case p.DiscountPrice.IsNegative():
		return apperr.Validation("Discount price must be a positive number")
	case p.Quantity < 0:
		return apperr.Validation("Quantity cannot be negative")
	case !p.Category.Valid():
		return apperr.Validation(fmt.Sprintf("Unknown category %q", p.Category))
	}
	return nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return page, limit
}
