package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/foodbook/api/internal/database"
	"github.com/foodbook/api/internal/middleware"
	"github.com/foodbook/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// ProductStore defines the database methods needed by product handlers.
// Satisfied by *database.Queries.
type ProductStore interface {
	CreateProduct(ctx context.Context, arg database.CreateProductParams) (database.Product, error)
	ListProductsByOwner(ctx context.Context, ownerEmail string) ([]database.Product, error)
	GetProduct(ctx context.Context, arg database.GetProductParams) (database.Product, error)
	UpdateProduct(ctx context.Context, arg database.UpdateProductParams) (database.Product, error)
	DeleteProduct(ctx context.Context, arg database.DeleteProductParams) (uuid.UUID, error)
}

// StockLedger adjusts stock levels. Satisfied by *service.Ledger.
type StockLedger interface {
	SetStock(ctx context.Context, productID uuid.UUID, ownerEmail string, stock int32) (database.Product, error)
}

// ProductHandler handles catalog endpoints.
type ProductHandler struct {
	store  ProductStore
	ledger StockLedger
}

// NewProductHandler creates a new ProductHandler.
func NewProductHandler(store ProductStore, ledger StockLedger) *ProductHandler {
	return &ProductHandler{store: store, ledger: ledger}
}

// RegisterRoutes registers the owner-facing catalog endpoints.
func (h *ProductHandler) RegisterRoutes(r chi.Router) {
	r.Get("/products", h.List)
	r.Post("/products", h.Create)
	r.Get("/products/{productID}", h.Get)
	r.Put("/products/{productID}", h.Update)
	r.Delete("/products/{productID}", h.Delete)
	r.Patch("/products/{productID}/stock", h.SetStock)
}

// RegisterPublicRoutes registers the guest-facing menu endpoint.
func (h *ProductHandler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/shops/{ownerEmail}/menu", h.Menu)
}

// --- Request / Response types ---

type productRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description"`
	Category    string  `json:"category"`
	Price       string  `json:"price"`
	Stock       int32   `json:"stock"`
	ImageURL    *string `json:"image_url"`
}

type stockRequest struct {
	Stock int32 `json:"stock"`
}

type productResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
	Category    string  `json:"category"`
	Price       string  `json:"price"`
	Stock       int32   `json:"stock"`
	ImageURL    *string `json:"image_url,omitempty"`
	CreatedAt   string  `json:"created_at"`
}

func toProductResponse(p database.Product) productResponse {
	resp := productResponse{
		ID:        p.ID.String(),
		Name:      p.Name,
		Category:  p.Category,
		Price:     numericToString(p.Price),
		Stock:     p.Stock,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
	}
	if p.Description.Valid {
		resp.Description = &p.Description.String
	}
	if p.ImageUrl.Valid {
		resp.ImageURL = &p.ImageUrl.String
	}
	return resp
}

// --- Handlers ---

// List handles GET /products for the authenticated owner.
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	products, err := h.store.ListProductsByOwner(r.Context(), claims.Email)
	if err != nil {
		log.Printf("ERROR: list products: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Menu handles GET /shops/{ownerEmail}/menu. Guests browse a restaurant's
// catalog without a token.
func (h *ProductHandler) Menu(w http.ResponseWriter, r *http.Request) {
	ownerEmail := strings.ToLower(chi.URLParam(r, "ownerEmail"))
	if ownerEmail == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "owner email is required"})
		return
	}

	products, err := h.store.ListProductsByOwner(r.Context(), ownerEmail)
	if err != nil {
		log.Printf("ERROR: list menu: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]productResponse, 0, len(products))
	for _, p := range products {
		resp = append(resp, toProductResponse(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create handles POST /products.
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	price, msg := validateProductRequest(&req)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	product, err := h.store.CreateProduct(r.Context(), database.CreateProductParams{
		OwnerEmail:  claims.Email,
		Name:        req.Name,
		Description: textFromPtr(req.Description),
		Category:    req.Category,
		Price:       decimalToNumeric(price),
		Stock:       req.Stock,
		ImageUrl:    textFromPtr(req.ImageURL),
	})
	if err != nil {
		log.Printf("ERROR: create product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toProductResponse(product))
}

// Get handles GET /products/{productID}.
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}

	product, err := h.store.GetProduct(r.Context(), database.GetProductParams{ID: productID, OwnerEmail: claims.Email})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: get product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// Update handles PUT /products/{productID}. Stock is not touched here;
// use the stock endpoint so counts only move through the ledger.
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}

	var req productRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	price, msg := validateProductRequest(&req)
	if msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	product, err := h.store.UpdateProduct(r.Context(), database.UpdateProductParams{
		ID:          productID,
		OwnerEmail:  claims.Email,
		Name:        req.Name,
		Description: textFromPtr(req.Description),
		Category:    req.Category,
		Price:       decimalToNumeric(price),
		ImageUrl:    textFromPtr(req.ImageURL),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: update product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// Delete handles DELETE /products/{productID}.
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}

	if _, err := h.store.DeleteProduct(r.Context(), database.DeleteProductParams{ID: productID, OwnerEmail: claims.Email}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
			return
		}
		log.Printf("ERROR: delete product: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SetStock handles PATCH /products/{productID}/stock.
func (h *ProductHandler) SetStock(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	productID, err := uuid.Parse(chi.URLParam(r, "productID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}

	var req stockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	product, err := h.ledger.SetStock(r.Context(), productID, claims.Email, req.Stock)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNegativeStock):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrProductNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		default:
			log.Printf("ERROR: set stock: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusOK, toProductResponse(product))
}

// --- Helpers ---

func validateProductRequest(req *productRequest) (decimal.Decimal, string) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return decimal.Zero, "name is required"
	}
	req.Category = strings.TrimSpace(req.Category)
	if req.Category == "" {
		return decimal.Zero, "category is required"
	}
	price, err := decimal.NewFromString(req.Price)
	if err != nil || price.IsNegative() {
		return decimal.Zero, "price must be a non-negative number"
	}
	if req.Stock < 0 {
		return decimal.Zero, "stock must be >= 0"
	}
	return price, ""
}

func textFromPtr(s *string) pgtype.Text {
	if s == nil || *s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: *s, Valid: true}
}

func numericToString(n pgtype.Numeric) string {
	if !n.Valid {
		return "0.00"
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return "0.00"
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return "0.00"
	}
	return d.StringFixed(2)
}

func decimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}
