package handler

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/foodbook/api/internal/database"
	"github.com/foodbook/api/internal/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// ReportsStore defines the database methods needed by report handlers.
// Satisfied by *database.Queries.
type ReportsStore interface {
	GetDailySales(ctx context.Context, arg database.GetDailySalesParams) ([]database.GetDailySalesRow, error)
	GetProductSales(ctx context.Context, arg database.GetProductSalesParams) ([]database.GetProductSalesRow, error)
}

// ReportsHandler handles report endpoints.
type ReportsHandler struct {
	store ReportsStore
}

// NewReportsHandler creates a new ReportsHandler.
func NewReportsHandler(store ReportsStore) *ReportsHandler {
	return &ReportsHandler{store: store}
}

// RegisterRoutes registers the owner-facing report endpoints.
func (h *ReportsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/reports/sales", h.DailySales)
	r.Get("/reports/products", h.ProductSales)
}

// --- Response types ---

type dailySalesResponse struct {
	Date         string `json:"date"`
	OrderCount   int64  `json:"order_count"`
	TotalRevenue string `json:"total_revenue"`
	TotalTax     string `json:"total_tax"`
}

type productSalesResponse struct {
	ProductID    uuid.UUID `json:"product_id"`
	ProductName  string    `json:"product_name"`
	QuantitySold int64     `json:"quantity_sold"`
	TotalRevenue string    `json:"total_revenue"`
}

// --- Handlers ---

// DailySales returns per-day revenue from settled bills for a date range.
func (h *ReportsHandler) DailySales(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	startDate, endDate, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rows, err := h.store.GetDailySales(r.Context(), database.GetDailySalesParams{
		OwnerEmail: claims.Email,
		StartDate:  startDate,
		EndDate:    endDate,
	})
	if err != nil {
		log.Printf("ERROR: get daily sales: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]dailySalesResponse, len(rows))
	for i, row := range rows {
		date := "N/A"
		if row.SaleDate.Valid {
			date = row.SaleDate.Time.Format("2006-01-02")
		}
		resp[i] = dailySalesResponse{
			Date:         date,
			OrderCount:   row.OrderCount,
			TotalRevenue: numericToString(row.TotalRevenue),
			TotalTax:     numericToString(row.TotalTax),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// ProductSales returns top selling dishes by quantity and revenue.
func (h *ReportsHandler) ProductSales(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	startDate, endDate, err := parseDateRange(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	limit := 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}

	rows, err := h.store.GetProductSales(r.Context(), database.GetProductSalesParams{
		OwnerEmail: claims.Email,
		StartDate:  startDate,
		EndDate:    endDate,
		Limit:      int32(limit),
	})
	if err != nil {
		log.Printf("ERROR: get product sales: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]productSalesResponse, len(rows))
	for i, row := range rows {
		resp[i] = productSalesResponse{
			ProductID:    row.ProductID,
			ProductName:  row.ProductName,
			QuantitySold: row.QuantitySold,
			TotalRevenue: numericToString(row.TotalRevenue),
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

// parseDateRange reads start_date / end_date query params (YYYY-MM-DD),
// defaulting to the last 30 days. The end date is exclusive at next
// midnight, so "today" includes today's orders.
func parseDateRange(r *http.Request) (time.Time, time.Time, error) {
	const layout = "2006-01-02"

	now := time.Now().UTC()
	startDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -30)
	endDate := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)

	if s := r.URL.Query().Get("start_date"); s != "" {
		t, err := time.Parse(layout, s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date format: %w", err)
		}
		startDate = t
	}
	if s := r.URL.Query().Get("end_date"); s != "" {
		t, err := time.Parse(layout, s)
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date format: %w", err)
		}
		endDate = t.AddDate(0, 0, 1)
	}

	if !endDate.After(startDate) {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date must not be before start_date")
	}
	return startDate, endDate, nil
}
