package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/foodbook/api/internal/database"
	"github.com/foodbook/api/internal/middleware"
	"github.com/foodbook/api/internal/service"
	"github.com/foodbook/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OrderServicer places guest orders. Satisfied by *service.OrderService.
type OrderServicer interface {
	Create(ctx context.Context, req service.CreateOrderRequest) (*service.CreateOrderResult, error)
}

// StatusServicer advances order lifecycles. Satisfied by
// *service.StatusService.
type StatusServicer interface {
	UpdateStatus(ctx context.Context, orderID uuid.UUID, ownerEmail string, next database.OrderStatus) (database.Order, error)
}

// OrderReadStore defines the read methods needed for order listings.
// Satisfied by *database.Queries.
type OrderReadStore interface {
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	GetOrder(ctx context.Context, arg database.GetOrderParams) (database.Order, error)
	ListOrderItemsByOrder(ctx context.Context, orderID uuid.UUID) ([]database.OrderItem, error)
}

// Broadcaster pushes events to a restaurant's dashboard room.
// Satisfied by *ws.Hub.
type Broadcaster interface {
	BroadcastToShop(ownerEmail string, event ws.Event)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc    OrderServicer
	status StatusServicer
	store  OrderReadStore
	hub    Broadcaster
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(svc OrderServicer, status StatusServicer, store OrderReadStore, hub Broadcaster) *OrderHandler {
	return &OrderHandler{svc: svc, status: status, store: store, hub: hub}
}

// RegisterPublicRoutes registers the guest checkout endpoint.
func (h *OrderHandler) RegisterPublicRoutes(r chi.Router) {
	r.Post("/orders", h.Create)
}

// RegisterRoutes registers the owner-facing order endpoints.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	r.Get("/orders", h.List)
	r.Get("/orders/{orderID}", h.Get)
	r.Patch("/orders/{orderID}/status", h.UpdateStatus)
}

// --- Request / Response types ---

type createOrderRequest struct {
	SeatNumber string                   `json:"seat_number"`
	FoodNote   *string                  `json:"food_note"`
	ApplyTax   bool                     `json:"apply_tax"`
	Items      []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int32  `json:"quantity"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type orderItemResponse struct {
	Name      string `json:"name"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
}

type orderResponse struct {
	ID          string              `json:"id"`
	SeatNumber  string              `json:"seat_number"`
	Status      string              `json:"status"`
	TotalAmount string              `json:"total_amount"`
	TaxAmount   string              `json:"tax_amount"`
	FoodNote    *string             `json:"food_note,omitempty"`
	CreatedAt   string              `json:"created_at"`
	Items       []orderItemResponse `json:"items,omitempty"`
}

func toOrderResponse(o database.Order, items []database.OrderItem) orderResponse {
	resp := orderResponse{
		ID:          o.ID.String(),
		SeatNumber:  o.SeatNumber,
		Status:      string(o.Status),
		TotalAmount: numericToString(o.TotalAmount),
		TaxAmount:   numericToString(o.TaxAmount),
		CreatedAt:   o.CreatedAt.Format(time.RFC3339),
	}
	if o.FoodNote.Valid {
		resp.FoodNote = &o.FoodNote.String
	}
	for _, it := range items {
		resp.Items = append(resp.Items, orderItemResponse{
			Name:      it.Name,
			Quantity:  it.Quantity,
			UnitPrice: numericToString(it.UnitPrice),
		})
	}
	return resp
}

// --- Handlers ---

// Create handles POST /orders. This is the guest checkout: no token, the
// owning restaurant is derived from the products in the cart.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	svcReq := service.CreateOrderRequest{
		SeatNumber: req.SeatNumber,
		ApplyTax:   req.ApplyTax,
	}
	if req.FoodNote != nil {
		svcReq.FoodNote = *req.FoodNote
	}
	for _, it := range req.Items {
		svcReq.Items = append(svcReq.Items, service.CreateOrderItemRequest{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
		})
	}

	result, err := h.svc.Create(r.Context(), svcReq)
	if err != nil {
		switch {
		case isValidationError(err):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrProductNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrInsufficientStock):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: create order: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	resp := toOrderResponse(result.Order, result.Items)
	h.broadcast(result.Order.OwnerEmail, ws.EventOrderCreated, resp)
	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /orders?status=&limit=&offset= for the authenticated
// owner.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	params := database.ListOrdersParams{
		OwnerEmail: claims.Email,
		Limit:      50,
	}
	if s := r.URL.Query().Get("status"); s != "" {
		status := database.OrderStatus(s)
		switch status {
		case database.OrderStatusPending, database.OrderStatusCompleted,
			database.OrderStatusCancelled, database.OrderStatusPaid:
			params.Status = database.NullOrderStatus{OrderStatus: status, Valid: true}
		default:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid status filter"})
			return
		}
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 200 {
			params.Limit = int32(n)
		}
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			params.Offset = int32(n)
		}
	}

	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o, nil))
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /orders/{orderID}, including line items.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	order, err := h.store.GetOrder(r.Context(), database.GetOrderParams{ID: orderID, OwnerEmail: claims.Email})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	items, err := h.store.ListOrderItemsByOrder(r.Context(), order.ID)
	if err != nil {
		log.Printf("ERROR: list order items: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(order, items))
}

// UpdateStatus handles PATCH /orders/{orderID}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	orderID, err := uuid.Parse(chi.URLParam(r, "orderID"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	order, err := h.status.UpdateStatus(r.Context(), orderID, claims.Email, database.OrderStatus(req.Status))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidStatus):
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, service.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		case errors.Is(err, service.ErrInvalidTransition), errors.Is(err, service.ErrStatusConflict):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: update order status: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	resp := toOrderResponse(order, nil)
	h.broadcast(order.OwnerEmail, ws.EventStatusUpdated, resp)
	writeJSON(w, http.StatusOK, resp)
}

// --- Helpers ---

func (h *OrderHandler) broadcast(ownerEmail, eventType string, payload interface{}) {
	if h.hub == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("ERROR: marshal %s event: %v", eventType, err)
		return
	}
	h.hub.BroadcastToShop(ownerEmail, ws.Event{Type: eventType, Payload: data})
}

func isValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrSeatRequired) ||
		errors.Is(err, service.ErrInvalidProductID) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrMixedOwners)
}
