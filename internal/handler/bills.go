package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/foodbook/api/internal/middleware"
	"github.com/foodbook/api/internal/service"
	"github.com/foodbook/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// BillServicer reads and edits a seat's bill. Satisfied by
// *service.BillService.
type BillServicer interface {
	GetBill(ctx context.Context, seatNumber, ownerEmail string) (*service.BillView, error)
	RemoveItem(ctx context.Context, seatNumber, ownerEmail, itemName string) error
	AddItem(ctx context.Context, seatNumber, ownerEmail string, productID uuid.UUID) (*service.CreateOrderResult, error)
}

// BillCloser settles a seat's bill. Satisfied by *service.StatusService.
type BillCloser interface {
	CloseBill(ctx context.Context, seatNumber, ownerEmail string) (int64, error)
}

// BillHandler handles bill endpoints.
type BillHandler struct {
	svc    BillServicer
	closer BillCloser
	hub    Broadcaster
}

// NewBillHandler creates a new BillHandler.
func NewBillHandler(svc BillServicer, closer BillCloser, hub Broadcaster) *BillHandler {
	return &BillHandler{svc: svc, closer: closer, hub: hub}
}

// RegisterRoutes registers the owner-facing bill endpoints.
func (h *BillHandler) RegisterRoutes(r chi.Router) {
	r.Get("/bills/{seatNumber}", h.Get)
	r.Post("/bills/{seatNumber}/close", h.Close)
	r.Post("/bills/{seatNumber}/items", h.AddItem)
	r.Delete("/bills/{seatNumber}/items/{itemName}", h.RemoveItem)
}

// --- Request / Response types ---

type addBillItemRequest struct {
	ProductID string `json:"product_id"`
}

type billLineResponse struct {
	Name      string `json:"name"`
	Quantity  int32  `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	LineTotal string `json:"line_total"`
}

type billResponse struct {
	SeatNumber  string             `json:"seat_number"`
	CompanyName string             `json:"company_name"`
	OrdersCount int                `json:"orders_count"`
	Items       []billLineResponse `json:"items"`
	GrandTotal  string             `json:"grand_total"`
	FoodNote    *string            `json:"food_note,omitempty"`
}

type closeBillResponse struct {
	SeatNumber string `json:"seat_number"`
	OrdersPaid int64  `json:"orders_paid"`
}

func toBillResponse(view *service.BillView) billResponse {
	resp := billResponse{
		SeatNumber:  view.SeatNumber,
		CompanyName: view.CompanyName,
		OrdersCount: view.OrdersCount,
		Items:       make([]billLineResponse, 0, len(view.Items)),
		GrandTotal:  view.GrandTotal.StringFixed(2),
	}
	for _, line := range view.Items {
		resp.Items = append(resp.Items, billLineResponse{
			Name:      line.Name,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.StringFixed(2),
			LineTotal: line.LineTotal.StringFixed(2),
		})
	}
	if view.FoodNote != "" {
		resp.FoodNote = &view.FoodNote
	}
	return resp
}

// --- Handlers ---

// Get handles GET /bills/{seatNumber}.
func (h *BillHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	seat := seatParam(r)
	if seat == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "seat number is required"})
		return
	}

	view, err := h.svc.GetBill(r.Context(), seat, claims.Email)
	if err != nil {
		log.Printf("ERROR: get bill: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	if view == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no open bill for this seat"})
		return
	}

	writeJSON(w, http.StatusOK, toBillResponse(view))
}

// Close handles POST /bills/{seatNumber}/close: every Completed order for
// the seat flips to Paid in one shot.
func (h *BillHandler) Close(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	seat := seatParam(r)
	if seat == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "seat number is required"})
		return
	}

	count, err := h.closer.CloseBill(r.Context(), seat, claims.Email)
	if err != nil {
		if errors.Is(err, service.ErrNoOrdersFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no open bill for this seat"})
			return
		}
		log.Printf("ERROR: close bill: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := closeBillResponse{SeatNumber: seat, OrdersPaid: count}
	h.broadcastBill(claims.Email, ws.EventBillClosed, resp)
	writeJSON(w, http.StatusOK, resp)
}

// AddItem handles POST /bills/{seatNumber}/items: appends one unit of a
// product to the seat's bill as a fresh Completed order.
func (h *BillHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	seat := seatParam(r)
	if seat == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "seat number is required"})
		return
	}

	var req addBillItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	productID, err := uuid.Parse(req.ProductID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product_id"})
		return
	}

	result, err := h.svc.AddItem(r.Context(), seat, claims.Email, productID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrProductNotFound):
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "product not found"})
		case errors.Is(err, service.ErrInsufficientStock):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			log.Printf("ERROR: add bill item: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		}
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(result.Order, result.Items))
}

// RemoveItem handles DELETE /bills/{seatNumber}/items/{itemName}: removes
// one unit of the named dish from the seat's oldest matching order.
func (h *BillHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	seat := seatParam(r)
	name := chi.URLParam(r, "itemName")
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	name = strings.TrimSpace(name)
	if seat == "" || name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "seat number and item name are required"})
		return
	}

	if err := h.svc.RemoveItem(r.Context(), seat, claims.Email, name); err != nil {
		if errors.Is(err, service.ErrItemNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "item not found on this bill"})
			return
		}
		log.Printf("ERROR: remove bill item: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func (h *BillHandler) broadcastBill(ownerEmail, eventType string, payload interface{}) {
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

func seatParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "seatNumber"))
}
