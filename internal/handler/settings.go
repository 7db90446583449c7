package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/foodbook/api/internal/database"
	"github.com/foodbook/api/internal/enum"
	"github.com/foodbook/api/internal/middleware"
	"github.com/foodbook/api/internal/otp"
	"github.com/foodbook/api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"golang.org/x/crypto/bcrypt"
)

// SettingsStore defines the database methods needed by settings handlers.
// Satisfied by *database.Queries (and its WithTx variant).
type SettingsStore interface {
	GetUserByEmail(ctx context.Context, email string) (database.User, error)
	UpdateUserCompanyName(ctx context.Context, arg database.UpdateUserCompanyNameParams) (database.User, error)
	UpsertRolePassword(ctx context.Context, arg database.UpsertRolePasswordParams) (database.RolePassword, error)
	GetRolePassword(ctx context.Context, arg database.GetRolePasswordParams) (database.RolePassword, error)
	ListRolePasswords(ctx context.Context, ownerEmail string) ([]database.RolePassword, error)
	DeleteProductsByOwner(ctx context.Context, ownerEmail string) error
	DeleteOrdersByOwner(ctx context.Context, ownerEmail string) error
	DeleteRolePasswordsByOwner(ctx context.Context, ownerEmail string) error
	DeleteUserByEmail(ctx context.Context, email string) error
}

// NewSettingsStore creates a SettingsStore from a DBTX (pool or tx).
type NewSettingsStore func(db database.DBTX) SettingsStore

// SettingsHandler handles tenant settings: company name, staff role
// passwords and account deletion.
type SettingsHandler struct {
	pool     service.TxBeginner
	newStore NewSettingsStore
	store    SettingsStore
	codes    OtpStore
}

// NewSettingsHandler creates a new SettingsHandler. store is the
// pool-backed SettingsStore used outside transactions.
func NewSettingsHandler(pool service.TxBeginner, newStore NewSettingsStore, store SettingsStore, codes OtpStore) *SettingsHandler {
	return &SettingsHandler{pool: pool, newStore: newStore, store: store, codes: codes}
}

// RegisterRoutes registers the owner-facing settings endpoints.
func (h *SettingsHandler) RegisterRoutes(r chi.Router) {
	r.Put("/settings/company", h.UpdateCompanyName)
	r.Get("/settings/roles", h.ListRoles)
	r.Put("/settings/roles/{role}", h.SetRolePassword)
	r.Post("/settings/roles/{role}/verify", h.VerifyRolePassword)
	r.Delete("/account", h.DeleteAccount)
}

// --- Request / Response types ---

type companyNameRequest struct {
	CompanyName string `json:"company_name"`
}

type rolePasswordRequest struct {
	Password string `json:"password"`
}

type verifyRoleRequest struct {
	Password string `json:"password"`
	Area     string `json:"area"`
}

type roleStatusResponse struct {
	Role  string `json:"role"`
	IsSet bool   `json:"is_set"`
}

type verifyRoleResponse struct {
	Role  string   `json:"role"`
	Areas []string `json:"areas"`
}

type deleteAccountRequest struct {
	Code string `json:"code"`
}

// --- Handlers ---

// UpdateCompanyName handles PUT /settings/company. The name is printed on
// every bill for this tenant.
func (h *SettingsHandler) UpdateCompanyName(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	var req companyNameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	req.CompanyName = strings.TrimSpace(req.CompanyName)
	if req.CompanyName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "company name is required"})
		return
	}

	user, err := h.store.UpdateUserCompanyName(r.Context(), database.UpdateUserCompanyNameParams{
		Email:       claims.Email,
		CompanyName: pgtype.Text{String: req.CompanyName, Valid: true},
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "account not found"})
			return
		}
		log.Printf("ERROR: update company name: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// ListRoles handles GET /settings/roles: every known role with whether a
// password has been set for it.
func (h *SettingsHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	existing, err := h.store.ListRolePasswords(r.Context(), claims.Email)
	if err != nil {
		log.Printf("ERROR: list role passwords: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	set := make(map[string]bool, len(existing))
	for _, rp := range existing {
		set[rp.Role] = true
	}

	resp := make([]roleStatusResponse, 0, len(enum.Roles()))
	for _, role := range enum.Roles() {
		resp = append(resp, roleStatusResponse{Role: string(role), IsSet: set[string(role)]})
	}
	writeJSON(w, http.StatusOK, resp)
}

// SetRolePassword handles PUT /settings/roles/{role}.
func (h *SettingsHandler) SetRolePassword(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	role := enum.Role(chi.URLParam(r, "role"))
	if !role.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown role"})
		return
	}

	var req rolePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.Password) < 4 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "password must be at least 4 characters"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("ERROR: hash role password: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if _, err := h.store.UpsertRolePassword(r.Context(), database.UpsertRolePasswordParams{
		OwnerEmail:   claims.Email,
		Role:         string(role),
		PasswordHash: string(hash),
	}); err != nil {
		log.Printf("ERROR: upsert role password: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, roleStatusResponse{Role: string(role), IsSet: true})
}

// VerifyRolePassword handles POST /settings/roles/{role}/verify. Staff
// unlock a dashboard area with their role's password; the role must both
// match the password and be allowed into the requested area.
func (h *SettingsHandler) VerifyRolePassword(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	role := enum.Role(chi.URLParam(r, "role"))
	if !role.Valid() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown role"})
		return
	}

	var req verifyRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	rp, err := h.store.GetRolePassword(r.Context(), database.GetRolePasswordParams{
		OwnerEmail: claims.Email,
		Role:       string(role),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no password set for this role"})
			return
		}
		log.Printf("ERROR: get role password: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(rp.PasswordHash), []byte(req.Password)); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "wrong password"})
		return
	}

	if req.Area != "" && !role.Allows(enum.Area(req.Area)) {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "role may not open this area"})
		return
	}

	writeJSON(w, http.StatusOK, verifyRoleResponse{Role: string(role), Areas: areasFor(role)})
}

// DeleteAccount handles DELETE /account. The owner confirms with a fresh
// one-time code; all tenant data goes in one transaction.
func (h *SettingsHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())

	var req deleteAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "confirmation code is required"})
		return
	}

	if err := h.codes.Verify(r.Context(), claims.Email, enum.OtpPurposeDeleteAccount, req.Code); err != nil {
		if errors.Is(err, otp.ErrCodeMismatch) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired code"})
			return
		}
		log.Printf("ERROR: verify delete code: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	tx, err := h.pool.Begin(r.Context())
	if err != nil {
		log.Printf("ERROR: begin delete account tx: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	defer tx.Rollback(r.Context())

	store := h.newStore(tx)
	for _, del := range []func(context.Context, string) error{
		store.DeleteOrdersByOwner,
		store.DeleteProductsByOwner,
		store.DeleteRolePasswordsByOwner,
		store.DeleteUserByEmail,
	} {
		if err := del(r.Context(), claims.Email); err != nil {
			log.Printf("ERROR: delete account data: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
	}

	if err := tx.Commit(r.Context()); err != nil {
		log.Printf("ERROR: commit delete account tx: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- Helpers ---

func areasFor(role enum.Role) []string {
	all := []enum.Area{enum.AreaKitchen, enum.AreaInventory, enum.AreaBilling, enum.AreaMenu, enum.AreaSettings}
	var out []string
	for _, a := range all {
		if role.Allows(a) {
			out = append(out, string(a))
		}
	}
	return out
}
