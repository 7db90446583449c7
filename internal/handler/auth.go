package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"unicode"

	"github.com/foodbook/api/internal/auth"
	"github.com/foodbook/api/internal/database"
	"github.com/foodbook/api/internal/enum"
	"github.com/foodbook/api/internal/middleware"
	"github.com/foodbook/api/internal/otp"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"golang.org/x/crypto/bcrypt"
)

// AuthStore defines the database methods needed by auth handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type AuthStore interface {
	GetUserByEmail(ctx context.Context, email string) (database.User, error)
	CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error)
	SetUserPassword(ctx context.Context, arg database.SetUserPasswordParams) (database.User, error)
}

// OtpStore issues and verifies one-time codes.
// Satisfied by *otp.Store.
type OtpStore interface {
	Issue(ctx context.Context, email, purpose string) (string, error)
	Verify(ctx context.Context, email, purpose, code string) error
}

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	store     AuthStore
	codes     OtpStore
	sender    otp.Sender
	jwtSecret string
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(store AuthStore, codes OtpStore, sender otp.Sender, jwtSecret string) *AuthHandler {
	return &AuthHandler{store: store, codes: codes, sender: sender, jwtSecret: jwtSecret}
}

// RegisterRoutes registers the public auth endpoints.
func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/auth/otp", h.SendOtp)
	r.Post("/auth/verify", h.VerifyOtp)
	r.Post("/auth/login", h.Login)
}

// RegisterAuthedRoutes registers auth endpoints that need a valid token.
func (h *AuthHandler) RegisterAuthedRoutes(r chi.Router) {
	r.Post("/auth/password", h.SetPassword)
}

// --- Request / Response types ---

type sendOtpRequest struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
}

type verifyOtpRequest struct {
	Email   string `json:"email"`
	Purpose string `json:"purpose"`
	Code    string `json:"code"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type setPasswordRequest struct {
	Password string `json:"password"`
}

type tokenResponse struct {
	Token string       `json:"token"`
	User  userResponse `json:"user"`
}

type userResponse struct {
	Email          string `json:"email"`
	CompanyName    string `json:"company_name"`
	HasSetPassword bool   `json:"has_set_password"`
}

// --- Handlers ---

// SendOtp handles POST /auth/otp. It never reveals whether an account
// exists; the mail does or does not arrive.
func (h *AuthHandler) SendOtp(w http.ResponseWriter, r *http.Request) {
	var req sendOtpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || !strings.Contains(req.Email, "@") {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "valid email is required"})
		return
	}
	if !validOtpPurpose(req.Purpose) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid purpose"})
		return
	}

	code, err := h.codes.Issue(r.Context(), req.Email, req.Purpose)
	if err != nil {
		log.Printf("ERROR: issue otp: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if err := h.sender.Send(req.Email, req.Purpose, code); err != nil {
		log.Printf("ERROR: send otp mail: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "could not send code"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "code sent"})
}

// VerifyOtp handles POST /auth/verify. A valid code logs the user in; a
// first-time email gets an account created on the spot.
func (h *AuthHandler) VerifyOtp(w http.ResponseWriter, r *http.Request) {
	var req verifyOtpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Code == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and code are required"})
		return
	}
	if !validOtpPurpose(req.Purpose) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid purpose"})
		return
	}

	if err := h.codes.Verify(r.Context(), req.Email, req.Purpose, req.Code); err != nil {
		if errors.Is(err, otp.ErrCodeMismatch) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid or expired code"})
			return
		}
		log.Printf("ERROR: verify otp: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			log.Printf("ERROR: get user: %v", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
			return
		}
		user, err = h.store.CreateUser(r.Context(), database.CreateUserParams{Email: req.Email})
		if err != nil {
			// A concurrent verify may have created the row first.
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				user, err = h.store.GetUserByEmail(r.Context(), req.Email)
			}
			if err != nil {
				log.Printf("ERROR: create user: %v", err)
				writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
				return
			}
		} else {
			// Fire and forget; a lost welcome mail never blocks signup.
			go func(email string) {
				if err := h.sender.SendWelcome(email); err != nil {
					log.Printf("ERROR: send welcome mail: %v", err)
				}
			}(user.Email)
		}
	}

	h.respondWithToken(w, user)
}

// Login handles POST /auth/login, for accounts that have set a password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and password are required"})
		return
	}

	user, err := h.store.GetUserByEmail(r.Context(), req.Email)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		log.Printf("ERROR: get user: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	if !user.HasSetPassword || !user.PasswordHash.Valid {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "password login not set up, use otp"})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash.String), []byte(req.Password)); err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
		return
	}

	h.respondWithToken(w, user)
}

// SetPassword handles POST /auth/password for the authenticated owner.
func (h *AuthHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req setPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	if msg := passwordPolicyViolation(req.Password); msg != "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("ERROR: hash password: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	user, err := h.store.SetUserPassword(r.Context(), database.SetUserPasswordParams{
		Email:        claims.Email,
		PasswordHash: string(hash),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "account not found"})
			return
		}
		log.Printf("ERROR: set password: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusOK, toUserResponse(user))
}

// --- Helpers ---

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, user database.User) {
	token, err := auth.GenerateToken(h.jwtSecret, user.Email)
	if err != nil {
		log.Printf("ERROR: generate token: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, User: toUserResponse(user)})
}

func toUserResponse(user database.User) userResponse {
	resp := userResponse{Email: user.Email, HasSetPassword: user.HasSetPassword}
	if user.CompanyName.Valid {
		resp.CompanyName = user.CompanyName.String
	}
	return resp
}

func validOtpPurpose(p string) bool {
	switch p {
	case enum.OtpPurposeLogin, enum.OtpPurposeSignup, enum.OtpPurposeSecurity, enum.OtpPurposeDeleteAccount:
		return true
	}
	return false
}

// passwordPolicyViolation returns a message when the password is too weak,
// or "" when it passes: at least 8 chars with a letter, a digit and a
// special character.
func passwordPolicyViolation(password string) string {
	if len(password) < 8 {
		return "password must be at least 8 characters"
	}
	var hasLetter, hasDigit, hasSpecial bool
	for _, c := range password {
		switch {
		case unicode.IsLetter(c):
			hasLetter = true
		case unicode.IsDigit(c):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}
	if !hasLetter {
		return "password must contain a letter"
	}
	if !hasDigit {
		return "password must contain a digit"
	}
	if !hasSpecial {
		return "password must contain a special character"
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
