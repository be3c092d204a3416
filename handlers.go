package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// Handler struct to encapsulate HTTP handling logic
type Handler struct {
	store     Store
	publisher NotificationPublisher
}

func NewHandler(store Store, publisher NotificationPublisher) *Handler {
	return &Handler{store: store, publisher: publisher}
}

func RegisterRouters(mux *chi.Mux, handler *Handler) {
	mux.Use(middleware.Logger)
	mux.Use(recoverJSON)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	mux.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "Endpoint not found")
	})
	mux.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, "Endpoint not found")
	})

	mux.Route("/api", func(api chi.Router) {
		api.Post("/register", handler.Register)
		api.Post("/login", handler.Login)
		api.Post("/expenses", handler.AddExpense)
		api.Get("/expenses/{userID:[0-9]+}", handler.ListExpenses)
		api.Delete("/expenses/{expenseID:[0-9]+}", handler.DeleteExpense)
		api.Post("/limits", handler.SetLimits)
		api.Get("/limits/{userID:[0-9]+}", handler.GetLimits)
		api.Get("/stats/{userID:[0-9]+}", handler.GetStats)
		api.Get("/health", handler.Health)
	})
}

// recoverJSON guarantees a JSON 500 even when a handler panics.
func recoverJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				logrus.Errorf("panic handling %s %s: %v", r.Method, r.URL.Path, rec)
				respondError(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logrus.Errorf("failed to write response: %v", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func hasKeys(data map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := data[k]; !ok {
			return false
		}
	}
	return true
}

func stringField(data map[string]any, key string) string {
	s, _ := data[key].(string)
	return s
}

// coerceInt accepts JSON numbers with no fractional part and numeric
// strings, mirroring the loose typing clients send for ids and amounts.
func coerceInt(v any) (int, error) {
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("value %v is not an integer", n)
		}
		return int(n), nil
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	default:
		return 0, fmt.Errorf("cannot convert %T to an integer", v)
	}
}

// Register creates a new user with zeroed limits. The uniqueness of the
// username is enforced by the database constraint, not by a pre-check, so
// two concurrent registrations cannot race past each other.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil || !hasKeys(data, "username", "password", "fullName") {
		respondError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	username := strings.TrimSpace(stringField(data, "username"))
	password := stringField(data, "password")
	fullName := strings.TrimSpace(stringField(data, "fullName"))

	if username == "" || password == "" || fullName == "" {
		respondError(w, http.StatusBadRequest, "All fields are required")
		return
	}
	if utf8.RuneCountInString(username) > 30 {
		respondError(w, http.StatusBadRequest, "Username must be 30 characters or less")
		return
	}
	if utf8.RuneCountInString(fullName) > 200 {
		respondError(w, http.StatusBadRequest, "Full name must be 200 characters or less")
		return
	}

	userID, err := h.store.CreateUser(r.Context(), username, hashPassword(password), fullName)
	if errors.Is(err, ErrDuplicateUsername) {
		respondError(w, http.StatusConflict, "Username already exists")
		return
	}
	if err != nil {
		logrus.Errorf("registration error: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]any{
		"message": "User registered successfully",
		"user_id": userID,
	})
}

// Login checks the credentials in a single query and never reveals whether
// the username or the password was wrong. No session or token is issued.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil || !hasKeys(data, "username", "password") {
		respondError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	username := strings.TrimSpace(stringField(data, "username"))
	password := stringField(data, "password")

	if username == "" || password == "" {
		respondError(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	user, err := h.store.GetUserByCredentials(r.Context(), username, hashPassword(password))
	if errors.Is(err, ErrNotFound) {
		respondError(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	if err != nil {
		logrus.Errorf("login error: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"message":  "Login successful",
		"user_id":  user.ID,
		"fullName": user.FullName,
	})
}

func (h *Handler) AddExpense(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil || !hasKeys(data, "user_id", "title", "amount", "category") {
		respondError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	userID, err := coerceInt(data["user_id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user_id format")
		return
	}

	title := strings.TrimSpace(stringField(data, "title"))
	category := strings.TrimSpace(stringField(data, "category"))

	if title == "" || category == "" {
		respondError(w, http.StatusBadRequest, "Title and category are required")
		return
	}
	if utf8.RuneCountInString(title) > 50 {
		respondError(w, http.StatusBadRequest, "Title must be 50 characters or less")
		return
	}
	if utf8.RuneCountInString(category) > 25 {
		respondError(w, http.StatusBadRequest, "Category must be 25 characters or less")
		return
	}

	var notes *string
	if raw, ok := data["notes"]; ok && raw != nil {
		if s, isString := raw.(string); isString {
			trimmed := strings.TrimSpace(s)
			if utf8.RuneCountInString(trimmed) > 200 {
				respondError(w, http.StatusBadRequest, "Notes must be 200 characters or less")
				return
			}
			if trimmed != "" {
				notes = &trimmed
			}
		}
	}

	amount, err := coerceInt(data["amount"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid amount")
		return
	}
	if amount <= 0 {
		respondError(w, http.StatusBadRequest, "Amount must be greater than zero")
		return
	}

	// No existence check on user_id: an unknown user trips the foreign key
	// and surfaces as an internal error, matching the documented contract.
	expenseID, err := h.store.CreateExpense(r.Context(), Expense{
		UserID:   userID,
		Title:    title,
		Amount:   amount,
		Category: category,
		Notes:    notes,
	})
	if err != nil {
		logrus.Errorf("add expense error: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.maybePublishAlert(r.Context(), userID, category)

	respondJSON(w, http.StatusCreated, map[string]any{
		"message":    "Expense added successfully",
		"expense_id": expenseID,
	})
}

// maybePublishAlert sends a limit alert when the expense's category is one
// of the five limited categories and the new total crosses the user's limit
// (or 80% of it). Best effort: failures are logged, never surfaced.
func (h *Handler) maybePublishAlert(ctx context.Context, userID int, category string) {
	if h.publisher == nil {
		return
	}

	limits, err := h.store.GetLimits(ctx, userID)
	if err != nil {
		logrus.Errorf("error retrieving limits for alert check: %v", err)
		return
	}
	limit := limits.For(category)
	if limit <= 0 {
		return
	}

	spent, err := h.store.CategorySpent(ctx, userID, category)
	if err != nil {
		logrus.Errorf("error calculating category spend: %v", err)
		return
	}

	var message string
	switch {
	case spent > limit:
		message = fmt.Sprintf("You have exceeded your %s spending limit!", strings.ToLower(category))
	case float64(spent) > 0.8*float64(limit):
		message = fmt.Sprintf("You are nearing your %s spending limit!", strings.ToLower(category))
	default:
		return
	}

	alert := LimitAlert{
		UserID:   userID,
		Category: strings.ToLower(category),
		Spent:    spent,
		Limit:    limit,
		Message:  message,
	}
	if err := h.publisher.Publish(alert); err != nil {
		logrus.Errorf("failed to publish limit alert: %v", err)
	}
}

// ListExpenses returns the user's expenses, most recent first. An unknown
// user gets an empty list, never an error.
func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user_id format")
		return
	}

	expenses, err := h.store.ListExpenses(r.Context(), userID)
	if err != nil {
		logrus.Errorf("list expenses error: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"expenses": expenses})
}

// DeleteExpense removes an expense by id. There is no ownership check
// against a calling user; the contract trusts any caller who knows the id.
func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	expenseID, err := strconv.Atoi(chi.URLParam(r, "expenseID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid expense ID")
		return
	}

	err = h.store.DeleteExpense(r.Context(), expenseID)
	if errors.Is(err, ErrNotFound) {
		respondError(w, http.StatusNotFound, "Expense not found")
		return
	}
	if err != nil {
		logrus.Errorf("delete expense error: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Expense deleted successfully"})
}

func (h *Handler) SetLimits(w http.ResponseWriter, r *http.Request) {
	var data map[string]any
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil || !hasKeys(data, "user_id", "food", "travel", "shopping", "bills", "other") {
		respondError(w, http.StatusBadRequest, "Missing required fields")
		return
	}

	userID, err := coerceInt(data["user_id"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user_id format")
		return
	}

	var limits Limits
	for _, field := range []struct {
		key string
		dst *int
	}{
		{"food", &limits.Food},
		{"travel", &limits.Travel},
		{"shopping", &limits.Shopping},
		{"bills", &limits.Bills},
		{"other", &limits.Other},
	} {
		value, err := coerceLimit(data[field.key])
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid limit values")
			return
		}
		if value < 0 {
			respondError(w, http.StatusBadRequest, "Limits must be non-negative")
			return
		}
		*field.dst = value
	}

	err = h.store.SetLimits(r.Context(), userID, limits)
	if errors.Is(err, ErrNotFound) {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		logrus.Errorf("set limits error: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"message": "Limits updated successfully"})
}

// coerceLimit treats absent, null, and empty values as 0.
func coerceLimit(v any) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case string:
		if strings.TrimSpace(n) == "" {
			return 0, nil
		}
	case bool:
		if !n {
			return 0, nil
		}
		return 0, fmt.Errorf("cannot convert %T to an integer", v)
	}
	return coerceInt(v)
}

func (h *Handler) GetLimits(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user_id format")
		return
	}

	limits, err := h.store.GetLimits(r.Context(), userID)
	if errors.Is(err, ErrNotFound) {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		logrus.Errorf("get limits error: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"limits": limits})
}

// GetStats returns aggregate figures plus per-category totals. A user with
// no expenses (or an unknown user) gets zeros and an empty list, not a 404.
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.Atoi(chi.URLParam(r, "userID"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid user_id format")
		return
	}

	stats, err := h.store.GetStats(r.Context(), userID)
	if err != nil {
		logrus.Errorf("statistics error: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	totals, err := h.store.GetCategoryTotals(r.Context(), userID)
	if err != nil {
		logrus.Errorf("category totals error: %v", err)
		respondError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"stats":          stats,
		"categoryTotals": totals,
	})
}

// Health reports liveness only; it deliberately does not touch the database.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": "SmartExpense API is running",
	})
}
