package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/domain"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/middleware"
)

// AccountCreator creates accounts owned by a user.
type AccountCreator interface {
	CreateAccount(ctx context.Context, userID, name string) (*domain.Account, error)
}

// AccountHandler handles account requests
type AccountHandler struct {
	accounts AccountCreator
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(accounts AccountCreator) *AccountHandler {
	return &AccountHandler{accounts: accounts}
}

type createAccountRequest struct {
	Name string `json:"name"`
}

// CreateAccount handles POST /api/accounts
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var body createAccountRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		writeError(w, r, http.StatusBadRequest, "name is required")
		return
	}

	account, err := h.accounts.CreateAccount(r.Context(), userID, name)
	if err != nil {
		logFor(r).Error().Err(err).Msg("failed to create account")
		writeError(w, r, http.StatusInternalServerError, "failed to create account")
		return
	}
	writeJSON(w, r, http.StatusCreated, account)
}
