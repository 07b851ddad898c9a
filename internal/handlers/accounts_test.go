package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/domain"
)

type mockAccountCreator struct {
	err error
}

func (m *mockAccountCreator) CreateAccount(ctx context.Context, userID, name string) (*domain.Account, error) {
	if m.err != nil {
		return nil, m.err
	}
	return domain.NewAccount("acct-new", userID, name)
}

func TestCreateAccount(t *testing.T) {
	tests := []struct {
		name         string
		body         string
		err          error
		expectedCode int
	}{
		{"created", `{"name":" Checking "}`, nil, http.StatusCreated},
		{"invalid json", `{"name":`, nil, http.StatusBadRequest},
		{"blank name", `{"name":"  "}`, nil, http.StatusBadRequest},
		{"store failure", `{"name":"Checking"}`, errors.New("db locked"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewAccountHandler(&mockAccountCreator{err: tt.err})
			req := httptest.NewRequest(http.MethodPost, "/api/accounts", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			handler.CreateAccount(w, withUser(req, "user-1"))

			if w.Code != tt.expectedCode {
				t.Fatalf("Expected status %d, got %d", tt.expectedCode, w.Code)
			}
			if tt.expectedCode != http.StatusCreated {
				return
			}

			var account domain.Account
			if err := json.NewDecoder(w.Body).Decode(&account); err != nil {
				t.Fatalf("Failed to decode response: %v", err)
			}
			if account.Name != "Checking" || account.UserID != "user-1" {
				t.Errorf("Unexpected account: %+v", account)
			}
		})
	}
}

func TestCreateAccount_Unauthenticated(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/accounts", strings.NewReader(`{"name":"x"}`))
	w := httptest.NewRecorder()
	NewAccountHandler(&mockAccountCreator{}).CreateAccount(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("Expected status 401, got %d", w.Code)
	}
}

func TestHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	HealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var resp HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Status != "ok" || resp.Service != "stmtimport" {
		t.Errorf("Unexpected health response: %+v", resp)
	}
}
