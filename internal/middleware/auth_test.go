package middleware_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"firebase.google.com/go/v4/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/domain"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/handlers"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/middleware"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/pipeline"
)

// fakeVerifier accepts the tokens it knows and records what it was asked to verify
type fakeVerifier struct {
	tokens map[string]*auth.Token
	seen   []string
}

func (f *fakeVerifier) VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error) {
	f.seen = append(f.seen, idToken)
	if tok, ok := f.tokens[idToken]; ok {
		return tok, nil
	}
	return nil, errors.New("token rejected")
}

func newVerifier() *fakeVerifier {
	return &fakeVerifier{tokens: map[string]*auth.Token{
		"maria-token": {UID: "maria", Claims: map[string]interface{}{"email": "maria@example.com"}},
		"joao-token":  {UID: "joao", Claims: map[string]interface{}{"email": 42}},
	}}
}

func TestAuthMiddleware_RequireAuth(t *testing.T) {
	tests := []struct {
		name          string
		header        string
		expectedCode  int
		expectedUser  string
		expectedEmail string
		verified      bool
	}{
		{name: "valid token", header: "Bearer maria-token", expectedCode: http.StatusOK, expectedUser: "maria", expectedEmail: "maria@example.com", verified: true},
		{name: "non-string email claim", header: "Bearer joao-token", expectedCode: http.StatusOK, expectedUser: "joao", verified: true},
		{name: "rejected token", header: "Bearer forged", expectedCode: http.StatusUnauthorized, verified: true},
		{name: "missing header", header: "", expectedCode: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic maria-token", expectedCode: http.StatusUnauthorized},
		{name: "extra parts", header: "Bearer maria-token extra", expectedCode: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := newVerifier()
			var info middleware.AuthInfo
			handlerCalled := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true
				info, _ = middleware.GetAuth(r)
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodPost, "/api/import", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			middleware.NewAuthMiddleware(verifier).RequireAuth(handler).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedCode, w.Code)
			assert.Equal(t, tt.expectedCode == http.StatusOK, handlerCalled)
			assert.Equal(t, tt.expectedUser, info.UserID)
			assert.Equal(t, tt.expectedEmail, info.Email)
			assert.Equal(t, tt.verified, len(verifier.seen) == 1, "verifier should only see well-formed headers")
		})
	}
}

func TestAuthenticators_SatisfyInterface(t *testing.T) {
	var _ middleware.Authenticator = middleware.NewAuthMiddleware(newVerifier())
	var _ middleware.Authenticator = middleware.HeaderAuth{}
	var _ middleware.TokenVerifier = (*auth.Client)(nil)
}

// accountImporter only lets "maria" import into "acc-maria"
type accountImporter struct {
	got pipeline.Request
}

func (a *accountImporter) Import(ctx context.Context, req pipeline.Request) (*domain.ImportResult, error) {
	a.got = req
	if req.UserID != "maria" || req.AccountID != "acc-maria" {
		return nil, domain.ErrUnauthorized
	}
	return &domain.ImportResult{ImportedCount: 1, Message: "imported 1 transactions, 0 duplicates"}, nil
}

func TestAuthenticators_FeedImportUser(t *testing.T) {
	authenticators := map[string]struct {
		auth   middleware.Authenticator
		header func(r *http.Request, user string)
	}{
		"firebase": {
			auth: middleware.NewAuthMiddleware(newVerifier()),
			header: func(r *http.Request, user string) {
				r.Header.Set("Authorization", "Bearer "+user+"-token")
			},
		},
		"header": {
			auth: middleware.HeaderAuth{},
			header: func(r *http.Request, user string) {
				r.Header.Set(middleware.UserIDHeader, user)
			},
		},
	}

	tests := []struct {
		name         string
		user         string
		accountID    string
		expectedCode int
	}{
		{"own account", "maria", "acc-maria", http.StatusOK},
		{"foreign account", "joao", "acc-maria", http.StatusForbidden},
		{"unknown account", "maria", "acc-other", http.StatusForbidden},
	}

	for authName, a := range authenticators {
		for _, tt := range tests {
			t.Run(authName+"/"+tt.name, func(t *testing.T) {
				importer := &accountImporter{}
				handler := a.auth.RequireAuth(http.HandlerFunc(handlers.NewImportHandler(importer).Import))

				req := httptest.NewRequest(http.MethodPost,
					"/api/import?accountId="+tt.accountID+"&filename=export.csv",
					strings.NewReader("Date,Description,Amount\n01/02/2024,Uber,-10.00\n"))
				a.header(req, tt.user)
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, req)

				require.Equal(t, tt.expectedCode, w.Code, w.Body.String())
				assert.Equal(t, tt.user, importer.got.UserID, "importer must see the authenticated user")
				assert.Equal(t, tt.accountID, importer.got.AccountID)
			})
		}
	}
}

func TestAuthenticators_RejectBeforeImport(t *testing.T) {
	importer := &accountImporter{}
	for name, a := range map[string]middleware.Authenticator{
		"firebase": middleware.NewAuthMiddleware(newVerifier()),
		"header":   middleware.HeaderAuth{},
	} {
		t.Run(name, func(t *testing.T) {
			handler := a.RequireAuth(http.HandlerFunc(handlers.NewImportHandler(importer).Import))
			req := httptest.NewRequest(http.MethodPost, "/api/import?accountId=acc-maria&filename=a.csv",
				strings.NewReader("x"))
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
	assert.Empty(t, importer.got.UserID, "importer must not run without a user")
}

func TestGetUserID_NoAuthInContext(t *testing.T) {
	_, ok := middleware.GetUserID(context.Background())
	assert.False(t, ok)

	_, ok = middleware.GetAuth(httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
}
