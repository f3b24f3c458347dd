package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/carewellhq/carewell-backend/api/middleware"
	"github.com/carewellhq/carewell-backend/internal/auth"
	"github.com/carewellhq/carewell-backend/internal/users"
	pkgerrors "github.com/carewellhq/carewell-backend/pkg/errors"
)

func TestAuthLogin(t *testing.T) {
	logg := testLogger()

	newRequest := func(body string) *http.Request {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/login", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return req
	}

	t.Run("invalid body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		AuthLogin(&stubAuthService{}, logg).ServeHTTP(rec, newRequest(`{"email":"not-an-email"}`))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 for invalid body, got %d", rec.Code)
		}
	})

	t.Run("bad credentials", func(t *testing.T) {
		stub := &stubAuthService{loginErr: pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")}
		rec := httptest.NewRecorder()
		AuthLogin(stub, logg).ServeHTTP(rec, newRequest(`{"email":"dana@example.com","password":"hunter22"}`))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 for bad credentials, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		stub := &stubAuthService{
			loginResult: &auth.LoginResponse{
				AccessToken:  "access",
				RefreshToken: "refresh",
				User:         &users.UserDTO{Email: "dana@example.com"},
			},
		}
		rec := httptest.NewRecorder()
		AuthLogin(stub, logg).ServeHTTP(rec, newRequest(`{"email":"dana@example.com","password":"hunter22"}`))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if stub.gotLogin.Email != "dana@example.com" {
			t.Fatalf("login request not forwarded: %+v", stub.gotLogin)
		}
		if !strings.Contains(rec.Body.String(), `"access_token":"access"`) {
			t.Fatalf("expected token pair in body: %s", rec.Body.String())
		}
	})
}

func TestAuthMe(t *testing.T) {
	logg := testLogger()
	userID := uuid.New()

	t.Run("missing identity", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		rec := httptest.NewRecorder()
		AuthMe(&stubAuthService{}, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401 without identity, got %d", rec.Code)
		}
	})

	t.Run("success", func(t *testing.T) {
		stub := &stubAuthService{me: &users.UserDTO{ID: userID, Email: "dana@example.com"}}
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req = req.WithContext(middleware.WithUserID(req.Context(), userID.String()))
		rec := httptest.NewRecorder()
		AuthMe(stub, logg).ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		if stub.gotMeID != userID {
			t.Fatalf("me received wrong user id: %s", stub.gotMeID)
		}
	})
}

type stubAuthService struct {
	loginResult *auth.LoginResponse
	loginErr    error
	me          *users.UserDTO
	gotLogin    auth.LoginRequest
	gotMeID     uuid.UUID
}

func (s *stubAuthService) Login(ctx context.Context, req auth.LoginRequest) (*auth.LoginResponse, error) {
	s.gotLogin = req
	if s.loginErr != nil {
		return nil, s.loginErr
	}
	return s.loginResult, nil
}

func (s *stubAuthService) Refresh(ctx context.Context, rawAccessToken, refreshToken string) (*auth.RefreshResponse, error) {
	panic("unimplemented")
}

func (s *stubAuthService) Logout(ctx context.Context, accessID string) error {
	return nil
}

func (s *stubAuthService) Me(ctx context.Context, userID uuid.UUID) (*users.UserDTO, error) {
	s.gotMeID = userID
	return s.me, nil
}
