package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-auth-api/internal/application/auth"
	"github.com/go-auth-api/internal/domain"
	jwtinfra "github.com/go-auth-api/internal/infrastructure/jwt"
	"github.com/go-auth-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mock ---

type mockAuthSvc struct{ mock.Mock }

func (m *mockAuthSvc) Register(ctx context.Context, req domain.RegisterRequest) (*domain.SafeAccount, error) {
	args := m.Called(ctx, req)
	if a, _ := args.Get(0).(*domain.SafeAccount); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) VerifyEmail(ctx context.Context, email, code string) (*domain.SafeAccount, error) {
	args := m.Called(ctx, email, code)
	if a, _ := args.Get(0).(*domain.SafeAccount); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) ResendVerificationCode(ctx context.Context, email string) (int, error) {
	args := m.Called(ctx, email)
	return args.Int(0), args.Error(1)
}

func (m *mockAuthSvc) Login(ctx context.Context, email, plainPassword string) (string, *domain.SafeAccount, error) {
	args := m.Called(ctx, email, plainPassword)
	if a, _ := args.Get(1).(*domain.SafeAccount); a != nil {
		return args.String(0), a, args.Error(2)
	}
	return args.String(0), nil, args.Error(2)
}

func (m *mockAuthSvc) CheckAuth(ctx context.Context, accountID string) (*domain.SafeAccount, error) {
	args := m.Called(ctx, accountID)
	if a, _ := args.Get(0).(*domain.SafeAccount); a != nil {
		return a, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockAuthSvc) Logout(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockAuthSvc) ForgotPassword(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func (m *mockAuthSvc) ValidateResetToken(ctx context.Context, rawToken string) (string, error) {
	args := m.Called(ctx, rawToken)
	return args.String(0), args.Error(1)
}

func (m *mockAuthSvc) ResetPassword(ctx context.Context, rawToken, newPassword string) error {
	return m.Called(ctx, rawToken, newPassword).Error(0)
}

func (m *mockAuthSvc) ChangePassword(ctx context.Context, accountID, currentPassword, newPassword string) error {
	return m.Called(ctx, accountID, currentPassword, newPassword).Error(0)
}

func (m *mockAuthSvc) CheckVerificationStatus(ctx context.Context, email string) (*auth.VerificationStatus, error) {
	args := m.Called(ctx, email)
	if s, _ := args.Get(0).(*auth.VerificationStatus); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

// --- helpers ---

func postJSON(t *testing.T, h http.HandlerFunc, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	buf, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func withClaims(req *http.Request, accountID string) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.ClaimsKey, &jwtinfra.Claims{AccountID: accountID, Email: "ann@x.com"})
	return req.WithContext(ctx)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	return out
}

func safeAccount() *domain.SafeAccount {
	return &domain.SafeAccount{AccountID: "acc1", FirstName: "Ann", Email: "ann@x.com"}
}

// --- Register ---

func TestRegister_Created(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("Register", mock.Anything, mock.Anything).Return(safeAccount(), nil)
	h := NewAuthHandler(svc)

	rr := postJSON(t, h.Register, "/v1/auth/register", map[string]string{
		"first_name": "Ann", "last_name": "Lee", "email": "ann@x.com",
		"password": "secret1", "date_of_birth": "2000-01-01",
	})
	assert.Equal(t, http.StatusCreated, rr.Code)
	body := decodeBody(t, rr)
	assert.NotNil(t, body["account"])
	svc.AssertExpectations(t)
}

func TestRegister_InvalidBody(t *testing.T) {
	h := NewAuthHandler(new(mockAuthSvc))

	req := httptest.NewRequest(http.MethodPost, "/v1/auth/register", bytes.NewReader([]byte("{not json")))
	rr := httptest.NewRecorder()
	h.Register(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRegister_ValidationError_FieldBreakdown(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("Register", mock.Anything, mock.Anything).
		Return(nil, domain.NewValidationError("email", "must be a valid email address"))
	h := NewAuthHandler(svc)

	rr := postJSON(t, h.Register, "/v1/auth/register", map[string]string{"email": "nope"})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decodeBody(t, rr)
	fields, ok := body["fields"].(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, fields, "email")
}

func TestRegister_DuplicateEmail_Conflict(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("Register", mock.Anything, mock.Anything).Return(nil, domain.ErrConflict)
	h := NewAuthHandler(svc)

	rr := postJSON(t, h.Register, "/v1/auth/register", map[string]string{"email": "ann@x.com"})
	assert.Equal(t, http.StatusConflict, rr.Code)
}

// --- VerifyEmail / ResendVerification ---

func TestVerifyEmail_OK(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("VerifyEmail", mock.Anything, "ann@x.com", "123456").Return(safeAccount(), nil)
	h := NewAuthHandler(svc)

	rr := postJSON(t, h.VerifyEmail, "/v1/auth/verify-email", map[string]string{
		"email": "ann@x.com", "verification_code": "123456",
	})
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestVerifyEmail_WrongCode(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("VerifyEmail", mock.Anything, "ann@x.com", "000000").Return(nil, domain.ErrInvalidCode)
	h := NewAuthHandler(svc)

	rr := postJSON(t, h.VerifyEmail, "/v1/auth/verify-email", map[string]string{
		"email": "ann@x.com", "verification_code": "000000",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestResendVerification_RateLimited(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("ResendVerificationCode", mock.Anything, "ann@x.com").
		Return(0, &domain.RateLimitError{WaitSeconds: 42})
	h := NewAuthHandler(svc)

	rr := postJSON(t, h.ResendVerification, "/v1/auth/resend-verification", map[string]string{"email": "ann@x.com"})
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "42", rr.Header().Get("Retry-After"))
	body := decodeBody(t, rr)
	assert.Equal(t, float64(42), body["wait_seconds"])
}

func TestResendVerification_OK(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("ResendVerificationCode", mock.Anything, "ann@x.com").Return(15, nil)
	h := NewAuthHandler(svc)

	rr := postJSON(t, h.ResendVerification, "/v1/auth/resend-verification", map[string]string{"email": "ann@x.com"})
	assert.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, float64(15), body["expires_in_minutes"])
}

// --- Login ---

func TestLogin_OK(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("Login", mock.Anything, "ann@x.com", "secret1").Return("signed-token", safeAccount(), nil)
	h := NewAuthHandler(svc)

	rr := postJSON(t, h.Login, "/v1/auth/login", map[string]string{"email": "ann@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "signed-token", body["Bearer"])
	assert.NotNil(t, body["account"])
}

func TestLogin_BadCredentials(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("Login", mock.Anything, mock.Anything, mock.Anything).Return("", nil, domain.ErrInvalidCredentials)
	h := NewAuthHandler(svc)

	rr := postJSON(t, h.Login, "/v1/auth/login", map[string]string{"email": "ann@x.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogin_Unverified(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("Login", mock.Anything, mock.Anything, mock.Anything).Return("", nil, domain.ErrNotVerified)
	h := NewAuthHandler(svc)

	rr := postJSON(t, h.Login, "/v1/auth/login", map[string]string{"email": "ann@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

// --- CheckAuth / Logout ---

func TestCheckAuth_OK(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("CheckAuth", mock.Anything, "acc1").Return(safeAccount(), nil)
	h := NewAuthHandler(svc)

	req := withClaims(httptest.NewRequest(http.MethodGet, "/v1/auth/check-auth", nil), "acc1")
	rr := httptest.NewRecorder()
	h.CheckAuth(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestCheckAuth_NoClaims(t *testing.T) {
	h := NewAuthHandler(new(mockAuthSvc))

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/check-auth", nil)
	rr := httptest.NewRecorder()
	h.CheckAuth(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogout_OK(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("Logout", mock.Anything).Return(nil)
	h := NewAuthHandler(svc)

	req := withClaims(httptest.NewRequest(http.MethodPost, "/v1/auth/logout", nil), "acc1")
	rr := httptest.NewRecorder()
	h.Logout(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

// --- password reset flow ---

func TestForgotPassword_GenericAck(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("ForgotPassword", mock.Anything, "nobody@x.com").Return(nil)
	h := NewAuthHandler(svc)

	rr := postJSON(t, h.ForgotPassword, "/v1/auth/forgot-password", map[string]string{"email": "nobody@x.com"})
	assert.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Contains(t, body["message"], "if the account exists")
}

func TestForgotPassword_TooManyAttempts(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("ForgotPassword", mock.Anything, "ann@x.com").Return(domain.ErrTooManyAttempts)
	h := NewAuthHandler(svc)

	rr := postJSON(t, h.ForgotPassword, "/v1/auth/forgot-password", map[string]string{"email": "ann@x.com"})
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
}

func TestValidateResetToken_OK(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("ValidateResetToken", mock.Anything, "rawtoken").Return("ann@x.com", nil)
	h := NewAuthHandler(svc)

	r := chi.NewRouter()
	r.Get("/v1/auth/validate-reset-token/{token}", h.ValidateResetToken)

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/validate-reset-token/rawtoken", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, "ann@x.com", body["email"])
}

func TestValidateResetToken_Expired(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("ValidateResetToken", mock.Anything, "stale").Return("", domain.ErrTokenInvalidOrExpired)
	h := NewAuthHandler(svc)

	r := chi.NewRouter()
	r.Get("/v1/auth/validate-reset-token/{token}", h.ValidateResetToken)

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/validate-reset-token/stale", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestResetPassword_OK(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("ResetPassword", mock.Anything, "rawtoken", "new-secret").Return(nil)
	h := NewAuthHandler(svc)

	rr := postJSON(t, h.ResetPassword, "/v1/auth/reset-password", map[string]string{
		"token": "rawtoken", "password": "new-secret",
	})
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

// --- ChangePassword ---

func TestChangePassword_OK(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("ChangePassword", mock.Anything, "acc1", "old-secret", "new-secret").Return(nil)
	h := NewAuthHandler(svc)

	buf, _ := json.Marshal(map[string]string{"current_password": "old-secret", "new_password": "new-secret"})
	req := withClaims(httptest.NewRequest(http.MethodPost, "/v1/auth/change-password", bytes.NewReader(buf)), "acc1")
	rr := httptest.NewRecorder()
	h.ChangePassword(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestChangePassword_SamePassword(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("ChangePassword", mock.Anything, "acc1", "secret1", "secret1").Return(domain.ErrNoOp)
	h := NewAuthHandler(svc)

	buf, _ := json.Marshal(map[string]string{"current_password": "secret1", "new_password": "secret1"})
	req := withClaims(httptest.NewRequest(http.MethodPost, "/v1/auth/change-password", bytes.NewReader(buf)), "acc1")
	rr := httptest.NewRecorder()
	h.ChangePassword(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestChangePassword_NoClaims(t *testing.T) {
	h := NewAuthHandler(new(mockAuthSvc))

	buf, _ := json.Marshal(map[string]string{"current_password": "a", "new_password": "b"})
	req := httptest.NewRequest(http.MethodPost, "/v1/auth/change-password", bytes.NewReader(buf))
	rr := httptest.NewRecorder()
	h.ChangePassword(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

// --- VerificationStatus ---

func TestVerificationStatus_OK(t *testing.T) {
	svc := new(mockAuthSvc)
	svc.On("CheckVerificationStatus", mock.Anything, "ann@x.com").
		Return(&auth.VerificationStatus{IsVerified: true, Email: "ann@x.com", FirstName: "Ann"}, nil)
	h := NewAuthHandler(svc)

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/verification-status?email=ann%40x.com", nil)
	rr := httptest.NewRecorder()
	h.VerificationStatus(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	body := decodeBody(t, rr)
	assert.Equal(t, true, body["is_verified"])
}
