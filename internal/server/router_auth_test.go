package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MarcoPoloResearchLab/notehub/internal/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubSessionValidator struct {
	claims auth.SessionClaims
	err    error
}

func (s stubSessionValidator) ValidateRequest(*http.Request) (auth.SessionClaims, error) {
	return s.claims, s.err
}

func TestAuthorizeRequestLogsExpiredTokenAtInfoLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodGet, "/notes", http.NoBody)
	request.Header.Set("Authorization", "Bearer expired-token")
	ctx.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{
		sessions: stubSessionValidator{err: auth.ErrExpiredSessionToken},
		logger:   zap.New(core),
	}

	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.Level != zapcore.InfoLevel {
		t.Fatalf("expected info level for expired token, got %s", entry.Level)
	}
	if entry.Message != "token validation failed" {
		t.Fatalf("unexpected log message: %q", entry.Message)
	}
	hasExpired := false
	for _, field := range entry.Context {
		if field.Type == zapcore.ErrorType && errors.Is(field.Interface.(error), auth.ErrExpiredSessionToken) {
			hasExpired = true
			break
		}
	}
	if !hasExpired {
		t.Fatalf("expected expired token error context, got %v", entry.Context)
	}
}

func TestAuthorizeRequestLogsUnexpectedTokenErrorAtWarnLevel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	request := httptest.NewRequest(http.MethodGet, "/notes", http.NoBody)
	request.Header.Set("Authorization", "Bearer invalid-token")
	ctx.Request = request

	core, logs := observer.New(zapcore.DebugLevel)
	handler := &httpHandler{
		sessions: stubSessionValidator{err: auth.ErrInvalidSessionToken},
		logger:   zap.New(core),
	}

	handler.authorizeRequest(ctx)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("unexpected status code: got %d, want %d", recorder.Code, http.StatusUnauthorized)
	}
	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one log entry, got %d", len(entries))
	}
	if entries[0].Level != zapcore.WarnLevel {
		t.Fatalf("expected warn level for unexpected error, got %s", entries[0].Level)
	}
}

func TestRequireAdminRejectsStudents(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Request = httptest.NewRequest(http.MethodPost, "/organizations", http.NoBody)
	ctx.Set(claimsContextKey, &auth.SessionClaims{UserID: "user-1", Role: auth.RoleStudent})

	handler := &httpHandler{logger: zap.NewNop()}
	handler.requireAdmin(ctx)

	if recorder.Code != http.StatusForbidden {
		t.Fatalf("expected forbidden, got %d", recorder.Code)
	}
	if !ctx.IsAborted() {
		t.Fatalf("expected request to be aborted")
	}
}

func TestLoginReturnsTokenAndProfile(t *testing.T) {
	env := newTestEnvironment(t)

	recorder := env.do(t, http.MethodPost, "/login", "", map[string]string{"email": "ada@example.com", "password": "adapw"})
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", recorder.Code, recorder.Body.String())
	}
	var payload loginResponsePayload
	decodeBody(t, recorder, &payload)
	if !payload.Success || payload.Token == "" || payload.Message != "Login successful" {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if payload.User.Organization != env.organization.ID.Hex() || payload.User.OrganizationName != "MIT" {
		t.Fatalf("expected organization in profile, got %#v", payload.User)
	}

	session := env.do(t, http.MethodGet, "/session", payload.Token, nil)
	if session.Code != http.StatusOK {
		t.Fatalf("expected session to validate, got %d", session.Code)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	env := newTestEnvironment(t)

	recorder := env.do(t, http.MethodPost, "/login", "", map[string]string{"email": "ada@example.com", "password": "nope"})
	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got %d", recorder.Code)
	}
	var body errorBody
	decodeBody(t, recorder, &body)
	if body.Success || body.Code != "users.login.password_mismatch" || body.Error != "invalid credentials" {
		t.Fatalf("unexpected error body %#v", body)
	}
}

func TestSignupStatusCodes(t *testing.T) {
	env := newTestEnvironment(t)

	testCases := []struct {
		name   string
		body   map[string]string
		status int
	}{
		{
			name:   "student created",
			body:   map[string]string{"name": "Lin", "email": "lin@example.com", "password": "pw", "role": "student", "organization": env.organization.ID.Hex()},
			status: http.StatusCreated,
		},
		{
			name:   "duplicate email",
			body:   map[string]string{"name": "Ada", "email": "ada@example.com", "password": "pw", "role": "admin"},
			status: http.StatusConflict,
		},
		{
			name:   "student without organization",
			body:   map[string]string{"name": "Kim", "email": "kim@example.com", "password": "pw", "role": "student"},
			status: http.StatusBadRequest,
		},
		{
			name:   "missing fields",
			body:   map[string]string{"email": "x@example.com"},
			status: http.StatusBadRequest,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			recorder := env.do(t, http.MethodPost, "/signup", "", testCase.body)
			if recorder.Code != testCase.status {
				t.Fatalf("expected %d, got %d: %s", testCase.status, recorder.Code, recorder.Body.String())
			}
		})
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	env := newTestEnvironment(t)

	for _, path := range []string{"/notes", "/users?organization=x", "/chat/group/messages", "/session"} {
		recorder := env.do(t, http.MethodGet, path, "", nil)
		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("expected %s to require a token, got %d", path, recorder.Code)
		}
	}
}

func TestOrganizationsCreateIsAdminOnly(t *testing.T) {
	env := newTestEnvironment(t)
	body := map[string]string{"name": "Stanford", "description": "University", "location": "Palo Alto", "contactEmail": "hello@stanford.edu"}

	if recorder := env.do(t, http.MethodPost, "/organizations", env.studentToken, body); recorder.Code != http.StatusForbidden {
		t.Fatalf("expected students to be rejected, got %d", recorder.Code)
	}
	if recorder := env.do(t, http.MethodPost, "/organizations", env.adminToken, body); recorder.Code != http.StatusCreated {
		t.Fatalf("expected admin create to succeed, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if recorder := env.do(t, http.MethodPost, "/organizations", env.adminToken, body); recorder.Code != http.StatusConflict {
		t.Fatalf("expected duplicate organization to conflict, got %d", recorder.Code)
	}

	recorder := env.do(t, http.MethodGet, "/organizations", "", nil)
	var payload struct {
		Organizations []struct {
			Name string `json:"name"`
		} `json:"organizations"`
	}
	decodeBody(t, recorder, &payload)
	if len(payload.Organizations) != 2 {
		t.Fatalf("expected two organizations, got %#v", payload.Organizations)
	}
}

func TestListUsersByOrganization(t *testing.T) {
	env := newTestEnvironment(t)

	recorder := env.do(t, http.MethodGet, "/users?organization="+env.organization.ID.Hex(), env.studentToken, nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", recorder.Code)
	}
	var members []struct {
		ID    string `json:"_id"`
		Email string `json:"email"`
	}
	decodeBody(t, recorder, &members)
	if len(members) != 2 {
		t.Fatalf("expected two members, got %#v", members)
	}

	if missing := env.do(t, http.MethodGet, "/users", env.studentToken, nil); missing.Code != http.StatusBadRequest {
		t.Fatalf("expected missing organization to be rejected, got %d", missing.Code)
	}
}
