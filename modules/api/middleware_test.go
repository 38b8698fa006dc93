package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	domain "github.com/ERSMS-25L/ERSMS-Task-Service/domain/user"
	"github.com/gofiber/fiber/v2"
)

// mockAuthPort implements auth.AuthPort for testing
type mockAuthPort struct {
	verifyTokenFunc func(ctx context.Context, token string) (*domain.Claims, error)
	issueTokenFunc  func(ctx context.Context, userID, email string) (*domain.TokenPair, error)
	verifyCalls     int
}

func (m *mockAuthPort) VerifyToken(ctx context.Context, token string) (*domain.Claims, error) {
	m.verifyCalls++
	if m.verifyTokenFunc != nil {
		return m.verifyTokenFunc(ctx, token)
	}
	return nil, errors.New("not implemented")
}

func (m *mockAuthPort) IssueToken(ctx context.Context, userID, email string) (*domain.TokenPair, error) {
	if m.issueTokenFunc != nil {
		return m.issueTokenFunc(ctx, userID, email)
	}
	return nil, errors.New("not implemented")
}

func verifyReturning(claims *domain.Claims, err error) func(context.Context, string) (*domain.Claims, error) {
	return func(context.Context, string) (*domain.Claims, error) {
		return claims, err
	}
}

// newAuthTestApp mounts AuthMiddleware in front of a handler that echoes the
// caller's userKey.
func newAuthTestApp(authPort *mockAuthPort) *fiber.App {
	app := fiber.New()
	app.Use(AuthMiddleware(authPort))
	app.Get("/whoami", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"user": userKey(c)})
	})
	return app
}

func doAuthRequest(t *testing.T, app *fiber.App, authHeader string) (int, map[string]string) {
	t.Helper()

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if authHeader != "" {
		req.Header.Set(fiber.HeaderAuthorization, authHeader)
	}
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	defer resp.Body.Close()

	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return resp.StatusCode, body
}

func TestAuthMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		authHeader  string
		verify      func(context.Context, string) (*domain.Claims, error)
		wantStatus  int
		wantMessage string
		wantVerify  bool
	}{
		{
			name:        "missing header",
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Authorization header is required",
		},
		{
			name:        "basic scheme",
			authHeader:  "Basic dXNlcjpwYXNz",
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Invalid authorization header format. Use: Bearer <token>",
		},
		{
			name:        "lowercase bearer",
			authHeader:  "bearer token123",
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Invalid authorization header format. Use: Bearer <token>",
		},
		// The transport may trim trailing blanks, leaving a bare "Bearer".
		{
			name:       "bearer with empty token",
			authHeader: "Bearer ",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:       "bearer with whitespace token",
			authHeader: "Bearer  \t  ",
			wantStatus: http.StatusUnauthorized,
		},
		{
			name:        "verification fails",
			authHeader:  "Bearer expired",
			verify:      verifyReturning(nil, errors.New("token expired")),
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Invalid or expired token",
			wantVerify:  true,
		},
		{
			name:        "claims without subject",
			authHeader:  "Bearer no-subject",
			verify:      verifyReturning(&domain.Claims{Email: "nobody@example.com"}, nil),
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Invalid or expired token",
			wantVerify:  true,
		},
		{
			name:        "nil claims",
			authHeader:  "Bearer nil-claims",
			verify:      verifyReturning(nil, nil),
			wantStatus:  http.StatusUnauthorized,
			wantMessage: "Invalid or expired token",
			wantVerify:  true,
		},
		{
			name:       "valid token",
			authHeader: "Bearer valid-token",
			verify:     verifyReturning(&domain.Claims{UserID: "user-123", Email: "test@example.com"}, nil),
			wantStatus: http.StatusOK,
			wantVerify: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			authPort := &mockAuthPort{verifyTokenFunc: tt.verify}
			status, body := doAuthRequest(t, newAuthTestApp(authPort), tt.authHeader)

			if status != tt.wantStatus {
				t.Errorf("status = %v, want %v", status, tt.wantStatus)
			}
			if status == http.StatusUnauthorized && body["error"] != "unauthorized" {
				t.Errorf("error = %q, want %q", body["error"], "unauthorized")
			}
			if tt.wantMessage != "" && body["message"] != tt.wantMessage {
				t.Errorf("message = %q, want %q", body["message"], tt.wantMessage)
			}
			if called := authPort.verifyCalls > 0; called != tt.wantVerify {
				t.Errorf("VerifyToken called = %v, want %v", called, tt.wantVerify)
			}
		})
	}
}

func TestAuthMiddleware_BlankTokenNeverVerified(t *testing.T) {
	authPort := &mockAuthPort{verifyTokenFunc: verifyReturning(&domain.Claims{UserID: "user-1"}, nil)}
	handler := AuthMiddleware(authPort)

	for _, header := range []string{"Bearer ", "Bearer    ", "Bearer \t\t"} {
		app := fiber.New()
		app.Get("/", func(c *fiber.Ctx) error {
			// Set the header after transport parsing so blanks survive.
			c.Request().Header.Set(fiber.HeaderAuthorization, header)
			return handler(c)
		})

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
		if err != nil {
			t.Fatalf("app.Test() error = %v", err)
		}
		var body ErrorResponse
		err = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("decode body: %v", err)
		}

		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%q: status = %v, want %v", header, resp.StatusCode, http.StatusUnauthorized)
		}
		if body.Message != "Token is required" {
			t.Errorf("%q: message = %q, want %q", header, body.Message, "Token is required")
		}
	}
	if authPort.verifyCalls != 0 {
		t.Errorf("VerifyToken called %d times, want 0", authPort.verifyCalls)
	}
}

func TestAuthMiddleware_TokenIsTrimmed(t *testing.T) {
	var got string
	authPort := &mockAuthPort{
		verifyTokenFunc: func(_ context.Context, token string) (*domain.Claims, error) {
			got = token
			return &domain.Claims{UserID: "user-1"}, nil
		},
	}

	status, _ := doAuthRequest(t, newAuthTestApp(authPort), "Bearer   abc.def.ghi  ")
	if status != http.StatusOK {
		t.Fatalf("status = %v, want %v", status, http.StatusOK)
	}
	if got != "abc.def.ghi" {
		t.Errorf("token = %q, want %q", got, "abc.def.ghi")
	}
}

func TestAuthMiddleware_ClaimsReachHandlers(t *testing.T) {
	authPort := &mockAuthPort{
		verifyTokenFunc: verifyReturning(&domain.Claims{UserID: "user-456", Email: "context@example.com"}, nil),
	}
	app := newAuthTestApp(authPort)

	var captured *domain.Claims
	app.Get("/claims", func(c *fiber.Ctx) error {
		claims, ok := currentUser(c)
		if !ok {
			return c.SendStatus(fiber.StatusInternalServerError)
		}
		captured = claims
		return c.SendStatus(fiber.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/claims", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer valid-token")
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %v, want %v", resp.StatusCode, http.StatusNoContent)
	}
	if captured == nil || captured.UserID != "user-456" || captured.Email != "context@example.com" {
		t.Errorf("claims = %+v, want user-456/context@example.com", captured)
	}

	status, body := doAuthRequest(t, app, "Bearer valid-token")
	if status != http.StatusOK {
		t.Fatalf("status = %v, want %v", status, http.StatusOK)
	}
	if body["user"] != "user-456" {
		t.Errorf("userKey = %q, want %q", body["user"], "user-456")
	}
}

func TestCurrentUser(t *testing.T) {
	tests := []struct {
		name     string
		locals   any
		wantOK   bool
		wantUser string
	}{
		{name: "nothing stored"},
		{name: "wrong type", locals: "user-1"},
		{name: "nil claims", locals: (*domain.Claims)(nil)},
		{name: "empty subject", locals: &domain.Claims{Email: "a@example.com"}},
		{name: "subject", locals: &domain.Claims{UserID: "user-1"}, wantOK: true, wantUser: "user-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				if tt.locals != nil {
					c.Locals(UserContextKey, tt.locals)
				}
				_, ok := currentUser(c)
				return c.JSON(fiber.Map{"ok": ok, "user": userKey(c)})
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil), -1)
			if err != nil {
				t.Fatalf("app.Test() error = %v", err)
			}
			defer resp.Body.Close()

			var body struct {
				OK   bool   `json:"ok"`
				User string `json:"user"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body.OK != tt.wantOK {
				t.Errorf("currentUser ok = %v, want %v", body.OK, tt.wantOK)
			}
			if body.User != tt.wantUser {
				t.Errorf("userKey = %q, want %q", body.User, tt.wantUser)
			}
		})
	}
}
