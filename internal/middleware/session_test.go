package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/irissociety/irisportal/internal/model"
)

// mockSessionLoader はSessionLoaderのテスト用モック。
type mockSessionLoader struct {
	currentSessionFn func(ctx context.Context, sessionID string) (*model.Session, error)
}

func (m *mockSessionLoader) CurrentSession(ctx context.Context, sessionID string) (*model.Session, error) {
	return m.currentSessionFn(ctx, sessionID)
}

func newTestSession() *model.Session {
	return &model.Session{
		ID: "session-abc",
		Identity: model.Identity{
			SubjectID: "google-sub-1",
			Email:     "ada@example.edu",
			Name:      "Ada",
		},
		ExpiresAt: time.Now().Add(time.Hour),
		CreatedAt: time.Now(),
	}
}

func TestSessionMiddleware_ValidSession_InjectsSession(t *testing.T) {
	session := newTestSession()
	loader := &mockSessionLoader{
		currentSessionFn: func(_ context.Context, id string) (*model.Session, error) {
			if id != "session-abc" {
				t.Errorf("sessionID = %q, want %q", id, "session-abc")
			}
			return session, nil
		},
	}

	var gotID string
	var gotOK bool
	handler := NewSessionMiddleware(loader)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID = MemberIDFromContext(r.Context())
		_, gotOK = SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "session-abc"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if !gotOK {
		t.Fatal("expected session in context")
	}
	if gotID != "google-sub-1" {
		t.Errorf("member id = %q, want %q", gotID, "google-sub-1")
	}
}

func TestSessionMiddleware_NoCookie_PassesThroughWithoutSession(t *testing.T) {
	loader := &mockSessionLoader{
		currentSessionFn: func(context.Context, string) (*model.Session, error) {
			t.Fatal("loader should not be called without cookie")
			return nil, nil
		},
	}

	called := false
	handler := NewSessionMiddleware(loader)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if _, ok := SessionFromContext(r.Context()); ok {
			t.Error("expected no session in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if !called {
		t.Fatal("next handler should be called")
	}
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestSessionMiddleware_ExpiredOrUnknownSession_PassesThrough(t *testing.T) {
	loader := &mockSessionLoader{
		currentSessionFn: func(context.Context, string) (*model.Session, error) {
			return nil, nil
		},
	}

	called := false
	handler := NewSessionMiddleware(loader)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if MemberIDFromContext(r.Context()) != "" {
			t.Error("expected empty member id")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "stale"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Fatal("next handler should be called")
	}
}

func TestSessionMiddleware_LoaderError_MarksSessionUnavailable(t *testing.T) {
	loader := &mockSessionLoader{
		currentSessionFn: func(context.Context, string) (*model.Session, error) {
			return nil, errors.New("db down")
		},
	}

	called := false
	handler := NewSessionMiddleware(loader)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if _, ok := IdentityFromContext(r.Context()); ok {
			t.Error("expected no identity on loader error")
		}
		if !SessionUnavailable(r.Context()) {
			t.Error("expected session to be marked unavailable")
		}
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "session-abc"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Fatal("next handler should be called")
	}
}

func TestIdentityFromContext(t *testing.T) {
	session := newTestSession()
	ctx := ContextWithSession(context.Background(), session)

	identity, ok := IdentityFromContext(ctx)
	if !ok {
		t.Fatal("expected identity")
	}
	if identity.Email != "ada@example.edu" {
		t.Errorf("email = %q, want %q", identity.Email, "ada@example.edu")
	}

	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Error("expected no identity in empty context")
	}
	if _, ok := SessionFromContext(ContextWithSession(context.Background(), nil)); ok {
		t.Error("nil session should not be reported as present")
	}
}

func TestSessionUnavailable_FalseForMissingOrStaleSession(t *testing.T) {
	loader := &mockSessionLoader{
		currentSessionFn: func(context.Context, string) (*model.Session, error) {
			return nil, nil
		},
	}

	var unavailable bool
	handler := NewSessionMiddleware(loader)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		unavailable = SessionUnavailable(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "stale"})
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if unavailable {
		t.Error("a stale session must not be reported as unavailable")
	}
	if SessionUnavailable(context.Background()) {
		t.Error("empty context must not be reported as unavailable")
	}
}
