package middlewares

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joshua0006/pineapple-tours--1--sub006/appctx"
	"github.com/joshua0006/pineapple-tours--1--sub006/kvstore"
	"github.com/joshua0006/pineapple-tours--1--sub006/session"
)

func newTestRouter(sessions *session.Store) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(SessionMiddleware(sessions))
	r.GET("/open", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/guarded", RequireSession(), func(c *gin.Context) {
		subject, _ := appctx.GetString(c.Request.Context(), appctx.ContextKeySubject)
		c.String(http.StatusOK, subject)
	})
	return r
}

func TestAnonymousRequestPassesThrough(t *testing.T) {
	r := newTestRouter(session.NewStore(kvstore.NewMemoryKV(), time.Hour))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", w.Code)
	}
}

func TestGuardedRouteRejectsAnonymous(t *testing.T) {
	r := newTestRouter(session.NewStore(kvstore.NewMemoryKV(), time.Hour))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestStaleCookieRejected(t *testing.T) {
	sessions := session.NewStore(kvstore.NewMemoryKV(), time.Hour)
	r := newTestRouter(sessions)

	sess, err := sessions.CreateSession(context.Background(), "ops@pineappletours.com.au")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := sessions.DeleteSession(context.Background(), sess.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/open", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.ID})
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 for a revoked session", w.Code)
	}
}

func TestValidCookieResolvesSubject(t *testing.T) {
	sessions := session.NewStore(kvstore.NewMemoryKV(), time.Hour)
	r := newTestRouter(sessions)

	sess, err := sessions.CreateSession(context.Background(), "ops@pineappletours.com.au")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.ID})
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if w.Body.String() != "ops@pineappletours.com.au" {
		t.Fatalf("subject = %q", w.Body.String())
	}
}
