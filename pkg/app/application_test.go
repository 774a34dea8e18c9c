package app

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"roadquest/pkg/config"
	"roadquest/pkg/logger"
	"roadquest/pkg/middleware"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/goleak"
)

type routesFunc func(*httprouter.Router)

func (f routesFunc) RegisterRoutes(r *httprouter.Router) { f(r) }

func ok(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"data":"ok"}`))
}

func testConfig() *config.Config {
	return &config.Config{
		Port:              "0",
		AllowedOrigins:    []string{"http://localhost:5173"},
		RateLimitRequests: 2,
		RateLimitWindow:   time.Minute,
		RequestTimeout:    time.Second,
		IdempotencyTTL:    time.Minute,
		MaxRequestSize:    1024,
		ShutdownTimeout:   time.Second,
		Log:               logger.Discard(),
	}
}

func newTestApp(t *testing.T) *Application {
	t.Helper()
	a := NewApplication(testConfig())
	health := routesFunc(func(r *httprouter.Router) {
		r.GET("/health", ok)
	})
	api := routesFunc(func(r *httprouter.Router) {
		r.GET("/api/v1/cars", ok)
		r.POST("/api/v1/cars", ok)
	})
	a.SetApp(health, api)
	return a
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestApplication_Middleware(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := newTestApp(t)
	defer a.Shutdown()
	h := a.Handler()

	t.Run("request id on api routes", func(t *testing.T) {
		rec := do(h, httptest.NewRequest(http.MethodGet, "/api/v1/cars", nil))
		if rec.Code != http.StatusOK || rec.Header().Get(middleware.RequestIDHeader) == "" {
			t.Errorf("status = %d, headers = %v", rec.Code, rec.Header())
		}
	})

	t.Run("content type enforced", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/cars", strings.NewReader("x=1"))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if rec := do(h, req); rec.Code != http.StatusUnsupportedMediaType {
			t.Errorf("status = %d", rec.Code)
		}
	})

	t.Run("cors preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/cars", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := do(h, req)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
			t.Errorf("allow origin = %q", got)
		}
	})

	t.Run("health bypasses rate limit", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			if rec := do(h, httptest.NewRequest(http.MethodGet, "/health", nil)); rec.Code != http.StatusOK {
				t.Fatalf("health #%d status = %d", i, rec.Code)
			}
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		var last int
		for i := 0; i < 3; i++ {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/cars", nil)
			req.RemoteAddr = "203.0.113.9:4000"
			last = do(h, req).Code
		}
		if last != http.StatusTooManyRequests {
			t.Errorf("third request status = %d", last)
		}
	})
}

func TestApplication_ShutdownRunsHooks(t *testing.T) {
	defer goleak.VerifyNone(t)

	a := newTestApp(t)
	var order []string
	a.OnShutdown("publisher", func() error {
		order = append(order, "publisher")
		return nil
	})
	a.OnShutdown("broken", func() error {
		order = append(order, "broken")
		return errors.New("close failed")
	})

	a.Shutdown()

	if len(order) != 2 || order[0] != "publisher" || order[1] != "broken" {
		t.Errorf("hooks ran as %v", order)
	}
}
