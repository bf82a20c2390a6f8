package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authgate/authgate/internal/mail"
)

type stubSender struct {
	err error
}

func (s stubSender) Send(ctx context.Context, msg mail.Message) error {
	return s.err
}

func newInstrumentedRouter(m *Metrics) chi.Router {
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/sign-in/email", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		})
		r.Get("/ok", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("ok"))
		})
	})
	return r
}

func TestMiddlewareCountsByRoutePattern(t *testing.T) {
	m := New()
	r := newInstrumentedRouter(m)

	for range 2 {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/auth/sign-in/email", nil))
	}
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/auth/ok", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "/api/auth/sign-in/email", "401")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/api/auth/ok", "200")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.RequestDuration))
}

func TestMiddlewareCollapsesUnmatchedPaths(t *testing.T) {
	m := New()
	r := newInstrumentedRouter(m)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/a", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/b", nil))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", unmatchedRoute, "404")))
}

func TestInstrumentSender(t *testing.T) {
	m := New()
	ctx := context.Background()

	require.NoError(t, m.InstrumentSender(stubSender{}).Send(ctx, mail.Message{}))

	boom := errors.New("relay down")
	err := m.InstrumentSender(stubSender{err: boom}).Send(ctx, mail.Message{})
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MailDeliveries.WithLabelValues(MailSent)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.MailDeliveries.WithLabelValues(MailFailed)))
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.MailDeliveries.WithLabelValues(MailSent).Inc()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `authgate_mail_deliveries_total{result="sent"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
