package capture

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23016960-sys/honeypot/internal/event"
	"github.com/23016960-sys/honeypot/internal/sink"
)

type recordingSink struct {
	name   string
	err    error
	events []event.Event
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Append(_ context.Context, ev event.Event) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.events = append(s.events, ev)
	return int64(len(s.events)), nil
}

type panickingSink struct{}

func (panickingSink) Name() string { return "boom" }

func (panickingSink) Append(context.Context, event.Event) (int64, error) {
	panic("sink exploded")
}

func serve(p *Pipeline, next http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	p.Wrap(next).ServeHTTP(w, r)
	return w
}

func TestCaptureRecordsBeforeHandler(t *testing.T) {
	rec := &recordingSink{name: "rec"}
	p := NewPipeline(sink.NewChain(rec))

	sawEvent := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawEvent = len(rec.events) == 1
		w.WriteHeader(http.StatusTeapot)
	})

	r := httptest.NewRequest("POST", "/admin/login", strings.NewReader("username=admin&password=x"))
	w := serve(p, next, r)

	assert.True(t, sawEvent, "capture must complete before the handler runs")
	assert.Equal(t, http.StatusTeapot, w.Code)

	require.Len(t, rec.events, 1)
	ev := rec.events[0]
	assert.Equal(t, "POST", ev.Method)
	assert.Equal(t, "/admin/login", ev.Path)
	assert.Equal(t, "username=admin&password=x", ev.Body)
}

func TestCaptureFailureDoesNotAlterResponse(t *testing.T) {
	down := &recordingSink{name: "down", err: errors.New("storage offline")}
	p := NewPipeline(sink.NewChain(down))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		io.WriteString(w, "<p>Login failed for admin</p>")
	})

	w := serve(p, next, httptest.NewRequest("POST", "/admin/login", nil))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "<p>Login failed for admin</p>", w.Body.String())
}

func TestCapturePanicSuppressed(t *testing.T) {
	p := NewPipeline(sink.NewChain(panickingSink{}))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "still served")
	})

	w := serve(p, next, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "still served", w.Body.String())
}

func TestCapturePreservesBodyForHandler(t *testing.T) {
	rec := &recordingSink{name: "rec"}
	p := NewPipeline(sink.NewChain(rec))

	payload := strings.Repeat("x", 3*event.BodyExcerptCap)
	var handlerBody []byte
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerBody, _ = io.ReadAll(r.Body)
	})

	serve(p, next, httptest.NewRequest("POST", "/upload", strings.NewReader(payload)))

	assert.Equal(t, payload, string(handlerBody), "handler must see the full body")
	require.Len(t, rec.events, 1)
	assert.Len(t, rec.events[0].Body, event.BodyExcerptCap)
}

func TestCaptureFallsBackMidChain(t *testing.T) {
	down := &recordingSink{name: "down", err: errors.New("storage offline")}
	backup := &recordingSink{name: "backup"}
	p := NewPipeline(sink.NewChain(down, backup))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	serve(p, next, httptest.NewRequest("GET", "/api/v1/data", nil))

	require.Len(t, backup.events, 1)
	assert.Equal(t, "/api/v1/data", backup.events[0].Path)
}

func TestCaptureEmptyBody(t *testing.T) {
	rec := &recordingSink{name: "rec"}
	p := NewPipeline(sink.NewChain(rec))

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	serve(p, next, httptest.NewRequest("GET", "/", nil))

	require.Len(t, rec.events, 1)
	assert.Equal(t, "", rec.events[0].Body)
}
