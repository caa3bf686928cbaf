package capture

import (
	"bytes"
	"io"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/23016960-sys/honeypot/internal/event"
	"github.com/23016960-sys/honeypot/internal/sink"
)

var (
	mRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "honeypot", Subsystem: "capture", Name: "requests_total",
		Help: "Requests seen by the capture pipeline.",
	})
	mStored = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "honeypot", Subsystem: "capture", Name: "events_stored_total",
		Help: "Events stored, by accepting sink.",
	}, []string{"sink"})
	mDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "honeypot", Subsystem: "capture", Name: "events_dropped_total",
		Help: "Events lost after every sink failed.",
	})
)

func init() {
	prometheus.MustRegister(mRequests, mStored, mDropped)
}

// Pipeline records every inbound request to the sink chain before the bait
// surface sees it. Capture is strictly best-effort: no failure, panic, or
// slow sink may alter the response the wrapped handler produces.
type Pipeline struct {
	chain *sink.Chain
}

func NewPipeline(chain *sink.Chain) *Pipeline {
	return &Pipeline{chain: chain}
}

// Wrap returns a handler that captures the request and then serves next.
// Capture completes before next runs, so the event is recorded even if the
// handler later misbehaves.
func (p *Pipeline) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.capture(r)
		next.ServeHTTP(w, r)
	})
}

// capture extracts, builds, and dispatches one event. This is the absorb-all
// boundary of the error model: everything below it is reduced to operational
// diagnostics.
func (p *Pipeline) capture(r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("capture panic suppressed")
		}
	}()
	mRequests.Inc()

	ev := event.FromRequest(r, readExcerpt(r))
	corrID := uuid.New().String()

	name, id, err := p.chain.Append(r.Context(), ev)
	if err != nil {
		mDropped.Inc()
		log.Error().
			Str("correlation_id", corrID).
			Str("method", ev.Method).
			Str("path", ev.Path).
			Err(err).
			Msg("event capture dropped")
		return
	}
	mStored.WithLabelValues(name).Inc()
	log.Debug().
		Str("correlation_id", corrID).
		Str("sink", name).
		Int64("event_id", id).
		Str("method", ev.Method).
		Str("path", ev.Path).
		Msg("event captured")
}

// readExcerpt consumes at most the excerpt cap from the request body and
// stitches the read prefix back in front of the remainder, so downstream
// handlers still see the complete body.
func readExcerpt(r *http.Request) []byte {
	if r == nil || r.Body == nil {
		return nil
	}
	buf := make([]byte, event.BodyExcerptCap)
	n, _ := io.ReadFull(r.Body, buf)
	buf = buf[:n]
	r.Body = rewoundBody{
		Reader: io.MultiReader(bytes.NewReader(buf), r.Body),
		Closer: r.Body,
	}
	return buf
}

type rewoundBody struct {
	io.Reader
	io.Closer
}
