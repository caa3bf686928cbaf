package event

import (
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	json "github.com/goccy/go-json"
)

// BodyExcerptCap bounds how much of a request body is retained per event.
const BodyExcerptCap = 2000

// summaryHeaders are the only headers retained per event. Keeping a fixed
// small set bounds log size and avoids header amplification.
var summaryHeaders = [4]string{"User-Agent", "X-Forwarded-For", "Content-Type", "Accept"}

// Event is one captured HTTP interaction. It is immutable once built; the ID
// is zero unless the primary sink assigned one.
type Event struct {
	ID           int64
	Timestamp    string
	SourceAddr   string
	ForwardedFor string
	Method       string
	Path         string
	Headers      map[string]string
	Body         string
}

// FromRequest builds an Event from the raw request plus the body prefix the
// caller already read. It never fails: every extraction falls back to a safe
// default so malformed input cannot break capture.
func FromRequest(r *http.Request, body []byte) Event {
	ev := Event{
		Timestamp:  Now(),
		SourceAddr: "unknown",
		Headers:    emptySummary(),
		Body:       Excerpt(body),
	}
	if r == nil {
		return ev
	}
	if addr := peerAddr(r.RemoteAddr); addr != "" {
		ev.SourceAddr = addr
	}
	ev.Method = r.Method
	if r.URL != nil {
		ev.Path = r.URL.Path
	}
	if r.Header != nil {
		ev.ForwardedFor = r.Header.Get("X-Forwarded-For")
		for _, k := range summaryHeaders {
			ev.Headers[k] = r.Header.Get(k)
		}
	}
	return ev
}

// Now returns the capture timestamp format: UTC RFC3339 with nanoseconds and
// a Z suffix.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// Excerpt decodes body bytes as UTF-8 with replacement-on-error and truncates
// the result to BodyExcerptCap runes.
func Excerpt(body []byte) string {
	if len(body) > BodyExcerptCap {
		body = body[:BodyExcerptCap]
	}
	s := strings.ToValidUTF8(string(body), string(utf8.RuneError))
	if utf8.RuneCountInString(s) <= BodyExcerptCap {
		return s
	}
	runes := []rune(s)
	return string(runes[:BodyExcerptCap])
}

// HeadersJSON renders the four-key header summary as a JSON object. An encode
// failure degrades to an empty object rather than propagating.
func (e Event) HeadersJSON() string {
	h := e.Headers
	if h == nil {
		h = emptySummary()
	}
	b, err := json.Marshal(h)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func emptySummary() map[string]string {
	h := make(map[string]string, len(summaryHeaders))
	for _, k := range summaryHeaders {
		h[k] = ""
	}
	return h
}

// peerAddr strips the port from a host:port remote address, keeping the raw
// value when it does not parse.
func peerAddr(remote string) string {
	if remote == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(remote); err == nil {
		return host
	}
	return remote
}
