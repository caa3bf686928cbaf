package bait

import (
	"errors"
	"fmt"
	"html"
	"math/rand"
	"net/http"
	"time"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/23016960-sys/honeypot/internal/quarantine"
)

const genericPage = "<h1>Welcome</h1><p>This server is under maintenance.</p>"

const adminPage = `<!doctype html>
<title>Admin Panel</title>
<h2>Admin Login</h2>
<form method="post" action="/admin/login">
  <input name="username" placeholder="username"/><br/>
  <input name="password" placeholder="password" type="password"/><br/>
  <button type="submit">Login</button>
</form>
`

// serverBanners are rotated into the Server response header so scanners see a
// plausible mix of origin software.
var serverBanners = []string{"nginx/1.23.4", "Apache/2.4.57 (Unix)", "Caddy", "envoy"}

var (
	mHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "honeypot", Subsystem: "bait", Name: "hits_total",
		Help: "Bait endpoint hits.",
	}, []string{"endpoint"})
	mUploads = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "honeypot", Subsystem: "bait", Name: "uploads_total",
		Help: "Upload attempts, by result.",
	}, []string{"result"})
)

func init() {
	prometheus.MustRegister(mHits, mUploads)
}

// Surface is the set of fake endpoints. It holds no per-request state and
// never authenticates anything; every response is canned.
type Surface struct {
	store  *quarantine.Store
	jitter time.Duration
}

// NewSurface builds the bait surface. jitter, when positive, bounds a random
// per-response delay for scan realism.
func NewSurface(store *quarantine.Store, jitter time.Duration) *Surface {
	return &Surface{store: store, jitter: jitter}
}

// Handler returns the bait routing table with banner decoration applied.
func (s *Surface) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/admin", s.handleAdmin)
	mux.HandleFunc("/admin/login", s.handleLogin)
	mux.HandleFunc("/api/v1/data", s.handleAPI)
	mux.HandleFunc("/upload", s.handleUpload)
	return s.decorate(mux)
}

// decorate sets a rotating Server banner and applies response jitter before
// routing.
func (s *Surface) decorate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", serverBanners[rand.Intn(len(serverBanners))])
		w.Header().Set("Date", time.Now().UTC().Format(http.TimeFormat))
		if s.jitter > 0 {
			time.Sleep(time.Duration(rand.Int63n(int64(s.jitter))))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Surface) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		mHits.WithLabelValues("other").Inc()
		http.NotFound(w, r)
		return
	}
	mHits.WithLabelValues("index").Inc()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, genericPage)
}

func (s *Surface) handleAdmin(w http.ResponseWriter, r *http.Request) {
	mHits.WithLabelValues("admin").Inc()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, adminPage)
}

// handleLogin shows the form on GET and fails every POST attempt with the
// submitted username echoed back. There are no real credentials to compare
// against.
func (s *Surface) handleLogin(w http.ResponseWriter, r *http.Request) {
	mHits.WithLabelValues("login").Inc()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if r.Method != http.MethodPost {
		fmt.Fprint(w, adminPage)
		return
	}
	_ = r.ParseForm()
	username := r.PostFormValue("username")
	w.WriteHeader(http.StatusUnauthorized)
	fmt.Fprintf(w, "<p>Login failed for %s</p>", html.EscapeString(username))
}

func (s *Surface) handleAPI(w http.ResponseWriter, r *http.Request) {
	mHits.WithLabelValues("api").Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusNotFound)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": "not_found"})
}

// handleUpload quarantines the multipart "file" field. The only failure ever
// surfaced to the peer is a detail-free 500.
func (s *Surface) handleUpload(w http.ResponseWriter, r *http.Request) {
	mHits.WithLabelValues("upload").Inc()
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	file, hdr, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			mUploads.WithLabelValues("too_large").Inc()
			http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
			return
		}
		// No usable file field; the request was still captured upstream.
		fmt.Fprint(w, "OK")
		return
	}
	defer file.Close()
	path, err := s.store.Save(hdr.Filename, file)
	if err != nil {
		mUploads.WithLabelValues("failed").Inc()
		log.Error().Err(err).Msg("upload quarantine failed")
		http.Error(w, "Failed", http.StatusInternalServerError)
		return
	}
	mUploads.WithLabelValues("stored").Inc()
	log.Info().Str("path", path).Msg("upload quarantined")
	fmt.Fprint(w, "OK")
}

// BodyLimit enforces the transport-level request size ceiling before any
// handler runs. Declared lengths over the limit are rejected outright;
// chunked bodies are capped by the reader.
func BodyLimit(max int64, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > max {
			http.Error(w, "request too large", http.StatusRequestEntityTooLarge)
			return
		}
		if r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, max)
		}
		next.ServeHTTP(w, r)
	})
}
