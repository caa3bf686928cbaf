package quarantine

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Noter appends one informational line to the capture fallback log.
type Noter interface {
	Note(text string) error
}

// Store persists attacker-submitted files in an isolated directory. Files are
// written once and never read back, served, or executed by the service.
type Store struct {
	dir   string
	notes Noter
}

// NewStore builds a quarantine store rooted at dir. notes may be nil when no
// upload notices are wanted.
func NewStore(dir string, notes Noter) *Store {
	return &Store{dir: dir, notes: notes}
}

// Init creates the quarantine directory. Idempotent; called once at startup.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("create quarantine dir: %w", err)
	}
	return nil
}

// Dir returns the quarantine directory.
func (s *Store) Dir() string { return s.dir }

// Save streams the payload to <dir>/<unix_seconds>_<sanitized_name> and
// records an upload notice on success. The size ceiling is enforced at the
// transport boundary before the payload reaches this store. A partially
// written file is possible only on process crash.
func (s *Store) Save(name string, r io.Reader) (string, error) {
	base := fmt.Sprintf("%d_%s", time.Now().Unix(), SanitizeName(name))
	dst := filepath.Join(s.dir, base)
	f, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		// Same name landed within the same second; disambiguate.
		dst = filepath.Join(s.dir, fmt.Sprintf("%d_%s_%s", time.Now().Unix(), uuid.NewString()[:8], SanitizeName(name)))
		f, err = os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	}
	if err != nil {
		return "", fmt.Errorf("create quarantine file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("write quarantine file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close quarantine file: %w", err)
	}
	if s.notes != nil {
		if err := s.notes.Note("uploaded_file_saved: " + dst); err != nil {
			// Best effort; the upload itself succeeded.
			log.Warn().Err(err).Str("path", dst).Msg("upload note append failed")
		}
	}
	return dst, nil
}

// SanitizeName reduces an attacker-supplied filename to characters safe for
// the local filesystem: ASCII letters, digits, dot, underscore, and hyphen.
// Leading dots are stripped so traversal fragments and hidden names cannot
// survive. An empty result collapses to "upload".
func SanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if out == "" {
		return "upload"
	}
	return out
}
