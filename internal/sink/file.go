package sink

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/23016960-sys/honeypot/internal/event"
)

// File is the last line of defense: a flat append-only text log that takes
// events when everything before it in the chain has failed. Writes are
// serialized behind a mutex so concurrent appends never interleave lines.
type File struct {
	mu   sync.Mutex
	f    *os.File
	path string
}

// NewFile opens (creating if absent) the fallback log in append mode.
func NewFile(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open fallback log: %w", err)
	}
	return &File{f: f, path: path}, nil
}

func (s *File) Name() string { return "file" }

// Path returns the log file location.
func (s *File) Path() string { return s.path }

// Append writes one human-readable line for the event. The file sink assigns
// no identity.
func (s *File) Append(_ context.Context, ev event.Event) (int64, error) {
	line := fmt.Sprintf("%s | %s | %s | %s %s | headers:%s | body:%s\n",
		ev.Timestamp, ev.SourceAddr, ev.ForwardedFor,
		ev.Method, ev.Path, ev.HeadersJSON(), ev.Body)
	if err := s.write(line); err != nil {
		return 0, fmt.Errorf("append fallback log: %w", err)
	}
	return 0, nil
}

// Note appends a timestamped informational line, independent of event
// capture. The quarantine store uses it to record completed uploads.
func (s *File) Note(text string) error {
	if err := s.write(fmt.Sprintf("%s | %s\n", event.Now(), text)); err != nil {
		return fmt.Errorf("append note: %w", err)
	}
	return nil
}

func (s *File) write(line string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.f.WriteString(line)
	return err
}

func (s *File) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}
