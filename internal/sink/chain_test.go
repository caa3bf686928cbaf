package sink

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23016960-sys/honeypot/internal/event"
)

type stubSink struct {
	name   string
	err    error
	nextID int64
	events []event.Event
}

func (s *stubSink) Name() string { return s.name }

func (s *stubSink) Append(_ context.Context, ev event.Event) (int64, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.events = append(s.events, ev)
	s.nextID++
	return s.nextID, nil
}

func TestChainStopsAtFirstSuccess(t *testing.T) {
	first := &stubSink{name: "first"}
	second := &stubSink{name: "second"}
	chain := NewChain(first, second)

	name, id, err := chain.Append(context.Background(), testEvent())

	require.NoError(t, err)
	assert.Equal(t, "first", name)
	assert.Equal(t, int64(1), id)
	assert.Len(t, first.events, 1)
	assert.Empty(t, second.events, "later sinks must not be touched after a success")
}

func TestChainFallsBackInOrder(t *testing.T) {
	down := &stubSink{name: "down", err: errors.New("connection refused")}
	mid := &stubSink{name: "mid", err: errors.New("stream full")}
	last := &stubSink{name: "last"}
	chain := NewChain(down, mid, last)

	name, _, err := chain.Append(context.Background(), testEvent())

	require.NoError(t, err)
	assert.Equal(t, "last", name)
	assert.Len(t, last.events, 1)
}

func TestChainPrimaryFailureLandsInFile(t *testing.T) {
	down := &stubSink{name: "postgres", err: errors.New("dial tcp: connection refused")}
	file := newTestFileSink(t)
	chain := NewChain(down, file)
	ev := testEvent()

	name, id, err := chain.Append(context.Background(), ev)

	require.NoError(t, err)
	assert.Equal(t, "file", name)
	assert.Zero(t, id)

	data, err := os.ReadFile(file.Path())
	require.NoError(t, err)
	line := string(data)
	// Same field values as the event handed to the primary, id aside.
	assert.Contains(t, line, ev.Timestamp)
	assert.Contains(t, line, ev.SourceAddr)
	assert.Contains(t, line, ev.Method+" "+ev.Path)
	assert.Contains(t, line, "body:"+ev.Body)
}

func TestChainAllFail(t *testing.T) {
	a := &stubSink{name: "a", err: errors.New("down")}
	b := &stubSink{name: "b", err: errors.New("also down")}
	chain := NewChain(a, b)

	_, _, err := chain.Append(context.Background(), testEvent())

	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "also down"), "last failure should be reported: %v", err)
}

func TestChainEmpty(t *testing.T) {
	_, _, err := NewChain().Append(context.Background(), testEvent())
	assert.Error(t, err)
}
