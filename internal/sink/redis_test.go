package sink

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedisAppendUnreachable(t *testing.T) {
	r := NewRedis("127.0.0.1:1")
	defer r.Close()

	_, err := r.Append(context.Background(), testEvent())
	assert.Error(t, err)
}

func TestRedisName(t *testing.T) {
	r := NewRedis("127.0.0.1:1")
	defer r.Close()

	assert.Equal(t, "redis", r.Name())
}
