package ai

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keshon/npc-mind/internal/mind"
)

type sliceStream struct {
	chunks []string
	err    error
	closed bool
}

func (s *sliceStream) Recv() (string, error) {
	if len(s.chunks) == 0 {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	c := s.chunks[0]
	s.chunks = s.chunks[1:]
	return c, nil
}

func (s *sliceStream) Close() error {
	s.closed = true
	return nil
}

func TestCollect(t *testing.T) {
	s := &sliceStream{chunks: []string{"<think>plan", " more</think>", "\"The ford ", "is calm.\""}}
	out, err := Collect(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, "The ford is calm.", out)
	assert.True(t, s.closed)
}

func TestCollectEmpty(t *testing.T) {
	_, err := Collect(context.Background(), &sliceStream{chunks: []string{"  ", "<think>x</think>"}})
	assert.ErrorIs(t, err, mind.ErrEmptyResponse)
}

func TestCollectErrors(t *testing.T) {
	boom := errors.New("connection reset")
	s := &sliceStream{chunks: []string{"partial"}, err: boom}
	_, err := Collect(context.Background(), s)
	assert.ErrorIs(t, err, boom)
	assert.True(t, s.closed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Collect(ctx, &sliceStream{chunks: []string{"never"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCleanReply(t *testing.T) {
	assert.Equal(t, "hi there", cleanReply("  “hi there”  "))
	assert.Equal(t, "kept 'inner' quotes", cleanReply("kept 'inner' quotes"))
	assert.Len(t, []rune(cleanReply(strings.Repeat("é", maxReplyLength+10))), maxReplyLength)
}

func TestIsGarbageResponse(t *testing.T) {
	assert.True(t, isGarbageResponse("<HTML><body>blocked</body>"))
	assert.True(t, isGarbageResponse("Request not allowed"))
	assert.True(t, isGarbageResponse(" a "))
	assert.False(t, isGarbageResponse("The river is high."))
}
