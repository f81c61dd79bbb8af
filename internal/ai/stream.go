package ai

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/keshon/npc-mind/internal/mind"
)

// ChunkStream yields pieces of a reply until Recv returns io.EOF.
type ChunkStream interface {
	Recv() (string, error)
	Close() error
}

// Collect drains s and returns the assembled text. The stream is closed on
// return. A cancelled ctx aborts collection with ctx.Err().
func Collect(ctx context.Context, s ChunkStream) (string, error) {
	defer s.Close()
	var b strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		chunk, err := s.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		b.WriteString(chunk)
	}
	out := cleanReply(b.String())
	if out == "" {
		return "", mind.ErrEmptyResponse
	}
	return out, nil
}
