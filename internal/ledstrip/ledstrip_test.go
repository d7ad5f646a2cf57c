package ledstrip

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
)

func newTestStrip() *Strip {
	return &Strip{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		frame:  NewFrame(4),
	}
}

func TestReadRepliesPortClosed(t *testing.T) {
	s := newTestStrip()

	err := s.readReplies(context.Background(), bytes.NewReader(nil))
	if err == nil {
		t.Fatal("expected an error from a closed port")
	}
	if !errors.Is(err, io.EOF) {
		t.Errorf("error = %v, want io.EOF in its chain", err)
	}
}

func TestReadRepliesFault(t *testing.T) {
	s := newTestStrip()

	var stream bytes.Buffer
	for _, reply := range []Reply{
		AckReply{Acked: CmdInit},
		LogReply{Message: "booted"},
		FaultReply{Message: "pixel buffer overrun"},
	} {
		if err := WriteReply(&stream, reply); err != nil {
			t.Fatal(err)
		}
	}

	err := s.readReplies(context.Background(), &stream)
	if err == nil {
		t.Fatal("expected the fault to end the loop with an error")
	}
	if !strings.Contains(err.Error(), "pixel buffer overrun") {
		t.Errorf("error = %v, want the fault message", err)
	}
}

func TestReadRepliesStops(t *testing.T) {
	s := newTestStrip()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.readReplies(ctx, bytes.NewReader(nil))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled after shutdown", err)
	}
}
