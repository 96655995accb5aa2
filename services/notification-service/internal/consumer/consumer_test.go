package consumer

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func TestRun_NoBrokersConfigured(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Constructing without brokers must not panic, and Run must refuse
	// instead of spinning on a nil reader.
	c := New(logger, nil, Config{GroupID: "g", Topics: []string{"some.topic.v1"}}, nil)

	done := make(chan struct{})
	go func() {
		c.Run(context.Background())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should return immediately when no brokers are configured")
	}
}
