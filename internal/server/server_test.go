package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer() *Server {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(http.NotFoundHandler(), Options{Port: 0, ShutdownTimeout: time.Second}, logger)
}

func TestServer_ShutdownRunsComponentsInReverse(t *testing.T) {
	s := newTestServer()

	var order []string
	for _, name := range []string{"postgres", "redis", "metrics"} {
		s.OnShutdown(name, func(context.Context) error {
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, s.gracefulShutdown())
	assert.Equal(t, []string{"metrics", "redis", "postgres"}, order)
}

func TestServer_ShutdownCollectsErrors(t *testing.T) {
	s := newTestServer()
	boom := errors.New("boom")

	ran := false
	s.OnShutdown("postgres", func(context.Context) error {
		ran = true
		return nil
	})
	s.OnShutdown("redis", func(context.Context) error { return boom })

	err := s.gracefulShutdown()
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "redis")
	assert.True(t, ran, "later failures must not skip earlier components")
}

func TestServer_RunStopsOnContextCancel(t *testing.T) {
	s := newTestServer()

	closed := make(chan struct{})
	s.OnShutdown("probe", func(context.Context) error {
		close(closed)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	<-closed
}
