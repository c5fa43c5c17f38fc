// Powerhour - Drinking-Game Playlist Sharing and Sync
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/powerhour

package supervisor

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"
)

type fakeServer struct {
	listenErr   error
	shutdownErr error

	started  chan struct{}
	stop     chan struct{}
	stopOnce sync.Once
}

func newFakeServer() *fakeServer {
	return &fakeServer{started: make(chan struct{}, 1), stop: make(chan struct{})}
}

func (f *fakeServer) ListenAndServe() error {
	f.started <- struct{}{}
	if f.listenErr != nil {
		return f.listenErr
	}
	<-f.stop
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(context.Context) error {
	f.stopOnce.Do(func() { close(f.stop) })
	return f.shutdownErr
}

func TestHTTPService_GracefulShutdown(t *testing.T) {
	srv := newFakeServer()
	svc := NewHTTPService(srv, ":0", time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()

	<-srv.started
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Serve() error = %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return")
	}
}

func TestHTTPService_ListenFailure(t *testing.T) {
	srv := newFakeServer()
	srv.listenErr = errors.New("address in use")
	svc := NewHTTPService(srv, ":0", time.Second)

	err := svc.Serve(context.Background())
	if err == nil || !errors.Is(err, srv.listenErr) {
		t.Errorf("Serve() error = %v, want wrapped listen error", err)
	}
}

func TestHTTPService_ShutdownFailure(t *testing.T) {
	srv := newFakeServer()
	srv.shutdownErr = errors.New("connections still open")
	svc := NewHTTPService(srv, ":0", time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Serve(ctx) }()
	<-srv.started
	cancel()

	if err := <-done; !errors.Is(err, srv.shutdownErr) {
		t.Errorf("Serve() error = %v, want shutdown error", err)
	}
}

func TestHTTPService_String(t *testing.T) {
	if got := NewHTTPService(newFakeServer(), ":0", 0).String(); got != "http-server" {
		t.Errorf("String() = %q", got)
	}
}
