package server

import (
	"context"
	"net/http"
	"testing"
	"time"
)

func TestServerStartServesAndStop(t *testing.T) {
	s := New(Config{
		Addr: "127.0.0.1:0",
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	})

	errCh, err := s.Start()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resp, err := http.Get("http://" + s.Addr() + "/health")
	if err != nil {
		t.Fatalf("unexpected error making request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("unexpected error stopping server: %v", err)
	}

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("unexpected serve error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for serve goroutine to exit")
	}
}

func TestServerStartRejectsBadAddress(t *testing.T) {
	s := New(Config{Addr: "not-an-address", Handler: http.NotFoundHandler()})
	if _, err := s.Start(); err == nil {
		t.Fatalf("expected error binding an invalid address")
	}
}
