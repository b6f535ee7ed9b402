package cli

import (
	"context"
	"net"
	"net/http"
	"os"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestServeReturnsListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	server := &http.Server{Addr: ln.Addr().String(), Handler: http.NewServeMux()}
	done := make(chan error, 1)
	go func() {
		done <- serve(context.Background(), server, make(chan os.Signal), zap.NewNop())
	}()

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("expected an error for an address already in use")
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("serve kept running after the listener failed")
	}
}

func TestServeStopsOnSignal(t *testing.T) {
	server := &http.Server{Addr: "127.0.0.1:0", Handler: http.NewServeMux()}
	stop := make(chan os.Signal, 1)
	stop <- syscall.SIGTERM

	if err := serve(context.Background(), server, stop, zap.NewNop()); err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
}

func TestServeStopsOnContextCancel(t *testing.T) {
	server := &http.Server{Addr: "127.0.0.1:0", Handler: http.NewServeMux()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := serve(ctx, server, make(chan os.Signal), zap.NewNop()); err != nil {
		t.Fatalf("expected clean shutdown, got %v", err)
	}
}
