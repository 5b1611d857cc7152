package main

import (
	"bytes"
	"errors"
	"net"
	"net/http"
	"os"
	osSignal "os/signal"
	"slices"
	"syscall"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/eugenenazirov/share-selector/internal/application"
	"github.com/eugenenazirov/share-selector/internal/config"
)

func TestShutdownStopsSelectionService(t *testing.T) {
	t.Cleanup(func() {
		signalNotify = osSignal.Notify
	})

	var registered []os.Signal
	signalNotify = func(ch chan<- os.Signal, sig ...os.Signal) {
		registered = sig
		go func() {
			ch <- syscall.SIGTERM
		}()
	}

	logger := zaptest.NewLogger(t)
	cfg := config.Config{
		Port:               "127.0.0.1:0",
		CostScale:          1,
		MaxExhaustiveItems: 20,
		MaxTableCells:      1e6,
		ReadHeaderTimeout:  time.Second,
		WriteTimeout:       5 * time.Second,
		IdleTimeout:        time.Second,
	}
	app, err := application.New(cfg, logger)
	if err != nil {
		t.Fatalf("application.New returned error: %v", err)
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	served := make(chan error, 1)
	go func() {
		served <- app.Server().Serve(ln)
	}()

	base := "http://" + ln.Addr().String()
	client := &http.Client{Timeout: time.Second}

	resp, err := client.Post(base+"/api/solve", "application/json", bytes.NewBufferString(`{"budget":500,"strategy":"dynamic"}`))
	if err != nil {
		t.Fatalf("solve before shutdown: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from solve before shutdown, got %d", resp.StatusCode)
	}

	shutdown(app.Server(), time.Second, logger)

	if !slices.Contains(registered, os.Signal(syscall.SIGTERM)) || !slices.Contains(registered, os.Signal(syscall.SIGINT)) {
		t.Fatalf("expected SIGINT and SIGTERM to be watched, got %v", registered)
	}

	select {
	case err := <-served:
		if !errors.Is(err, http.ErrServerClosed) {
			t.Fatalf("expected server closed error, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("expected server to stop serving after shutdown")
	}

	if resp, err := client.Get(base + "/api/health"); err == nil {
		resp.Body.Close()
		t.Fatalf("expected requests to fail after shutdown, got %d", resp.StatusCode)
	}
}
