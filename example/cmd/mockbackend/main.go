// Standalone mock backend for trying the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockbackend
//
// Then in another terminal:
//
//	go run ./cmd/labconsole serve -c example/config.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/labconsole/example/mockbackend"
)

func main() {
	addr := flag.String("addr", ":9999", "listen address")
	cycle := flag.Bool("cycle", true, "cycle health through ok, error and offline")
	failConnect := flag.Bool("fail-connect", false, "make Arduino connect requests fail")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mock := mockbackend.New(slog.Default())
	mock.SetFailConnect(*failConnect)
	if *cycle {
		go mock.Cycle(ctx, 20*time.Second, 60*time.Second)
	}

	fmt.Printf("Mock backend starting on %s\n", *addr)
	fmt.Println("Routes: GET /api/health, POST /api/arduino/{connect,disconnect}, GET /api/arduino/status")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	srv := &http.Server{Addr: *addr, Handler: mock.Handler(), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
