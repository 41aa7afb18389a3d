// Command example runs the lab console against an in-process mock backend
// whose health cycles through ok, error and offline.
//
// Usage:
//
//	go run ./example
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jpalmerr/labconsole"
	"github.com/jpalmerr/labconsole/example/mockbackend"
)

const mockAddr = ":9999"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mock := mockbackend.New(slog.Default())
	go func() {
		if err := http.ListenAndServe(mockAddr, mock.Handler()); err != nil {
			slog.Error("mock backend error", "error", err)
		}
	}()
	go mock.Cycle(ctx, 20*time.Second, 60*time.Second)
	time.Sleep(100 * time.Millisecond)

	arduino, _ := labconsole.NewDevice("arduino_uno_r4", "Arduino Uno R4",
		labconsole.WithRoute("arduino"),
	)
	scope, _ := labconsole.NewDevice("picoscope_5244d", "PicoScope 5244D",
		labconsole.WithPlaceholder(),
	)

	console, err := labconsole.New(
		labconsole.WithBackendURL("http://localhost"+mockAddr),
		labconsole.WithDevices(arduino, scope),
		labconsole.WithProbeInterval(5*time.Second),
		labconsole.WithProbeTimeout(2*time.Second),
		labconsole.WithTransitionNotices(true),
		labconsole.WithTitle("Lab Console Demo"),
		labconsole.WithPort(8080),
	)
	if err != nil {
		slog.Error("failed to create console", "error", err)
		os.Exit(1)
	}

	fmt.Println()
	fmt.Println("  Lab Console Demo")
	fmt.Println()
	fmt.Println("  Open http://localhost:8080 in your browser")
	fmt.Println("  Mock backend on http://localhost" + mockAddr + " cycles ok -> error -> offline")
	fmt.Println("  Press Ctrl+C to stop")
	fmt.Println()

	if err := console.Start(ctx); err != nil {
		slog.Error("console error", "error", err)
		os.Exit(1)
	}
}
