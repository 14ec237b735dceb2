package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Tyrowin/roomcast/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	fmt.Println("Starting Roomcast server...")

	// Load configuration from the environment and apply it.
	config := server.NewConfigFromEnv()
	server.SetConfig(config)

	// Start the hub before accepting connections.
	server.StartHub()

	mux := server.SetupRoutes()
	httpServer := server.CreateServer(config.Port, mux)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.StartServer(httpServer); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		log.Println("Shutdown signal received")

		if err := server.GetHub().Shutdown(shutdownTimeout); err != nil {
			log.Printf("Hub shutdown incomplete: %v", err)
		}
		return server.ShutdownServer(httpServer, shutdownTimeout)
	})

	if err := g.Wait(); err != nil {
		log.Fatalf("Server exited with error: %v", err)
	}
	log.Println("Server stopped gracefully")
}
