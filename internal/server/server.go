package server

import (
	"context"
	"log"
	"net/http"
	"time"
)

func Handler(hub *Hub, store CallStore, streams StreamHandler, publicHost string) http.Handler {
	mux := http.NewServeMux()

	registerTwilioRoutes(mux, streams, publicHost)
	registerWSRoute(mux, hub)
	registerAPIRoutes(mux, store)

	return mux
}

// Serve runs the HTTP server until the context is cancelled, then shuts down
// gracefully. In-flight media streams get a short window to close.
func Serve(ctx context.Context, addr string, h http.Handler) error {
	srv := &http.Server{Addr: addr, Handler: h}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
