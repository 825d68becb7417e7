package session

import (
	"context"
	"log"

	"github.com/carebridge-dev/carebridge/internal/bridge"
)

// Dispatcher creates one Controller per accepted media-stream connection.
type Dispatcher struct {
	cfg Config
}

func NewDispatcher(cfg Config) *Dispatcher {
	return &Dispatcher{cfg: cfg}
}

// HandleStream runs a call session to completion on the caller's goroutine.
func (d *Dispatcher) HandleStream(ctx context.Context, conn bridge.Conn) {
	controller := NewController(conn, d.cfg)
	if err := controller.Run(ctx); err != nil {
		log.Printf("call session error: %v", err)
	}
}
