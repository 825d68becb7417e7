package server

import (
	"context"
	"log"
	"net/http"

	"github.com/carebridge-dev/carebridge/internal/bridge"
	"github.com/carebridge-dev/carebridge/internal/telephony"
)

// StreamHandler runs one media-stream connection to completion. The session
// dispatcher implements it.
type StreamHandler interface {
	HandleStream(ctx context.Context, conn bridge.Conn)
}

// registerTwilioRoutes wires the telephony surface: the incoming-call webhook
// that answers with stream-connect TwiML, and the websocket endpoint Twilio
// dials back into with the call's audio.
//
// publicHost is the externally reachable host Twilio must use for the
// websocket URL. When empty, the webhook's own Host header is used, which
// works behind a tunnel that preserves it.
func registerTwilioRoutes(mux *http.ServeMux, streams StreamHandler, publicHost string) {
	voice := func(w http.ResponseWriter, r *http.Request) {
		host := publicHost
		if host == "" {
			host = r.Host
		}

		doc, err := telephony.InboundStreamTwiML(host)
		if err != nil {
			log.Printf("voice webhook error: %v", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(doc))
	}

	// Twilio sends the webhook as a form POST; GET is kept for manual checks.
	mux.HandleFunc("POST /voice", voice)
	mux.HandleFunc("GET /voice", voice)

	mux.HandleFunc("GET /media-stream", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("media stream upgrade error: %v", err)
			return
		}
		defer func() { _ = conn.Close() }()

		streams.HandleStream(r.Context(), conn)
	})
}
