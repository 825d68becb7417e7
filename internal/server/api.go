package server

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/carebridge-dev/carebridge/internal/storage"
	"github.com/carebridge-dev/carebridge/internal/transcript"
)

var callSIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

type CallStore interface {
	GetCallsByDate(date string) ([]storage.Call, error)
	GetCall(callSID string) (storage.Call, error)
	GetTurns(callSID string) ([]transcript.Turn, error)
	GetDates() ([]string, error)
}

func registerAPIRoutes(mux *http.ServeMux, store CallStore) {
	mux.HandleFunc("GET /api/calls", func(w http.ResponseWriter, r *http.Request) {
		date := r.URL.Query().Get("date")
		if date == "" {
			date = time.Now().UTC().Format("2006-01-02")
		}

		calls, err := store.GetCallsByDate(date)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list calls: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, calls)
	})

	mux.HandleFunc("GET /api/calls/{sid}", func(w http.ResponseWriter, r *http.Request) {
		callSID := r.PathValue("sid")
		if !validCallSID(callSID) {
			writeJSONError(w, http.StatusForbidden, "invalid call sid")
			return
		}

		call, err := store.GetCall(callSID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, sql.ErrNoRows) {
				status = http.StatusNotFound
			}
			writeJSONError(w, status, fmt.Sprintf("get call: %v", err))
			return
		}

		turns, err := store.GetTurns(callSID)
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get call turns: %v", err))
			return
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"call":  call,
			"turns": turns,
		})
	})

	mux.HandleFunc("GET /api/dates", func(w http.ResponseWriter, r *http.Request) {
		dates, err := store.GetDates()
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("get dates: %v", err))
			return
		}
		writeJSON(w, http.StatusOK, dates)
	})
}

func validCallSID(sid string) bool {
	return callSIDPattern.MatchString(sid)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
