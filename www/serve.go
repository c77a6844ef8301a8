// Package www serves the credential endpoint that hands out room tokens.
package www

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"node.town/captioner/room"
)

// Minter signs a room token for identity.
type Minter func(roomName, identity string) (string, error)

func NewRouter(mint Minter, logger *log.Logger) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Post("/getToken", handleGetToken(mint, logger))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	return r
}

func handleGetToken(mint Minter, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req room.TokenRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, room.TokenResponse{Error: "invalid JSON body"})
			return
		}
		if req.RoomName == "" || req.ParticipantName == "" {
			writeJSON(w, http.StatusBadRequest, room.TokenResponse{Error: room.ErrMissingFields.Error()})
			return
		}

		token, err := mint(req.RoomName, req.ParticipantName)
		if err != nil {
			logger.Error("mint token", "error", err, "room", req.RoomName)
			writeJSON(w, http.StatusInternalServerError, room.TokenResponse{Error: "failed to generate token"})
			return
		}

		logger.Info("token", "room", req.RoomName, "who", req.ParticipantName)
		writeJSON(w, http.StatusOK, room.TokenResponse{Token: token})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Serve runs handler on port until ctx is done.
func Serve(ctx context.Context, port int, handler http.Handler, logger *log.Logger) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("http", "url", fmt.Sprintf("http://localhost:%d", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
