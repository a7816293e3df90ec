// Package server exposes the batch ingest endpoint of the collection agent.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"github.com/vislab/vislog/internal/collector"
	"github.com/vislab/vislog/internal/models"
)

type Server struct {
	store   *collector.Store
	address string
	server  *http.Server
}

func NewServer(store *collector.Store, address string) *Server {
	return &Server{
		store:   store,
		address: address,
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Write([]byte("ok"))
}

func (s *Server) handleLog(w http.ResponseWriter, request *http.Request) {
	var batch models.Batch
	if err := json.NewDecoder(request.Body).Decode(&batch); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return
	}
	if batch.Empty() {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	batchID, err := s.store.InsertBatch(batch)
	if err != nil {
		if errors.Is(err, collector.ErrInvalidBatch) {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		log.Printf("Database error: %v", err)
		http.Error(w, "Failed to store batch", http.StatusInternalServerError)
		return
	}
	log.Printf("stored batch %s: %d interactions, %d pointer samples", batchID, len(batch.Log), len(batch.MouseLog))
	w.WriteHeader(http.StatusNoContent) // success, no body
}

func (s *Server) Routes() http.Handler {
	router := chi.NewRouter()
	router.Get("/healthz", s.handleHealthz)
	router.Group(func(r chi.Router) {
		// One logger flushes every few seconds; anything past this is a
		// misbehaving client.
		r.Use(httprate.LimitByIP(600, time.Minute))
		r.Post("/log", s.handleLog)
	})
	return router
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.address,
		Handler:      s.Routes(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	// Graceful shutdown
	shutdownChannel := make(chan os.Signal, 1)
	signal.Notify(shutdownChannel, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("vislog agent listening on %s", s.address)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed to start:", err)
		}
	}()

	<-shutdownChannel
	log.Println("Shutting down server...")

	shutdownContext, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownContext); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
	return nil
}
