package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jmylchreest/rentwatch/internal/orchestrator"
	"github.com/jmylchreest/rentwatch/pkg/listing"
)

// ScrapeRequest is the optional body of POST /scrape.
type ScrapeRequest struct {
	URL   string `json:"url" validate:"omitempty,url"`
	Model string `json:"model"`
}

// CounterResponse reports one strategy's processed counter.
type CounterResponse struct {
	Strategy  listing.Strategy `json:"strategy"`
	Processed int64            `json:"processed"`
}

// StopResponse reports the stop flag.
type StopResponse struct {
	StopRequested bool `json:"stop_requested"`
}

func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req ScrapeRequest
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid scrape body: %w", err))
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, validationError(err))
		return
	}

	res := s.runner.Run(r.Context(), req.URL, req.Model)
	writeJSON(w, runStatusCode(res), res)
}

func runStatusCode(res orchestrator.RunResult) int {
	switch {
	case res.Status == orchestrator.StatusSuccess:
		return http.StatusOK
	case res.Status == orchestrator.StatusCancelled,
		errors.Is(res.Err, orchestrator.ErrRunInProgress):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func (s *Server) handleHistory(w http.ResponseWriter, _ *http.Request) {
	hist := s.runner.History()
	if hist == nil {
		hist = []orchestrator.ScrapeAttemptRecord{}
	}
	writeJSON(w, http.StatusOK, hist)
}

func (s *Server) handleGetCounter(w http.ResponseWriter, r *http.Request) {
	strategy, ok := pathStrategy(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, CounterResponse{Strategy: strategy, Processed: s.runner.ProcessedCount(strategy)})
}

func (s *Server) handleResetCounter(w http.ResponseWriter, r *http.Request) {
	strategy, ok := pathStrategy(w, r)
	if !ok {
		return
	}
	s.runner.ResetProcessedCount(strategy)
	writeJSON(w, http.StatusOK, CounterResponse{Strategy: strategy, Processed: s.runner.ProcessedCount(strategy)})
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	s.runner.RequestStop()
	writeJSON(w, http.StatusAccepted, StopResponse{StopRequested: s.runner.StopRequested()})
}

func (s *Server) handleResume(w http.ResponseWriter, _ *http.Request) {
	s.runner.ClearStop()
	writeJSON(w, http.StatusOK, StopResponse{StopRequested: s.runner.StopRequested()})
}

func pathStrategy(w http.ResponseWriter, r *http.Request) (listing.Strategy, bool) {
	strategy, err := listing.ParseStrategy(mux.Vars(r)["strategy"])
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return "", false
	}
	return strategy, true
}
