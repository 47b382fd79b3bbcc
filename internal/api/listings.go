package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/jmylchreest/rentwatch/internal/store"
	"github.com/jmylchreest/rentwatch/pkg/listing"
)

func (s *Server) handleListListings(w http.ResponseWriter, r *http.Request) {
	out, err := s.store.List(r.Context(), store.Filter{URL: r.URL.Query().Get("url")})
	if err != nil {
		s.storeError(w, err)
		return
	}
	if out == nil {
		out = []listing.Listing{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetListing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	l, err := s.store.Get(r.Context(), id)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

func (s *Server) handleCreateListing(w http.ResponseWriter, r *http.Request) {
	l, ok := s.decodeListing(w, r)
	if !ok {
		return
	}
	l.ID = 0
	created, err := s.store.Create(r.Context(), l)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handleUpdateListing(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	l, ok := s.decodeListing(w, r)
	if !ok {
		return
	}
	updated, err := s.store.Update(r.Context(), id, l)
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) decodeListing(w http.ResponseWriter, r *http.Request) (listing.Listing, bool) {
	var l listing.Listing
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&l); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid listing body: %w", err))
		return l, false
	}
	if err := s.validate.Struct(l); err != nil {
		writeError(w, http.StatusBadRequest, validationError(err))
		return l, false
	}
	return l, true
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrDuplicateURL):
		writeError(w, http.StatusConflict, err)
	default:
		s.log.Error("store request failed", "error", err)
		writeError(w, http.StatusInternalServerError, errors.New("storage unavailable"))
	}
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid id: %w", err))
		return 0, false
	}
	return id, true
}

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	return fmt.Errorf("field %s failed %s validation", fe.Field(), fe.Tag())
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}
