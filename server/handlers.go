package server

import (
	"net/http"
	"strconv"

	"github.com/teranos/softwaremap/errors"
	"github.com/teranos/softwaremap/export"
	"github.com/teranos/softwaremap/kb"
	"github.com/teranos/softwaremap/store"
	"github.com/teranos/softwaremap/version"
)

const maxRunsLimit = 200

// HandleHealth reports liveness and build info
func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	info := version.Get()
	health := map[string]interface{}{
		"status":     "ok",
		"version":    info.Version,
		"commit":     info.CommitHash,
		"build_time": info.BuildTime,
	}
	if err := s.store.DB().PingContext(r.Context()); err != nil {
		health["status"] = "degraded"
		health["database"] = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, health)
		return
	}
	writeJSON(w, http.StatusOK, health)
}

// HandleEntity serves GET /api/entity?id=Q42
func (s *Server) HandleEntity(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	s.serveEntity(w, r, r.URL.Query().Get("id"))
}

// HandleNode serves GET /node?uri=http://www.wikidata.org/entity/Q42
func (s *Server) HandleNode(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	s.serveEntity(w, r, r.URL.Query().Get("uri"))
}

func (s *Server) serveEntity(w http.ResponseWriter, r *http.Request, raw string) {
	id, ok := kb.NormalizeEntityID(raw)
	if !ok {
		writeError(w, http.StatusBadRequest, "expected an entity ID such as Q7397")
		return
	}
	rec, err := s.store.GetRecord(r.Context(), id)
	if err != nil {
		writeStoreError(w, s.requestLogger(r), err, "failed to load entity")
		return
	}
	writeJSON(w, http.StatusOK, export.FromStore([]store.Record{*rec})[0])
}

// HandleEntities serves GET /api/entities[?all=true][&disputed=true]
func (s *Server) HandleEntities(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	opts := store.ListOptions{WithTaxonomy: true}
	var err error
	if opts.IncludeDisabled, err = boolParam(q.Get("all")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if opts.DisputedOnly, err = boolParam(q.Get("disputed")); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.store.List(r.Context(), opts)
	if err != nil {
		writeStoreError(w, s.requestLogger(r), err, "failed to list entities")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(records),
		"entities": export.FromStore(records),
	})
}

// HandleStats serves GET /api/stats
func (s *Server) HandleStats(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	stats, err := s.store.Stats(r.Context())
	if err != nil {
		writeStoreError(w, s.requestLogger(r), err, "failed to collect stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// HandleRuns serves GET /api/runs[?task=dates][&limit=20]
func (s *Server) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run history is not available")
		return
	}

	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxRunsLimit)
	}

	runs, err := s.runs.ListRuns(r.Context(), r.URL.Query().Get("task"), limit)
	if err != nil {
		writeStoreError(w, s.requestLogger(r), err, "failed to list runs")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"runs": runs})
}

func boolParam(v string) (bool, error) {
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, errors.NewInvalidRequestError("not a boolean: %q", v)
	}
	return b, nil
}
