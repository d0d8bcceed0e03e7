package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/impression-cli/internal/geo"
	"github.com/sells-group/impression-cli/internal/impression"
	"github.com/sells-group/impression-cli/internal/normalize"
	"github.com/sells-group/impression-cli/internal/report"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 32 << 20

type batchRequest struct {
	Locations []struct {
		ID  string  `json:"id"`
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"locations"`
}

type normalizeRequest struct {
	Scores []float64 `json:"scores"`
}

type normalizeResponse struct {
	Scores  []normalize.Score `json:"scores"`
	Bounds  normalize.Bounds  `json:"bounds"`
	Summary normalize.Summary `json:"raw_summary"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"segments": s.engine.Segments(),
	})
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	loc, err := parseLocation(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	explain, _ := strconv.ParseBool(r.URL.Query().Get("explain"))

	res, err := s.engine.Evaluate(loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.opts.Metrics.Scored()
	writeJSON(w, http.StatusOK, report.NewScoreDocument(loc, res, explain))
}

func (s *Server) handleNearby(w http.ResponseWriter, r *http.Request) {
	loc, err := parseLocation(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, segs, err := s.engine.Nearby(loc)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"location": loc,
		"radius_m": s.engine.Radius(),
		"roads":    report.Roads(segs, p),
	})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req batchRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Locations) == 0 {
		writeError(w, http.StatusBadRequest, "locations is required")
		return
	}
	if len(req.Locations) > s.opts.MaxBatch {
		writeError(w, http.StatusRequestEntityTooLarge, "batch exceeds "+strconv.Itoa(s.opts.MaxBatch)+" locations")
		return
	}

	stores := make([]impression.Storefront, len(req.Locations))
	for i, l := range req.Locations {
		id := l.ID
		if id == "" {
			id = strconv.Itoa(i)
		}
		stores[i] = impression.Storefront{ID: id, Location: geo.Location{Lat: l.Lat, Lon: l.Lon}}
		if err := stores[i].Location.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, "location "+id+": "+err.Error())
			return
		}
	}

	b, err := s.engine.ScoreBatch(r.Context(), stores, s.opts.Normalize)
	if err != nil {
		zap.L().Warn("server: batch failed", zap.Int("locations", len(stores)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report.Document(b))
}

func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	var req normalizeRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Scores) > s.opts.MaxBatch {
		writeError(w, http.StatusRequestEntityTooLarge, "batch exceeds "+strconv.Itoa(s.opts.MaxBatch)+" scores")
		return
	}
	scores := normalize.Normalize(req.Scores, s.opts.Normalize)
	if scores == nil {
		scores = []normalize.Score{}
	}
	writeJSON(w, http.StatusOK, normalizeResponse{
		Scores:  scores,
		Bounds:  normalize.Fences(req.Scores, s.opts.Normalize.Fence),
		Summary: normalize.Describe(req.Scores),
	})
}

func (s *Server) handleCache(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.CacheStats())
}

func (s *Server) handleDataset(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	rep := s.report
	s.mu.RUnlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"segments": s.engine.Segments(),
		"report":   rep,
	})
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if s.opts.Load == nil {
		writeError(w, http.StatusNotImplemented, "reload is not configured")
		return
	}
	ds, err := s.opts.Load(r.Context())
	if err != nil {
		zap.L().Error("server: reload failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.engine.Reload(ds.Set, ds.Projector)

	s.mu.Lock()
	s.report = ds.Report
	s.mu.Unlock()

	zap.L().Info("server: dataset reloaded",
		zap.String("source", ds.Report.Source),
		zap.Int("segments", ds.Set.Len()),
	)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "reloaded",
		"segments": ds.Set.Len(),
		"report":   ds.Report,
	})
}

func parseLocation(r *http.Request) (geo.Location, error) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		return geo.Location{}, eris.New("lat must be a number")
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		return geo.Location{}, eris.New("lon must be a number")
	}
	return geo.Location{Lat: lat, Lon: lon}, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		return eris.New("invalid request body")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
