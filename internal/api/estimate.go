package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/surgeo/internal/bisg"
	"github.com/sells-group/surgeo/internal/monitoring"
)

// handleEstimate runs one batch through the model named by {type}.
func (s *Server) handleEstimate(w http.ResponseWriter, r *http.Request) {
	log := zap.L().With(
		zap.String("component", "api"),
		zap.String("request_id", RequestIDFrom(r.Context())),
	)

	kind, err := bisg.ParseKind(chi.URLParam(r, "type"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	var req EstimateRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if s.cfg.MaxBatch > 0 && req.Size() > s.cfg.MaxBatch {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("batch of %d rows exceeds limit %d", req.Size(), s.cfg.MaxBatch))
		return
	}

	spec := bisg.Spec{Kind: kind}
	if spec.UsesGeo() {
		level, err := req.Level()
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		spec.Level = level
	}

	batch, err := req.Batch(spec)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	m, err := s.models.Model(r.Context(), spec)
	if err != nil {
		log.Error("api: load model", zap.String("model", spec.String()), zap.Error(err))
		writeError(w, r, http.StatusServiceUnavailable, "model unavailable: "+spec.String())
		return
	}

	start := time.Now()
	rs, err := bisg.Run(m, batch)
	if err != nil {
		if errors.Is(err, bisg.ErrLengthMismatch) {
			writeError(w, r, http.StatusUnprocessableEntity, err.Error())
			return
		}
		log.Error("api: estimate", zap.String("model", spec.String()), zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "estimation failed")
		return
	}
	elapsed := time.Since(start)
	monitoring.ObserveBatch(spec.String(), "http", rs, elapsed)

	log.Info("api: batch estimated",
		zap.String("model", spec.String()),
		zap.Int("rows", rs.Len()),
		zap.Int("missing", rs.MissingCount()),
		zap.Duration("elapsed", elapsed),
	)
	writeJSON(w, http.StatusOK, newEstimateResponse(RequestIDFrom(r.Context()), spec, rs, s.precision))
}
