package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/catalogd/internal/domain/model"
	"github.com/okian/catalogd/internal/domain/types"
)

const maxRecentJobs = 100

// IngestHandler handles parse requests and ingest jobs.
type IngestHandler struct {
	deps IngestDependencies
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(deps IngestDependencies) *IngestHandler {
	return &IngestHandler{deps: deps}
}

func readIngestRequest(w http.ResponseWriter, r *http.Request) (types.IngestRequest, bool) {
	var req types.IngestRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return req, false
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errMissing("query"))
		return req, false
	}
	if req.Limit < 0 {
		writeError(w, http.StatusBadRequest, "bad_request", errInvalid("limit"))
		return req, false
	}
	return req, true
}

// HandleParse handles POST /api/products/parse. The ingest outcome is always
// reported in the body with status 200.
func (h *IngestHandler) HandleParse(w http.ResponseWriter, r *http.Request) {
	req, ok := readIngestRequest(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Ingest(r.Context(), req.Query, req.Limit))
}

type jobResponse struct {
	model.JobStatus
	Duplicate bool `json:"duplicate"`
}

// HandleSubmit handles POST /api/ingest/jobs.
func (h *IngestHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	req, ok := readIngestRequest(w, r)
	if !ok {
		return
	}
	st, duplicate, err := h.deps.Submit(r.Context(), req.Query, req.Limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status := http.StatusAccepted
	if duplicate {
		status = http.StatusOK
	}
	writeJSON(w, status, jobResponse{JobStatus: st, Duplicate: duplicate})
}

// HandleGetJob handles GET /api/ingest/jobs/{id}.
func (h *IngestHandler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.Job(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleRecent handles GET /api/ingest/jobs?limit=N.
func (h *IngestHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	n := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > maxRecentJobs {
			writeError(w, http.StatusBadRequest, "bad_request", errInvalid("limit"))
			return
		}
		n = v
	}
	jobs, err := h.deps.RecentJobs(r.Context(), n)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if jobs == nil {
		jobs = []model.JobStatus{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}
