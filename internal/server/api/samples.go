package api

import (
	"net/http"

	"github.com/ayusman/gesturecast/internal/store"
)

// SamplesHandler serves /api/samples.
type SamplesHandler struct {
	store *store.Store
}

// NewSamplesHandler creates a new SamplesHandler with the given store.
func NewSamplesHandler(s *store.Store) *SamplesHandler {
	return &SamplesHandler{store: s}
}

type countsResponse struct {
	Labels []store.LabelCount `json:"labels"`
	Total  int                `json:"total"`
}

type listSamplesResponse struct {
	Samples []store.Sample `json:"samples"`
}

type deleteSamplesResponse struct {
	Deleted int64 `json:"deleted"`
}

// ServeHTTP implements the http.Handler interface.
//
//	GET    /api/samples          per-label counts
//	GET    /api/samples?label=x  samples for one label
//	DELETE /api/samples?label=x  remove a label
func (h *SamplesHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	label := r.URL.Query().Get("label")

	switch r.Method {
	case http.MethodGet:
		if label == "" {
			h.counts(w)
			return
		}
		h.list(w, label)
	case http.MethodDelete:
		if label == "" {
			writeError(w, http.StatusBadRequest, "label is required")
			return
		}
		h.delete(w, label)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *SamplesHandler) counts(w http.ResponseWriter) {
	counts, err := h.store.Samples().CountByLabel()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to count samples")
		return
	}

	resp := countsResponse{Labels: make([]store.LabelCount, 0, len(counts))}
	for _, c := range counts {
		resp.Labels = append(resp.Labels, c)
		resp.Total += c.Count
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *SamplesHandler) list(w http.ResponseWriter, label string) {
	samples, err := h.store.Samples().ListByLabel(label)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list samples")
		return
	}
	if samples == nil {
		samples = []store.Sample{}
	}
	writeJSON(w, http.StatusOK, listSamplesResponse{Samples: samples})
}

func (h *SamplesHandler) delete(w http.ResponseWriter, label string) {
	n, err := h.store.Samples().DeleteByLabel(label)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete samples")
		return
	}
	writeJSON(w, http.StatusOK, deleteSamplesResponse{Deleted: n})
}
