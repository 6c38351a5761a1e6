package server

import (
	"net/http"
	"strconv"

	"liveness-intake/internal/submission"
)

// fileEntry is one element of the GET /files response.
type fileEntry struct {
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Modified string `json:"modified"`
}

type filesResp struct {
	Files []fileEntry `json:"files"`
	Count int         `json:"count"`
}

// filesHandler lists the regular files in the upload directory.
func (s *Server) filesHandler(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.List()
	if err != nil {
		s.log.Error("list files failed", map[string]interface{}{"rid": RequestIDFromContext(r.Context())}, err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := filesResp{Files: make([]fileEntry, 0, len(list))}
	for _, f := range list {
		resp.Files = append(resp.Files, fileEntry{
			Name:     f.Name,
			Size:     f.Size,
			Modified: f.Modified.Format(submission.ISOLayout),
		})
	}
	resp.Count = len(resp.Files)

	writeJSON(w, http.StatusOK, resp)
}

// submissionsHandler serves GET /submissions?limit=N from the Postgres index.
func (s *Server) submissionsHandler(w http.ResponseWriter, r *http.Request) {
	if s.index == nil {
		writeError(w, http.StatusServiceUnavailable, "submission index not configured")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 500 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 500")
			return
		}
		limit = n
	}

	recs, err := s.index.Recent(r.Context(), limit)
	if err != nil {
		s.log.Error("list submissions failed", map[string]interface{}{"rid": RequestIDFromContext(r.Context())}, err)
		writeError(w, http.StatusInternalServerError, "db error")
		return
	}
	if recs == nil {
		recs = []SubmissionRecord{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"submissions": recs,
		"count":       len(recs),
	})
}
