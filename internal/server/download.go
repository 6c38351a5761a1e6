package server

import (
	"errors"
	"io/fs"
	"net/http"
)

// downloadHandler serves GET /download/{filename} inline from the upload directory.
func (s *Server) downloadHandler(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("filename")

	f, info, err := s.store.Open(name)
	if err != nil {
		s.metrics.RecordDownloadError()
		if errors.Is(err, fs.ErrNotExist) {
			writeError(w, http.StatusNotFound, "file not found: "+name)
			return
		}
		s.log.Error("open for download failed", map[string]interface{}{
			"rid":  RequestIDFromContext(r.Context()),
			"name": name,
		}, err)
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	defer func() { _ = f.Close() }()

	// ServeContent picks Content-Type from the extension and handles Range.
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	s.metrics.RecordDownload(info.Size())
}
