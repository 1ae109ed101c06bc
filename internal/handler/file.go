package handler

import (
	"mime"
	"net/http"
	"path"
	"strconv"

	"crowdstack-backend/internal/service"
	"github.com/go-chi/chi/v5"
)

// FileHandler serves stored statements and payment proofs. There is no
// directory listing; every object is checked against its event.
type FileHandler struct {
	Files service.FileService
}

func (h FileHandler) RegisterRoutes(r chi.Router) {
	r.Get("/files/{bucket}/*", h.serve)
}

func (h FileHandler) serve(w http.ResponseWriter, r *http.Request) {
	file, err := h.Files.Open(r.Context(), callerFrom(r), chi.URLParam(r, "bucket"), chi.URLParam(r, "*"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	contentType := mime.TypeByExtension(path.Ext(file.Name))
	if contentType == "" {
		contentType = http.DetectContentType(file.Data)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(file.Data)))
	w.Header().Set("Content-Disposition", "attachment; filename=\""+file.Name+"\"")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(file.Data)
}
