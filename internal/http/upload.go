package httpserver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/Clark-Hu/recetas-api/internal/metrics"
)

const sniffLen = 512

// receiveImage reads the multipart file in field and hands it to the media
// store. The content type is sniffed from the bytes, not taken from the
// client. On failure a response has already been written.
func (s *Server) receiveImage(w http.ResponseWriter, r *http.Request, field, folder string) (string, bool) {
	limit := s.cfg.MediaMaxUploadBytes
	if limit <= 0 {
		limit = 5 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit+(1<<20))
	if err := r.ParseMultipartForm(limit); err != nil {
		var maxBytesError *http.MaxBytesError
		if errors.As(err, &maxBytesError) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "BAD_REQUEST", "Image too large")
			return "", false
		}
		s.respondError(w, http.StatusBadRequest, "BAD_REQUEST", "Expected a multipart/form-data body")
		return "", false
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		s.respondError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "Missing file field "+field)
		return "", false
	}
	defer file.Close()
	if header.Size > limit {
		s.respondError(w, http.StatusRequestEntityTooLarge, "BAD_REQUEST", "Image too large")
		return "", false
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		s.respondStoreError(w, r, err, "read upload")
		return "", false
	}
	head = head[:n]
	contentType := http.DetectContentType(head)

	ctx, cancel := context.WithTimeout(r.Context(), s.mediaTimeout())
	defer cancel()
	url, err := s.media.Upload(ctx, folder, header.Filename, contentType, io.MultiReader(bytes.NewReader(head), file))
	metrics.RecordUpload(folder, err)
	if err != nil {
		s.respondStoreError(w, r, err, "store image")
		return "", false
	}
	return url, true
}

func (s *Server) mediaTimeout() time.Duration {
	if s.cfg.MediaTimeoutSecs > 0 {
		return time.Duration(s.cfg.MediaTimeoutSecs) * time.Second
	}
	return 10 * time.Second
}
