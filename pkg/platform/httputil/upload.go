package httputil

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"

	dErrors "skillbadge/pkg/domain-errors"
)

// Upload is a single file read from a multipart form.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ReadUpload parses a multipart form and returns the named file part plus the
// remaining text fields. The whole body is capped at maxBytes.
func ReadUpload(w http.ResponseWriter, r *http.Request, field string, maxBytes int64) (*Upload, map[string]string, error) {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil || mediaType != "multipart/form-data" {
		return nil, nil, dErrors.New(dErrors.CodeBadRequest, "request must be multipart/form-data")
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, dErrors.New(dErrors.CodePayloadTooLarge, "upload exceeds size limit")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "invalid multipart form")
	}

	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, nil, dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "failed to read upload")
	}

	fields := make(map[string]string, len(r.MultipartForm.Value))
	for k, v := range r.MultipartForm.Value {
		if len(v) > 0 {
			fields[k] = v[0]
		}
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}

	return &Upload{
		Filename:    filepath.Base(header.Filename),
		ContentType: contentType,
		Data:        data,
	}, fields, nil
}
