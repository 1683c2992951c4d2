// internal/app/features/attachments/upload.go
package attachments

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/dalemusser/studychat/internal/app/system/httpjson"
	"github.com/dalemusser/studychat/internal/app/system/timeouts"
	"github.com/dalemusser/studychat/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/storage"
	"github.com/google/uuid"
)

// maxUploadSize bounds a single attachment upload.
const maxUploadSize = 32 << 20 // 32 MB

// HandleUpload stores one file and returns the attachment metadata the
// client includes when sending the message. Uploading alone changes no
// chat state; an attachment only becomes visible once a message carries it.
// POST /attachments
func (h *Handler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(header.Filename))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Long())
	defer cancel()

	path, err := h.putFile(ctx, header.Filename, contentType, file)
	if err != nil {
		httpjson.ServerError(w, h.Log, "attachment upload failed", err)
		return
	}

	httpjson.Respond(w, http.StatusCreated, models.Attachment{
		ID:       uuid.New().String(),
		FileName: header.Filename,
		Kind:     kindForContentType(contentType),
		Size:     header.Size,
		URL:      h.LocalURL + "/" + path,
	})
}

// putFile stores the file under attachments/YYYY/MM/uuid-filename and
// returns the storage path.
func (h *Handler) putFile(ctx context.Context, filename, contentType string, file io.Reader) (string, error) {
	now := time.Now().UTC()
	dateDir := fmt.Sprintf("attachments/%04d/%02d", now.Year(), now.Month())
	uniqueName := fmt.Sprintf("%s-%s", uuid.New().String()[:8], sanitizeFilename(filename))
	path := filepath.ToSlash(filepath.Join(dateDir, uniqueName))

	opts := &storage.PutOptions{ContentType: contentType}
	if err := h.Storage.Put(ctx, path, file, opts); err != nil {
		return "", fmt.Errorf("store attachment: %w", err)
	}
	return path, nil
}

// kindForContentType buckets a MIME type into the two attachment kinds.
func kindForContentType(contentType string) string {
	if strings.HasPrefix(contentType, "image/") {
		return models.AttachmentImage
	}
	return models.AttachmentDocument
}

// sanitizeFilename keeps the base name and replaces characters that are
// unsafe in storage keys.
func sanitizeFilename(filename string) string {
	filename = filepath.Base(filename)

	result := make([]byte, 0, len(filename))
	for i := 0; i < len(filename); i++ {
		c := filename[i]
		if isAllowedFilenameChar(c) {
			result = append(result, c)
		} else {
			result = append(result, '_')
		}
	}

	if len(result) == 0 {
		return "file"
	}
	if len(result) > 100 {
		ext := filepath.Ext(string(result))
		if len(ext) > 0 && len(ext) < 10 {
			result = append(result[:100-len(ext)], ext...)
		} else {
			result = result[:100]
		}
	}
	return string(result)
}

func isAllowedFilenameChar(c byte) bool {
	return (c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9') ||
		c == '-' || c == '_' || c == '.'
}
