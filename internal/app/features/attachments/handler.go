// internal/app/features/attachments/handler.go
package attachments

import (
	"github.com/dalemusser/waffle/pantry/storage"
	"go.uber.org/zap"
)

// Handler holds the attachments feature dependencies. Uploads go through
// the storage backend; the returned metadata is what clients attach to
// messages at send time.
type Handler struct {
	Storage  storage.Store
	LocalURL string // public URL prefix for locally stored files
	Log      *zap.Logger
}

// NewHandler constructs an attachments Handler.
func NewHandler(store storage.Store, localURL string, logger *zap.Logger) *Handler {
	return &Handler{
		Storage:  store,
		LocalURL: localURL,
		Log:      logger,
	}
}
