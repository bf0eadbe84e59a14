package notify

import (
	"fmt"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"
)

// previewLimit truncates notification bodies so a long message never fills
// the desktop popup.
const previewLimit = 80

// Desktop raises OS notifications for new patient messages. Failures are
// logged and swallowed: a missing notification daemon must never affect the
// console.
type Desktop struct {
	enabled bool
	logger  *zap.Logger
}

// NewDesktop creates a desktop notifier.
func NewDesktop(enabled bool, logger *zap.Logger) *Desktop {
	return &Desktop{enabled: enabled, logger: logger}
}

// MessageArrived shows a popup for a message in a background chat.
func (d *Desktop) MessageArrived(chatName, preview string) {
	if !d.enabled {
		return
	}
	title := fmt.Sprintf("New message from %s", chatName)
	if err := beeep.Notify(title, truncatePreview(preview), ""); err != nil {
		d.logger.Debug("desktop notification failed", zap.Error(err))
	}
}

// truncatePreview caps the popup body at previewLimit characters, cutting
// on a rune boundary so multi-byte text stays valid.
func truncatePreview(preview string) string {
	runes := []rune(preview)
	if len(runes) <= previewLimit {
		return preview
	}
	return string(runes[:previewLimit]) + "…"
}
