package capture

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	appLog "evdialog/internal/log"
	"evdialog/internal/model"
)

// ErrNoURL is returned for attachments that cannot be opened.
var ErrNoURL = errors.New("capture: attachment has no URL")

// Previewer keeps one rendered PNG per attachment in a cache directory.
type Previewer struct {
	dir     string
	width   int
	height  int
	timeout time.Duration

	// capture is CaptureAttachmentPNG outside tests.
	capture func(context.Context, CaptureOptions) error

	// mu serializes captures; each one starts a browser.
	mu sync.Mutex
}

func NewPreviewer(dir string, width, height int, timeout time.Duration) *Previewer {
	return &Previewer{
		dir:     dir,
		width:   width,
		height:  height,
		timeout: timeout,
		capture: CaptureAttachmentPNG,
	}
}

// Path returns the PNG path for file, rendering it first when it is not
// cached yet.
func (p *Previewer) Path(ctx context.Context, file model.File) (string, error) {
	if file.URL == "" {
		return "", ErrNoURL
	}
	out := filepath.Join(p.dir, cacheKey(file)+".png")

	if _, err := os.Stat(out); err == nil {
		return out, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Another request may have rendered it while we waited.
	if _, err := os.Stat(out); err == nil {
		return out, nil
	}
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return "", err
	}

	start := time.Now()
	err := p.capture(ctx, CaptureOptions{
		URL:        file.URL,
		OutputPath: out,
		Width:      p.width,
		Height:     p.height,
		Timeout:    p.timeout,
	})
	if err != nil {
		appLog.Error("attachment preview failed", err, "file_id", file.ID)
		return "", err
	}
	appLog.Info("attachment preview rendered", "file_id", file.ID, "elapsed", time.Since(start).String())
	return out, nil
}

// cacheKey derives a file name from the attachment id and URL, so ids are
// never used as paths and a replaced file gets a new preview.
func cacheKey(f model.File) string {
	sum := sha256.Sum256([]byte(f.ID + "\x00" + f.URL))
	return hex.EncodeToString(sum[:12])
}
