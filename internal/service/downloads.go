package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultDownloadTTL is how long an exported file stays fetchable.
const DefaultDownloadTTL = time.Minute

var ErrDownloadNotFound = errors.New("download not found or expired")

// Download is an exported file waiting to be fetched.
type Download struct {
	Token       string    `json:"token" doc:"Download token"`
	Filename    string    `json:"filename" doc:"Suggested file name"`
	ContentType string    `json:"contentType" doc:"MIME type"`
	Size        string    `json:"size" doc:"Human-readable size" example:"1.2 KB"`
	Expires     time.Time `json:"expires" doc:"When the download is revoked"`
	Data        []byte    `json:"-"`
}

// URL is the path the download is served from.
func (d Download) URL() string {
	return "/downloads/" + d.Token
}

// Downloads keeps exported files under random tokens and revokes each one
// after a fixed delay.
type Downloads struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex
	items map[string]*entry
}

type entry struct {
	d     Download
	timer *time.Timer
}

// NewDownloads creates a registry. A ttl <= 0 uses DefaultDownloadTTL.
func NewDownloads(ttl time.Duration) *Downloads {
	if ttl <= 0 {
		ttl = DefaultDownloadTTL
	}
	return &Downloads{ttl: ttl, now: time.Now, items: make(map[string]*entry)}
}

// Add registers a file and schedules its revocation.
func (r *Downloads) Add(filename, contentType string, data []byte) Download {
	d := Download{
		Token:       uuid.NewString(),
		Filename:    filename,
		ContentType: contentType,
		Size:        formatSize(int64(len(data))),
		Expires:     r.now().Add(r.ttl),
		Data:        data,
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[d.Token] = &entry{
		d:     d,
		timer: time.AfterFunc(r.ttl, func() { r.Revoke(d.Token) }),
	}
	return d
}

// Get returns a live download.
func (r *Downloads) Get(token string) (Download, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.items[token]
	if !ok {
		return Download{}, fmt.Errorf("%w: %s", ErrDownloadNotFound, token)
	}
	return e.d, nil
}

// Revoke drops a download early. Unknown tokens are ignored.
func (r *Downloads) Revoke(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.items[token]; ok {
		e.timer.Stop()
		delete(r.items, token)
	}
}

// Len returns the number of live downloads.
func (r *Downloads) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Close revokes everything.
func (r *Downloads) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for token, e := range r.items {
		e.timer.Stop()
		delete(r.items, token)
	}
}

// formatSize returns a human-readable byte count.
func formatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
