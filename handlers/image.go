package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// maxPosterBytes caps how much of an upstream poster is read.
const maxPosterBytes = 5 << 20

// ImageHandler proxies poster artwork for display clients, caching images
// on disk so repeated renders don't hit the upstream CDN.
type ImageHandler struct {
	cacheDir string
	httpc    *http.Client
}

func NewImageHandler(cacheDir string) *ImageHandler {
	imgCacheDir := filepath.Join(cacheDir, "images")
	if err := os.MkdirAll(imgCacheDir, 0o755); err != nil {
		log.Printf("[images] warning: could not create cache dir %s: %v", imgCacheDir, err)
	}

	return &ImageHandler{
		cacheDir: imgCacheDir,
		httpc:    &http.Client{Timeout: 30 * time.Second},
	}
}

// Proxy handles poster proxy requests. Query params:
//   - url: source image URL (required, https only)
func (h *ImageHandler) Proxy(w http.ResponseWriter, r *http.Request) {
	sourceURL := r.URL.Query().Get("url")
	if sourceURL == "" {
		http.Error(w, "url parameter required", http.StatusBadRequest)
		return
	}

	parsed, err := url.Parse(sourceURL)
	if err != nil || parsed.Scheme != "https" || parsed.Host == "" {
		http.Error(w, "URL not allowed", http.StatusForbidden)
		return
	}

	cachePath := filepath.Join(h.cacheDir, h.cacheKey(sourceURL))
	if data, err := os.ReadFile(cachePath); err == nil {
		h.serve(w, data)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, sourceURL, nil)
	if err != nil {
		http.Error(w, "invalid url", http.StatusBadRequest)
		return
	}

	resp, err := h.httpc.Do(req)
	if err != nil {
		http.Error(w, "failed to fetch image", http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		http.Error(w, "upstream error", http.StatusBadGateway)
		return
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPosterBytes))
	if err != nil {
		http.Error(w, "failed to read image", http.StatusBadGateway)
		return
	}

	// Only serve actual images, whatever the upstream claimed.
	if !strings.HasPrefix(mimetype.Detect(data).String(), "image/") {
		http.Error(w, "not an image", http.StatusUnsupportedMediaType)
		return
	}

	if err := os.WriteFile(cachePath, data, 0o644); err != nil {
		log.Printf("[images] failed to cache %s: %v", sourceURL, err)
	}

	h.serve(w, data)
}

func (h *ImageHandler) serve(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", mimetype.Detect(data).String())
	w.Header().Set("Cache-Control", "public, max-age=2592000")
	w.Write(data)
}

func (h *ImageHandler) cacheKey(sourceURL string) string {
	sum := sha256.Sum256([]byte(sourceURL))
	return hex.EncodeToString(sum[:])
}
