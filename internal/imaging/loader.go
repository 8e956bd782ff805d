package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// ImageCache keeps decoded board photographs keyed by file path so that
// repeated tool calls on the same photograph skip disk I/O and decoding.
//
// Only source images are cached. Calibration results are never stored: every
// rectification is recomputed from the cached pixels.
//
// ImageCache is safe for concurrent use. When maxEntries is positive the
// cache holds at most that many images and evicts the oldest entry first.
type ImageCache struct {
	mu         sync.RWMutex
	images     map[string]image.Image
	order      []string
	maxEntries int
}

// NewImageCache creates an unbounded image cache.
func NewImageCache() *ImageCache {
	return NewBoundedImageCache(0)
}

// NewBoundedImageCache creates a cache holding at most maxEntries images.
// A non-positive maxEntries means unbounded.
func NewBoundedImageCache(maxEntries int) *ImageCache {
	return &ImageCache{
		images:     make(map[string]image.Image),
		maxEntries: maxEntries,
	}
}

// Load returns the decoded image at path, reading it from disk on the first
// request. Supported formats are PNG, JPEG, GIF, BMP, TIFF and WebP.
//
// Different spellings of the same path (relative vs absolute) are separate
// cache entries. Zero-area images are rejected with ErrEmptyImage.
func (c *ImageCache) Load(path string) (image.Image, error) {
	c.mu.RLock()
	if img, ok := c.images[path]; ok {
		c.mu.RUnlock()
		return img, nil
	}
	c.mu.RUnlock()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if err := CheckImage(img); err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	c.mu.Lock()
	if _, ok := c.images[path]; !ok {
		c.order = append(c.order, path)
	}
	c.images[path] = img
	for c.maxEntries > 0 && len(c.order) > c.maxEntries {
		delete(c.images, c.order[0])
		c.order = c.order[1:]
	}
	c.mu.Unlock()

	return img, nil
}

// Len reports the number of cached images.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// ImageInfo describes a loaded image file.
type ImageInfo struct {
	Width         int    `json:"width"`
	Height        int    `json:"height"`
	Format        string `json:"format"` // from the file extension
	HasAlpha      bool   `json:"has_alpha"`
	FileSizeBytes int64  `json:"file_size_bytes"`
}

// LoadImageInfo loads an image through the cache and reports its metadata.
// The format is derived from the file extension, case-insensitively.
func LoadImageInfo(cache *ImageCache, path string) (*ImageInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	hasAlpha := false
	switch img.(type) {
	case *image.RGBA, *image.NRGBA, *image.RGBA64, *image.NRGBA64:
		hasAlpha = true
	}

	bounds := img.Bounds()
	return &ImageInfo{
		Width:         bounds.Dx(),
		Height:        bounds.Dy(),
		Format:        formatFromExt(path),
		HasAlpha:      hasAlpha,
		FileSizeBytes: stat.Size(),
	}, nil
}

func formatFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "png"
	case ".jpg", ".jpeg":
		return "jpeg"
	case ".gif":
		return "gif"
	case ".bmp":
		return "bmp"
	case ".tif", ".tiff":
		return "tiff"
	case ".webp":
		return "webp"
	}
	return "unknown"
}

// DecodeBytes decodes an in-memory image in any registered format.
func DecodeBytes(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	if err := CheckImage(img); err != nil {
		return nil, "", err
	}
	return img, format, nil
}

// EncodePNG encodes an image as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodePNGBase64 encodes an image as base64 PNG, the form returned by the
// MCP tools.
func EncodePNGBase64(img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}
