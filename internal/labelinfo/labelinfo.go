// Package labelinfo serves the description text and picture that accompany
// each classification label.
package labelinfo

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nfnt/resize"
	"github.com/patrickmn/go-cache"

	"github.com/tphakala/imageclassifier-go/internal/errors"
	"github.com/tphakala/imageclassifier-go/internal/imageops"
	"github.com/tphakala/imageclassifier-go/internal/logger"
)

const (
	textDir  = "text"
	imageDir = "images"

	// DefaultCacheTTL is used when Config.CacheTTL is zero.
	DefaultCacheTTL = 30 * time.Minute

	jpegQuality = 85
)

// imageExtensions are probed in order.
var imageExtensions = []string{".png", ".jpg", ".jpeg"}

var (
	// ErrNotFound is returned when a label has neither text nor image.
	ErrNotFound = errors.NewStd("label info not found")
	// ErrInvalidLabel is returned for labels that cannot name a file.
	ErrInvalidLabel = errors.NewStd("invalid label")
)

// Config configures a Store.
type Config struct {
	// Root is the assets directory holding text/ and images/.
	Root string
	// CacheTTL bounds how long lookups are cached.
	CacheTTL time.Duration
	// ThumbnailSize, when non-zero, fits images into a square of this many pixels.
	ThumbnailSize uint
}

// Entry describes a label.
type Entry struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	HasImage    bool   `json:"has_image"`
}

// Image is an encoded label picture.
type Image struct {
	Data        []byte
	ContentType string
}

// Store reads label assets from disk and caches them.
type Store struct {
	root      string
	thumbnail uint
	cache     *cache.Cache
	log       logger.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

var (
	storeLogger     logger.Logger
	storeLoggerOnce sync.Once
)

// GetLogger returns the labelinfo package logger
func GetLogger() logger.Logger {
	storeLoggerOnce.Do(func() {
		storeLogger = logger.Global().Module("labelinfo")
	})
	return storeLogger
}

// NewStore returns a Store for cfg.
func NewStore(cfg Config) *Store {
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Store{
		root:      cfg.Root,
		thumbnail: cfg.ThumbnailSize,
		cache:     cache.New(ttl, ttl*2),
		log:       GetLogger(),
	}
}

// Lookup returns the description of label. A label with an image but no
// text file has an empty description.
func (s *Store) Lookup(label string) (*Entry, error) {
	if err := validateLabel(label); err != nil {
		return nil, err
	}

	cacheKey := "entry:" + label
	if cached, found := s.cache.Get(cacheKey); found {
		s.hits.Add(1)
		entry := cached.(Entry)
		return &entry, nil
	}
	s.misses.Add(1)

	entry := Entry{Label: label}
	text, err := os.ReadFile(filepath.Join(s.root, textDir, label+".txt"))
	switch {
	case err == nil:
		entry.Description = strings.TrimSpace(string(text))
	case !os.IsNotExist(err):
		return nil, errors.New(err).
			Component("labelinfo").
			Category(errors.CategoryFileIO).
			Context("label", label).
			Build()
	}

	_, imgErr := s.imagePath(label)
	entry.HasImage = imgErr == nil

	if err != nil && !entry.HasImage {
		return nil, notFound(label)
	}

	s.cache.Set(cacheKey, entry, cache.DefaultExpiration)
	return &entry, nil
}

// Image returns the picture for label, thumbnailed when configured.
func (s *Store) Image(label string) (*Image, error) {
	if err := validateLabel(label); err != nil {
		return nil, err
	}

	cacheKey := "image:" + label
	if cached, found := s.cache.Get(cacheKey); found {
		s.hits.Add(1)
		return cached.(*Image), nil
	}
	s.misses.Add(1)

	path, err := s.imagePath(label)
	if err != nil {
		return nil, err
	}

	img, err := s.load(path)
	if err != nil {
		return nil, errors.New(err).
			Component("labelinfo").
			Category(errors.CategoryImageCache).
			Context("label", label).
			FileContext(path, 0).
			Build()
	}

	s.cache.Set(cacheKey, img, cache.DefaultExpiration)
	return img, nil
}

// Stats returns the number of cached items and the hit and miss counters.
func (s *Store) Stats() (items int, hits, misses int64) {
	return s.cache.ItemCount(), s.hits.Load(), s.misses.Load()
}

// Clear drops every cached entry.
func (s *Store) Clear() {
	s.cache.Flush()
}

func (s *Store) imagePath(label string) (string, error) {
	for _, ext := range imageExtensions {
		path := filepath.Join(s.root, imageDir, label+ext)
		if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
			return path, nil
		}
	}
	return "", notFound(label)
}

// load reads path, returning the file as is unless a thumbnail is requested.
func (s *Store) load(path string) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	contentType := "image/png"
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".png" {
		contentType = "image/jpeg"
	}

	if s.thumbnail == 0 {
		return &Image{Data: data, ContentType: contentType}, nil
	}

	src, err := imageops.Decode(bytes.NewReader(data), imageops.DecodeOptions{})
	if err != nil {
		return nil, err
	}

	b := src.Bounds()
	if uint(b.Dx()) <= s.thumbnail && uint(b.Dy()) <= s.thumbnail { //nolint:gosec // G115: image bounds are non-negative
		return &Image{Data: data, ContentType: contentType}, nil
	}

	thumb := resize.Thumbnail(s.thumbnail, s.thumbnail, src, resize.Lanczos3)
	encoded, err := encode(thumb, contentType)
	if err != nil {
		return nil, err
	}

	s.log.Debug("created thumbnail",
		logger.String("file", filepath.Base(path)),
		logger.Int("width", thumb.Bounds().Dx()),
		logger.Int("height", thumb.Bounds().Dy()))

	return &Image{Data: encoded, ContentType: contentType}, nil
}

func encode(img image.Image, contentType string) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	if contentType == "image/png" {
		err = png.Encode(&buf, img)
	} else {
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: jpegQuality})
	}
	if err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}

// validateLabel rejects labels that would escape the assets directory.
func validateLabel(label string) error {
	if label == "" || label == "." || label == ".." ||
		strings.ContainsAny(label, `/\`) || strings.ContainsRune(label, 0) {
		return errors.New(fmt.Errorf("%w: %q", ErrInvalidLabel, label)).
			Component("labelinfo").
			Category(errors.CategoryValidation).
			Build()
	}
	return nil
}

func notFound(label string) error {
	return errors.New(fmt.Errorf("%w: %s", ErrNotFound, label)).
		Component("labelinfo").
		Category(errors.CategoryNotFound).
		Context("label", label).
		Build()
}
