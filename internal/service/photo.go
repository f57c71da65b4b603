package service

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nfnt/resize"

	"tailorshop/internal/model"
)

var (
	ErrPhotoTooLarge = errors.New("photo exceeds 5MB")
	ErrNotAnImage    = errors.New("only image files are accepted")
	ErrPhotoNotFound = errors.New("photo not found")
)

const (
	MaxPhotoBytes = 5 << 20
	maxPhotoWidth = 1600
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// PhotoStore keeps inspiration photos on local disk under
// inspiration/{uid}/{unixMillis}-{filename}.
type PhotoStore struct {
	root    string
	baseURL string
	now     func() time.Time
}

func NewPhotoStore(root, baseURL string) *PhotoStore {
	return &PhotoStore{root: root, baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}
}

// Save stores one upload. Wide JPEG and PNG images are scaled down to
// maxPhotoWidth before writing; other image types are stored as sent.
func (s *PhotoStore) Save(uid, filename string, r io.Reader) (model.Photo, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxPhotoBytes+1))
	if err != nil {
		return model.Photo{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) > MaxPhotoBytes {
		return model.Photo{}, ErrPhotoTooLarge
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return model.Photo{}, ErrNotAnImage
	}

	data, err = downscale(data, contentType)
	if err != nil {
		return model.Photo{}, err
	}

	name := cleanFilename(filename)
	now := s.now()
	key := path.Join("inspiration", cleanFilename(uid), fmt.Sprintf("%d-%s", now.UnixMilli(), name))

	dst := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return model.Photo{}, fmt.Errorf("create photo dir: %w", err)
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return model.Photo{}, fmt.Errorf("write photo: %w", err)
	}

	return model.Photo{
		URL:        s.baseURL + "/" + key,
		Name:       filename,
		UploadedAt: now,
	}, nil
}

// Owns reports whether url names a photo this store saved for uid.
func (s *PhotoStore) Owns(uid, url string) bool {
	key, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok || strings.Contains(key, "..") {
		return false
	}
	name, ok := strings.CutPrefix(key, path.Join("inspiration", cleanFilename(uid))+"/")
	return ok && name != "" && !strings.Contains(name, "/")
}

// Delete removes a photo previously returned by Save.
func (s *PhotoStore) Delete(url string) error {
	key, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok || !strings.HasPrefix(key, "inspiration/") || strings.Contains(key, "..") {
		return ErrPhotoNotFound
	}
	err := os.Remove(filepath.Join(s.root, filepath.FromSlash(key)))
	if errors.Is(err, os.ErrNotExist) {
		return ErrPhotoNotFound
	}
	if err != nil {
		return fmt.Errorf("delete photo: %w", err)
	}
	return nil
}

func downscale(data []byte, contentType string) ([]byte, error) {
	var encode func(io.Writer, image.Image) error
	switch contentType {
	case "image/jpeg":
		encode = func(w io.Writer, img image.Image) error {
			return jpeg.Encode(w, img, &jpeg.Options{Quality: 85})
		}
	case "image/png":
		encode = png.Encode
	default:
		return data, nil
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, ErrNotAnImage
	}
	if cfg.Width <= maxPhotoWidth {
		return data, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, ErrNotAnImage
	}
	scaled := resize.Resize(maxPhotoWidth, 0, img, resize.Lanczos3)

	var buf bytes.Buffer
	if err := encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("encode photo: %w", err)
	}
	return buf.Bytes(), nil
}

func cleanFilename(name string) string {
	name = unsafeName.ReplaceAllString(filepath.Base(name), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return uuid.NewString()
	}
	return name
}
