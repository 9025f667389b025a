package bookstore

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/starford/quill/internal/apperr"
	"github.com/starford/quill/internal/layout"
	"github.com/starford/quill/internal/models"
)

// CoverKind selects the front or back cover.
type CoverKind string

const (
	CoverFront CoverKind = "cover"
	CoverBack  CoverKind = "back-cover"
)

// MaxCoverBytes caps an uploaded cover image.
const MaxCoverBytes = 10 << 20

var mimeToExt = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// ParseCoverKind validates a kind received from a caller.
func ParseCoverKind(s string) (CoverKind, error) {
	switch k := CoverKind(strings.TrimSpace(s)); k {
	case CoverFront, CoverBack:
		return k, nil
	case "":
		return CoverFront, nil
	}
	return "", apperr.New(apperr.ErrPrecondition, "cover", "", fmt.Errorf("unknown cover kind %q", s))
}

// SaveCoverImage stores data as assets/<kind>.<ext> and points the metadata
// at it. The extension is taken from the detected content type; a declared
// ext that disagrees with the content is rejected. Covers of the same kind
// with another extension are removed.
func (s *Store) SaveCoverImage(meta *models.BookMetadata, kind CoverKind, ext string, data []byte) (*models.BookMetadata, error) {
	if len(data) == 0 {
		return nil, apperr.New(apperr.ErrPrecondition, "save cover", "", errors.New("image is empty"))
	}
	if len(data) > MaxCoverBytes {
		return nil, apperr.New(apperr.ErrPrecondition, "save cover", "",
			fmt.Errorf("image too large: %d bytes (max %d)", len(data), MaxCoverBytes))
	}
	detected, err := detectImageExt(data, ext)
	if err != nil {
		return nil, apperr.New(apperr.ErrPrecondition, "save cover", "", err)
	}

	name := string(kind) + detected
	rel := layout.AssetFile(name)
	if err := s.fs.Write(rel, data); err != nil {
		return nil, s.ioError("save cover", rel, err)
	}
	if err := s.removeStaleCovers(kind, name); err != nil {
		return nil, err
	}

	out := meta.Clone()
	switch kind {
	case CoverBack:
		out.BackCoverImage = rel
	default:
		out.CoverImage = rel
	}
	return s.SaveMetadata(out)
}

// CoverFile returns the assets-relative file referenced for kind, if it
// exists under assets/.
func (s *Store) CoverFile(meta *models.BookMetadata, kind CoverKind) (string, bool) {
	ref := meta.CoverImage
	if kind == CoverBack {
		ref = meta.BackCoverImage
	}
	ref = path.Clean(strings.ReplaceAll(ref, `\`, "/"))
	if path.Dir(ref) != layout.AssetsDir || !s.fs.Exists(ref) {
		return "", false
	}
	return ref, true
}

// ReadAsset returns the bytes of an assets-relative file.
func (s *Store) ReadAsset(rel string) ([]byte, error) {
	data, err := s.fs.Read(rel)
	if err != nil {
		return nil, s.ioError("read asset", rel, err)
	}
	return data, nil
}

func (s *Store) removeStaleCovers(kind CoverKind, keep string) error {
	entries, err := s.fs.List(layout.AssetsDir, "")
	if err != nil {
		return s.ioError("save cover", layout.AssetsDir, err)
	}
	for _, e := range entries {
		if e.Name == keep || strings.TrimSuffix(e.Name, path.Ext(e.Name)) != string(kind) {
			continue
		}
		if err := s.fs.Delete(e.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return s.ioError("save cover", e.Path, err)
		}
	}
	return nil
}

// detectImageExt sniffs the content type of data and checks it against the
// declared extension, if any.
func detectImageExt(data []byte, declared string) (string, error) {
	detected := http.DetectContentType(data)
	ext, ok := mimeToExt[strings.Split(detected, ";")[0]]
	if !ok {
		return "", fmt.Errorf("unsupported image content (detected: %s)", detected)
	}
	declared = strings.ToLower(strings.TrimSpace(declared))
	if declared != "" && !strings.HasPrefix(declared, ".") {
		declared = "." + declared
	}
	switch declared {
	case "", ext:
	case ".jpeg":
		if ext != ".jpg" {
			return "", fmt.Errorf("content does not match extension %s (detected: %s)", declared, detected)
		}
	default:
		return "", fmt.Errorf("content does not match extension %s (detected: %s)", declared, detected)
	}
	return ext, nil
}
