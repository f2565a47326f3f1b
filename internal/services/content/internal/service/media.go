package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/decentrahub/hub/internal/pkg/serr"
	"github.com/google/uuid"
)

// UploadMedia checks the size of a media file, and the dimensions when it is an image,
// then pins it to IPFS and returns its ipfs:// URL. Payloads sniffed as images must
// decode as PNG, JPEG or GIF.
func (c *Content) UploadMedia(ctx context.Context, name string, r io.Reader) (url string, err error) {
	defer func() { c.outcome("upload_media", err) }()

	data, err := io.ReadAll(io.LimitReader(r, c.limits.MaxSize+1))
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return "", serr.NewServiceError(err, http.StatusRequestEntityTooLarge, "Media size exceeded.")
		}
		return "", fmt.Errorf("read media: %w", err)
	}
	if int64(len(data)) > c.limits.MaxSize {
		return "", serr.NewServiceError(nil, http.StatusRequestEntityTooLarge, "Media size exceeded.").
			With("max_size", fmt.Sprint(c.limits.MaxSize))
	}
	if len(data) == 0 {
		return "", serr.BadRequest(nil, "Media file is empty.")
	}

	if strings.HasPrefix(http.DetectContentType(data), "image/") {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if errors.Is(err, image.ErrFormat) {
			return "", serr.BadRequest(err, "Unsupported image format.")
		}
		if err != nil {
			return "", serr.BadRequest(err, "Invalid image file.")
		}
		if cfg.Width > c.limits.MaxWidth || cfg.Height > c.limits.MaxHeight {
			return "", serr.NewServiceError(nil, http.StatusRequestEntityTooLarge, "Image dimensions exceeded.").
				With("width", fmt.Sprint(cfg.Width)).
				With("height", fmt.Sprint(cfg.Height))
		}
	}

	url, err = c.pinner.PinFile(ctx, mediaName(name), bytes.NewReader(data))
	if err != nil {
		return "", serr.NewServiceError(fmt.Errorf("pin media: %w", err), http.StatusBadGateway, "Failed to pin media to IPFS.")
	}

	return url, nil
}

func mediaName(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == "" {
		return uuid.NewString()
	}
	return name
}
