// Package imaging downloads profile images and embeds them as data URIs so
// results are self-contained for the label renderer downstream.
package imaging

import (
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"regexp"
	"time"

	"go.uber.org/zap"
)

// maxImageBytes caps a single profile image download.
const maxImageBytes = 10 << 20

var (
	pngRe  = regexp.MustCompile(`\.png($|[?#])`)
	jpegRe = regexp.MustCompile(`\.jpe?g($|[?#])`)
	gifRe  = regexp.MustCompile(`\.gif($|[?#])`)
)

// MIMEForURL sniffs the image MIME type from the URL extension. Consumers
// must not assume a fixed format; unknown extensions default to JPEG.
func MIMEForURL(url string) string {
	switch {
	case pngRe.MatchString(url):
		return "image/png"
	case jpegRe.MatchString(url):
		return "image/jpeg"
	case gifRe.MatchString(url):
		return "image/gif"
	default:
		return "image/jpeg"
	}
}

// Encoder fetches image URLs and encodes them as data URIs.
type Encoder struct {
	logger *zap.Logger
	client *http.Client
}

// NewEncoder creates an Encoder. A nil client gets a default with a timeout
// shorter than the fetch loop's own bound.
func NewEncoder(logger *zap.Logger, client *http.Client) *Encoder {
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &Encoder{
		logger: logger.Named("imaging"),
		client: client,
	}
}

// FetchDataURI downloads url and returns it as data:<mime>;base64,<payload>.
// Every failure degrades to an empty string; a missing icon is an aggregate
// user warning, never an error that aborts the batch.
func (e *Encoder) FetchDataURI(ctx context.Context, url string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		e.logger.Debug("bad image url", zap.String("url", url), zap.Error(err))
		return ""
	}

	resp, err := e.client.Do(req)
	if err != nil {
		e.logger.Debug("image fetch failed", zap.String("url", url), zap.Error(err))
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		e.logger.Debug("image fetch returned non-200",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode))
		return ""
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes))
	if err != nil || len(data) == 0 {
		e.logger.Debug("image read failed", zap.String("url", url), zap.Error(err))
		return ""
	}

	return "data:" + MIMEForURL(url) + ";base64," + base64.StdEncoding.EncodeToString(data)
}
