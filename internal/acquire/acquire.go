// Package acquire normalizes template source files into uniform incoming
// descriptors, whether they arrive as direct uploads or as remote URLs.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
)

// ErrFetchFailed marks a failed remote acquisition: DNS, network, timeout
// or a non-success HTTP status. The whole template creation aborts on it.
var ErrFetchFailed = errors.New("failed to fetch remote file")

// IncomingFile is the uniform descriptor the ingestion pipeline consumes.
type IncomingFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

type Acquirer struct {
	client   *http.Client
	maxBytes int64
}

func New(timeout time.Duration, maxBytes int64) *Acquirer {
	return &Acquirer{
		client: &http.Client{
			Timeout: timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return errors.New("too many redirects")
				}
				return nil
			},
		},
		maxBytes: maxBytes,
	}
}

// FromMultipart reads uploaded file parts as-is.
func (a *Acquirer) FromMultipart(headers []*multipart.FileHeader) ([]IncomingFile, error) {
	files := make([]IncomingFile, 0, len(headers))
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open uploaded file %q: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read uploaded file %q: %w", fh.Filename, err)
		}

		contentType := fh.Header.Get("Content-Type")
		if contentType == "" {
			contentType = mimetype.Detect(data).String()
		}

		files = append(files, IncomingFile{
			Filename:    fh.Filename,
			ContentType: contentType,
			Data:        data,
		})
	}
	return files, nil
}

// FromURL fetches the resource and wraps it in a single-element descriptor
// list. The filename comes from the explicit parameter when present,
// otherwise from the URL's last path segment, percent-decoded; the
// extension is stripped either way. The content type is sniffed from the
// fetched bytes, never taken from the response headers.
func (a *Acquirer) FromURL(ctx context.Context, rawURL, filename string) ([]IncomingFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: unexpected status %d", ErrFetchFailed, resp.StatusCode)
	}

	body := io.Reader(resp.Body)
	if a.maxBytes > 0 {
		body = io.LimitReader(resp.Body, a.maxBytes+1)
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if a.maxBytes > 0 && int64(len(data)) > a.maxBytes {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", ErrFetchFailed, a.maxBytes)
	}

	return []IncomingFile{{
		Filename:    DeriveName(rawURL, filename),
		ContentType: mimetype.Detect(data).String(),
		Data:        data,
	}}, nil
}

// DeriveName derives the incoming filename: the explicit name wins over
// the URL, the last path segment is percent-decoded and the extension is
// stripped.
func DeriveName(rawURL, explicit string) string {
	source := explicit
	if source == "" {
		source = rawURL
	}
	if decoded, err := url.QueryUnescape(source); err == nil {
		source = decoded
	}

	base := path.Base(strings.TrimSuffix(source, "/"))
	if i := strings.Index(base, "?"); i >= 0 {
		base = base[:i]
	}
	return strings.TrimSuffix(base, path.Ext(base))
}
