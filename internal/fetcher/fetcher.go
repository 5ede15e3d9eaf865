package fetcher

import (
	"context"
	"io"
	"net/url"

	"github.com/rotisserie/eris"
)

// Downloader fetches remote source files.
type Downloader interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Fetcher adds conditional fetching on top of Downloader. Only the HTTP
// transport supports it; census FTP mirrors carry no validators.
type Fetcher interface {
	Downloader

	// HeadETag performs a HEAD request and returns the ETag header value.
	HeadETag(ctx context.Context, url string) (string, error)

	// DownloadIfChanged fetches the URL only if the ETag has changed.
	// Returns (body, newETag, changed, error). If not changed, body is nil and changed is false.
	DownloadIfChanged(ctx context.Context, url string, etag string) (io.ReadCloser, string, bool, error)
}

// Client routes a source URL to the transport its scheme needs. Census
// tabulations are mirrored over both HTTPS and FTP, so source definitions
// may carry either.
type Client struct {
	HTTP *HTTPFetcher
	FTP  *FTPFetcher
}

// Downloader returns the transport for the URL's scheme.
func (c *Client) Downloader(rawURL string) (Downloader, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetcher: parse source url %s", rawURL)
	}
	switch u.Scheme {
	case "http", "https":
		return c.HTTP, nil
	case "ftp":
		return c.FTP, nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme %q in %s", u.Scheme, rawURL)
	}
}
