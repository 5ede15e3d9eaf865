package fetcher

import (
	"context"
	"io"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/jlaffaye/ftp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// FTPOptions configures the FTP fetcher.
type FTPOptions struct {
	Timeout    time.Duration
	MaxRetries int
}

// FTPFetcher downloads files over anonymous FTP. The census bureau still
// publishes the legacy summary-file mirrors on ftp2.census.gov, and those
// servers drop connections often enough that every retrieval retries on
// dial failure.
type FTPFetcher struct {
	opts FTPOptions
}

// NewFTPFetcher creates an FTPFetcher with the given options.
func NewFTPFetcher(opts FTPOptions) *FTPFetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	return &FTPFetcher{opts: opts}
}

// splitFTPURL returns the dial address (host:port, defaulting to 21) and
// remote path of an ftp:// URL.
func splitFTPURL(rawURL string) (addr, remote string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", "", eris.Wrapf(err, "ftp: parse url %s", rawURL)
	}
	if u.Scheme != "ftp" {
		return "", "", eris.Errorf("ftp: expected ftp scheme, got %q", u.Scheme)
	}
	if u.Path == "" {
		return "", "", eris.Errorf("ftp: no path in %s", rawURL)
	}
	addr = u.Host
	if _, _, splitErr := net.SplitHostPort(addr); splitErr != nil {
		addr = net.JoinHostPort(addr, "21")
	}
	return addr, u.Path, nil
}

// ftpBody keeps the control connection alive for the life of the data
// stream; Close releases both.
type ftpBody struct {
	io.Reader
	resp *ftp.Response
	conn *ftp.ServerConn
}

func (b *ftpBody) Close() error {
	respErr := b.resp.Close()
	quitErr := b.conn.Quit()
	if respErr != nil {
		return eris.Wrap(respErr, "ftp: close response")
	}
	return eris.Wrap(quitErr, "ftp: quit")
}

// Download retrieves the file behind an ftp:// URL. The caller must close
// the returned body to release the connection.
func (f *FTPFetcher) Download(ctx context.Context, ftpURL string) (io.ReadCloser, error) {
	addr, remote, err := splitFTPURL(ftpURL)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := range f.opts.MaxRetries {
		body, err := f.retrieve(ctx, addr, remote)
		if err == nil {
			return body, nil
		}
		lastErr = err
		zap.L().Warn("ftp retrieve failed, retrying",
			zap.String("host", addr),
			zap.String("path", remote),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		backoffSleep(ctx, attempt)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, eris.Wrap(lastErr, "ftp retries exhausted")
}

func (f *FTPFetcher) retrieve(ctx context.Context, addr, remote string) (io.ReadCloser, error) {
	conn, err := ftp.Dial(addr, ftp.DialWithTimeout(f.opts.Timeout), ftp.DialWithContext(ctx))
	if err != nil {
		return nil, eris.Wrapf(err, "ftp: dial %s", addr)
	}
	if err := conn.Login("anonymous", "anonymous@"); err != nil {
		_ = conn.Quit()
		return nil, eris.Wrap(err, "ftp: login")
	}
	resp, err := conn.Retr(remote)
	if err != nil {
		_ = conn.Quit()
		return nil, eris.Wrapf(err, "ftp: retrieve %s", remote)
	}
	return &ftpBody{Reader: resp, resp: resp, conn: conn}, nil
}

// DownloadToFile retrieves the FTP URL into a local file and returns the
// bytes written.
func (f *FTPFetcher) DownloadToFile(ctx context.Context, ftpURL string, path string) (int64, error) {
	body, err := f.Download(ctx, ftpURL)
	if err != nil {
		return 0, err
	}
	defer body.Close() //nolint:errcheck

	file, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrapf(err, "ftp: create %s", path)
	}
	n, err := io.Copy(file, body)
	if err != nil {
		_ = file.Close()
		return n, eris.Wrapf(err, "ftp: write %s", path)
	}
	return n, eris.Wrapf(file.Close(), "ftp: close %s", path)
}
