// Package fetcher downloads remote segment datasets over HTTP(S) and FTP and
// unpacks ZIP archives.
package fetcher

import (
	"context"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Fetcher defines the interface for downloading remote data.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// IsRemote reports whether source names a URL this package can fetch.
func IsRemote(source string) bool {
	switch scheme(source) {
	case "http", "https", "ftp":
		return true
	}
	return false
}

func scheme(source string) string {
	u, err := url.Parse(source)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}

// Remote dispatches downloads to the HTTP or FTP fetcher by URL scheme.
type Remote struct {
	HTTP Fetcher
	FTP  Fetcher
}

// NewRemote builds a Remote with default HTTP and FTP fetchers.
func NewRemote() *Remote {
	return &Remote{
		HTTP: NewHTTPFetcher(HTTPOptions{}),
		FTP:  NewFTPFetcher(FTPOptions{}),
	}
}

func (r *Remote) pick(source string) (Fetcher, error) {
	switch scheme(source) {
	case "http", "https":
		return r.HTTP, nil
	case "ftp":
		return r.FTP, nil
	default:
		return nil, eris.Errorf("fetcher: unsupported scheme in %q", source)
	}
}

// Download implements Fetcher.
func (r *Remote) Download(ctx context.Context, source string) (io.ReadCloser, error) {
	f, err := r.pick(source)
	if err != nil {
		return nil, err
	}
	return f.Download(ctx, source)
}

// DownloadToFile implements Fetcher.
func (r *Remote) DownloadToFile(ctx context.Context, source, dest string) (int64, error) {
	f, err := r.pick(source)
	if err != nil {
		return 0, err
	}
	return f.DownloadToFile(ctx, source, dest)
}

// ToTemp downloads source into dir, keeping the URL's base name so callers
// can still dispatch on the file extension. It returns the local path.
func ToTemp(ctx context.Context, f Fetcher, source, dir string) (string, error) {
	u, err := url.Parse(source)
	if err != nil {
		return "", eris.Wrap(err, "fetcher: parse source")
	}
	name := path.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		name = "download"
	}

	dest := filepath.Join(dir, name)
	n, err := f.DownloadToFile(ctx, source, dest)
	if err != nil {
		_ = os.Remove(dest)
		return "", eris.Wrapf(err, "fetcher: download %s", source)
	}

	zap.L().Info("fetcher: downloaded dataset",
		zap.String("source", source),
		zap.String("path", dest),
		zap.Int64("bytes", n),
	)
	return dest, nil
}
