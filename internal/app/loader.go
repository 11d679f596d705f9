package app

import (
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/webp"
)

// Loader fetches and decodes a background image.
type Loader interface {
	Load(ctx context.Context, src string) (image.Image, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, src string) (image.Image, error)

func (f LoaderFunc) Load(ctx context.Context, src string) (image.Image, error) { return f(ctx, src) }

// DefaultMaxImageBytes caps how much of a remote image is read.
const DefaultMaxImageBytes = 32 << 20

// ErrPrivateAddress rejects a remote image hosted on a loopback, private
// or link-local address.
var ErrPrivateAddress = errors.New("image host resolves to a non-public address")

// HTTPLoader loads http(s) URLs over the network and anything else from
// the local filesystem, including file:// URLs. With RemoteOnly set it
// refuses local sources and hosts that are not publicly routable.
type HTTPLoader struct {
	Client     *http.Client
	MaxBytes   int64
	RemoteOnly bool
}

// NewHTTPLoader returns a loader with a request timeout.
func NewHTTPLoader(timeout time.Duration) *HTTPLoader {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	l := &HTTPLoader{MaxBytes: DefaultMaxImageBytes}
	dialer := &net.Dialer{Timeout: timeout, Control: l.checkDial}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	l.Client = &http.Client{Timeout: timeout, Transport: transport}
	return l
}

func (l *HTTPLoader) Load(ctx context.Context, src string) (image.Image, error) {
	if IsRemote(src) {
		return l.fetch(ctx, src)
	}
	if l.RemoteOnly {
		return nil, fmt.Errorf("%w: %s", ErrLocalSource, src)
	}
	path := src
	if u, err := url.Parse(src); err == nil && u.Scheme == "file" {
		path = u.Path
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decode(f)
}

// checkDial runs after name resolution, so it sees the address actually
// dialled.
func (l *HTTPLoader) checkDial(network, address string, _ syscall.RawConn) error {
	if !l.RemoteOnly {
		return nil
	}
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || !publicIP(ip) {
		return fmt.Errorf("%w: %s", ErrPrivateAddress, host)
	}
	return nil
}

func publicIP(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() || ip.IsMulticast())
}

func (l *HTTPLoader) fetch(ctx context.Context, src string) (image.Image, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	client := l.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			logrus.WithError(cerr).Debug("close image response")
		}
	}()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") && !strings.HasPrefix(ct, "application/octet-stream") {
		return nil, fmt.Errorf("unexpected content type %q", ct)
	}
	limit := l.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxImageBytes
	}
	return decode(io.LimitReader(resp.Body, limit))
}

func decode(r io.Reader) (image.Image, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	logrus.WithFields(logrus.Fields{"format": format, "size": img.Bounds().Size()}).Debug("background decoded")
	return img, nil
}
