package media

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

const (
	downloadAttempts  = 3
	downloadPause     = 5 * time.Second
	downloadTimeout   = 30 * time.Second
	downloadUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Downloader fetches remote media into local files. Connecting, waiting for
// response headers and each body read are bounded; the whole transfer is
// bounded only by the caller's context.
type Downloader struct {
	Client *http.Client
	Pause  time.Duration
	// ReadTimeout aborts an attempt when the body stalls this long.
	ReadTimeout time.Duration
	Logger      zerolog.Logger
}

// NewDownloader returns a downloader with 30 second connect, header and
// read timeouts.
func NewDownloader(logger zerolog.Logger) *Downloader {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   downloadTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   downloadTimeout,
		ResponseHeaderTimeout: downloadTimeout,
		IdleConnTimeout:       90 * time.Second,
	}
	return &Downloader{
		Client:      &http.Client{Transport: transport},
		Pause:       downloadPause,
		ReadTimeout: downloadTimeout,
		Logger:      logger.With().Str("component", "download").Logger(),
	}
}

// Download writes url to dst, retrying up to three times.
func (d *Downloader) Download(ctx context.Context, url, dst string) error {
	var lastErr error
	for attempt := 0; attempt < downloadAttempts; attempt++ {
		if attempt > 0 {
			d.Logger.Warn().Err(lastErr).Int("attempt", attempt).Str("url", url).Msg("download failed, retrying")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(d.Pause):
			}
		}

		lastErr = d.fetch(ctx, url, dst)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("download %s after %d attempts: %w", url, downloadAttempts, lastErr)
}

func (d *Downloader) fetch(ctx context.Context, url, dst string) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", downloadUserAgent)

	resp, err := d.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	body := io.Reader(resp.Body)
	var stalled *stallReader
	if d.ReadTimeout > 0 {
		stalled = newStallReader(resp.Body, d.ReadTimeout, cancel)
		defer stalled.stop()
		body = stalled
	}
	n, err := io.Copy(f, body)
	if err != nil && stalled != nil && stalled.fired() {
		err = fmt.Errorf("no data for %s: %w", d.ReadTimeout, err)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	d.Logger.Debug().Str("url", url).Int64("bytes", n).Msg("download complete")
	return nil
}

// stallReader cancels the request when no read completes within timeout.
type stallReader struct {
	r       io.Reader
	timeout time.Duration
	timer   *time.Timer
	expired atomic.Bool
}

func newStallReader(r io.Reader, timeout time.Duration, cancel context.CancelFunc) *stallReader {
	s := &stallReader{r: r, timeout: timeout}
	s.timer = time.AfterFunc(timeout, func() {
		s.expired.Store(true)
		cancel()
	})
	return s
}

func (s *stallReader) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if n > 0 {
		s.timer.Reset(s.timeout)
	}
	return n, err
}

func (s *stallReader) stop()       { s.timer.Stop() }
func (s *stallReader) fired() bool { return s.expired.Load() }
