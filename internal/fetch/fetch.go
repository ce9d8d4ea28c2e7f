// Package fetch is the HTTP side of the helper binary: it reads catalog
// metadata and downloads archives on behalf of the updater.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/caedis/mod-updater/internal/catalog"
	"github.com/caedis/mod-updater/internal/logging"
)

const (
	maxRetries   = 3
	retryBackoff = 2 * time.Second

	gitHubUserAgent = "Other"
)

var allowedHosts = []string{"github.com", "githubusercontent.com", "nexusmods.com"}

// ErrHostNotAllowed is returned for URLs outside the supported catalogs.
var ErrHostNotAllowed = errors.New("host not allowed")

// StatusError is a non-200 response. Its message is the line the updater
// recognises, e.g. "The remote server returned an error: (404) Not Found."
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("The remote server returned an error: (%d) %s.", e.Code, http.StatusText(e.Code))
}

// Client performs the helper's requests.
type Client struct {
	HTTP    *http.Client
	Version string
	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration
}

// New returns a Client identifying itself as version.
func New(version string) *Client {
	return &Client{
		HTTP:    http.DefaultClient,
		Version: version,
		Backoff: retryBackoff,
	}
}

// CheckURL parses raw and rejects hosts other than GitHub and NexusMods.
func CheckURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("parsing %q: %w", raw, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("%q: unsupported scheme %q", raw, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	for _, allowed := range allowedHosts {
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return u, nil
		}
	}
	return nil, fmt.Errorf("%s: %w", host, ErrHostNotAllowed)
}

// Metafile fetches rawURL and returns the body reformatted one field per
// line.
func (c *Client) Metafile(ctx context.Context, rawURL, token string) (string, error) {
	u, err := CheckURL(rawURL)
	if err != nil {
		return "", err
	}

	var body []byte
	err = c.withRetry(ctx, u.String(), func() error {
		resp, err := c.get(ctx, u, token)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		body, err = io.ReadAll(resp.Body)
		return err
	})
	if err != nil {
		return "", err
	}
	return Reformat(string(body)), nil
}

// ValidateKey fetches the NexusMods account behind token.
func (c *Client) ValidateKey(ctx context.Context, token string) (string, error) {
	if strings.TrimSpace(token) == "" {
		return "", fmt.Errorf("validate-key: empty API key")
	}
	return c.Metafile(ctx, catalog.ValidateURL(), token)
}

// File downloads rawURL to savePath through a temporary file, writing a
// "NN%" line to progress whenever the percentage changes.
func (c *Client) File(ctx context.Context, rawURL, savePath, token string, progress io.Writer) error {
	u, err := CheckURL(rawURL)
	if err != nil {
		return err
	}
	if progress == nil {
		progress = io.Discard
	}

	return c.withRetry(ctx, u.String(), func() error {
		resp, err := c.get(ctx, u, token)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		tmpPath := savePath + ".tmp"
		f, err := os.Create(tmpPath)
		if err != nil {
			return fmt.Errorf("creating %s: %w", tmpPath, err)
		}

		pw := &percentWriter{total: resp.ContentLength, out: progress, last: -1}
		_, err = io.Copy(f, io.TeeReader(resp.Body, pw))
		closeErr := f.Close()
		if err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("writing %s: %w", savePath, err)
		}
		if closeErr != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("closing %s: %w", savePath, closeErr)
		}
		if err := os.Rename(tmpPath, savePath); err != nil {
			os.Remove(tmpPath)
			return fmt.Errorf("finalizing %s: %w", savePath, err)
		}
		pw.finish()
		return nil
	})
}

func (c *Client) get(ctx context.Context, u *url.URL, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if catalog.IsNexus(u.Host) {
		req.Header.Set("User-Agent", fmt.Sprintf("mod-updater/%s (%s)", c.Version, runtime.GOOS))
		req.Header.Set("Accept", "application/json")
		if token != "" {
			req.Header.Set("apikey", token)
		}
	} else {
		req.Header.Set("User-Agent", gitHubUserAgent)
	}

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, &StatusError{Code: resp.StatusCode}
	}
	return resp, nil
}

// withRetry retries network failures and server errors. Client errors
// such as 404 are returned at once.
func (c *Client) withRetry(ctx context.Context, target string, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if attempt > 0 {
			logging.Debugf("Verbose: retrying %s attempt=%d/%d err=%v\n", target, attempt+1, maxRetries, lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * c.Backoff):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		var se *StatusError
		if errors.As(lastErr, &se) && se.Code < 500 {
			return lastErr
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return lastErr
}

var reformatter = strings.NewReplacer(
	"[{", "[\n{\n",
	"}]", "\n}\n]",
	`,"`, ",\n\"",
	"{", "{\n",
	"}", "\n}",
)

// Reformat breaks a compact JSON body into one field per line.
func Reformat(body string) string {
	return reformatter.Replace(body)
}

type percentWriter struct {
	total   int64
	written int64
	last    int
	out     io.Writer
}

func (w *percentWriter) Write(p []byte) (int, error) {
	w.written += int64(len(p))
	if w.total > 0 {
		w.report(int(w.written * 100 / w.total))
	}
	return len(p), nil
}

func (w *percentWriter) finish() {
	w.report(100)
}

func (w *percentWriter) report(pct int) {
	if pct > 100 {
		pct = 100
	}
	if pct == w.last {
		return
	}
	w.last = pct
	fmt.Fprintf(w.out, "%d%%\n", pct)
}
