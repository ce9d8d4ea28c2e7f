package fetch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	parsed, err := url.Parse(server.URL)
	if err != nil {
		t.Fatalf("url.Parse failed: %v", err)
	}
	c := New("1.2.3")
	c.Backoff = 0
	c.HTTP = &http.Client{
		Transport: &rewriteHostTransport{
			host: parsed.Host,
			rt:   server.Client().Transport,
		},
	}
	return c
}

func TestCheckURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{url: "https://api.github.com/repos/o/r/releases/latest", want: true},
		{url: "https://github.com/o/r/releases/download/1.0/a.zip", want: true},
		{url: "https://objects.githubusercontent.com/x", want: true},
		{url: "https://api.nexusmods.com/v1/users/validate.json", want: true},
		{url: "https://cf-files.nexusmods.com/a.zip", want: true},
		{url: "https://example.com/a.zip", want: false},
		{url: "https://github.com.evil.test/a.zip", want: false},
		{url: "ftp://github.com/a.zip", want: false},
	}
	for _, tt := range tests {
		_, err := CheckURL(tt.url)
		if (err == nil) != tt.want {
			t.Fatalf("CheckURL(%q) err=%v want ok=%t", tt.url, err, tt.want)
		}
	}
}

func TestMetafileReformatsAndSetsHeaders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/games/mysummercar/mods/146.json" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("apikey"); got != "secret" {
			t.Errorf("apikey=%q want secret", got)
		}
		if got := r.Header.Get("User-Agent"); !strings.HasPrefix(got, "mod-updater/1.2.3 (") {
			t.Errorf("User-Agent=%q", got)
		}
		_, _ = w.Write([]byte(`{"name":"Mod","version":"1.2"}`))
	})

	got, err := c.Metafile(context.Background(), "https://api.nexusmods.com/v1/games/mysummercar/mods/146.json", "secret")
	if err != nil {
		t.Fatalf("Metafile failed: %v", err)
	}
	want := "{\n\"name\":\"Mod\",\n\"version\":\"1.2\"\n}"
	if got != want {
		t.Fatalf("Metafile=%q want %q", got, want)
	}
}

func TestMetafileGitHubUserAgent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "Other" {
			t.Errorf("User-Agent=%q want Other", got)
		}
		if r.Header.Get("apikey") != "" {
			t.Errorf("apikey must not be sent to GitHub")
		}
		_, _ = w.Write([]byte(`{"tag_name":"1.0","assets":[{"name":"a.zip"}]}`))
	})

	got, err := c.Metafile(context.Background(), "https://api.github.com/repos/o/r/releases/latest", "")
	if err != nil {
		t.Fatalf("Metafile failed: %v", err)
	}
	if !strings.Contains(got, "\"assets\":[\n{\n\"name\":\"a.zip\"\n}\n]") {
		t.Fatalf("unexpected reformat: %q", got)
	}
}

func TestMetafileStatusErrors(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	})

	_, err := c.Metafile(context.Background(), "https://api.github.com/repos/o/missing/releases/latest", "")
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("err=%v want 404 StatusError", err)
	}
	if got := err.Error(); got != "The remote server returned an error: (404) Not Found." {
		t.Fatalf("message=%q", got)
	}
	if hits.Load() != 1 {
		t.Fatalf("client errors should not be retried, hits=%d", hits.Load())
	}
}

func TestMetafileRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"tag_name":"2.0"}`))
	})

	got, err := c.Metafile(context.Background(), "https://api.github.com/repos/o/r/releases/latest", "")
	if err != nil {
		t.Fatalf("Metafile failed: %v", err)
	}
	if !strings.Contains(got, `"tag_name":"2.0"`) || hits.Load() != 3 {
		t.Fatalf("got=%q hits=%d", got, hits.Load())
	}
}

func TestMetafileRejectsHost(t *testing.T) {
	c := New("dev")
	if _, err := c.Metafile(context.Background(), "https://example.com/x.json", ""); !errors.Is(err, ErrHostNotAllowed) {
		t.Fatalf("err=%v want ErrHostNotAllowed", err)
	}
}

func TestFileWritesArchiveAndProgress(t *testing.T) {
	payload := bytes.Repeat([]byte("x"), 4096)
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/o/r/releases/download/1.0/Mod.zip" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write(payload)
	})

	dest := filepath.Join(t.TempDir(), "Mod.zip")
	var progress bytes.Buffer
	if err := c.File(context.Background(), "https://github.com/o/r/releases/download/1.0/Mod.zip", dest, "", &progress); err != nil {
		t.Fatalf("File failed: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("reading download: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Fatalf("download has %d bytes want %d", len(data), len(payload))
	}
	if _, err := os.Stat(dest + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temporary file left behind: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(progress.String()), "\n")
	if lines[len(lines)-1] != "100%" {
		t.Fatalf("progress=%q want final 100%%", progress.String())
	}
}

func TestFileFailureLeavesNoFile(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	dest := filepath.Join(t.TempDir(), "Mod.zip")
	err := c.File(context.Background(), "https://cf-files.nexusmods.com/Mod.zip", dest, "key", nil)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusForbidden {
		t.Fatalf("err=%v want 403", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("failed download produced a file: %v", err)
	}
}

type rewriteHostTransport struct {
	host string
	rt   http.RoundTripper
}

func (t *rewriteHostTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	cloned := req.Clone(req.Context())
	cloned.URL.Scheme = "http"
	cloned.URL.Host = t.host
	return t.rt.RoundTrip(cloned)
}
