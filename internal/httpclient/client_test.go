package httpclient

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/softwaremap/errors"
)

func TestNew_Defaults(t *testing.T) {
	c := New(Options{Timeout: 30 * time.Second})

	assert.Equal(t, 30*time.Second, c.Timeout)
	assert.Equal(t, 10, c.maxRedirects)
	assert.True(t, c.blockPrivateIP)
}

func TestValidateURL(t *testing.T) {
	c := New(Options{Timeout: time.Second})

	tests := []struct {
		name        string
		url         string
		errContains string
	}{
		{name: "https endpoint", url: "https://query.wikidata.org/sparql"},
		{name: "http endpoint", url: "http://example.com"},
		{name: "file scheme", url: "file:///etc/passwd", errContains: "scheme"},
		{name: "gopher scheme", url: "gopher://example.com", errContains: "scheme"},
		{name: "credentials", url: "http://evil.com@localhost/", errContains: "credentials"},
		{name: "localhost", url: "http://localhost:8080/", errContains: "localhost"},
		{name: "localhost subdomain", url: "http://admin.localhost/", errContains: "localhost"},
		{name: "loopback IP", url: "http://127.0.0.1/", errContains: "private"},
		{name: "RFC1918", url: "http://192.168.1.10/", errContains: "private"},
		{name: "metadata service", url: "http://169.254.169.254/latest", errContains: "private"},
		{name: "IPv6 loopback", url: "http://[::1]/", errContains: "private"},
		{name: "missing host", url: "http:///path", errContains: "hostname"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.ValidateURL(tt.url)
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestValidateURL_AllowPrivate(t *testing.T) {
	c := New(Options{AllowPrivate: true})
	_, err := c.ValidateURL("http://127.0.0.1:9999/sparql")
	assert.NoError(t, err)
}

func TestIsPrivateIP(t *testing.T) {
	tests := []struct {
		ip      string
		private bool
	}{
		{"10.1.2.3", true},
		{"172.16.0.1", true},
		{"172.32.0.1", false},
		{"100.64.0.1", true},
		{"0.0.0.0", true},
		{"224.0.0.1", true},
		{"8.8.8.8", false},
		{"fd00::1", true},
		{"fe80::1", true},
		{"fec0::1", true},
		{"2001:db8::1", true},
		{"2606:4700::1111", false},
	}
	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			assert.Equal(t, tt.private, isPrivateIP(net.ParseIP(tt.ip)))
		})
	}
}

func TestIsLocalhost(t *testing.T) {
	assert.True(t, isLocalhost("LOCALHOST"))
	assert.True(t, isLocalhost("localhost.localdomain"))
	assert.True(t, isLocalhost("test.localhost"))
	assert.False(t, isLocalhost("local.host"))
	assert.False(t, isLocalhost("example.com"))
}

func TestDo_SetsUserAgent(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(Options{Timeout: 5 * time.Second, AllowPrivate: true, UserAgent: "softwaremap/test (+ops@example.org)"})
	req, err := http.NewRequest(http.MethodGet, server.URL, nil)
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "softwaremap/test (+ops@example.org)", got)
}

func TestDo_BlocksPrivateByDefault(t *testing.T) {
	c := New(Options{Timeout: time.Second})
	req, err := http.NewRequest(http.MethodGet, "http://localhost/", nil)
	require.NoError(t, err)

	_, err = c.Do(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SSRF")
}

func TestDo_PacingHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	// One request per minute: the second must wait and hit the deadline
	c := New(Options{AllowPrivate: true, RequestsPerMinute: 1})

	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, _ = http.NewRequestWithContext(ctx, http.MethodGet, server.URL, nil)
	_, err = c.Do(req)
	assert.Error(t, err)
}

func TestRedirectToLocalhostBlocked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "http://localhost/admin", http.StatusFound)
	}))
	defer server.Close()

	c := New(Options{Timeout: 5 * time.Second, AllowPrivate: true})
	// First hop is the test server; redirects are re-checked with blocking on
	c.blockPrivateIP = true
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, err := c.Client.Do(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redirect blocked")
}

func TestMaxRedirects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/again", http.StatusFound)
	}))
	defer server.Close()

	c := New(Options{Timeout: 5 * time.Second, AllowPrivate: true, MaxRedirects: 3})
	req, _ := http.NewRequest(http.MethodGet, server.URL, nil)
	_, err := c.Do(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped after 3 redirects")
}

func TestDo_BlockedIsInvalidRequest(t *testing.T) {
	c := New(Options{})
	req, _ := http.NewRequest(http.MethodGet, "http://10.0.0.1/", nil)
	_, err := c.Do(req)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}
