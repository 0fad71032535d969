package httpclient

import (
	"net/http"
	"net/http/httptest"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Defaults(t *testing.T) {
	c := New(30*time.Second, Options{})

	assert.Equal(t, 30*time.Second, c.Timeout)
	assert.Equal(t, 10, c.maxRedirects)
	assert.True(t, c.blockPrivate)
	assert.Equal(t, []string{"http", "https"}, c.schemes)
	assert.NotNil(t, c.Transport)
}

func TestParseURL(t *testing.T) {
	c := New(time.Second, Options{})

	tests := []struct {
		name    string
		url     string
		wantErr string
	}{
		{name: "https", url: "https://channelfinder.example.com/ChannelFinder"},
		{name: "http", url: "http://example.com"},
		{name: "file scheme", url: "file:///etc/passwd", wantErr: "scheme"},
		{name: "gopher scheme", url: "gopher://example.com", wantErr: "scheme"},
		{name: "user info", url: "http://evil.com@example.com/", wantErr: "user info"},
		{name: "localhost", url: "http://localhost:8080", wantErr: "localhost"},
		{name: "sub localhost", url: "http://api.localhost", wantErr: "localhost"},
		{name: "loopback", url: "http://127.0.0.1/", wantErr: "private"},
		{name: "rfc1918", url: "http://10.1.2.3/", wantErr: "private"},
		{name: "link local", url: "http://169.254.169.254/latest/meta-data", wantErr: "private"},
		{name: "ipv6 loopback", url: "http://[::1]/", wantErr: "private"},
		{name: "ipv6 ula", url: "http://[fd00::1]/", wantErr: "private"},
		{name: "missing host", url: "http:///path", wantErr: "hostname"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.ParseURL(tt.url)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestParseURL_AllowPrivateNetwork(t *testing.T) {
	c := New(time.Second, Options{AllowPrivateNetwork: true})

	_, err := c.ParseURL("http://10.0.0.5:8080/ChannelFinder")
	assert.NoError(t, err)
	_, err = c.ParseURL("http://localhost:8080")
	assert.NoError(t, err)
	_, err = c.ParseURL("ftp://10.0.0.5/")
	assert.Error(t, err)
}

func TestBlockedAddr(t *testing.T) {
	for addr, want := range map[string]bool{
		"8.8.8.8":          false,
		"2606:4700::1111":  false,
		"192.168.1.1":      true,
		"172.31.255.255":   true,
		"172.32.0.1":       false,
		"::ffff:127.0.0.1": true,
		"::":               true,
		"2001:db8::1":      true,
	} {
		assert.Equal(t, want, blockedAddr(netip.MustParseAddr(addr)), addr)
	}
}

func TestDo_BlocksBeforeSending(t *testing.T) {
	hit := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}))
	defer srv.Close()

	c := New(time.Second, Options{})
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = c.Do(req)
	require.Error(t, err)
	assert.False(t, hit)
}

func TestWrap_ReachesTestServer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := Wrap(srv.Client())
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	resp, err := c.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestRedirectLimit(t *testing.T) {
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, srv.URL+"/again", http.StatusFound)
	}))
	defer srv.Close()

	c := New(time.Second, Options{AllowPrivateNetwork: true, MaxRedirects: 2})
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)

	_, err = c.Do(req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped after 2 redirects")
}
