package logging

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnonymizeIP(t *testing.T) {
	require.Equal(t, "192.168.1.0", anonymizeIP("192.168.1.77:5555"))
	require.Equal(t, "127.0.0.1", anonymizeIP("127.0.0.1:80"))
	require.Equal(t, "2001:db8:1:2::", anonymizeIP("[2001:db8:1:2:3:4:5:6]:443"))
	require.Equal(t, "unknown_ip", anonymizeIP("nonsense"))
}

func TestRedactURI(t *testing.T) {
	u, err := url.Parse("/oauth2/redirect?token=abc&username=alice")
	require.NoError(t, err)
	got := RedactURI(u)
	require.NotContains(t, got, "abc")
	require.Contains(t, got, "username=alice")

	u, err = url.Parse("/profile?tab=1")
	require.NoError(t, err)
	require.Equal(t, "/profile?tab=1", RedactURI(u))
}

func TestRequestLoggerNeverLogsToken(t *testing.T) {
	var buf bytes.Buffer
	InitTo(&buf, "PROD")

	h := RequestLogger()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth2/redirect?token=sekrit", nil))

	require.Equal(t, http.StatusTeapot, rec.Code)
	require.Contains(t, buf.String(), `"status":418`)
	require.NotContains(t, buf.String(), "sekrit")
}
