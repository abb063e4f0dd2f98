package imaging

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestMIMEForURL(t *testing.T) {
	assert.Equal(t, "image/png", MIMEForURL("https://pbs.example/a.png"))
	assert.Equal(t, "image/jpeg", MIMEForURL("https://pbs.example/a.jpg"))
	assert.Equal(t, "image/jpeg", MIMEForURL("https://pbs.example/a.jpeg?x=1"))
	assert.Equal(t, "image/gif", MIMEForURL("https://pbs.example/a.gif"))
	// Unknown extensions default to JPEG.
	assert.Equal(t, "image/jpeg", MIMEForURL("https://pbs.example/profile_images/abc_normal"))
}

func TestFetchDataURI(t *testing.T) {
	payload := []byte{0x89, 'P', 'N', 'G'}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer srv.Close()

	e := NewEncoder(zap.NewNop(), srv.Client())
	got := e.FetchDataURI(context.Background(), srv.URL+"/icon.png")
	want := "data:image/png;base64," + base64.StdEncoding.EncodeToString(payload)
	assert.Equal(t, want, got)
}

func TestFetchDataURI_SoftFailures(t *testing.T) {
	e := NewEncoder(zap.NewNop(), nil)

	// Unreachable host.
	assert.Equal(t, "", e.FetchDataURI(context.Background(), "http://127.0.0.1:0/x.png"))

	// Non-200 response.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()
	assert.Equal(t, "", e.FetchDataURI(context.Background(), srv.URL+"/x.png"))

	// Malformed URL.
	assert.Equal(t, "", e.FetchDataURI(context.Background(), "::not-a-url"))
}
