package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/timkado/api/daisi-wa-webhook-pipeline/internal/apperrors"
)

func TestFetchMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/MEDIA_1", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"MEDIA_1","url":"https://lookaside.example/dl","mime_type":"image/jpeg","file_size":1024}`))
	}))
	defer srv.Close()

	client := NewGraphClient(srv.URL, 5*time.Second)
	obj, err := client.FetchMetadata(context.Background(), "token", "MEDIA_1")

	require.NoError(t, err)
	assert.Equal(t, "https://lookaside.example/dl", obj.URL)
	assert.Equal(t, "image/jpeg", obj.MimeType)
	assert.Equal(t, int64(1024), obj.FileSize)
}

func TestFetchMetadata_UpstreamErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"expired token"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	client := NewGraphClient(srv.URL, 5*time.Second)
	_, err := client.FetchMetadata(context.Background(), "token", "MEDIA_1")

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
}

func TestFetchMetadata_MissingURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id":"MEDIA_1"}`))
	}))
	defer srv.Close()

	client := NewGraphClient(srv.URL, 5*time.Second)
	_, err := client.FetchMetadata(context.Background(), "token", "MEDIA_1")

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
	assert.Contains(t, err.Error(), "no download url")
}

func TestDownload(t *testing.T) {
	payload := []byte("jpeg-bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		w.Write(payload)
	}))
	defer srv.Close()

	client := NewGraphClient("https://graph.example", 5*time.Second)
	data, err := client.Download(context.Background(), "token", srv.URL)

	require.NoError(t, err)
	assert.Equal(t, payload, data)
}

func TestDownload_UpstreamErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewGraphClient("https://graph.example", 5*time.Second)
	_, err := client.Download(context.Background(), "token", srv.URL)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrUpstream)
}

func TestDownload_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	client := NewGraphClient("https://graph.example", 5*time.Second)
	_, err := client.Download(ctx, "token", srv.URL)

	require.Error(t, err)
}
