package fetch_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hlscap/internal/fetch"
	"hlscap/internal/logger"
	"hlscap/internal/media"
)

func TestDownloadRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte("fragment-data"))
	}))
	defer server.Close()

	d := fetch.NewDownloader(server.Client(), logger.Nop(), "test-agent")
	data, err := d.Download(context.Background(), media.Fragment{URL: server.URL + "/seg0.ts"})
	require.NoError(t, err)
	assert.Equal(t, []byte("fragment-data"), data)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDownloadGivesUpAfterMaxRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	d := fetch.NewDownloader(server.Client(), logger.Nop(), "")
	_, err := d.Download(context.Background(), media.Fragment{URL: server.URL + "/gone.ts"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
}

func TestDownloadSendsRangeHeader(t *testing.T) {
	var gotRange string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRange = r.Header.Get("Range")
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("partial"))
	}))
	defer server.Close()

	d := fetch.NewDownloader(server.Client(), logger.Nop(), "")
	data, err := d.Download(context.Background(), media.Fragment{
		URL:       server.URL + "/all.ts",
		ByteRange: &media.ByteRange{Start: 100, Length: 50},
	})
	require.NoError(t, err)
	assert.Equal(t, []byte("partial"), data)
	assert.Equal(t, "bytes=100-149", gotRange)
}

func TestDownloadHonorsCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := fetch.NewDownloader(server.Client(), logger.Nop(), "")
	_, err := d.Download(ctx, media.Fragment{URL: server.URL + "/seg.ts"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClientFetchFollowsOneRedirect(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old.m3u8", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new.m3u8", http.StatusFound)
	})
	mux.HandleFunc("/new.m3u8", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte("#EXTM3U\n"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	c := fetch.NewClient(logger.Nop(), "test-agent")
	body, finalURL, err := c.Fetch(context.Background(), server.URL+"/old.m3u8")
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U\n", string(body))
	assert.Equal(t, server.URL+"/new.m3u8", finalURL)
}

func TestClientFetchReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	c := fetch.NewClient(logger.Nop(), "")
	_, _, err := c.Fetch(context.Background(), server.URL+"/denied.m3u8")
	assert.Error(t, err)
}
