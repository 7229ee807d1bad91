package blogapi_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dileepadev/blogsync/pkg/blogapi"
	"github.com/dileepadev/blogsync/pkg/blogapi/blogapitest"
)

func strPtr(s string) *string { return &s }

func TestListBlogs(t *testing.T) {
	srv := blogapitest.NewServer(blogapitest.WithRecords(
		blogapi.Record{Slug: "first", Index: 1},
		blogapi.Record{Slug: "second", Index: 2},
	))
	defer srv.Close()

	client := blogapi.New(srv.URL+"/", blogapitest.APIKey)

	records, err := client.ListBlogs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []blogapi.Record{
		{Slug: "first", Index: 1},
		{Slug: "second", Index: 2},
	}, records)
}

func TestListBlogsIgnoresOtherFields(t *testing.T) {
	srv := blogapitest.NewServer(blogapitest.WithRawList(`[
		{"_id": 17, "slug": "numeric-id", "index": 4, "title": {"en": "Old"}},
		{"_id": {"$oid": "65a1"}, "slug": "object-id", "index": 9, "tags": null, "title": 3}
	]`))
	defer srv.Close()

	records, err := blogapi.New(srv.URL, "").ListBlogs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []blogapi.Record{
		{Slug: "numeric-id", Index: 4},
		{Slug: "object-id", Index: 9},
	}, records)
}

func TestListBlogsErrors(t *testing.T) {
	t.Run("bad status", func(t *testing.T) {
		srv := blogapitest.NewServer(blogapitest.WithListStatus(http.StatusServiceUnavailable))
		defer srv.Close()

		_, err := blogapi.New(srv.URL, "").ListBlogs(context.Background())
		var statusErr *blogapi.StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
		assert.Equal(t, http.MethodGet, statusErr.Method)
		assert.Contains(t, statusErr.Body, "listing unavailable")
	})

	t.Run("undecodable body", func(t *testing.T) {
		srv := blogapitest.NewServer(blogapitest.WithRawList(`{"not": "a list"}`))
		defer srv.Close()

		_, err := blogapi.New(srv.URL, "").ListBlogs(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode blog list")
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := blogapi.New(url, "").ListBlogs(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "GET /blogs failed")
	})
}

func TestSyncBlog(t *testing.T) {
	srv := blogapitest.NewServer()
	defer srv.Close()

	client := blogapi.New(srv.URL, blogapitest.APIKey, blogapi.WithRunID("run-123"))
	resp, err := client.SyncBlog(context.Background(), blogapi.SyncRequest{
		Slug:      "hello",
		Index:     3,
		Title:     "Hello",
		Date:      strPtr("2024-01-01"),
		Link:      "https://blog.example.com/blog/hello",
		BannerURL: "",
	})
	require.NoError(t, err)
	assert.Equal(t, "id-hello", resp.ID)

	record, ok := srv.Record("hello")
	require.True(t, ok)
	assert.Equal(t, 3, record.Index)

	requests := srv.Requests()
	require.Len(t, requests, 1)
	require.NotNil(t, requests[0].Date)
	assert.Equal(t, "2024-01-01", *requests[0].Date)
	assert.Nil(t, requests[0].Excerpt)
	assert.Equal(t, []string{"run-123"}, srv.RunIDs())
}

func TestSyncBlogWireFormat(t *testing.T) {
	var (
		body    map[string]any
		headers http.Header
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/blogs/sync", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		headers = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		_, _ = w.Write([]byte(`{"_id":"abc"}`))
	}))
	defer srv.Close()

	client := blogapi.New(srv.URL, "secret", blogapi.WithUserAgent("blogsync-test"))
	resp, err := client.SyncBlog(context.Background(), blogapi.SyncRequest{
		Slug:  "post",
		Index: 1,
		Title: "Post",
		Link:  "https://blog.example.com/blog/post",
	})
	require.NoError(t, err)
	assert.Equal(t, "abc", resp.ID)

	assert.Equal(t, "secret", headers.Get("x-api-key"))
	assert.Equal(t, "application/json", headers.Get("Content-Type"))
	assert.Equal(t, "blogsync-test", headers.Get("User-Agent"))
	assert.Empty(t, headers.Get(blogapi.RunIDHeader))

	assert.Equal(t, map[string]any{
		"slug":      "post",
		"index":     float64(1),
		"title":     "Post",
		"link":      "https://blog.example.com/blog/post",
		"bannerUrl": "",
	}, body)
}

func TestSyncBlogErrors(t *testing.T) {
	t.Run("rejected slug", func(t *testing.T) {
		srv := blogapitest.NewServer(blogapitest.WithFailingSlug("bad", http.StatusUnprocessableEntity))
		defer srv.Close()

		_, err := blogapi.New(srv.URL, blogapitest.APIKey).SyncBlog(context.Background(), blogapi.SyncRequest{Slug: "bad", Index: 1, Title: "Bad"})
		var statusErr *blogapi.StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusUnprocessableEntity, statusErr.StatusCode)
		assert.Contains(t, statusErr.Error(), "sync rejected")
	})

	t.Run("wrong api key", func(t *testing.T) {
		srv := blogapitest.NewServer()
		defer srv.Close()

		_, err := blogapi.New(srv.URL, "wrong").SyncBlog(context.Background(), blogapi.SyncRequest{Slug: "a", Index: 1, Title: "A"})
		var statusErr *blogapi.StatusError
		require.True(t, errors.As(err, &statusErr))
		assert.Equal(t, http.StatusUnauthorized, statusErr.StatusCode)
	})

	t.Run("timeout", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		}))
		defer srv.Close()

		client := blogapi.New(srv.URL, "k", blogapi.WithTimeout(20*time.Millisecond))
		_, err := client.SyncBlog(context.Background(), blogapi.SyncRequest{Slug: "slow", Index: 1, Title: "Slow"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "POST /blogs/sync failed")
	})
}

func TestSyncBlogResponseID(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string id", `{"_id":"abc"}`, "abc"},
		{"numeric id", `{"_id":17,"slug":"post"}`, "17"},
		{"null id", `{"_id":null}`, ""},
		{"no id", `{"ok":true}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			resp, err := blogapi.New(srv.URL, "k").SyncBlog(context.Background(), blogapi.SyncRequest{Slug: "post", Index: 1, Title: "Post"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp.ID)
		})
	}
}

func TestSyncBlogWithoutResponseBody(t *testing.T) {
	srv := blogapitest.NewServer(blogapitest.WithoutResponseID())
	defer srv.Close()

	resp, err := blogapi.New(srv.URL, blogapitest.APIKey).SyncBlog(context.Background(), blogapi.SyncRequest{Slug: "a", Index: 1, Title: "A"})
	require.NoError(t, err)
	assert.Empty(t, resp.ID)
}

func TestStatusErrorMessage(t *testing.T) {
	err := &blogapi.StatusError{Method: "GET", URL: "https://api.example.com/blogs", StatusCode: 500}
	assert.Equal(t, "GET https://api.example.com/blogs returned status 500", err.Error())

	err.Body = "boom"
	assert.Equal(t, "GET https://api.example.com/blogs returned status 500: boom", err.Error())
}
