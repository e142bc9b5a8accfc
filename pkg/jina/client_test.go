package jina

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_Success(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		assert.Equal(t, "/Desert Smiles Phoenix official website", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(SearchResponse{ //nolint:errcheck
			Code: 200,
			Data: []SearchResult{
				{Title: "Desert Smiles", URL: "https://desertsmiles.com"},
				{Title: "Desert Smiles - Yelp", URL: "https://www.yelp.com/biz/desert-smiles"},
			},
		})
	}))
	defer srv.Close()

	client := NewClient("test-key", WithSearchBaseURL(srv.URL))
	got, err := client.Search(context.Background(), "Desert Smiles Phoenix official website")

	require.NoError(t, err)
	require.Len(t, got.Data, 2)
	assert.Equal(t, "https://desertsmiles.com", got.Data[0].URL)
}

func TestSearch_WithSiteFilters(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, []string{"facebook.com", "instagram.com"}, r.URL.Query()["site"])
		json.NewEncoder(w).Encode(SearchResponse{Code: 200}) //nolint:errcheck
	}))
	defer srv.Close()

	client := NewClient("k", WithSearchBaseURL(srv.URL))
	_, err := client.Search(context.Background(), "acme", WithSiteFilter("facebook.com"), WithSiteFilter("instagram.com"))
	require.NoError(t, err)
}

func TestSearch_NoResults422(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	got, err := NewClient("k", WithSearchBaseURL(srv.URL)).Search(context.Background(), "nothing")
	require.NoError(t, err)
	assert.Empty(t, got.Data)
	assert.Equal(t, http.StatusUnprocessableEntity, got.Code)
}

func TestSearch_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`down`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := NewClient("k", WithSearchBaseURL(srv.URL)).Search(context.Background(), "acme")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
	assert.Contains(t, err.Error(), "503")
}

func TestSearch_MalformedJSON(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{broken`)) //nolint:errcheck
	}))
	defer srv.Close()

	_, err := NewClient("k", WithSearchBaseURL(srv.URL)).Search(context.Background(), "acme")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal search response")
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient("key").(*httpClient)
	assert.Equal(t, "https://s.jina.ai", c.searchBaseURL)
	assert.NotNil(t, c.http)

	hc := &http.Client{}
	c = NewClient("key", WithHTTPClient(hc), WithSearchBaseURL("")).(*httpClient)
	assert.Same(t, hc, c.http)
	assert.Equal(t, "https://s.jina.ai", c.searchBaseURL)
}
