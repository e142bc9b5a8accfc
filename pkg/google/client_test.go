package google

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

func TestTextSearch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/places:searchText", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("X-Goog-Api-Key"))
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "places.websiteUri")
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "places.businessStatus")
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "nextPageToken")

		var body TextSearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "Cosmetic Dentistry in Phoenix, AZ", body.TextQuery)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"places": [{
				"id": "ChIJ-1",
				"displayName": {"text": "Desert Smiles", "languageCode": "en"},
				"formattedAddress": "1 Camelback Rd, Phoenix, AZ",
				"websiteUri": "https://desertsmiles.com/",
				"rating": 4.8,
				"userRatingCount": 212,
				"businessStatus": "OPERATIONAL",
				"priceLevel": "PRICE_LEVEL_EXPENSIVE"
			}],
			"nextPageToken": "tok-2"
		}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.TextSearch(context.Background(), TextSearchRequest{TextQuery: "Cosmetic Dentistry in Phoenix, AZ"})

	require.NoError(t, err)
	require.Len(t, resp.Places, 1)
	p := resp.Places[0]
	assert.Equal(t, "ChIJ-1", p.ID)
	assert.Equal(t, "Desert Smiles", p.DisplayName.Text)
	assert.Equal(t, "https://desertsmiles.com/", p.WebsiteURI)
	require.NotNil(t, p.Rating)
	assert.InDelta(t, 4.8, *p.Rating, 0.001)
	require.NotNil(t, p.UserRatingCount)
	assert.Equal(t, 212, *p.UserRatingCount)
	assert.Equal(t, "OPERATIONAL", p.BusinessStatus)
	assert.Contains(t, string(p.Raw), "PRICE_LEVEL_EXPENSIVE")
	assert.Equal(t, "tok-2", resp.NextPageToken)
}

func TestTextSearch_MissingRating(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"places": [{"id": "p1", "displayName": {"text": "New Shop"}}]}`))
	}))
	defer srv.Close()

	resp, err := NewClient("k", WithBaseURL(srv.URL)).TextSearch(context.Background(), TextSearchRequest{TextQuery: "x"})
	require.NoError(t, err)
	require.Len(t, resp.Places, 1)
	assert.Nil(t, resp.Places[0].Rating)
	assert.Nil(t, resp.Places[0].UserRatingCount)
}

func TestTextSearch_Pagination(t *testing.T) {
	callCount := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callCount++
		var body TextSearchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		if body.PageToken == "" {
			_, _ = w.Write([]byte(`{"places": [{"id": "place-1"}], "nextPageToken": "page-2"}`))
			return
		}
		assert.Equal(t, "page-2", body.PageToken)
		_, _ = w.Write([]byte(`{"places": [{"id": "place-2"}]}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))

	resp, err := client.TextSearch(context.Background(), TextSearchRequest{TextQuery: "test"})
	require.NoError(t, err)
	assert.Equal(t, "page-2", resp.NextPageToken)

	resp, err = client.TextSearch(context.Background(), TextSearchRequest{TextQuery: "test", PageToken: resp.NextPageToken})
	require.NoError(t, err)
	require.Len(t, resp.Places, 1)
	assert.Equal(t, "place-2", resp.Places[0].ID)
	assert.Empty(t, resp.NextPageToken)
	assert.Equal(t, 2, callCount)
}

func TestTextSearch_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": "rate limit exceeded"}`))
	}))
	defer srv.Close()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.TextSearch(context.Background(), TextSearchRequest{TextQuery: "test"})

	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Contains(t, err.Error(), "429")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
}

func TestTextSearch_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer srv.Close()

	_, err := NewClient("k", WithBaseURL(srv.URL)).TextSearch(context.Background(), TextSearchRequest{TextQuery: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "google: unmarshal response")
}

func TestTextSearch_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient("test-key", WithBaseURL(srv.URL))
	resp, err := client.TextSearch(ctx, TextSearchRequest{TextQuery: "test"})

	assert.Error(t, err)
	assert.Nil(t, resp)
}
