package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_FirstSourceHits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sourceA/search", r.URL.Path)
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "SONE-760", body["moviecode"])

		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"movie_code": "SONE-760",
				"title":      "The Same Commute Train As Always",
				"actress":    []string{"Ruri Saijo"},
			},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "test-token", []string{"sourceA", "sourceB"}, 100, 10)
	record, err := c.Search(context.Background(), "SONE-760")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "SONE-760", record.MovieCode)
	assert.Equal(t, []string{"Ruri Saijo"}, record.Actress)
}

func TestSearch_FallsThroughToSecondSource(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/sourceA/search" {
			json.NewEncoder(w).Encode(map[string]any{"success": false, "data": nil})
			return
		}
		atomic.AddInt32(&hits, 1)
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"movie_code": "SONE-760", "title": "Title", "actress": []string{"A"}},
		})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", []string{"sourceA", "sourceB"}, 100, 10)
	record, err := c.Search(context.Background(), "SONE-760")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.EqualValues(t, 1, hits)
}

func TestSearch_AllMiss_RetriesOnceThenReturnsNone(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		json.NewEncoder(w).Encode(map[string]any{"success": false, "data": nil})
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", []string{"sourceA", "sourceB"}, 100, 10)
	record, err := c.Search(context.Background(), "SONE-760")
	require.NoError(t, err)
	assert.Nil(t, record)
	assert.EqualValues(t, 4, calls) // 2 sources x 2 passes
}

func TestSearch_NonTwoXXIsAMiss(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", []string{"sourceA"}, 100, 10)
	record, err := c.Search(context.Background(), "SONE-760")
	require.NoError(t, err)
	assert.Nil(t, record)
}
