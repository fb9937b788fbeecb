// internal/fdc/client_test.go
package fdc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nutrition-agent/internal/config"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.LookupConfig{
		BaseURL:        srv.URL,
		APIKey:         "test-key",
		ResultLimit:    5,
		TimeoutSeconds: 5,
	}, zap.NewNop())
}

func TestSearchNormalizesNutrients(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/foods/search", r.URL.Path)
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))

		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2 large eggs", req.Query)
		assert.Equal(t, 5, req.PageSize)

		json.NewEncoder(w).Encode(searchResponse{Foods: []searchFood{
			{
				FdcID:       171287,
				Description: "Egg, whole, cooked, hard-boiled",
				FoodNutrients: []searchNutrient{
					{NutrientName: "Energy", Value: 155, UnitName: "KCAL"},
					{NutrientName: "Protein", Value: 13, UnitName: "G"},
					{NutrientName: "Total lipid (fat)", Value: 11, UnitName: "G"},
					{NutrientName: "Carbohydrate, by difference", Value: 1.1, UnitName: "G"},
					{NutrientName: "Sodium, Na", Value: 124, UnitName: "MG"},
				},
			},
			{FdcID: 748967, Description: "Eggs, scrambled"},
		}})
	})

	hits, err := client.Search(context.Background(), "2 large eggs")
	require.NoError(t, err)
	require.Len(t, hits, 2)

	first := hits[0].Food
	assert.Equal(t, 171287, first.ExternalID)
	assert.Equal(t, "Egg, whole, cooked, hard-boiled", first.Description)
	assert.InDelta(t, 155, first.CaloriesPer100g, 1e-9)
	assert.InDelta(t, 13, first.ProteinG, 1e-9)
	assert.InDelta(t, 11, first.FatG, 1e-9)
	assert.InDelta(t, 1.1, first.CarbsG, 1e-9)
	assert.NotEmpty(t, hits[0].Raw)

	// Missing nutrients default to zero.
	second := hits[1].Food
	assert.Zero(t, second.CaloriesPer100g)
	assert.Zero(t, second.ProteinG)
}

func TestSearchEmptyResultIsMiss(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(searchResponse{})
	})

	hits, err := client.Search(context.Background(), "dragonfruit smoothie")
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	})

	_, err := client.Search(context.Background(), "eggs")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
