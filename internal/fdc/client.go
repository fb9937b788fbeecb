// internal/fdc/client.go
package fdc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"nutrition-agent/internal/config"
	"nutrition-agent/internal/models"
)

// Hit is one ranked result from the composition lookup service, with the
// nutrient map already normalized to the 100 g basis.
type Hit struct {
	Food models.ResolvedFood
	Raw  json.RawMessage
}

// Searcher is the lookup-service boundary consumed by the workflow's
// nutrition resolution. An empty slice means a lookup miss.
type Searcher interface {
	Search(ctx context.Context, query string) ([]Hit, error)
}

// Client queries the USDA FoodData Central search endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	limit      int
	httpClient *http.Client
	logger     *zap.Logger
}

func NewClient(cfg config.LookupConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		limit:   cfg.ResultLimit,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		logger: logger,
	}
}

type searchRequest struct {
	Query    string `json:"query"`
	PageSize int    `json:"pageSize"`
}

type searchResponse struct {
	Foods []searchFood `json:"foods"`
}

type searchFood struct {
	FdcID         int              `json:"fdcId"`
	Description   string           `json:"description"`
	FoodNutrients []searchNutrient `json:"foodNutrients"`
}

type searchNutrient struct {
	NutrientName string  `json:"nutrientName"`
	Value        float64 `json:"value"`
	UnitName     string  `json:"unitName"`
}

// Nutrient names used by FoodData Central's per-100 g reporting.
const (
	nutrientEnergy  = "Energy"
	nutrientProtein = "Protein"
	nutrientFat     = "Total lipid (fat)"
	nutrientCarbs   = "Carbohydrate, by difference"
)

// Search returns the ranked hits for a food description. Missing nutrients
// default to 0; an empty result list is returned as-is, not as an error.
func (c *Client) Search(ctx context.Context, query string) ([]Hit, error) {
	reqBody := searchRequest{Query: query, PageSize: c.limit}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	url := fmt.Sprintf("%s/foods/search?api_key=%s", c.baseURL, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("food search failed with status %d: %s", resp.StatusCode, string(body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	hits := make([]Hit, 0, len(result.Foods))
	for _, f := range result.Foods {
		raw, err := json.Marshal(f)
		if err != nil {
			return nil, fmt.Errorf("failed to re-marshal food %d: %w", f.FdcID, err)
		}
		hits = append(hits, Hit{Food: normalize(f), Raw: raw})
	}

	c.logger.Debug("food search completed",
		zap.String("query", query),
		zap.Int("hits", len(hits)))

	return hits, nil
}

// normalize flattens the nested nutrient list into the four tracked macro
// values on the service's canonical 100 g basis.
func normalize(f searchFood) models.ResolvedFood {
	food := models.ResolvedFood{
		ExternalID:  f.FdcID,
		Description: f.Description,
	}
	for _, n := range f.FoodNutrients {
		switch {
		case strings.EqualFold(n.NutrientName, nutrientEnergy):
			food.CaloriesPer100g = n.Value
		case strings.EqualFold(n.NutrientName, nutrientProtein):
			food.ProteinG = n.Value
		case strings.EqualFold(n.NutrientName, nutrientFat):
			food.FatG = n.Value
		case strings.EqualFold(n.NutrientName, nutrientCarbs):
			food.CarbsG = n.Value
		}
	}
	return food
}
