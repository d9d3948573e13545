package fred

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
)

// lastUpdatedLayout is FRED's "2024-01-26 07:51:02-06"
const lastUpdatedLayout = "2006-01-02 15:04:05-07"

// SeriesResponse is the /series payload
type SeriesResponse struct {
	Series []SeriesInfo `json:"seriess"`
}

// SeriesInfo describes one FRED series
type SeriesInfo struct {
	ID                      string `json:"id"`
	Title                   string `json:"title"`
	Frequency               string `json:"frequency"`
	FrequencyShort          string `json:"frequency_short"`
	Units                   string `json:"units"`
	SeasonalAdjustment      string `json:"seasonal_adjustment"`
	SeasonalAdjustmentShort string `json:"seasonal_adjustment_short"`
	LastUpdated             string `json:"last_updated"`
}

// Descriptor fetches provider metadata for one series. Category is left
// empty; it belongs to the registry.
func (c *Client) Descriptor(ctx context.Context, seriesID string) (*contracts.SeriesDescriptor, error) {
	var resp SeriesResponse
	u := c.endpoint("/series", url.Values{"series_id": {seriesID}})
	if err := c.http.GetJSON(ctx, u, &resp); err != nil {
		return nil, classify("descriptor", seriesID, err)
	}

	if len(resp.Series) == 0 {
		return nil, &contracts.ProviderError{
			Kind:     contracts.ProviderNotFound,
			SeriesID: seriesID,
			Op:       "descriptor",
			Err:      errors.New("empty series list"),
		}
	}

	info := resp.Series[0]
	freq, err := contracts.ParseFrequency(info.FrequencyShort)
	if err != nil {
		freq, err = contracts.ParseFrequency(info.Frequency)
	}
	if err != nil {
		// the registry frequency still applies; Merge skips invalid values
		c.logger.WithSeries(seriesID).WithField("frequency", info.Frequency).Warn("Unsupported provider frequency")
	}

	updated, _ := time.Parse(lastUpdatedLayout, info.LastUpdated)

	return &contracts.SeriesDescriptor{
		ID:                 info.ID,
		Title:              info.Title,
		Frequency:          freq,
		Units:              info.Units,
		SeasonallyAdjusted: isSeasonallyAdjusted(info),
		LastUpdated:        updated.UTC(),
	}, nil
}

func isSeasonallyAdjusted(info SeriesInfo) bool {
	short := strings.ToUpper(info.SeasonalAdjustmentShort)
	if short != "" {
		return short != "NSA"
	}
	return strings.HasPrefix(info.SeasonalAdjustment, "Seasonally Adjusted")
}
