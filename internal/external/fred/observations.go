package fred

import (
	"context"
	"iter"
	"net/url"
	"strconv"
	"strings"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
)

// MissingValue is FRED's marker for a period with no data
const MissingValue = "."

// ObservationsResponse is one page of /series/observations
type ObservationsResponse struct {
	Count        int              `json:"count"`
	Offset       int              `json:"offset"`
	Limit        int              `json:"limit"`
	Observations []ObservationRow `json:"observations"`
}

// ObservationRow is a raw observation; values arrive as strings
type ObservationRow struct {
	Date  string `json:"date"`
	Value string `json:"value"`
}

// Observations pages through the series in ascending date order. Pages are
// requested only as the caller consumes the sequence.
func (c *Client) Observations(ctx context.Context, seriesID string, bounds contracts.Bounds) iter.Seq2[contracts.Observation, error] {
	return func(yield func(contracts.Observation, error) bool) {
		offset := 0
		for {
			page, err := c.fetchPage(ctx, seriesID, bounds, offset)
			if err != nil {
				yield(contracts.Observation{}, err)
				return
			}

			for _, row := range page.Observations {
				obs, err := parseRow(seriesID, row)
				if !yield(obs, err) {
					return
				}
			}

			offset += len(page.Observations)
			if len(page.Observations) == 0 || offset >= page.Count {
				return
			}
		}
	}
}

func (c *Client) fetchPage(ctx context.Context, seriesID string, bounds contracts.Bounds, offset int) (*ObservationsResponse, error) {
	params := url.Values{
		"series_id":  {seriesID},
		"sort_order": {"asc"},
		"limit":      {strconv.Itoa(c.pageSize)},
		"offset":     {strconv.Itoa(offset)},
	}
	if !bounds.Start.IsZero() {
		params.Set("observation_start", contracts.FormatDate(bounds.Start))
	}
	if !bounds.End.IsZero() {
		params.Set("observation_end", contracts.FormatDate(bounds.End))
	}

	var page ObservationsResponse
	if err := c.http.GetJSON(ctx, c.endpoint("/series/observations", params), &page); err != nil {
		return nil, classify("observations", seriesID, err)
	}

	c.logger.WithSeries(seriesID).WithFields(map[string]interface{}{
		"offset": offset,
		"rows":   len(page.Observations),
		"count":  page.Count,
	}).Debug("Fetched observation page")

	return &page, nil
}

// parseRow converts one raw row. "." becomes a null observation; any other
// unparsable value is a DataQualityError.
func parseRow(seriesID string, row ObservationRow) (contracts.Observation, error) {
	date, err := contracts.ParseDate(row.Date)
	if err != nil {
		return contracts.Observation{}, &contracts.DataQualityError{
			SeriesID: seriesID, Date: row.Date, Raw: row.Value, Reason: "invalid date",
		}
	}

	obs := contracts.Observation{SeriesID: seriesID, Date: date}

	raw := strings.TrimSpace(row.Value)
	if raw == MissingValue || raw == "" {
		return obs, nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || !contracts.IsFinite(&v) {
		return contracts.Observation{}, &contracts.DataQualityError{
			SeriesID: seriesID, Date: row.Date, Raw: row.Value, Reason: "not a finite number",
		}
	}
	obs.Value = &v

	return obs, nil
}
