package fred

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RuizOsvaldo/economic-dashboard/internal/contracts"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/config"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/httputil"
	"github.com/RuizOsvaldo/economic-dashboard/pkg/logger"
)

func newTestClient(baseURL string) *Client {
	httpClient := httputil.New(&config.Config{}, logger.Nop()).WithRetry(1, time.Millisecond)
	return NewClient(httpClient, "test-key", baseURL, logger.Nop())
}

// observationServer serves rows in pages honoring limit/offset
func observationServer(t *testing.T, rows []ObservationRow, requests *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/series/observations", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "test-key", q.Get("api_key"))
		assert.Equal(t, "json", q.Get("file_type"))
		assert.Equal(t, "asc", q.Get("sort_order"))
		if requests != nil {
			atomic.AddInt32(requests, 1)
		}

		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))
		end := offset + limit
		if end > len(rows) {
			end = len(rows)
		}
		page := []ObservationRow{}
		if offset < len(rows) {
			page = rows[offset:end]
		}

		json.NewEncoder(w).Encode(ObservationsResponse{
			Count:        len(rows),
			Offset:       offset,
			Limit:        limit,
			Observations: page,
		})
	}))
}

func collect(t *testing.T, c *Client, id string, bounds contracts.Bounds) ([]contracts.Observation, []error) {
	t.Helper()
	var obs []contracts.Observation
	var errs []error
	for o, err := range c.Observations(context.Background(), id, bounds) {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		obs = append(obs, o)
	}
	return obs, errs
}

func TestObservations_Paginates(t *testing.T) {
	rows := []ObservationRow{
		{Date: "2024-01-01", Value: "3.7"},
		{Date: "2024-02-01", Value: "3.9"},
		{Date: "2024-03-01", Value: "."},
		{Date: "2024-04-01", Value: "3.9"},
		{Date: "2024-05-01", Value: "4.0"},
	}
	var requests int32
	server := observationServer(t, rows, &requests)
	defer server.Close()

	obs, errs := collect(t, newTestClient(server.URL).WithPageSize(2), "UNRATE", contracts.Bounds{})
	require.Empty(t, errs)
	require.Len(t, obs, 5)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))

	assert.Equal(t, "UNRATE", obs[0].SeriesID)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), obs[0].Date)
	assert.Equal(t, 3.7, *obs[0].Value)
	assert.Nil(t, obs[2].Value, "missing marker becomes null")
	assert.Equal(t, 4.0, *obs[4].Value)
}

func TestObservations_StopsWhenConsumerStops(t *testing.T) {
	rows := make([]ObservationRow, 10)
	for i := range rows {
		rows[i] = ObservationRow{Date: time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC).Format("2006-01-02"), Value: "1"}
	}
	var requests int32
	server := observationServer(t, rows, &requests)
	defer server.Close()

	client := newTestClient(server.URL).WithPageSize(3)
	taken := 0
	for _, err := range client.Observations(context.Background(), "DGS10", contracts.Bounds{}) {
		require.NoError(t, err)
		taken++
		if taken == 2 {
			break
		}
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestObservations_DataQuality(t *testing.T) {
	rows := []ObservationRow{
		{Date: "2024-01-01", Value: "1.5"},
		{Date: "2024-01-08", Value: "n/a"},
		{Date: "not-a-date", Value: "2"},
		{Date: "2024-01-22", Value: "NaN"},
		{Date: "2024-01-29", Value: "2.5"},
	}
	server := observationServer(t, rows, nil)
	defer server.Close()

	obs, errs := collect(t, newTestClient(server.URL), "ICSA", contracts.Bounds{})
	require.Len(t, obs, 2)
	require.Len(t, errs, 3)
	for _, err := range errs {
		assert.True(t, contracts.IsDataQuality(err), "got %v", err)
	}
}

func TestObservations_Bounds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2000-01-01", r.URL.Query().Get("observation_start"))
		assert.Equal(t, "2024-12-31", r.URL.Query().Get("observation_end"))
		w.Write([]byte(`{"count":0,"offset":0,"limit":100000,"observations":[]}`))
	}))
	defer server.Close()

	obs, errs := collect(t, newTestClient(server.URL), "GDP", contracts.Bounds{
		Start: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC),
	})
	assert.Empty(t, obs)
	assert.Empty(t, errs)
}

func TestObservations_ProviderErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   contracts.ProviderErrorKind
	}{
		{"unknown series", http.StatusBadRequest, `{"error_code":400,"error_message":"Bad Request.  The series does not exist."}`, contracts.ProviderNotFound},
		{"bad api key", http.StatusBadRequest, `{"error_code":400,"error_message":"Bad Request.  The value for variable api_key is not registered."}`, contracts.ProviderPermanent},
		{"rate limited", http.StatusTooManyRequests, `{"error_code":429,"error_message":"Too Many Requests."}`, contracts.ProviderRateLimited},
		{"server error", http.StatusInternalServerError, `oops`, contracts.ProviderTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			obs, errs := collect(t, newTestClient(server.URL), "NOPE", contracts.Bounds{})
			assert.Empty(t, obs)
			require.Len(t, errs, 1)

			var pe *contracts.ProviderError
			require.True(t, errors.As(errs[0], &pe))
			assert.Equal(t, tt.want, pe.Kind)
			assert.Equal(t, "NOPE", pe.SeriesID)
			assert.NotContains(t, pe.Error(), "test-key")
		})
	}
}

func TestDescriptor(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/series", r.URL.Path)
		assert.Equal(t, "ICSA", r.URL.Query().Get("series_id"))
		w.Write([]byte(`{"seriess":[{
			"id":"ICSA",
			"title":"Initial Claims",
			"frequency":"Weekly, Ending Saturday",
			"frequency_short":"W",
			"units":"Number",
			"seasonal_adjustment":"Seasonally Adjusted",
			"seasonal_adjustment_short":"SA",
			"last_updated":"2026-10-15 07:31:03-05"
		}]}`))
	}))
	defer server.Close()

	desc, err := newTestClient(server.URL).Descriptor(context.Background(), "ICSA")
	require.NoError(t, err)

	assert.Equal(t, "ICSA", desc.ID)
	assert.Equal(t, "Initial Claims", desc.Title)
	assert.Equal(t, contracts.FrequencyWeekly, desc.Frequency)
	assert.Equal(t, "Number", desc.Units)
	assert.True(t, desc.SeasonallyAdjusted)
	assert.Equal(t, time.Date(2026, 10, 15, 12, 31, 3, 0, time.UTC), desc.LastUpdated)
	assert.Empty(t, desc.Category)
}

func TestDescriptor_NotSeasonallyAdjusted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"seriess":[{"id":"DGS10","title":"10-Year","frequency_short":"D","units":"Percent","seasonal_adjustment_short":"NSA"}]}`))
	}))
	defer server.Close()

	desc, err := newTestClient(server.URL).Descriptor(context.Background(), "DGS10")
	require.NoError(t, err)
	assert.False(t, desc.SeasonallyAdjusted)
	assert.Equal(t, contracts.FrequencyDaily, desc.Frequency)
	assert.True(t, desc.LastUpdated.IsZero())
}

func TestDescriptor_Empty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"seriess":[]}`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).Descriptor(context.Background(), "GONE")
	assert.True(t, contracts.IsNotFound(err))
}
