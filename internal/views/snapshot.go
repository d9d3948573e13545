// Package views derives the dashboard projections from stored metrics.
// Everything here is recomputed on read; nothing is persisted.
package views

import (
	"sort"
	"time"

	"github.com/RuizOsvaldo/economic-dashboard/internal/store"
)

// SnapshotStatus buckets a z-score for display
type SnapshotStatus string

const (
	StatusSignificantlyAbove SnapshotStatus = "significantly above normal"
	StatusAbove              SnapshotStatus = "above normal"
	StatusNormal             SnapshotStatus = "normal range"
	StatusBelow              SnapshotStatus = "below normal"
	StatusSignificantlyBelow SnapshotStatus = "significantly below normal"
)

// StatusFor maps a z-score to its bucket. A null score is "normal range".
func StatusFor(z *float64) SnapshotStatus {
	if z == nil {
		return StatusNormal
	}
	switch {
	case *z > 1.5:
		return StatusSignificantlyAbove
	case *z > 0.5:
		return StatusAbove
	case *z < -1.5:
		return StatusSignificantlyBelow
	case *z < -0.5:
		return StatusBelow
	}
	return StatusNormal
}

// SnapshotRow is the latest reading of one indicator
type SnapshotRow struct {
	SeriesID       string         `json:"series_id"`
	Title          string         `json:"title"`
	Category       string         `json:"category"`
	Units          string         `json:"units"`
	Date           time.Time      `json:"observation_date"`
	Value          *float64       `json:"value"`
	MoMChange      *float64       `json:"mom_change"`
	YoYChange      *float64       `json:"yoy_change"`
	ZScore         *float64       `json:"z_score"`
	PercentileRank *float64       `json:"percentile_rank"`
	Status         SnapshotStatus `json:"status"`
}

// BuildSnapshot turns the store's latest rows into snapshot rows ordered by
// category, then title
func BuildSnapshot(latest []store.LatestMetric) []SnapshotRow {
	rows := make([]SnapshotRow, 0, len(latest))
	for _, l := range latest {
		m := l.Metric
		rows = append(rows, SnapshotRow{
			SeriesID:       l.Descriptor.ID,
			Title:          l.Descriptor.Title,
			Category:       l.Descriptor.Category,
			Units:          l.Descriptor.Units,
			Date:           m.Date,
			Value:          m.Value,
			MoMChange:      m.MoMChange,
			YoYChange:      m.YoYChange,
			ZScore:         m.ZScore,
			PercentileRank: m.PercentileRank,
			Status:         StatusFor(m.ZScore),
		})
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Category != rows[j].Category {
			return rows[i].Category < rows[j].Category
		}
		return rows[i].Title < rows[j].Title
	})
	return rows
}
