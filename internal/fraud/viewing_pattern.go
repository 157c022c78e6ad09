package fraud

import (
	"context"
	"math"
	"time"
)

// ViewingPatternCollector flags users who watch far more than the configured
// caps allow, and users whose views arrive with mechanical regularity.
type ViewingPatternCollector struct {
	activity ActivityHistory
	config   Config
}

// NewViewingPatternCollector creates a new ViewingPatternCollector
func NewViewingPatternCollector(activity ActivityHistory, config Config) *ViewingPatternCollector {
	return &ViewingPatternCollector{activity: activity, config: config}
}

func (c *ViewingPatternCollector) Name() string { return "viewing_pattern" }

func (c *ViewingPatternCollector) Collect(ctx context.Context, userID string) (Signal, error) {
	var sig Signal
	now := time.Now()
	hourAgo := now.Add(-time.Hour)
	dayAgo := now.Add(-24 * time.Hour)

	hourViews, err := c.activity.CountSince(ctx, userID, hourAgo)
	if err != nil {
		return Signal{}, err
	}
	dayViews, err := c.activity.CountSince(ctx, userID, dayAgo)
	if err != nil {
		return Signal{}, err
	}

	if hourViews > c.config.MaxAdsPerHour {
		sig.Flags = append(sig.Flags, "excessive_hourly_views")
		sig.Score += 0.4
	}

	if float64(dayViews) > float64(c.config.MaxAdsPerDay)*1.5 {
		sig.Flags = append(sig.Flags, "excessive_daily_views")
		sig.Score += 0.5
	}

	// A standard deviation under 2 seconds across the last hour's intervals
	// means the views are arriving on a timer, not from a human.
	views, err := c.activity.ListSince(ctx, userID, hourAgo, 100)
	if err != nil {
		return Signal{}, err
	}

	if len(views) >= 3 {
		intervals := make([]float64, 0, len(views)-1)
		for i := 1; i < len(views); i++ {
			intervals = append(intervals, views[i].OccurredAt.Sub(views[i-1].OccurredAt).Seconds())
		}

		if len(intervals) >= 3 && stddev(intervals) < 2 {
			sig.Flags = append(sig.Flags, "bot_like_timing")
			sig.Score += 0.6
		}
	}

	sig.Score = clamp(sig.Score)
	return sig, nil
}

// stddev returns the sample standard deviation.
func stddev(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(len(values) - 1)

	return math.Sqrt(variance)
}
