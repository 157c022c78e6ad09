package fraud

import "context"

// TimingAnomalyCollector inspects reported watch durations for values that a
// real playback could not have produced.
type TimingAnomalyCollector struct {
	activity ActivityHistory
	config   Config
}

// NewTimingAnomalyCollector creates a new TimingAnomalyCollector
func NewTimingAnomalyCollector(activity ActivityHistory, config Config) *TimingAnomalyCollector {
	return &TimingAnomalyCollector{activity: activity, config: config}
}

func (c *TimingAnomalyCollector) Name() string { return "timing_anomaly" }

func (c *TimingAnomalyCollector) Collect(ctx context.Context, userID string) (Signal, error) {
	var sig Signal

	views, err := c.activity.ListRecent(ctx, userID, 50)
	if err != nil {
		return Signal{}, err
	}
	if len(views) == 0 {
		return Signal{}, nil
	}

	total := len(views)
	var invalid, perfect, rapid int
	for _, v := range views {
		d := v.WatchDuration
		if d < c.config.MinWatchSeconds || d > c.config.MaxWatchSeconds {
			invalid++
		}
		if d == c.config.NominalAdSeconds {
			perfect++
		}
		if d < c.config.NominalAdSeconds-2 {
			rapid++
		}
	}

	if invalid > 0 {
		sig.Flags = append(sig.Flags, "invalid_watch_duration")
		sig.Score += 0.3 * float64(invalid) / float64(total)
	}

	// Humans never hit the nominal length on every single view.
	if float64(perfect)/float64(total) > 0.95 {
		sig.Flags = append(sig.Flags, "suspiciously_perfect_timing")
		sig.Score += 0.4
	}

	if float64(rapid) > float64(total)*0.3 {
		sig.Flags = append(sig.Flags, "rapid_completion_pattern")
		sig.Score += 0.5
	}

	sig.Score = clamp(sig.Score)
	return sig, nil
}
