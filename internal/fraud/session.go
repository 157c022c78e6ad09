package fraud

import (
	"context"
	"time"

	"github.com/saqrlabs/trustcore/internal/models"
)

const (
	// sessionLookback is the window session behavior is judged over.
	sessionLookback = 7 * 24 * time.Hour

	// sessionGap splits a user's activity stream into sessions: a pause
	// longer than this starts a new session.
	sessionGap = 30 * time.Minute
)

// SessionPatternCollector looks for always-on accounts (activity in every
// hour of the day, so no sleep) and accounts whose sessions all last exactly
// the same length.
type SessionPatternCollector struct {
	activity ActivityHistory
	accounts AccountReader
	sessions SessionStarts
}

// NewSessionPatternCollector creates a new SessionPatternCollector
func NewSessionPatternCollector(activity ActivityHistory, accounts AccountReader, sessions SessionStarts) *SessionPatternCollector {
	return &SessionPatternCollector{activity: activity, accounts: accounts, sessions: sessions}
}

func (c *SessionPatternCollector) Name() string { return "session_pattern" }

func (c *SessionPatternCollector) Collect(ctx context.Context, userID string) (Signal, error) {
	var sig Signal
	since := time.Now().Add(-sessionLookback)

	user, err := c.accounts.GetByID(ctx, userID)
	if err != nil {
		return Signal{}, err
	}

	records, err := c.activity.ListSince(ctx, userID, since, 500)
	if err != nil {
		return Signal{}, err
	}
	if len(records) == 0 {
		return Signal{}, nil
	}

	starts, lengths := clusterSessions(records)

	hours := make(map[int]bool)
	for _, s := range starts {
		hours[s.UTC().Hour()] = true
	}
	loginHours, err := c.sessions.SessionStartHours(ctx, user.Email, since)
	if err != nil {
		return Signal{}, err
	}
	for _, h := range loginHours {
		hours[h] = true
	}

	if len(hours) == 24 {
		sig.Flags = append(sig.Flags, "no_sleep_pattern")
		sig.Score += 0.3
	}

	if len(lengths) > 1 && allEqual(lengths) {
		sig.Flags = append(sig.Flags, "identical_session_lengths")
		sig.Score += 0.4
	}

	sig.Score = clamp(sig.Score)
	return sig, nil
}

// clusterSessions groups a chronological activity stream into sessions and
// returns each session's start time and length in seconds.
func clusterSessions(records []*models.ActivityRecord) (starts []time.Time, lengths []int) {
	sessionStart := records[0].OccurredAt
	last := records[0].OccurredAt

	for _, rec := range records[1:] {
		if rec.OccurredAt.Sub(last) > sessionGap {
			starts = append(starts, sessionStart)
			lengths = append(lengths, int(last.Sub(sessionStart).Seconds()))
			sessionStart = rec.OccurredAt
		}
		last = rec.OccurredAt
	}

	starts = append(starts, sessionStart)
	lengths = append(lengths, int(last.Sub(sessionStart).Seconds()))
	return starts, lengths
}

func allEqual(values []int) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}
