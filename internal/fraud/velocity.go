package fraud

import (
	"context"
	"time"
)

// EarningVelocityCollector compares an account's lifetime earning rate
// against what the daily claim limit makes theoretically possible.
type EarningVelocityCollector struct {
	accounts AccountReader
	balances BalanceReader
	config   Config
}

// NewEarningVelocityCollector creates a new EarningVelocityCollector
func NewEarningVelocityCollector(accounts AccountReader, balances BalanceReader, config Config) *EarningVelocityCollector {
	return &EarningVelocityCollector{accounts: accounts, balances: balances, config: config}
}

func (c *EarningVelocityCollector) Name() string { return "earning_velocity" }

func (c *EarningVelocityCollector) Collect(ctx context.Context, userID string) (Signal, error) {
	var sig Signal

	user, err := c.accounts.GetByID(ctx, userID)
	if err != nil {
		return Signal{}, err
	}

	_, totalEarned, err := c.balances.GetBalance(ctx, userID)
	if err != nil {
		return Signal{}, err
	}

	accountAgeDays := int(time.Since(user.CreatedAt).Hours() / 24)
	if accountAgeDays < 1 {
		accountAgeDays = 1
	}
	dailyAverage := float64(totalEarned) / float64(accountAgeDays)

	// The hard ceiling is the theoretical maximum a legitimate account can
	// earn in a day; the soft ceiling sits at 80% of it.
	hardCeiling := float64(c.config.DailyClaimLimit * c.config.PointsPerView)
	softCeiling := hardCeiling * 0.8

	if dailyAverage > softCeiling {
		sig.Flags = append(sig.Flags, "abnormal_earning_rate")
		sig.Score += 0.5
	}

	if dailyAverage > hardCeiling {
		sig.Flags = append(sig.Flags, "impossible_earning_rate")
		sig.Score += 0.8
	}

	sig.Score = clamp(sig.Score)
	return sig, nil
}
