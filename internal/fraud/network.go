package fraud

import (
	"context"
	"time"
)

// ipLookback bounds how far back IP history is considered.
const ipLookback = 30 * 24 * time.Hour

// maxSharedIPChecks caps how many of the user's IPs are cross-checked for
// sharing with other accounts.
const maxSharedIPChecks = 5

// IPMultiplicityCollector flags accounts seen from an implausible number of
// networks, and IPs shared by more accounts than one household explains.
type IPMultiplicityCollector struct {
	activity ActivityHistory
	config   Config
}

// NewIPMultiplicityCollector creates a new IPMultiplicityCollector
func NewIPMultiplicityCollector(activity ActivityHistory, config Config) *IPMultiplicityCollector {
	return &IPMultiplicityCollector{activity: activity, config: config}
}

func (c *IPMultiplicityCollector) Name() string { return "ip_multiplicity" }

func (c *IPMultiplicityCollector) Collect(ctx context.Context, userID string) (Signal, error) {
	var sig Signal

	ips, err := c.activity.DistinctIPs(ctx, userID, time.Now().Add(-ipLookback))
	if err != nil {
		return Signal{}, err
	}

	if len(ips) > 10 {
		sig.Flags = append(sig.Flags, "potential_vpn_usage")
		sig.Score += 0.2
	}

	checked := ips
	if len(checked) > maxSharedIPChecks {
		checked = checked[:maxSharedIPChecks]
	}
	for _, ip := range checked {
		accounts, err := c.activity.CountAccountsForIP(ctx, ip)
		if err != nil {
			return Signal{}, err
		}
		if accounts > c.config.MaxAccountsPerIP {
			sig.Flags = append(sig.Flags, "multi_account_ip")
			sig.Score += 0.4
			break
		}
	}

	sig.Score = clamp(sig.Score)
	return sig, nil
}
