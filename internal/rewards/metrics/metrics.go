package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the contributor ledger engine.
type Metrics struct {
	// Ledger entries created, by reward type
	RewardsGranted *prometheus.CounterVec

	// Free weeks granted, by reward type
	WeeksGranted *prometheus.CounterVec

	// Redemption requests satisfied
	Redemptions prometheus.Counter

	// Free weeks consumed by redemptions
	WeeksRedeemed prometheus.Counter

	// Tier upgrades applied, by tier reached
	TierUpgrades *prometheus.CounterVec

	// Ledger entries flipped to expired by maintenance passes
	EntriesExpired prometheus.Counter
}

// New creates a new Metrics instance with all ledger metrics registered.
func New() *Metrics {
	return &Metrics{
		RewardsGranted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "goldleaves_rewards_granted_total",
			Help: "Total reward ledger entries created by reward type",
		}, []string{"reward_type"}),

		WeeksGranted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "goldleaves_rewards_weeks_granted_total",
			Help: "Total free weeks granted by reward type",
		}, []string{"reward_type"}),

		Redemptions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "goldleaves_rewards_redemptions_total",
			Help: "Total redemption requests satisfied",
		}),

		WeeksRedeemed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "goldleaves_rewards_weeks_redeemed_total",
			Help: "Total free weeks consumed by redemptions",
		}),

		TierUpgrades: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "goldleaves_rewards_tier_upgrades_total",
			Help: "Total tier upgrades applied by tier reached",
		}, []string{"tier"}),

		EntriesExpired: promauto.NewCounter(prometheus.CounterOpts{
			Name: "goldleaves_rewards_entries_expired_total",
			Help: "Total ledger entries flipped to expired",
		}),
	}
}

// IncrementGrant records one ledger entry of the given type and size.
func (m *Metrics) IncrementGrant(rewardType string, weeks int) {
	if m != nil {
		m.RewardsGranted.WithLabelValues(rewardType).Inc()
		m.WeeksGranted.WithLabelValues(rewardType).Add(float64(weeks))
	}
}

// IncrementRedemption records one satisfied redemption.
func (m *Metrics) IncrementRedemption(weeks int) {
	if m != nil {
		m.Redemptions.Inc()
		m.WeeksRedeemed.Add(float64(weeks))
	}
}

// IncrementTierUpgrade records a tier upgrade.
func (m *Metrics) IncrementTierUpgrade(tier string) {
	if m != nil {
		m.TierUpgrades.WithLabelValues(tier).Inc()
	}
}

// AddExpired records entries flipped to expired by a maintenance pass.
func (m *Metrics) AddExpired(n int) {
	if m != nil && n > 0 {
		m.EntriesExpired.Add(float64(n))
	}
}
