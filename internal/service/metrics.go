package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MiningSessions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mining_sessions_total",
			Help: "Mining session transitions",
		},
		[]string{"event"},
	)
	MiningRewards = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "mining_rewards_ton_total",
			Help: "Sum of rewards credited by completed sessions",
		},
	)
	ReferralRegistrations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_registrations_total",
			Help: "Referral registrations by result",
		},
		[]string{"result"},
	)
	UpgradePurchases = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upgrade_purchases_total",
			Help: "Upgrade purchases by product and result",
		},
		[]string{"product", "result"},
	)
)

func init() {
	prometheus.MustRegister(MiningSessions)
	prometheus.MustRegister(MiningRewards)
	prometheus.MustRegister(ReferralRegistrations)
	prometheus.MustRegister(UpgradePurchases)
}
