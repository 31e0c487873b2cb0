package model

// PlanType is a billing tier bounding what a user may configure.
type PlanType string

func (p PlanType) String() string {
	return string(p)
}

const (
	PlanFree    PlanType = "free"
	PlanStarter PlanType = "starter"
	PlanPro     PlanType = "pro"
)

// PlanConfig is the limit set attached to a plan tier.
type PlanConfig struct {
	Name               string `json:"name"`
	PriceUSD           int    `json:"priceUsd"`
	MaxChecks          int    `json:"maxChecks"`
	MinIntervalMinutes int    `json:"minIntervalMinutes"`
	MaxRegions         int    `json:"maxRegions"`
	DataRetentionDays  int    `json:"dataRetentionDays"`
	TelegramAlerts     bool   `json:"telegramAlerts"`

	// AlertCooldownMin is surfaced on the pricing page but is not consulted
	// by the alert dispatcher, which applies a fixed 30 minute cooldown for
	// every tier.
	AlertCooldownMin int `json:"alertCooldownMin"`
}

// plans is the single source of truth for tier limits.
var plans = map[PlanType]PlanConfig{
	PlanFree: {
		Name:               "Free",
		PriceUSD:           0,
		MaxChecks:          10,
		MinIntervalMinutes: 30,
		MaxRegions:         1,
		DataRetentionDays:  7,
		TelegramAlerts:     false,
		AlertCooldownMin:   30,
	},
	PlanStarter: {
		Name:               "Starter",
		PriceUSD:           5,
		MaxChecks:          50,
		MinIntervalMinutes: 1,
		MaxRegions:         3,
		DataRetentionDays:  30,
		TelegramAlerts:     true,
		AlertCooldownMin:   15,
	},
	PlanPro: {
		Name:               "Pro",
		PriceUSD:           15,
		MaxChecks:          200,
		MinIntervalMinutes: 1,
		MaxRegions:         5,
		DataRetentionDays:  90,
		TelegramAlerts:     true,
		AlertCooldownMin:   0,
	},
}

// PlanFor returns the limit set for a tier. Unknown tiers get the free
// limits rather than an error so a bad row cannot unlock anything.
func PlanFor(t PlanType) PlanConfig {
	if cfg, ok := plans[t]; ok {
		return cfg
	}
	return plans[PlanFree]
}

// AllPlans returns the full catalogue for the pricing endpoint.
func AllPlans() map[PlanType]PlanConfig {
	return plans
}
