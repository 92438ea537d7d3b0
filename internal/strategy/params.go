package strategy

// Params holds every tunable constant of the scoring pipeline.
type Params struct {
	Velocity    VelocityParams    `yaml:"velocity"`
	Consistency ConsistencyParams `yaml:"consistency"`
	Volume      VolumeParams      `yaml:"volume"`
	Persistence PersistenceParams `yaml:"persistence"`
	RedFlags    RedFlagParams     `yaml:"red_flags"`
	Market      MarketParams      `yaml:"market"`
	Phase       PhaseParams       `yaml:"phase"`
}

type VelocityParams struct {
	MinSpanDays float64 `yaml:"min_span_days"` // shorter effective windows are insufficient
}

type ConsistencyParams struct {
	MinMeanChange float64 `yaml:"min_mean_change"` // |μ| below this scores 0
	MinChanges    int     `yaml:"min_changes"`
}

type VolumeParams struct {
	ConsistencyWeight  float64 `yaml:"consistency_weight"`
	DistributionWeight float64 `yaml:"distribution_weight"`
	LeadWeight         float64 `yaml:"lead_weight"`
	MinLeadPairs       int     `yaml:"min_lead_pairs"`
}

type PersistenceParams struct {
	GraceDays     float64 `yaml:"grace_days"`
	BandTolerance float64 `yaml:"band_tolerance"` // fraction of peak rank
}

type RedFlagParams struct {
	ExtremePumpJump     int      `yaml:"extreme_pump_jump"`
	ExtremePumpDays     float64  `yaml:"extreme_pump_days"`
	ExtremePumpPoints   float64  `yaml:"extreme_pump_points"`
	ConcentrationShare  float64  `yaml:"concentration_share"`
	ConcentrationPoints float64  `yaml:"concentration_points"`
	PumpGroupMaxPoints  float64  `yaml:"pump_group_max_points"`
	DormantDays         float64  `yaml:"dormant_days"`
	DormantPoints       float64  `yaml:"dormant_points"`
	LowPresencePoints   float64  `yaml:"low_presence_points"`
	TopTierExchanges    []string `yaml:"top_tier_exchanges"`
	Cap                 float64  `yaml:"cap"`
}

type MarketParams struct {
	LowDominance  float64 `yaml:"low_dominance"`  // below: altcoin-friendly
	HighDominance float64 `yaml:"high_dominance"` // above: risk-off
	TrendDelta    float64 `yaml:"trend_delta"`    // 0 disables trend adjustment
}

type PhaseParams struct {
	ValidatedAfterDays int     `yaml:"validated_after_days"`
	EarlyThreshold     float64 `yaml:"early_threshold"`
	ValidatedThreshold float64 `yaml:"validated_threshold"`
}

// DefaultParams returns the documented baseline constants.
func DefaultParams() Params {
	return Params{
		Velocity:    VelocityParams{MinSpanDays: 1},
		Consistency: ConsistencyParams{MinMeanChange: 0.1, MinChanges: 2},
		Volume: VolumeParams{
			ConsistencyWeight:  0.4,
			DistributionWeight: 0.3,
			LeadWeight:         0.3,
			MinLeadPairs:       3,
		},
		Persistence: PersistenceParams{GraceDays: 7, BandTolerance: 0.10},
		RedFlags: RedFlagParams{
			ExtremePumpJump:     100,
			ExtremePumpDays:     7,
			ExtremePumpPoints:   30,
			ConcentrationShare:  0.80,
			ConcentrationPoints: 20,
			PumpGroupMaxPoints:  15,
			DormantDays:         90,
			DormantPoints:       3,
			LowPresencePoints:   1,
			TopTierExchanges: []string{
				"binance", "coinbase", "kraken", "okx", "bybit",
				"kucoin", "bitget", "gate", "htx", "mexc",
			},
			Cap: 100,
		},
		Market: MarketParams{LowDominance: 40, HighDominance: 50},
		Phase: PhaseParams{
			ValidatedAfterDays: 21,
			EarlyThreshold:     5.0,
			ValidatedThreshold: 6.0,
		},
	}
}
