package model

import "time"

// TrackingPhase selects the composite formula and the watch-list threshold.
type TrackingPhase string

const (
	PhaseEarly     TrackingPhase = "early"
	PhaseValidated TrackingPhase = "validated"
)

// MarketPhase is a descriptive label used only for display grouping.
type MarketPhase string

const (
	PhaseAccumulation MarketPhase = "accumulation"
	PhaseMarkup       MarketPhase = "markup"
	PhaseDistribution MarketPhase = "distribution"
	PhaseDecline      MarketPhase = "decline"
)

// ScoreSnapshot is the computed result for one asset, one window, one point in time.
type ScoreSnapshot struct {
	AssetID                 string        `json:"asset_id"`
	WindowDays              int           `json:"window_days"`
	Timestamp               time.Time     `json:"timestamp"`
	BaseVelocity            float64       `json:"base_velocity"`
	ConsistencyScore        float64       `json:"consistency_score"`
	VolumeScore             float64       `json:"volume_score"`
	PersistenceScore        float64       `json:"persistence_score"`
	RedFlagsPenalty         float64       `json:"red_flags_penalty"`
	MarketContextMultiplier float64       `json:"market_context_multiplier"`
	RRScore                 float64       `json:"rr_score"`
	Phase                   MarketPhase   `json:"phase"`
	TrackingPhase           TrackingPhase `json:"tracking_phase"`
	DaysTracking            int           `json:"days_tracking"`
	StartRank               int           `json:"start_rank"`
	EndRank                 int           `json:"end_rank"`
	InsufficientData        bool          `json:"insufficient_data"`
}

// Component is a scorer output that is either computed or unavailable.
// Fallbacks are applied with Or at the point the value leaves the scorer layer.
type Component struct {
	value  float64
	ok     bool
	reason string
}

// Computed wraps a scorer value.
func Computed(v float64) Component { return Component{value: v, ok: true} }

// Unavailable marks a component that could not be computed.
func Unavailable(reason string) Component { return Component{reason: reason} }

// Value returns the computed value and whether it exists.
func (c Component) Value() (float64, bool) { return c.value, c.ok }

// Available reports whether the component was computed.
func (c Component) Available() bool { return c.ok }

// Reason explains why the component is unavailable.
func (c Component) Reason() string { return c.reason }

// Or resolves the component, substituting fallback when unavailable.
func (c Component) Or(fallback float64) float64 {
	if !c.ok {
		return fallback
	}
	return c.value
}
