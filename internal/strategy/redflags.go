package strategy

import (
	"fmt"
	"strings"
	"time"

	"RankRadar/internal/calculator"
	"RankRadar/internal/model"
)

// Red flag codes.
const (
	FlagExtremePump           = "extreme_pump"
	FlagExchangeConcentration = "exchange_concentration"
	FlagPumpGroup             = "pump_group"
	FlagDormantDevelopment    = "dormant_development"
	FlagLowExchangePresence   = "low_exchange_presence"
)

// RedFlag is one triggered manipulation-risk check.
type RedFlag struct {
	Code   string  `json:"code"`
	Points float64 `json:"points"`
	Detail string  `json:"detail"`
}

// RedFlagReport is the capped sum of all triggered flags.
type RedFlagReport struct {
	Flags   []RedFlag `json:"flags"`
	Penalty float64   `json:"penalty"`
}

// RedFlagInput gathers what the checks need. Missing pieces never trigger a flag.
type RedFlagInput struct {
	Daily    []calculator.DailyPoint
	TopShare model.Component
	TopName  string
	Metadata *model.AssetMetadata
	AsOf     time.Time
}

// DetectRedFlags runs every independent check and sums their points.
func DetectRedFlags(in RedFlagInput, p RedFlagParams) RedFlagReport {
	var rep RedFlagReport
	add := func(code string, points float64, detail string) {
		if points <= 0 {
			return
		}
		rep.Flags = append(rep.Flags, RedFlag{Code: code, Points: points, Detail: detail})
		rep.Penalty += points
	}

	if jump := MaxRankJump(in.Daily, p.ExtremePumpDays); jump >= p.ExtremePumpJump {
		add(FlagExtremePump, p.ExtremePumpPoints, fmt.Sprintf("%d ranks within %.0f days", jump, p.ExtremePumpDays))
	}

	if share, ok := in.TopShare.Value(); ok && share >= p.ConcentrationShare {
		add(FlagExchangeConcentration, p.ConcentrationPoints, fmt.Sprintf("%s holds %.0f%% of volume", in.TopName, share*100))
	}

	if md := in.Metadata; md != nil {
		if md.PumpGroupConfidence != nil {
			conf := calculator.Clamp(*md.PumpGroupConfidence, 0, 100)
			add(FlagPumpGroup, p.PumpGroupMaxPoints*conf/100, fmt.Sprintf("confidence %.0f", conf))
		}
		if md.LastCommitAt != nil {
			idle := calculator.DaysBetween(*md.LastCommitAt, in.AsOf)
			if idle >= p.DormantDays {
				add(FlagDormantDevelopment, p.DormantPoints, fmt.Sprintf("no commits for %.0f days", idle))
			}
		}
		if md.Exchanges != nil && len(p.TopTierExchanges) > 0 && !listedOnAny(md.Exchanges, p.TopTierExchanges) {
			add(FlagLowExchangePresence, p.LowPresencePoints, "not listed on a top-tier exchange")
		}
	}

	rep.Penalty = calculator.Clamp(rep.Penalty, 0, p.Cap)
	return rep
}

// MaxRankJump returns the largest rank improvement between two daily points at most
// spanDays apart.
func MaxRankJump(points []calculator.DailyPoint, spanDays float64) int {
	best := 0
	for j := range points {
		for i := j - 1; i >= 0; i-- {
			if calculator.DaysBetween(points[i].Day, points[j].Day) > spanDays {
				break
			}
			if jump := points[i].Rank - points[j].Rank; jump > best {
				best = jump
			}
		}
	}
	return best
}

func listedOnAny(listed, topTier []string) bool {
	set := make(map[string]struct{}, len(topTier))
	for _, ex := range topTier {
		set[strings.ToLower(ex)] = struct{}{}
	}
	for _, ex := range listed {
		if _, ok := set[strings.ToLower(ex)]; ok {
			return true
		}
	}
	return false
}
