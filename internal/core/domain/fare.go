package domain

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// Tariff, in whole currency units.
const (
	BaseFare  int64 = 500
	PerKm     int64 = 150
	PerMinute int64 = 50
)

var (
	surgeMultiplier = decimal.RequireFromString("1.65")
	flatMultiplier  = decimal.NewFromInt(1)
)

// maxFare keeps totals inside int64.
var maxFare = decimal.NewFromInt(math.MaxInt64)

var surgeHours = map[int]bool{7: true, 8: true, 9: true, 16: true, 17: true, 18: true, 19: true}

// FareBreakdown itemizes a computed price.
type FareBreakdown struct {
	Base         int64   `json:"base"`
	DistanceCost int64   `json:"distance_cost"`
	TimeCost     int64   `json:"time_cost"`
	Multiplier   float64 `json:"multiplier"`
	Total        int64   `json:"total"`
}

// SurgeMultiplier returns the multiplier in force at the given hour of day.
func SurgeMultiplier(hour int) decimal.Decimal {
	if surgeHours[hour] {
		return surgeMultiplier
	}
	return flatMultiplier
}

// ComputeFare prices a trip. The hour is the local hour of day (0-23) at
// quoting time. Component costs are rounded to whole units and the total is
// rounded once, after the multiplier is applied.
func ComputeFare(distanceKm, durationMin float64, hour int) (FareBreakdown, error) {
	if err := checkMeasure("distance", distanceKm); err != nil {
		return FareBreakdown{}, err
	}
	if err := checkMeasure("duration", durationMin); err != nil {
		return FareBreakdown{}, err
	}
	if hour < 0 || hour > 23 {
		return FareBreakdown{}, fmt.Errorf("%w: hour %d out of range", ErrInvalidInput, hour)
	}

	distanceCost := decimal.NewFromFloat(distanceKm).Mul(decimal.NewFromInt(PerKm)).Round(0)
	timeCost := decimal.NewFromFloat(durationMin).Mul(decimal.NewFromInt(PerMinute)).Round(0)
	multiplier := SurgeMultiplier(hour)

	total := decimal.NewFromInt(BaseFare).
		Add(distanceCost).
		Add(timeCost).
		Mul(multiplier).
		Round(0)
	if total.GreaterThan(maxFare) {
		return FareBreakdown{}, fmt.Errorf("%w: fare exceeds the representable range", ErrInvalidInput)
	}

	return FareBreakdown{
		Base:         BaseFare,
		DistanceCost: distanceCost.IntPart(),
		TimeCost:     timeCost.IntPart(),
		Multiplier:   multiplier.InexactFloat64(),
		Total:        total.IntPart(),
	}, nil
}

func checkMeasure(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: %s is not a number", ErrInvalidInput, name)
	}
	if v < 0 {
		return fmt.Errorf("%w: %s must not be negative", ErrInvalidInput, name)
	}
	return nil
}
