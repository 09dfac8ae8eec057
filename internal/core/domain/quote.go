package domain

import "time"

// QuoteRequest describes the trip a sender wants priced.
type QuoteRequest struct {
	Pickup  string   `json:"pickup"`
	Dropoff string   `json:"dropoff"`
	Items   []string `json:"items"`
}

// Estimate is a provider's distance and duration guess for a trip.
type Estimate struct {
	DistanceKm  float64 `json:"distance_km"`
	DurationMin float64 `json:"duration_min"`
	Reasoning   string  `json:"reasoning"`
	Source      string  `json:"source"`
}

// Estimate sources.
const (
	SourceLocal   = "local"
	SourceRemote  = "remote"
	SourceDefault = "default"
)

// DefaultEstimate is used when no provider could answer.
var DefaultEstimate = Estimate{
	DistanceKm:  4.2,
	DurationMin: 18,
	Reasoning:   "Standard base rate for inner city delivery.",
	Source:      SourceDefault,
}

// Bounds for a plausible single-courier trip.
const (
	MaxEstimateKm  = 2000
	MaxEstimateMin = 7 * 24 * 60
)

// Usable reports whether the estimate can be priced.
func (e Estimate) Usable() bool {
	return e.DistanceKm > 0 && e.DistanceKm <= MaxEstimateKm &&
		e.DurationMin > 0 && e.DurationMin <= MaxEstimateMin
}

// Quote is a priced, short-lived offer that a sender can confirm into a booking.
type Quote struct {
	ID          string        `json:"id"`
	SenderID    string        `json:"sender_id"`
	Pickup      string        `json:"pickup"`
	Dropoff     string        `json:"dropoff"`
	Items       []string      `json:"items"`
	DistanceKm  float64       `json:"distance_km"`
	DurationMin float64       `json:"duration_min"`
	Distance    string        `json:"distance"`
	Duration    string        `json:"duration"`
	Reasoning   string        `json:"reasoning"`
	Source      string        `json:"source"`
	Breakdown   FareBreakdown `json:"breakdown"`
	Price       int64         `json:"price"`
	CreatedAt   time.Time     `json:"created_at"`
	ExpiresAt   time.Time     `json:"expires_at"`
}

// Insight is a short tip shown on the rider dashboard.
type Insight struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Category string `json:"category"`
}

// Insight categories.
const (
	InsightEfficiency = "efficiency"
	InsightSafety     = "safety"
	InsightEarnings   = "earnings"
)

// DefaultInsights is shown when no remote insight source answers.
func DefaultInsights() []Insight {
	return []Insight{
		{Title: "Traffic Warning", Content: "Heavy traffic reported around Lekki Phase 1. Consider using the coastal road for faster drops.", Category: InsightEfficiency},
		{Title: "Safety First", Content: "Rain is expected this afternoon. Slow down on the bridge and keep your gear dry.", Category: InsightSafety},
		{Title: "Earning Opportunity", Content: "Demand in Victoria Island peaks between 4pm and 7pm. Stay close to pick up surge-priced jobs.", Category: InsightEarnings},
	}
}
