package analytics

import "strings"

// Audiences accepted by OptimalTiming.
const (
	AudienceUS     = "US"
	AudienceEU     = "EU"
	AudienceAsia   = "ASIA"
	AudienceGlobal = "GLOBAL"
)

// Timing is a recommended launch slot.
type Timing struct {
	Day         string `json:"day"`
	Time        string `json:"time"`
	Timezone    string `json:"timezone"`
	Reason      string `json:"reason"`
	AvgVotes    int    `json:"avgVotes"`
	SuccessRate int    `json:"successRate"`
}

var timings = map[string]Timing{
	AudienceUS: {
		Day:         "Tuesday",
		Time:        "12:01 AM PST",
		Timezone:    "America/Los_Angeles",
		Reason:      "Product Hunt resets at midnight PST. Tuesday has highest engagement.",
		AvgVotes:    450,
		SuccessRate: 68,
	},
	AudienceEU: {
		Day:         "Tuesday",
		Time:        "09:00 AM GMT",
		Timezone:    "Europe/London",
		Reason:      "Catches both EU morning and US late night audiences.",
		AvgVotes:    380,
		SuccessRate: 62,
	},
	AudienceAsia: {
		Day:         "Tuesday",
		Time:        "09:00 AM JST",
		Timezone:    "Asia/Tokyo",
		Reason:      "Optimal for APAC region with spillover to EU/US.",
		AvgVotes:    320,
		SuccessRate: 58,
	},
	AudienceGlobal: {
		Day:         "Tuesday",
		Time:        "12:01 AM PST",
		Timezone:    "UTC",
		Reason:      "Best overall coverage across all time zones.",
		AvgVotes:    400,
		SuccessRate: 65,
	},
}

// OptimalTiming returns the recommended slot for an audience. Unknown or
// empty audiences get the GLOBAL recommendation.
func OptimalTiming(audience string) Timing {
	if t, ok := timings[strings.ToUpper(strings.TrimSpace(audience))]; ok {
		return t
	}
	return timings[AudienceGlobal]
}
