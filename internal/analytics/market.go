package analytics

import (
	"math"

	"github.com/launchpal/launchpal/internal/platform"
)

// UnrankedPosition is reported when a product is not on the leaderboard.
const UnrankedPosition = 999

// HistoricalAverageVotes is the vote count of a typical launch.
const HistoricalAverageVotes = 350

const maxCompetitors = 5

// competitorWindow is how far down the leaderboard competitors are taken from.
const competitorWindow = 20

// Competitor is another product on the leaderboard.
type Competitor struct {
	Name     string `json:"name"`
	Votes    int    `json:"votes"`
	Comments int    `json:"comments"`
	Rank     int    `json:"rank"`
}

// Historical places a launch against the historical average.
type Historical struct {
	AverageVotes int    `json:"averageVotes"`
	Percentile   int    `json:"percentile"`
	Rating       string `json:"rating"`
}

// RankIn returns the 1-based position of postID on board, or
// UnrankedPosition.
func RankIn(board []platform.TrendingProduct, postID string) int {
	for i, p := range board {
		if postID != "" && p.ID == postID {
			return i + 1
		}
	}
	return UnrankedPosition
}

// Competitors returns up to five products from the top of board other than
// postID. Rank is the position on the full board.
func Competitors(board []platform.TrendingProduct, postID string) []Competitor {
	out := []Competitor{}
	for i, p := range board[:min(len(board), competitorWindow)] {
		if p.ID == postID {
			continue
		}
		out = append(out, Competitor{Name: p.Name, Votes: p.Votes, Comments: p.Comments, Rank: i + 1})
		if len(out) == maxCompetitors {
			break
		}
	}
	return out
}

// CompareToHistorical scores votes against HistoricalAverageVotes. An
// average launch sits at the 50th percentile; the score is capped at 99.
func CompareToHistorical(votes int) Historical {
	pct := int(math.Min(99, math.Round(float64(votes)/HistoricalAverageVotes*50)))
	h := Historical{AverageVotes: HistoricalAverageVotes, Percentile: pct}
	switch {
	case pct < 25:
		h.Rating = "below average"
	case pct < 50:
		h.Rating = "average"
	case pct < 75:
		h.Rating = "above average"
	default:
		h.Rating = "exceptional"
	}
	return h
}
