package analytics

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/launchpal/launchpal/internal/db/models"
	"github.com/launchpal/launchpal/internal/platform"
)

// Tracker appends each collected launch metric to its product's series with
// the derived velocity and engagement.
type Tracker struct {
	store Store
}

// NewTracker creates a new Tracker
func NewTracker(store Store) *Tracker {
	return &Tracker{store: store}
}

// KeyFor returns the series key of a launch's product.
func KeyFor(l *models.Launch) SeriesKey {
	return SeriesKey{OwnerID: l.UserID, ProductID: l.ProductID}
}

// Record stores m as the next point of the launch's series.
func (t *Tracker) Record(ctx context.Context, l *models.Launch, m *models.LaunchMetric) error {
	key := KeyFor(l)
	series, err := t.store.Series(ctx, key)
	if err != nil {
		return err
	}
	ts := m.CollectedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	p := Point{
		Timestamp:  ts.UTC(),
		Votes:      m.Votes,
		Comments:   m.Comments,
		Rank:       m.Rank,
		Engagement: Engagement(m.Votes, m.Comments),
	}
	if len(series) > 0 {
		p.Velocity = Velocity(series[len(series)-1], p)
	}
	if err := t.store.Append(ctx, key, p); err != nil {
		return err
	}
	slog.Debug("analytics point recorded", "product_id", l.ProductID, "votes", p.Votes, "velocity", p.Velocity)
	return nil
}

// Series returns the recorded history of a launch's product.
func (t *Tracker) Series(ctx context.Context, l *models.Launch) ([]Point, error) {
	return t.store.Series(ctx, KeyFor(l))
}

// Report summarises a series. Rank is the product's place on today's
// leaderboard; the tracker leaves it at UnrankedPosition and callers that
// can reach the platform fill it (and Competitors) in with Place.
type Report struct {
	LaunchID    string       `json:"launchId"`
	ProductID   string       `json:"productId"`
	Votes       int          `json:"votes"`
	Comments    int          `json:"comments"`
	Rank        int          `json:"rank"`
	PeakHour    string       `json:"peakHour"`
	Prediction  Prediction   `json:"prediction"`
	Historical  Historical   `json:"historical"`
	Competitors []Competitor `json:"competitors,omitempty"`
	Timeline    []Point      `json:"timeline"`
}

// Place ranks the report's product on board and, if withCompetitors,
// lists the products around it.
func (r *Report) Place(board []platform.TrendingProduct, postID string, withCompetitors bool) {
	r.Rank = RankIn(board, postID)
	if withCompetitors {
		r.Competitors = Competitors(board, postID)
	}
}

// Report builds the analytics report for a launch, predicting hoursAhead.
func (t *Tracker) Report(ctx context.Context, l *models.Launch, hoursAhead float64) (*Report, error) {
	series, err := t.Series(ctx, l)
	if err != nil {
		return nil, err
	}
	r := &Report{
		LaunchID:   l.ID,
		ProductID:  l.ProductID,
		Rank:       UnrankedPosition,
		PeakHour:   PeakHour(series),
		Prediction: Predict(series, hoursAhead),
		Timeline:   series,
	}
	if n := len(series); n > 0 {
		r.Votes = series[n-1].Votes
		r.Comments = series[n-1].Comments
	}
	r.Historical = CompareToHistorical(r.Votes)
	return r, nil
}

// Engagement is comments per vote; zero votes counts as one.
func Engagement(votes, comments int) float64 {
	return float64(comments) / float64(max(votes, 1))
}

// Velocity is votes gained per hour between two points. Points at the same
// instant (or out of order) yield 0.
func Velocity(prev, cur Point) float64 {
	hours := cur.Timestamp.Sub(prev.Timestamp).Hours()
	if hours <= 0 {
		return 0
	}
	return float64(cur.Votes-prev.Votes) / hours
}

// Prediction is the projected outcome of a launch.
type Prediction struct {
	PredictedVotes int `json:"predictedVotes"`
	PredictedRank  int `json:"predictedRank"`
	Confidence     int `json:"confidence"`
}

// Predict extrapolates the final votes from the mean velocity. Fewer than two
// points give no prediction (rank 999). Confidence drops by 10 per unit of
// velocity standard deviation.
func Predict(series []Point, hoursAhead float64) Prediction {
	if len(series) < 2 {
		return Prediction{PredictedVotes: 0, PredictedRank: 999, Confidence: 0}
	}

	velocities := make([]float64, len(series))
	var sum float64
	for i, p := range series {
		velocities[i] = p.Velocity
		sum += p.Velocity
	}
	avg := sum / float64(len(series))
	votes := int(math.Round(float64(series[len(series)-1].Votes) + avg*hoursAhead))

	confidence := math.Max(0, math.Min(100, 100-stddev(velocities)*10))
	return Prediction{
		PredictedVotes: votes,
		PredictedRank:  rankFor(votes),
		Confidence:     int(math.Round(confidence)),
	}
}

func rankFor(votes int) int {
	switch {
	case votes < 100:
		return 20
	case votes < 200:
		return 10
	case votes < 400:
		return 5
	case votes < 600:
		return 3
	default:
		return 1
	}
}

func stddev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var mean float64
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var variance float64
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	return math.Sqrt(variance / float64(len(values)))
}

// PeakHour returns the UTC time of day of the fastest-growing point, or "N/A"
// when no point had positive velocity.
func PeakHour(series []Point) string {
	peak := "N/A"
	var best float64
	for _, p := range series {
		if p.Velocity > best {
			best = p.Velocity
			peak = p.Timestamp.UTC().Format("15:04 UTC")
		}
	}
	return peak
}
