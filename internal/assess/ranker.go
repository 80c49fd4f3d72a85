package assess

import (
	"sort"
	"time"

	"suvidha/internal/assess/models"
)

// RankWeights tune the composite relevance score. They are normalized at
// construction so callers can pass any positive mix.
type RankWeights struct {
	Confidence float64
	Benefit    float64
	Urgency    float64
}

// DefaultRankWeights favors confidence, then benefit size, then deadline
// pressure.
func DefaultRankWeights() RankWeights {
	return RankWeights{Confidence: 0.5, Benefit: 0.3, Urgency: 0.2}
}

func (w RankWeights) normalized() RankWeights {
	sum := w.Confidence + w.Benefit + w.Urgency
	if sum <= 0 {
		return DefaultRankWeights()
	}
	return RankWeights{
		Confidence: w.Confidence / sum,
		Benefit:    w.Benefit / sum,
		Urgency:    w.Urgency / sum,
	}
}

// Ranker orders a candidate set of outcomes for presentation. Ordering is
// total and deterministic: status band first (eligible, partial, ineligible),
// then composite score descending, then scheme ID ascending.
type Ranker struct {
	weights RankWeights
	horizon time.Duration
}

// NewRanker builds a ranker. A non-positive horizon falls back to 30 days;
// deadlines beyond the horizon contribute zero urgency.
func NewRanker(weights RankWeights, horizon time.Duration) *Ranker {
	if horizon <= 0 {
		horizon = 30 * 24 * time.Hour
	}
	return &Ranker{weights: weights.normalized(), horizon: horizon}
}

// Ranked pairs an outcome with its composite score.
type Ranked struct {
	models.Outcome
	Score float64 `json:"score"`
}

// Rank scores and orders the candidate set. Benefit is normalized against the
// largest benefit in this candidate set, so scores are comparable only within
// one response. The input slice is not mutated.
func (r *Ranker) Rank(outcomes []models.Outcome, now time.Time) []Ranked {
	maxBenefit := 0.0
	for _, o := range outcomes {
		if o.EstimatedBenefit > maxBenefit {
			maxBenefit = o.EstimatedBenefit
		}
	}

	ranked := make([]Ranked, 0, len(outcomes))
	for _, o := range outcomes {
		benefit := 0.0
		if maxBenefit > 0 {
			benefit = o.EstimatedBenefit / maxBenefit
		}
		score := r.weights.Confidence*o.Confidence +
			r.weights.Benefit*benefit +
			r.weights.Urgency*r.urgency(o.Deadline, now)
		ranked = append(ranked, Ranked{Outcome: o, Score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if bi, bj := ranked[i].Status.Band(), ranked[j].Status.Band(); bi != bj {
			return bi < bj
		}
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].SchemeID < ranked[j].SchemeID
	})
	return ranked
}

// urgency maps a deadline to [0,1]: 1 at or past the deadline, decaying
// linearly to 0 at the horizon. No deadline means no urgency.
func (r *Ranker) urgency(deadline *time.Time, now time.Time) float64 {
	if deadline == nil {
		return 0
	}
	remaining := deadline.Sub(now)
	if remaining <= 0 {
		return 1
	}
	if remaining >= r.horizon {
		return 0
	}
	return 1 - float64(remaining)/float64(r.horizon)
}
