package session

import "github.com/clopfocus/focusd/internal/domain"

const (
	// livesBonusPerLife is the score bonus for each life still held at
	// session end.
	livesBonusPerLife = 10.0
	// distractionPenalty is the score deduction per distraction episode.
	distractionPenalty = 5.0
)

// CalculateScore computes the final score for an ended session:
// focus efficiency scaled to 100, plus 10 per remaining life, minus 5
// per distraction, clamped to [0, 100]. Lives lost beyond the third
// keep shrinking the bonus term so long sessions full of distractions
// cannot coast on the floor of zero lives.
func CalculateScore(s *domain.Session) float64 {
	if s.DurationSec <= 0 {
		return 0
	}

	efficiency := float64(s.FocusMs) / float64(s.DurationSec*1000) * 100
	bonus := float64(domain.StartingLives-s.LivesLost) * livesBonusPerLife
	penalty := float64(s.Distractions) * distractionPenalty

	return clampScore(efficiency + bonus - penalty)
}

func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}
