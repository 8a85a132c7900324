package engine

import "github.com/dukerupert/ayudame/internal/model"

// ProgressionFunc returns the points and level a user holds after one more
// completed task, given their stats before the completion.
type ProgressionFunc func(before model.Stats) (points, level int)

// FlatProgression awards pointsPerTask per completion and one level per
// pointsPerLevel points, starting at level 1.
func FlatProgression(pointsPerTask, pointsPerLevel int) ProgressionFunc {
	return func(before model.Stats) (int, int) {
		points := before.Points + pointsPerTask
		level := 1
		if pointsPerLevel > 0 {
			level += points / pointsPerLevel
		}
		return points, level
	}
}

// ReputationFunc folds a new star rating into the current average, where
// count is the number of ratings already included in current.
type ReputationFunc func(current float64, count, stars int) float64

// MeanReputation keeps a simple running mean of every rating received.
func MeanReputation(current float64, count, stars int) float64 {
	if count <= 0 {
		return float64(stars)
	}
	return (current*float64(count) + float64(stars)) / float64(count+1)
}
