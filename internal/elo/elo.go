// Package elo implements the Elo rating model used to rank albums inside a list.
package elo

import (
	"errors"
	"math"
)

// Defaults used when a list has no stored rating for an album.
const (
	DefaultK        = 32.0
	DefaultBaseline = 1500.0
)

// ErrInvalidK is returned for non-positive or non-finite K factors.
var ErrInvalidK = errors.New("elo: K factor must be positive and finite")

// ErrInvalidRating is returned for non-finite ratings.
var ErrInvalidRating = errors.New("elo: rating must be finite")

// ExpectedScore returns the probability that a player rated a beats a player rated b.
func ExpectedScore(a, b float64) float64 {
	return 1 / (1 + math.Pow(10, (b-a)/400))
}

// ApplyMatch returns the updated ratings of the winner and loser of one match.
// The sum of both ratings is preserved.
func ApplyMatch(winner, loser, k float64) (newWinner, newLoser float64) {
	newWinner = winner + k*(1-ExpectedScore(winner, loser))
	newLoser = loser + k*(0-ExpectedScore(loser, winner))
	return newWinner, newLoser
}

// Rating is an album's skill estimate within one list.
type Rating struct {
	Value   float64
	Matches int
}

// Engine applies matches with a fixed K factor.
type Engine struct {
	K        float64
	Baseline float64
}

// DefaultEngine returns an Engine with K 32 and baseline 1500.
func DefaultEngine() Engine {
	return Engine{K: DefaultK, Baseline: DefaultBaseline}
}

// NewEngine validates k and baseline. Zero values select the defaults.
func NewEngine(k, baseline float64) (Engine, error) {
	if k == 0 {
		k = DefaultK
	}
	if baseline == 0 {
		baseline = DefaultBaseline
	}
	if k < 0 || math.IsNaN(k) || math.IsInf(k, 0) {
		return Engine{}, ErrInvalidK
	}
	if math.IsNaN(baseline) || math.IsInf(baseline, 0) {
		return Engine{}, ErrInvalidRating
	}
	return Engine{K: k, Baseline: baseline}, nil
}

// Initial is the rating of an album that has not been compared yet.
func (e Engine) Initial() Rating {
	return Rating{Value: e.Baseline}
}

// Judge applies one match and bumps both match counts.
func (e Engine) Judge(winner, loser Rating) (Rating, Rating, error) {
	if !finite(winner.Value) || !finite(loser.Value) {
		return Rating{}, Rating{}, ErrInvalidRating
	}
	w, l := ApplyMatch(winner.Value, loser.Value, e.K)
	return Rating{Value: w, Matches: winner.Matches + 1},
		Rating{Value: l, Matches: loser.Matches + 1},
		nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
