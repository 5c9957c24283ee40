package party

import "github.com/robalobadob/wordle/apps/party-server/internal/game"

// Scoring decides how many points an accepted guess is worth.
type Scoring interface {
	// ChooserReward is paid to the chooser for each accepted, non-solving guess.
	ChooserReward(r game.Room) int
	// SolverReward is paid to a player who solves; solveOrder starts at 1.
	SolverReward(r game.Room, solveOrder, guesses int) int
}

// PointsScoring is a flat points table.
type PointsScoring struct {
	Chooser    int
	Solve      int
	SpeedBonus int
}

// DefaultScoring returns the stock table: 1 per stumped guess, 10 per solve, 5 for first.
func DefaultScoring() PointsScoring {
	return PointsScoring{Chooser: 1, Solve: 10, SpeedBonus: 5}
}

func (s PointsScoring) ChooserReward(game.Room) int { return s.Chooser }

func (s PointsScoring) SolverReward(_ game.Room, solveOrder, _ int) int {
	if solveOrder == 1 {
		return s.Solve + s.SpeedBonus
	}
	return s.Solve
}
