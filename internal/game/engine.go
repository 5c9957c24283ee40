// internal/game/engine.go
//
// Guess evaluation for the party game.
// Responsibilities:
//   - Normalize guesses/answers (trim, upper-case).
//   - Score a guess against the round's answer with the two-pass algorithm.
//   - Report per-position and per-letter results.
//
// Notes:
//   - Acceptance (dictionary check) happens before Evaluate is called; a rejected
//     guess is represented by Rejected().
//   - Evaluate is pure: no I/O, no shared state.
package game

import "strings"

// Evaluation is the result of a single guess, sent back to the guessing player.
type Evaluation struct {
	ResultByPosition *Row              `json:"resultByPosition,omitempty"`
	ResultByLetter   map[string]Result `json:"resultByLetter,omitempty"`
	Accepted         bool              `json:"accepted"`
	Correct          bool              `json:"correct"`
}

// Rejected is the evaluation returned for guesses that never reached scoring.
func Rejected() Evaluation { return Evaluation{Accepted: false} }

// Normalize trims and upper-cases a word.
func Normalize(w string) string {
	return strings.ToUpper(strings.TrimSpace(w))
}

// IsWord reports whether w is exactly WordLength letters A–Z (case-insensitive).
func IsWord(w string) bool {
	if len(w) != WordLength {
		return false
	}
	for i := 0; i < len(w); i++ {
		c := w[i] | 0x20 // fold to lower
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}

// Evaluate scores guess against answer.
//
// Pass 1 (exact matches):
//   - Mark position as hit, mark letter as hit, blank that answer position.
//
// Pass 2 (presence), for every non-hit position:
//   - If the letter is still in the remaining answer, mark position has,
//     upgrade letter to has unless it is already hit, and consume one occurrence.
//
// Untouched positions stay miss; every guessed letter defaults to miss.
// Both words must be WordLength letters; callers validate beforehand.
func Evaluate(guess, answer string) Evaluation {
	guess, answer = Normalize(guess), Normalize(answer)

	var byPos Row
	byLetter := make(map[string]Result, WordLength)
	remaining := []byte(answer)

	for i := 0; i < WordLength; i++ {
		byPos[i] = ResultMiss
		letter := guess[i : i+1]
		if _, seen := byLetter[letter]; !seen {
			byLetter[letter] = ResultMiss
		}
		if guess[i] == remaining[i] {
			byPos[i] = ResultHit
			byLetter[letter] = ResultHit
			remaining[i] = 0
		}
	}

	for i := 0; i < WordLength; i++ {
		if byPos[i] == ResultHit {
			continue
		}
		j := indexOf(remaining, guess[i])
		if j < 0 {
			continue
		}
		byPos[i] = ResultHas
		letter := guess[i : i+1]
		if byLetter[letter] != ResultHit {
			byLetter[letter] = ResultHas
		}
		remaining[j] = 0
	}

	return Evaluation{
		ResultByPosition: &byPos,
		ResultByLetter:   byLetter,
		Accepted:         true,
		Correct:          byPos.AllHit(),
	}
}

// AllHit reports whether every position is a hit.
func (r Row) AllHit() bool {
	for _, x := range r {
		if x != ResultHit {
			return false
		}
	}
	return true
}

func indexOf(b []byte, c byte) int {
	for i, x := range b {
		if x == c {
			return i
		}
	}
	return -1
}
