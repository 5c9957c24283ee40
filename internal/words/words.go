// internal/words/words.go
//
// Word list management for the party game.
//
// Responsibilities:
//   - Load answer and allowed guess lists from environment-provided files or fall back
//     to the embedded defaults in the assets package.
//   - Expose each list through the Validator interface the game engine depends on.
//
// Word Lists:
//   - "answers": words a chooser may pick as the secret (exactly 5 letters).
//   - "guesses": valid guesses (always includes answers).
//
// Load behavior:
//   1. If AnswersFile and AllowedFile are both set,
//      load answers from the first and extra guesses from the second.
//   2. If only AllowedFile is set,
//      load that file and use it for both answers and guesses.
//   3. Otherwise fall back to the embedded lists.
//
// Constraints:
//   • Words must be 5 alphabetic letters; anything else is skipped.
//   • Blank lines and lines starting with '#' are ignored.
//   • Lookups are case-insensitive.

package words

import (
	"bufio"
	"crypto/rand"
	"errors"
	"io"
	"math/big"
	"os"
	"strings"

	"github.com/robalobadob/wordle/apps/party-server/assets"
	"github.com/robalobadob/wordle/apps/party-server/internal/game"
)

// Validator answers "is this word acceptable?" and "give me an acceptable word".
type Validator interface {
	IsValid(word string) bool
	RandomValid() string
}

// List is a set-backed Validator.
type List struct {
	words []string
	set   map[string]struct{}
}

// NewList builds a List from words, dropping anything that is not a 5-letter word.
func NewList(words []string) *List {
	l := &List{set: make(map[string]struct{}, len(words))}
	for _, w := range words {
		w = game.Normalize(w)
		if !game.IsWord(w) {
			continue
		}
		if _, dup := l.set[w]; dup {
			continue
		}
		l.set[w] = struct{}{}
		l.words = append(l.words, w)
	}
	return l
}

// IsValid reports whether word is in the list (case-insensitive, exact length).
func (l *List) IsValid(word string) bool {
	_, ok := l.set[game.Normalize(word)]
	return ok
}

// RandomValid returns a cryptographically random word from the list,
// or "" if the list is empty.
func (l *List) RandomValid() string {
	if len(l.words) == 0 {
		return ""
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(l.words))))
	if err != nil {
		return l.words[0]
	}
	return l.words[n.Int64()]
}

// Len returns the number of words in the list.
func (l *List) Len() int { return len(l.words) }

// Sources configures where Load reads word lists from.
type Sources struct {
	AnswersFile string
	AllowedFile string
}

// Lists is the pair of validators used by the server.
type Lists struct {
	Answers *List // choosable secret words
	Guesses *List // answers ∪ allowed
}

// Stats returns counts of loaded words: (answers, guesses).
func (ls Lists) Stats() (answersCount int, guessesCount int) {
	return ls.Answers.Len(), ls.Guesses.Len()
}

// Load reads both lists. Returns an error if the answers list ends up empty.
func Load(src Sources) (Lists, error) {
	var ansList, allowList []string
	var err error

	switch {
	case src.AnswersFile != "" && src.AllowedFile != "":
		if ansList, err = readWordFile(src.AnswersFile); err != nil {
			return Lists{}, err
		}
		if allowList, err = readWordFile(src.AllowedFile); err != nil {
			return Lists{}, err
		}

	case src.AllowedFile != "":
		if allowList, err = readWordFile(src.AllowedFile); err != nil {
			return Lists{}, err
		}
		ansList = allowList

	default:
		if ansList, err = readEmbedded(assets.AnswersFile); err != nil {
			return Lists{}, err
		}
		if allowList, err = readEmbedded(assets.AllowedFile); err != nil {
			return Lists{}, err
		}
	}

	ls := Lists{
		Answers: NewList(ansList),
		Guesses: NewList(append(append([]string{}, ansList...), allowList...)),
	}
	if ls.Answers.Len() == 0 {
		return Lists{}, errors.New("words: answers list is empty")
	}
	return ls, nil
}

// readWordFile loads a word list from disk.
func readWordFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseList(f)
}

func readEmbedded(name string) ([]string, error) {
	f, err := assets.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseList(f)
}

// parseList reads one word per line, skipping blanks and '#' comments.
func parseList(r io.Reader) ([]string, error) {
	var out []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		w := strings.TrimSpace(sc.Text())
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		out = append(out, w)
	}
	return out, sc.Err()
}
