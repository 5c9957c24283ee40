// Package assets embeds the default word lists shipped with the server.
// Each list is plain text, one word per line; lines starting with '#' are comments.
package assets

import (
	"embed"
	"io/fs"
)

// Names of the embedded lists.
const (
	AnswersFile = "answers.txt"
	AllowedFile = "allowed.txt"
)

//go:embed allowed.txt answers.txt
var lists embed.FS

// Open opens one of the embedded lists.
func Open(name string) (fs.File, error) {
	return lists.Open(name)
}
