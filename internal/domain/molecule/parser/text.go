package parser

import (
	"fmt"
	"strings"

	"github.com/turtacn/molstruct/internal/domain/molecule"
	"github.com/turtacn/molstruct/pkg/errors"
)

// records is the output of a format reader, before assembly.
type records struct {
	atoms []molecule.RawAtom
	bonds []molecule.RawBond
	meta  molecule.Metadata
}

// atomLimit caps the atoms a reader accepts.  Zero means unlimited.
type atomLimit int

// check fails with MoleculeTooLarge once n exceeds the limit.  Readers call it
// as soon as a count is declared or accumulated, ahead of bond inference.
func (l atomLimit) check(f Format, n int) error {
	if l <= 0 || n <= int(l) {
		return nil
	}
	return errors.New(errors.ErrCodeMoleculeTooLarge, "molecule has too many atoms").
		WithDetail(fmt.Sprintf("%s input declares at least %d atoms, limit is %d", f, n, int(l)))
}

// splitLines normalizes CRLF and lone CR line endings and splits on LF.
func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.Split(text, "\n")
}

// column returns line[start:end] clipped to the line length.
func column(line string, start, end int) string {
	if start >= len(line) {
		return ""
	}
	if end > len(line) {
		end = len(line)
	}
	return line[start:end]
}

// expandTabs replaces each tab with spaces up to the next multiple of width.
func expandTabs(text string, width int) string {
	if width <= 0 || !strings.ContainsRune(text, '\t') {
		return text
	}
	var sb strings.Builder
	sb.Grow(len(text))
	col := 0
	for _, r := range text {
		switch r {
		case '\t':
			n := width - col%width
			sb.WriteString(strings.Repeat(" ", n))
			col += n
		case '\n':
			sb.WriteRune(r)
			col = 0
		default:
			sb.WriteRune(r)
			col++
		}
	}
	return sb.String()
}

//Personal.AI order the ending
