// Package query resolves cursor positions to terms and answers definition, hover
// and workspace-symbol lookups against a published index generation.
package query

import (
	"bytes"
	"os"
	"unicode/utf16"

	"github.com/standardbeagle/scalaidx/internal/errors"
	"github.com/standardbeagle/scalaidx/internal/types"
)

// LocateTerm reconstructs the identifier token under column and returns it in
// namespaced key form. column counts UTF-16 code units. A cursor on a
// non-identifier character yields that single character; a cursor just past the
// end of the line extends left only. Columns beyond that yield "".
func LocateTerm(line string, column int) string {
	units := utf16.Encode([]rune(line))
	if column < 0 || column > len(units) {
		return ""
	}

	start, end := column, column
	if column < len(units) {
		end = column + 1
		if !isTermUnit(units[column]) {
			return types.Key(string(utf16.Decode(units[start:end])))
		}
	}

	for start > 0 && isTermUnit(units[start-1]) {
		start--
	}
	for end < len(units) && isTermUnit(units[end]) {
		end++
	}
	if start == end {
		return ""
	}
	return types.Key(string(utf16.Decode(units[start:end])))
}

func isTermUnit(u uint16) bool {
	return u == '_' ||
		(u >= 'a' && u <= 'z') ||
		(u >= 'A' && u <= 'Z') ||
		(u >= '0' && u <= '9')
}

// LineReader returns line n of the file at path. ok is false when the file has
// fewer lines.
type LineReader func(path string, n int) (line string, ok bool, err error)

// ReadLineFromDisk reads the file fresh on every call so lookups reflect the
// last saved content. Lines are split on '\n' only.
func ReadLineFromDisk(path string, n int) (string, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, errors.NewFileError("read", path, err)
	}
	if n < 0 {
		return "", false, nil
	}
	for i := 0; ; i++ {
		idx := bytes.IndexByte(data, '\n')
		if i == n {
			if idx < 0 {
				return string(data), true, nil
			}
			return string(data[:idx]), true, nil
		}
		if idx < 0 {
			return "", false, nil
		}
		data = data[idx+1:]
	}
}
