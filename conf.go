package zfile

import (
	"errors"
	"strings"
)

// whitespace recognized by the configuration-line parser.
const confSpace = " \t\n\v\f\r"

// GetConf reads the next directive from a configuration file, using
// buf as the line buffer and incrementing *linenum once per physical
// line read, including blank and comment lines.
//
// A "#" starts a comment unless escaped by a preceding backslash, in
// which case the backslash is removed and the "#" kept literal.
// Surrounding whitespace is trimmed and the line split into a directive
// and an optional value at the first whitespace run. A directive
// beginning with "<" must have a terminating ">" on the same line; when
// the ">" is missing the raw line is returned with an empty value so
// the caller can report the syntax error.
//
// The returned error is io.EOF at end of stream.
func (f *File) GetConf(buf []byte, linenum *int) (directive, value string, err error) {
	if err := f.readable(); err != nil {
		return "", "", err
	}

	for {
		line, err := f.Gets(buf)
		if err != nil {
			return "", "", err
		}
		if linenum != nil {
			*linenum++
		}

		// Strip any comment.
		if i := strings.IndexByte(line, '#'); i >= 0 {
			if i > 0 && line[i-1] == '\\' {
				// Unquote the #.
				line = line[:i-1] + line[i:]
			} else {
				line = strings.TrimRight(line[:i], confSpace)
			}
		}

		line = strings.TrimLeft(line, confSpace)
		if line == "" {
			continue
		}

		i := strings.IndexAny(line, confSpace)
		if i < 0 {
			return line, "", nil
		}

		directive = line[:i]
		value = strings.TrimLeft(line[i:], confSpace)

		// Directives of the form <Name value> need the closing bracket
		// on the same line; its absence is a syntax error reported by
		// handing back the raw line with no value.
		if line[0] == '<' {
			if value == "" || value[len(value)-1] != '>' {
				return line, "", nil
			}
			value = value[:len(value)-1]
		}
		value = strings.TrimRight(value, confSpace)

		return directive, value, nil
	}
}

// PutConf writes a "directive value" configuration line, escaping the
// first "#" in the value so GetConf will round-trip it.
func (f *File) PutConf(directive, value string) error {
	if directive == "" {
		return errors.New("zfile: empty directive")
	}

	if err := f.Puts(directive); err != nil {
		return err
	}
	if err := f.PutChar(' '); err != nil {
		return err
	}

	if value != "" {
		if i := strings.IndexByte(value, '#'); i >= 0 {
			if err := f.Puts(value[:i]); err != nil {
				return err
			}
			if err := f.PutChar('\\'); err != nil {
				return err
			}
			if err := f.Puts(value[i:]); err != nil {
				return err
			}
		} else if err := f.Puts(value); err != nil {
			return err
		}
	}

	return f.PutChar('\n')
}
