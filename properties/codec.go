package properties

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const (
	listSuffix   = "[]"
	emptyElement = `\e`
)

// Encode writes the store as ordered `path=value` lines.
func (t *Store) Encode(w io.Writer) (err error) {
	buf := bufio.NewWriter(w)
	for _, a := range t.Flatten() {
		if _, err = buf.WriteString(encodeAssignment(a)); err != nil {
			return errors.WithStack(err)
		}

		if err = buf.WriteByte('\n'); err != nil {
			return errors.WithStack(err)
		}
	}

	return errors.WithStack(buf.Flush())
}

// Decode reads a store previously written by Encode.
func Decode(r io.Reader) (s *Store, err error) {
	var (
		a      Assignment
		lineno int
	)

	s = New()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		lineno++
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if a, err = ParseAssignment(line); err != nil {
			return nil, errors.Wrapf(err, "line %d", lineno)
		}

		if err = s.Set(a.Path, a.Node); err != nil {
			return nil, errors.Wrapf(err, "line %d", lineno)
		}
	}

	return s, errors.WithStack(scanner.Err())
}

// ParseAssignment parses a single `path=value` line.
func ParseAssignment(line string) (a Assignment, err error) {
	idx := indexUnescaped(line, '=')
	if idx == -1 {
		return a, errors.Errorf("missing '=' in assignment: %s", line)
	}

	key, value := line[:idx], line[idx+1:]
	list := isListKey(key)
	if list {
		key = strings.TrimSuffix(key, listSuffix)
	}

	if a.Path, err = ParsePath(key); err != nil {
		return a, err
	}

	if !list {
		a.Node = Scalar(unescape(value))
		return a, nil
	}

	if value == "" {
		a.Node = List()
		return a, nil
	}

	elements, err := splitEscaped(value, ',', unescapeElement)
	if err != nil {
		return a, err
	}

	a.Node = List(elements...)

	return a, nil
}

// ApplyOverrides applies `path=value` assignments, e.g. from the command line.
func ApplyOverrides(e Editor, assignments ...string) (err error) {
	var (
		a Assignment
	)

	for _, raw := range assignments {
		if a, err = ParseAssignment(raw); err != nil {
			return errors.Wrapf(err, "invalid override '%s'", raw)
		}

		if err = e.Set(a.Path, a.Node); err != nil {
			return errors.Wrapf(err, "invalid override '%s'", raw)
		}
	}

	return nil
}

// Load the store from the file at path. a missing file results in an empty store.
func Load(path string) (s *Store, err error) {
	var (
		src *os.File
	)

	if src, err = os.Open(path); err != nil {
		if os.IsNotExist(err) {
			return New(), nil
		}

		return nil, errors.WithStack(err)
	}
	defer src.Close()

	if s, err = Decode(src); err != nil {
		return nil, errors.Wrapf(err, "failed to decode %s", path)
	}

	return s, nil
}

// Save atomically writes the store to the file at path.
func (t *Store) Save(path string) (err error) {
	var (
		dst *os.File
	)

	dir := filepath.Dir(path)
	if err = os.MkdirAll(dir, 0700); err != nil {
		return errors.WithStack(err)
	}

	if dst, err = os.CreateTemp(dir, "."+filepath.Base(path)+".*"); err != nil {
		return errors.WithStack(err)
	}
	defer os.Remove(dst.Name())
	defer dst.Close()

	if err = t.Encode(dst); err != nil {
		return errors.Wrap(err, "failed to encode properties")
	}

	if err = dst.Sync(); err != nil {
		return errors.WithStack(err)
	}

	if err = dst.Chmod(0600); err != nil {
		return errors.WithStack(err)
	}

	if err = dst.Close(); err != nil {
		return errors.WithStack(err)
	}

	return errors.Wrapf(os.Rename(dst.Name(), path), "failed to replace %s", path)
}

func encodeAssignment(a Assignment) string {
	switch a.Node.kind {
	case KindList:
		elements := make([]string, 0, len(a.Node.list))
		for _, e := range a.Node.list {
			if e == "" {
				elements = append(elements, emptyElement)
				continue
			}
			elements = append(elements, escape(e, ","))
		}
		return a.Path.String() + listSuffix + "=" + strings.Join(elements, ",")
	default:
		return a.Path.String() + "=" + escape(a.Node.scalar, "")
	}
}

func escapeSegment(s string) string {
	return escape(s, ".=[#")
}

// escape backslashes, newlines and the provided special characters.
func escape(s string, special string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\r':
			b.WriteString(`\r`)
		case strings.ContainsRune(special, r):
			b.WriteRune('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}

	return b.String()
}

func unescape(s string) string {
	var (
		b       strings.Builder
		escaped bool
	)

	for _, r := range s {
		if !escaped && r == '\\' {
			escaped = true
			continue
		}

		if escaped {
			escaped = false
			switch r {
			case 'n':
				b.WriteRune('\n')
			case 'r':
				b.WriteRune('\r')
			default:
				b.WriteRune(r)
			}
			continue
		}

		b.WriteRune(r)
	}

	return b.String()
}

func indexUnescaped(s string, sep byte) int {
	escaped := false
	for i := 0; i < len(s); i++ {
		switch {
		case escaped:
			escaped = false
		case s[i] == '\\':
			escaped = true
		case s[i] == sep:
			return i
		}
	}

	return -1
}

// splitEscaped splits on unescaped separators and unescapes each part.
func splitEscaped(s string, sep byte, decode func(string) string) (parts []string, err error) {
	if trailingEscapes(s)%2 == 1 {
		return nil, errors.Errorf("dangling escape in '%s'", s)
	}

	for {
		idx := indexUnescaped(s, sep)
		if idx == -1 {
			break
		}

		parts = append(parts, decode(s[:idx]))
		s = s[idx+1:]
	}

	return append(parts, decode(s)), nil
}

// trailingEscapes counts the backslashes at the end of s.
func trailingEscapes(s string) (n int) {
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}

	return n
}

// isListKey checks for an unescaped list suffix.
func isListKey(key string) bool {
	if !strings.HasSuffix(key, listSuffix) {
		return false
	}

	return trailingEscapes(strings.TrimSuffix(key, listSuffix))%2 == 0
}

func unescapeElement(s string) string {
	if s == emptyElement {
		return ""
	}

	return unescape(s)
}
