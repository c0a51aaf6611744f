package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// ErrMalformedInteresting is returned for a line naming more than one function.
var ErrMalformedInteresting = errors.New("malformed interesting functions line")

// Interesting is the set of function names whose call sites seed the search.
type Interesting map[string]struct{}

// Contains reports whether name is interesting.
func (in Interesting) Contains(name string) bool {
	_, ok := in[name]
	return ok
}

// Add inserts names, skipping empty ones.
func (in Interesting) Add(names ...string) {
	for _, name := range names {
		if name != "" {
			in[name] = struct{}{}
		}
	}
}

// Sorted lists the names in order.
func (in Interesting) Sorted() []string {
	names := make([]string, 0, len(in))
	for name := range in {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadInteresting parses one function name per line. Blank lines and lines
// starting with '#' are ignored.
func ReadInteresting(r io.Reader) (Interesting, error) {
	in := make(Interesting)
	scanner := bufio.NewScanner(r)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.ContainsAny(line, " \t") {
			return nil, fmt.Errorf("%w %d: %q", ErrMalformedInteresting, lineNo, line)
		}
		in.Add(line)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read interesting functions: %w", err)
	}
	return in, nil
}

// LoadInteresting reads the interesting functions file at path.
func LoadInteresting(path string) (Interesting, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open interesting functions file: %w", err)
	}
	defer f.Close()

	in, err := ReadInteresting(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return in, nil
}
