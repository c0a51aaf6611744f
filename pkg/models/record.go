package models

import (
	"fmt"
	"strings"
)

const (
	recordBegin = "PATH_BEGIN"
	recordEnd   = "PATH_END"
)

// Record is one emitted path or annotation: an ordered list of tokens
type Record []string

// String renders the record as a PATH_BEGIN ... PATH_END line
func (r Record) String() string {
	return recordBegin + " " + strings.Join(r, " ") + " " + recordEnd
}

// Text returns the tokens without the begin/end markers
func (r Record) Text() string {
	return strings.Join(r, " ")
}

// ParseRecord is the inverse of Record.String
func ParseRecord(line string) (Record, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 || fields[0] != recordBegin || fields[len(fields)-1] != recordEnd {
		return nil, fmt.Errorf("not a path record: %q", line)
	}
	return Record(fields[1 : len(fields)-1]), nil
}
