package flowgraph

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ReadEdgelist parses the format written by WriteEdgelist. Blank lines and
// lines starting with '#' are skipped; lines starting with '@' carry vertex
// attributes.
func ReadEdgelist(r io.Reader) (*Graph, error) {
	g := New()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if fields[0] == "@" {
			if err := g.readAttributes(fields[1:]); err != nil {
				return nil, fmt.Errorf("edgelist line %d: %w", lineNo, err)
			}
			continue
		}
		if len(fields) < 2 || len(fields) > 4 {
			return nil, fmt.Errorf("edgelist line %d: expected 2 to 4 fields, got %d", lineNo, len(fields))
		}

		kind := Fallthrough
		var loc Location
		for _, field := range fields[2:] {
			if k, ok := ParseEdgeKind(field); ok {
				kind = k
				continue
			}
			parsed, err := parseLocation(field)
			if err != nil {
				return nil, fmt.Errorf("edgelist line %d: %w", lineNo, err)
			}
			loc = parsed
		}

		from := g.FindOrCreate(fields[0])
		to := g.FindOrCreate(fields[1])
		if !loc.Empty() {
			g.vertices[from].Location = loc
		}
		g.AddEdge(from, to, kind)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read edgelist: %w", err)
	}
	return g, nil
}

func parseLocation(s string) (Location, error) {
	idx := strings.LastIndexByte(s, ':')
	if idx <= 0 {
		return Location{}, fmt.Errorf("unrecognized field %q", s)
	}
	line, err := strconv.Atoi(s[idx+1:])
	if err != nil {
		return Location{}, fmt.Errorf("invalid line number in %q: %w", s, err)
	}
	return Location{File: s[:idx], Line: line}, nil
}

func (g *Graph) readAttributes(fields []string) error {
	if len(fields) == 0 {
		return fmt.Errorf("vertex line without a label")
	}

	id := g.FindOrCreate(fields[0])
	v := &g.vertices[id]

	for _, field := range fields[1:] {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			loc, err := parseLocation(field)
			if err != nil {
				return err
			}
			v.Location = loc
			continue
		}

		switch key {
		case "fn":
			v.Function = value
		case "ts":
			if v.TargetSet == nil {
				v.TargetSet = &TargetSet{}
			}
			v.TargetSet.Name = value
		case "targets":
			if v.TargetSet == nil {
				v.TargetSet = &TargetSet{}
			}
			v.TargetSet.Targets = strings.Split(value, ",")
		case "ids":
			for _, n := range strings.Split(value, ",") {
				labelID, err := strconv.Atoi(n)
				if err != nil {
					return fmt.Errorf("invalid label id %q: %w", n, err)
				}
				v.LabelIDs = append(v.LabelIDs, labelID)
			}
		default:
			return fmt.Errorf("unknown vertex attribute %q", key)
		}
	}
	return nil
}
