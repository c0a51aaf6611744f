// Package oracle records which graph vertices sit on error-handling
// branches and which function result each branch tests.
package oracle

import (
	"fmt"
	"io"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Handlers is the error-handling oracle. Labels refer to flow graph vertices.
type Handlers struct {
	// On holds the first vertex of each error-handling branch.
	On map[string]struct{}
	// Off holds the vertex where the handling and normal branches join.
	Off map[string]struct{}
	// Not holds the first vertex of each non-error branch.
	Not map[string]struct{}

	HandlerToBranch map[string]string
	TestedFunction  map[string]string

	branches map[string]branchRecord
}

// New returns an empty oracle.
func New() *Handlers {
	return &Handlers{
		On:              make(map[string]struct{}),
		Off:             make(map[string]struct{}),
		Not:             make(map[string]struct{}),
		HandlerToBranch: make(map[string]string),
		TestedFunction:  make(map[string]string),
		branches:        make(map[string]branchRecord),
	}
}

// AddBranch records one classified branch. join may be empty when the two
// sides never meet again.
func (h *Handlers) AddBranch(branch, tested, handler, notHandler, join string) {
	h.TestedFunction[branch] = tested
	h.branches[branch] = branchRecord{
		Branch:     branch,
		Tested:     tested,
		Handler:    handler,
		NotHandler: notHandler,
		Join:       join,
	}

	h.On[handler] = struct{}{}
	h.HandlerToBranch[handler] = branch

	if notHandler != "" {
		h.Not[notHandler] = struct{}{}
		h.HandlerToBranch[notHandler] = branch
	}
	if join != "" {
		h.Off[join] = struct{}{}
		h.HandlerToBranch[join] = branch
	}
}

func (h *Handlers) IsOn(label string) bool {
	_, ok := h.On[label]
	return ok
}

func (h *Handlers) IsNot(label string) bool {
	_, ok := h.Not[label]
	return ok
}

// TestedFunctionFor resolves a handler vertex to the function whose result
// its branch tests. A miss means there is no information for the vertex.
func (h *Handlers) TestedFunctionFor(handler string) (string, bool) {
	branch, ok := h.HandlerToBranch[handler]
	if !ok {
		return "", false
	}
	tested, ok := h.TestedFunction[branch]
	return tested, ok
}

// Len returns the number of classified branches.
func (h *Handlers) Len() int {
	return len(h.TestedFunction)
}

type branchRecord struct {
	Branch     string `yaml:"branch"`
	Tested     string `yaml:"tested"`
	Handler    string `yaml:"handler"`
	NotHandler string `yaml:"not_handler,omitempty"`
	Join       string `yaml:"join,omitempty"`
}

type document struct {
	Branches []branchRecord `yaml:"branches"`
}

// Save writes the oracle as YAML, one entry per branch, sorted by branch label.
func (h *Handlers) Save(w io.Writer) error {
	doc := document{}
	for _, rec := range h.branches {
		doc.Branches = append(doc.Branches, rec)
	}
	sort.Slice(doc.Branches, func(i, j int) bool {
		return doc.Branches[i].Branch < doc.Branches[j].Branch
	})

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode oracle: %w", err)
	}
	return enc.Close()
}

// Read parses an oracle written by Save.
func Read(r io.Reader) (*Handlers, error) {
	var doc document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to decode oracle: %w", err)
	}

	h := New()
	for i, rec := range doc.Branches {
		if rec.Branch == "" || rec.Handler == "" || rec.Tested == "" {
			return nil, fmt.Errorf("oracle entry %d: branch, tested and handler are required", i)
		}
		h.AddBranch(rec.Branch, rec.Tested, rec.Handler, rec.NotHandler, rec.Join)
	}
	return h, nil
}

// Load reads an oracle YAML file.
func Load(path string) (*Handlers, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open oracle file: %w", err)
	}
	defer f.Close()

	h, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return h, nil
}
