package utils

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

func TestTrimSpaceSlice(t *testing.T) {
	tests := []struct {
		name     string
		input    []string
		expected []string
	}{
		{
			name:     "mixed whitespace and content",
			input:    []string{"  hello  ", "", "  world", "test  ", "   "},
			expected: []string{"hello", "world", "test"},
		},
		{
			name:     "empty slice",
			input:    []string{},
			expected: []string{},
		},
		{
			name:     "all empty/whitespace",
			input:    []string{"", "  ", "   ", "\t"},
			expected: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := TrimSpaceSlice(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("Expected length %d, got %d", len(tt.expected), len(result))
			}
			for i, expected := range tt.expected {
				if result[i] != expected {
					t.Errorf("At index %d: expected %q, got %q", i, expected, result[i])
				}
			}
		})
	}
}

func TestParseCommaDelimited(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{"package patterns", "./cmd/...,./internal/...", []string{"./cmd/...", "./internal/..."}},
		{"spaces and empties", " os_Open , ,io_ReadAll", []string{"os_Open", "io_ReadAll"}},
		{"empty", "", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseCommaDelimited(tt.input)
			if len(result) != len(tt.expected) {
				t.Fatalf("Expected %v, got %v", tt.expected, result)
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("At index %d: expected %q, got %q", i, tt.expected[i], result[i])
				}
			}
		})
	}
}

func TestSafeCreateFile(t *testing.T) {
	dir := t.TempDir()

	f, err := SafeCreateFile(filepath.Join(dir, "nested", "out.paths"))
	if err != nil {
		t.Fatalf("SafeCreateFile failed: %v", err)
	}
	f.Close()

	if !FileExists(filepath.Join(dir, "nested", "out.paths")) {
		t.Error("Expected the file to exist")
	}
	if info, err := os.Stat(filepath.Join(dir, "nested")); err != nil || !info.IsDir() {
		t.Error("Expected the parent directory to be created")
	}

	for _, bad := range []string{"../escape.txt", "/etc/pathgen.txt"} {
		if _, err := SafeCreateFile(bad); err == nil {
			t.Errorf("Expected %q to be rejected", bad)
		}
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	if !FileExists(file) || FileExists(dir) || FileExists("") {
		t.Error("FileExists returned an unexpected result")
	}
}

func TestVerboseLogger(t *testing.T) {
	var buf bytes.Buffer

	quiet := NewVerboseLogger(false)
	quiet.SetOutput(&buf)
	quiet.Logf("hidden %d\n", 1)
	if buf.Len() != 0 {
		t.Errorf("Expected no output when not verbose, got %q", buf.String())
	}

	loud := NewVerboseLogger(true)
	loud.SetOutput(&buf)
	loud.Logf("seeds: %d\n", 3)
	if buf.String() != "seeds: 3\n" {
		t.Errorf("Unexpected verbose output %q", buf.String())
	}
}

func TestProgressTrackerConcurrentUpdates(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	pt := NewInstrumentation(logger, true).NewProgressTracker("seeds", 400)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				pt.Update(1)
			}
		}()
	}
	wg.Wait()
	pt.Complete()

	if !bytes.Contains(buf.Bytes(), []byte("processed=400 total=400")) {
		t.Errorf("Expected the completion log to count 400 items:\n%s", buf.String())
	}
}

func TestPhaseTracker(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	pt := NewInstrumentation(logger, true).NewPhaseTracker("run")

	pt.StartPhase("load")
	pt.StartPhase("stitch")
	pt.Complete(2)

	out := buf.String()
	for _, want := range []string{"phase=load", "phase=stitch", "items=2"} {
		if !bytes.Contains([]byte(out), []byte(want)) {
			t.Errorf("Expected %q in log output:\n%s", want, out)
		}
	}
}
