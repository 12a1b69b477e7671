package localexec

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

func TestIsAllowed(t *testing.T) {
	l := New(Config{})

	tests := []struct {
		cmd     string
		args    []string
		allowed bool
	}{
		{"tesseract", []string{"scan.png", "stdout"}, true},
		{"cat", []string{"scan.txt"}, true},
		{"/usr/bin/cat", []string{"scan.txt"}, false}, // paths are not allowlisted
		{"rm", []string{"-rf", "/"}, false},          // not in allowlist
		{"cat", []string{""}, false},                 // empty argument
		{"unknown", []string{"cmd"}, false},          // unknown command
	}

	for _, tt := range tests {
		t.Run(tt.cmd+" "+strings.Join(tt.args, " "), func(t *testing.T) {
			got := l.IsAllowed(tt.cmd, tt.args)
			if got != tt.allowed {
				t.Errorf("IsAllowed(%s, %v) = %v, want %v", tt.cmd, tt.args, got, tt.allowed)
			}
		})
	}
}

func TestExpandArgs(t *testing.T) {
	got := expandArgs([]string{"{image}", "stdout", "--psm=6"}, "a.png")
	want := []string{"a.png", "stdout", "--psm=6"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("expandArgs = %v, want %v", got, want)
	}
}

func TestRecognize(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	path := filepath.Join(t.TempDir(), "scan.txt")
	if err := os.WriteFile(path, []byte("MON OS DBMS\n"), 0644); err != nil {
		t.Fatal(err)
	}

	l := New(Config{Command: "cat"})
	text, err := l.Recognize(context.Background(), path)
	if err != nil {
		t.Fatalf("Recognize failed: %v", err)
	}
	if text != "MON OS DBMS\n" {
		t.Errorf("Unexpected text %q", text)
	}

	if _, err := l.Recognize(context.Background(), filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("Expected error for missing file")
	}
	if _, err := l.Recognize(context.Background(), "-n"); err == nil {
		t.Error("Expected error for option-like path")
	}
}

func TestExecute_NotAllowed(t *testing.T) {
	l := New(Config{Command: "rm"})

	_, err := l.Execute(context.Background(), "rm", []string{"-rf", "/"})
	if !errors.Is(err, ErrNotAllowed) {
		t.Errorf("Expected ErrNotAllowed, got %v", err)
	}
	if _, err := l.Recognize(context.Background(), "scan.png"); !errors.Is(err, ErrNotAllowed) {
		t.Errorf("Expected ErrNotAllowed from Recognize, got %v", err)
	}
}
