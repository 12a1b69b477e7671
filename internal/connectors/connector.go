// Package connectors defines the boundary to external text recognition.
package connectors

import "context"

// ExecResult holds the result of a command execution.
type ExecResult struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exit_code"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// Recognizer turns a timetable image into raw text.
type Recognizer interface {
	// Name returns the recognizer identifier.
	Name() string

	// Recognize returns the text found in the image at path.
	Recognize(ctx context.Context, path string) (string, error)
}
