package logger

import (
	"fmt"
	"os"
)

// Logger defines the interface for logging throughout the application.
// Different implementations are used for different contexts: console output
// for normal runs, silent when the progress UI owns the terminal.
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}

// ConsoleLogger writes human-readable logs to stdout/stderr.
type ConsoleLogger struct {
	// Verbose enables Debug output.
	Verbose bool
}

func NewConsoleLogger() *ConsoleLogger {
	return &ConsoleLogger{}
}

func (c *ConsoleLogger) Info(msg string, args ...interface{}) {
	fmt.Printf(msg+"\n", args...)
}

func (c *ConsoleLogger) Warn(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "warning: "+msg+"\n", args...)
}

func (c *ConsoleLogger) Error(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+msg+"\n", args...)
}

func (c *ConsoleLogger) Debug(msg string, args ...interface{}) {
	if c.Verbose {
		fmt.Printf("debug: "+msg+"\n", args...)
	}
}

// SilentLogger discards everything except errors, which still go to stderr.
// Used while the terminal progress UI is active so log lines don't corrupt
// the display.
type SilentLogger struct{}

func NewSilentLogger() *SilentLogger {
	return &SilentLogger{}
}

func (s *SilentLogger) Info(msg string, args ...interface{})  {}
func (s *SilentLogger) Warn(msg string, args ...interface{})  {}
func (s *SilentLogger) Debug(msg string, args ...interface{}) {}

func (s *SilentLogger) Error(msg string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+msg+"\n", args...)
}
