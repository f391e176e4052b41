// Package utils contains small helpers shared across commands.
package utils

import (
	"os"
	"strings"
	"syscall"
)

// StripCodeFences removes Markdown code fences (``` and ```html) that models
// like to wrap generated documents in.
func StripCodeFences(s string) string {
	s = strings.ReplaceAll(s, "```html", "")
	s = strings.ReplaceAll(s, "```HTML", "")
	s = strings.ReplaceAll(s, "```", "")
	return strings.TrimSpace(s)
}

// Truncate shortens s to at most n runes, appending "..." when it cuts.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}

// MapSignal converts a signal name (case-insensitive, with or without the
// SIG prefix) to an os.Signal. Returns nil if the name is not recognized.
func MapSignal(signalName string) os.Signal {
	name := strings.ToUpper(strings.TrimSpace(signalName))
	name = strings.TrimPrefix(name, "SIG")
	switch name {
	case "INT":
		return syscall.SIGINT
	case "TERM":
		return syscall.SIGTERM
	case "HUP":
		return syscall.SIGHUP
	case "QUIT":
		return syscall.SIGQUIT
	case "KILL":
		return syscall.SIGKILL
	case "USR1":
		return syscall.SIGUSR1
	case "USR2":
		return syscall.SIGUSR2
	default:
		return nil
	}
}
