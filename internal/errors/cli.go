// internal/errors/cli.go
package errors

import (
	"fmt"
	"strings"
)

// Exit codes used by the command-line tools.
const (
	ExitGeneral    = 1
	ExitConfig     = 2
	ExitNetwork    = 3
	ExitParsing    = 4
	ExitOutput     = 5
	ExitValidation = 6
)

// GetExitCode returns appropriate exit code for error
func GetExitCode(err error) int {
	if err == nil {
		return 0
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "config") || strings.Contains(errStr, "yaml"):
		return ExitConfig
	case strings.Contains(errStr, "network") || strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection") || strings.Contains(errStr, "host"):
		return ExitNetwork
	case strings.Contains(errStr, "parse") || strings.Contains(errStr, "html"):
		return ExitParsing
	case strings.Contains(errStr, "deliver") || strings.Contains(errStr, "write") || strings.Contains(errStr, "sink"):
		return ExitOutput
	case strings.Contains(errStr, "validation") || strings.Contains(errStr, "invalid"):
		return ExitValidation
	default:
		return ExitGeneral
	}
}

// FormatErrorForCLI formats error for command-line display
func FormatErrorForCLI(err error, verbose bool) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	if !verbose {
		// keep only the outermost context
		if idx := strings.Index(msg, ": "); idx > 0 {
			msg = msg[:idx]
		}
	}
	return fmt.Sprintf("Error: %s\n", msg)
}
