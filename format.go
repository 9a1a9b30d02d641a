package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// statusf prints informational output to stdout unless --quiet is set.
func statusf(format string, args ...any) {
	if flagQuiet {
		return
	}

	fmt.Printf(format, args...)
}

// interactive reports whether stdin is a terminal and the user can be
// prompted.
func interactive() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

// confirm asks a yes/no question on stderr and reads one line from stdin.
// Empty input counts as yes.
func confirm(question string) bool {
	fmt.Fprintf(os.Stderr, "%s [Y/n] ", question)

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}

	answer := strings.ToLower(strings.TrimSpace(line))

	return answer == "" || answer == "y" || answer == "yes"
}

// terminalNotifier prints session messages to stderr with severity
// prefixes. It is the CLI's "display message of severity X" sink.
type terminalNotifier struct{}

func (terminalNotifier) Info(msg string) {
	fmt.Fprintf(os.Stderr, "Note: %s\n", msg)
}

func (terminalNotifier) Error(msg string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
}
