package infrastructure

import "strings"

// ShellEscape escapes a string for safe display in a shell command line.
// Logging only: exec.Command passes args directly with no shell involved.
func ShellEscape(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, shellSpecialChars) {
		return s
	}

	// Single-quote everything; an embedded single quote becomes '"'"'
	// (end quote, quoted quote, start quote).
	var b strings.Builder
	b.WriteString("'")
	for _, c := range s {
		if c == '\'' {
			b.WriteString(`'"'"'`)
		} else {
			b.WriteRune(c)
		}
	}
	b.WriteString("'")
	return b.String()
}

// ShellEscapeCommand renders a binary and its arguments as a copy-pasteable
// command line for logs.
func ShellEscapeCommand(binary string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, ShellEscape(binary))
	for _, arg := range args {
		parts = append(parts, ShellEscape(arg))
	}
	return strings.Join(parts, " ")
}

const shellSpecialChars = " \t'\"$`\\!*?[](){}|;<>&~#%\n\r"
