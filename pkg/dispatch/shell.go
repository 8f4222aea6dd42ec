package dispatch

import "strings"

// ShellQuote quotes a path for safe use in remote shell commands.
// Paths starting with ~/ preserve tilde expansion while quoting the rest.
// Other paths are fully single-quoted.
func ShellQuote(path string) string {
	if strings.HasPrefix(path, "~/") {
		return "~/" + singleQuote(path[2:])
	}
	return singleQuote(path)
}

// singleQuote wraps a string in single quotes, escaping any embedded single quotes.
func singleQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "'\\''") + "'"
}

// safeWord matches arguments that need no quoting.
func safeWord(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case strings.ContainsRune("-_./:=@,+%", r):
		default:
			return false
		}
	}
	return true
}

// JoinArgs renders argv as one shell command line, quoting only the
// arguments that need it so the logged command stays readable.
func JoinArgs(argv []string) string {
	parts := make([]string, len(argv))
	for i, a := range argv {
		if safeWord(a) {
			parts[i] = a
		} else {
			parts[i] = singleQuote(a)
		}
	}
	return strings.Join(parts, " ")
}
