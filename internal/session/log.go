package session

import "encoding/json"

// DefaultMaxLogLines bounds a session's message log.
const DefaultMaxLogLines = 500

// Level tags a session log line.
type Level int

const (
	Info Level = iota
	Warning
	Error
	Critical
)

var levelNames = map[Level]string{
	Info:     "INFO",
	Warning:  "WARNING",
	Error:    "ERROR",
	Critical: "CRITICAL",
}

func (l Level) String() string {
	if s, ok := levelNames[l]; ok {
		return s
	}
	return "UNKNOWN"
}

func (l Level) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.String())
}

// FormatLine renders a log line the way it is stored in Session.Log.
func FormatLine(l Level, text string) string {
	return "[" + l.String() + "] " + text
}

// appendBounded returns a new slice with line appended, dropping the oldest
// lines beyond max. The input slice is never modified.
func appendBounded(lines []string, line string, max int) []string {
	keep := lines
	if max > 0 && len(keep) >= max {
		keep = keep[len(keep)-max+1:]
	}
	out := make([]string, 0, len(keep)+1)
	out = append(out, keep...)
	return append(out, line)
}
