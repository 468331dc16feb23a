package desired

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/dnsdrift/dnsdrift/provider"
)

// Entry is one operator-specified record that should point at the current
// external IP.
type Entry struct {
	Type     string
	Hostname string
}

// UnsupportedTypeError reports a desired entry whose record type is outside
// the supported set. Validation happens before any network call so a run
// that would abort never spends API quota.
type UnsupportedTypeError struct {
	Type     string
	Hostname string
}

func (e *UnsupportedTypeError) Error() string {
	return fmt.Sprintf("unsupported record type %q for hostname %q", e.Type, e.Hostname)
}

// Load parses the two-column records file: one "TYPE HOSTNAME" pair per
// line, whitespace separated. Blank lines and #-comments are ignored.
// Entry order is preserved; exact (type, hostname) duplicates are dropped
// with a warning.
func Load(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open records file: %w", err)
	}
	defer f.Close()

	var entries []Entry
	seen := make(map[Entry]bool)

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("records file line %d: expected \"TYPE HOSTNAME\", got %q", lineNo, line)
		}

		entry := Entry{Type: fields[0], Hostname: fields[1]}
		if !provider.ValidType(entry.Type) {
			return nil, &UnsupportedTypeError{Type: entry.Type, Hostname: entry.Hostname}
		}

		if seen[entry] {
			slog.Warn("Dropping duplicate desired entry", "type", entry.Type, "hostname", entry.Hostname, "line", lineNo)
			continue
		}
		seen[entry] = true
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read records file: %w", err)
	}

	if len(entries) == 0 {
		return nil, fmt.Errorf("records file %s has no entries", path)
	}
	return entries, nil
}
