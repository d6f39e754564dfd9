package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/flowkeep/flowkeep/pkg/domain"
)

// metadataField is one of the four top-level fields the store patches in
// place instead of re-serializing the author's document.
type metadataField struct {
	key   string
	value string
}

// anchorOrder is the priority order UpdateMetadata searches for an existing
// line to insert a missing field after: id first, then version, createdAt,
// updatedAt. Each call re-scans after every insertion, so fields added
// earlier in the same call become anchors for the ones that follow,
// clustering them together.
var anchorOrder = []string{"id", "version", "createdAt", "updatedAt"}

// MetadataUpdate selects which of the four fields to patch; a nil pointer
// leaves that field untouched (e.g. SetActive never touches createdAt).
type MetadataUpdate struct {
	Version   *int
	CreatedAt *domain.Timestamp
	UpdatedAt *domain.Timestamp
	Active    *bool
}

// UpdateMetadata rewrites whichever of version, createdAt, updatedAt, and
// active update carries in source using line-oriented regex surgery: every
// other line, including comments, field order, and whitespace, is left
// untouched.
func UpdateMetadata(source, format string, update MetadataUpdate) (string, error) {
	var fields []metadataField
	if update.Version != nil {
		fields = append(fields, metadataField{"version", strconv.Itoa(*update.Version)})
	}
	if update.CreatedAt != nil {
		fields = append(fields, metadataField{"createdAt", update.CreatedAt.Format(time.RFC3339Nano)})
	}
	if update.UpdatedAt != nil {
		// Nanosecond precision so the document's updatedAt matches the
		// stored optimistic-lock token exactly.
		fields = append(fields, metadataField{"updatedAt", update.UpdatedAt.Format(time.RFC3339Nano)})
	}
	if update.Active != nil {
		fields = append(fields, metadataField{"active", strconv.FormatBool(*update.Active)})
	}

	trailingNewline := strings.HasSuffix(source, "\n")
	lines := strings.Split(strings.TrimSuffix(source, "\n"), "\n")

	for _, f := range fields {
		replaced := false
		for i, line := range lines {
			if m := fieldLinePattern(format, f.key).FindStringSubmatch(line); m != nil {
				lines[i] = renderFieldLine(format, m[1], f.key, f.value, m)
				replaced = true
				break
			}
		}
		if replaced {
			continue
		}
		idx := anchorInsertionIndex(format, lines)
		newLine := renderFieldLine(format, "", f.key, f.value, nil)
		lines = insertAfter(lines, idx, newLine)
	}

	out := strings.Join(lines, "\n")
	if trailingNewline {
		out += "\n"
	}
	return out, nil
}

// fieldLinePattern builds the regex matching an existing top-level line for
// key in the given format. Capture group 1 is the leading indentation;
// for JSON, group 2 is the trailing comma if present.
func fieldLinePattern(format, key string) *regexp.Regexp {
	switch format {
	case FormatJSON:
		return regexp.MustCompile(`^(\s*)"` + regexp.QuoteMeta(key) + `"\s*:\s*.*?(,?)\s*$`)
	default: // FormatYAML
		return regexp.MustCompile(`^(\s*)` + regexp.QuoteMeta(key) + `:\s*.*$`)
	}
}

// renderFieldLine formats the replacement/inserted line for key=value. For
// JSON, match carries the trailing-comma capture (group 2) from the line
// being replaced, if any; new JSON insertions never add a trailing comma
// since they are placed as the last property edited in isolation.
func renderFieldLine(format, indent, key, value string, match []string) string {
	switch format {
	case FormatJSON:
		comma := ""
		if len(match) >= 3 {
			comma = match[2]
		}
		return fmt.Sprintf(`%s"%s": %s%s`, indent, key, jsonScalar(key, value), comma)
	default: // FormatYAML
		return fmt.Sprintf("%s%s: %s", indent, key, value)
	}
}

// jsonScalar renders value as a JSON scalar: a quoted string for
// timestamps, a bare literal for version (int) and active (bool).
func jsonScalar(key, value string) string {
	switch key {
	case "version":
		return value
	case "active":
		return value
	default:
		return strconv.Quote(value)
	}
}

// anchorInsertionIndex returns the line index to insert a new field after,
// following anchorOrder: the last anchor in priority order that is present
// in lines wins, since it has since become the innermost (most recently
// added) metadata line.
func anchorInsertionIndex(format string, lines []string) int {
	best := -1
	for _, anchor := range anchorOrder {
		pattern := fieldLinePattern(format, anchor)
		for i, line := range lines {
			if pattern.MatchString(line) {
				best = i
			}
		}
	}
	if best == -1 {
		return len(lines) - 1
	}
	return best
}

func insertAfter(lines []string, idx int, line string) []string {
	if idx < 0 || idx >= len(lines) {
		return append(lines, line)
	}
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:idx+1]...)
	out = append(out, line)
	out = append(out, lines[idx+1:]...)
	return out
}
