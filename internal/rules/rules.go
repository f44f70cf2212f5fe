// Package rules evaluates user-defined categorization rules against file
// attributes. Evaluation is pure and deterministic: the first enabled rule
// (in list order) whose predicate holds wins.
package rules

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/tidydrive/tidydrive/internal/catalog"
	"github.com/tidydrive/tidydrive/internal/drive"
)

// Operators understood by Match. Anything else evaluates to non-match.
const (
	OpContains   = "contains"
	OpEquals     = "equals"
	OpStartsWith = "startsWith"
	OpEndsWith   = "endsWith"
	OpMatches    = "matches"
)

// Match reports whether a single rule matches the file. Disabled rules,
// unknown fields, unknown operators, and malformed regular expressions all
// evaluate to false; a rule can never make evaluation fail.
func Match(f drive.File, r catalog.Rule) bool {
	if !r.Enabled {
		return false
	}

	subject, ok := fieldValue(f, r.Field)
	if !ok {
		return false
	}

	value := r.Value
	if !r.CaseSensitive && r.Operator != OpMatches {
		subject = strings.ToLower(subject)
		value = strings.ToLower(value)
	}

	switch r.Operator {
	case OpContains:
		if !isNameField(r.Field) {
			return value != "" && strings.Contains(subject, value)
		}
		// Comma-separated values on the name field act as an OR of keywords.
		for _, kw := range strings.Split(value, ",") {
			kw = strings.TrimSpace(kw)
			if kw != "" && strings.Contains(subject, kw) {
				return true
			}
		}
		return false
	case OpEquals:
		return subject == value
	case OpStartsWith:
		return strings.HasPrefix(subject, value)
	case OpEndsWith:
		return strings.HasSuffix(subject, value)
	case OpMatches:
		// Case folding the pattern text would turn classes like \D into \d,
		// so insensitivity goes through the regexp engine instead.
		if !r.CaseSensitive {
			value = "(?i)" + value
		}
		re, err := regexp.Compile(value)
		if err != nil {
			slog.Debug("skipping rule with malformed pattern", "rule_id", r.ID, "pattern", r.Value)
			return false
		}
		return re.MatchString(subject)
	default:
		return false
	}
}

// isNameField reports whether the field carries the filename, the only field
// where a contains value is read as a keyword list.
func isNameField(field string) bool {
	return field == "name" || field == "filename"
}

// FirstMatch returns the category id of the first rule (in list order) that
// matches the file, or "" if none do. List order is the documented tie-break.
func FirstMatch(f drive.File, rs []catalog.Rule) string {
	for _, r := range rs {
		if Match(f, r) {
			return r.CategoryID
		}
	}
	return ""
}

// fieldValue maps the rule field vocabulary to a file attribute.
func fieldValue(f drive.File, field string) (string, bool) {
	switch field {
	case "name", "filename":
		return f.Name, true
	case "mimeType", "mime":
		return f.MimeType, true
	case "owner":
		return f.Owner(), true
	default:
		return "", false
	}
}
