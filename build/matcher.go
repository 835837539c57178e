package build

import (
	"regexp"
	"strconv"
	"strings"
)

// Pattern extracts a problem from one output line. Group indexes are 1-based;
// 0 means the pattern has no such group.
type Pattern struct {
	Regex *regexp.Regexp

	File     int
	Line     int
	Column   int
	Severity int
	Code     int
	Message  int
	Project  int
}

// Matcher turns build tool output lines into Errors.
type Matcher struct {
	patterns []Pattern
	seen     map[Error]bool
}

// MSBuild output formats: "file(line,col): error CS1002: text [proj]" and
// "origin : error MSB1009: text [proj]".
var (
	msbuildFilePattern = Pattern{
		Regex:    regexp.MustCompile(`^\s*(.+?)\((\d+)(?:,(\d+)(?:,\d+,\d+)?)?\)\s*:\s*(error|warning|message)\s+([A-Za-z]+\d+)?\s*:\s*(.*?)(?:\s+\[([^\]]+)\])?\s*$`),
		File:     1,
		Line:     2,
		Column:   3,
		Severity: 4,
		Code:     5,
		Message:  6,
		Project:  7,
	}
	msbuildOriginPattern = Pattern{
		Regex:    regexp.MustCompile(`^\s*((?:[A-Za-z]:)?[^:(]+?)\s*:\s*(error|warning)\s+([A-Za-z]+\d+)\s*:\s*(.*?)(?:\s+\[([^\]]+)\])?\s*$`),
		File:     1,
		Severity: 2,
		Code:     3,
		Message:  4,
		Project:  5,
	}
)

// NewMSBuildMatcher returns a matcher for csc, vbc, fsc and MSBuild diagnostics.
// Diagnostics repeated in the tool's closing summary are reported once.
func NewMSBuildMatcher() *Matcher {
	return NewMatcher(msbuildFilePattern, msbuildOriginPattern)
}

// NewMatcher returns a matcher trying patterns in order.
func NewMatcher(patterns ...Pattern) *Matcher {
	return &Matcher{patterns: patterns, seen: make(map[Error]bool)}
}

// Match returns the problem on line, if any. A problem identical to one
// already matched is not returned again.
func (m *Matcher) Match(line string) (Error, bool) {
	for _, p := range m.patterns {
		groups := p.Regex.FindStringSubmatch(line)
		if groups == nil {
			continue
		}

		e := Error{
			Severity: parseSeverity(group(groups, p.Severity)),
			Code:     group(groups, p.Code),
			Message:  group(groups, p.Message),
			Project:  group(groups, p.Project),
			Location: Location{
				File:   group(groups, p.File),
				Line:   atoi(group(groups, p.Line)),
				Column: atoi(group(groups, p.Column)),
			},
		}
		if e.Location.File == "MSBUILD" || e.Location.File == e.Project {
			e.Location.File = ""
		}

		if m.seen[e] {
			return Error{}, false
		}
		m.seen[e] = true
		return e, true
	}
	return Error{}, false
}

func group(groups []string, i int) string {
	if i <= 0 || i >= len(groups) {
		return ""
	}
	return strings.TrimSpace(groups[i])
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func parseSeverity(s string) Severity {
	switch strings.ToLower(s) {
	case "warning":
		return SeverityWarning
	case "message", "info":
		return SeverityMessage
	default:
		return SeverityError
	}
}
