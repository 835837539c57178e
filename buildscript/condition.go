package buildscript

import (
	"fmt"
	"regexp"
	"strings"
)

// Condition is the structured form of a property group condition such as
// '$(Configuration)|$(Platform)' == 'Debug|AnyCPU'.
// An empty field means the condition does not constrain that variable.
type Condition struct {
	Configuration string
	Platform      string
}

var (
	conditionRegex = regexp.MustCompile(`^\s*'([^']*)'\s*==\s*'([^']*)'\s*$`)
	variableRegex  = regexp.MustCompile(`^\s*\$\(\s*([A-Za-z_][A-Za-z0-9_]*)\s*\)\s*$`)
)

// ParseCondition parses an equality condition over $(Configuration) and
// $(Platform). It returns false for anything else, including conditions over
// other variables.
func ParseCondition(s string) (Condition, bool) {
	m := conditionRegex.FindStringSubmatch(s)
	if m == nil {
		return Condition{}, false
	}

	vars := strings.Split(m[1], "|")
	values := strings.Split(m[2], "|")
	if len(vars) != len(values) {
		return Condition{}, false
	}

	var c Condition
	for i, v := range vars {
		name := variableRegex.FindStringSubmatch(v)
		if name == nil {
			return Condition{}, false
		}
		value := strings.TrimSpace(values[i])
		switch strings.ToLower(name[1]) {
		case "configuration":
			c.Configuration = value
		case "platform":
			c.Platform = value
		default:
			return Condition{}, false
		}
	}
	return c, true
}

// String formats the condition the way Visual Studio writes it.
func (c Condition) String() string {
	switch {
	case c.Configuration != "" && c.Platform != "":
		return fmt.Sprintf(" '$(Configuration)|$(Platform)' == '%s|%s' ", c.Configuration, c.Platform)
	case c.Configuration != "":
		return fmt.Sprintf(" '$(Configuration)' == '%s' ", c.Configuration)
	case c.Platform != "":
		return fmt.Sprintf(" '$(Platform)' == '%s' ", c.Platform)
	default:
		return ""
	}
}

// Matches reports whether every variable the condition constrains equals the
// requested value (case-insensitive).
func (c Condition) Matches(config, platform string) bool {
	if c.Configuration == "" && c.Platform == "" {
		return false
	}
	if c.Configuration != "" && !strings.EqualFold(c.Configuration, config) {
		return false
	}
	if c.Platform != "" && !strings.EqualFold(c.Platform, platform) {
		return false
	}
	return true
}

// legacyMatch is the containment test older tooling used on raw condition text.
// It is only consulted for conditions ParseCondition rejects.
func legacyMatch(raw, config, platform string) bool {
	return strings.Contains(raw, config+"|"+platform)
}
