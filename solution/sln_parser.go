package solution

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
)

var (
	formatVersionRegex = regexp.MustCompile(`^Microsoft Visual Studio Solution File, Format Version (\S+)`)
	vsVersionRegex     = regexp.MustCompile(`^VisualStudioVersion\s*=\s*(\S+)`)
	minVSVersionRegex  = regexp.MustCompile(`^MinimumVisualStudioVersion\s*=\s*(\S+)`)

	// Project("{TYPE}") = "Name", "Path", "{GUID}"
	projectRegex = regexp.MustCompile(
		`(?i)^Project\("\{([A-F0-9-]+)\}"\)\s*=\s*"([^"]+)",\s*"([^"]+)",\s*"\{([A-F0-9-]+)\}"`,
	)

	// ProjectSection(Name) = when / GlobalSection(Name) = when
	sectionRegex = regexp.MustCompile(`^(?:Project|Global)Section\(([^)]+)\)\s*=\s*(\S+)`)
)

// parseSlnFile reads a .sln file from disk.
func parseSlnFile(path string) (*slnFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ParseError{
			FilePath: path,
			Message:  fmt.Sprintf("cannot open file: %v", err),
		}
	}
	return parseSln(path, bytes.NewReader(data))
}

// parseSln parses .sln text. path is used in errors only.
func parseSln(path string, r io.Reader) (*slnFile, error) {
	sln := &slnFile{}

	scanner := bufio.NewScanner(r)
	lineNum := 0
	var current *slnEntry
	var section *slnSection
	inGlobal := false

	for scanner.Scan() {
		lineNum++
		line := strings.TrimPrefix(scanner.Text(), "\ufeff")
		trimmed := strings.TrimSpace(line)

		if trimmed == "" {
			continue
		}

		if section != nil {
			if trimmed == "EndProjectSection" || trimmed == "EndGlobalSection" {
				if current != nil {
					current.Sections = append(current.Sections, *section)
				} else {
					sln.GlobalSections = append(sln.GlobalSections, *section)
				}
				section = nil
				continue
			}
			section.Lines = append(section.Lines, trimmed)
			continue
		}

		if strings.HasPrefix(trimmed, "#") {
			sln.Comments = append(sln.Comments, trimmed)
			continue
		}

		if matches := formatVersionRegex.FindStringSubmatch(trimmed); matches != nil {
			sln.FormatVersion = matches[1]
			continue
		}
		if matches := vsVersionRegex.FindStringSubmatch(trimmed); matches != nil {
			sln.VisualStudioVersion = matches[1]
			continue
		}
		if matches := minVSVersionRegex.FindStringSubmatch(trimmed); matches != nil {
			sln.MinimumVisualStudioVersion = matches[1]
			continue
		}

		if sln.FormatVersion == "" {
			return nil, &ParseError{
				FilePath: path,
				Line:     lineNum,
				Column:   1,
				Message:  "missing solution file header",
			}
		}

		if matches := projectRegex.FindStringSubmatch(trimmed); matches != nil {
			if current != nil {
				return nil, &ParseError{FilePath: path, Line: lineNum, Message: "nested Project block: missing EndProject"}
			}
			current = &slnEntry{
				TypeGUID: "{" + strings.ToUpper(matches[1]) + "}",
				Name:     matches[2],
				Path:     matches[3],
				GUID:     "{" + strings.ToUpper(matches[4]) + "}",
			}
			continue
		}

		if trimmed == "EndProject" {
			if current == nil {
				return nil, &ParseError{FilePath: path, Line: lineNum, Message: "EndProject without Project"}
			}
			sln.Entries = append(sln.Entries, *current)
			current = nil
			continue
		}

		if matches := sectionRegex.FindStringSubmatch(trimmed); matches != nil {
			if current == nil && !inGlobal {
				return nil, &ParseError{FilePath: path, Line: lineNum, Message: "section outside Project or Global"}
			}
			section = &slnSection{Name: matches[1], When: matches[2]}
			continue
		}

		switch trimmed {
		case "Global":
			inGlobal = true
		case "EndGlobal":
			inGlobal = false
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, &ParseError{
			FilePath: path,
			Message:  fmt.Sprintf("error reading file: %v", err),
		}
	}

	if current != nil || section != nil {
		return nil, &ParseError{
			FilePath: path,
			Line:     lineNum,
			Message:  "unexpected end of file: missing EndProject",
		}
	}
	if sln.FormatVersion == "" {
		return nil, &ParseError{FilePath: path, Message: "missing solution file header"}
	}

	return sln, nil
}
