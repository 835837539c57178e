package solution

import (
	"fmt"
	"strings"
)

// ParseError represents an error during solution file parsing
type ParseError struct {
	// FilePath is the path to the file being parsed
	FilePath string

	// Line is the line number where the error occurred
	Line int

	// Column is the column number where the error occurred
	Column int

	// Message describes what went wrong
	Message string
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.Line > 0 && e.Column > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", e.FilePath, e.Line, e.Column, e.Message)
	}
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %s", e.FilePath, e.Line, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.FilePath, e.Message)
}

// Project type GUIDs written in solution files
const (
	ProjectTypeCSProject      = "{FAE04EC0-301F-11D3-BF4B-00C04F79EFBC}"
	ProjectTypeCSProjectSDK   = "{9A19103F-16F7-4668-BE54-9A1E7A4F7556}"
	ProjectTypeVBProject      = "{F184B08F-C81C-45F6-A57F-5ABD9991F28F}"
	ProjectTypeFSProject      = "{F2A71F9B-5D33-465A-A702-920D77279786}"
	ProjectTypeSolutionFolder = "{2150E333-8FDC-42A3-9474-1A3956D46DE8}"
)

// projectTypeFor picks the type GUID for a project file extension.
func projectTypeFor(ext string) string {
	switch strings.ToLower(ext) {
	case ".vbproj":
		return ProjectTypeVBProject
	case ".fsproj":
		return ProjectTypeFSProject
	default:
		return ProjectTypeCSProject
	}
}

// slnFile is the textual content of a .sln file, kept close to the file
// layout so that saving reproduces sections litedev does not interpret.
type slnFile struct {
	FormatVersion              string
	Comments                   []string
	VisualStudioVersion        string
	MinimumVisualStudioVersion string
	Entries                    []slnEntry
	GlobalSections             []slnSection
}

// slnEntry is one Project(...) block: a project or a solution folder.
type slnEntry struct {
	TypeGUID string
	Name     string
	Path     string
	GUID     string
	Sections []slnSection
}

func (e *slnEntry) isFolder() bool {
	return e.TypeGUID == ProjectTypeSolutionFolder
}

// slnSection is a ProjectSection or GlobalSection with its body lines (trimmed).
type slnSection struct {
	Name  string
	When  string
	Lines []string
}

// pairs splits "key = value" body lines.
func (s slnSection) pairs() [][2]string {
	out := make([][2]string, 0, len(s.Lines))
	for _, line := range s.Lines {
		key, value, _ := strings.Cut(line, "=")
		out = append(out, [2]string{strings.TrimSpace(key), strings.TrimSpace(value)})
	}
	return out
}
