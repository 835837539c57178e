package solution

import (
	"path/filepath"
	"strings"
)

// NormalizePath converts Windows-style paths to forward slash format.
// A UNC prefix (\\server) is kept as //server.
func NormalizePath(path string) string {
	if path == "" {
		return ""
	}

	isUNC := strings.HasPrefix(path, "\\\\") || strings.HasPrefix(path, "//")
	normalized := strings.ReplaceAll(path, "\\", "/")
	if isUNC {
		normalized = strings.TrimLeft(normalized, "/")
	}

	for strings.Contains(normalized, "//") {
		normalized = strings.ReplaceAll(normalized, "//", "/")
	}

	if isUNC {
		return "//" + normalized
	}
	return normalized
}

// ResolveProjectPath resolves a project path from a solution file against the solution directory.
func ResolveProjectPath(solutionDir, projectPath string) string {
	if projectPath == "" {
		return ""
	}

	normalized := filepath.FromSlash(NormalizePath(projectPath))
	if filepath.IsAbs(normalized) {
		return filepath.Clean(normalized)
	}
	return filepath.Clean(filepath.Join(solutionDir, normalized))
}

// RelativeProjectPath converts an absolute project path into the backslash
// form solution files store.
func RelativeProjectPath(solutionDir, projectPath string) string {
	rel, err := filepath.Rel(solutionDir, projectPath)
	if err != nil {
		rel = projectPath
	}
	return strings.ReplaceAll(filepath.ToSlash(rel), "/", "\\")
}
