package solution

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// IsSolutionFile checks if a file path has the .sln extension
func IsSolutionFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".sln")
}

// IsProjectFile checks if a file path has a project file extension
func IsProjectFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csproj", ".vbproj", ".fsproj":
		return true
	}
	return false
}

// FindSolution returns the single .sln file in dir. It fails when there is
// none or more than one, naming the candidates.
func FindSolution(dir string) (string, error) {
	if dir == "" {
		dir = "."
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("error searching for solution files: %w", err)
	}

	var found []string
	for _, e := range entries {
		if !e.IsDir() && IsSolutionFile(e.Name()) {
			found = append(found, filepath.Join(dir, e.Name()))
		}
	}

	switch len(found) {
	case 0:
		return "", fmt.Errorf("no solution file found in %s", dir)
	case 1:
		abs, err := filepath.Abs(found[0])
		if err != nil {
			return found[0], nil
		}
		return abs, nil
	default:
		return "", fmt.Errorf("multiple solution files found in %s, specify one: %s", dir, strings.Join(found, ", "))
	}
}
