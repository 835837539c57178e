package project

import (
	"path/filepath"
	"slices"
	"strings"
)

// Language describes a .NET language a project can be written in.
type Language struct {
	Name string

	// ProjectExtension is the build script extension, e.g. ".csproj"
	ProjectExtension string

	// SourceExtensions lists the file extensions compiled by this language
	SourceExtensions []string

	// TargetsImport is the MSBuild targets file new projects import
	TargetsImport string
}

// Known languages.
var (
	CSharp = Language{
		Name:             "C#",
		ProjectExtension: ".csproj",
		SourceExtensions: []string{".cs"},
		TargetsImport:    `$(MSBuildToolsPath)\Microsoft.CSharp.targets`,
	}
	VisualBasic = Language{
		Name:             "Visual Basic",
		ProjectExtension: ".vbproj",
		SourceExtensions: []string{".vb"},
		TargetsImport:    `$(MSBuildToolsPath)\Microsoft.VisualBasic.targets`,
	}
	FSharp = Language{
		Name:             "F#",
		ProjectExtension: ".fsproj",
		SourceExtensions: []string{".fs", ".fsi"},
		TargetsImport:    `$(MSBuildExtensionsPath32)\Microsoft\VisualStudio\v$(VisualStudioVersion)\FSharp\Microsoft.FSharp.Targets`,
	}
)

// Languages lists every supported language.
var Languages = []Language{CSharp, VisualBasic, FSharp}

// LanguageForProjectFile returns the language owning a build script based on its extension.
func LanguageForProjectFile(path string) (Language, bool) {
	ext := filepath.Ext(path)
	for _, l := range Languages {
		if strings.EqualFold(l.ProjectExtension, ext) {
			return l, true
		}
	}
	return Language{}, false
}

// IsSourceFile reports whether path has one of the language's source extensions.
func (l Language) IsSourceFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return slices.Contains(l.SourceExtensions, ext)
}

// Build script item types for project files.
const (
	ItemCompile          = "Compile"
	ItemEmbeddedResource = "EmbeddedResource"
	ItemNone             = "None"
	ItemReference        = "Reference"
)

// ItemTypeFor derives the build script item type of a file from its extension.
// Callers must not cache the result across path changes.
func (l Language) ItemTypeFor(path string) string {
	switch {
	case strings.EqualFold(filepath.Ext(path), ".resx"):
		return ItemEmbeddedResource
	case l.IsSourceFile(path):
		return ItemCompile
	default:
		return ItemNone
	}
}

// isFileItemType reports whether itemType names an item the model tracks as a FileEntry.
func isFileItemType(itemType string) bool {
	switch itemType {
	case ItemCompile, ItemEmbeddedResource, ItemNone:
		return true
	}
	return false
}
