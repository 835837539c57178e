package solution

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/litedev/project"
)

const testSolution = `
Microsoft Visual Studio Solution File, Format Version 12.00
# Visual Studio Version 17
VisualStudioVersion = 17.0.31903.59
MinimumVisualStudioVersion = 10.0.40219.1
Project("{2150E333-8FDC-42A3-9474-1A3956D46DE8}") = "src", "src", "{AAAAAAAA-0000-0000-0000-000000000001}"
	ProjectSection(SolutionItems) = preProject
		README.md = README.md
	EndProjectSection
EndProject
Project("{FAE04EC0-301F-11D3-BF4B-00C04F79EFBC}") = "Lib", "src\Lib\Lib.csproj", "{11111111-1111-1111-1111-111111111111}"
EndProject
Project("{FAE04EC0-301F-11D3-BF4B-00C04F79EFBC}") = "App", "src\App\App.csproj", "{22222222-2222-2222-2222-222222222222}"
	ProjectSection(ProjectDependencies) = postProject
		{11111111-1111-1111-1111-111111111111} = {11111111-1111-1111-1111-111111111111}
	EndProjectSection
EndProject
Global
	GlobalSection(SolutionConfigurationPlatforms) = preSolution
		Release|x86 = Release|x86
		Debug|Any CPU = Debug|Any CPU
	EndGlobalSection
	GlobalSection(ProjectConfigurationPlatforms) = postSolution
		{11111111-1111-1111-1111-111111111111}.Release|x86.ActiveCfg = Release|x86
		{22222222-2222-2222-2222-222222222222}.Release|x86.ActiveCfg = Release|x86
	EndGlobalSection
	GlobalSection(NestedProjects) = preSolution
		{11111111-1111-1111-1111-111111111111} = {AAAAAAAA-0000-0000-0000-000000000001}
		{22222222-2222-2222-2222-222222222222} = {AAAAAAAA-0000-0000-0000-000000000001}
	EndGlobalSection
EndGlobal
`

func projectXML(name, outputType string) string {
	return `<?xml version="1.0" encoding="utf-8"?>
<Project ToolsVersion="4.0" xmlns="http://schemas.microsoft.com/developer/msbuild/2003">
  <PropertyGroup>
    <OutputType>` + outputType + `</OutputType>
    <AssemblyName>` + name + `</AssemblyName>
  </PropertyGroup>
  <PropertyGroup Condition=" '$(Configuration)|$(Platform)' == 'Debug|AnyCPU' ">
    <OutputPath>bin\Debug\</OutputPath>
  </PropertyGroup>
  <ItemGroup>
    <Compile Include="Program.cs" />
  </ItemGroup>
</Project>
`
}

// writeTree creates the test solution with its two projects and returns the .sln path.
func writeTree(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"App.sln":              testSolution,
		"src/Lib/Lib.csproj":   projectXML("Lib", "Library"),
		"src/App/App.csproj":   projectXML("App", "Exe"),
		"src/Tool/Tool.csproj": projectXML("Tool", "Exe"),
	}
	for rel, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return filepath.Join(dir, "App.sln")
}

func loadTree(t *testing.T) *Solution {
	t.Helper()
	s, err := Load(context.Background(), writeTree(t))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestLoad(t *testing.T) {
	s := loadTree(t)

	assert.Equal(t, "App", s.Name())
	assert.False(t, s.Modified())
	assert.False(t, s.HasUnsavedData())
	assert.Equal(t, "Release", s.Configuration(), "first declared configuration is active")
	assert.Equal(t, "x86", s.Platform())
	assert.Equal(t, []string{"Release|x86", "Debug|Any CPU"}, s.Configurations())

	require.Equal(t, 1, s.Root().Folders().Len())
	src := s.Root().Folders().At(0)
	assert.Equal(t, "src", src.Name)
	assert.Equal(t, []string{"README.md"}, src.Items())
	assert.Equal(t, 0, s.Root().Projects().Len())
	require.Equal(t, 2, src.Projects().Len())

	entries := s.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, "Lib", entries[0].Name)
	assert.Same(t, src, entries[0].Parent())
	assert.Equal(t, "App", entries[1].Project.Name())
	assert.Equal(t, filepath.Join(s.Dir(), "src", "App", "App.csproj"), entries[1].Project.Path())
}

func TestLoad_MissingProject(t *testing.T) {
	path := writeTree(t)
	require.NoError(t, os.Remove(filepath.Join(filepath.Dir(path), "src", "App", "App.csproj")))

	_, err := Load(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load project App")
}

func TestLoad_ParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		msg     string
	}{
		{"no header", "Project(\"{FAE04EC0-301F-11D3-BF4B-00C04F79EFBC}\") = \"A\", \"A.csproj\", \"{11111111-1111-1111-1111-111111111111}\"\n", "missing solution file header"},
		{"unterminated project", "Microsoft Visual Studio Solution File, Format Version 12.00\nProject(\"{FAE04EC0-301F-11D3-BF4B-00C04F79EFBC}\") = \"A\", \"A.csproj\", \"{11111111-1111-1111-1111-111111111111}\"\n", "missing EndProject"},
		{"stray end", "Microsoft Visual Studio Solution File, Format Version 12.00\nEndProject\n", "EndProject without Project"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseSln("bad.sln", strings.NewReader(tt.content))
			require.Error(t, err)
			var pe *ParseError
			require.ErrorAs(t, err, &pe)
			assert.Contains(t, pe.Message, tt.msg)
		})
	}
}

func TestFirstExecutableProject(t *testing.T) {
	s := loadTree(t)

	p, ok := s.FirstExecutableProject()
	require.True(t, ok)
	assert.Equal(t, "App", p.Name())

	assert.True(t, s.HasDebuggableProjects(func(p *project.Project) bool { return p.ApplicationType() == project.Console }))
	assert.False(t, s.HasDebuggableProjects(func(p *project.Project) bool { return p.Language().Name == "F#" }))
}

func TestAddProject_SaveAndReload(t *testing.T) {
	s := loadTree(t)

	tool, err := project.Open(context.Background(), filepath.Join(s.Dir(), "src", "Tool", "Tool.csproj"))
	require.NoError(t, err)
	entry, err := s.AddProject(tool, s.Root().Folders().At(0))
	require.NoError(t, err)

	assert.True(t, s.Modified())
	assert.Equal(t, `src\Tool\Tool.csproj`, entry.RelPath)
	assert.Equal(t, ProjectTypeCSProject, entry.TypeGUID)
	assert.Regexp(t, `^\{[0-9A-F-]{36}\}$`, entry.GUID)

	_, err = s.AddProject(tool, nil)
	assert.Error(t, err, "a project file can be listed once")

	require.NoError(t, s.Save(context.Background()))
	assert.False(t, s.Modified())

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	text := string(data)
	assert.True(t, strings.HasPrefix(text, "\ufeff\r\nMicrosoft Visual Studio Solution File, Format Version 12.00\r\n"))
	assert.Contains(t, text, entry.GUID+".Release|x86.ActiveCfg = Release|x86")
	assert.Contains(t, text, entry.GUID+".Debug|Any CPU.Build.0 = Debug|AnyCPU")
	assert.Contains(t, text, "\t\t"+entry.GUID+" = {AAAAAAAA-0000-0000-0000-000000000001}\r\n")
	assert.Contains(t, text, "ProjectSection(ProjectDependencies) = postProject", "unmodeled sections survive")

	reloaded, err := Load(context.Background(), s.Path())
	require.NoError(t, err)
	defer reloaded.Close()
	assert.Len(t, reloaded.Entries(), 3)
	found, ok := reloaded.FindProject("tool")
	require.True(t, ok)
	assert.Equal(t, "src", found.Parent().Name)
}

func TestRemoveProject(t *testing.T) {
	s := loadTree(t)
	lib, ok := s.FindProject("Lib")
	require.True(t, ok)

	assert.True(t, s.RemoveProject(lib))
	assert.False(t, s.RemoveProject(lib))
	assert.Nil(t, lib.Parent())
	assert.True(t, s.Modified())

	var buf bytes.Buffer
	require.NoError(t, s.Encode(&buf))
	assert.NotContains(t, buf.String(), "{11111111-1111-1111-1111-111111111111}.Release")
	assert.NotContains(t, buf.String(), `"Lib"`)
}

func TestAddFolder_Nesting(t *testing.T) {
	s, err := Create(filepath.Join(t.TempDir(), "New.sln"))
	require.NoError(t, err)

	tests := s.AddFolder("tests", nil)
	unit := s.AddFolder("unit", tests)
	assert.Same(t, tests, unit.Parent())

	var buf bytes.Buffer
	require.NoError(t, s.Encode(&buf))
	assert.Contains(t, buf.String(), "GlobalSection(NestedProjects) = preSolution")
	assert.Contains(t, buf.String(), unit.GUID+" = "+tests.GUID)

	tests.Parent().Folders().Remove(tests)
	buf.Reset()
	require.NoError(t, s.Encode(&buf))
	assert.NotContains(t, buf.String(), unit.GUID, "removing a folder removes its subtree")
}

func TestRemoveFolder_DropsNestedProjects(t *testing.T) {
	s := loadTree(t)
	src := s.Root().Folders().At(0)

	require.True(t, s.Root().Folders().Remove(src))
	assert.Empty(t, s.Entries())
	assert.True(t, s.Modified())

	var buf bytes.Buffer
	require.NoError(t, s.Encode(&buf))
	for _, guid := range []string{
		"{AAAAAAAA-0000-0000-0000-000000000001}",
		"{11111111-1111-1111-1111-111111111111}",
		"{22222222-2222-2222-2222-222222222222}",
	} {
		assert.NotContains(t, buf.String(), guid)
	}
}

func TestHasUnsavedData_Project(t *testing.T) {
	s := loadTree(t)
	s.Projects()[0].SetName("Renamed")

	assert.False(t, s.Modified())
	assert.True(t, s.HasUnsavedData())
}

func TestProjectTypeFor(t *testing.T) {
	assert.Equal(t, ProjectTypeVBProject, projectTypeFor(".VBPROJ"))
	assert.Equal(t, ProjectTypeFSProject, projectTypeFor(".fsproj"))
	assert.Equal(t, ProjectTypeCSProject, projectTypeFor(".csproj"))
}
