package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/litedev/cmd/litedev/output"
	"github.com/willibrandon/litedev/project"
)

const testSolution = `
Microsoft Visual Studio Solution File, Format Version 12.00
# Visual Studio Version 17
Project("{FAE04EC0-301F-11D3-BF4B-00C04F79EFBC}") = "App", "App\App.csproj", "{22222222-2222-2222-2222-222222222222}"
EndProject
Global
	GlobalSection(SolutionConfigurationPlatforms) = preSolution
		Debug|Any CPU = Debug|Any CPU
	EndGlobalSection
EndGlobal
`

const testProject = `<?xml version="1.0" encoding="utf-8"?>
<Project ToolsVersion="4.0" xmlns="http://schemas.microsoft.com/developer/msbuild/2003">
  <PropertyGroup>
    <Configuration>Debug</Configuration>
    <Platform>AnyCPU</Platform>
    <OutputType>Exe</OutputType>
    <AssemblyName>App</AssemblyName>
  </PropertyGroup>
  <PropertyGroup Condition=" '$(Configuration)|$(Platform)' == 'Debug|AnyCPU' ">
    <OutputPath>bin\Debug\</OutputPath>
  </PropertyGroup>
  <ItemGroup>
    <Compile Include="Program.cs" />
  </ItemGroup>
</Project>
`

// workspace writes a solution with one executable project into a temporary
// working directory and returns the solution path.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	write(t, filepath.Join(dir, "App.sln"), testSolution, 0o644)
	write(t, filepath.Join(dir, "App", "App.csproj"), testProject, 0o644)
	write(t, filepath.Join(dir, "App", "Program.cs"), "class Program { static void Main() {} }\n", 0o644)
	return filepath.Join(dir, "App.sln")
}

func write(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), mode))
}

// fakeTool installs a shell script as the build tool.
func fakeTool(t *testing.T, script string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("build tool fake is a shell script")
	}
	tool := filepath.Join(t.TempDir(), "fake-dotnet")
	write(t, tool, "#!/bin/sh\n"+script+"\n", 0o755)
	t.Setenv("LITEDEV_BUILD_TOOL", tool)
}

func newConsole() (*output.Console, *bytes.Buffer) {
	var out bytes.Buffer
	console := output.NewConsole(&out, &out, output.VerbosityNormal)
	console.SetColors(false)
	return console, &out
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd.SetArgs(args)
	cmd.SetIn(&bytes.Buffer{})
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestVersionCommand(t *testing.T) {
	console, out := newConsole()
	_, err := execute(t, NewVersionCommand(console))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "litedev version")

	_, err = execute(t, NewVersionCommand(console), "extra")
	assert.Error(t, err)
}

func TestBuildCommand_Success(t *testing.T) {
	sln := workspace(t)
	fakeTool(t, `echo "Program.cs(3,9): warning CS0168: The variable 'e' is declared but never used"`)
	console, out := newConsole()

	_, err := execute(t, NewBuildCommand(console), sln)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Build started")
	assert.Contains(t, out.String(), "0 error(s), 1 warning(s)")
	assert.Contains(t, out.String(), "Build succeeded")
}

func TestBuildCommand_Failure(t *testing.T) {
	workspace(t)
	fakeTool(t, `echo "Program.cs(7,30): error CS1002: ; expected [App.csproj]"; exit 1`)
	console, out := newConsole()

	// the solution is found in the working directory
	_, err := execute(t, NewBuildCommand(console))
	require.EqualError(t, err, "build failed with 1 error(s)")
	assert.Contains(t, out.String(), "Program.cs(7,30): error CS1002: ; expected")
}

func TestCleanCommand(t *testing.T) {
	sln := workspace(t)
	fakeTool(t, `[ "$1" = clean ] || exit 3`)
	console, out := newConsole()

	_, err := execute(t, NewCleanCommand(console), sln)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Clean succeeded")
}

func TestRunCommand(t *testing.T) {
	sln := workspace(t)
	fakeTool(t, "exit 0")
	write(t, filepath.Join(filepath.Dir(sln), "App", "bin", "Debug", "App.exe"),
		"#!/bin/sh\necho hello from App\n", 0o755)
	console, _ := newConsole()

	stdout, err := execute(t, NewRunCommand(console), sln)
	require.NoError(t, err)
	assert.Equal(t, "hello from App\n", stdout)

	stdout, err = execute(t, NewRunCommand(console), "--no-build", sln)
	require.NoError(t, err)
	assert.Equal(t, "hello from App\n", stdout)
}

func TestRunCommand_ExitCode(t *testing.T) {
	sln := workspace(t)
	fakeTool(t, "exit 0")
	write(t, filepath.Join(filepath.Dir(sln), "App", "bin", "Debug", "App.exe"), "#!/bin/sh\nexit 4\n", 0o755)
	console, _ := newConsole()

	_, err := execute(t, NewRunCommand(console), "--no-build", sln)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exited with code 4")
}

func TestProjectCommands(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	proj := filepath.Join(dir, "Tool", "Tool.csproj")
	console, out := newConsole()

	_, err := execute(t, NewProjectCommand(console), "new", "--type", "Exe", proj)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "(C#)")

	_, err = execute(t, NewProjectCommand(console), "new", proj)
	assert.Error(t, err, "existing projects are not overwritten")

	out.Reset()
	_, err = execute(t, NewProjectCommand(console), "show", proj)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Output type:   Console")

	_, err = execute(t, NewProjectCommand(console), "new", "--type", "Service", filepath.Join(dir, "Other.csproj"))
	assert.Error(t, err)
}

func TestFilesCommands(t *testing.T) {
	sln := workspace(t)
	proj := filepath.Join(filepath.Dir(sln), "App", "App.csproj")
	appDir := filepath.Dir(proj)
	write(t, filepath.Join(appDir, "Models", "User.cs"), "class User {}\n", 0o644)
	write(t, filepath.Join(appDir, "Models", "Role.cs"), "class Role {}\n", 0o644)
	write(t, filepath.Join(appDir, "Strings.resx"), "<root />\n", 0o644)
	console, out := newConsole()

	_, err := execute(t, NewFilesCommand(console), "add", proj, "**/*.cs", "*.resx")
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Added 3 file(s) to App")

	p, err := project.Open(t.Context(), proj)
	require.NoError(t, err)
	for _, f := range []string{"Program.cs", "Models/Role.cs", "Models/User.cs", "Strings.resx"} {
		_, ok := p.FindFile(filepath.Join(appDir, filepath.FromSlash(f)))
		assert.True(t, ok, f)
	}
	p.Close()

	_, err = execute(t, NewFilesCommand(console), "add", proj, "**/*.vb")
	assert.EqualError(t, err, "no files match **/*.vb")

	_, err = execute(t, NewFilesCommand(console), "mv", proj, "Models/Role.cs", "Security/Role.cs")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(appDir, "Security", "Role.cs"))

	_, err = execute(t, NewFilesCommand(console), "mv", proj, "Models/User.cs", "Program.cs")
	require.ErrorIs(t, err, project.ErrPathInUse)
	assert.FileExists(t, filepath.Join(appDir, "Models", "User.cs"), "a refused move leaves the disk alone")

	_, err = execute(t, NewFilesCommand(console), "rm", proj, "Models/User.cs")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(appDir, "Models", "User.cs"), "removing a file keeps it on disk")

	out.Reset()
	_, err = execute(t, NewFilesCommand(console), "list", proj)
	require.NoError(t, err)
	assert.Equal(t, "Program.cs\n"+filepath.Join("Security", "Role.cs")+"\nStrings.resx\n",
		sortedLines(out.String()))

	_, err = execute(t, NewFilesCommand(console), "rm", proj, "Missing.cs")
	assert.Error(t, err)
}

func TestRefsCommands(t *testing.T) {
	sln := workspace(t)
	proj := filepath.Join(filepath.Dir(sln), "App", "App.csproj")
	console, out := newConsole()

	_, err := execute(t, NewRefsCommand(console), "add", proj, "System.Xml")
	require.NoError(t, err)
	_, err = execute(t, NewRefsCommand(console), "add", "--hint-path", `..\lib\Newtonsoft.Json.dll`, proj, "Newtonsoft.Json")
	require.NoError(t, err)
	_, err = execute(t, NewRefsCommand(console), "add", proj, "system.xml")
	assert.Error(t, err, "reference names are unique regardless of case")

	out.Reset()
	_, err = execute(t, NewRefsCommand(console), "list", proj)
	require.NoError(t, err)
	assert.Equal(t, "System.Xml\nNewtonsoft.Json (..\\lib\\Newtonsoft.Json.dll)\n", out.String())

	_, err = execute(t, NewRefsCommand(console), "rm", proj, "System.Xml")
	require.NoError(t, err)
	_, err = execute(t, NewRefsCommand(console), "rm", proj, "System.Xml")
	assert.Error(t, err)
}

func TestPropsCommands(t *testing.T) {
	sln := workspace(t)
	proj := filepath.Join(filepath.Dir(sln), "App", "App.csproj")
	console, out := newConsole()

	_, err := execute(t, NewPropsCommand(console), "get", proj, "OutputType")
	require.NoError(t, err)
	assert.Equal(t, "Exe\n", out.String())

	_, err = execute(t, NewPropsCommand(console), "set", "-c", "Release", proj, "OutputPath", `bin\Release\`)
	require.NoError(t, err)

	out.Reset()
	_, err = execute(t, NewPropsCommand(console), "get", "-c", "Release", proj, "OutputPath")
	require.NoError(t, err)
	assert.Equal(t, "bin\\Release\\\n", out.String())

	_, err = execute(t, NewPropsCommand(console), "unset", "-c", "Release", proj, "OutputPath")
	require.NoError(t, err)
	_, err = execute(t, NewPropsCommand(console), "unset", "-c", "Release", proj, "OutputPath")
	assert.Error(t, err)
}

func TestFindDebugCommand(t *testing.T) {
	tests := []struct {
		input string
		name  string
		ok    bool
	}{
		{"continue", "continue", true},
		{"c", "continue", true},
		{" N ", "next", true},
		{"s", "step", true},
		{"out", "out", true},
		{"p", "pause", true},
		{"q", "stop", true},
		{"jump", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			c, ok := findDebugCommand(tt.input)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.name, c.names[0])
			}
		})
	}
}

func sortedLines(s string) string {
	lines := strings.Split(strings.TrimSuffix(s, "\n"), "\n")
	sort.Strings(lines)
	return strings.Join(lines, "\n") + "\n"
}
