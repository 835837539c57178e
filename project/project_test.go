package project

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/willibrandon/litedev/buildscript"
	"github.com/willibrandon/litedev/observability"
)

const calculatorProject = `<?xml version="1.0" encoding="utf-8"?>
<Project ToolsVersion="4.0" DefaultTargets="Build" xmlns="http://schemas.microsoft.com/developer/msbuild/2003">
  <PropertyGroup>
    <Configuration Condition=" '$(Configuration)' == '' ">Debug</Configuration>
    <Platform Condition=" '$(Platform)' == '' ">AnyCPU</Platform>
    <OutputType>WinExe</OutputType>
    <AssemblyName>Calculator</AssemblyName>
  </PropertyGroup>
  <PropertyGroup Condition=" '$(Configuration)|$(Platform)' == 'Debug|AnyCPU' ">
    <OutputPath>bin\Debug\</OutputPath>
  </PropertyGroup>
  <PropertyGroup Condition=" '$(Configuration)|$(Platform)' == 'Release|AnyCPU' ">
    <OutputPath>bin\Release\</OutputPath>
  </PropertyGroup>
  <ItemGroup>
    <Reference Include="System" />
    <Reference Include="Newtonsoft.Json">
      <SpecificVersion>False</SpecificVersion>
      <HintPath>..\packages\Newtonsoft.Json.dll</HintPath>
    </Reference>
  </ItemGroup>
  <ItemGroup>
    <Compile Include="Program.cs" />
    <Compile Include="Form1.cs" />
    <Compile Include="Form1.Designer.cs">
      <DependentUpon>Form1.cs</DependentUpon>
    </Compile>
    <Compile Include="Properties\AssemblyInfo.cs" />
    <EmbeddedResource Include="Form1.resx">
      <DependentUpon>Form1.cs</DependentUpon>
    </EmbeddedResource>
    <None Include="App.config" />
  </ItemGroup>
  <Import Project="$(MSBuildToolsPath)\Microsoft.CSharp.targets" />
</Project>
`

func writeProject(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "Calculator.csproj")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func openCalculator(t *testing.T, opts ...Option) *Project {
	t.Helper()
	p, err := Open(context.Background(), writeProject(t, calculatorProject), opts...)
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func itemIncludes(doc *buildscript.Document, itemType string) []string {
	var out []string
	for _, item := range doc.ItemsOfType(itemType) {
		out = append(out, item.Include)
	}
	return out
}

func TestOpen(t *testing.T) {
	p := openCalculator(t)

	assert.Equal(t, "Calculator", p.Name())
	assert.Equal(t, Windows, p.ApplicationType())
	assert.Equal(t, "Debug", p.Configuration())
	assert.Equal(t, "AnyCPU", p.Platform())
	assert.Equal(t, filepath.Join(p.Dir(), "bin", "Debug"), p.OutputDirectory())
	assert.Equal(t, filepath.Join(p.Dir(), "bin", "Debug", "Calculator.exe"), p.OutputFile())
	assert.False(t, p.HasUnsavedData())
	assert.False(t, p.Document().Modified(), "loading must not write to the script")

	assert.Equal(t, 6, p.Files().Len())
	assert.Equal(t, 2, p.References().Len())

	designer, ok := p.FindFile(filepath.Join(p.Dir(), "Form1.Designer.cs"))
	require.True(t, ok)
	assert.Equal(t, []string{"Form1.cs"}, designer.Dependencies.Items())
	assert.Same(t, p, designer.Project())

	info, ok := p.FindFile(filepath.Join(p.Dir(), "Properties", "AssemblyInfo.cs"))
	require.True(t, ok)
	assert.Equal(t, "AssemblyInfo.cs", info.Name())

	json, ok := p.FindReference("newtonsoft.json")
	require.True(t, ok)
	assert.Equal(t, `..\packages\Newtonsoft.Json.dll`, json.HintPath)
	assert.False(t, json.SpecificVersion)
}

func TestOpen_UnknownReferenceMetadata(t *testing.T) {
	content := strings.Replace(calculatorProject,
		"<HintPath>..\\packages\\Newtonsoft.Json.dll</HintPath>",
		"<HintPath>..\\packages\\Newtonsoft.Json.dll</HintPath>\n      <Private>True</Private>", 1)

	_, err := Open(context.Background(), writeProject(t, content))
	require.Error(t, err)
	assert.True(t, errors.Is(err, buildscript.ErrFormatViolation))

	var formatErr *buildscript.FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Equal(t, "Private", formatErr.Key)
	assert.Equal(t, "Newtonsoft.Json", formatErr.Include)
	assert.Contains(t, err.Error(), "Private")
}

func TestOpen_InvalidSpecificVersion(t *testing.T) {
	content := strings.Replace(calculatorProject, "<SpecificVersion>False</SpecificVersion>", "<SpecificVersion>maybe</SpecificVersion>", 1)

	_, err := Open(context.Background(), writeProject(t, content))
	assert.ErrorIs(t, err, buildscript.ErrFormatViolation)
}

func TestOpen_UnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Calculator.proj")
	require.NoError(t, os.WriteFile(path, []byte(calculatorProject), 0o644))

	_, err := Open(context.Background(), path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported project file type")

	p, err := Open(context.Background(), path, WithLanguage(CSharp))
	require.NoError(t, err)
	assert.Equal(t, "C#", p.Language().Name)
}

func TestItemTypeFor(t *testing.T) {
	tests := []struct {
		lang Language
		path string
		want string
	}{
		{CSharp, "Program.cs", ItemCompile},
		{CSharp, "PROGRAM.CS", ItemCompile},
		{CSharp, "Module.vb", ItemNone},
		{CSharp, "Form1.resx", ItemEmbeddedResource},
		{VisualBasic, "Form1.RESX", ItemEmbeddedResource},
		{VisualBasic, "Module.vb", ItemCompile},
		{FSharp, "Library.fs", ItemCompile},
		{FSharp, "Library.fsi", ItemCompile},
		{CSharp, "App.config", ItemNone},
		{CSharp, "README", ItemNone},
	}

	for _, tt := range tests {
		t.Run(tt.lang.Name+"/"+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.lang.ItemTypeFor(tt.path))
		})
	}
}

func TestAddFile(t *testing.T) {
	p := openCalculator(t)

	entry := NewFileEntry(filepath.Join(p.Dir(), "Views", "Main.cs"))
	entry.Dependencies.Add("Main.xaml")
	require.True(t, p.Files().Add(entry))

	assert.True(t, p.HasUnsavedData())
	item := p.Document().FindItem(ItemCompile, `Views\Main.cs`)
	require.NotNil(t, item)
	assert.Equal(t, `Views\Main.cs`, item.Include)
	assert.Equal(t, []string{"Main.xaml"}, item.MetadataValues("DependentUpon"))

	resx := p.AddFile(filepath.Join(p.Dir(), "Strings.resx"))
	assert.NotNil(t, p.Document().FindItem(ItemEmbeddedResource, "Strings.resx"))
	assert.Same(t, resx, p.AddFile(filepath.Join(p.Dir(), "strings.RESX")), "same path must not be tracked twice")
	assert.Len(t, p.Document().ItemsOfType(ItemEmbeddedResource), 2)
}

func TestRemoveFile(t *testing.T) {
	p := openCalculator(t)

	require.True(t, p.RemoveFile(filepath.Join(p.Dir(), "program.cs")))

	assert.NotContains(t, itemIncludes(p.Document(), ItemCompile), "Program.cs")
	assert.Len(t, p.Document().ItemsOfType(ItemCompile), 3)
	assert.True(t, p.HasUnsavedData())
	assert.False(t, p.RemoveFile(filepath.Join(p.Dir(), "Program.cs")))
}

func TestRemovedEntryIsDetached(t *testing.T) {
	p := openCalculator(t)

	entry, ok := p.FindFile(filepath.Join(p.Dir(), "Form1.cs"))
	require.True(t, ok)
	require.True(t, p.Files().Remove(entry))
	assert.Nil(t, entry.Project())

	before := len(p.Document().Items())
	require.NoError(t, entry.SetPath(filepath.Join(p.Dir(), "Other.cs")))
	entry.Dependencies.Add("Other.xaml")
	assert.Len(t, p.Document().Items(), before, "a detached entry must not edit the script")
}

func TestRenameFile_KeepsDependentUpon(t *testing.T) {
	p := openCalculator(t)

	entry, ok := p.FindFile(filepath.Join(p.Dir(), "Form1.Designer.cs"))
	require.True(t, ok)
	countBefore := len(p.Document().ItemsOfType(ItemCompile))

	require.NoError(t, entry.SetPath(filepath.Join(p.Dir(), "UI", "MainForm.Designer.cs")))

	compiles := itemIncludes(p.Document(), ItemCompile)
	assert.Len(t, compiles, countBefore, "rename must not duplicate the item")
	assert.Contains(t, compiles, `UI\MainForm.Designer.cs`)
	assert.NotContains(t, compiles, "Form1.Designer.cs")

	item := p.Document().FindItem(ItemCompile, `UI\MainForm.Designer.cs`)
	require.NotNil(t, item)
	assert.Equal(t, []string{"Form1.cs"}, item.MetadataValues("DependentUpon"))
	assert.True(t, p.HasUnsavedData())
}

func TestRenameFile_ChangesItemType(t *testing.T) {
	p := openCalculator(t)

	entry, ok := p.FindFile(filepath.Join(p.Dir(), "App.config"))
	require.True(t, ok)

	require.NoError(t, entry.SetPath(filepath.Join(p.Dir(), "App.cs")))

	assert.NotNil(t, p.Document().FindItem(ItemCompile, "App.cs"))
	assert.Empty(t, p.Document().ItemsOfType(ItemNone))
}

func TestRenameFile_OntoTrackedPathIsRejected(t *testing.T) {
	p := openCalculator(t)

	entry, ok := p.FindFile(filepath.Join(p.Dir(), "Form1.cs"))
	require.True(t, ok)
	countBefore := len(p.Document().ItemsOfType(ItemCompile))

	err := entry.SetPath(filepath.Join(p.Dir(), "program.CS"))
	require.ErrorIs(t, err, ErrPathInUse)
	assert.Equal(t, filepath.Join(p.Dir(), "Form1.cs"), entry.Path())
	assert.Len(t, p.Document().ItemsOfType(ItemCompile), countBefore)
	assert.NotNil(t, p.Document().FindItem(ItemCompile, "Form1.cs"))
	assert.False(t, p.HasUnsavedData())

	// a case-only rename of the entry itself is fine
	require.NoError(t, entry.SetPath(filepath.Join(p.Dir(), "FORM1.cs")))
	found, ok := p.FindFile(filepath.Join(p.Dir(), "form1.cs"))
	require.True(t, ok)
	assert.Same(t, entry, found)
}

func TestDependencies(t *testing.T) {
	p := openCalculator(t)

	entry, ok := p.FindFile(filepath.Join(p.Dir(), "Form1.resx"))
	require.True(t, ok)
	item := p.Document().FindItem(ItemEmbeddedResource, "Form1.resx")
	require.NotNil(t, item)

	entry.Dependencies.Add("Form1.Designer.cs")
	assert.Equal(t, []string{"Form1.cs", "Form1.Designer.cs"}, item.MetadataValues("DependentUpon"))

	entry.Dependencies.Remove("Form1.cs")
	assert.Equal(t, []string{"Form1.Designer.cs"}, item.MetadataValues("DependentUpon"))
	assert.True(t, p.HasUnsavedData())
}

func TestAddReference(t *testing.T) {
	p := openCalculator(t)

	require.NoError(t, p.AddReference(&AssemblyReference{AssemblyName: "System.Xml"}))
	require.NoError(t, p.AddReference(&AssemblyReference{AssemblyName: "Lib", HintPath: `lib\Lib.dll`, SpecificVersion: true}))

	plain := p.Document().FindItem(ItemReference, "System.Xml")
	require.NotNil(t, plain)
	assert.Empty(t, plain.Metadata)

	lib := p.Document().FindItem(ItemReference, "Lib")
	require.NotNil(t, lib)
	assert.Equal(t, []string{"True"}, lib.MetadataValues("SpecificVersion"))
	assert.Equal(t, []string{`lib\Lib.dll`}, lib.MetadataValues("HintPath"))

	err := p.AddReference(&AssemblyReference{AssemblyName: "system.xml"})
	assert.Error(t, err)
	assert.Len(t, p.Document().ItemsOfType(ItemReference), 4)
}

func TestRemoveReference_RemovesExactlyOneItem(t *testing.T) {
	p := openCalculator(t)
	require.NoError(t, p.AddReference(&AssemblyReference{AssemblyName: "System.Core"}))
	before := len(p.Document().ItemsOfType(ItemReference))

	require.True(t, p.RemoveReference("SYSTEM"))

	refs := itemIncludes(p.Document(), ItemReference)
	assert.Len(t, refs, before-1)
	assert.ElementsMatch(t, []string{"Newtonsoft.Json", "System.Core"}, refs)
	assert.False(t, p.RemoveReference("System"))
}

func TestProperties(t *testing.T) {
	p := openCalculator(t)

	var changed []string
	p.OnNameChanged(func(*Project) { changed = append(changed, "name") })
	p.OnConfigurationChanged(func(*Project) { changed = append(changed, "configuration") })
	p.OnPlatformChanged(func(*Project) { changed = append(changed, "platform") })
	p.OnApplicationTypeChanged(func(*Project) { changed = append(changed, "type") })

	p.SetName("Calculator")
	assert.False(t, p.HasUnsavedData(), "same value is not a change")

	p.SetName("Calc")
	p.SetConfiguration("Release")
	p.SetPlatform("AnyCPU")
	p.SetApplicationType(Console)

	assert.Equal(t, []string{"name", "configuration", "type"}, changed)
	assert.True(t, p.HasUnsavedData())
	assert.Equal(t, "Calc", p.Name())
	assert.Equal(t, filepath.Join(p.Dir(), "bin", "Release"), p.OutputDirectory())
	assert.Equal(t, "Exe", p.Property(PropOutputType))
}

func TestConfigProperty_FallsBackToFirstGroup(t *testing.T) {
	content := strings.Replace(calculatorProject, "  <PropertyGroup>\n", "  <PropertyGroup Condition=\" '$(OS)' == 'Windows_NT' \">\n", 1)
	p, err := Open(context.Background(), writeProject(t, content))
	require.NoError(t, err)

	// No group matches x64 and none is unconditioned: the first group answers.
	assert.Equal(t, "Calculator", p.ConfigProperty("Debug", "x64", PropAssemblyName))
	assert.Equal(t, "", p.ConfigProperty("Debug", "x64", PropOutputPath))
	assert.Equal(t, `bin\Debug\`, p.ConfigProperty("Debug", "AnyCPU", PropOutputPath))
}

func TestSetName_KeepsOtherPropertiesOfFallbackGroup(t *testing.T) {
	content := `<Project xmlns="http://schemas.microsoft.com/developer/msbuild/2003">
  <PropertyGroup Condition=" '$(Configuration)|$(Platform)' == 'Debug|AnyCPU' ">
    <OutputType>Exe</OutputType>
  </PropertyGroup>
</Project>`
	p, err := Open(context.Background(), writeProject(t, content))
	require.NoError(t, err)
	require.Equal(t, Console, p.ApplicationType())

	p.SetName("Renamed")

	assert.Equal(t, "Renamed", p.Name())
	assert.Equal(t, "Exe", p.Property(PropOutputType))
	assert.Equal(t, Console, p.ApplicationType())
	assert.Len(t, p.Document().Root.PropertyGroups, 1)
}

func TestConfigProperty_LegacyConditionLogsWarning(t *testing.T) {
	content := strings.Replace(calculatorProject,
		`Condition=" '$(Configuration)|$(Platform)' == 'Release|AnyCPU' "`,
		`Condition="'$(Configuration)|$(Platform)' == 'Release|AnyCPU' And '$(OS)' == 'Windows_NT'"`, 1)

	var buf bytes.Buffer
	logger := observability.NewLogger(&buf, observability.WarnLevel)
	p, err := Open(context.Background(), writeProject(t, content), WithLogger(logger))
	require.NoError(t, err)

	assert.Equal(t, `bin\Release\`, p.ConfigProperty("Release", "AnyCPU", PropOutputPath))
	assert.Contains(t, buf.String(), "containment")

	strict, err := Open(context.Background(), writeProject(t, content), WithStrictConditions(true))
	require.NoError(t, err)
	assert.Equal(t, "", strict.ConfigProperty("Release", "AnyCPU", PropOutputPath))
}

func TestSetConfigProperty_CreatesGroup(t *testing.T) {
	p := openCalculator(t)

	p.SetConfigProperty("Debug", "x64", PropOutputPath, `bin\x64\Debug\`)

	assert.Equal(t, `bin\x64\Debug\`, p.ConfigProperty("Debug", "x64", PropOutputPath))
	assert.Equal(t, `bin\Debug\`, p.ConfigProperty("Debug", "AnyCPU", PropOutputPath))
	assert.True(t, p.HasUnsavedData())

	assert.True(t, p.RemoveConfigProperty("Debug", "x64", PropOutputPath))
	assert.False(t, p.RemoveConfigProperty("Debug", "x64", PropOutputPath))
}

func TestSave(t *testing.T) {
	p := openCalculator(t)
	p.AddFile(filepath.Join(p.Dir(), "Settings.cs"))

	var transitions []bool
	p.OnUnsavedChanged(func(p *Project) { transitions = append(transitions, p.HasUnsavedData()) })

	require.NoError(t, p.Save(context.Background()))
	assert.False(t, p.HasUnsavedData())
	assert.Equal(t, []bool{false}, transitions)

	changed, err := p.ChangedOnDisk()
	require.NoError(t, err)
	assert.False(t, changed)

	reloaded, err := Open(context.Background(), p.Path())
	require.NoError(t, err)
	_, ok := reloaded.FindFile(filepath.Join(p.Dir(), "Settings.cs"))
	assert.True(t, ok)
	assert.Equal(t, p.Files().Len(), reloaded.Files().Len())
}

func TestSave_FailureKeepsUnsaved(t *testing.T) {
	p := openCalculator(t)
	p.SetName("Calc")

	err := p.SaveAs(context.Background(), filepath.Join(t.TempDir(), "missing", "Calc.csproj"))
	require.Error(t, err)
	assert.True(t, p.HasUnsavedData())
	assert.NotNil(t, p.Document().FindItem(ItemCompile, `Properties\AssemblyInfo.cs`), "includes must be restored")
}

func TestSaveAs_RebasesIncludes(t *testing.T) {
	p := openCalculator(t)
	oldDir := p.Dir()
	newDir := filepath.Join(oldDir, "moved")
	require.NoError(t, os.Mkdir(newDir, 0o755))

	require.NoError(t, p.SaveAs(context.Background(), filepath.Join(newDir, "Calculator.csproj")))

	assert.Equal(t, newDir, p.Dir())
	assert.NotNil(t, p.Document().FindItem(ItemCompile, `..\Program.cs`))

	// Entries keep their absolute paths and stay in sync.
	p.RemoveFile(filepath.Join(oldDir, "Program.cs"))
	assert.Nil(t, p.Document().FindItem(ItemCompile, `..\Program.cs`))
}

func TestChangedOnDisk(t *testing.T) {
	p := openCalculator(t)

	changed, err := p.ChangedOnDisk()
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, os.WriteFile(p.Path(), []byte(strings.ReplaceAll(calculatorProject, "Calculator", "Calc")), 0o644))

	changed, err = p.ChangedOnDisk()
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestNew(t *testing.T) {
	path := filepath.Join(t.TempDir(), "Tool.vbproj")
	p, err := New(path)
	require.NoError(t, err)

	assert.True(t, p.HasUnsavedData())
	assert.Equal(t, "Tool", p.Name())
	assert.Equal(t, Library, p.ApplicationType())
	assert.Equal(t, filepath.Join(p.Dir(), "bin", "Debug"), p.OutputDirectory())
	assert.Equal(t, filepath.Join(p.Dir(), "bin", "Debug", "Tool.dll"), p.OutputFile())

	p.AddFile(filepath.Join(p.Dir(), "Module1.vb"))
	require.NoError(t, p.Save(context.Background()))

	reloaded, err := Open(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "Visual Basic", reloaded.Language().Name)
	assert.Equal(t, 1, reloaded.Files().Len())
	assert.Len(t, reloaded.Document().Root.Imports, 1)
	assert.Len(t, reloaded.Document().Configurations(), 2)
}

func TestLoadSaveRoundTrip(t *testing.T) {
	p := openCalculator(t)
	original := p.Document()

	require.NoError(t, p.Save(context.Background()))
	reloaded, err := Open(context.Background(), p.Path())
	require.NoError(t, err)

	assert.Equal(t, len(original.Root.PropertyGroups), len(reloaded.Document().Root.PropertyGroups))
	assert.Equal(t, len(original.Items()), len(reloaded.Document().Items()))
	for _, item := range original.Items() {
		found := reloaded.Document().FindItem(item.Type(), item.Include)
		require.NotNil(t, found, item.Include)
		assert.Equal(t, len(item.Metadata), len(found.Metadata))
	}
	assert.Equal(t, p.ConfigProperty("Release", "AnyCPU", PropOutputPath), reloaded.ConfigProperty("Release", "AnyCPU", PropOutputPath))
}

func TestParseApplicationType(t *testing.T) {
	for _, a := range []ApplicationType{Library, Console, Windows} {
		parsed, ok := ParseApplicationType(a.OutputType())
		assert.True(t, ok)
		assert.Equal(t, a, parsed)
	}
	_, ok := ParseApplicationType("AppContainerExe")
	assert.False(t, ok)
	assert.True(t, Windows.IsExecutable())
	assert.False(t, Library.IsExecutable())
}
