// Package project provides the in-memory model of a .NET project and keeps it
// synchronized with the project's MSBuild build script.
//
// The build script is the single source of truth while a project loads. After
// that, every change made through the model (files added or renamed,
// dependencies, references, properties) is written into the script at once and
// marks the project as having unsaved data until Save succeeds.
package project

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/willibrandon/litedev/buildscript"
	"github.com/willibrandon/litedev/collections"
	"github.com/willibrandon/litedev/observability"
)

// ApplicationType is the kind of binary a project produces.
type ApplicationType int

const (
	// Library produces a class library (OutputType Library).
	Library ApplicationType = iota
	// Console produces a console executable (OutputType Exe).
	Console
	// Windows produces a GUI executable (OutputType WinExe).
	Windows
)

// OutputType returns the MSBuild OutputType text.
func (a ApplicationType) OutputType() string {
	switch a {
	case Console:
		return "Exe"
	case Windows:
		return "WinExe"
	default:
		return "Library"
	}
}

func (a ApplicationType) String() string {
	switch a {
	case Console:
		return "Console"
	case Windows:
		return "Windows"
	default:
		return "Library"
	}
}

// IsExecutable reports whether the output can be run.
func (a ApplicationType) IsExecutable() bool {
	return a == Console || a == Windows
}

// ParseApplicationType converts an MSBuild OutputType value. Matching is case-insensitive.
func ParseApplicationType(outputType string) (ApplicationType, bool) {
	switch strings.ToLower(strings.TrimSpace(outputType)) {
	case "library":
		return Library, true
	case "exe":
		return Console, true
	case "winexe":
		return Windows, true
	}
	return Library, false
}

// Well-known build script properties.
const (
	PropAssemblyName  = "AssemblyName"
	PropOutputType    = "OutputType"
	PropOutputPath    = "OutputPath"
	PropConfiguration = "Configuration"
	PropPlatform      = "Platform"
)

// Project is a .NET project backed by a build script.
// A Project is not safe for concurrent use; it belongs to the interactive loop.
type Project struct {
	doc      *buildscript.Document
	language Language
	logger   observability.Logger

	files      *collections.ObservableSet[*FileEntry]
	references *collections.ObservableSet[*AssemblyReference]

	unsaved bool

	// unsubscribe funcs for the set-level handlers and for each tracked entry
	setListeners   []func()
	entryListeners map[*FileEntry][]func()

	nameChanged            collections.Event[*Project]
	applicationTypeChanged collections.Event[*Project]
	configurationChanged   collections.Event[*Project]
	platformChanged        collections.Event[*Project]
	unsavedChanged         collections.Event[*Project]
}

// Option configures how a project is opened or created.
type Option func(*options)

type options struct {
	logger           observability.Logger
	strictConditions bool
	language         *Language
}

// WithLogger sets the logger used for synchronization diagnostics.
func WithLogger(logger observability.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithStrictConditions disables the containment fallback for property group
// conditions that cannot be parsed.
func WithStrictConditions(strict bool) Option {
	return func(o *options) { o.strictConditions = strict }
}

// WithLanguage overrides the language otherwise derived from the build script extension.
func WithLanguage(l Language) Option {
	return func(o *options) { o.language = &l }
}

func resolveOptions(opts []Option) options {
	o := options{logger: observability.NewNullLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// LoggerFrom returns the logger configured by opts, or a null logger.
func LoggerFrom(opts ...Option) observability.Logger {
	return resolveOptions(opts).logger
}

func newProject(doc *buildscript.Document, opts []Option) (*Project, error) {
	o := resolveOptions(opts)

	var lang Language
	if o.language != nil {
		lang = *o.language
	} else {
		l, ok := LanguageForProjectFile(doc.Path)
		if !ok {
			return nil, fmt.Errorf("unsupported project file type: %s", filepath.Ext(doc.Path))
		}
		lang = l
	}

	doc.StrictConditions = o.strictConditions

	return &Project{
		doc:            doc,
		language:       lang,
		logger:         o.logger.ForContext("Project", filepath.Base(doc.Path)),
		files:          collections.NewObservableSetFunc(fileKey),
		references:     collections.NewObservableSetFunc(referenceKey),
		entryListeners: make(map[*FileEntry][]func()),
	}, nil
}

// fileKey makes two entries for the same path the same element.
func fileKey(f *FileEntry) any {
	return strings.ToLower(f.Path())
}

// Path returns the build script path.
func (p *Project) Path() string {
	return p.doc.Path
}

// Dir returns the project directory.
func (p *Project) Dir() string {
	return p.doc.Dir()
}

// Language returns the project language.
func (p *Project) Language() Language {
	return p.language
}

// Document exposes the underlying build script.
func (p *Project) Document() *buildscript.Document {
	return p.doc
}

// Files is the set of files tracked by the project.
func (p *Project) Files() *collections.ObservableSet[*FileEntry] {
	return p.files
}

// References is the set of assembly references. Names are unique, compared case-insensitively.
func (p *Project) References() *collections.ObservableSet[*AssemblyReference] {
	return p.references
}

// HasUnsavedData reports whether the model changed since the last load or save.
func (p *Project) HasUnsavedData() bool {
	return p.unsaved
}

// Property returns a property of the unconditioned group (or the fallback group).
func (p *Project) Property(name string) string {
	return p.ConfigProperty("", "", name)
}

// SetProperty writes a property into the group Property reads it from.
func (p *Project) SetProperty(name, value string) {
	p.SetConfigProperty("", "", name, value)
}

// ConfigProperty returns a property for a configuration and platform. It never
// fails: a missing group or property yields "".
func (p *Project) ConfigProperty(config, platform, name string) string {
	g, how := p.doc.ResolvePropertyGroup(config, platform)
	if g == nil {
		return ""
	}
	if how == buildscript.ResolvedLegacy {
		p.logger.Warn("Property group for {Configuration}|{Platform} matched by condition text containment: {Condition}",
			config, platform, g.Condition)
	}
	value, _ := g.Get(name)
	return value
}

// SetConfigProperty writes a property into the group for exactly (config, platform),
// creating it when absent.
func (p *Project) SetConfigProperty(config, platform, name, value string) {
	if p.doc.SetProperty(config, platform, name, value) {
		p.markDirty()
	}
}

// RemoveConfigProperty deletes a property from the group for exactly (config, platform).
func (p *Project) RemoveConfigProperty(config, platform, name string) bool {
	if !p.doc.RemoveProperty(config, platform, name) {
		return false
	}
	p.markDirty()
	return true
}

// Name returns the assembly name.
func (p *Project) Name() string {
	if name := p.Property(PropAssemblyName); name != "" {
		return name
	}
	return strings.TrimSuffix(filepath.Base(p.Path()), filepath.Ext(p.Path()))
}

// SetName changes the assembly name.
func (p *Project) SetName(name string) {
	if name == p.Property(PropAssemblyName) {
		return
	}
	p.SetProperty(PropAssemblyName, name)
	p.nameChanged.Emit(p)
}

// Configuration returns the active configuration, e.g. "Debug".
func (p *Project) Configuration() string {
	return p.Property(PropConfiguration)
}

// SetConfiguration changes the active configuration.
func (p *Project) SetConfiguration(config string) {
	if config == p.Configuration() {
		return
	}
	p.SetProperty(PropConfiguration, config)
	p.configurationChanged.Emit(p)
}

// Platform returns the active platform, e.g. "AnyCPU".
func (p *Project) Platform() string {
	return p.Property(PropPlatform)
}

// SetPlatform changes the active platform.
func (p *Project) SetPlatform(platform string) {
	if platform == p.Platform() {
		return
	}
	p.SetProperty(PropPlatform, platform)
	p.platformChanged.Emit(p)
}

// ApplicationType returns the output kind. A missing or unknown OutputType means Library.
func (p *Project) ApplicationType() ApplicationType {
	raw := p.Property(PropOutputType)
	a, ok := ParseApplicationType(raw)
	if !ok && raw != "" {
		p.logger.Warn("Unknown {OutputType}, treating project as a library", raw)
	}
	return a
}

// SetApplicationType changes the output kind.
func (p *Project) SetApplicationType(a ApplicationType) {
	if a == p.ApplicationType() {
		return
	}
	p.SetProperty(PropOutputType, a.OutputType())
	p.applicationTypeChanged.Emit(p)
}

// OutputDirectory is the project directory joined with the OutputPath of the
// active configuration and platform.
func (p *Project) OutputDirectory() string {
	out := p.ConfigProperty(p.Configuration(), p.Platform(), PropOutputPath)
	return filepath.Join(p.Dir(), buildscript.PathFromInclude(out))
}

// OutputFile is the path of the assembly the project builds.
func (p *Project) OutputFile() string {
	ext := ".dll"
	if p.ApplicationType().IsExecutable() {
		ext = ".exe"
	}
	return filepath.Join(p.OutputDirectory(), p.Name()+ext)
}

// OnNameChanged registers h for assembly name changes.
func (p *Project) OnNameChanged(h func(*Project)) func() { return p.nameChanged.Subscribe(h) }

// OnApplicationTypeChanged registers h for OutputType changes.
func (p *Project) OnApplicationTypeChanged(h func(*Project)) func() {
	return p.applicationTypeChanged.Subscribe(h)
}

// OnConfigurationChanged registers h for active configuration changes.
func (p *Project) OnConfigurationChanged(h func(*Project)) func() {
	return p.configurationChanged.Subscribe(h)
}

// OnPlatformChanged registers h for active platform changes.
func (p *Project) OnPlatformChanged(h func(*Project)) func() { return p.platformChanged.Subscribe(h) }

// OnUnsavedChanged registers h for transitions of HasUnsavedData.
func (p *Project) OnUnsavedChanged(h func(*Project)) func() { return p.unsavedChanged.Subscribe(h) }

// FindFile returns the tracked entry for path.
func (p *Project) FindFile(path string) (*FileEntry, bool) {
	want := strings.ToLower(absPath(path))
	return p.files.Find(func(f *FileEntry) bool { return strings.ToLower(f.Path()) == want })
}

// AddFile starts tracking the file at path and returns its entry. Tracking an
// already tracked path returns the existing entry.
func (p *Project) AddFile(path string) *FileEntry {
	if existing, ok := p.FindFile(path); ok {
		return existing
	}
	entry := NewFileEntry(path)
	p.files.Add(entry)
	return entry
}

// RemoveFile stops tracking the file at path.
func (p *Project) RemoveFile(path string) bool {
	entry, ok := p.FindFile(path)
	if !ok {
		return false
	}
	return p.files.Remove(entry)
}

// FindReference returns the reference with the given assembly name.
func (p *Project) FindReference(name string) (*AssemblyReference, bool) {
	return p.references.Find(func(r *AssemblyReference) bool { return strings.EqualFold(r.AssemblyName, name) })
}

// AddReference adds ref. It fails when a reference with the same name exists.
func (p *Project) AddReference(ref *AssemblyReference) error {
	if ref.AssemblyName == "" {
		return fmt.Errorf("reference has no assembly name")
	}
	if !p.references.Add(ref) {
		return fmt.Errorf("project %s already references %s", p.Name(), ref.AssemblyName)
	}
	return nil
}

// RemoveReference removes the reference with the given assembly name.
func (p *Project) RemoveReference(name string) bool {
	ref, ok := p.FindReference(name)
	if !ok {
		return false
	}
	return p.references.Remove(ref)
}

// Close detaches the synchronizer. The project must not be mutated afterwards.
func (p *Project) Close() {
	for _, unsubscribe := range p.setListeners {
		unsubscribe()
	}
	p.setListeners = nil
	for entry := range p.entryListeners {
		p.detachEntry(entry)
	}
}

func (p *Project) markDirty() {
	p.setUnsaved(true)
}

func (p *Project) setUnsaved(unsaved bool) {
	if p.unsaved == unsaved {
		return
	}
	p.unsaved = unsaved
	p.unsavedChanged.Emit(p)
}
