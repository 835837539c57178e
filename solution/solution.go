// Package solution loads Visual Studio solutions: a tree of solution folders
// and project entries, each loaded entry backed by a *project.Project.
package solution

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/willibrandon/litedev/collections"
	"github.com/willibrandon/litedev/observability"
	"github.com/willibrandon/litedev/project"
)

const (
	sectionSolutionConfigs = "SolutionConfigurationPlatforms"
	sectionProjectConfigs  = "ProjectConfigurationPlatforms"
	sectionNestedProjects  = "NestedProjects"
	sectionSolutionItems   = "SolutionItems"

	defaultConfiguration = "Debug"
	defaultPlatform      = "Any CPU"
)

// Folder is a solution folder. The root folder of a solution has no name and
// is not written to the solution file.
type Folder struct {
	Name string
	GUID string

	parent   *Folder
	folders  *collections.ObservableSet[*Folder]
	projects *collections.ObservableSet[*ProjectEntry]
	sections []slnSection
}

func newFolder(name, guid string) *Folder {
	return &Folder{
		Name:     name,
		GUID:     guid,
		folders:  collections.NewObservableSet[*Folder](),
		projects: collections.NewObservableSet[*ProjectEntry](),
	}
}

// Parent returns the containing folder, nil for the root.
func (f *Folder) Parent() *Folder { return f.parent }

// Folders returns the child folders.
func (f *Folder) Folders() *collections.ObservableSet[*Folder] { return f.folders }

// Projects returns the project entries directly in this folder.
func (f *Folder) Projects() *collections.ObservableSet[*ProjectEntry] { return f.projects }

// Items returns the loose files listed under the folder's SolutionItems section.
func (f *Folder) Items() []string {
	var items []string
	for _, s := range f.sections {
		if s.Name != sectionSolutionItems {
			continue
		}
		for _, kv := range s.pairs() {
			items = append(items, kv[0])
		}
	}
	return items
}

// walk visits every project entry below f, depth first.
func (f *Folder) walk(visit func(*ProjectEntry)) {
	for _, sub := range f.folders.All() {
		sub.walk(visit)
	}
	for _, e := range f.projects.All() {
		visit(e)
	}
}

// ProjectEntry is a project listed in a solution.
type ProjectEntry struct {
	Name     string
	RelPath  string
	GUID     string
	TypeGUID string

	// Project is the loaded project model.
	Project *project.Project

	parent   *Folder
	sections []slnSection
}

// Parent returns the folder containing the entry.
func (e *ProjectEntry) Parent() *Folder { return e.parent }

// node is one Project block in file order.
type node struct {
	folder  *Folder
	project *ProjectEntry
}

func (n node) guid() string {
	if n.folder != nil {
		return n.folder.GUID
	}
	return n.project.GUID
}

// Solution is a loaded .sln file.
type Solution struct {
	path   string
	file   *slnFile
	root   *Folder
	order  []node
	logger observability.Logger

	configuration string
	platform      string

	modified  bool
	listeners []func()
}

// Load parses the solution at path and opens every project it lists. opts are
// passed to project.Open.
func Load(ctx context.Context, path string, opts ...project.Option) (*Solution, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	file, err := parseSlnFile(abs)
	if err != nil {
		return nil, err
	}

	s := &Solution{
		path:   abs,
		file:   file,
		root:   newFolder("", ""),
		logger: project.LoggerFrom(opts...).ForContext("Solution", filepath.Base(abs)),
	}

	byGUID := make(map[string]node, len(file.Entries))
	for i := range file.Entries {
		e := &file.Entries[i]
		var n node
		if e.isFolder() {
			f := newFolder(e.Name, e.GUID)
			f.sections = e.Sections
			n = node{folder: f}
		} else {
			entry := &ProjectEntry{
				Name:     e.Name,
				RelPath:  e.Path,
				GUID:     e.GUID,
				TypeGUID: e.TypeGUID,
				sections: e.Sections,
			}
			p, err := project.Open(ctx, ResolveProjectPath(s.Dir(), e.Path), opts...)
			if err != nil {
				s.Close()
				return nil, fmt.Errorf("failed to load project %s: %w", e.Name, err)
			}
			entry.Project = p
			n = node{project: entry}
		}
		byGUID[e.GUID] = n
		s.order = append(s.order, n)
	}

	parents := make(map[string]string)
	for _, sec := range file.GlobalSections {
		switch sec.Name {
		case sectionNestedProjects:
			for _, kv := range sec.pairs() {
				parents[strings.ToUpper(kv[0])] = strings.ToUpper(kv[1])
			}
		case sectionSolutionConfigs:
			if s.configuration == "" && len(sec.Lines) > 0 {
				s.configuration, s.platform = splitConfig(sec.pairs()[0][0])
			}
		}
	}
	if s.configuration == "" {
		s.configuration, s.platform = defaultConfiguration, defaultPlatform
	}

	for _, n := range s.order {
		parent := s.root
		if pg, ok := parents[n.guid()]; ok {
			if pn, ok := byGUID[pg]; ok && pn.folder != nil {
				parent = pn.folder
			} else {
				s.logger.Warn("Nested entry {Child} names unknown folder {Parent}", n.guid(), pg)
			}
		}
		if n.folder != nil {
			n.folder.parent = parent
			parent.folders.Add(n.folder)
		} else {
			n.project.parent = parent
			parent.projects.Add(n.project)
		}
	}

	s.attachFolder(s.root)
	s.modified = false

	s.logger.Debug("Loaded solution with {ProjectCount} projects", len(s.Projects()))
	return s, nil
}

// Create makes an empty solution that will be written to path on Save.
func Create(path string) (*Solution, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	s := &Solution{
		path: abs,
		file: &slnFile{
			FormatVersion:              "12.00",
			Comments:                   []string{"# Visual Studio Version 17"},
			VisualStudioVersion:        "17.0.31903.59",
			MinimumVisualStudioVersion: "10.0.40219.1",
			GlobalSections: []slnSection{
				{Name: sectionSolutionConfigs, When: "preSolution", Lines: []string{
					"Debug|Any CPU = Debug|Any CPU",
					"Release|Any CPU = Release|Any CPU",
				}},
				{Name: sectionProjectConfigs, When: "postSolution"},
			},
		},
		root:          newFolder("", ""),
		logger:        observability.NewNullLogger(),
		configuration: defaultConfiguration,
		platform:      defaultPlatform,
		modified:      true,
	}
	s.attachFolder(s.root)
	return s, nil
}

func splitConfig(pair string) (string, string) {
	config, platform, ok := strings.Cut(pair, "|")
	if !ok {
		return config, defaultPlatform
	}
	return config, platform
}

// Path returns the solution file path.
func (s *Solution) Path() string { return s.path }

// Dir returns the directory containing the solution file.
func (s *Solution) Dir() string { return filepath.Dir(s.path) }

// Name returns the solution file name without extension.
func (s *Solution) Name() string {
	return strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path))
}

// Root returns the top-level folder.
func (s *Solution) Root() *Folder { return s.root }

// Configuration returns the active solution configuration.
func (s *Solution) Configuration() string { return s.configuration }

// Platform returns the active solution platform.
func (s *Solution) Platform() string { return s.platform }

// SetActiveConfiguration selects the configuration and platform used for builds.
func (s *Solution) SetActiveConfiguration(config, platform string) {
	s.configuration, s.platform = config, platform
}

// Configurations lists the "Config|Platform" pairs declared by the solution.
func (s *Solution) Configurations() []string {
	var out []string
	for _, sec := range s.file.GlobalSections {
		if sec.Name == sectionSolutionConfigs {
			for _, kv := range sec.pairs() {
				out = append(out, kv[0])
			}
		}
	}
	return out
}

// Entries returns every project entry, depth first.
func (s *Solution) Entries() []*ProjectEntry {
	var out []*ProjectEntry
	s.root.walk(func(e *ProjectEntry) { out = append(out, e) })
	return out
}

// Projects returns the loaded projects, depth first.
func (s *Solution) Projects() []*project.Project {
	var out []*project.Project
	s.root.walk(func(e *ProjectEntry) {
		if e.Project != nil {
			out = append(out, e.Project)
		}
	})
	return out
}

// FindProject returns the entry with the given name (case-insensitive).
func (s *Solution) FindProject(name string) (*ProjectEntry, bool) {
	for _, e := range s.Entries() {
		if strings.EqualFold(e.Name, name) {
			return e, true
		}
	}
	return nil, false
}

// FirstExecutableProject returns the first project producing a runnable binary.
func (s *Solution) FirstExecutableProject() (*project.Project, bool) {
	for _, p := range s.Projects() {
		if p.ApplicationType().IsExecutable() {
			return p, true
		}
	}
	return nil, false
}

// HasDebuggableProjects reports whether any project satisfies canDebug.
func (s *Solution) HasDebuggableProjects(canDebug func(*project.Project) bool) bool {
	for _, p := range s.Projects() {
		if canDebug(p) {
			return true
		}
	}
	return false
}

// Modified reports whether the solution file itself has unsaved changes.
func (s *Solution) Modified() bool { return s.modified }

// HasUnsavedData reports whether the solution or any of its projects has unsaved changes.
func (s *Solution) HasUnsavedData() bool {
	if s.modified {
		return true
	}
	for _, p := range s.Projects() {
		if p.HasUnsavedData() {
			return true
		}
	}
	return false
}

// AddProject adds p to folder (the root when nil) and lists it in every
// solution configuration.
func (s *Solution) AddProject(p *project.Project, folder *Folder) (*ProjectEntry, error) {
	if folder == nil {
		folder = s.root
	}
	for _, e := range s.Entries() {
		if e.Project != nil && strings.EqualFold(e.Project.Path(), p.Path()) {
			return nil, fmt.Errorf("project %s is already part of the solution", p.Name())
		}
	}

	entry := &ProjectEntry{
		Name:     strings.TrimSuffix(filepath.Base(p.Path()), filepath.Ext(p.Path())),
		RelPath:  RelativeProjectPath(s.Dir(), p.Path()),
		GUID:     newGUID(),
		TypeGUID: projectTypeFor(filepath.Ext(p.Path())),
		Project:  p,
	}
	s.addProjectConfigs(entry.GUID)
	folder.projects.Add(entry)
	return entry, nil
}

// RemoveProject removes entry from the solution and closes its project.
func (s *Solution) RemoveProject(entry *ProjectEntry) bool {
	if entry.parent == nil || !entry.parent.projects.Remove(entry) {
		return false
	}
	s.removeProjectConfigs(entry.GUID)
	if entry.Project != nil {
		entry.Project.Close()
	}
	return true
}

// AddFolder creates a solution folder under parent (the root when nil).
func (s *Solution) AddFolder(name string, parent *Folder) *Folder {
	if parent == nil {
		parent = s.root
	}
	f := newFolder(name, newGUID())
	parent.folders.Add(f)
	return f
}

// Save writes the solution file when it has unsaved changes. Projects are saved separately.
func (s *Solution) Save(ctx context.Context) (err error) {
	_, span := observability.StartProjectSaveSpan(ctx, s.path)
	defer func() { observability.EndSpanWithError(span, err) }()

	if !s.modified {
		return nil
	}
	if err := s.write(s.path); err != nil {
		return fmt.Errorf("failed to save solution %s: %w", s.Name(), err)
	}
	s.modified = false
	s.logger.Debug("Saved solution to {Path}", s.path)
	return nil
}

// Close detaches the solution and closes every project.
func (s *Solution) Close() {
	for _, unsubscribe := range s.listeners {
		unsubscribe()
	}
	s.listeners = nil
	for _, n := range s.order {
		if n.project != nil && n.project.Project != nil {
			n.project.Project.Close()
		}
	}
}

// attachFolder keeps order, parents and the modified flag in step with the tree.
func (s *Solution) attachFolder(f *Folder) {
	s.listeners = append(s.listeners,
		f.folders.OnInserted(func(sub *Folder) {
			sub.parent = f
			s.order = append(s.order, node{folder: sub})
			s.attachFolder(sub)
			s.modified = true
		}),
		f.folders.OnRemoved(func(sub *Folder) {
			s.dropTree(sub)
			sub.parent = nil
			s.modified = true
		}),
		f.projects.OnInserted(func(e *ProjectEntry) {
			e.parent = f
			s.order = append(s.order, node{project: e})
			s.modified = true
		}),
		f.projects.OnRemoved(func(e *ProjectEntry) {
			s.dropNode(e.GUID)
			e.parent = nil
			s.modified = true
		}),
	)
	for _, sub := range f.folders.All() {
		s.attachFolder(sub)
	}
}

// dropTree forgets a removed folder and everything below it.
func (s *Solution) dropTree(f *Folder) {
	for _, sub := range f.folders.All() {
		s.dropTree(sub)
	}
	for _, e := range f.projects.All() {
		s.dropNode(e.GUID)
		s.removeProjectConfigs(e.GUID)
	}
	s.dropNode(f.GUID)
}

func (s *Solution) dropNode(guid string) {
	for i, n := range s.order {
		if n.guid() == guid {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *Solution) section(name, when string) *slnSection {
	for i := range s.file.GlobalSections {
		if s.file.GlobalSections[i].Name == name {
			return &s.file.GlobalSections[i]
		}
	}
	s.file.GlobalSections = append(s.file.GlobalSections, slnSection{Name: name, When: when})
	return &s.file.GlobalSections[len(s.file.GlobalSections)-1]
}

func (s *Solution) addProjectConfigs(guid string) {
	configs := s.Configurations()
	if len(configs) == 0 {
		configs = []string{defaultConfiguration + "|" + defaultPlatform}
		solutionConfigs := s.section(sectionSolutionConfigs, "preSolution")
		solutionConfigs.Lines = append(solutionConfigs.Lines, configs[0]+" = "+configs[0])
	}
	sec := s.section(sectionProjectConfigs, "postSolution")
	for _, c := range configs {
		config, platform := splitConfig(c)
		target := config + "|" + projectPlatform(platform)
		sec.Lines = append(sec.Lines,
			fmt.Sprintf("%s.%s.ActiveCfg = %s", guid, c, target),
			fmt.Sprintf("%s.%s.Build.0 = %s", guid, c, target),
		)
	}
}

func (s *Solution) removeProjectConfigs(guid string) {
	for i := range s.file.GlobalSections {
		sec := &s.file.GlobalSections[i]
		if sec.Name != sectionProjectConfigs {
			continue
		}
		kept := sec.Lines[:0]
		for _, line := range sec.Lines {
			if !strings.HasPrefix(strings.ToUpper(line), guid+".") {
				kept = append(kept, line)
			}
		}
		sec.Lines = kept
	}
}

// projectPlatform maps a solution platform to the project platform name.
func projectPlatform(platform string) string {
	if platform == defaultPlatform {
		return "AnyCPU"
	}
	return platform
}

func newGUID() string {
	return "{" + strings.ToUpper(uuid.NewString()) + "}"
}
