package project

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/willibrandon/litedev/buildscript"
	"github.com/willibrandon/litedev/observability"
)

// Open loads the project whose build script is at path.
//
// Every Reference item becomes an AssemblyReference and every Compile,
// EmbeddedResource and None item becomes a FileEntry. A Reference carrying
// metadata other than SpecificVersion or HintPath aborts the load with a
// *buildscript.FormatError. Synchronization starts only once the model is
// fully populated, so loading never writes to the script.
func Open(ctx context.Context, path string, opts ...Option) (p *Project, err error) {
	_, span := observability.StartProjectLoadSpan(ctx, path)
	defer func() { observability.EndSpanWithError(span, err) }()

	doc, err := buildscript.Load(path)
	if err != nil {
		return nil, err
	}

	p, err = newProject(doc, opts)
	if err != nil {
		return nil, err
	}

	for _, item := range doc.Items() {
		switch itemType := item.Type(); {
		case itemType == ItemReference:
			ref, err := referenceFromItem(path, item)
			if err != nil {
				return nil, err
			}
			if !p.references.Add(ref) {
				p.logger.Warn("Duplicate reference {AssemblyName} ignored", ref.AssemblyName)
			}
		case isFileItemType(itemType):
			entry := p.entryFromItem(item)
			p.attachEntry(entry)
			if !p.files.Add(entry) {
				p.detachEntry(entry)
				p.logger.Warn("Duplicate {ItemType} item {Include} ignored", itemType, item.Include)
			}
		}
	}

	p.attachSync()
	p.unsaved = false

	p.logger.Debug("Loaded {FileCount} files and {ReferenceCount} references", p.files.Len(), p.references.Len())
	return p, nil
}

// New creates a project for a new build script at path. Nothing is written
// until Save; the project starts with unsaved data.
func New(path string, opts ...Option) (*Project, error) {
	doc := buildscript.New(path)
	p, err := newProject(doc, opts)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	doc.SetProperty("", "", PropConfiguration, "Debug")
	doc.SetProperty("", "", PropPlatform, "AnyCPU")
	doc.SetProperty("", "", PropOutputType, Library.OutputType())
	doc.SetProperty("", "", PropAssemblyName, name)
	doc.SetProperty("Debug", "AnyCPU", PropOutputPath, `bin\Debug\`)
	doc.SetProperty("Release", "AnyCPU", PropOutputPath, `bin\Release\`)
	if p.language.TargetsImport != "" {
		doc.Root.Imports = append(doc.Root.Imports, &buildscript.Import{Project: p.language.TargetsImport})
	}

	p.attachSync()
	p.unsaved = true
	return p, nil
}

// Save writes the build script to its current path. HasUnsavedData is cleared
// only after the file has been replaced successfully.
func (p *Project) Save(ctx context.Context) error {
	return p.SaveAs(ctx, p.Path())
}

// SaveAs writes the build script to path and makes path the project's
// location. File includes are rewritten relative to the new directory.
func (p *Project) SaveAs(ctx context.Context, path string) (err error) {
	_, span := observability.StartProjectSaveSpan(ctx, path)
	defer func() { observability.EndSpanWithError(span, err) }()

	oldDir, newDir := p.Dir(), filepath.Dir(path)
	var rebased []rebasedItem
	if !strings.EqualFold(oldDir, newDir) {
		rebased = p.rebaseIncludes(newDir)
	}

	if err := p.doc.SaveAs(path); err != nil {
		for _, r := range rebased {
			r.item.Include = r.oldInclude
		}
		return fmt.Errorf("failed to save project %s: %w", p.Name(), err)
	}

	p.setUnsaved(false)
	p.logger.Debug("Saved build script to {Path}", path)
	return nil
}

// ChangedOnDisk reports whether another program modified the build script
// since it was loaded or saved.
func (p *Project) ChangedOnDisk() (bool, error) {
	return p.doc.ChangedOnDisk()
}

type rebasedItem struct {
	item       *buildscript.Item
	oldInclude string
}

func (p *Project) rebaseIncludes(newDir string) []rebasedItem {
	var rebased []rebasedItem
	for _, entry := range p.files.Items() {
		item := p.findFileItem(entry.Path())
		if item == nil {
			continue
		}
		rebased = append(rebased, rebasedItem{item: item, oldInclude: item.Include})
		item.Include = includeIn(newDir, entry.Path())
	}
	return rebased
}

// attachSync subscribes the forward synchronization handlers to the model's sets.
func (p *Project) attachSync() {
	p.setListeners = append(p.setListeners,
		p.files.OnInserted(p.fileInserted),
		p.files.OnRemoved(p.fileRemoved),
		p.references.OnInserted(p.referenceInserted),
		p.references.OnRemoved(p.referenceRemoved),
	)
}

// attachEntry subscribes to an entry's path and dependency changes.
func (p *Project) attachEntry(entry *FileEntry) {
	if _, ok := p.entryListeners[entry]; ok {
		return
	}
	entry.project = p
	p.entryListeners[entry] = []func(){
		entry.OnPathChanged(p.filePathChanged),
		entry.Dependencies.OnInserted(func(dep string) { p.dependencyInserted(entry, dep) }),
		entry.Dependencies.OnRemoved(func(dep string) { p.dependencyRemoved(entry, dep) }),
	}
}

func (p *Project) detachEntry(entry *FileEntry) {
	for _, unsubscribe := range p.entryListeners[entry] {
		unsubscribe()
	}
	delete(p.entryListeners, entry)
	if entry.project == p {
		entry.project = nil
	}
}

func (p *Project) entryFromItem(item *buildscript.Item) *FileEntry {
	entry := NewFileEntry(filepath.Join(p.Dir(), buildscript.PathFromInclude(item.Include)))
	for _, dep := range item.MetadataValues(metaDependentUpon) {
		entry.Dependencies.Add(dep)
	}
	return entry
}

func (p *Project) fileInserted(entry *FileEntry) {
	p.attachEntry(entry)

	item := p.doc.AddItem(p.language.ItemTypeFor(entry.Path()), p.include(entry.Path()))
	for _, dep := range entry.Dependencies.Items() {
		p.doc.AddMetadata(item, metaDependentUpon, dep)
	}
	p.synced("add_item", item)
}

func (p *Project) fileRemoved(entry *FileEntry) {
	p.detachEntry(entry)

	item := p.findFileItem(entry.Path())
	if item == nil {
		p.logger.Warn("No build script item for removed file {Path}", entry.Path())
		return
	}
	p.doc.RemoveItem(item)
	p.synced("remove_item", item)
}

func (p *Project) filePathChanged(change PathChange) {
	item := p.findFileItem(change.OldPath)
	if item == nil {
		p.logger.Warn("No build script item for renamed file {OldPath}", change.OldPath)
		return
	}

	// The extension may have changed, so the type is derived again.
	p.doc.SetItemType(item, p.language.ItemTypeFor(change.NewPath))
	p.doc.SetInclude(item, p.include(change.NewPath))
	p.synced("rename_item", item)
}

func (p *Project) dependencyInserted(entry *FileEntry, dep string) {
	item := p.findFileItem(entry.Path())
	if item == nil {
		return
	}
	p.doc.AddMetadata(item, metaDependentUpon, dep)
	p.synced("add_dependency", item)
}

func (p *Project) dependencyRemoved(entry *FileEntry, dep string) {
	item := p.findFileItem(entry.Path())
	if item == nil {
		return
	}
	if p.doc.RemoveMetadata(item, metaDependentUpon, dep) {
		p.synced("remove_dependency", item)
	}
}

func (p *Project) referenceInserted(ref *AssemblyReference) {
	item := p.doc.AddItem(ItemReference, ref.AssemblyName)
	if ref.HintPath != "" {
		p.doc.AddMetadata(item, metaSpecificVersion, formatBool(ref.SpecificVersion))
		p.doc.AddMetadata(item, metaHintPath, ref.HintPath)
	}
	p.synced("add_reference", item)
}

func (p *Project) referenceRemoved(ref *AssemblyReference) {
	item := p.doc.FindItem(ItemReference, ref.AssemblyName)
	if item == nil {
		p.logger.Warn("No build script item for removed reference {AssemblyName}", ref.AssemblyName)
		return
	}
	p.doc.RemoveItem(item)
	p.synced("remove_reference", item)
}

// findFileItem looks the item up by its derived type first, then under any
// file item type, since hand-edited scripts may file a source under None.
func (p *Project) findFileItem(path string) *buildscript.Item {
	include := p.include(path)
	if item := p.doc.FindItem(p.language.ItemTypeFor(path), include); item != nil {
		return item
	}
	for _, itemType := range []string{ItemCompile, ItemEmbeddedResource, ItemNone} {
		if item := p.doc.FindItem(itemType, include); item != nil {
			return item
		}
	}
	return nil
}

func (p *Project) include(path string) string {
	return includeIn(p.Dir(), path)
}

func includeIn(dir, path string) string {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		rel = path
	}
	return buildscript.IncludeFromPath(rel)
}

func (p *Project) synced(op string, item *buildscript.Item) {
	observability.ScriptSyncOperations.WithLabelValues(op).Inc()
	p.logger.Verbose("Build script {Operation} on {ItemType} {Include}", op, item.Type(), item.Include)
	p.markDirty()
}
