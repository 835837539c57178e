// Package buildscript loads, edits, and saves MSBuild build scripts (.csproj, .vbproj, .fsproj).
//
// A Document is a structural view of the XML: property groups keyed by a
// configuration/platform condition and item groups holding typed items with
// metadata. It knows nothing about the project model built on top of it.
package buildscript

import (
	"bytes"
	"crypto/sha256"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// utf8BOM is written ahead of the XML declaration; Visual Studio expects it.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Document is a parsed build script.
type Document struct {
	Path string
	Root *RootElement

	// StrictConditions disables the containment fallback for property group
	// conditions that cannot be parsed.
	StrictConditions bool

	modified bool
	digest   [sha256.Size]byte // content last read from or written to Path
}

// New creates an empty classic build script with a single unconditioned property group.
func New(path string) *Document {
	return &Document{
		Path: path,
		Root: &RootElement{
			Xmlns:          Namespace,
			ToolsVersion:   "4.0",
			DefaultTargets: "Build",
			PropertyGroups: []*PropertyGroup{{}},
		},
		modified: true,
	}
}

// Load reads and parses a build script from path.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read build script: %w", err)
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	doc.Path = path
	doc.digest = sha256.Sum256(data)
	return doc, nil
}

// Parse parses build script XML. A leading UTF-8 BOM is accepted.
func Parse(data []byte) (*Document, error) {
	data = bytes.TrimPrefix(data, utf8BOM)

	var root RootElement
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse build script XML: %w", err)
	}
	root.normalize()

	return &Document{Root: &root}, nil
}

// Modified reports whether the document changed since it was loaded or last saved.
func (d *Document) Modified() bool {
	return d.modified
}

// Dir returns the directory containing the build script.
func (d *Document) Dir() string {
	return filepath.Dir(d.Path)
}

// Encode writes the document, including BOM and XML declaration, to w.
func (d *Document) Encode(w io.Writer) error {
	output, err := xml.MarshalIndent(d.Root, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal build script: %w", err)
	}

	if _, err := w.Write(utf8BOM); err != nil {
		return err
	}
	if _, err := io.WriteString(w, "<?xml version=\"1.0\" encoding=\"utf-8\"?>\n"); err != nil {
		return err
	}
	if _, err := w.Write(output); err != nil {
		return err
	}
	_, err = io.WriteString(w, "\n")
	return err
}

// Save writes the document to its path if it has been modified.
func (d *Document) Save() error {
	if !d.modified {
		return nil
	}
	return d.SaveAs(d.Path)
}

// SaveAs writes the document to path and makes path the document's location.
// The content goes to a temporary file first and is renamed over the target,
// so a failed write never leaves a truncated script behind.
func (d *Document) SaveAs(path string) (err error) {
	if path == "" {
		return fmt.Errorf("build script has no path")
	}

	var buf bytes.Buffer
	if err := d.Encode(&buf); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write build script: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace build script: %w", err)
	}

	d.Path = path
	d.digest = sha256.Sum256(buf.Bytes())
	d.modified = false
	return nil
}

// ChangedOnDisk reports whether the file at Path differs from what this
// document last read or wrote.
func (d *Document) ChangedOnDisk() (bool, error) {
	data, err := os.ReadFile(d.Path)
	if err != nil {
		return false, fmt.Errorf("failed to read build script: %w", err)
	}
	return sha256.Sum256(data) != d.digest, nil
}

// Items returns every item in document order.
func (d *Document) Items() []*Item {
	var items []*Item
	for _, g := range d.Root.ItemGroups {
		items = append(items, g.Items...)
	}
	return items
}

// ItemsOfType returns every item of the given type in document order.
func (d *Document) ItemsOfType(itemType string) []*Item {
	var items []*Item
	for _, item := range d.Items() {
		if item.Type() == itemType {
			items = append(items, item)
		}
	}
	return items
}

// FindItem returns the first item of itemType whose Include equals include.
// Includes are compared case-insensitively and independent of slash direction.
func (d *Document) FindItem(itemType, include string) *Item {
	want := NormalizeInclude(include)
	for _, item := range d.Items() {
		if item.Type() == itemType && strings.EqualFold(NormalizeInclude(item.Include), want) {
			return item
		}
	}
	return nil
}

// AddItem appends a new item. It goes into the first unconditioned item group
// that already holds items of the same type, or into a new group.
func (d *Document) AddItem(itemType, include string) *Item {
	item := NewItem(itemType, include)

	var target *ItemGroup
	for _, g := range d.Root.ItemGroups {
		if g.Condition != "" {
			continue
		}
		for _, existing := range g.Items {
			if existing.Type() == itemType {
				target = g
				break
			}
		}
		if target != nil {
			break
		}
	}

	if target == nil {
		target = &ItemGroup{}
		d.Root.ItemGroups = append(d.Root.ItemGroups, target)
	}
	target.Items = append(target.Items, item)
	d.modified = true
	return item
}

// RemoveItem deletes item from the document. Item groups left empty are removed.
func (d *Document) RemoveItem(item *Item) bool {
	for gi, g := range d.Root.ItemGroups {
		for ii, existing := range g.Items {
			if existing != item {
				continue
			}
			g.Items = append(g.Items[:ii], g.Items[ii+1:]...)
			if len(g.Items) == 0 {
				d.Root.ItemGroups = append(d.Root.ItemGroups[:gi], d.Root.ItemGroups[gi+1:]...)
			}
			d.modified = true
			return true
		}
	}
	return false
}

// SetInclude rewrites the Include of item.
func (d *Document) SetInclude(item *Item, include string) {
	if item.Include == include {
		return
	}
	item.Include = include
	d.modified = true
}

// SetItemType changes the type (element name) of item in place.
func (d *Document) SetItemType(item *Item, itemType string) {
	if item.Type() == itemType {
		return
	}
	item.XMLName.Local = itemType
	d.modified = true
}

// AddMetadata appends a metadata entry to item.
func (d *Document) AddMetadata(item *Item, key, value string) {
	item.addMetadata(key, value)
	d.modified = true
}

// RemoveMetadata removes the first metadata entry on item with the given key and value.
func (d *Document) RemoveMetadata(item *Item, key, value string) bool {
	if !item.removeMetadata(key, value) {
		return false
	}
	d.modified = true
	return true
}

// NormalizeInclude converts an Include value to forward slashes without duplicate separators.
func NormalizeInclude(include string) string {
	normalized := strings.ReplaceAll(include, "\\", "/")
	for strings.Contains(normalized, "//") {
		normalized = strings.ReplaceAll(normalized, "//", "/")
	}
	return strings.TrimPrefix(normalized, "./")
}

// IncludeFromPath converts a path relative to the project directory into the
// backslash form MSBuild scripts use.
func IncludeFromPath(rel string) string {
	return strings.ReplaceAll(filepath.ToSlash(rel), "/", "\\")
}

// PathFromInclude converts an Include value into a path relative to the project directory.
func PathFromInclude(include string) string {
	return filepath.FromSlash(NormalizeInclude(include))
}
