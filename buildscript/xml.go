package buildscript

import (
	"encoding/xml"
	"fmt"
	"slices"
	"strings"
)

// Namespace is the XML namespace of classic MSBuild project files.
const Namespace = "http://schemas.microsoft.com/developer/msbuild/2003"

// RootElement represents the root <Project> element of a build script.
// Children keep their document order when written back; see MarshalXML.
type RootElement struct {
	Xmlns          string
	Sdk            string
	ToolsVersion   string
	DefaultTargets string
	PropertyGroups []*PropertyGroup
	ItemGroups     []*ItemGroup
	Imports        []*Import
	Extra          []*RawElement // Targets, Choose blocks and anything else we don't model

	// order is the sequence children were read in
	order []any
}

// PropertyGroup represents a <PropertyGroup> element, optionally guarded by a condition.
type PropertyGroup struct {
	Condition  string      `xml:"Condition,attr,omitempty"`
	Properties []*Property `xml:",any"`
}

// Property is a single named property inside a property group.
type Property struct {
	XMLName   xml.Name
	Condition string `xml:"Condition,attr,omitempty"`
	Value     string `xml:",chardata"`
}

// Name returns the property name.
func (p *Property) Name() string {
	return p.XMLName.Local
}

// ItemGroup represents an <ItemGroup> element.
type ItemGroup struct {
	Condition string  `xml:"Condition,attr,omitempty"`
	Items     []*Item `xml:",any"`
}

// Item is one typed entry (Reference, Compile, EmbeddedResource, None, ...).
type Item struct {
	XMLName   xml.Name
	Include   string      `xml:"Include,attr"`
	Condition string      `xml:"Condition,attr,omitempty"`
	Attrs     []xml.Attr  `xml:",any,attr"`
	Metadata  []*Metadata `xml:",any"`
}

// Metadata is one key-value entry attached to an item.
type Metadata struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

// Name returns the metadata key.
func (m *Metadata) Name() string {
	return m.XMLName.Local
}

// Import represents an <Import> element.
type Import struct {
	Project   string `xml:"Project,attr"`
	Condition string `xml:"Condition,attr,omitempty"`
}

// RawElement keeps an element we don't interpret so it survives a round-trip.
type RawElement struct {
	XMLName xml.Name
	Attrs   []xml.Attr `xml:",any,attr"`
	Inner   string     `xml:",innerxml"`
}

// NewItem creates an item of the given type.
func NewItem(itemType, include string) *Item {
	return &Item{XMLName: xml.Name{Local: itemType}, Include: include}
}

// Type returns the item type (the element name).
func (i *Item) Type() string {
	return i.XMLName.Local
}

// MetadataValues returns the values of every metadata entry named key, in order.
func (i *Item) MetadataValues(key string) []string {
	var values []string
	for _, m := range i.Metadata {
		if m.Name() == key {
			values = append(values, m.Value)
		}
	}
	return values
}

// FirstMetadata returns the first value for key.
func (i *Item) FirstMetadata(key string) (string, bool) {
	for _, m := range i.Metadata {
		if m.Name() == key {
			return m.Value, true
		}
	}
	return "", false
}

func (i *Item) addMetadata(key, value string) {
	i.Metadata = append(i.Metadata, &Metadata{XMLName: xml.Name{Local: key}, Value: value})
}

func (i *Item) removeMetadata(key, value string) bool {
	for j, m := range i.Metadata {
		if m.Name() == key && m.Value == value {
			i.Metadata = append(i.Metadata[:j], i.Metadata[j+1:]...)
			return true
		}
	}
	return false
}

// Get returns the value of the named property. Property names are case-insensitive.
func (g *PropertyGroup) Get(name string) (string, bool) {
	for _, p := range g.Properties {
		if strings.EqualFold(p.Name(), name) {
			return p.Value, true
		}
	}
	return "", false
}

func (g *PropertyGroup) set(name, value string) {
	for _, p := range g.Properties {
		if strings.EqualFold(p.Name(), name) {
			p.Value = value
			return
		}
	}
	g.Properties = append(g.Properties, &Property{XMLName: xml.Name{Local: name}, Value: value})
}

func (g *PropertyGroup) remove(name string) bool {
	for i, p := range g.Properties {
		if strings.EqualFold(p.Name(), name) {
			g.Properties = append(g.Properties[:i], g.Properties[i+1:]...)
			return true
		}
	}
	return false
}

// UnmarshalXML reads the <Project> element, recording the order of its children.
func (r *RootElement) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	if start.Name.Local != "Project" {
		return fmt.Errorf("expected root element Project, found %s", start.Name.Local)
	}
	r.Xmlns = start.Name.Space
	for _, attr := range start.Attr {
		switch attr.Name.Local {
		case "Sdk":
			r.Sdk = attr.Value
		case "ToolsVersion":
			r.ToolsVersion = attr.Value
		case "DefaultTargets":
			r.DefaultTargets = attr.Value
		}
	}

	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			child, err := r.decodeChild(d, t)
			if err != nil {
				return err
			}
			r.order = append(r.order, child)
		case xml.EndElement:
			return nil
		}
	}
}

func (r *RootElement) decodeChild(d *xml.Decoder, start xml.StartElement) (any, error) {
	switch start.Name.Local {
	case "PropertyGroup":
		g := &PropertyGroup{}
		if err := d.DecodeElement(g, &start); err != nil {
			return nil, err
		}
		r.PropertyGroups = append(r.PropertyGroups, g)
		return g, nil
	case "ItemGroup":
		g := &ItemGroup{}
		if err := d.DecodeElement(g, &start); err != nil {
			return nil, err
		}
		r.ItemGroups = append(r.ItemGroups, g)
		return g, nil
	case "Import":
		imp := &Import{}
		if err := d.DecodeElement(imp, &start); err != nil {
			return nil, err
		}
		r.Imports = append(r.Imports, imp)
		return imp, nil
	default:
		raw := &RawElement{}
		if err := d.DecodeElement(raw, &start); err != nil {
			return nil, err
		}
		r.Extra = append(r.Extra, raw)
		return raw, nil
	}
}

// MarshalXML writes the <Project> element. Children read from a file are
// written in the order they were read. A child added since goes after the
// last sibling of its kind, or after the kinds that precede it in a new
// script (property groups, item groups, imports, then everything else).
func (r *RootElement) MarshalXML(e *xml.Encoder, _ xml.StartElement) error {
	start := xml.StartElement{Name: xml.Name{Local: "Project"}}
	for _, attr := range []struct{ name, value string }{
		{"Sdk", r.Sdk},
		{"ToolsVersion", r.ToolsVersion},
		{"DefaultTargets", r.DefaultTargets},
		{"xmlns", r.Xmlns},
	} {
		if attr.value != "" {
			start.Attr = append(start.Attr, xml.Attr{Name: xml.Name{Local: attr.name}, Value: attr.value})
		}
	}

	if err := e.EncodeToken(start); err != nil {
		return err
	}
	for _, child := range r.children() {
		var err error
		switch c := child.(type) {
		case *PropertyGroup:
			err = e.EncodeElement(c, xml.StartElement{Name: xml.Name{Local: "PropertyGroup"}})
		case *ItemGroup:
			err = e.EncodeElement(c, xml.StartElement{Name: xml.Name{Local: "ItemGroup"}})
		case *Import:
			err = e.EncodeElement(c, xml.StartElement{Name: xml.Name{Local: "Import"}})
		case *RawElement:
			err = e.Encode(c)
		}
		if err != nil {
			return err
		}
	}
	return e.EncodeToken(start.End())
}

// childRank orders kinds for children that have no sibling of their kind to follow.
func childRank(child any) int {
	switch child.(type) {
	case *PropertyGroup:
		return 0
	case *ItemGroup:
		return 1
	case *Import:
		return 2
	default:
		return 3
	}
}

// children returns the current children in write order.
func (r *RootElement) children() []any {
	var current []any
	for _, g := range r.PropertyGroups {
		current = append(current, g)
	}
	for _, g := range r.ItemGroups {
		current = append(current, g)
	}
	for _, imp := range r.Imports {
		current = append(current, imp)
	}
	for _, raw := range r.Extra {
		current = append(current, raw)
	}

	present := make(map[any]bool, len(current))
	for _, c := range current {
		present[c] = true
	}
	placed := make(map[any]bool, len(current))
	out := make([]any, 0, len(current))
	for _, c := range r.order {
		if present[c] && !placed[c] {
			out = append(out, c)
			placed[c] = true
		}
	}

	for _, c := range current {
		if placed[c] {
			continue
		}
		at := insertionPoint(out, c)
		out = slices.Insert(out, at, c)
		placed[c] = true
	}
	return out
}

// insertionPoint is the index a new child c goes to in out.
func insertionPoint(out []any, c any) int {
	rank := childRank(c)
	for i := len(out) - 1; i >= 0; i-- {
		if childRank(out[i]) == rank {
			return i + 1
		}
	}
	for i := len(out) - 1; i >= 0; i-- {
		if childRank(out[i]) < rank {
			return i + 1
		}
	}
	// first of the lowest kind: after any leading imports such as Microsoft.Common.props
	i := 0
	for i < len(out) {
		if _, ok := out[i].(*Import); !ok {
			break
		}
		i++
	}
	return i
}

// normalize drops the namespace the decoder attaches to every element so that
// marshaling writes xmlns only once, on the root.
func (r *RootElement) normalize() {
	for _, g := range r.PropertyGroups {
		for _, p := range g.Properties {
			p.XMLName.Space = ""
			p.Value = strings.TrimSpace(p.Value)
		}
	}
	for _, g := range r.ItemGroups {
		for _, item := range g.Items {
			item.XMLName.Space = ""
			for _, m := range item.Metadata {
				m.XMLName.Space = ""
				m.Value = strings.TrimSpace(m.Value)
			}
		}
	}
	for _, raw := range r.Extra {
		raw.XMLName.Space = ""
	}
}
