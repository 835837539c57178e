package project

import (
	"strconv"
	"strings"

	"github.com/willibrandon/litedev/buildscript"
)

// Reference item metadata keys.
const (
	metaSpecificVersion = "SpecificVersion"
	metaHintPath        = "HintPath"
	metaDependentUpon   = "DependentUpon"
)

// AssemblyReference is a reference to a compiled assembly.
// AssemblyName identifies it; a project holds at most one reference per name.
type AssemblyReference struct {
	AssemblyName    string
	HintPath        string
	SpecificVersion bool
}

// referenceKey is the identity of a reference inside a project's reference set.
func referenceKey(r *AssemblyReference) any {
	return strings.ToLower(r.AssemblyName)
}

// referenceFromItem reads a Reference item. Metadata other than SpecificVersion
// and HintPath is rejected.
func referenceFromItem(path string, item *buildscript.Item) (*AssemblyReference, error) {
	ref := &AssemblyReference{AssemblyName: item.Include}

	for _, m := range item.Metadata {
		switch m.Name() {
		case metaSpecificVersion:
			v, err := strconv.ParseBool(m.Value)
			if err != nil {
				return nil, &buildscript.FormatError{Path: path, ItemType: ItemReference, Include: item.Include, Key: metaSpecificVersion}
			}
			ref.SpecificVersion = v
		case metaHintPath:
			ref.HintPath = m.Value
		default:
			return nil, &buildscript.FormatError{Path: path, ItemType: ItemReference, Include: item.Include, Key: m.Name()}
		}
	}

	return ref, nil
}

// formatBool renders a flag the way Visual Studio writes it.
func formatBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}
