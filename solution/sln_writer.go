package solution

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const crlf = "\r\n"

// Encode writes the solution in Visual Studio's .sln text format. Sections
// that are not modeled are written back as they were read; NestedProjects is
// regenerated from the folder tree.
func (s *Solution) Encode(w io.Writer) error {
	var buf bytes.Buffer
	line := func(format string, args ...any) {
		fmt.Fprintf(&buf, format, args...)
		buf.WriteString(crlf)
	}

	buf.WriteString("\ufeff")
	buf.WriteString(crlf)
	line("Microsoft Visual Studio Solution File, Format Version %s", s.file.FormatVersion)
	for _, c := range s.file.Comments {
		line("%s", c)
	}
	if s.file.VisualStudioVersion != "" {
		line("VisualStudioVersion = %s", s.file.VisualStudioVersion)
	}
	if s.file.MinimumVisualStudioVersion != "" {
		line("MinimumVisualStudioVersion = %s", s.file.MinimumVisualStudioVersion)
	}

	writeSections := func(kind, indent string, sections []slnSection) {
		for _, sec := range sections {
			line("%s%sSection(%s) = %s", indent, kind, sec.Name, sec.When)
			for _, l := range sec.Lines {
				line("%s\t%s", indent, l)
			}
			line("%sEnd%sSection", indent, kind)
		}
	}

	var nested []string
	for _, n := range s.order {
		var parent *Folder
		if n.folder != nil {
			f := n.folder
			line(`Project("%s") = "%s", "%s", "%s"`, ProjectTypeSolutionFolder, f.Name, f.Name, f.GUID)
			writeSections("Project", "\t", f.sections)
			parent = f.parent
		} else {
			e := n.project
			line(`Project("%s") = "%s", "%s", "%s"`, e.TypeGUID, e.Name, e.RelPath, e.GUID)
			writeSections("Project", "\t", e.sections)
			parent = e.parent
		}
		line("EndProject")
		if parent != nil && parent != s.root {
			nested = append(nested, fmt.Sprintf("%s = %s", n.guid(), parent.GUID))
		}
	}

	line("Global")
	wroteNested := false
	for _, sec := range s.file.GlobalSections {
		if sec.Name == sectionNestedProjects {
			if len(nested) > 0 {
				sec.Lines = nested
				writeSections("Global", "\t", []slnSection{sec})
			}
			wroteNested = true
			continue
		}
		writeSections("Global", "\t", []slnSection{sec})
	}
	if !wroteNested && len(nested) > 0 {
		writeSections("Global", "\t", []slnSection{{Name: sectionNestedProjects, When: "preSolution", Lines: nested}})
	}
	line("EndGlobal")

	_, err := w.Write(buf.Bytes())
	return err
}

// write replaces the file at path through a temporary file in the same directory.
func (s *Solution) write(path string) (err error) {
	var buf bytes.Buffer
	if err := s.Encode(&buf); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(buf.Bytes()); err != nil {
		_ = tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
