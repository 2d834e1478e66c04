package tool

import "strings"

// EmptyCatalog is the catalog text used when no tools are available.
const EmptyCatalog = "(no tools)"

// FormatCatalog renders descriptors as "- name: description" lines in
// discovery order.
func FormatCatalog(descs []Descriptor) string {
	if len(descs) == 0 {
		return EmptyCatalog
	}

	lines := make([]string, 0, len(descs))
	for _, d := range descs {
		lines = append(lines, "- "+d.Name+": "+d.Description)
	}

	return strings.Join(lines, "\n")
}
