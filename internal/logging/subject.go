package logging

import "strings"

// FormatSubject builds the component/entry/step subject used in console output.
func FormatSubject(component, entryID, stage string) string {
	component = strings.TrimSpace(component)
	entryID = strings.TrimSpace(entryID)
	stage = strings.TrimSpace(stage)
	parts := make([]string, 0, 2)
	if component != "" {
		parts = append(parts, component)
	}
	switch {
	case entryID != "" && stage != "":
		parts = append(parts, entryID+" ("+stage+")")
	case entryID != "":
		parts = append(parts, entryID)
	case stage != "":
		parts = append(parts, stage)
	}
	return strings.Join(parts, " · ")
}
