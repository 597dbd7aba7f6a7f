package host

import (
	"sort"
	"strings"
)

// Workflow commands are single lines on stdout of the form
//
//	::name key=value,key=value::message
//
// so data and property values have to be escaped.

var (
	dataEscaper     = strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A")
	propertyEscaper = strings.NewReplacer("%", "%25", "\r", "%0D", "\n", "%0A", ":", "%3A", ",", "%2C")
)

func escapeData(s string) string {
	return dataEscaper.Replace(s)
}

func escapeProperty(s string) string {
	return propertyEscaper.Replace(s)
}

func formatCommand(command string, properties map[string]string, message string) string {
	var b strings.Builder
	b.WriteString("::")
	b.WriteString(command)

	if len(properties) > 0 {
		keys := make([]string, 0, len(properties))
		for k, v := range properties {
			if v != "" {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for i, k := range keys {
			if i == 0 {
				b.WriteString(" ")
			} else {
				b.WriteString(",")
			}
			b.WriteString(k)
			b.WriteString("=")
			b.WriteString(escapeProperty(properties[k]))
		}
	}

	b.WriteString("::")
	b.WriteString(escapeData(message))
	return b.String()
}
