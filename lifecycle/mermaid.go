package lifecycle

import (
	"strings"
)

// Mermaid renders the transition table as a Mermaid state diagram.
func Mermaid() string {
	var b strings.Builder
	b.WriteString("stateDiagram-v2\n")
	b.WriteString("    [*] --> " + string(Initial) + "\n")
	for _, tr := range transitions {
		b.WriteString("    " + string(tr.from) + " --> " + string(tr.to) + ": " + string(tr.event) + "\n")
	}
	for _, s := range States() {
		if s.IsTerminal() {
			b.WriteString("    " + string(s) + " --> [*]\n")
		}
	}
	return b.String()
}
