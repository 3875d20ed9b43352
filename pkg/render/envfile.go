package render

import (
	"bytes"
	"strings"
)

// RenderEnvFile renders a shell-sourceable env file. Values already exported
// in the calling shell win over the declared defaults.
func RenderEnvFile(env, tags []EnvEntry) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Environment for the generated OpenTelemetry Collector configuration.\n")
	buf.WriteString("# Source this file before starting the collector.\n")

	writeSection(&buf, "Exporter settings", env)
	writeSection(&buf, "Runtime tags", tags)

	return buf.Bytes()
}

func writeSection(buf *bytes.Buffer, title string, entries []EnvEntry) {
	if len(entries) == 0 {
		return
	}

	buf.WriteString("\n# ")
	buf.WriteString(title)
	buf.WriteString("\n")

	for _, entry := range entries {
		buf.WriteString("# ")
		buf.WriteString(entry.Description)

		if entry.Required {
			buf.WriteString(" (required)")
		}

		buf.WriteString("\nexport ")
		buf.WriteString(entry.Name)
		buf.WriteString(`="${`)
		buf.WriteString(entry.Name)
		buf.WriteString(":-")
		buf.WriteString(escape(entry.Default))
		buf.WriteString("}\"\n")
	}
}

// shellEscaper quotes a default for a double-quoted POSIX parameter expansion.
var shellEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "`", "\\`", "$", `\$`)

func escape(value string) string {
	return shellEscaper.Replace(value)
}
