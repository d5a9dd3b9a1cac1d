package bundle

import (
	"bytes"
	"text/template"

	"luaobf/internal/diff"
)

type rdCtx struct {
	Manifest
	Gated bool
	Patch diff.Patch
}

const readmeTemplate = `# Build {{.BuildID}}

This archive was produced by *{{.Tool}}*.

## Layout
- **obfuscated.lua** is the artifact. It needs bit32 and loadstring or load.
- **manifest.json** holds the options, digests and counts of this build.
- **minify.patch** is a unified diff from the normalised source to the text the literal extractor saw.

## Build
- Literals encrypted: {{.Literals}}
- Stage-1 pieces: {{.Stage1Pieces}}, stage-2 chunks: {{.Stage2Pieces}}
- Permutation: {{.Options.Permutation}}; integrity policy: {{.Options.Integrity}}
- Boot delay: {{.Options.BootDelay}} cycles
{{- if .Patch.Oversize}}
- Minify patch omitted: the source exceeds the size limit.
{{- else}}
- Minify patch: -{{.Patch.Removed}} +{{.Patch.Added}} lines
{{- end}}
{{- if .Gated}}
- Gated: the artifact fetches its key byte for id {{printf "%q" .GateID}} at run time.
{{- end}}
`

var readmeTmpl = template.Must(template.New("readme").Parse(readmeTemplate))

func readme(m Manifest, p diff.Patch) []byte {
	var buf bytes.Buffer
	if err := readmeTmpl.Execute(&buf, rdCtx{Manifest: m, Gated: m.GateID != "", Patch: p}); err != nil {
		return []byte("# Build " + m.BuildID + "\n")
	}
	return buf.Bytes()
}
