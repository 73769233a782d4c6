package template

import (
	"testing"
	"text/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractAllVariables(t *testing.T) {
	src := `<w:t>{{ .Title }}</w:t>` +
		`{{ range $i, $row := .Rows }}{{ $row.Name }}{{ end }}` +
		`{{ if .Show }}{{ .Company.Name }}{{ else }}-{{ end }}` +
		`{{"{{"}}%logo}}`

	tmpl, err := template.New("doc").Parse(src)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"$row.Name",
		".Company.Name",
		".Rows",
		".Show",
		".Title",
	}, ExtractAllVariables(tmpl))
}

func TestExtractAllVariables_Empty(t *testing.T) {
	tmpl, err := template.New("doc").Parse("<w:t>plain</w:t>")
	require.NoError(t, err)

	assert.Empty(t, ExtractAllVariables(tmpl))
}

func TestExtractAllVariables_AssociatedTemplates(t *testing.T) {
	src := `{{ define "address" }}{{ .Street }}{{ end }}` +
		`{{ template "address" .Customer.Address }}{{ (.Order).Total }}`

	tmpl, err := template.New("doc").Parse(src)
	require.NoError(t, err)

	assert.Equal(t, []string{
		".Customer.Address",
		".Order",
		".Street",
	}, ExtractAllVariables(tmpl))
}
