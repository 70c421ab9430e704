package server

import (
	"bytes"
	"testing"

	"github.com/abiosoft/mold"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderPage(t *testing.T) {
	var buf bytes.Buffer
	err := RenderPage(&buf, "index", TemplateContent{Title: "a <b> title", Content: "# Heading\n\n*text*"})
	require.NoError(t, err)
	html := buf.String()
	assert.Contains(t, html, "<title>a &lt;b&gt; title</title>")
	assert.Contains(t, html, "<h1>Heading</h1>")
	assert.Contains(t, html, "<em>text</em>")
	assert.Contains(t, html, "<main>")

	err = RenderPage(&buf, "missing", TemplateContent{})
	assert.ErrorIs(t, err, mold.ErrNotFound)
}
