package server

import (
	"embed"
	"html/template"
	"io"

	"github.com/abiosoft/mold"
	"github.com/russross/blackfriday/v2"
)

var (
	//go:embed templates
	templateFS embed.FS

	// TemplateFuncMap contains custom template functions available to layouts and pages
	TemplateFuncMap = template.FuncMap{
		"markdown": func(text string) template.HTML {
			return template.HTML(blackfriday.Run([]byte(text)))
		},
	}

	templateEngine = mold.Must(NewTemplateEngine())
)

// NewTemplateEngine parses every page under templates/pages wrapped in
// templates/layouts/layout.html.
func NewTemplateEngine() (mold.Engine, error) {
	return mold.New(templateFS,
		mold.WithRoot("templates"),
		mold.WithLayout("layouts/layout.html"),
		mold.WithFuncMap(TemplateFuncMap),
	)
}

type TemplateContent struct {
	Title   string
	Content string
}

// RenderPage renders templates/pages/<page>.html inside the layout
func RenderPage(w io.Writer, page string, content TemplateContent) error {
	return templateEngine.Render(w, "pages/"+page+".html", content)
}

func indexMarkdown() string {
	data, err := templateFS.ReadFile("templates/index.md")
	if err != nil {
		panic(err)
	}
	return string(data)
}
