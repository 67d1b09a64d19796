package digest

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"github.com/ternarybob/vigil/internal/models"
)

// sectionTitles maps section identifiers to their display headings.
var sectionTitles = map[string]string{
	models.SectionSecurityNews: "Security News",
	models.SectionProductNews:  "Product News",
	models.SectionMarket:       "Market",
	models.SectionResearch:     "Research",
}

// templateSection is one rendered digest section.
type templateSection struct {
	Title    string
	Articles []*models.Article
}

// templateData is the full payload for the digest template.
type templateData struct {
	Date        string
	DisplayDate string
	GeneratedAt string
	Sections    []*templateSection
	Total       int
}

var digestTemplate = template.Must(template.New("digest").Funcs(template.FuncMap{
	"articleTime": func(article *models.Article) string {
		if article.PublishedAt != nil {
			return article.PublishedAt.UTC().Format("2006-01-02 15:04 UTC")
		}
		return article.FetchedAt.UTC().Format("2006-01-02 15:04 UTC")
	},
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Security Digest {{.Date}}</title>
<style>
body { font-family: Georgia, serif; max-width: 720px; margin: 2rem auto; padding: 0 1rem; color: #1a1a1a; }
h1 { font-size: 1.6rem; border-bottom: 2px solid #1a1a1a; padding-bottom: 0.4rem; }
h2 { font-size: 1.2rem; margin-top: 2rem; color: #333; }
article { margin: 1.2rem 0; }
article h3 { font-size: 1rem; margin: 0 0 0.2rem 0; }
article h3 a { color: #0b5394; text-decoration: none; }
article p { margin: 0.2rem 0; line-height: 1.5; }
.meta { font-size: 0.8rem; color: #777; }
footer { margin-top: 3rem; font-size: 0.8rem; color: #777; border-top: 1px solid #ddd; padding-top: 0.6rem; }
</style>
</head>
<body>
<h1>Security Digest &mdash; {{.DisplayDate}}</h1>
{{range .Sections}}
<h2>{{.Title}}</h2>
{{range .Articles}}
<article>
<h3><a href="{{.URL}}">{{.Title}}</a></h3>
{{if .Summary}}<p>{{.Summary}}</p>
{{end}}
<p class="meta">{{articleTime .}}</p>
</article>
{{end}}
{{end}}
<footer>{{.Total}} article(s) &middot; generated {{.GeneratedAt}}</footer>
</body>
</html>
`))

// renderDigest renders the digest HTML for grouped articles. Sections
// appear in the given order; empty sections are omitted.
func renderDigest(date string, sectionOrder []string, grouped map[string][]*models.Article, generatedAt time.Time) ([]byte, error) {
	parsed, err := time.Parse("2006-01-02", date)
	if err != nil {
		return nil, fmt.Errorf("invalid digest date '%s': %w", date, err)
	}

	data := &templateData{
		Date:        date,
		DisplayDate: parsed.Format("January 02, 2006"),
		GeneratedAt: generatedAt.UTC().Format("2006-01-02 15:04 UTC"),
	}
	for _, section := range sectionOrder {
		articles := grouped[section]
		if len(articles) == 0 {
			continue
		}
		title, ok := sectionTitles[section]
		if !ok {
			title = section
		}
		data.Sections = append(data.Sections, &templateSection{Title: title, Articles: articles})
		data.Total += len(articles)
	}

	var buf bytes.Buffer
	if err := digestTemplate.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to render digest: %w", err)
	}
	return buf.Bytes(), nil
}
