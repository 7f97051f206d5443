package browser

import (
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/charmbracelet/glamour"

	"github.com/vidyasagar/opdsnav/internal/opds"
)

// Cached glamour renderer to avoid recreation on every render call.
var (
	cachedRenderer      *glamour.TermRenderer
	cachedRendererWidth int
	rendererMu          sync.Mutex
)

// RenderedPage holds terminal-ready output.
type RenderedPage struct {
	Title   string
	Content string
	Links   []Link
}

// Link is a hyperlink found while rendering.
type Link struct {
	Index int
	Text  string
	URI   string
}

// RenderEntry renders a catalog entry's metadata and description.
func RenderEntry(e opds.Entry, width int) *RenderedPage {
	var md strings.Builder
	md.WriteString("# " + e.Title + "\n\n")
	if len(e.Authors) > 0 {
		md.WriteString("*" + strings.Join(e.Authors, ", ") + "*\n\n")
	}

	var meta []string
	if e.Publisher != "" {
		meta = append(meta, "Publisher: "+e.Publisher)
	}
	if !e.Published.IsZero() {
		meta = append(meta, "Published: "+e.Published.Format("2006-01-02"))
	}
	if len(e.Categories) > 0 {
		meta = append(meta, "Categories: "+strings.Join(e.Categories, ", "))
	}
	for _, m := range meta {
		md.WriteString("- " + m + "\n")
	}
	if len(meta) > 0 {
		md.WriteString("\n")
	}

	conv := &mdConverter{}
	md.WriteString("---\n\n")
	switch {
	case e.Content != "":
		md.WriteString(conv.fragment(e.Content))
	case e.Summary != "":
		md.WriteString(e.Summary + "\n\n")
	}

	if len(e.Acquisitions) > 0 {
		md.WriteString("## Availability\n\n")
		for _, a := range e.Acquisitions {
			for _, path := range a.Paths() {
				md.WriteString(fmt.Sprintf("- %s: `%s`\n", a.Relation, strings.Join(path, " → ")))
			}
		}
		md.WriteString("\n")
	}

	return &RenderedPage{
		Title:   e.Title,
		Content: renderMarkdown(md.String(), width),
		Links:   conv.links,
	}
}

// RenderArticle renders an extracted description page.
func RenderArticle(a *Article, width int) *RenderedPage {
	conv := &mdConverter{}

	var md strings.Builder
	if a.Title != "" {
		md.WriteString("# " + a.Title + "\n\n")
	}
	if a.Byline != "" {
		md.WriteString("*" + a.Byline + "*\n\n")
	}
	md.WriteString("---\n\n")
	body := conv.fragment(a.Content)
	if strings.TrimSpace(body) == "" {
		body = a.TextContent
	}
	md.WriteString(body)

	return &RenderedPage{
		Title:   a.Title,
		Content: renderMarkdown(md.String(), width),
		Links:   conv.links,
	}
}

func renderMarkdown(markdown string, width int) string {
	if width <= 0 {
		width = 80
	}
	// Constrain content width for readability.
	contentWidth := width - 4
	if contentWidth > 100 {
		contentWidth = 100
	}

	rendered, err := renderWithGlamour(markdown, contentWidth)
	if err != nil {
		return markdown
	}
	return rendered
}

// renderWithGlamour renders markdown with a renderer cached per width.
func renderWithGlamour(markdown string, width int) (string, error) {
	rendererMu.Lock()
	defer rendererMu.Unlock()

	if cachedRenderer == nil || cachedRendererWidth != width {
		renderer, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			return "", err
		}
		cachedRenderer = renderer
		cachedRendererWidth = width
	}

	return cachedRenderer.Render(markdown)
}

// mdConverter converts HTML fragments to markdown, numbering links.
type mdConverter struct {
	links []Link
}

func (c *mdConverter) fragment(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	var sb strings.Builder
	doc.Find("body").Contents().Each(func(_ int, s *goquery.Selection) {
		sb.WriteString(c.block(s, 0))
	})
	return sb.String()
}

func (c *mdConverter) block(s *goquery.Selection, depth int) string {
	switch tag := goquery.NodeName(s); tag {
	case "#text":
		if text := strings.TrimSpace(s.Text()); text != "" {
			return text + "\n\n"
		}
		return ""
	case "h1", "h2", "h3", "h4", "h5", "h6":
		text := strings.TrimSpace(s.Text())
		if text == "" {
			return ""
		}
		return strings.Repeat("#", int(tag[1]-'0')) + " " + text + "\n\n"
	case "ul", "ol":
		return c.list(s, tag == "ol", depth)
	case "blockquote":
		var sb strings.Builder
		s.Children().Each(func(_ int, child *goquery.Selection) {
			for _, line := range strings.Split(strings.TrimRight(c.block(child, 0), "\n"), "\n") {
				sb.WriteString("> " + line + "\n")
			}
		})
		return sb.String() + "\n"
	case "pre":
		return "```\n" + s.Text() + "\n```\n\n"
	case "hr":
		return "\n---\n\n"
	case "div", "section", "article", "span":
		var sb strings.Builder
		s.Contents().Each(func(_ int, child *goquery.Selection) {
			sb.WriteString(c.block(child, depth))
		})
		return sb.String()
	default:
		var sb strings.Builder
		c.inline(s, &sb)
		if text := strings.TrimSpace(sb.String()); text != "" {
			return text + "\n\n"
		}
		return ""
	}
}

func (c *mdConverter) inline(s *goquery.Selection, sb *strings.Builder) {
	s.Contents().Each(func(_ int, child *goquery.Selection) {
		switch goquery.NodeName(child) {
		case "#text":
			sb.WriteString(child.Text())
		case "a":
			sb.WriteString(c.link(child))
		case "strong", "b":
			sb.WriteString("**")
			c.inline(child, sb)
			sb.WriteString("**")
		case "em", "i":
			sb.WriteString("*")
			c.inline(child, sb)
			sb.WriteString("*")
		case "code":
			sb.WriteString("`" + child.Text() + "`")
		case "br":
			sb.WriteString("  \n")
		default:
			c.inline(child, sb)
		}
	})
}

func (c *mdConverter) link(s *goquery.Selection) string {
	href, _ := s.Attr("href")
	text := strings.TrimSpace(s.Text())
	if text == "" {
		text = href
	}
	if href == "" {
		return text
	}
	c.links = append(c.links, Link{Index: len(c.links) + 1, Text: text, URI: href})
	return fmt.Sprintf("[%s](%s) **[%d]**", text, href, len(c.links))
}

func (c *mdConverter) list(s *goquery.Selection, ordered bool, depth int) string {
	var sb strings.Builder
	indent := strings.Repeat("  ", depth)
	s.ChildrenFiltered("li").Each(func(i int, li *goquery.Selection) {
		prefix := indent + "- "
		if ordered {
			prefix = fmt.Sprintf("%s%d. ", indent, i+1)
		}
		var item strings.Builder
		li.Contents().Each(func(_ int, child *goquery.Selection) {
			switch goquery.NodeName(child) {
			case "ul", "ol":
				// rendered below as a nested list
			case "#text":
				item.WriteString(child.Text())
			case "a":
				item.WriteString(c.link(child))
			default:
				c.inline(child, &item)
			}
		})
		sb.WriteString(prefix + strings.Join(strings.Fields(item.String()), " ") + "\n")
		li.ChildrenFiltered("ul, ol").Each(func(_ int, nested *goquery.Selection) {
			sb.WriteString(c.list(nested, goquery.NodeName(nested) == "ol", depth+1))
		})
	})
	return sb.String() + "\n"
}
