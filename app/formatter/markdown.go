package formatter

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	spaceRun      = regexp.MustCompile(`[ \t\r\f\v]+`)
	whitespaceRun = regexp.MustCompile(`\s+`)
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
	blankLines    = regexp.MustCompile(`\n{3,}`)
)

// FormatValueForDiscord converts an HTML fragment into Discord flavoured markdown.
func FormatValueForDiscord(value string, opts FormatOptions) string {
	if value == "" {
		return ""
	}

	nodes, err := html.ParseFragment(strings.NewReader(value), &html.Node{
		Type:     html.ElementNode,
		Data:     "body",
		DataAtom: atom.Body,
	})
	if err != nil {
		return strings.TrimSpace(value)
	}

	w := &markdownWriter{opts: opts}
	for _, n := range nodes {
		w.node(n)
	}

	out := trailingSpace.ReplaceAllString(w.b.String(), "\n")
	out = blankLines.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out)
}

type markdownWriter struct {
	b       strings.Builder
	opts    FormatOptions
	pending int
}

func (w *markdownWriter) block(lines int) {
	if lines > w.pending {
		w.pending = lines
	}
}

func (w *markdownWriter) atLineStart() bool {
	s := w.b.String()
	return s == "" || strings.HasSuffix(s, "\n")
}

func (w *markdownWriter) flush() {
	if w.pending > 0 && w.b.Len() > 0 {
		s := w.b.String()
		have := len(s) - len(strings.TrimRight(s, "\n"))
		for i := have; i < w.pending; i++ {
			w.b.WriteByte('\n')
		}
	}
	w.pending = 0
}

// literal writes s as is, honouring pending block breaks.
func (w *markdownWriter) literal(s string) {
	if s == "" {
		return
	}
	w.flush()
	w.b.WriteString(s)
}

func (w *markdownWriter) text(s string) {
	if w.opts.IgnoreNewLines {
		s = whitespaceRun.ReplaceAllString(s, " ")
	} else {
		s = spaceRun.ReplaceAllString(s, " ")
	}
	if s == "" {
		return
	}

	if w.pending > 0 || w.atLineStart() {
		s = strings.TrimLeft(s, " ")
		if s == "" {
			return
		}
	}
	if strings.HasPrefix(s, " ") && strings.HasSuffix(w.b.String(), " ") {
		s = s[1:]
	}
	w.literal(s)
}

func (w *markdownWriter) children(n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		w.node(c)
	}
}

func (w *markdownWriter) wrap(n *html.Node, marker string) {
	inner := w.render(n)
	if strings.TrimSpace(inner) == "" {
		return
	}
	w.literal(marker + inner + marker)
}

// render formats the children of n into a separate buffer.
func (w *markdownWriter) render(n *html.Node) string {
	sub := &markdownWriter{opts: w.opts}
	sub.children(n)
	return strings.TrimSpace(sub.b.String())
}

func (w *markdownWriter) node(n *html.Node) {
	switch n.Type {
	case html.TextNode:
		w.text(n.Data)
		return
	case html.ElementNode:
	case html.DocumentNode:
		w.children(n)
		return
	default:
		return
	}

	switch n.DataAtom {
	case atom.Script, atom.Style, atom.Head, atom.Title, atom.Noscript:
	case atom.Br:
		w.flush()
		w.b.WriteByte('\n')
	case atom.P, atom.Blockquote:
		w.block(2)
		if n.DataAtom == atom.Blockquote {
			inner := w.render(n)
			if inner != "" {
				w.literal("> " + strings.ReplaceAll(inner, "\n", "\n> "))
			}
		} else {
			w.children(n)
		}
		w.block(2)
	case atom.Div, atom.Section, atom.Article, atom.Header, atom.Footer, atom.Figure, atom.Figcaption:
		w.block(1)
		w.children(n)
		w.block(1)
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		w.block(2)
		w.wrap(n, "**")
		w.block(2)
	case atom.Strong, atom.B:
		w.bold(n)
	case atom.Em, atom.I:
		w.wrap(n, "*")
	case atom.U:
		w.wrap(n, "__")
	case atom.S, atom.Del, atom.Strike:
		w.wrap(n, "~~")
	case atom.Code:
		if inner := textContent(n); inner != "" {
			w.literal("`" + inner + "`")
		}
	case atom.Pre:
		w.pre(n)
	case atom.A:
		w.anchor(n)
	case atom.Img:
		w.image(n)
	case atom.Ul, atom.Ol:
		w.list(n)
	case atom.Li:
		w.block(1)
		w.literal("* ")
		w.children(n)
		w.block(1)
	case atom.Table:
		w.table(n)
	case atom.Hr:
		w.block(2)
	default:
		w.children(n)
	}
}

func (w *markdownWriter) bold(n *html.Node) {
	inner := w.render(n)
	if inner == "" {
		return
	}
	parent := n.Parent
	if parent != nil && (parent.DataAtom == atom.P || parent.DataAtom == atom.A) {
		w.literal("**" + inner + "**")
		return
	}
	if w.pending == 0 && !w.atLineStart() && !strings.HasSuffix(w.b.String(), " ") {
		w.literal(" ")
	}
	w.literal("**" + inner + "** ")
}

func (w *markdownWriter) pre(n *html.Node) {
	w.block(1)
	if c := n.FirstChild; c != nil && c.NextSibling == nil && c.DataAtom == atom.Code {
		w.literal("```" + textContent(c) + "```")
	} else {
		w.literal("```" + textContent(n) + "```")
	}
	w.block(1)
}

func (w *markdownWriter) anchor(n *html.Node) {
	href := strings.TrimSpace(attr(n, "href"))
	if href == "" {
		w.children(n)
		return
	}

	text := strings.TrimSpace(textContent(n))
	if text == href {
		w.text(" ")
		w.literal(href)
		return
	}

	first := n.FirstChild
	if first != nil && first.NextSibling == nil && first.DataAtom != atom.Img {
		inner := w.render(n)
		if inner != "" {
			w.literal("[" + inner + "](" + href + ")")
			return
		}
	}

	w.children(n)
}

func (w *markdownWriter) image(n *html.Node) {
	if w.opts.StripImages {
		return
	}
	src := strings.TrimSpace(attr(n, "src"))
	if src == "" {
		return
	}
	if w.opts.DisableImageLinkPreviews {
		src = "<" + src + ">"
	}
	if w.pending == 0 && !w.atLineStart() && !strings.HasSuffix(w.b.String(), " ") {
		w.literal(" ")
	}
	w.literal(src)
}

func (w *markdownWriter) list(n *html.Node) {
	w.block(1)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || c.DataAtom != atom.Li {
			continue
		}
		item := w.render(c)
		if item == "" {
			continue
		}
		w.block(1)
		w.literal("* " + item)
	}
	w.block(1)
}

func (w *markdownWriter) table(n *html.Node) {
	var rows [][]string
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			if c.DataAtom == atom.Tr {
				var row []string
				for cell := c.FirstChild; cell != nil; cell = cell.NextSibling {
					if cell.DataAtom == atom.Td || cell.DataAtom == atom.Th {
						row = append(row, whitespaceRun.ReplaceAllString(strings.TrimSpace(textContent(cell)), " "))
					}
				}
				rows = append(rows, row)
				continue
			}
			walk(c)
		}
	}
	walk(n)
	if len(rows) == 0 {
		return
	}

	w.block(1)
	if !w.opts.FormatTables {
		for _, row := range rows {
			w.block(1)
			w.literal(strings.TrimSpace(strings.Join(row, " ")))
		}
		w.block(1)
		return
	}

	var widths []int
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], utf8.RuneCountInString(cell))
		}
	}

	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		var line strings.Builder
		for i, cell := range row {
			if i > 0 {
				line.WriteString("   ")
			}
			line.WriteString(cell)
			if i < len(row)-1 {
				line.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)))
			}
		}
		lines = append(lines, strings.TrimRight(line.String(), " "))
	}
	w.literal("```\n" + strings.Join(lines, "\n") + "\n```")
	w.block(1)
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
