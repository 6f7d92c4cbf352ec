// Package convert turns HTML documents into translatable catalogs and
// builds translated documents back from a catalog.
//
// Every block of text becomes one message whose context is the document
// base name. Inline markup stays inside the message, so translators can
// move it. Selected attributes such as alt and title are messages of their
// own.
package convert

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	po "github.com/minios-linux/catsync/pofile"
)

// Flags set on extracted messages.
var Flags = []string{"safe-html", "strict-same"}

var blockTags = map[atom.Atom]bool{
	atom.P: true, atom.H1: true, atom.H2: true, atom.H3: true, atom.H4: true,
	atom.H5: true, atom.H6: true, atom.Li: true, atom.Dt: true, atom.Dd: true,
	atom.Td: true, atom.Th: true, atom.Caption: true, atom.Figcaption: true,
	atom.Blockquote: true, atom.Label: true, atom.Button: true, atom.Option: true,
	atom.Legend: true, atom.Summary: true, atom.Title: true, atom.Address: true,
}

var containerTags = map[atom.Atom]bool{
	atom.Html: true, atom.Head: true, atom.Body: true, atom.Div: true,
	atom.Section: true, atom.Article: true, atom.Header: true, atom.Footer: true,
	atom.Main: true, atom.Nav: true, atom.Aside: true, atom.Form: true,
	atom.Fieldset: true, atom.Figure: true, atom.Details: true, atom.Ul: true,
	atom.Ol: true, atom.Dl: true, atom.Table: true, atom.Thead: true,
	atom.Tbody: true, atom.Tfoot: true, atom.Tr: true, atom.Select: true,
}

var skipTags = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Pre: true, atom.Code: true,
	atom.Noscript: true, atom.Template: true, atom.Svg: true, atom.Math: true,
}

var translatableAttrs = []string{"alt", "title", "placeholder", "aria-label"}

func isBlock(n *html.Node) bool {
	return n.Type == html.ElementNode && (blockTags[n.DataAtom] || containerTags[n.DataAtom])
}

func hasBlockDescendant(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if isBlock(c) || hasBlockDescendant(c) {
			return true
		}
	}
	return false
}

// unit is a translatable piece of a document: either a run of sibling
// nodes or one attribute of an element.
type unit struct {
	path  string
	nodes []*html.Node
	el    *html.Node
	attr  string
}

// raw returns the source markup of the unit.
func (u *unit) raw() string {
	if u.el != nil {
		for _, a := range u.el.Attr {
			if a.Key == u.attr {
				return a.Val
			}
		}
		return ""
	}
	var buf bytes.Buffer
	for _, n := range u.nodes {
		html.Render(&buf, n)
	}
	return buf.String()
}

func (u *unit) msgid() string {
	return strings.Join(strings.Fields(u.raw()), " ")
}

// collect walks the document and returns its units in document order.
func collect(doc *html.Node) []*unit {
	var units []*unit
	var walk func(n *html.Node, path string)

	attrs := func(n *html.Node, path string) {
		for _, name := range translatableAttrs {
			for _, a := range n.Attr {
				if a.Namespace == "" && a.Key == name && strings.TrimSpace(a.Val) != "" {
					units = append(units, &unit{path: path + "@" + name, el: n, attr: name})
				}
			}
		}
	}
	// inlineAttrs collects attributes of elements in a run without text.
	var inlineAttrs func(n *html.Node, path string)
	inlineAttrs = func(n *html.Node, path string) {
		if n.Type != html.ElementNode || skipTags[n.DataAtom] {
			return
		}
		attrs(n, path)
		for c, i := n.FirstChild, 0; c != nil; c = c.NextSibling {
			if c.Type == html.ElementNode {
				i++
				inlineAttrs(c, fmt.Sprintf("%s/%s[%d]", path, c.Data, i))
			}
		}
	}
	addRun := func(run []*html.Node, path string) {
		u := &unit{path: path, nodes: run}
		if u.msgid() != "" && hasText(run) {
			units = append(units, u)
			return
		}
		for _, n := range run {
			inlineAttrs(n, path)
		}
	}

	walk = func(n *html.Node, path string) {
		if n.Type == html.ElementNode {
			if skipTags[n.DataAtom] {
				return
			}
			attrs(n, path)
			if !hasBlockDescendant(n) {
				var run []*html.Node
				for c := n.FirstChild; c != nil; c = c.NextSibling {
					run = append(run, c)
				}
				if len(run) > 0 {
					addRun(run, path)
				}
				return
			}
		}

		counts := make(map[string]int)
		var run []*html.Node
		runIndex := 0
		flush := func() {
			if len(run) > 0 {
				runIndex++
				addRun(run, fmt.Sprintf("%s/text()[%d]", path, runIndex))
				run = nil
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case c.Type == html.ElementNode && skipTags[c.DataAtom]:
				flush()
			case isBlock(c) || (c.Type == html.ElementNode && hasBlockDescendant(c)):
				flush()
				counts[c.Data]++
				walk(c, childPath(path, c.Data, counts[c.Data]))
			case c.Type == html.TextNode || c.Type == html.ElementNode:
				run = append(run, c)
			}
		}
		flush()
	}

	walk(doc, "")
	return units
}

func childPath(parent, tag string, index int) string {
	if index == 1 {
		return parent + "/" + tag
	}
	return fmt.Sprintf("%s/%s[%d]", parent, tag, index)
}

// hasText reports whether the nodes contain non-blank text outside skipped
// elements.
func hasText(nodes []*html.Node) bool {
	for _, n := range nodes {
		switch n.Type {
		case html.TextNode:
			if strings.TrimSpace(n.Data) != "" {
				return true
			}
		case html.ElementNode:
			if skipTags[n.DataAtom] {
				continue
			}
			var kids []*html.Node
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				kids = append(kids, c)
			}
			if hasText(kids) {
				return true
			}
		}
	}
	return false
}

// Extract reads an HTML document and returns its messages as a template.
func Extract(r io.Reader, name string) (*po.File, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", name, err)
	}

	f := po.NewFile()
	f.Header.MsgStr = "Content-Type: text/plain; charset=UTF-8\n"
	index := make(map[string]*po.Entry)
	for _, u := range collect(doc) {
		ref := name + ":" + strings.TrimPrefix(u.path, "/")
		e := &po.Entry{MsgCtxt: name, MsgID: u.msgid()}
		if old, ok := index[e.Key()]; ok {
			old.References = append(old.References, ref)
			continue
		}
		e.References = []string{ref}
		e.Flags = append([]string(nil), Flags...)
		index[e.Key()] = e
		f.Entries = append(f.Entries, e)
	}
	return f, nil
}

// ExtractFile extracts the messages of the document at path. The message
// context is the base name of path.
func ExtractFile(path string) (*po.File, error) {
	r, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return Extract(r, filepath.Base(path))
}

// ApplyResult counts the units of a document and how many were translated.
type ApplyResult struct {
	Units   int
	Applied int
}

// Apply writes the template document with every unit that has a translated,
// non-fuzzy message in catalog replaced by its translation. Other units
// keep the source text.
func Apply(w io.Writer, template io.Reader, name string, catalog *po.File) (ApplyResult, error) {
	var res ApplyResult
	doc, err := html.Parse(template)
	if err != nil {
		return res, fmt.Errorf("parsing %s: %w", name, err)
	}

	for _, u := range collect(doc) {
		res.Units++
		e := catalog.Lookup(name, u.msgid())
		if e == nil || !e.IsTranslated() {
			continue
		}
		if err := u.replace(e.MsgStr); err != nil {
			return res, fmt.Errorf("%s %s: %w", name, u.path, err)
		}
		res.Applied++
	}

	if err := html.Render(w, doc); err != nil {
		return res, err
	}
	return res, nil
}

// replace swaps the unit content for text, keeping the whitespace around
// the original content.
func (u *unit) replace(text string) error {
	if u.el != nil {
		for i := range u.el.Attr {
			if u.el.Attr[i].Key == u.attr {
				u.el.Attr[i].Val = text
			}
		}
		return nil
	}

	parent := u.nodes[0].Parent
	raw := u.raw()
	lead := raw[:len(raw)-len(strings.TrimLeft(raw, " \t\r\n"))]
	trail := raw[len(strings.TrimRight(raw, " \t\r\n")):]

	nodes, err := html.ParseFragment(strings.NewReader(text), parent)
	if err != nil {
		return err
	}
	next := u.nodes[len(u.nodes)-1].NextSibling
	for _, n := range u.nodes {
		parent.RemoveChild(n)
	}
	insert := func(n *html.Node) {
		if next != nil {
			parent.InsertBefore(n, next)
		} else {
			parent.AppendChild(n)
		}
	}
	if lead != "" {
		insert(&html.Node{Type: html.TextNode, Data: lead})
	}
	for _, n := range nodes {
		insert(n)
	}
	if trail != "" && raw != lead {
		insert(&html.Node{Type: html.TextNode, Data: trail})
	}
	return nil
}

// ApplyFile builds the translated document at outPath from the template
// document and the catalog at catalogPath.
func ApplyFile(templatePath, catalogPath, outPath string) (ApplyResult, error) {
	catalog, err := po.ParseFile(catalogPath)
	if err != nil {
		return ApplyResult{}, err
	}
	r, err := os.Open(templatePath)
	if err != nil {
		return ApplyResult{}, err
	}
	defer r.Close()

	var buf bytes.Buffer
	res, err := Apply(&buf, r, filepath.Base(templatePath), catalog)
	if err != nil {
		return res, err
	}
	return res, po.WriteFileAtomic(outPath, buf.Bytes())
}
