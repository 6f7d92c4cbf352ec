package convert

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	po "github.com/minios-linux/catsync/pofile"
)

const page = `<!DOCTYPE html>
<html>
<head><title>Weblate</title></head>
<body>
<h1>Welcome</h1>
<p>Translate <b>everything</b>
  here.</p>
<div>Loose text <p>Inner</p></div>
<img src="logo.png" alt="Logo">
<script>var x = "no";</script>
<p>Welcome</p>
<ul><li>One</li><li>Two</li></ul>
</body>
</html>
`

func TestExtract(t *testing.T) {
	f, err := Extract(strings.NewReader(page), "index.html")
	require.NoError(t, err)

	var ids []string
	for _, e := range f.Entries {
		ids = append(ids, e.MsgID)
		assert.Equal(t, "index.html", e.MsgCtxt)
		assert.Equal(t, []string{"safe-html", "strict-same"}, e.Flags)
	}
	assert.Equal(t, []string{
		"Weblate",
		"Welcome",
		"Translate <b>everything</b> here.",
		"Loose text",
		"Inner",
		"Logo",
		"One",
		"Two",
	}, ids)

	welcome := f.Lookup("index.html", "Welcome")
	require.NotNil(t, welcome)
	assert.Equal(t, []string{"index.html:html/body/h1", "index.html:html/body/p[2]"}, welcome.References)
	assert.Equal(t, []string{"index.html:html/body/ul/li[2]"}, f.Lookup("index.html", "Two").References)
	assert.Equal(t, []string{"index.html:html/body/div/text()[1]"}, f.Lookup("index.html", "Loose text").References)
	assert.True(t, strings.HasSuffix(f.Lookup("index.html", "Logo").References[0], "@alt"))
}

func TestApply(t *testing.T) {
	catalog := po.NewFile()
	catalog.Entries = []*po.Entry{
		{MsgCtxt: "index.html", MsgID: "Welcome", MsgStr: "Vítejte"},
		{MsgCtxt: "index.html", MsgID: "Translate <b>everything</b> here.", MsgStr: "Přeložte <b>vše</b> zde."},
		{MsgCtxt: "index.html", MsgID: "Logo", MsgStr: "Logo projektu", Flags: []string{"fuzzy"}},
		{MsgCtxt: "index.html", MsgID: "One", MsgStr: "Jedna"},
		{MsgCtxt: "other.html", MsgID: "Two", MsgStr: "Dva"},
	}

	var out bytes.Buffer
	res, err := Apply(&out, strings.NewReader(page), "index.html", catalog)
	require.NoError(t, err)
	assert.Equal(t, ApplyResult{Units: 9, Applied: 4}, res)

	doc, err := goquery.NewDocumentFromReader(&out)
	require.NoError(t, err)
	assert.Equal(t, "Weblate", doc.Find("title").Text())
	assert.Equal(t, "Vítejte", doc.Find("h1").Text())
	assert.Equal(t, "vše", doc.Find("body > p").First().Find("b").Text())
	assert.Equal(t, "Vítejte", doc.Find("body > p").Last().Text())
	alt, _ := doc.Find("img").Attr("alt")
	assert.Equal(t, "Logo", alt, "fuzzy translations are not applied")
	assert.Equal(t, "Jedna", doc.Find("li").First().Text())
	assert.Equal(t, "Two", doc.Find("li").Last().Text())
	assert.Equal(t, `var x = "no";`, doc.Find("script").Text())
}

func TestApplyFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "index.html")
	require.NoError(t, os.WriteFile(src, []byte(page), 0644))

	tmpl, err := ExtractFile(src)
	require.NoError(t, err)
	for _, e := range tmpl.Entries {
		if e.MsgID == "Logo" {
			e.MsgStr = "Logo projektu"
		}
	}
	catalogPath := filepath.Join(dir, "cs", "LC_MESSAGES", "index.po")
	require.NoError(t, tmpl.WriteFile(catalogPath))

	outPath := filepath.Join(dir, "cs", "index.html")
	res, err := ApplyFile(src, catalogPath, outPath)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `alt="Logo projektu"`)
}
