package pofile

import (
	"bytes"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func TestParseWriteRoundTripAndHeaderFields(t *testing.T) {
	input := `# Weblate translations.
msgid ""
msgstr ""
"Project-Id-Version: weblate 4.1\n"
"Report-Msgid-Bugs-To: \n"
"Language: cs\n"

#. Translators: greeting on the dashboard
#: weblate/templates/index.html:12 weblate/views.py:40
msgid "hello"
msgstr "ahoj"

#, fuzzy
#| msgid "old count"
msgid "count"
msgid_plural "counts"
msgstr[0] "jeden"
msgstr[1] "dva"
msgstr[2] "mnoho"

msgctxt "Button"
msgid "Save"
msgstr ""
"Ulo"
"zit\n"
`

	f, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if got := f.HeaderField("language"); got != "cs" {
		t.Fatalf("HeaderField(language) = %q, want cs", got)
	}
	f.SetHeaderField("Report-Msgid-Bugs-To", "https://github.com/WeblateOrg/weblate/issues")
	f.SetHeaderField("Plural-Forms", PluralFormsForLang("cs"))
	if got := f.HeaderField("Report-Msgid-Bugs-To"); got != "https://github.com/WeblateOrg/weblate/issues" {
		t.Fatalf("Report-Msgid-Bugs-To = %q", got)
	}

	if len(f.Entries) != 3 {
		t.Fatalf("entries len = %d, want 3", len(f.Entries))
	}
	hello := f.Lookup("", "hello")
	if hello == nil || len(hello.References) != 2 {
		t.Fatalf("hello entry = %#v, want two references", hello)
	}
	plural := f.Lookup("", "count")
	if plural == nil || plural.PreviousMsgID != "old count" || !plural.IsFuzzy() {
		t.Fatalf("count entry mismatch: %#v", plural)
	}
	save := f.Lookup("Button", "Save")
	if save == nil || save.MsgStr != "Ulozit\n" {
		t.Fatalf("context entry mismatch: %#v", save)
	}
	if f.Lookup("", "Save") != nil {
		t.Fatal("Lookup without context must not match a contextual entry")
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("Write error: %v", err)
	}

	round, err := Parse(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("Parse roundtrip error: %v\n%s", err, buf.String())
	}
	if !reflect.DeepEqual(round.Header.TranslatorComments, []string{"Weblate translations."}) {
		t.Fatalf("header comments = %v", round.Header.TranslatorComments)
	}
	if got := round.Lookup("Button", "Save"); got == nil || got.MsgStr != "Ulozit\n" {
		t.Fatalf("roundtrip context entry mismatch: %#v", got)
	}
	roundPlural := round.Lookup("", "count")
	if !reflect.DeepEqual(roundPlural.MsgStrPlural, map[int]string{0: "jeden", 1: "dva", 2: "mnoho"}) {
		t.Fatalf("roundtrip plural forms = %v", roundPlural.MsgStrPlural)
	}
	if !bytes.Equal(round.Bytes(), buf.Bytes()) {
		t.Fatalf("second write differs:\n%s\n---\n%s", round.Bytes(), buf.Bytes())
	}
}

func TestParseObsoleteEntries(t *testing.T) {
	input := `msgid ""
msgstr "Language: de\n"

#~ msgid "gone"
#~ msgstr "weg"
`
	f, err := Parse(strings.NewReader(input))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if len(f.Entries) != 1 || !f.Entries[0].Obsolete || f.Entries[0].MsgStr != "weg" {
		t.Fatalf("entries = %#v", f.Entries)
	}
	if len(f.Live()) != 0 {
		t.Fatalf("Live() = %d entries, want 0", len(f.Live()))
	}
	if !strings.Contains(string(f.Bytes()), "#~ msgstr \"weg\"") {
		t.Fatalf("obsolete prefix lost:\n%s", f.Bytes())
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse(strings.NewReader("msgid \"a\"\nbogus line\n"))
	if err == nil {
		t.Fatal("expected error for unknown keyword")
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("error %q should name the line", err)
	}
}

func TestStatsCountsMessagesAndWords(t *testing.T) {
	f := NewFile()
	f.Entries = []*Entry{
		{MsgID: "Translated string", MsgStr: "translated"},
		{MsgID: "Draft", MsgStr: "draft", Flags: []string{"fuzzy"}},
		{MsgID: "Nothing here yet", MsgStr: ""},
		{MsgID: "%d file", MsgIDPlural: "%d files", MsgStrPlural: map[int]string{0: "one", 1: "many"}},
		{MsgID: "%d user", MsgIDPlural: "%d users", MsgStrPlural: map[int]string{0: "only one", 1: ""}},
		{MsgID: "old", MsgStr: "x", Obsolete: true},
	}

	got := f.Stats()
	want := Counts{
		Total: 5, Translated: 2, Fuzzy: 1, Untranslated: 2,
		TotalWords: 10, TranslatedWords: 4, FuzzyWords: 1,
	}
	if got != want {
		t.Fatalf("Stats() = %+v, want %+v", got, want)
	}
}

func TestSetFuzzyAndClone(t *testing.T) {
	e := &Entry{MsgID: "a", MsgStr: "b", Flags: []string{"python-format"}, PreviousMsgID: "x"}
	e.SetFuzzy(true)
	if e.Flags[0] != "fuzzy" || e.IsTranslated() || !e.HasTranslation() {
		t.Fatalf("after SetFuzzy(true): %#v", e)
	}

	c := e.Clone()
	c.Flags[1] = "c-format"
	if e.Flags[1] != "python-format" {
		t.Fatal("Clone shares the flag slice")
	}

	e.SetFuzzy(false)
	if e.IsFuzzy() || e.PreviousMsgID != "" || !e.IsTranslated() {
		t.Fatalf("after SetFuzzy(false): %#v", e)
	}
}

func TestWriteFileIsAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "locale", "de", "LC_MESSAGES", "django.po")

	f := NewFile()
	f.Header = MakeHeader(HeaderOptions{
		Project:  "Weblate",
		Language: "de",
		Now:      time.Date(2020, 5, 1, 10, 0, 0, 0, time.UTC),
	})
	f.Entries = append(f.Entries, &Entry{MsgID: "Yes", MsgStr: "Ja"})

	if err := f.WriteFile(path); err != nil {
		t.Fatalf("WriteFile error: %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the catalog in the directory, got %d files", len(entries))
	}

	back, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile error: %v", err)
	}
	if got := back.HeaderField("POT-Creation-Date"); got != "2020-05-01 10:00+0000" {
		t.Fatalf("POT-Creation-Date = %q", got)
	}
	if got := back.HeaderField("Plural-Forms"); got != "nplurals=2; plural=(n != 1);" {
		t.Fatalf("Plural-Forms = %q", got)
	}
}

func TestPluralFormsForLang(t *testing.T) {
	cases := []struct {
		lang string
		want string
	}{
		{lang: "ru", want: "nplurals=3; plural=(n%10==1 && n%100!=11 ? 0 : n%10>=2 && n%10<=4 && (n%100<10 || n%100>=20) ? 1 : 2);"},
		{lang: "pt_BR", want: "nplurals=2; plural=(n > 1);"},
		{lang: "fr", want: "nplurals=2; plural=(n > 1);"},
		{lang: "ja", want: "nplurals=1; plural=0;"},
		{lang: "zz", want: "nplurals=2; plural=(n != 1);"},
	}
	for _, tc := range cases {
		if got := PluralFormsForLang(tc.lang); got != tc.want {
			t.Fatalf("PluralFormsForLang(%q) = %q, want %q", tc.lang, got, tc.want)
		}
	}
}
