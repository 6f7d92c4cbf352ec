package merge

import (
	"os"
	"path/filepath"
	"testing"

	po "github.com/minios-linux/catsync/pofile"
)

func TestMergeKeepNewObsoleteAndHeaderUpdate(t *testing.T) {
	poFile := po.NewFile()
	poFile.Header.MsgStr = "Project-Id-Version: weblate 4\nPOT-Creation-Date: old\nLanguage: cs\n"
	poFile.Entries = []*po.Entry{
		{
			MsgID:      "keep",
			MsgStr:     "keep-translation",
			Flags:      []string{"fuzzy", "c-format"},
			References: []string{"old.py:1"},
		},
		{MsgCtxt: "Button", MsgID: "Save", MsgStr: "Uložit"},
		{MsgID: "obsolete", MsgStr: "obsolete-translation", References: []string{"unused.py:1"}},
		{MsgID: "already-obsolete", MsgStr: "x", Obsolete: true},
	}

	potFile := po.NewFile()
	potFile.Header.MsgStr = "POT-Creation-Date: new\n"
	potFile.Entries = []*po.Entry{
		{
			MsgID:             "keep",
			ExtractedComments: []string{"auto"},
			References:        []string{"new.py:10"},
			Flags:             []string{"python-format"},
		},
		{MsgID: "Save"},
		{MsgCtxt: "Button", MsgID: "Save"},
		{MsgID: "new", MsgIDPlural: "news", Flags: []string{"fuzzy", "python-format"}},
	}

	merged := Merge(poFile, potFile)

	if got := merged.HeaderField("POT-Creation-Date"); got != "new" {
		t.Fatalf("POT-Creation-Date = %q, want new", got)
	}
	if got := merged.HeaderField("Language"); got != "cs" {
		t.Fatalf("Language header lost: got %q", got)
	}
	if len(merged.Entries) != 6 {
		t.Fatalf("entries len = %d, want 6", len(merged.Entries))
	}

	keep := merged.Entries[0]
	if keep.MsgStr != "keep-translation" || !keep.IsFuzzy() || !keep.HasFlag("python-format") {
		t.Fatalf("keep entry = %#v", keep)
	}
	if keep.HasFlag("c-format") {
		t.Fatal("format flags should come from the template")
	}
	if len(keep.References) != 1 || keep.References[0] != "new.py:10" {
		t.Fatalf("keep references = %v, want [new.py:10]", keep.References)
	}

	if plain := merged.Entries[1]; plain.MsgCtxt != "" || plain.MsgStr != "" {
		t.Fatalf("context-less Save must not take the Button translation: %#v", plain)
	}
	if button := merged.Entries[2]; button.MsgCtxt != "Button" || button.MsgStr != "Uložit" {
		t.Fatalf("Button Save = %#v", button)
	}

	newEntry := merged.Entries[3]
	if newEntry.MsgID != "new" || newEntry.IsFuzzy() || newEntry.MsgStrPlural == nil {
		t.Fatalf("new entry = %#v", newEntry)
	}

	obsolete := merged.Entries[4]
	if obsolete.MsgID != "obsolete" || !obsolete.Obsolete || obsolete.References != nil {
		t.Fatalf("obsolete entry = %#v", obsolete)
	}
	if poFile.Entries[2].Obsolete {
		t.Fatal("Merge must not mutate the input catalog")
	}
	if merged.Entries[5].MsgID != "already-obsolete" {
		t.Fatalf("already obsolete entry should be kept last, got %q", merged.Entries[5].MsgID)
	}
}

func TestMergeFlagsKeepsFuzzyFirst(t *testing.T) {
	flags := mergeFlags([]string{"fuzzy", "c-format"}, []string{"python-format", "no-wrap"})
	want := []string{"fuzzy", "no-wrap", "python-format"}
	if len(flags) != len(want) {
		t.Fatalf("flags = %v, want %v", flags, want)
	}
	for i := range want {
		if flags[i] != want[i] {
			t.Fatalf("flags = %v, want %v", flags, want)
		}
	}
}

func TestFallbackUseFirst(t *testing.T) {
	catalog := po.NewFile()
	catalog.Header.MsgStr = "Language: de\n"
	catalog.Entries = []*po.Entry{
		{MsgID: "Czech", MsgStr: ""},
		{MsgID: "English", MsgStr: "Englisch"},
		{MsgID: "Draft", MsgStr: "Entwurf?", Flags: []string{"fuzzy"}},
		{MsgID: "Retired", MsgStr: "Ausgemustert", Obsolete: true},
	}

	first := po.NewFile()
	first.Header.MsgStr = "Language: de-first\n"
	first.Entries = []*po.Entry{
		{MsgID: "Czech", MsgStr: "Tschechisch"},
		{MsgID: "English", MsgStr: "Anglais"},
		{MsgID: "Draft", MsgStr: "Entwurf"},
		{MsgID: "Welsh", MsgStr: "Walisisch"},
		{MsgID: "Retired", MsgStr: "Im Ruhestand"},
	}
	second := po.NewFile()
	second.Entries = []*po.Entry{
		{MsgID: "Czech", MsgStr: "Böhmisch"},
		{MsgID: "Welsh", MsgStr: "Kymrisch"},
		{MsgID: "Gone", MsgStr: "Weg", Obsolete: true},
	}

	merged, res := Fallback(catalog, first, second)

	if res.Filled != 2 || res.Appended != 1 {
		t.Fatalf("result = %+v, want Filled=2 Appended=1", res)
	}
	if merged.HeaderField("Language") != "de" {
		t.Fatal("catalog header must be kept")
	}
	checks := map[string]string{
		"Czech":   "Tschechisch",
		"English": "Englisch",
		"Draft":   "Entwurf",
		"Welsh":   "Walisisch",
	}
	for id, want := range checks {
		e := merged.Lookup("", id)
		if e == nil || e.MsgStr != want || e.IsFuzzy() {
			t.Fatalf("%s = %#v, want %q", id, e, want)
		}
	}
	if merged.Lookup("", "Gone") != nil {
		t.Fatal("obsolete fallback entries must be ignored")
	}
	if merged.Lookup("", "Retired") != nil {
		t.Fatal("messages obsolete in the catalog must stay obsolete")
	}
	n := 0
	for _, e := range merged.Entries {
		if e.MsgID == "Retired" {
			n++
		}
	}
	if n != 1 {
		t.Fatalf("Retired appears %d times, want 1", n)
	}
	if catalog.Lookup("", "Czech").MsgStr != "" {
		t.Fatal("Fallback must not mutate its input")
	}
}

func TestFallbackLocales(t *testing.T) {
	root := t.TempDir()
	localeDir := filepath.Join(root, "locale")
	fbA := filepath.Join(root, "fallback-a")
	fbB := filepath.Join(root, "fallback-b")

	writeCatalog(t, CatalogPath(localeDir, "pt_BR", "django"), &po.Entry{MsgID: "Czech"})
	writeCatalog(t, CatalogPath(localeDir, "de", "django"), &po.Entry{MsgID: "Czech", MsgStr: "Tschechisch"})
	writeCatalog(t, CatalogPath(localeDir, "fi", "django"), &po.Entry{MsgID: "Czech"})
	writeCatalog(t, CatalogPath(localeDir, "cs", "djangojs"), &po.Entry{MsgID: "Czech"})

	writeCatalog(t, filepath.Join(fbA, "pt-BR.po"), &po.Entry{MsgID: "Czech", MsgStr: "Tcheco"})
	writeCatalog(t, filepath.Join(fbB, "de.po"), &po.Entry{MsgID: "Czech", MsgStr: "Böhmisch"})

	before, err := os.ReadFile(CatalogPath(localeDir, "de", "django"))
	if err != nil {
		t.Fatal(err)
	}

	changes, err := FallbackLocales(localeDir, "django", []string{fbA, fbB, filepath.Join(root, "missing")})
	if err != nil {
		t.Fatalf("FallbackLocales error: %v", err)
	}
	if len(changes) != 1 || changes[0].Lang != "pt_BR" || changes[0].Filled != 1 {
		t.Fatalf("changes = %+v, want only pt_BR filled", changes)
	}

	pt, err := po.ParseFile(CatalogPath(localeDir, "pt_BR", "django"))
	if err != nil {
		t.Fatal(err)
	}
	if pt.Lookup("", "Czech").MsgStr != "Tcheco" {
		t.Fatalf("pt_BR Czech = %q", pt.Lookup("", "Czech").MsgStr)
	}

	after, err := os.ReadFile(CatalogPath(localeDir, "de", "django"))
	if err != nil {
		t.Fatal(err)
	}
	if string(before) != string(after) {
		t.Fatal("unchanged catalogs must not be rewritten")
	}
}

func writeCatalog(t *testing.T, path string, entries ...*po.Entry) {
	t.Helper()
	f := po.NewFile()
	f.Header.MsgStr = "Content-Type: text/plain; charset=UTF-8\n"
	f.Entries = entries
	if err := f.WriteFile(path); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
}
