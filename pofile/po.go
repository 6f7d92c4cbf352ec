// Package pofile reads and writes gettext PO/POT message catalogs.
package pofile

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Entry is a single message of a catalog.
type Entry struct {
	// TranslatorComments are "# " lines.
	TranslatorComments []string
	// ExtractedComments are "#." lines written by the generator.
	ExtractedComments []string
	// References are "#:" source locations.
	References []string
	// Flags are "#," flags such as fuzzy or python-format.
	Flags []string
	// PreviousMsgID is the "#| msgid" of a fuzzy match.
	PreviousMsgID string

	MsgCtxt      string
	MsgID        string
	MsgIDPlural  string
	MsgStr       string
	MsgStrPlural map[int]string

	// Obsolete marks "#~" entries.
	Obsolete bool
}

// Key identifies an entry inside a catalog: context and msgid joined by EOT,
// the same separator compiled .mo files use.
func Key(msgctxt, msgid string) string {
	if msgctxt == "" {
		return msgid
	}
	return msgctxt + "\x04" + msgid
}

// Key returns the lookup key of the entry.
func (e *Entry) Key() string {
	return Key(e.MsgCtxt, e.MsgID)
}

// IsHeader reports whether the entry is the catalog header.
func (e *Entry) IsHeader() bool {
	return e.MsgID == "" && e.MsgCtxt == "" && !e.Obsolete
}

// IsTranslated reports whether every form has a translation and the entry is
// not fuzzy.
func (e *Entry) IsTranslated() bool {
	if e.MsgID == "" || e.IsFuzzy() {
		return false
	}
	return e.HasTranslation()
}

// HasTranslation reports whether the translation is filled in, regardless
// of the fuzzy flag.
func (e *Entry) HasTranslation() bool {
	if e.MsgIDPlural != "" {
		if len(e.MsgStrPlural) == 0 {
			return false
		}
		for _, v := range e.MsgStrPlural {
			if v == "" {
				return false
			}
		}
		return true
	}
	return e.MsgStr != ""
}

// Translations returns the translated forms in plural index order.
func (e *Entry) Translations() []string {
	if e.MsgIDPlural == "" {
		return []string{e.MsgStr}
	}
	idx := make([]int, 0, len(e.MsgStrPlural))
	for i := range e.MsgStrPlural {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	out := make([]string, 0, len(idx))
	for _, i := range idx {
		out = append(out, e.MsgStrPlural[i])
	}
	return out
}

// IsFuzzy reports whether the entry carries the fuzzy flag.
func (e *Entry) IsFuzzy() bool {
	return e.HasFlag("fuzzy")
}

// SetFuzzy adds or removes the fuzzy flag.
func (e *Entry) SetFuzzy(fuzzy bool) {
	if fuzzy {
		if !e.IsFuzzy() {
			e.Flags = append([]string{"fuzzy"}, e.Flags...)
		}
		return
	}
	kept := e.Flags[:0:0]
	for _, f := range e.Flags {
		if f != "fuzzy" {
			kept = append(kept, f)
		}
	}
	e.Flags = kept
	e.PreviousMsgID = ""
}

// HasFlag reports whether flag is set on the entry.
func (e *Entry) HasFlag(flag string) bool {
	for _, f := range e.Flags {
		if f == flag {
			return true
		}
	}
	return false
}

// Words returns the number of source words of the entry.
func (e *Entry) Words() int {
	return len(strings.Fields(e.MsgID))
}

// Clone returns a deep copy of the entry.
func (e *Entry) Clone() *Entry {
	c := *e
	c.TranslatorComments = append([]string(nil), e.TranslatorComments...)
	c.ExtractedComments = append([]string(nil), e.ExtractedComments...)
	c.References = append([]string(nil), e.References...)
	c.Flags = append([]string(nil), e.Flags...)
	c.MsgStrPlural = make(map[int]string, len(e.MsgStrPlural))
	for k, v := range e.MsgStrPlural {
		c.MsgStrPlural[k] = v
	}
	return &c
}

// File is a parsed catalog.
type File struct {
	Header  *Entry
	Entries []*Entry
}

// NewFile returns an empty catalog with an empty header.
func NewFile() *File {
	return &File{
		Header:  &Entry{},
		Entries: make([]*Entry, 0),
	}
}

// HeaderField returns the value of a header field, matched case-insensitively.
func (f *File) HeaderField(name string) string {
	if f.Header == nil {
		return ""
	}
	for _, line := range strings.Split(f.Header.MsgStr, "\n") {
		if key, value, ok := strings.Cut(line, ":"); ok && strings.EqualFold(strings.TrimSpace(key), name) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// SetHeaderField replaces a header field or appends it when missing.
func (f *File) SetHeaderField(name, value string) {
	if f.Header == nil {
		f.Header = &Entry{}
	}

	lines := strings.Split(f.Header.MsgStr, "\n")
	for i, line := range lines {
		if key, _, ok := strings.Cut(line, ":"); ok && strings.EqualFold(strings.TrimSpace(key), name) {
			lines[i] = name + ": " + value
			f.Header.MsgStr = strings.Join(lines, "\n")
			return
		}
	}
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = append(lines[:n-1], name+": "+value, "")
	} else {
		lines = append(lines, name+": "+value)
	}
	f.Header.MsgStr = strings.Join(lines, "\n")
}

// Lookup finds a live entry by context and msgid.
func (f *File) Lookup(msgctxt, msgid string) *Entry {
	key := Key(msgctxt, msgid)
	for _, e := range f.Entries {
		if !e.Obsolete && e.Key() == key {
			return e
		}
	}
	return nil
}

// Index maps keys of live entries to entries.
func (f *File) Index() map[string]*Entry {
	idx := make(map[string]*Entry, len(f.Entries))
	for _, e := range f.Entries {
		if e.Obsolete || e.MsgID == "" {
			continue
		}
		if _, dup := idx[e.Key()]; !dup {
			idx[e.Key()] = e
		}
	}
	return idx
}

// Live returns entries that are neither obsolete nor the header.
func (f *File) Live() []*Entry {
	out := make([]*Entry, 0, len(f.Entries))
	for _, e := range f.Entries {
		if e.MsgID == "" || e.Obsolete {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Counts holds message and word counts of a catalog.
type Counts struct {
	Total           int
	Translated      int
	Fuzzy           int
	Untranslated    int
	TotalWords      int
	TranslatedWords int
	FuzzyWords      int
}

// Stats counts live entries by state.
func (f *File) Stats() Counts {
	var c Counts
	for _, e := range f.Live() {
		w := e.Words()
		c.Total++
		c.TotalWords += w
		switch {
		case e.IsFuzzy():
			c.Fuzzy++
			c.FuzzyWords += w
		case e.IsTranslated():
			c.Translated++
			c.TranslatedWords += w
		default:
			c.Untranslated++
		}
	}
	return c
}

// Clone returns a deep copy of the catalog.
func (f *File) Clone() *File {
	c := &File{Entries: make([]*Entry, 0, len(f.Entries))}
	if f.Header != nil {
		c.Header = f.Header.Clone()
	}
	for _, e := range f.Entries {
		c.Entries = append(c.Entries, e.Clone())
	}
	return c
}

// Parse reads a catalog.
func Parse(r io.Reader) (*File, error) {
	f := NewFile()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var (
		cur     *Entry
		field   string
		plural  int
		lineNum int
	)

	flush := func() {
		if cur == nil {
			return
		}
		if cur.IsHeader() {
			f.Header = cur
		} else {
			f.Entries = append(f.Entries, cur)
		}
		cur = nil
		field = ""
	}

	for scanner.Scan() {
		lineNum++
		line := strings.TrimRight(scanner.Text(), "\r")
		if lineNum == 1 {
			line = strings.TrimPrefix(line, "\ufeff")
		}

		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if cur == nil {
			cur = &Entry{MsgStrPlural: make(map[int]string)}
		}

		if strings.HasPrefix(line, "#~") {
			cur.Obsolete = true
			line = strings.TrimLeft(line[2:], " ")
			if strings.HasPrefix(line, "|") {
				line = "#" + line
			}
		}

		if strings.HasPrefix(line, "#") {
			parseComment(cur, line)
			continue
		}

		keyword, rest, _ := strings.Cut(line, " ")
		switch {
		case keyword == "msgctxt":
			cur.MsgCtxt, field = unquote(rest), "msgctxt"
		case keyword == "msgid":
			cur.MsgID, field = unquote(rest), "msgid"
		case keyword == "msgid_plural":
			cur.MsgIDPlural, field = unquote(rest), "msgid_plural"
		case keyword == "msgstr":
			cur.MsgStr, field = unquote(rest), "msgstr"
		case strings.HasPrefix(keyword, "msgstr[") && strings.HasSuffix(keyword, "]"):
			n, err := strconv.Atoi(keyword[len("msgstr[") : len(keyword)-1])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("line %d: invalid plural index in %q", lineNum, keyword)
			}
			plural, field = n, "msgstr[]"
			cur.MsgStrPlural[n] = unquote(rest)
		case strings.HasPrefix(line, `"`):
			val := unquote(line)
			switch field {
			case "msgctxt":
				cur.MsgCtxt += val
			case "msgid":
				cur.MsgID += val
			case "msgid_plural":
				cur.MsgIDPlural += val
			case "msgstr":
				cur.MsgStr += val
			case "msgstr[]":
				cur.MsgStrPlural[plural] += val
			default:
				return nil, fmt.Errorf("line %d: continuation without keyword", lineNum)
			}
		default:
			return nil, fmt.Errorf("line %d: unexpected %q", lineNum, line)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return f, nil
}

func parseComment(e *Entry, line string) {
	switch {
	case strings.HasPrefix(line, "#:"):
		e.References = append(e.References, strings.Fields(line[2:])...)
	case strings.HasPrefix(line, "#,"):
		for _, flag := range strings.Split(line[2:], ",") {
			if flag = strings.TrimSpace(flag); flag != "" && !e.HasFlag(flag) {
				e.Flags = append(e.Flags, flag)
			}
		}
	case strings.HasPrefix(line, "#."):
		e.ExtractedComments = append(e.ExtractedComments, strings.TrimSpace(line[2:]))
	case strings.HasPrefix(line, "#|"):
		prev := strings.TrimSpace(line[2:])
		if rest, ok := strings.CutPrefix(prev, "msgid "); ok {
			e.PreviousMsgID = unquote(rest)
		} else if strings.HasPrefix(prev, `"`) {
			e.PreviousMsgID += unquote(prev)
		}
	default:
		e.TranslatorComments = append(e.TranslatorComments, strings.TrimPrefix(line[1:], " "))
	}
}

// ParseFile reads a catalog from disk.
func ParseFile(path string) (*File, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	f, err := Parse(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Write serializes the catalog.
func (f *File) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)

	first := true
	if f.Header != nil {
		writeEntry(bw, f.Header)
		first = false
	}
	for _, e := range f.Entries {
		if !first {
			bw.WriteByte('\n')
		}
		first = false
		writeEntry(bw, e)
	}
	return bw.Flush()
}

// Bytes returns the serialized catalog.
func (f *File) Bytes() []byte {
	var buf bytes.Buffer
	_ = f.Write(&buf)
	return buf.Bytes()
}

// WriteFile writes the catalog through a temporary file in the same
// directory and renames it over path.
func (f *File) WriteFile(path string) error {
	return WriteFileAtomic(path, f.Bytes())
}

// WriteFileAtomic replaces path with data via rename.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func writeEntry(w *bufio.Writer, e *Entry) {
	prefix := ""
	if e.Obsolete {
		prefix = "#~ "
	}

	for _, c := range e.TranslatorComments {
		if c == "" {
			w.WriteString("#\n")
			continue
		}
		fmt.Fprintf(w, "# %s\n", c)
	}
	for _, c := range e.ExtractedComments {
		fmt.Fprintf(w, "#. %s\n", c)
	}
	if len(e.References) > 0 {
		fmt.Fprintf(w, "#: %s\n", strings.Join(e.References, " "))
	}
	if len(e.Flags) > 0 {
		fmt.Fprintf(w, "#, %s\n", strings.Join(e.Flags, ", "))
	}
	if e.PreviousMsgID != "" {
		if e.Obsolete {
			fmt.Fprintf(w, "#~| msgid %s\n", quote(e.PreviousMsgID))
		} else {
			fmt.Fprintf(w, "#| msgid %s\n", quote(e.PreviousMsgID))
		}
	}

	if e.MsgCtxt != "" {
		writeField(w, prefix+"msgctxt", e.MsgCtxt)
	}
	writeField(w, prefix+"msgid", e.MsgID)
	if e.MsgIDPlural != "" {
		writeField(w, prefix+"msgid_plural", e.MsgIDPlural)
		forms := e.Translations()
		if len(forms) == 0 {
			forms = []string{"", ""}
		}
		for i, s := range forms {
			writeField(w, fmt.Sprintf("%smsgstr[%d]", prefix, i), s)
		}
		return
	}
	writeField(w, prefix+"msgstr", e.MsgStr)
}

// writeField wraps multi-line values the way msgmerge does: an empty first
// line followed by one quoted line per "\n".
func writeField(w *bufio.Writer, field, value string) {
	if !strings.Contains(value, "\n") || value == "\n" {
		fmt.Fprintf(w, "%s %s\n", field, quote(value))
		return
	}

	prefix := ""
	if strings.HasPrefix(field, "#~ ") {
		prefix = "#~ "
	}
	fmt.Fprintf(w, "%s \"\"\n", field)
	parts := strings.SplitAfter(value, "\n")
	for _, part := range parts {
		if part != "" {
			fmt.Fprintf(w, "%s%s\n", prefix, quote(part))
		}
	}
}

func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\t':
			b.WriteString(`\t`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func unquote(s string) string {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return s
	}
	s = s[1 : len(s)-1]

	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			b.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case '\\', '"':
			b.WriteByte(s[i])
		default:
			b.WriteByte('\\')
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// HeaderOptions describes the fields of a freshly created catalog header.
type HeaderOptions struct {
	Project         string
	Version         string
	BugsAddress     string
	CopyrightHolder string
	Language        string
	Now             time.Time
}

// MakeHeader builds a standard catalog header.
func MakeHeader(opts HeaderOptions) *Entry {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	stamp := now.UTC().Format("2006-01-02 15:04-0700")

	project := strings.TrimSpace(opts.Project + " " + opts.Version)
	msgstr := "Project-Id-Version: " + project + "\n" +
		"Report-Msgid-Bugs-To: " + opts.BugsAddress + "\n" +
		"POT-Creation-Date: " + stamp + "\n" +
		"PO-Revision-Date: " + stamp + "\n" +
		"Last-Translator: \n" +
		"Language-Team: \n" +
		"Language: " + opts.Language + "\n" +
		"MIME-Version: 1.0\n" +
		"Content-Type: text/plain; charset=UTF-8\n" +
		"Content-Transfer-Encoding: 8bit\n"
	if opts.Language != "" {
		msgstr += "Plural-Forms: " + PluralFormsForLang(opts.Language) + "\n"
	}

	return &Entry{
		TranslatorComments: []string{
			fmt.Sprintf("Translations for %s.", opts.Project),
			fmt.Sprintf("Copyright (C) %d %s", now.Year(), opts.CopyrightHolder),
			fmt.Sprintf("This file is distributed under the same license as the %s package.", opts.Project),
		},
		MsgStr:       msgstr,
		MsgStrPlural: map[int]string{},
	}
}

// PluralFormsForLang returns the Plural-Forms header for a language code.
func PluralFormsForLang(lang string) string {
	base, _, _ := strings.Cut(strings.ReplaceAll(lang, "-", "_"), "_")

	switch strings.ToLower(base) {
	case "ja", "ko", "zh", "vi", "th", "id", "ms", "km", "lo", "my":
		return "nplurals=1; plural=0;"
	case "fr", "pt", "tr", "uz":
		if base == "pt" && (strings.HasSuffix(lang, "PT") || strings.HasSuffix(lang, "pt")) {
			return "nplurals=2; plural=(n != 1);"
		}
		return "nplurals=2; plural=(n > 1);"
	case "ru", "uk", "be", "hr", "sr", "bs":
		return "nplurals=3; plural=(n%10==1 && n%100!=11 ? 0 : n%10>=2 && n%10<=4 && (n%100<10 || n%100>=20) ? 1 : 2);"
	case "pl":
		return "nplurals=3; plural=(n==1 ? 0 : n%10>=2 && n%10<=4 && (n%100<10 || n%100>=20) ? 1 : 2);"
	case "cs", "sk":
		return "nplurals=3; plural=(n==1 ? 0 : n>=2 && n<=4 ? 1 : 2);"
	case "ro":
		return "nplurals=3; plural=(n==1 ? 0 : (n==0 || (n%100 > 0 && n%100 < 20)) ? 1 : 2);"
	case "lt":
		return "nplurals=3; plural=(n%10==1 && n%100!=11 ? 0 : n%10>=2 && (n%100<10 || n%100>=20) ? 1 : 2);"
	case "lv":
		return "nplurals=3; plural=(n%10==1 && n%100!=11 ? 0 : n != 0 ? 1 : 2);"
	case "sl":
		return "nplurals=4; plural=(n%100==1 ? 0 : n%100==2 ? 1 : n%100==3 || n%100==4 ? 2 : 3);"
	case "ga":
		return "nplurals=5; plural=(n==1 ? 0 : n==2 ? 1 : n<7 ? 2 : n<11 ? 3 : 4);"
	case "ar":
		return "nplurals=6; plural=(n==0 ? 0 : n==1 ? 1 : n==2 ? 2 : n%100>=3 && n%100<=10 ? 3 : n%100>=11 ? 4 : 5);"
	default:
		return "nplurals=2; plural=(n != 1);"
	}
}
