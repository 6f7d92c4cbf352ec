// Package extract regenerates catalogs: it runs the configured generator
// commands or the builtin xgettext generator to produce templates, then
// updates every locale catalog from its template.
package extract

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/minios-linux/catsync/command"
	"github.com/minios-linux/catsync/config"
	"github.com/minios-linux/catsync/merge"
	po "github.com/minios-linux/catsync/pofile"
)

// SupportedExtensions maps file extensions to xgettext language names.
// Go files are handled by the builtin Go extractor.
var SupportedExtensions = map[string]string{
	".py":   "Python",
	".c":    "C",
	".h":    "C",
	".cc":   "C++",
	".cpp":  "C++",
	".sh":   "Shell",
	".bash": "Shell",
	".js":   "JavaScript",
	".jsx":  "JavaScript",
	".ts":   "JavaScript",
	".tsx":  "JavaScript",
	".pl":   "Perl",
	".php":  "PHP",
	".java": "Java",
	".cs":   "C#",
	".rb":   "Ruby",
	".lua":  "Lua",
	".vala": "Vala",
	".go":   "Go",
}

var skipDirs = map[string]bool{
	".git":         true,
	"node_modules": true,
	"__pycache__":  true,
	".tox":         true,
	".venv":        true,
	"venv":         true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
}

// shebangLanguages maps interpreters to xgettext languages for scripts
// without an extension.
var shebangLanguages = map[string]string{
	"sh":      "Shell",
	"bash":    "Shell",
	"dash":    "Shell",
	"python":  "Python",
	"python3": "Python",
	"perl":    "Perl",
	"ruby":    "Ruby",
}

// detectShebang returns the xgettext language of a script's interpreter,
// or "" when the file has no recognised shebang.
func detectShebang(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && line == "" {
		return ""
	}
	if !strings.HasPrefix(line, "#!") {
		return ""
	}
	fields := strings.Fields(strings.TrimPrefix(line, "#!"))
	if len(fields) == 0 {
		return ""
	}
	interp := filepath.Base(fields[0])
	if interp == "env" && len(fields) > 1 {
		interp = fields[1]
	}
	return shebangLanguages[interp]
}

// Language returns the xgettext language of a source file, or "".
func Language(path string) string {
	if lang, ok := SupportedExtensions[filepath.Ext(path)]; ok {
		return lang
	}
	if filepath.Ext(path) == "" {
		return detectShebang(path)
	}
	return ""
}

// FindSources expands patterns relative to root into the sorted list of
// source files. A pattern naming a directory is scanned recursively;
// anything else is a glob. Go test files are skipped.
func FindSources(root string, patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(path string) {
		if !seen[path] && Language(path) != "" && !strings.HasSuffix(path, "_test.go") {
			seen[path] = true
			files = append(files, path)
		}
	}

	for _, pattern := range patterns {
		matches, err := filepath.Glob(filepath.Join(root, pattern))
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", pattern, err)
		}
		for _, m := range matches {
			info, err := os.Stat(m)
			if err != nil {
				continue
			}
			if !info.IsDir() {
				add(m)
				continue
			}
			err = filepath.WalkDir(m, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return nil
				}
				if d.IsDir() {
					if skipDirs[d.Name()] {
						return filepath.SkipDir
					}
					return nil
				}
				add(path)
				return nil
			})
			if err != nil {
				return nil, fmt.Errorf("scanning %s: %w", m, err)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// FilesByLanguage groups source files by their language.
func FilesByLanguage(files []string) map[string][]string {
	result := make(map[string][]string)
	for _, f := range files {
		if lang := Language(f); lang != "" {
			result[lang] = append(result[lang], f)
		}
	}
	return result
}

// DescribeFiles returns a summary such as "2 Go, 1 Python".
func DescribeFiles(files []string) string {
	byLang := FilesByLanguage(files)
	langs := make([]string, 0, len(byLang))
	for lang := range byLang {
		langs = append(langs, lang)
	}
	sort.Strings(langs)
	parts := make([]string, 0, len(langs))
	for _, lang := range langs {
		parts = append(parts, fmt.Sprintf("%d %s", len(byLang[lang]), lang))
	}
	return strings.Join(parts, ", ")
}

// Generator produces templates and updates catalogs for one config root.
type Generator struct {
	Root   string
	Runner command.Runner
	// Xgettext is the xgettext program (default "xgettext").
	Xgettext string
}

// New returns a generator rooted at root.
func New(root string, runner command.Runner) *Generator {
	return &Generator{Root: root, Runner: runner, Xgettext: "xgettext"}
}

// RunCommands runs the generator commands in order.
func (g *Generator) RunCommands(ctx context.Context, cmds []config.Generator) error {
	for _, c := range cmds {
		log.Info().Str("generator", c.Name).Msg("running generator")
		_, err := g.Runner.Run(ctx, command.Cmd{
			Dir:  filepath.Join(g.Root, c.Dir),
			Name: c.Command[0],
			Args: c.Command[1:],
		})
		if err != nil {
			return fmt.Errorf("generator %s: %w", c.Name, err)
		}
	}
	return nil
}

// Result describes a generated template.
type Result struct {
	SourceFiles []string
	Template    string
	Messages    int
}

// Template extracts the messages of the configured sources into the
// template at path. Go sources go through the builtin extractor and the
// rest through xgettext; both sets are combined in one template.
func (g *Generator) Template(ctx context.Context, x *config.Xgettext, domain, path string) (*Result, error) {
	files, err := FindSources(g.Root, x.Sources)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.New("no source files to extract from")
	}
	log.Info().Str("domain", domain).Str("files", DescribeFiles(files)).Msg("extracting messages")

	var goFiles, otherFiles []string
	for _, f := range files {
		if filepath.Ext(f) == ".go" {
			goFiles = append(goFiles, f)
		} else {
			otherFiles = append(otherFiles, f)
		}
	}

	tmpl := po.NewFile()
	if len(otherFiles) > 0 {
		extracted, err := g.runXgettext(ctx, x, otherFiles)
		if err != nil {
			return nil, err
		}
		tmpl.Entries = append(tmpl.Entries, extracted.Entries...)
	}
	if len(goFiles) > 0 {
		extracted, err := ExtractGo(g.Root, goFiles, x.Keywords)
		if err != nil {
			return nil, err
		}
		index := tmpl.Index()
		for _, e := range extracted.Entries {
			if old, ok := index[e.Key()]; ok {
				old.References = append(old.References, e.References...)
				continue
			}
			tmpl.Entries = append(tmpl.Entries, e)
		}
	}

	tmpl.Header = po.MakeHeader(po.HeaderOptions{
		Project:         x.Package,
		Version:         x.Version,
		BugsAddress:     x.BugsAddress,
		CopyrightHolder: x.CopyrightHolder,
	})
	tmpl.Header.Flags = []string{"fuzzy"}
	if err := tmpl.WriteFile(path); err != nil {
		return nil, err
	}
	return &Result{SourceFiles: files, Template: path, Messages: len(tmpl.Entries)}, nil
}

// runXgettext runs xgettext over files and parses its output. A run that
// finds no messages yields an empty catalog.
func (g *Generator) runXgettext(ctx context.Context, x *config.Xgettext, files []string) (*po.File, error) {
	tmp, err := os.MkdirTemp("", "catsync-xgettext-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(tmp)

	var list bytes.Buffer
	for _, f := range files {
		rel, err := filepath.Rel(g.Root, f)
		if err != nil {
			rel = f
		}
		fmt.Fprintln(&list, rel)
	}
	listPath := filepath.Join(tmp, "files.txt")
	if err := os.WriteFile(listPath, list.Bytes(), 0644); err != nil {
		return nil, err
	}

	out := filepath.Join(tmp, "messages.pot")
	args := []string{
		"--output=" + out,
		"--from-code=UTF-8",
		"--add-comments=TRANSLATORS:",
		"--sort-by-file",
		"--files-from=" + listPath,
	}
	for _, kw := range x.Keywords {
		args = append(args, "--keyword="+kw)
	}
	if x.Package != "" {
		args = append(args, "--package-name="+x.Package)
	}
	if x.Version != "" {
		args = append(args, "--package-version="+x.Version)
	}
	if x.BugsAddress != "" {
		args = append(args, "--msgid-bugs-address="+x.BugsAddress)
	}

	if _, err := g.Runner.Run(ctx, command.Cmd{Dir: g.Root, Name: g.Xgettext, Args: args}); err != nil {
		return nil, fmt.Errorf("xgettext: %w", err)
	}

	f, err := po.ParseFile(out)
	if errors.Is(err, fs.ErrNotExist) {
		return po.NewFile(), nil
	}
	return f, err
}

// CatalogUpdate is the outcome of UpdateCatalogs for one language.
type CatalogUpdate struct {
	Lang    string
	Path    string
	Created bool
	Changed bool
}

// UpdateCatalogs merges the template into the catalog of every language,
// creating missing catalogs with a fresh header. Catalogs are written only
// when their content changes.
func UpdateCatalogs(rc config.ResolvedComponent, langs []string) ([]CatalogUpdate, error) {
	tmpl, err := po.ParseFile(rc.Template)
	if err != nil {
		return nil, fmt.Errorf("reading template: %w", err)
	}

	var updates []CatalogUpdate
	for _, lang := range langs {
		path := rc.CatalogPath(lang)
		u := CatalogUpdate{Lang: lang, Path: path}

		old, err := os.ReadFile(path)
		var catalog *po.File
		switch {
		case errors.Is(err, fs.ErrNotExist):
			catalog = po.NewFile()
			catalog.Header = po.MakeHeader(po.HeaderOptions{
				Project:  tmpl.HeaderField("Project-Id-Version"),
				Language: lang,
			})
			if bugs := tmpl.HeaderField("Report-Msgid-Bugs-To"); bugs != "" {
				catalog.SetHeaderField("Report-Msgid-Bugs-To", bugs)
			}
			u.Created = true
		case err != nil:
			return nil, err
		default:
			if catalog, err = po.Parse(bytes.NewReader(old)); err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}

		merged := merge.Merge(catalog, tmpl)
		data := merged.Bytes()
		if u.Created || !bytes.Equal(data, old) {
			if err := po.WriteFileAtomic(path, data); err != nil {
				return nil, err
			}
			u.Changed = true
			log.Debug().Str("lang", lang).Str("path", path).Bool("created", u.Created).Msg("catalog updated")
		}
		updates = append(updates, u)
	}
	return updates, nil
}
