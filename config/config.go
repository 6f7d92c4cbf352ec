// Package config loads .catsync.yaml, the description of the projects,
// components and tools a sync works with.
//
// The file is the sole source of truth for components. Only the language
// list of a component may be left out, in which case it is detected from
// the catalogs already present in its locale directory.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/minios-linux/catsync/merge"
	"github.com/minios-linux/catsync/stats"
	"github.com/minios-linux/catsync/substitute"
)

// FileName is the config file looked up in the project root.
const FileName = ".catsync.yaml"

// ErrNotFound is returned by Find when no config file exists in the start
// directory or any of its parents.
var ErrNotFound = errors.New("no " + FileName + " found")

// Component types.
const (
	TypeGettext = "gettext"
	TypeHTML    = "html"
)

// Config is the top-level .catsync.yaml structure.
type Config struct {
	Platform      Platform          `yaml:"platform"`
	VCS           VCS               `yaml:"vcs"`
	Generate      Generate          `yaml:"generate"`
	Substitutions []substitute.Rule `yaml:"substitutions,omitempty"`
	Projects      []Project         `yaml:"projects"`
	Report        Report            `yaml:"report"`
	Log           Log               `yaml:"log"`

	// Root is the absolute directory containing the config file.
	Root string `yaml:"-"`
}

// Platform configures the translation platform client.
type Platform struct {
	// Client is the platform CLI program (default "wlc").
	Client string `yaml:"client,omitempty"`
	URL    string `yaml:"url,omitempty"`
	// Project is the platform project slug used for whole-project
	// operations such as locking.
	Project string   `yaml:"project,omitempty"`
	Args    []string `yaml:"args,omitempty"`
}

// VCS configures the version control client.
type VCS struct {
	Client string `yaml:"client,omitempty"`
	Remote string `yaml:"remote,omitempty"`
	Branch string `yaml:"branch,omitempty"`
	// CommitMessage is a text/template executed with .Date, .Languages and
	// .Components.
	CommitMessage string `yaml:"commit_message,omitempty"`
	Push          *bool  `yaml:"push,omitempty"`
}

// PushEnabled reports whether commits are pushed (default true).
func (v VCS) PushEnabled() bool {
	return v.Push == nil || *v.Push
}

// Generate lists how catalogs are produced from the sources.
type Generate struct {
	Commands []Generator `yaml:"commands,omitempty"`
	Xgettext *Xgettext   `yaml:"xgettext,omitempty"`
}

// Generator is an external command that regenerates catalogs, such as
// "./manage.py makemessages --keep-pot -a".
type Generator struct {
	Name    string   `yaml:"name"`
	Command []string `yaml:"command"`
	// Dir is relative to the config root (default ".").
	Dir string `yaml:"dir,omitempty"`
}

// Xgettext configures the builtin xgettext generator.
type Xgettext struct {
	Sources  []string `yaml:"sources"`
	Keywords []string `yaml:"keywords,omitempty"`
	// Package and Version go into the template header; they default to the
	// values of debian/changelog when present.
	Package         string `yaml:"package,omitempty"`
	Version         string `yaml:"version,omitempty"`
	BugsAddress     string `yaml:"bugs_address,omitempty"`
	CopyrightHolder string `yaml:"copyright_holder,omitempty"`
}

// Project groups components the way the platform does.
type Project struct {
	Name       string      `yaml:"name"`
	Slug       string      `yaml:"slug,omitempty"`
	Components []Component `yaml:"components"`
}

// Component is one translatable resource with a catalog per language.
type Component struct {
	Name string `yaml:"name"`
	Slug string `yaml:"slug,omitempty"`
	Type string `yaml:"type"`
	// LocaleDir holds <lang>/LC_MESSAGES/<domain>.po.
	LocaleDir string `yaml:"locale_dir"`
	// Template is the POT file (default <locale_dir>/<domain>.pot).
	Template string `yaml:"template,omitempty"`
	// Domain is the catalog base name (default "messages").
	Domain string `yaml:"domain,omitempty"`
	// FallbackDirs hold <lang>.po files merged into the locale catalogs.
	FallbackDirs []string `yaml:"fallback_dirs,omitempty"`
	Languages    []string `yaml:"languages,omitempty"`
	SourceLang   string   `yaml:"source_lang,omitempty"`

	// Source and Output are used by html components: the source document
	// and the translated document path, where {lang} is replaced.
	Source string `yaml:"source,omitempty"`
	Output string `yaml:"output,omitempty"`
}

// Report configures statistics output.
type Report struct {
	// MinPercent flags languages translated below it.
	MinPercent float64 `yaml:"min_percent,omitempty"`
	// Group is project, component or language.
	Group string `yaml:"group,omitempty"`
	// Output is the file the HTML fragment is written to by default.
	Output string `yaml:"output,omitempty"`
}

// Log configures logging.
type Log struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// Find looks for FileName in dir and its parents and returns its path.
func Find(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		path := filepath.Join(abs, FileName)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", ErrNotFound
		}
		abs = parent
	}
}

// Load reads, defaults and validates the config file at path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	defer f.Close()

	var cfg Config
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	root, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	cfg.Root = root

	if err := cfg.applyDefaults(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() error {
	if c.Platform.Client == "" {
		c.Platform.Client = "wlc"
	}
	if c.VCS.Client == "" {
		c.VCS.Client = "git"
	}
	if c.VCS.Remote == "" {
		c.VCS.Remote = "origin"
	}
	if c.VCS.CommitMessage == "" {
		c.VCS.CommitMessage = "Update translations ({{.Date}})"
	}
	if c.Report.Group == "" {
		c.Report.Group = "project"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "console"
	}

	for i := range c.Generate.Commands {
		g := &c.Generate.Commands[i]
		if len(g.Command) == 0 {
			return fmt.Errorf("generator #%d has no command", i+1)
		}
		if g.Name == "" {
			g.Name = g.Command[0]
		}
		if g.Dir == "" {
			g.Dir = "."
		}
	}
	if x := c.Generate.Xgettext; x != nil {
		if len(x.Sources) == 0 {
			return errors.New("xgettext generator requires \"sources\"")
		}
		if len(x.Keywords) == 0 {
			x.Keywords = []string{"_", "N_", "gettext", "ngettext:1,2", "pgettext:1c,2"}
		}
		if x.Package == "" || x.Version == "" {
			name, version, err := parseChangelog(filepath.Join(c.Root, "debian", "changelog"))
			if err == nil {
				if x.Package == "" {
					x.Package = name
				}
				if x.Version == "" {
					x.Version = version
				}
			}
		}
		if x.Package == "" {
			x.Package = filepath.Base(c.Root)
		}
	}

	for i := range c.Substitutions {
		if err := c.Substitutions[i].Compile(); err != nil {
			return fmt.Errorf("substitution #%d: %w", i+1, err)
		}
	}

	if len(c.Projects) == 0 {
		return errors.New("no projects defined")
	}
	seen := make(map[string]bool)
	for i := range c.Projects {
		p := &c.Projects[i]
		if p.Name == "" {
			return fmt.Errorf("project #%d has no name", i+1)
		}
		if p.Slug == "" {
			p.Slug = slugify(p.Name)
		}
		if len(p.Components) == 0 {
			return fmt.Errorf("project %q has no components", p.Name)
		}
		for j := range p.Components {
			comp := &p.Components[j]
			if err := comp.applyDefaults(j); err != nil {
				return fmt.Errorf("project %q: %w", p.Name, err)
			}
			key := p.Slug + "/" + comp.Slug
			if seen[key] {
				return fmt.Errorf("duplicate component %s", key)
			}
			seen[key] = true
		}
	}
	return nil
}

func (c *Component) applyDefaults(index int) error {
	if c.Name == "" {
		return fmt.Errorf("component #%d has no name", index+1)
	}
	if c.Slug == "" {
		c.Slug = slugify(c.Name)
	}
	if c.Type == "" {
		c.Type = TypeGettext
	}
	if c.Domain == "" {
		c.Domain = "messages"
	}
	if c.SourceLang == "" {
		c.SourceLang = "en"
	}

	switch c.Type {
	case TypeGettext:
	case TypeHTML:
		if c.Source == "" {
			return fmt.Errorf("component %q of type html requires \"source\"", c.Name)
		}
		if c.Output != "" && !strings.Contains(c.Output, "{lang}") {
			return fmt.Errorf("component %q: output must contain {lang}", c.Name)
		}
	default:
		return fmt.Errorf("component %q has unknown type %q (valid: gettext, html)", c.Name, c.Type)
	}

	if c.LocaleDir == "" {
		return fmt.Errorf("component %q requires \"locale_dir\"", c.Name)
	}
	if c.Template == "" {
		c.Template = filepath.Join(c.LocaleDir, c.Domain+".pot")
	}
	return nil
}

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	return strings.Trim(slugRe.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

// Abs resolves a config-relative path.
func (c *Config) Abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(c.Root, rel)
}

// ResolvedComponent is a component with absolute paths and its languages.
type ResolvedComponent struct {
	Project   *Project
	Component *Component

	LocaleDir    string
	Template     string
	FallbackDirs []string
	Source       string
	Languages    []string
}

// CatalogPath returns the catalog of lang.
func (rc *ResolvedComponent) CatalogPath(lang string) string {
	return merge.CatalogPath(rc.LocaleDir, lang, rc.Component.Domain)
}

// OutputPath returns the translated document of an html component.
func (rc *ResolvedComponent) OutputPath(root, lang string) string {
	out := strings.ReplaceAll(rc.Component.Output, "{lang}", lang)
	if filepath.IsAbs(out) {
		return out
	}
	return filepath.Join(root, out)
}

// PlatformPath returns the project/component path used by the platform
// client.
func (rc *ResolvedComponent) PlatformPath() string {
	return rc.Project.Slug + "/" + rc.Component.Slug
}

// Resolve returns every component with absolute paths. Components without
// a language list get the languages of their existing catalogs. When only
// is non-empty, components are restricted to those whose project or
// project/component slug is listed.
func (c *Config) Resolve(only ...string) ([]ResolvedComponent, error) {
	filter := make(map[string]bool, len(only))
	for _, o := range only {
		filter[o] = true
	}

	var resolved []ResolvedComponent
	for i := range c.Projects {
		p := &c.Projects[i]
		for j := range p.Components {
			comp := &p.Components[j]
			if len(filter) > 0 && !filter[p.Slug] && !filter[p.Slug+"/"+comp.Slug] {
				continue
			}

			rc := ResolvedComponent{
				Project:   p,
				Component: comp,
				LocaleDir: c.Abs(comp.LocaleDir),
				Template:  c.Abs(comp.Template),
			}
			if comp.Source != "" {
				rc.Source = c.Abs(comp.Source)
			}
			for _, d := range comp.FallbackDirs {
				rc.FallbackDirs = append(rc.FallbackDirs, c.Abs(d))
			}

			rc.Languages = comp.Languages
			if len(rc.Languages) == 0 {
				langs, err := detectLanguages(rc.LocaleDir, comp.Domain, comp.SourceLang)
				if err != nil {
					return nil, fmt.Errorf("component %s: %w", rc.PlatformPath(), err)
				}
				rc.Languages = langs
			}
			resolved = append(resolved, rc)
		}
	}
	if len(filter) > 0 && len(resolved) == 0 {
		return nil, fmt.Errorf("no component matches %s", strings.Join(only, ", "))
	}
	return resolved, nil
}

// Targets lists the catalogs of the resolved components for statistics.
func Targets(components []ResolvedComponent) []stats.Target {
	var targets []stats.Target
	for _, rc := range components {
		for _, lang := range rc.Languages {
			targets = append(targets, stats.Target{
				Project:   rc.Project.Name,
				Component: rc.Component.Name,
				Lang:      lang,
				Path:      rc.CatalogPath(lang),
				Template:  rc.Template,
			})
		}
	}
	return targets
}

// AllLanguages returns the sorted union of the components' languages.
func AllLanguages(components []ResolvedComponent) []string {
	seen := make(map[string]bool)
	var all []string
	for _, rc := range components {
		for _, lang := range rc.Languages {
			if !seen[lang] {
				seen[lang] = true
				all = append(all, lang)
			}
		}
	}
	sort.Strings(all)
	return all
}

// detectLanguages finds the languages with a catalog under localeDir,
// leaving out the source language and directories that are not language
// codes.
func detectLanguages(localeDir, domain, sourceLang string) ([]string, error) {
	codes, err := merge.LocaleCatalogs(localeDir, domain)
	if err != nil {
		return nil, err
	}
	var langs []string
	for _, code := range codes {
		if code != sourceLang && isLangCode(code) {
			langs = append(langs, code)
		}
	}
	return langs, nil
}

// isLangCode checks if a string looks like a language code (en, pt_BR,
// zh_Hans, sr@latin, ast).
func isLangCode(s string) bool {
	base, _, _ := strings.Cut(s, "@")
	lang, region, hasRegion := strings.Cut(strings.ReplaceAll(base, "-", "_"), "_")
	if len(lang) < 2 || len(lang) > 3 || !isLetters(lang, 'a', 'z') {
		return false
	}
	if !hasRegion {
		return true
	}
	switch len(region) {
	case 2:
		return isLetters(region, 'A', 'Z')
	case 4:
		return isLetters(region[:1], 'A', 'Z') && isLetters(region[1:], 'a', 'z')
	}
	return false
}

func isLetters(s string, lo, hi byte) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < lo || s[i] > hi {
			return false
		}
	}
	return true
}

var changelogRe = regexp.MustCompile(`^(\S+)\s+\(([^)]+)\)`)

// parseChangelog extracts package name and version from debian/changelog.
func parseChangelog(path string) (name, version string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return "", "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if scanner.Scan() {
		if m := changelogRe.FindStringSubmatch(scanner.Text()); len(m) >= 3 {
			return m[1], m[2], nil
		}
	}
	return "", "", os.ErrNotExist
}
