package merge

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/minios-linux/catsync/langmeta"
	po "github.com/minios-linux/catsync/pofile"
)

// FallbackResult counts what a fallback merge changed.
type FallbackResult struct {
	// Filled is the number of catalog entries that took a translation from a
	// fallback catalog.
	Filled int
	// Appended is the number of entries only present in fallback catalogs.
	Appended int
}

// Changed reports whether the merge modified the catalog.
func (r FallbackResult) Changed() bool {
	return r.Filled > 0 || r.Appended > 0
}

// Fallback concatenates catalog with fallbacks, msgcat --use-first style.
// For every message the first translated, non-fuzzy definition wins, looking
// at catalog first and then at fallbacks in order. A message nobody
// translates keeps the catalog's definition. Messages only found in
// fallbacks are appended, unless the catalog keeps them as obsolete. The
// catalog header is kept.
func Fallback(catalog *po.File, fallbacks ...*po.File) (*po.File, FallbackResult) {
	result := catalog.Clone()
	idx := result.Index()
	obsolete := make(map[string]bool)
	for _, e := range result.Entries {
		if e.Obsolete {
			obsolete[e.Key()] = true
		}
	}
	var res FallbackResult

	for _, fb := range fallbacks {
		for _, e := range fb.Live() {
			target, ok := idx[e.Key()]
			if !ok {
				if obsolete[e.Key()] {
					continue
				}
				added := e.Clone()
				result.Entries = append(result.Entries, added)
				idx[added.Key()] = added
				res.Appended++
				continue
			}
			if target.IsTranslated() || !e.IsTranslated() {
				continue
			}
			target.MsgStr = e.MsgStr
			target.MsgStrPlural = e.Clone().MsgStrPlural
			target.SetFuzzy(false)
			res.Filled++
		}
	}

	return result, res
}

// LocaleChange describes a catalog rewritten by FallbackLocales.
type LocaleChange struct {
	Lang    string
	Path    string
	Sources []string
	FallbackResult
}

// CatalogPath returns <localeDir>/<lang>/LC_MESSAGES/<domain>.po.
func CatalogPath(localeDir, lang, domain string) string {
	return filepath.Join(localeDir, lang, "LC_MESSAGES", domain+".po")
}

// LocaleCatalogs lists the language codes that have a catalog for domain
// under localeDir, sorted.
func LocaleCatalogs(localeDir, domain string) ([]string, error) {
	matches, err := filepath.Glob(CatalogPath(localeDir, "*", domain))
	if err != nil {
		return nil, err
	}
	langs := make([]string, 0, len(matches))
	for _, m := range matches {
		langs = append(langs, filepath.Base(filepath.Dir(filepath.Dir(m))))
	}
	sort.Strings(langs)
	return langs, nil
}

// FallbackLocales runs Fallback for every locale catalog of domain under
// localeDir. For each locale and each fallback directory it looks for
// <dir>/<code>.po, trying the spellings of the code given by
// langmeta.Variants. Locales without fallback files are left alone and
// catalogs are only rewritten when the merge changed something.
func FallbackLocales(localeDir, domain string, fallbackDirs []string) ([]LocaleChange, error) {
	langs, err := LocaleCatalogs(localeDir, domain)
	if err != nil {
		return nil, fmt.Errorf("listing catalogs in %s: %w", localeDir, err)
	}

	var changes []LocaleChange
	for _, lang := range langs {
		var (
			sources []string
			files   []*po.File
		)
		for _, dir := range fallbackDirs {
			path := findFallback(dir, lang)
			if path == "" {
				continue
			}
			fb, err := po.ParseFile(path)
			if err != nil {
				return changes, fmt.Errorf("reading fallback: %w", err)
			}
			sources = append(sources, path)
			files = append(files, fb)
		}
		if len(files) == 0 {
			continue
		}

		path := CatalogPath(localeDir, lang, domain)
		catalog, err := po.ParseFile(path)
		if err != nil {
			return changes, fmt.Errorf("reading catalog: %w", err)
		}
		merged, res := Fallback(catalog, files...)
		if !res.Changed() {
			continue
		}
		if err := merged.WriteFile(path); err != nil {
			return changes, fmt.Errorf("writing %s: %w", path, err)
		}
		changes = append(changes, LocaleChange{Lang: lang, Path: path, Sources: sources, FallbackResult: res})
	}
	return changes, nil
}

func findFallback(dir, lang string) string {
	for _, code := range langmeta.Variants(lang) {
		path := filepath.Join(dir, code+".po")
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path
		}
	}
	return ""
}
