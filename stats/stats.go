// Package stats computes translation statistics of catalogs and aggregates
// them per component, project and language.
package stats

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/minios-linux/catsync/checks"
	po "github.com/minios-linux/catsync/pofile"
)

// Stats is the aggregate shown for a project, component or language.
type Stats struct {
	Total      int `json:"total"`
	Translated int `json:"translated"`
	Fuzzy      int `json:"fuzzy"`
	// Todo is everything not translated, fuzzy included.
	Todo int `json:"todo"`

	TotalWords      int `json:"total_words"`
	TranslatedWords int `json:"translated_words"`
	FuzzyWords      int `json:"fuzzy_words"`
	TodoWords       int `json:"todo_words"`

	// AllChecks counts translated entries with at least one failing check.
	AllChecks int `json:"allchecks"`

	TranslatedPercent      float64 `json:"translated_percent"`
	FuzzyPercent           float64 `json:"fuzzy_percent"`
	TranslatedWordsPercent float64 `json:"translated_words_percent"`
	AllChecksPercent       float64 `json:"allchecks_percent"`

	LastChanged time.Time `json:"last_changed,omitzero"`
}

// Percent returns part/total as a percentage rounded down to one decimal,
// and 0 for an empty total.
func Percent(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return math.Floor(float64(part)*1000/float64(total)) / 10
}

func (s *Stats) recompute() {
	s.Todo = s.Total - s.Translated
	s.TodoWords = s.TotalWords - s.TranslatedWords
	s.TranslatedPercent = Percent(s.Translated, s.Total)
	s.FuzzyPercent = Percent(s.Fuzzy, s.Total)
	s.TranslatedWordsPercent = Percent(s.TranslatedWords, s.TotalWords)
	s.AllChecksPercent = Percent(s.AllChecks, s.Total)
}

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Total += o.Total
	s.Translated += o.Translated
	s.Fuzzy += o.Fuzzy
	s.TotalWords += o.TotalWords
	s.TranslatedWords += o.TranslatedWords
	s.FuzzyWords += o.FuzzyWords
	s.AllChecks += o.AllChecks
	if o.LastChanged.After(s.LastChanged) {
		s.LastChanged = o.LastChanged
	}
	s.recompute()
}

// Complete reports whether nothing is left to translate.
func (s Stats) Complete() bool {
	return s.Todo == 0
}

// FromFile computes the statistics of a parsed catalog.
func FromFile(f *po.File) Stats {
	c := f.Stats()
	s := Stats{
		Total:           c.Total,
		Translated:      c.Translated,
		Fuzzy:           c.Fuzzy,
		TotalWords:      c.TotalWords,
		TranslatedWords: c.TranslatedWords,
		FuzzyWords:      c.FuzzyWords,
		AllChecks:       checks.FailingEntries(checks.Run(f)),
	}
	s.recompute()
	return s
}

// Target is one catalog to measure.
type Target struct {
	Project   string `json:"project"`
	Component string `json:"component"`
	Lang      string `json:"lang"`
	Path      string `json:"path"`
	// Template is used when Path does not exist yet: every template message
	// then counts as untranslated.
	Template string `json:"-"`
}

// Translation is the statistics of one catalog.
type Translation struct {
	Target
	Missing bool `json:"missing,omitempty"`
	Stats
}

// Component aggregates the translations of one component.
type Component struct {
	Name         string        `json:"name"`
	Translations []Translation `json:"translations"`
	Stats
}

// Project aggregates its components.
type Project struct {
	Name       string       `json:"name"`
	Components []*Component `json:"components"`
	Stats
}

// Language aggregates one language across every project.
type Language struct {
	Code string `json:"code"`
	Stats
}

// Report is the full statistics tree.
type Report struct {
	Projects  []*Project `json:"projects"`
	Languages []Language `json:"languages"`
	Total     Stats      `json:"total"`
}

// Measure computes the statistics of one target.
func Measure(t Target) (Translation, error) {
	info, err := os.Stat(t.Path)
	if errors.Is(err, fs.ErrNotExist) && t.Template != "" {
		tmpl, err := po.ParseFile(t.Template)
		if err != nil {
			return Translation{}, fmt.Errorf("reading template: %w", err)
		}
		for _, e := range tmpl.Entries {
			e.MsgStr = ""
			e.MsgStrPlural = nil
			e.SetFuzzy(false)
		}
		return Translation{Target: t, Missing: true, Stats: FromFile(tmpl)}, nil
	}
	if err != nil {
		return Translation{}, err
	}

	f, err := po.ParseFile(t.Path)
	if err != nil {
		return Translation{}, err
	}
	s := FromFile(f)
	s.LastChanged = info.ModTime().UTC()
	return Translation{Target: t, Stats: s}, nil
}

// Collect measures targets with up to workers catalogs parsed concurrently
// and aggregates the results. Project, component and language order follows
// the first appearance in targets, languages are sorted by code.
func Collect(ctx context.Context, targets []Target, workers int) (*Report, error) {
	if workers <= 0 {
		workers = 4
	}
	results := make([]Translation, len(targets))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	var mu sync.Mutex
	for i, t := range targets {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			tr, err := Measure(t)
			if err != nil {
				return fmt.Errorf("%s/%s %s: %w", t.Project, t.Component, t.Lang, err)
			}
			mu.Lock()
			results[i] = tr
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Aggregate(results), nil
}

// Aggregate builds the report tree from measured translations.
func Aggregate(results []Translation) *Report {
	r := &Report{}
	projects := make(map[string]*Project)
	components := make(map[string]*Component)
	langs := make(map[string]*Language)

	for _, tr := range results {
		p, ok := projects[tr.Project]
		if !ok {
			p = &Project{Name: tr.Project}
			projects[tr.Project] = p
			r.Projects = append(r.Projects, p)
		}
		ckey := tr.Project + "\x00" + tr.Component
		c, ok := components[ckey]
		if !ok {
			c = &Component{Name: tr.Component}
			components[ckey] = c
			p.Components = append(p.Components, c)
		}
		c.Translations = append(c.Translations, tr)
		c.Add(tr.Stats)
		p.Add(tr.Stats)
		r.Total.Add(tr.Stats)

		l, ok := langs[tr.Lang]
		if !ok {
			l = &Language{Code: tr.Lang}
			langs[tr.Lang] = l
		}
		l.Add(tr.Stats)
	}

	for _, l := range langs {
		r.Languages = append(r.Languages, *l)
	}
	sort.Slice(r.Languages, func(i, j int) bool { return r.Languages[i].Code < r.Languages[j].Code })
	return r
}
