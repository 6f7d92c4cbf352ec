// Package sync runs the maintainer pipeline that exchanges translations
// between the repository and the translation platform.
//
// The steps run in a fixed order: lock the platform, push its pending
// changes, pull the repository, regenerate catalogs, apply substitutions,
// merge fallback catalogs, commit and push, pull the platform and unlock
// it. Every platform path the lock step locked is unlocked again, even when
// a later step or the lock of another path failed.
package sync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/minios-linux/catsync/command"
	"github.com/minios-linux/catsync/config"
	"github.com/minios-linux/catsync/convert"
	"github.com/minios-linux/catsync/extract"
	"github.com/minios-linux/catsync/lockfile"
	"github.com/minios-linux/catsync/merge"
	"github.com/minios-linux/catsync/platform"
	"github.com/minios-linux/catsync/substitute"
	"github.com/minios-linux/catsync/vcs"
)

// ErrLocked is returned when another sync holds the run marker.
var ErrLocked = lockfile.ErrLocked

// StaleAfter is the age after which a run marker is considered abandoned.
var StaleAfter = 6 * time.Hour

// Step names one pipeline step.
type Step string

const (
	StepLock         Step = "lock"
	StepPlatformPush Step = "platform-push"
	StepPull         Step = "pull"
	StepGenerate     Step = "generate"
	StepSubstitute   Step = "substitute"
	StepFallback     Step = "fallback"
	StepCommit       Step = "commit"
	StepPush         Step = "push"
	StepPlatformPull Step = "platform-pull"
	StepUnlock       Step = "unlock"
)

// Steps lists every step in execution order.
var Steps = []Step{
	StepLock, StepPlatformPush, StepPull, StepGenerate, StepSubstitute,
	StepFallback, StepCommit, StepPush, StepPlatformPull, StepUnlock,
}

// LocalSteps only touch the working tree.
var LocalSteps = []Step{StepGenerate, StepSubstitute, StepFallback}

// ParseStep validates a step name.
func ParseStep(s string) (Step, error) {
	for _, step := range Steps {
		if string(step) == s {
			return step, nil
		}
	}
	names := make([]string, len(Steps))
	for i, step := range Steps {
		names[i] = string(step)
	}
	return "", fmt.Errorf("unknown step %q (valid: %s)", s, strings.Join(names, ", "))
}

// Status is the outcome of one step.
type Status string

const (
	StatusDone      Status = "done"
	StatusUnchanged Status = "unchanged"
	StatusSkipped   Status = "skipped"
	StatusDryRun    Status = "dry-run"
	StatusFailed    Status = "failed"
	StatusNotRun    Status = "not-run"
)

// StepResult records what happened in one step.
type StepResult struct {
	Step     Step
	Status   Status
	Detail   string
	Err      error
	Duration time.Duration
}

// Result is the outcome of a pipeline run.
type Result struct {
	Steps []StepResult
	// Changed lists catalogs whose content differs from the last sync.
	Changed []string
	// Locked lists the platform paths the run locked.
	Locked []string
}

// Status returns the status of step, or StatusNotRun.
func (r *Result) Status(step Step) Status {
	for _, s := range r.Steps {
		if s.Step == step {
			return s.Status
		}
	}
	return StatusNotRun
}

// Options tune a run.
type Options struct {
	// DryRun logs the steps without executing them.
	DryRun bool
	// Skip names steps not to run.
	Skip []Step
	// OnlyLocal runs only the steps that touch the working tree.
	OnlyLocal bool
	// Message overrides the configured commit message template.
	Message string
}

func (o Options) skipped(step Step) bool {
	for _, s := range o.Skip {
		if s == step {
			return true
		}
	}
	if o.OnlyLocal {
		for _, s := range LocalSteps {
			if s == step {
				return false
			}
		}
		return true
	}
	return false
}

// Pipeline holds the clients of one configured repository.
type Pipeline struct {
	Config     *config.Config
	Components []config.ResolvedComponent
	Platform   *platform.Client
	Git        *vcs.Git
	Generator  *extract.Generator
	// Now is used for the commit message date.
	Now func() time.Time
}

// New builds a pipeline whose external tools run through runner.
func New(cfg *config.Config, components []config.ResolvedComponent, runner command.Runner, key string) *Pipeline {
	pc := platform.New(cfg.Platform.Client, runner)
	pc.URL = cfg.Platform.URL
	pc.Key = key
	pc.Args = cfg.Platform.Args
	pc.Dir = cfg.Root

	git := vcs.New(cfg.Root, runner)
	git.Program = cfg.VCS.Client
	git.Remote = cfg.VCS.Remote
	git.Branch = cfg.VCS.Branch

	return &Pipeline{
		Config:     cfg,
		Components: components,
		Platform:   pc,
		Git:        git,
		Generator:  extract.New(cfg.Root, runner),
		Now:        time.Now,
	}
}

// Run executes the pipeline. It returns the per-step results together with
// the error of the first failing step.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Result, error) {
	res := &Result{}

	var lock *lockfile.LockFile
	if !opts.DryRun {
		guard, err := lockfile.Acquire(p.Config.Root, StaleAfter)
		if err != nil {
			return res, err
		}
		defer guard.Release()

		if lock, err = lockfile.Load(p.Config.Root); err != nil {
			return res, err
		}
	}

	var runErr error
	for _, step := range Steps[:len(Steps)-1] {
		if runErr != nil {
			res.Steps = append(res.Steps, StepResult{Step: step, Status: StatusNotRun})
			continue
		}
		sr := p.runStep(ctx, step, opts, lock, res)
		res.Steps = append(res.Steps, sr)
		if sr.Status == StatusFailed {
			runErr = fmt.Errorf("%s: %w", step, sr.Err)
		}
	}

	// Unlock runs even after a failure and with a fresh context, so an
	// interrupted run still releases the platform.
	switch {
	case len(res.Locked) == 0:
		res.Steps = append(res.Steps, p.skip(StepUnlock, opts))
	default:
		sr := p.runStep(context.WithoutCancel(ctx), StepUnlock, opts, lock, res)
		res.Steps = append(res.Steps, sr)
		if sr.Status == StatusFailed && runErr == nil {
			runErr = fmt.Errorf("%s: %w", StepUnlock, sr.Err)
		}
	}
	if runErr != nil {
		return res, runErr
	}

	if lock != nil && !opts.OnlyLocal {
		switch res.Status(StepCommit) {
		case StatusDone, StatusUnchanged:
			// Handled by the commit step.
		default:
			if err := p.record(lock, p.Catalogs()); err != nil {
				return res, err
			}
		}
	}
	return res, nil
}

// record stores the catalog checksums and the sync time in the lock file.
func (p *Pipeline) record(lock *lockfile.LockFile, catalogs []string) error {
	if err := lock.Record(catalogs); err != nil {
		return err
	}
	lock.Clean(catalogs)
	lock.MarkSynced(p.Now())
	return lock.Save()
}

func (p *Pipeline) skip(step Step, opts Options) StepResult {
	if opts.DryRun && !opts.skipped(step) {
		return StepResult{Step: step, Status: StatusDryRun}
	}
	return StepResult{Step: step, Status: StatusSkipped}
}

func (p *Pipeline) runStep(ctx context.Context, step Step, opts Options, lock *lockfile.LockFile, res *Result) StepResult {
	logger := log.With().Str("step", string(step)).Logger()
	if opts.skipped(step) {
		logger.Info().Msg("skipped")
		return StepResult{Step: step, Status: StatusSkipped}
	}
	if opts.DryRun {
		logger.Info().Msg("dry run")
		return StepResult{Step: step, Status: StatusDryRun}
	}

	start := time.Now()
	logger.Info().Msg("running")
	status, detail, err := p.execute(ctx, step, opts, lock, res)
	sr := StepResult{Step: step, Status: status, Detail: detail, Err: err, Duration: time.Since(start)}
	if err != nil {
		sr.Status = StatusFailed
		logger.Error().Err(err).Msg("step failed")
		return sr
	}
	ev := logger.Info().Str("status", string(status)).Dur("took", sr.Duration)
	if detail != "" {
		ev = ev.Str("detail", detail)
	}
	ev.Msg("finished")
	return sr
}

func (p *Pipeline) execute(ctx context.Context, step Step, opts Options, lock *lockfile.LockFile, res *Result) (Status, string, error) {
	switch step {
	case StepLock:
		return StatusDone, "", p.eachPlatformPath(func(path string) error {
			if err := p.Platform.Lock(ctx, path); err != nil {
				return err
			}
			res.Locked = append(res.Locked, path)
			return nil
		})
	case StepUnlock:
		var errs []error
		for _, path := range res.Locked {
			if err := p.Platform.Unlock(ctx, path); err != nil {
				errs = append(errs, err)
			}
		}
		return StatusDone, "", errors.Join(errs...)
	case StepPlatformPush:
		return StatusDone, "", p.eachPlatformPath(func(path string) error {
			if err := p.Platform.Commit(ctx, path); err != nil {
				return err
			}
			return p.Platform.Push(ctx, path)
		})
	case StepPlatformPull:
		return StatusDone, "", p.eachPlatformPath(func(path string) error { return p.Platform.Pull(ctx, path) })
	case StepPull:
		return StatusDone, "", p.Git.Pull(ctx)
	case StepGenerate:
		return p.Generate(ctx)
	case StepSubstitute:
		changed, err := substitute.Apply(p.Config.Root, p.Config.Substitutions)
		if err != nil {
			return StatusFailed, "", err
		}
		return changedStatus(len(changed)), fmt.Sprintf("%d files changed", len(changed)), nil
	case StepFallback:
		n, err := p.Fallback()
		if err != nil {
			return StatusFailed, "", err
		}
		docs, err := p.Documents()
		if err != nil {
			return StatusFailed, "", err
		}
		detail := fmt.Sprintf("%d catalogs updated", n)
		if docs > 0 {
			detail += fmt.Sprintf(", %d documents built", docs)
		}
		return changedStatus(n), detail, nil
	case StepCommit:
		return p.commit(ctx, opts, lock, res)
	case StepPush:
		if !p.Config.VCS.PushEnabled() {
			return StatusSkipped, "push disabled", nil
		}
		return StatusDone, "", p.Git.Push(ctx)
	}
	return StatusFailed, "", fmt.Errorf("unknown step %q", step)
}

func changedStatus(n int) Status {
	if n == 0 {
		return StatusUnchanged
	}
	return StatusDone
}

// PlatformPaths are the configured platform project, or every component
// when no project is configured.
func (p *Pipeline) PlatformPaths() []string {
	if p.Config.Platform.Project != "" {
		return []string{p.Config.Platform.Project}
	}
	paths := make([]string, 0, len(p.Components))
	for i := range p.Components {
		paths = append(paths, p.Components[i].PlatformPath())
	}
	return paths
}

func (p *Pipeline) eachPlatformPath(fn func(path string) error) error {
	for _, path := range p.PlatformPaths() {
		if err := fn(path); err != nil {
			return err
		}
	}
	return nil
}

// Generate regenerates the templates and catalogs. Generator commands run
// first; then the builtin xgettext generator and html components rebuild
// their templates and their catalogs are updated from them.
func (p *Pipeline) Generate(ctx context.Context) (Status, string, error) {
	cfg := p.Config
	ran := false
	if len(cfg.Generate.Commands) > 0 {
		if err := p.Generator.RunCommands(ctx, cfg.Generate.Commands); err != nil {
			return StatusFailed, "", err
		}
		ran = true
	}

	updated := 0
	for i := range p.Components {
		rc := &p.Components[i]
		switch {
		case rc.Component.Type == config.TypeHTML:
			tmpl, err := convert.ExtractFile(rc.Source)
			if err != nil {
				return StatusFailed, "", fmt.Errorf("component %s: %w", rc.PlatformPath(), err)
			}
			if err := tmpl.WriteFile(rc.Template); err != nil {
				return StatusFailed, "", err
			}
		case cfg.Generate.Xgettext != nil:
			if _, err := p.Generator.Template(ctx, cfg.Generate.Xgettext, rc.Component.Domain, rc.Template); err != nil {
				return StatusFailed, "", fmt.Errorf("component %s: %w", rc.PlatformPath(), err)
			}
		default:
			continue
		}
		ran = true

		updates, err := extract.UpdateCatalogs(*rc, rc.Languages)
		if err != nil {
			return StatusFailed, "", fmt.Errorf("component %s: %w", rc.PlatformPath(), err)
		}
		for _, u := range updates {
			if u.Changed {
				updated++
			}
		}
	}

	if !ran {
		return StatusSkipped, "no generator configured", nil
	}
	return StatusDone, fmt.Sprintf("%d catalogs updated", updated), nil
}

// Fallback merges the fallback catalogs of every component and returns the
// number of catalogs rewritten.
func (p *Pipeline) Fallback() (int, error) {
	n := 0
	for i := range p.Components {
		rc := &p.Components[i]
		if len(rc.FallbackDirs) == 0 {
			continue
		}
		changes, err := merge.FallbackLocales(rc.LocaleDir, rc.Component.Domain, rc.FallbackDirs)
		if err != nil {
			return n, fmt.Errorf("component %s: %w", rc.PlatformPath(), err)
		}
		for _, c := range changes {
			log.Info().
				Str("component", rc.PlatformPath()).
				Str("lang", c.Lang).
				Int("filled", c.Filled).
				Int("appended", c.Appended).
				Msg("fallback merged")
		}
		n += len(changes)
	}
	return n, nil
}

// Documents rebuilds the translated documents of html components that have
// an output pattern. Languages without a catalog are skipped.
func (p *Pipeline) Documents() (int, error) {
	n := 0
	for _, doc := range p.documents() {
		if _, err := os.Stat(doc.catalog); err != nil {
			continue
		}
		res, err := convert.ApplyFile(doc.rc.Source, doc.catalog, doc.out)
		if err != nil {
			return n, fmt.Errorf("component %s: %w", doc.rc.PlatformPath(), err)
		}
		log.Debug().
			Str("component", doc.rc.PlatformPath()).
			Str("lang", doc.lang).
			Str("path", doc.out).
			Int("applied", res.Applied).
			Int("units", res.Units).
			Msg("document built")
		n++
	}
	return n, nil
}

type document struct {
	rc      *config.ResolvedComponent
	lang    string
	catalog string
	out     string
}

func (p *Pipeline) documents() []document {
	var docs []document
	for i := range p.Components {
		rc := &p.Components[i]
		if rc.Component.Type != config.TypeHTML || rc.Component.Output == "" {
			continue
		}
		for _, lang := range rc.Languages {
			docs = append(docs, document{rc: rc, lang: lang, catalog: rc.CatalogPath(lang), out: rc.OutputPath(p.Config.Root, lang)})
		}
	}
	return docs
}

// Catalogs lists the template and catalogs of every component.
func (p *Pipeline) Catalogs() []string {
	var paths []string
	for i := range p.Components {
		rc := &p.Components[i]
		paths = append(paths, rc.Template)
		for _, lang := range rc.Languages {
			paths = append(paths, rc.CatalogPath(lang))
		}
	}
	return paths
}

// MessageData is available to the commit message template.
type MessageData struct {
	Date       string
	Languages  []string
	Components []string
}

// CommitMessage renders a commit message template.
func CommitMessage(text string, data MessageData) (string, error) {
	tmpl, err := template.New("commit").Funcs(template.FuncMap{"join": strings.Join}).Parse(text)
	if err != nil {
		return "", fmt.Errorf("commit message template: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("commit message template: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func (p *Pipeline) commit(ctx context.Context, opts Options, lock *lockfile.LockFile, res *Result) (Status, string, error) {
	catalogs := p.Catalogs()
	if lock != nil {
		changed, err := lock.Changed(catalogs)
		if err != nil {
			return StatusFailed, "", err
		}
		res.Changed = changed
	}

	staged := catalogs
	for _, doc := range p.documents() {
		staged = append(staged, doc.out)
	}
	// A tracked lock file is committed together with the catalogs it
	// describes. Syncs that changed no catalog leave it alone.
	if lock != nil && (len(res.Changed) > 0 || lock.LastSync.IsZero()) {
		if err := p.record(lock, catalogs); err != nil {
			return StatusFailed, "", err
		}
		ignored, err := p.Git.Ignored(ctx, lockfile.FileName)
		if err != nil {
			return StatusFailed, "", err
		}
		if !ignored {
			staged = append(staged, lock.Path())
		}
	}
	var paths []string
	seen := make(map[string]bool)
	for _, c := range staged {
		if _, err := os.Stat(c); err != nil {
			continue
		}
		rel, err := filepath.Rel(p.Config.Root, c)
		if err != nil {
			rel = c
		}
		if !seen[rel] {
			seen[rel] = true
			paths = append(paths, rel)
		}
	}
	if err := p.Git.Add(ctx, paths...); err != nil {
		return StatusFailed, "", err
	}

	text := opts.Message
	if text == "" {
		text = p.Config.VCS.CommitMessage
	}
	data := MessageData{
		Date:      p.Now().UTC().Format("2006-01-02"),
		Languages: config.AllLanguages(p.Components),
	}
	for i := range p.Components {
		data.Components = append(data.Components, p.Components[i].PlatformPath())
	}
	msg, err := CommitMessage(text, data)
	if err != nil {
		return StatusFailed, "", err
	}

	err = p.Git.Commit(ctx, msg)
	if errors.Is(err, vcs.ErrNothingToCommit) {
		return StatusUnchanged, "nothing to commit", nil
	}
	if err != nil {
		return StatusFailed, "", err
	}
	return StatusDone, fmt.Sprintf("%d catalogs changed since last sync", len(res.Changed)), nil
}
