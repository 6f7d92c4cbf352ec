// Command catsync keeps the gettext catalogs of a repository in sync with a
// translation platform and reports translation statistics.
package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/minios-linux/catsync/checks"
	"github.com/minios-linux/catsync/command"
	"github.com/minios-linux/catsync/config"
	"github.com/minios-linux/catsync/convert"
	"github.com/minios-linux/catsync/i18n"
	"github.com/minios-linux/catsync/lockfile"
	"github.com/minios-linux/catsync/logging"
	po "github.com/minios-linux/catsync/pofile"
	"github.com/minios-linux/catsync/report"
	"github.com/minios-linux/catsync/settings"
	"github.com/minios-linux/catsync/stats"
	"github.com/minios-linux/catsync/substitute"
	pipeline "github.com/minios-linux/catsync/sync"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
	colorGray   = "\033[0;90m"
)

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

type globalOptions struct {
	configPath string
	logLevel   string
	verbose    bool
	noColor    bool
}

var opts globalOptions

// runner executes external programs. Tests replace it.
var runner command.Runner = command.ExecRunner{}

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	opts = globalOptions{}

	root := &cobra.Command{
		Use:   "catsync",
		Short: i18n.T("Synchronize gettext catalogs with a translation platform"),
		Long: i18n.T(`catsync keeps the gettext catalogs of a repository in sync with a
translation platform and reports translation statistics.

The project is described by .catsync.yaml, found in the current directory
or one of its parents.

Commands:
  sync        Run the whole pipeline (lock, pull, generate, commit, push...)
  generate    Regenerate templates and update catalogs
  fallback    Fill catalogs from fallback catalogs
  substitute  Apply the configured substitutions
  stats       Show translation statistics (text, html, json)
  check       Run quality checks on translations
  convert     Convert HTML documents to and from catalogs
  status      Show the sync state of the repository
  auth        Manage platform API keys`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogging(nil)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", fmt.Sprintf(i18n.T("Path to %s (default: search upwards)"), config.FileName))
	pf.StringVar(&opts.logLevel, "log-level", "", i18n.T("Log level: trace, debug, info, warn, error"))
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, i18n.T("Verbose output (same as --log-level debug)"))
	pf.BoolVar(&opts.noColor, "no-color", false, i18n.T("Disable colored output"))

	root.AddCommand(
		newSyncCmd(),
		newGenerateCmd(),
		newFallbackCmd(),
		newSubstituteCmd(),
		newStatsCmd(),
		newCheckCmd(),
		newConvertCmd(),
		newStatusCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	_ = logging.Setup(logging.Options{})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		log.Error().Err(err).Msg(i18n.T("catsync failed"))
		os.Exit(1)
	}
}

// setupLogging configures logging from the flags, falling back to the
// configuration file settings.
func setupLogging(cfg *config.Config) error {
	o := logging.Options{Level: opts.logLevel, NoColor: opts.noColor}
	if cfg != nil {
		if o.Level == "" {
			o.Level = cfg.Log.Level
		}
		o.Format = cfg.Log.Format
	}
	if opts.verbose {
		o.Level = "debug"
	}
	return logging.Setup(o)
}

// loadConfig finds and loads the configuration file.
func loadConfig() (*config.Config, error) {
	path := opts.configPath
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		path, err = config.Find(wd)
		if errors.Is(err, config.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", err, i18n.T("run catsync inside a project or pass --config"))
		}
		if err != nil {
			return nil, err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := setupLogging(cfg); err != nil {
		return nil, err
	}
	log.Debug().Str("path", path).Str("root", cfg.Root).Msg("configuration loaded")
	return cfg, nil
}

// loadProject loads the configuration and resolves the components selected
// by args ("project" or "project/component"; none selects all).
func loadProject(args []string) (*config.Config, []config.ResolvedComponent, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	components, err := cfg.Resolve(args...)
	if err != nil {
		return nil, nil, err
	}
	for _, rc := range components {
		log.Debug().
			Str("component", rc.PlatformPath()).
			Strs("languages", rc.Languages).
			Msg("component resolved")
	}
	return cfg, components, nil
}

// keyFlags is the platform key flag shared by the commands that talk to the
// platform.
func keyFlags(key *string) *pflag.FlagSet {
	set := pflag.NewFlagSet("platform", pflag.ContinueOnError)
	set.StringVar(key, "key", "", fmt.Sprintf(i18n.T("Platform API key (default: $%s or the stored key)"), settings.EnvKey))
	return set
}

func platformKey(flag string, cfg *config.Config) string {
	key, src := settings.ResolveKey(flag, cfg.Platform.URL)
	if src != settings.SourceNone {
		log.Debug().Str("source", string(src)).Str("key", settings.MaskKey(key)).Msg("platform key")
	}
	return key
}

// color wraps s in an ANSI color unless colors are disabled or w is not a
// terminal.
func color(w io.Writer, c, s string) string {
	if !useColor(w) {
		return s
	}
	return c + s + colorReset
}

func useColor(w io.Writer) bool {
	if opts.noColor {
		return false
	}
	f, ok := w.(*os.File)
	return ok && logging.IsTerminal(f)
}

func relPath(root, path string) string {
	if rel, err := filepath.Rel(root, path); err == nil && !strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}

// writeOutput writes data to path, or to w when path is empty.
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == "" {
		_, err := w.Write(data)
		return err
	}
	if err := po.WriteFileAtomic(path, data); err != nil {
		return err
	}
	log.Info().Str("path", path).Msg(i18n.T("written"))
	return nil
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: i18n.T("Show version information"),
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "catsync %s\n", version)
			fmt.Fprintf(w, "  %-10s %s\n", i18n.T("commit:"), commit)
			fmt.Fprintf(w, "  %-10s %s\n", i18n.T("built:"), date)
			fmt.Fprintf(w, "  %-10s %s %s/%s\n", i18n.T("go:"), runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}

// ---------------------------------------------------------------------------
// sync
// ---------------------------------------------------------------------------

func newSyncCmd() *cobra.Command {
	var (
		so   pipeline.Options
		skip []string
		key  string
	)

	cmd := &cobra.Command{
		Use:   "sync [project[/component]...]",
		Short: i18n.T("Run the synchronization pipeline"),
		Long: i18n.T(`Run the synchronization pipeline. The steps are:

  lock           lock the platform project
  platform-push  commit and push pending platform changes
  pull           pull the repository (rebase)
  generate       regenerate templates and update catalogs
  substitute     apply the configured substitutions
  fallback       fill catalogs from fallback catalogs
  commit         commit the changed catalogs
  push           push the repository
  platform-pull  make the platform pull the repository
  unlock         unlock the platform project

Once the platform is locked it is always unlocked again, even when a later
step fails.

Examples:
  catsync sync                          Full synchronization
  catsync sync --dry-run                Show what would run
  catsync sync --only-local             Regenerate and merge, no remote access
  catsync sync --skip push,platform-pull`),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, err := parseSteps(skip)
			if err != nil {
				return err
			}
			so.Skip = steps

			cfg, components, err := loadProject(args)
			if err != nil {
				return err
			}
			p := pipeline.New(cfg, components, runner, platformKey(key, cfg))

			start := time.Now()
			res, err := p.Run(cmd.Context(), so)
			w := cmd.OutOrStdout()
			printSteps(w, res)
			if err != nil {
				return err
			}

			if n := len(res.Changed); n > 0 {
				fmt.Fprintf(w, "\n%s\n", fmt.Sprintf(i18n.N("%d catalog changed since the last sync:", "%d catalogs changed since the last sync:", n), n))
				for _, path := range res.Changed {
					fmt.Fprintf(w, "  %s\n", path)
				}
			}
			log.Info().Dur("took", time.Since(start).Round(time.Millisecond)).Msg(i18n.T("sync finished"))
			return nil
		},
	}

	f := cmd.Flags()
	f.BoolVarP(&so.DryRun, "dry-run", "n", false, i18n.T("Show the steps without running them"))
	f.StringSliceVar(&skip, "skip", nil, i18n.T("Steps to skip (comma-separated)"))
	f.BoolVar(&so.OnlyLocal, "only-local", false, i18n.T("Only run generate, substitute and fallback"))
	f.StringVarP(&so.Message, "message", "m", "", i18n.T("Commit message template (default: from config)"))
	f.AddFlagSet(keyFlags(&key))

	_ = cmd.RegisterFlagCompletionFunc("skip", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		names := make([]string, 0, len(pipeline.Steps))
		for _, s := range pipeline.Steps {
			names = append(names, string(s))
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func parseSteps(names []string) ([]pipeline.Step, error) {
	var steps []pipeline.Step
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		s, err := pipeline.ParseStep(name)
		if err != nil {
			return nil, err
		}
		steps = append(steps, s)
	}
	return steps, nil
}

var statusMarks = map[pipeline.Status]struct{ mark, color string }{
	pipeline.StatusDone:      {"✓", colorGreen},
	pipeline.StatusUnchanged: {"=", colorGreen},
	pipeline.StatusSkipped:   {"-", colorGray},
	pipeline.StatusDryRun:    {"~", colorBlue},
	pipeline.StatusFailed:    {"✗", colorRed},
	pipeline.StatusNotRun:    {"·", colorGray},
}

// printSteps writes one line per step result.
func printSteps(w io.Writer, res *pipeline.Result) {
	if res == nil {
		return
	}
	for _, s := range res.Steps {
		m := statusMarks[s.Status]
		line := fmt.Sprintf("  %s %-14s %-10s", color(w, m.color, m.mark), s.Step, s.Status)
		if s.Duration > 0 {
			line += fmt.Sprintf(" %6s", s.Duration.Round(100*time.Millisecond))
		}
		switch {
		case s.Err != nil:
			line += "  " + color(w, colorRed, s.Err.Error())
		case s.Detail != "":
			line += "  " + s.Detail
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
	}
}

// ---------------------------------------------------------------------------
// generate / fallback / substitute (local steps on their own)
// ---------------------------------------------------------------------------

func newGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate [project[/component]...]",
		Short: i18n.T("Regenerate templates and update catalogs"),
		Long: i18n.T(`Run the configured generator commands or the builtin xgettext generator,
then update every catalog from its template. Catalogs that do not exist
yet are created.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, components, err := loadProject(args)
			if err != nil {
				return err
			}
			p := pipeline.New(cfg, components, runner, "")
			status, detail, err := p.Generate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", status, detail)
			return nil
		},
	}
}

func newFallbackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fallback [project[/component]...]",
		Short: i18n.T("Fill catalogs from fallback catalogs"),
		Long: i18n.T(`Merge the fallback catalogs of every component into its catalogs. For
each message the first translated definition wins: the catalog's own, then
the fallback directories in order. Translated documents of html components
are rebuilt afterwards.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, components, err := loadProject(args)
			if err != nil {
				return err
			}
			p := pipeline.New(cfg, components, runner, "")
			n, err := p.Fallback()
			if err != nil {
				return err
			}
			docs, err := p.Documents()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, i18n.N("%d catalog updated", "%d catalogs updated", n)+"\n", n)
			if docs > 0 {
				fmt.Fprintf(w, i18n.N("%d document built", "%d documents built", docs)+"\n", docs)
			}
			return nil
		},
	}
}

func newSubstituteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "substitute",
		Short: i18n.T("Apply the configured substitutions"),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			changed, err := substitute.Apply(cfg.Root, cfg.Substitutions)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, i18n.N("%d file changed", "%d files changed", len(changed))+"\n", len(changed))
			for _, path := range changed {
				fmt.Fprintf(w, "  %s\n", relPath(cfg.Root, path))
			}
			return nil
		},
	}
}

// ---------------------------------------------------------------------------
// stats
// ---------------------------------------------------------------------------

func newStatsCmd() *cobra.Command {
	var (
		format     string
		by         string
		output     string
		minPercent float64
		workers    int
	)

	cmd := &cobra.Command{
		Use:   "stats [project[/component]...]",
		Short: i18n.T("Show translation statistics"),
		Long: i18n.T(`Show translation statistics of the configured catalogs.

Formats:
  text  terminal table with progress bars (default)
  html  HTML table fragment for a web page
  json  the complete statistics tree

Examples:
  catsync stats
  catsync stats --by language --min-percent 80
  catsync stats --format html -o docs/stats.html`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, components, err := loadProject(args)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("by") && cfg.Report.Group != "" {
				by = cfg.Report.Group
			}
			if !cmd.Flags().Changed("min-percent") {
				minPercent = cfg.Report.MinPercent
			}
			if output == "" && format == "html" && cfg.Report.Output != "" {
				output = cfg.Abs(cfg.Report.Output)
			}
			group, err := report.ParseGrouping(by)
			if err != nil {
				return err
			}

			r, err := stats.Collect(cmd.Context(), config.Targets(components), workers)
			if err != nil {
				return err
			}
			table := report.Build(r, report.Options{Group: group, MinPercent: minPercent})

			w := cmd.OutOrStdout()
			var buf bytes.Buffer
			switch format {
			case "text":
				err = report.Text(&buf, table, output != "" || !useColor(w))
			case "html":
				err = report.HTML(&buf, table)
			case "json":
				err = report.JSON(&buf, r)
			default:
				return fmt.Errorf(i18n.T("unknown format %q (valid: text, html, json)"), format)
			}
			if err != nil {
				return err
			}
			return writeOutput(w, output, buf.Bytes())
		},
	}

	f := cmd.Flags()
	f.StringVarP(&format, "format", "f", "text", i18n.T("Output format: text, html, json"))
	f.StringVar(&by, "by", string(report.ByProject), i18n.T("Rows: project, component, language"))
	f.StringVarP(&output, "output", "o", "", i18n.T("Write to a file instead of stdout"))
	f.Float64Var(&minPercent, "min-percent", 0, i18n.T("Flag rows translated below this percentage"))
	f.IntVarP(&workers, "jobs", "j", runtime.NumCPU(), i18n.T("Catalogs parsed in parallel"))

	_ = cmd.RegisterFlagCompletionFunc("format", cobra.FixedCompletions([]string{"text", "html", "json"}, cobra.ShellCompDirectiveNoFileComp))
	_ = cmd.RegisterFlagCompletionFunc("by", cobra.FixedCompletions([]string{string(report.ByProject), string(report.ByComponent), string(report.ByLanguage)}, cobra.ShellCompDirectiveNoFileComp))

	return cmd
}

// ---------------------------------------------------------------------------
// check
// ---------------------------------------------------------------------------

func newCheckCmd() *cobra.Command {
	var (
		list bool
		fail bool
	)

	cmd := &cobra.Command{
		Use:   "check [project[/component]...]",
		Short: i18n.T("Run quality checks on translations"),
		Long: i18n.T(`Run the quality checks on every translated message and print the
failing checks per catalog. Use --list to show the failing messages.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, components, err := loadProject(args)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			total := 0
			for _, t := range config.Targets(components) {
				f, err := po.ParseFile(t.Path)
				if errors.Is(err, fs.ErrNotExist) {
					continue
				}
				if err != nil {
					return err
				}
				failures := checks.Run(f)
				n := checks.FailingEntries(failures)
				total += n
				if n == 0 {
					continue
				}
				printCheckSummary(w, relPath(cfg.Root, t.Path), t.Lang, n, failures)
				if list {
					for _, fl := range failures {
						fmt.Fprintf(w, "    %s %s\n", color(w, colorYellow, "["+fl.Check+"]"), oneLine(fl.Entry.MsgID))
					}
				}
			}

			if total == 0 {
				fmt.Fprintln(w, color(w, colorGreen, i18n.T("All checks passed")))
				return nil
			}
			msg := fmt.Sprintf(i18n.N("%d message fails checks", "%d messages fail checks", total), total)
			if fail {
				return errors.New(msg)
			}
			fmt.Fprintln(w, msg)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&list, "list", "l", false, i18n.T("List the failing messages"))
	cmd.Flags().BoolVar(&fail, "fail", false, i18n.T("Exit with an error when a check fails"))
	return cmd
}

func printCheckSummary(w io.Writer, path, lang string, n int, failures []checks.Failure) {
	summary := checks.Summary(failures)
	parts := make([]string, 0, len(summary))
	for _, name := range checks.SortedNames(summary) {
		parts = append(parts, fmt.Sprintf("%s %d", name, summary[name]))
	}
	fmt.Fprintf(w, "%s [%s]: %s (%s)\n", path, lang,
		fmt.Sprintf(i18n.N("%d failing message", "%d failing messages", n), n),
		strings.Join(parts, ", "))
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", `\n`)
	if r := []rune(s); len(r) > 70 {
		return string(r[:67]) + "..."
	}
	return s
}

// ---------------------------------------------------------------------------
// convert
// ---------------------------------------------------------------------------

func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert",
		Short: i18n.T("Convert HTML documents to and from catalogs"),
		Long: i18n.T(`Extract the translatable text of an HTML document into a template, or
build a translated document from the original and a catalog.

Examples:
  catsync convert extract index.html -o po/index.pot
  catsync convert apply index.html po/cs/LC_MESSAGES/index.po -o cs/index.html`),
	}
	cmd.AddCommand(newConvertExtractCmd(), newConvertApplyCmd())
	return cmd
}

func newConvertExtractCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "extract <document.html>",
		Short: i18n.T("Extract an HTML document into a template"),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := convert.ExtractFile(args[0])
			if err != nil {
				return err
			}
			log.Info().Str("path", args[0]).Int("messages", len(f.Entries)).Msg(i18n.T("document extracted"))
			return writeOutput(cmd.OutOrStdout(), output, f.Bytes())
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", i18n.T("Template file (default: stdout)"))
	return cmd
}

func newConvertApplyCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "apply <document.html> <catalog.po>",
		Short: i18n.T("Build a translated HTML document"),
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var res convert.ApplyResult
			if output != "" {
				var err error
				if res, err = convert.ApplyFile(args[0], args[1], output); err != nil {
					return err
				}
			} else {
				catalog, err := po.ParseFile(args[1])
				if err != nil {
					return err
				}
				r, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer r.Close()
				if res, err = convert.Apply(cmd.OutOrStdout(), r, filepath.Base(args[0]), catalog); err != nil {
					return err
				}
			}
			log.Info().
				Int("applied", res.Applied).
				Int("units", res.Units).
				Msg(i18n.T("document built"))
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", i18n.T("Translated document (default: stdout)"))
	return cmd
}

// ---------------------------------------------------------------------------
// status (read-only)
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	var (
		remote bool
		key    string
	)

	cmd := &cobra.Command{
		Use:   "status [project[/component]...]",
		Short: i18n.T("Show the sync state of the repository"),
		Long: i18n.T(`Show the configured components, the last sync recorded in catsync.lock,
the catalogs changed since then and the uncommitted catalogs. With
--platform the statistics reported by the platform client are shown too.`),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, components, err := loadProject(args)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			p := pipeline.New(cfg, components, runner, platformKey(key, cfg))

			fmt.Fprintf(w, "%s %s\n", color(w, colorBlue, i18n.T("Project root:")), cfg.Root)
			if cfg.Platform.URL != "" {
				fmt.Fprintf(w, "%s %s\n", color(w, colorBlue, i18n.T("Platform:")), cfg.Platform.URL)
			}
			fmt.Fprintln(w, color(w, colorBlue, i18n.T("Components:")))
			for _, rc := range components {
				fmt.Fprintf(w, "  %-30s %-8s %s\n", rc.PlatformPath(), rc.Component.Type, strings.Join(rc.Languages, " "))
			}

			lock, err := lockfile.Load(cfg.Root)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "%s %s\n", color(w, colorBlue, i18n.T("Lock file:")), lock.Summary())
			if h, err := lockfile.ReadHolder(cfg.Root); err == nil {
				fmt.Fprintln(w, color(w, colorYellow, fmt.Sprintf(i18n.T("Sync running: pid %d on %s since %s"), h.PID, h.Host, h.Since.Local().Format(time.DateTime))))
			}

			catalogs := p.Catalogs()
			changed, err := lock.Changed(catalogs)
			if err != nil {
				return err
			}
			printPaths(w, i18n.T("Changed since last sync:"), changed)

			rel := make([]string, 0, len(catalogs))
			for _, c := range catalogs {
				rel = append(rel, relPath(cfg.Root, c))
			}
			if modified, err := p.Git.Changed(cmd.Context(), rel...); err != nil {
				log.Warn().Err(err).Msg(i18n.T("cannot read repository status"))
			} else {
				printPaths(w, i18n.T("Uncommitted:"), modified)
			}

			if remote {
				for _, path := range p.PlatformPaths() {
					out, err := p.Platform.Stats(cmd.Context(), path)
					if err != nil {
						return err
					}
					fmt.Fprintf(w, "%s %s\n%s", color(w, colorBlue, i18n.T("Platform statistics:")), path, out)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&remote, "platform", false, i18n.T("Also show the platform statistics"))
	cmd.Flags().AddFlagSet(keyFlags(&key))
	return cmd
}

func printPaths(w io.Writer, title string, paths []string) {
	if len(paths) == 0 {
		fmt.Fprintf(w, "%s %s\n", color(w, colorBlue, title), i18n.T("none"))
		return
	}
	fmt.Fprintf(w, "%s %d\n", color(w, colorBlue, title), len(paths))
	for _, p := range paths {
		fmt.Fprintf(w, "  %s\n", p)
	}
}

// ---------------------------------------------------------------------------
// auth
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: i18n.T("Manage platform API keys"),
		Long: fmt.Sprintf(i18n.T(`Manage the API keys used for the translation platform.

Keys are stored per platform URL in %s. The key used by sync is, in order:
the --key flag, $%s, the stored key.

Examples:
  catsync auth login                              Key for the configured platform
  catsync auth login https://hosted.weblate.org   Key for a given platform
  catsync auth logout --all                       Remove every stored key
  catsync auth list                               Show stored keys`), settings.FilePath(), settings.EnvKey),
	}
	cmd.AddCommand(newAuthLoginCmd(), newAuthLogoutCmd(), newAuthListCmd())
	return cmd
}

// platformURL returns args[0] or the URL of the configured platform.
func platformURL(args []string) (string, error) {
	if len(args) > 0 {
		return args[0], nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.Platform.URL == "" {
		return "", errors.New(i18n.T("no platform URL configured; pass it as an argument"))
	}
	return cfg.Platform.URL, nil
}

func newAuthLoginCmd() *cobra.Command {
	var (
		key  string
		user string
	)

	cmd := &cobra.Command{
		Use:   "login [platform-url]",
		Short: i18n.T("Store the API key of a platform"),
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := platformURL(args)
			if err != nil {
				return err
			}
			existing := settings.Get(url)
			if key == "" {
				errw := cmd.ErrOrStderr()
				fmt.Fprintf(errw, "%s %s\n", color(errw, colorBlue, i18n.T("Platform:")), url)
				if existing != nil {
					fmt.Fprintf(errw, i18n.T("Current key: %s. Enter a new key or press Enter to keep it: "), settings.MaskKey(existing.Key))
				} else {
					fmt.Fprint(errw, i18n.T("API key: "))
				}
				if key, err = readLine(cmd.InOrStdin()); err != nil {
					return err
				}
			}
			if key == "" {
				if existing != nil {
					log.Info().Msg(i18n.T("keeping the existing key"))
					return nil
				}
				return errors.New(i18n.T("no API key provided"))
			}
			if err := settings.Set(url, &settings.Info{Key: key, User: user}); err != nil {
				return err
			}
			log.Info().Str("platform", settings.NormalizeURL(url)).Msg(i18n.T("API key saved"))
			return nil
		},
	}

	cmd.Flags().StringVar(&key, "key", "", i18n.T("API key (default: read from stdin)"))
	cmd.Flags().StringVar(&user, "user", "", i18n.T("User name shown by auth list"))
	return cmd
}

func readLine(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", errors.New(i18n.T("no input received"))
	}
	return strings.TrimSpace(scanner.Text()), nil
}

func newAuthLogoutCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "logout [platform-url]",
		Short: i18n.T("Remove stored API keys"),
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				if err := settings.RemoveAll(); err != nil {
					return err
				}
				log.Info().Msg(i18n.T("all stored keys removed"))
				return nil
			}
			url, err := platformURL(args)
			if err != nil {
				return err
			}
			if err := settings.Remove(url); err != nil {
				return err
			}
			log.Info().Str("platform", settings.NormalizeURL(url)).Msg(i18n.T("API key removed"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, i18n.T("Remove the keys of every platform"))
	_ = cmd.RegisterFlagCompletionFunc("all", cobra.NoFileCompletions)
	cmd.ValidArgsFunction = func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return settings.Platforms(), cobra.ShellCompDirectiveNoFileComp
	}
	return cmd
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   i18n.T("Show stored API keys"),
		Args:    cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			w := cmd.OutOrStdout()
			platforms := settings.Platforms()
			if len(platforms) == 0 {
				fmt.Fprintln(w, color(w, colorYellow, i18n.T("No stored keys")))
			}
			for _, url := range platforms {
				info := settings.Get(url)
				line := fmt.Sprintf("  %-40s %s", url, color(w, colorGreen, settings.MaskKey(info.Key)))
				if info.User != "" {
					line += " (" + info.User + ")"
				}
				fmt.Fprintln(w, line)
			}
			if env := os.Getenv(settings.EnvKey); env != "" {
				fmt.Fprintf(w, "  %-40s %s %s\n", "$"+settings.EnvKey, color(w, colorGreen, settings.MaskKey(env)), i18n.T("(overrides stored keys)"))
			}
		},
	}
}
