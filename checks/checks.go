// Package checks runs quality checks on translated catalog entries.
//
// Check names follow the translation platform's identifiers so results can
// be compared with what translators see there. Flags on an entry tune the
// checks: "ignore-<name>" disables a check, "strict-same" makes the same
// check also flag short and symbol-only strings.
package checks

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	po "github.com/minios-linux/catsync/pofile"
)

// Check inspects one source/translation pair.
type Check struct {
	Name        string
	Description string
	// Applies restricts the check to entries with these flags; empty means
	// every entry.
	Applies []string
	Fn      func(source, target string, e *po.Entry) bool
}

// Failure is one failing check on one entry.
type Failure struct {
	Check string
	Entry *po.Entry
}

var (
	printfRe      = regexp.MustCompile(`%(?:\d+\$)?[-+ #0]*(?:\d+|\*)?(?:\.(?:\d+|\*))?(?:hh|h|ll|l|L|q|j|z|t)?[diouxXeEfFgGaAcspn%]`)
	pythonRe      = regexp.MustCompile(`%(?:\([^)]+\))?[-+ #0]*(?:\d+|\*)?(?:\.(?:\d+|\*))?[diouxXeEfFgGcrsa%]`)
	pythonBraceRe = regexp.MustCompile(`\{[^{}]*\}`)
)

// All are the checks run by Run, in report order.
var All = []Check{
	{Name: "same", Description: "Unchanged translation", Fn: checkSame},
	{Name: "begin-newline", Description: "Starting newline", Fn: func(s, t string, _ *po.Entry) bool {
		return strings.HasPrefix(s, "\n") != strings.HasPrefix(t, "\n")
	}},
	{Name: "end-newline", Description: "Trailing newline", Fn: func(s, t string, _ *po.Entry) bool {
		return strings.HasSuffix(s, "\n") != strings.HasSuffix(t, "\n")
	}},
	{Name: "end-stop", Description: "Mismatched full stop", Fn: endsMismatch(".", "。", "।", "۔")},
	{Name: "end-colon", Description: "Mismatched colon", Fn: endsMismatch(":", "：")},
	{Name: "end-question", Description: "Mismatched question mark", Fn: endsMismatch("?", "？", "؟", ";")},
	{Name: "end-exclamation", Description: "Mismatched exclamation mark", Fn: endsMismatch("!", "！")},
	{Name: "double-space", Description: "Double space", Fn: func(s, t string, _ *po.Entry) bool {
		return !strings.Contains(s, "  ") && strings.Contains(t, "  ")
	}},
	{Name: "printf-format", Description: "Printf format", Applies: []string{"c-format", "python-format"}, Fn: printfFormat},
	{Name: "python-brace-format", Description: "Python brace format", Applies: []string{"python-brace-format"}, Fn: placeholders(pythonBraceRe)},
}

// ByName returns the check called name.
func ByName(name string) (Check, bool) {
	for _, c := range All {
		if c.Name == name {
			return c, true
		}
	}
	return Check{}, false
}

func (c Check) applies(e *po.Entry) bool {
	if e.HasFlag("ignore-" + c.Name) {
		return false
	}
	if len(c.Applies) == 0 {
		return true
	}
	for _, f := range c.Applies {
		if e.HasFlag(f) {
			return true
		}
	}
	return false
}

// Entry runs the checks on a translated entry and returns the names of the
// failing ones. Untranslated and fuzzy entries are not checked. Plural
// forms are checked against msgid_plural except for the first form.
func Entry(e *po.Entry) []string {
	if !e.IsTranslated() {
		return nil
	}
	forms := e.Translations()
	var failed []string
	for _, c := range All {
		if !c.applies(e) {
			continue
		}
		for i, target := range forms {
			source := e.MsgID
			if i > 0 && e.MsgIDPlural != "" {
				source = e.MsgIDPlural
			}
			if c.Name == "same" && i > 0 {
				break
			}
			if c.Fn(source, target, e) {
				failed = append(failed, c.Name)
				break
			}
		}
	}
	return failed
}

// Run checks every live entry of a catalog.
func Run(f *po.File) []Failure {
	var out []Failure
	for _, e := range f.Live() {
		for _, name := range Entry(e) {
			out = append(out, Failure{Check: name, Entry: e})
		}
	}
	return out
}

// Summary counts failures per check name.
func Summary(failures []Failure) map[string]int {
	m := make(map[string]int)
	for _, f := range failures {
		m[f.Check]++
	}
	return m
}

// FailingEntries counts entries with at least one failure.
func FailingEntries(failures []Failure) int {
	seen := make(map[*po.Entry]bool)
	for _, f := range failures {
		seen[f.Entry] = true
	}
	return len(seen)
}

// SortedNames returns the keys of a summary ordered by count, then name.
func SortedNames(summary map[string]int) []string {
	names := make([]string, 0, len(summary))
	for n := range summary {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool {
		if summary[names[i]] != summary[names[j]] {
			return summary[names[i]] > summary[names[j]]
		}
		return names[i] < names[j]
	})
	return names
}

func checkSame(source, target string, e *po.Entry) bool {
	if source != target {
		return false
	}
	if e.HasFlag("strict-same") {
		return true
	}
	// Single words shorter than four letters, numbers and markup-only
	// strings are commonly identical across languages.
	letters := 0
	for _, r := range source {
		if unicode.IsLetter(r) {
			letters++
		}
	}
	if letters < 4 {
		return false
	}
	stripped := printfRe.ReplaceAllString(pythonBraceRe.ReplaceAllString(source, ""), "")
	return strings.ContainsFunc(stripped, unicode.IsLetter)
}

func endsMismatch(marks ...string) func(string, string, *po.Entry) bool {
	ends := func(s string) bool {
		s = strings.TrimRightFunc(s, unicode.IsSpace)
		for _, m := range marks {
			if strings.HasSuffix(s, m) {
				return true
			}
		}
		return false
	}
	return func(source, target string, _ *po.Entry) bool {
		if strings.TrimSpace(source) == "" || strings.TrimSpace(target) == "" {
			return false
		}
		// An ellipsis is not a full stop.
		if strings.HasSuffix(strings.TrimSpace(source), "...") || strings.HasSuffix(strings.TrimSpace(target), "…") {
			return false
		}
		return ends(source) != ends(target)
	}
}

// printfFormat compares C placeholders, or Python ones for entries flagged
// python-format.
func printfFormat(source, target string, e *po.Entry) bool {
	re := printfRe
	if e.HasFlag("python-format") {
		re = pythonRe
	}
	return placeholders(re)(source, target, e)
}

func placeholders(re *regexp.Regexp) func(string, string, *po.Entry) bool {
	return func(source, target string, _ *po.Entry) bool {
		return !sameMultiset(re.FindAllString(source, -1), re.FindAllString(target, -1))
	}
}

func sameMultiset(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	count := make(map[string]int, len(a))
	for _, s := range a {
		count[s]++
	}
	for _, s := range b {
		count[s]--
		if count[s] < 0 {
			return false
		}
	}
	return true
}
