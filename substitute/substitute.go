// Package substitute applies in-place text substitutions to generated
// catalogs, the way a maintainer would run sed over them.
package substitute

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	po "github.com/minios-linux/catsync/pofile"
)

// Rule is one substitution. Either Pattern or Header must be set.
type Rule struct {
	// Files are glob patterns relative to the root directory.
	Files []string `yaml:"files"`
	// Pattern is an RE2 expression matched against the whole file; "."
	// does not cross lines unless the pattern enables (?s).
	Pattern string `yaml:"pattern,omitempty"`
	// Replace is the replacement; $1 and ${name} expand submatches.
	Replace string `yaml:"replace,omitempty"`
	// Header names a catalog header field to set to Value.
	Header string `yaml:"header,omitempty"`
	Value  string `yaml:"value,omitempty"`

	re *regexp.Regexp
}

// Compile validates the rule and prepares its expression.
func (r *Rule) Compile() error {
	if len(r.Files) == 0 {
		return errors.New("substitution has no files")
	}
	switch {
	case r.Header != "" && r.Pattern != "":
		return errors.New("substitution sets both pattern and header")
	case r.Header != "":
		return nil
	case r.Pattern == "":
		return errors.New("substitution needs a pattern or a header")
	}
	re, err := regexp.Compile(r.Pattern)
	if err != nil {
		return fmt.Errorf("substitution pattern: %w", err)
	}
	r.re = re
	return nil
}

// Matches expands the rule's globs under root, sorted and de-duplicated.
func (r *Rule) Matches(root string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	for _, glob := range r.Files {
		matches, err := filepath.Glob(filepath.Join(root, glob))
		if err != nil {
			return nil, fmt.Errorf("glob %q: %w", glob, err)
		}
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				files = append(files, m)
			}
		}
	}
	sort.Strings(files)
	return files, nil
}

// ApplyBytes returns data with the rule applied.
func (r *Rule) ApplyBytes(data []byte) ([]byte, error) {
	if r.Header == "" {
		if r.re == nil {
			if err := r.Compile(); err != nil {
				return nil, err
			}
		}
		return r.re.ReplaceAll(data, []byte(r.Replace)), nil
	}

	f, err := po.Parse(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if f.HeaderField(r.Header) == r.Value {
		return data, nil
	}
	f.SetHeaderField(r.Header, r.Value)
	return f.Bytes(), nil
}

// Apply runs every rule over its files under root and returns the files
// whose content changed. Unchanged files are not rewritten.
func Apply(root string, rules []Rule) ([]string, error) {
	changed := make(map[string]bool)
	for i := range rules {
		r := &rules[i]
		if err := r.Compile(); err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		files, err := r.Matches(root)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i+1, err)
		}
		for _, path := range files {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", path, err)
			}
			out, err := r.ApplyBytes(data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			if bytes.Equal(out, data) {
				continue
			}
			if err := po.WriteFileAtomic(path, out); err != nil {
				return nil, err
			}
			changed[path] = true
		}
	}

	files := make([]string, 0, len(changed))
	for f := range changed {
		files = append(files, f)
	}
	sort.Strings(files)
	return files, nil
}
