// Package merge updates catalogs from their template and folds fallback
// catalogs into them.
package merge

import (
	"sort"

	po "github.com/minios-linux/catsync/pofile"
)

// Merge updates a catalog from a template, like msgmerge:
//   - entries follow the template order;
//   - translations of entries still in the template are kept;
//   - new template entries start untranslated;
//   - entries that left the template become obsolete.
//
// Entries are matched on context and msgid.
func Merge(poFile, potFile *po.File) *po.File {
	result := po.NewFile()

	result.Header = &po.Entry{}
	if poFile.Header != nil {
		result.Header = poFile.Header.Clone()
	}
	if potFile.Header != nil {
		if date := potFile.HeaderField("POT-Creation-Date"); date != "" {
			result.SetHeaderField("POT-Creation-Date", date)
		}
	}

	existing := poFile.Index()
	matched := make(map[string]bool, len(existing))

	for _, tmpl := range potFile.Live() {
		key := tmpl.Key()
		if matched[key] {
			continue
		}
		matched[key] = true

		if old, ok := existing[key]; ok {
			merged := &po.Entry{
				TranslatorComments: old.TranslatorComments,
				ExtractedComments:  tmpl.ExtractedComments,
				References:         tmpl.References,
				Flags:              mergeFlags(old.Flags, tmpl.Flags),
				PreviousMsgID:      old.PreviousMsgID,
				MsgCtxt:            tmpl.MsgCtxt,
				MsgID:              tmpl.MsgID,
				MsgIDPlural:        tmpl.MsgIDPlural,
				MsgStr:             old.MsgStr,
				MsgStrPlural:       old.MsgStrPlural,
			}
			if merged.MsgStrPlural == nil {
				merged.MsgStrPlural = make(map[int]string)
			}
			result.Entries = append(result.Entries, merged)
			continue
		}

		result.Entries = append(result.Entries, &po.Entry{
			ExtractedComments: tmpl.ExtractedComments,
			References:        tmpl.References,
			Flags:             withoutFuzzy(tmpl.Flags),
			MsgCtxt:           tmpl.MsgCtxt,
			MsgID:             tmpl.MsgID,
			MsgIDPlural:       tmpl.MsgIDPlural,
			MsgStrPlural:      make(map[int]string),
		})
	}

	for _, e := range poFile.Entries {
		if e.MsgID == "" || matched[e.Key()] {
			continue
		}
		if e.Obsolete {
			result.Entries = append(result.Entries, e)
			continue
		}
		obsolete := e.Clone()
		obsolete.Obsolete = true
		obsolete.References = nil
		result.Entries = append(result.Entries, obsolete)
		matched[e.Key()] = true
	}

	return result
}

// mergeFlags keeps the catalog's fuzzy state and takes every other flag from
// the template, fuzzy first and the rest sorted.
func mergeFlags(poFlags, potFlags []string) []string {
	set := make(map[string]bool)
	fuzzy := false
	for _, f := range poFlags {
		if f == "fuzzy" {
			fuzzy = true
		}
	}
	for _, f := range potFlags {
		if f != "fuzzy" {
			set[f] = true
		}
	}

	var result []string
	if fuzzy {
		result = append(result, "fuzzy")
	}
	rest := make([]string, 0, len(set))
	for f := range set {
		rest = append(rest, f)
	}
	sort.Strings(rest)
	return append(result, rest...)
}

func withoutFuzzy(flags []string) []string {
	var out []string
	for _, f := range flags {
		if f != "fuzzy" {
			out = append(out, f)
		}
	}
	return out
}
