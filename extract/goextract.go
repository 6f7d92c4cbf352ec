package extract

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	po "github.com/minios-linux/catsync/pofile"
)

// Keyword is a function call to scan for and the arguments it carries.
// It follows the xgettext --keyword syntax:
//
//	"T"             T(msgid)
//	"N:1,2"         N(singular, plural, n)
//	"pgettext:1c,2" pgettext(context, msgid)
type Keyword struct {
	// FuncName is a bare name matching any receiver or package, or
	// "pkg.Func" matching one selector.
	FuncName   string
	MsgIDArg   int
	PluralArg  int
	ContextArg int
}

// ParseKeyword parses an xgettext-style keyword spec.
func ParseKeyword(spec string) Keyword {
	name, args, found := strings.Cut(spec, ":")
	kw := Keyword{FuncName: name, MsgIDArg: 1}
	if !found {
		return kw
	}

	var positional []int
	for _, arg := range strings.Split(args, ",") {
		arg = strings.TrimSpace(arg)
		if n, err := strconv.Atoi(strings.TrimSuffix(arg, "c")); err == nil {
			if strings.HasSuffix(arg, "c") {
				kw.ContextArg = n
			} else {
				positional = append(positional, n)
			}
		}
	}
	if len(positional) > 0 {
		kw.MsgIDArg = positional[0]
	}
	if len(positional) > 1 {
		kw.PluralArg = positional[1]
	}
	return kw
}

// ExtractGo scans Go files for calls matching keywords and returns the
// messages as a template without header. References are made relative to
// root and entries are ordered by their first reference.
func ExtractGo(root string, files []string, keywords []string) (*po.File, error) {
	if len(keywords) == 0 {
		return nil, fmt.Errorf("no keywords specified for Go extraction")
	}
	kwMap := make(map[string][]Keyword)
	for _, spec := range keywords {
		kw := ParseKeyword(spec)
		kwMap[kw.FuncName] = append(kwMap[kw.FuncName], kw)
	}

	entries := make(map[string]*po.Entry)
	fset := token.NewFileSet()
	for _, path := range files {
		if err := extractFromFile(fset, root, path, kwMap, entries); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("skipping unparsable Go file")
		}
	}

	f := po.NewFile()
	for _, e := range entries {
		f.Entries = append(f.Entries, e)
	}
	sort.Slice(f.Entries, func(i, j int) bool {
		return lessReference(f.Entries[i].References[0], f.Entries[j].References[0])
	})
	return f, nil
}

// lessReference orders "file:line" references by file, then numerically by
// line.
func lessReference(a, b string) bool {
	fa, la, _ := strings.Cut(a, ":")
	fb, lb, _ := strings.Cut(b, ":")
	if fa != fb {
		return fa < fb
	}
	na, _ := strconv.Atoi(la)
	nb, _ := strconv.Atoi(lb)
	return na < nb
}

func extractFromFile(fset *token.FileSet, root, path string, kwMap map[string][]Keyword, entries map[string]*po.Entry) error {
	f, err := parser.ParseFile(fset, path, nil, 0)
	if err != nil {
		return err
	}
	ref := path
	if rel, err := filepath.Rel(root, path); err == nil {
		ref = filepath.ToSlash(rel)
	}

	ast.Inspect(f, func(n ast.Node) bool {
		call, ok := n.(*ast.CallExpr)
		if !ok {
			return true
		}

		var funcName string
		switch fn := call.Fun.(type) {
		case *ast.Ident:
			funcName = fn.Name
		case *ast.SelectorExpr:
			funcName = fn.Sel.Name
			if ident, ok := fn.X.(*ast.Ident); ok {
				if qualified := ident.Name + "." + fn.Sel.Name; kwMap[qualified] != nil {
					funcName = qualified
				}
			}
		default:
			return true
		}

		location := fmt.Sprintf("%s:%d", ref, fset.Position(call.Lparen).Line)
		for _, kw := range kwMap[funcName] {
			extractCall(call, kw, location, entries)
		}
		return true
	})
	return nil
}

func extractCall(call *ast.CallExpr, kw Keyword, location string, entries map[string]*po.Entry) {
	e := &po.Entry{MsgID: stringArgAt(call, kw.MsgIDArg)}
	if e.MsgID == "" {
		return
	}
	if kw.PluralArg > 0 {
		if e.MsgIDPlural = stringArgAt(call, kw.PluralArg); e.MsgIDPlural == "" {
			return
		}
	}
	if kw.ContextArg > 0 {
		if e.MsgCtxt = stringArgAt(call, kw.ContextArg); e.MsgCtxt == "" {
			return
		}
	}
	if existing, ok := entries[e.Key()]; ok {
		existing.References = append(existing.References, location)
		if existing.MsgIDPlural == "" {
			existing.MsgIDPlural = e.MsgIDPlural
		}
		return
	}
	e.References = []string{location}
	entries[e.Key()] = e
}

// stringArgAt returns the string constant at 1-based argument position, or
// "" when the argument is missing or not a constant string.
func stringArgAt(call *ast.CallExpr, pos int) string {
	idx := pos - 1
	if idx < 0 || idx >= len(call.Args) {
		return ""
	}
	return stringFromExpr(call.Args[idx])
}

// stringFromExpr handles string literals and their concatenation.
func stringFromExpr(expr ast.Expr) string {
	switch e := expr.(type) {
	case *ast.BasicLit:
		if e.Kind == token.STRING {
			s, err := strconv.Unquote(e.Value)
			if err != nil {
				return ""
			}
			return s
		}
	case *ast.BinaryExpr:
		if e.Op == token.ADD {
			left, right := stringFromExpr(e.X), stringFromExpr(e.Y)
			if left != "" && right != "" {
				return left + right
			}
		}
	case *ast.ParenExpr:
		return stringFromExpr(e.X)
	}
	return ""
}
