package main

import (
	"encoding/json"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Session rows may only be written by the answer session aggregate. This
// tool walks the service and transport layers and reports every call that
// writes a session through a repo instead.

type callsite struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Func     string `json:"func"`
	Receiver string `json:"receiver"`
	Method   string `json:"method"`
}

type boundaryReport struct {
	ScannedFiles       int        `json:"scanned_files"`
	AggregateCallsites []callsite `json:"aggregate_callsites"`
	Violations         []callsite `json:"violations"`
}

var sessionRepoWrites = map[string]bool{
	"Create":            true,
	"ConditionalUpdate": true,
}

var aggregateWrites = map[string]bool{
	"SaveAnswerDiff": true,
}

var scannedDirs = []string{
	filepath.Join("internal", "services"),
	filepath.Join("internal", "http"),
	filepath.Join("internal", "jobs"),
}

func main() {
	root := "."
	if len(os.Args) > 1 {
		root = os.Args[1]
	}

	var report boundaryReport
	fset := token.NewFileSet()
	for _, dir := range scannedDirs {
		err := filepath.WalkDir(filepath.Join(root, dir), func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
				return nil
			}
			f, err := parser.ParseFile(fset, path, nil, 0)
			if err != nil {
				return fmt.Errorf("parse %s: %w", path, err)
			}
			rel, relErr := filepath.Rel(root, path)
			if relErr != nil {
				rel = path
			}
			report.ScannedFiles++
			scanFile(fset, f, rel, &report)
			return nil
		})
		if err != nil {
			exitf("walk %s: %v", dir, err)
		}
	}

	sortCallsites(report.AggregateCallsites)
	sortCallsites(report.Violations)
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		exitf("marshal report: %v", err)
	}
	fmt.Println(string(out))
	if len(report.Violations) > 0 {
		os.Exit(1)
	}
}

func scanFile(fset *token.FileSet, f *ast.File, rel string, report *boundaryReport) {
	for _, decl := range f.Decls {
		fn, ok := decl.(*ast.FuncDecl)
		if !ok || fn.Body == nil {
			continue
		}
		name := funcName(fn)
		ast.Inspect(fn.Body, func(n ast.Node) bool {
			call, ok := n.(*ast.CallExpr)
			if !ok {
				return true
			}
			sel, ok := call.Fun.(*ast.SelectorExpr)
			if !ok {
				return true
			}
			recv := exprString(sel.X)
			site := callsite{
				File:     rel,
				Line:     fset.Position(call.Pos()).Line,
				Func:     name,
				Receiver: recv,
				Method:   sel.Sel.Name,
			}
			switch {
			case aggregateWrites[sel.Sel.Name] && strings.Contains(strings.ToLower(recv), "aggregate"):
				report.AggregateCallsites = append(report.AggregateCallsites, site)
			case sessionRepoWrites[sel.Sel.Name] && strings.Contains(strings.ToLower(recv), "session"):
				report.Violations = append(report.Violations, site)
			}
			return true
		})
	}
}

func funcName(fn *ast.FuncDecl) string {
	if fn.Recv == nil || len(fn.Recv.List) == 0 {
		return fn.Name.Name
	}
	t := fn.Recv.List[0].Type
	if star, ok := t.(*ast.StarExpr); ok {
		t = star.X
	}
	return exprString(t) + "." + fn.Name.Name
}

func exprString(e ast.Expr) string {
	switch v := e.(type) {
	case *ast.Ident:
		return v.Name
	case *ast.SelectorExpr:
		return exprString(v.X) + "." + v.Sel.Name
	case *ast.CallExpr:
		return exprString(v.Fun) + "()"
	case *ast.IndexExpr:
		return exprString(v.X) + "[]"
	default:
		return fmt.Sprintf("%T", e)
	}
}

func sortCallsites(in []callsite) {
	sort.Slice(in, func(i, j int) bool {
		if in[i].File != in[j].File {
			return in[i].File < in[j].File
		}
		return in[i].Line < in[j].Line
	})
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
