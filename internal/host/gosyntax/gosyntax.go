// Package gosyntax provides syntax trees for Go documents.
package gosyntax

import (
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/tools/go/ast/astutil"

	"github.com/fakeyudi/gazetrace/internal/host"
)

// Provider parses Go documents on demand and caches the latest tree per path.
// Documents that are not Go source have no syntax nodes.
type Provider struct {
	mu    sync.Mutex
	cache map[string]*parsed
}

type parsed struct {
	text string
	fset *token.FileSet
	file *ast.File
	base int
}

func New() *Provider {
	return &Provider{cache: make(map[string]*parsed)}
}

func (p *Provider) LeafAt(doc host.Document, offset int) (host.Node, bool) {
	if !strings.EqualFold(filepath.Ext(doc.Path()), ".go") {
		return nil, false
	}
	text := doc.Text()
	if offset < 0 || offset >= len(text) {
		return nil, false
	}
	tree := p.parse(doc.Path(), text)
	if tree == nil {
		return nil, false
	}

	pos := token.Pos(tree.base + offset)
	path, _ := astutil.PathEnclosingInterval(tree.file, pos, pos+1)
	if len(path) == 0 {
		return nil, false
	}
	if _, isFile := path[0].(*ast.File); isFile {
		return nil, false
	}
	return &node{tree: tree, path: path}, true
}

func (p *Provider) parse(path, text string) *parsed {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cur, ok := p.cache[path]; ok && cur.text == text {
		return cur
	}
	fset := token.NewFileSet()
	// A file with syntax errors still yields a partial tree worth using.
	file, _ := parser.ParseFile(fset, path, text, parser.SkipObjectResolution)
	if file == nil {
		delete(p.cache, path)
		return nil
	}
	tf := fset.File(file.Pos())
	if tf == nil {
		return nil
	}
	tree := &parsed{text: text, fset: fset, file: file, base: tf.Base()}
	p.cache[path] = tree
	return tree
}

// node is path[0] of an enclosing-interval path.
type node struct {
	tree *parsed
	path []ast.Node
}

func (n *node) Range() (int, int) {
	if n.IsRoot() {
		return 0, len(n.tree.text)
	}
	start := int(n.path[0].Pos()) - n.tree.base
	end := int(n.path[0].End()) - n.tree.base
	return clamp(start, len(n.tree.text)), clamp(end, len(n.tree.text))
}

func (n *node) Text() string {
	start, end := n.Range()
	return n.tree.text[start:end]
}

func (n *node) Kind() string {
	kind := strings.TrimPrefix(fmt.Sprintf("%T", n.path[0]), "*ast.")
	switch x := n.path[0].(type) {
	case *ast.BasicLit:
		return kind + "(" + x.Kind.String() + ")"
	case *ast.BinaryExpr:
		return kind + "(" + x.Op.String() + ")"
	case *ast.GenDecl:
		return kind + "(" + x.Tok.String() + ")"
	}
	return kind
}

func (n *node) Parent() (host.Node, bool) {
	if len(n.path) < 2 {
		return nil, false
	}
	return &node{tree: n.tree, path: n.path[1:]}, true
}

func (n *node) IsRoot() bool {
	_, ok := n.path[0].(*ast.File)
	return ok
}

func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
