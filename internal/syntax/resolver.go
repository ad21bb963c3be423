// Package syntax resolves a document offset to the syntax token under it
// and the chain of enclosing nodes.
package syntax

import (
	"github.com/fakeyudi/gazetrace/internal/host"
)

// NoNodeRemark marks a token for which the host had no syntax node.
const NoNodeRemark = "no syntax node"

// Ancestor is one level of the enclosing-node chain.
type Ancestor struct {
	Text  string
	Kind  string
	Start int
	End   int
}

// Token is the resolved leaf plus its ancestors, innermost first. The leaf
// itself is Ancestors[0]; the document root is never included.
type Token struct {
	Found     bool
	Text      string
	Kind      string
	Remark    string
	Ancestors []Ancestor
}

// Resolver walks the host syntax tree.
type Resolver struct {
	syntax host.SyntaxProvider
	// MaxDepth caps the ancestor walk. Zero means no cap.
	MaxDepth int
}

func NewResolver(p host.SyntaxProvider) *Resolver {
	return &Resolver{syntax: p}
}

// Resolve never fails: a missing node yields Found == false with NoNodeRemark.
func (r *Resolver) Resolve(doc host.Document, offset int) Token {
	if r.syntax == nil || doc == nil {
		return Token{Remark: NoNodeRemark}
	}
	leaf, ok := r.syntax.LeafAt(doc, offset)
	if !ok || leaf == nil || leaf.IsRoot() {
		return Token{Remark: NoNodeRemark}
	}

	tok := Token{Found: true, Text: leaf.Text(), Kind: leaf.Kind()}
	for n, ok := leaf, true; ok && n != nil && !n.IsRoot(); n, ok = n.Parent() {
		if r.MaxDepth > 0 && len(tok.Ancestors) >= r.MaxDepth {
			break
		}
		start, end := n.Range()
		tok.Ancestors = append(tok.Ancestors, Ancestor{
			Text:  n.Text(),
			Kind:  n.Kind(),
			Start: start,
			End:   end,
		})
	}
	return tok
}
