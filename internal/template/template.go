// Package template lists the data references of parsed text/template trees,
// so a document's expected values can be shown before it is filled.
package template

import (
	"maps"
	"slices"
	"text/template"
	"text/template/parse"
)

// references is the set of ".Field" and "$var.Field" paths seen in a tree.
type references map[string]struct{}

func (refs references) walk(node parse.Node) {
	switch n := node.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, child := range n.Nodes {
			refs.walk(child)
		}
	case *parse.ActionNode:
		refs.walk(n.Pipe)
	case *parse.IfNode:
		refs.walkBranch(&n.BranchNode)
	case *parse.RangeNode:
		refs.walkBranch(&n.BranchNode)
	case *parse.WithNode:
		refs.walkBranch(&n.BranchNode)
	case *parse.TemplateNode:
		// the invoked template's own tree is walked on its own
		refs.walk(n.Pipe)
	case *parse.PipeNode:
		if n == nil {
			return
		}
		for _, cmd := range n.Cmds {
			refs.walk(cmd)
		}
	case *parse.CommandNode:
		for _, arg := range n.Args {
			refs.walk(arg)
		}
	case *parse.ChainNode:
		refs.walk(n.Node)
	case *parse.FieldNode:
		refs[n.String()] = struct{}{}
	case *parse.VariableNode:
		if name := n.String(); name != "$" {
			refs[name] = struct{}{}
		}
	}
}

func (refs references) walkBranch(b *parse.BranchNode) {
	refs.walk(b.Pipe)
	refs.walk(b.List)
	refs.walk(b.ElseList)
}

// ExtractAllVariables returns, sorted, the field and variable paths
// referenced by t and every template associated with it.
func ExtractAllVariables(t *template.Template) []string {
	refs := make(references)
	for _, tpl := range t.Templates() {
		if tpl.Tree != nil {
			refs.walk(tpl.Tree.Root)
		}
	}

	return slices.Sorted(maps.Keys(refs))
}
