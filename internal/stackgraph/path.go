package stackgraph

import (
	"strconv"
	"strings"
)

// Stack is a symbol stack stored top first. Stacks are never mutated in
// place; every operation returns a new slice.
type Stack []string

func (s Stack) push(sym string) Stack {
	out := make(Stack, 0, len(s)+1)
	out = append(out, sym)
	return append(out, s...)
}

func (s Stack) appendBottom(sym string) Stack {
	return append(s[:len(s):len(s)], sym)
}

func (s Stack) hasPrefix(p Stack) bool {
	if len(p) > len(s) {
		return false
	}
	for i := range p {
		if s[i] != p[i] {
			return false
		}
	}
	return true
}

func (s Stack) String() string {
	return strings.Join(s, " ")
}

// PartialPath is a walk from Start to End. Traversing it requires Pre on top
// of the incoming symbol stack and replaces it with Post.
type PartialPath struct {
	Start  Handle
	End    Handle
	Pre    Stack
	Post   Stack
	Length int
}

// startingAt returns the empty path at h, with h's own effect applied.
func startingAt(g *Graph, h Handle) (PartialPath, bool) {
	p := PartialPath{Start: h, End: h}
	return p.apply(g.Node(h))
}

// extend appends the edge End -> next.
func (p PartialPath) extend(g *Graph, next Handle) (PartialPath, bool) {
	q := p
	q.End = next
	q.Length++
	return q.apply(g.Node(next))
}

func (p PartialPath) apply(n *Node) (PartialPath, bool) {
	switch n.Kind {
	case PushNode:
		p.Post = p.Post.push(n.Symbol)
	case PopNode:
		if len(p.Post) > 0 {
			if p.Post[0] != n.Symbol {
				return p, false
			}
			p.Post = p.Post[1:]
		} else {
			p.Pre = p.Pre.appendBottom(n.Symbol)
		}
	}
	return p, true
}

// Concat joins p with q, which must start where p ends. It reports false
// when the symbol stacks cannot compose.
func Concat(p, q PartialPath) (PartialPath, bool) {
	if p.End != q.Start {
		return PartialPath{}, false
	}
	r := PartialPath{Start: p.Start, End: q.End, Length: p.Length + q.Length}
	switch {
	case p.Post.hasPrefix(q.Pre):
		r.Pre = p.Pre
		rest := p.Post[len(q.Pre):]
		r.Post = make(Stack, 0, len(q.Post)+len(rest))
		r.Post = append(r.Post, q.Post...)
		r.Post = append(r.Post, rest...)
	case q.Pre.hasPrefix(p.Post):
		rest := q.Pre[len(p.Post):]
		r.Pre = make(Stack, 0, len(p.Pre)+len(rest))
		r.Pre = append(r.Pre, p.Pre...)
		r.Pre = append(r.Pre, rest...)
		r.Post = q.Post
	default:
		return PartialPath{}, false
	}
	return r, true
}

// IsComplete reports whether p resolves a reference to a definition with
// nothing left on either stack.
func (p PartialPath) IsComplete(g *Graph) bool {
	return g.Node(p.Start).IsReference && g.Node(p.End).IsDefinition &&
		len(p.Pre) == 0 && len(p.Post) == 0
}

// stateKey identifies a search state: the same node reached with the same
// stacks behaves identically from then on.
func (p PartialPath) stateKey() string {
	var b strings.Builder
	b.Grow(16 + 8*(len(p.Pre)+len(p.Post)))
	b.WriteString(strconv.Itoa(int(p.End)))
	b.WriteByte('|')
	for _, s := range p.Pre {
		b.WriteString(s)
		b.WriteByte(0)
	}
	b.WriteByte('|')
	for _, s := range p.Post {
		b.WriteString(s)
		b.WriteByte(0)
	}
	return b.String()
}
