// Package autodiff is a small reverse-mode automatic differentiation tape over
// float64 vectors. Nodes are recorded in creation order, so walking the tape
// backwards visits every node after all of its consumers.
package autodiff

import "fmt"

type Tape struct {
	nodes []*Node
}

func NewTape() *Tape {
	return &Tape{}
}

// Node is a vector value recorded on a tape. A node of length 1 is a scalar
// and broadcasts against vectors in binary operations.
type Node struct {
	Value    []float64
	Grad     []float64
	tape     *Tape
	backward func()
}

func (t *Tape) newNode(value []float64) *Node {
	var n = &Node{
		Value: value,
		Grad:  make([]float64, len(value)),
		tape:  t,
	}
	t.nodes = append(t.nodes, n)
	return n
}

// Variable records values whose gradient the caller is interested in.
// The slice is referenced, not copied.
func (t *Tape) Variable(values []float64) *Node {
	return t.newNode(values)
}

func (t *Tape) Constant(values ...float64) *Node {
	var v = make([]float64, len(values))
	copy(v, values)
	return t.newNode(v)
}

// Backward propagates d(out)/d(node) into Grad of every node recorded before out.
// out must be a scalar.
func (t *Tape) Backward(out *Node) {
	if out.tape != t {
		panic("autodiff: node belongs to another tape")
	}
	if len(out.Value) != 1 {
		panic(fmt.Sprintf("autodiff: backward from non scalar node of length %v", len(out.Value)))
	}
	for _, n := range t.nodes {
		for i := range n.Grad {
			n.Grad[i] = 0
		}
	}
	out.Grad[0] = 1
	for i := len(t.nodes) - 1; i >= 0; i-- {
		var n = t.nodes[i]
		if n.backward != nil {
			n.backward()
		}
	}
}

func (n *Node) Len() int {
	return len(n.Value)
}

// Scalar returns the value of a length 1 node.
func (n *Node) Scalar() float64 {
	if len(n.Value) != 1 {
		panic(fmt.Sprintf("autodiff: scalar of node with length %v", len(n.Value)))
	}
	return n.Value[0]
}

func sameTape(a, b *Node) *Tape {
	if a.tape != b.tape {
		panic("autodiff: nodes belong to different tapes")
	}
	return a.tape
}

func broadcastLen(a, b int) int {
	switch {
	case a == b:
		return a
	case a == 1:
		return b
	case b == 1:
		return a
	}
	panic(fmt.Sprintf("autodiff: length mismatch %v and %v", a, b))
}

func index(size, i int) int {
	if size == 1 {
		return 0
	}
	return i
}
