package types

import "strings"

// Identity is a node in the caller-supplied test tree. The pipeline only ever
// reads identities; it reports outcomes against them but never creates,
// destroys or mutates them.
type Identity struct {
	Label          string
	Children       []*Identity
	SourceLocation *Location
	Parent         *Identity // back-reference for ancestor lookup only
}

// NewIdentity creates an identity and links the given children to it.
func NewIdentity(label string, loc *Location, children ...*Identity) *Identity {
	id := &Identity{
		Label:          label,
		Children:       children,
		SourceLocation: loc,
	}
	for _, child := range children {
		child.Parent = id
	}
	return id
}

// IsLeaf reports whether the identity has no children.
func (id *Identity) IsLeaf() bool {
	return len(id.Children) == 0
}

// Leaves flattens the subtree rooted at id into its leaf identities in
// declaration order. A leaf root returns itself.
func (id *Identity) Leaves() []*Identity {
	if id.IsLeaf() {
		return []*Identity{id}
	}
	var leaves []*Identity
	for _, child := range id.Children {
		leaves = append(leaves, child.Leaves()...)
	}
	return leaves
}

// FlattenIdentities expands a mixed list of leaf and tree identities into
// leaves, preserving the caller-supplied order.
func FlattenIdentities(identities []*Identity) []*Identity {
	var leaves []*Identity
	for _, id := range identities {
		leaves = append(leaves, id.Leaves()...)
	}
	return leaves
}

// AncestorLabels walks the parent chain up to the run root and returns the
// enclosing labels outermost first. The root itself (a file- or run-level
// frame with no parent) is skipped.
func (id *Identity) AncestorLabels() []string {
	var labels []string
	for node := id.Parent; node != nil; node = node.Parent {
		if node.Parent == nil {
			break
		}
		labels = append([]string{node.Label}, labels...)
	}
	return labels
}

// TrailingWord returns the label with any leading ancestor words stripped,
// i.e. its last whitespace-separated word. Used as a loose match key for
// emitters that report bare case names.
func (id *Identity) TrailingWord() string {
	fields := strings.Fields(id.Label)
	if len(fields) == 0 {
		return id.Label
	}
	return fields[len(fields)-1]
}
