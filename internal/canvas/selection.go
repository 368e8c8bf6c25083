package canvas

import "sort"

// ItemKind distinguishes selectable canvas items.
type ItemKind int

const (
	ItemNode ItemKind = iota + 1
	ItemAnnotation
)

// Item identifies one selectable canvas item.
type Item struct {
	Kind ItemKind
	ID   string
}

// Selection is the client-local set of selected nodes and annotations.
type Selection struct {
	items map[Item]struct{}
}

// NewSelection creates an empty selection.
func NewSelection() *Selection {
	return &Selection{items: make(map[Item]struct{})}
}

// Select adds items.
func (s *Selection) Select(items ...Item) {
	for _, it := range items {
		s.items[it] = struct{}{}
	}
}

// Deselect removes items.
func (s *Selection) Deselect(items ...Item) {
	for _, it := range items {
		delete(s.items, it)
	}
}

// Toggle flips the selection state of it.
func (s *Selection) Toggle(it Item) {
	if s.Has(it) {
		delete(s.items, it)
		return
	}
	s.items[it] = struct{}{}
}

// Clear removes everything.
func (s *Selection) Clear() {
	clear(s.items)
}

// Has reports whether it is selected.
func (s *Selection) Has(it Item) bool {
	_, ok := s.items[it]
	return ok
}

// Len returns the number of selected items.
func (s *Selection) Len() int {
	return len(s.items)
}

// NodeIDs returns selected node ids in sorted order.
func (s *Selection) NodeIDs() []string {
	return s.ids(ItemNode)
}

// AnnotationIDs returns selected annotation ids in sorted order.
func (s *Selection) AnnotationIDs() []string {
	return s.ids(ItemAnnotation)
}

// Items returns a copy of the selected set.
func (s *Selection) Items() map[Item]struct{} {
	out := make(map[Item]struct{}, len(s.items))
	for it := range s.items {
		out[it] = struct{}{}
	}
	return out
}

// Retain drops every selected item for which keep returns false.
// Used after a snapshot change removes nodes.
func (s *Selection) Retain(keep func(Item) bool) {
	for it := range s.items {
		if !keep(it) {
			delete(s.items, it)
		}
	}
}

func (s *Selection) ids(kind ItemKind) []string {
	var ids []string
	for it := range s.items {
		if it.Kind == kind {
			ids = append(ids, it.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// splitItems returns sorted node and annotation ids.
func splitItems(set map[Item]struct{}) (nodes, annotations []string) {
	for it := range set {
		switch it.Kind {
		case ItemNode:
			nodes = append(nodes, it.ID)
		case ItemAnnotation:
			annotations = append(annotations, it.ID)
		}
	}
	sort.Strings(nodes)
	sort.Strings(annotations)
	return nodes, annotations
}
