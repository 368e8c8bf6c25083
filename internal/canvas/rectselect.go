package canvas

import (
	"sort"

	"github.com/roach88/flowcanvas/internal/wire"
)

// PreviewSignal tells a renderer how to change one item's selection preview.
type PreviewSignal string

const (
	// PreviewShow marks an item that will be selected on release.
	PreviewShow PreviewSignal = "show"
	// PreviewHide marks a selected item that will be deselected on release.
	PreviewHide PreviewSignal = "hide"
	// PreviewClear removes any preview from an item.
	PreviewClear PreviewSignal = "clear"
)

// Preview is one incremental preview change.
type Preview struct {
	Item   Item
	Signal PreviewSignal
}

// SelectionChange is what a finished rectangle gesture does to the selection.
type SelectionChange struct {
	// Replace clears the selection before applying Select.
	Replace  bool
	Select   []Item
	Deselect []Item
}

// Apply performs the change on sel.
func (c SelectionChange) Apply(sel *Selection) {
	if c.Replace {
		sel.Clear()
	}
	sel.Select(c.Select...)
	sel.Deselect(c.Deselect...)
}

// rectSelect tracks one rectangle selection gesture in canvas space.
// shown holds the preview signal each item currently displays.
type rectSelect struct {
	start  Point
	toggle bool
	before map[Item]struct{}
	inside map[Item]struct{}
	shown  map[Item]PreviewSignal
}

func newRectSelect(start Point, toggle bool, before map[Item]struct{}) *rectSelect {
	return &rectSelect{
		start:  start,
		toggle: toggle,
		before: before,
		inside: make(map[Item]struct{}),
		shown:  make(map[Item]PreviewSignal),
	}
}

// hitTest returns every node and annotation whose bounding box intersects r.
func hitTest(wf *wire.Workflow, r Rect, nodeSize float64) map[Item]struct{} {
	hits := make(map[Item]struct{})
	if wf == nil {
		return hits
	}
	for id, n := range wf.Nodes {
		if nodeRect(n, nodeSize).Intersects(r) {
			hits[Item{Kind: ItemNode, ID: id}] = struct{}{}
		}
	}
	for id, a := range wf.Annotations {
		if RectFromBounds(a.Bounds).Intersects(r) {
			hits[Item{Kind: ItemAnnotation, ID: id}] = struct{}{}
		}
	}
	return hits
}

// ContentBounds returns the smallest rect holding every node and annotation
// of wf. ok is false for an empty workflow.
func ContentBounds(wf *wire.Workflow, nodeSize float64) (r Rect, ok bool) {
	if wf == nil {
		return Rect{}, false
	}
	add := func(o Rect) {
		if !ok {
			r, ok = o, true
			return
		}
		r = r.Union(o)
	}
	for _, n := range wf.Nodes {
		add(nodeRect(n, nodeSize))
	}
	for _, a := range wf.Annotations {
		add(RectFromBounds(a.Bounds))
	}
	return r, ok
}

func nodeRect(n wire.Node, size float64) Rect {
	p := FromXY(n.Position)
	return Rect{Min: p, Max: p.Add(Point{size, size})}
}

// update recomputes the inside set for the rectangle from the start point to
// current and returns the preview changes relative to the previous update.
//
// Items inside show, or hide when toggling an already selected item.
// Without toggle, selected items outside the rectangle hide, since release
// replaces the selection.
func (r *rectSelect) update(current Point, wf *wire.Workflow, nodeSize float64) []Preview {
	r.inside = hitTest(wf, RectFromCorners(r.start, current), nodeSize)

	want := make(map[Item]PreviewSignal, len(r.inside)+len(r.before))
	for it := range r.inside {
		want[it] = PreviewShow
		if _, sel := r.before[it]; r.toggle && sel {
			want[it] = PreviewHide
		}
	}
	if !r.toggle {
		for it := range r.before {
			if _, in := r.inside[it]; !in {
				want[it] = PreviewHide
			}
		}
	}

	var previews []Preview
	for it, signal := range want {
		if r.shown[it] != signal {
			previews = append(previews, Preview{Item: it, Signal: signal})
		}
	}
	for it := range r.shown {
		if _, ok := want[it]; !ok {
			previews = append(previews, Preview{Item: it, Signal: PreviewClear})
		}
	}
	r.shown = want
	sortPreviews(previews)
	return previews
}

// clearAll returns a clear preview for every item showing a preview.
func (r *rectSelect) clearAll() []Preview {
	previews := make([]Preview, 0, len(r.shown))
	for it := range r.shown {
		previews = append(previews, Preview{Item: it, Signal: PreviewClear})
	}
	r.inside = make(map[Item]struct{})
	r.shown = make(map[Item]PreviewSignal)
	sortPreviews(previews)
	return previews
}

// result computes the selection change for releasing the gesture.
// Without toggle the inside set replaces the selection. With toggle, items
// selected before the drag are deselected and the rest are added.
func (r *rectSelect) result() SelectionChange {
	change := SelectionChange{Replace: !r.toggle}
	for it := range r.inside {
		if _, sel := r.before[it]; r.toggle && sel {
			change.Deselect = append(change.Deselect, it)
			continue
		}
		change.Select = append(change.Select, it)
	}
	sortItems(change.Select)
	sortItems(change.Deselect)
	return change
}

func itemLess(a, b Item) bool {
	if a.Kind != b.Kind {
		return a.Kind < b.Kind
	}
	return a.ID < b.ID
}

func sortItems(items []Item) {
	sort.Slice(items, func(i, j int) bool { return itemLess(items[i], items[j]) })
}

func sortPreviews(p []Preview) {
	sort.Slice(p, func(i, j int) bool { return itemLess(p[i].Item, p[j].Item) })
}
