// Package forest turns the flat visible-task list into the tree shape
// the client renders: forest assembly, level-by-level sorting,
// contributor inheritance and the subtree closure used for optimistic
// deletes.
package forest

import (
	"sort"
	"time"

	"github.com/avdeyev/tasky/internal/models"
)

// Item is one entry of the flat visible-task list.
type Item struct {
	models.Task
	Contributors []models.Contributor
}

type Node struct {
	Item
	Children []*Node
}

// Build assembles the forest. A task whose parent is absent from the
// input is promoted to a root rather than dropped; children keep the
// arrival order of the input. Children is never nil.
func Build(items []Item) []*Node {
	nodes := make([]*Node, len(items))
	lookup := make(map[int64]*Node, len(items))
	for i, item := range items {
		nodes[i] = &Node{Item: item, Children: make([]*Node, 0)}
		lookup[item.ID] = nodes[i]
	}

	roots := make([]*Node, 0, len(items))
	for _, n := range nodes {
		if n.ParentID != 0 {
			if parent, ok := lookup[n.ParentID]; ok && parent != n {
				parent.Children = append(parent.Children, n)
				continue
			}
		}
		roots = append(roots, n)
	}

	return roots
}

type Order int

const (
	// OrderNewest puts higher ids first; ids are assigned increasingly.
	OrderNewest Order = iota
	// OrderDueSoonest puts the soonest end date first and tasks
	// without an end date last.
	OrderDueSoonest
)

type Options struct {
	Order        Order
	MoveDoneLast bool
	ByPriority   bool
	// JustDone holds ids exempt from MoveDoneLast while the client
	// defers re-sorting.
	JustDone map[int64]bool
}

// Sort orders the root list and every children list recursively.
func Sort(roots []*Node, opts Options) {
	sort.SliceStable(roots, func(i, j int) bool {
		return opts.less(roots[i], roots[j])
	})
	for _, n := range roots {
		Sort(n.Children, opts)
	}
}

func (o Options) less(a, b *Node) bool {
	if o.MoveDoneLast {
		ra, rb := o.doneRank(a), o.doneRank(b)
		if ra != rb {
			return ra < rb
		}
	}

	if o.ByPriority {
		pa, pb := priorityRank(a.Priority), priorityRank(b.Priority)
		if pa != pb {
			return pa < pb
		}
	}

	switch o.Order {
	case OrderDueSoonest:
		da, aok := parseDate(a.EndDate)
		db, bok := parseDate(b.EndDate)
		switch {
		case aok && bok:
			return da.Before(db)
		case aok:
			return true
		case bok:
			return false
		default:
			return false
		}
	default:
		return a.ID > b.ID
	}
}

func (o Options) doneRank(n *Node) int {
	if n.IsDone && !o.JustDone[n.ID] {
		return 1
	}
	return 0
}

func priorityRank(priority string) int {
	switch priority {
	case models.PriorityHigh:
		return 0
	case models.PriorityMedium:
		return 1
	case models.PriorityLow:
		return 2
	default:
		return 3
	}
}

func parseDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// InheritContributors replaces each node's contributor list with the
// union of its own and every ancestor's, deduplicated by user id with
// first-seen (ancestor-first) order kept.
func InheritContributors(roots []*Node) {
	for _, r := range roots {
		inheritContributors(r, nil)
	}
}

func inheritContributors(n *Node, inherited []models.Contributor) {
	merged := make([]models.Contributor, len(inherited), len(inherited)+len(n.Contributors))
	copy(merged, inherited)
	for _, c := range n.Contributors {
		seen := false
		for _, m := range merged {
			if m.ID == c.ID {
				seen = true
				break
			}
		}
		if !seen {
			merged = append(merged, c)
		}
	}
	n.Contributors = merged

	for _, child := range n.Children {
		inheritContributors(child, merged)
	}
}

// Descendants returns the id closure of the subtree rooted at id,
// computed over the flat list. The root id comes first. The walk is
// visited-set guarded, so a malformed cycle terminates.
func Descendants(items []Item, id int64) []int64 {
	children := make(map[int64][]int64, len(items))
	for _, item := range items {
		if item.ParentID != 0 {
			children[item.ParentID] = append(children[item.ParentID], item.ID)
		}
	}

	closure := []int64{id}
	visited := map[int64]bool{id: true}
	for i := 0; i < len(closure); i++ {
		for _, childID := range children[closure[i]] {
			if visited[childID] {
				continue
			}
			visited[childID] = true
			closure = append(closure, childID)
		}
	}

	return closure
}

const maxOpenDetails = 2

// DetailsPanel tracks which tasks have their detail pane open. At most
// two may be open at once; opening a third evicts the oldest.
type DetailsPanel struct {
	open []int64
}

func (p *DetailsPanel) Toggle(id int64) {
	for i, openID := range p.open {
		if openID == id {
			p.open = append(p.open[:i], p.open[i+1:]...)
			return
		}
	}

	p.open = append(p.open, id)
	if len(p.open) > maxOpenDetails {
		p.open = p.open[1:]
	}
}

func (p *DetailsPanel) IsOpen(id int64) bool {
	for _, openID := range p.open {
		if openID == id {
			return true
		}
	}
	return false
}

// Open returns the open ids, oldest first.
func (p *DetailsPanel) Open() []int64 {
	out := make([]int64, len(p.open))
	copy(out, p.open)
	return out
}
