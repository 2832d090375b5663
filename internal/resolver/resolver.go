// Package resolver computes which tasks a user may see or modify.
//
// Visibility of shared tasks is a reachability question: a grant on a
// task covers the whole subtree below it. The closure is computed as a
// breadth-first walk over parent->child edges instead of a recursive
// query, so the store only needs an indexed adjacency lookup. Every
// walk carries a visited set; a malformed cycle terminates instead of
// looping.
package resolver

import (
	"context"

	"github.com/avdeyev/tasky/internal/models"
)

// Graph is the read-only task adjacency view the resolver walks.
type Graph interface {
	// Task returns the task with the given id, or nil when absent.
	Task(ctx context.Context, id int64) (*models.Task, error)

	// Children returns every task whose parent is one of the given ids.
	Children(ctx context.Context, parentIDs []int64) ([]models.Task, error)

	// HasShare reports whether the task is directly shared with the user.
	HasShare(ctx context.Context, taskID, userID int64) (bool, error)
}

type Resolver struct {
	graph Graph
}

func New(graph Graph) *Resolver {
	return &Resolver{graph: graph}
}

// SharedTask is a closure member tagged with the direct grant it was
// first reached from.
type SharedTask struct {
	models.Task
	OriginID int64
}

// SharedClosure expands the direct grants into the full descendant set.
// Order is breadth-first from the grants; each task appears once, tagged
// with the first grant that reached it.
func (r *Resolver) SharedClosure(ctx context.Context, grants []models.Task) ([]SharedTask, error) {
	visited := make(map[int64]bool, len(grants))
	closure := make([]SharedTask, 0, len(grants))

	frontier := make([]SharedTask, 0, len(grants))
	for _, g := range grants {
		if visited[g.ID] {
			continue
		}
		visited[g.ID] = true
		frontier = append(frontier, SharedTask{Task: g, OriginID: g.ID})
	}

	for len(frontier) > 0 {
		closure = append(closure, frontier...)

		parentIDs := make([]int64, 0, len(frontier))
		origins := make(map[int64]int64, len(frontier))
		for _, t := range frontier {
			parentIDs = append(parentIDs, t.ID)
			origins[t.ID] = t.OriginID
		}

		children, err := r.graph.Children(ctx, parentIDs)
		if err != nil {
			return nil, err
		}

		frontier = frontier[:0]
		for _, c := range children {
			if visited[c.ID] {
				continue
			}
			visited[c.ID] = true
			frontier = append(frontier, SharedTask{Task: c, OriginID: origins[c.ParentID]})
		}
	}

	return closure, nil
}

// OriginRoot walks parent links up from the task and returns its
// top-most visible ancestor. A dangling parent reference stops the walk,
// which promotes the orphan to act as its own root.
func (r *Resolver) OriginRoot(ctx context.Context, task models.Task) (models.Task, error) {
	current := task
	visited := map[int64]bool{current.ID: true}

	for current.ParentID != 0 {
		parent, err := r.graph.Task(ctx, current.ParentID)
		if err != nil {
			return models.Task{}, err
		}
		if parent == nil || visited[parent.ID] {
			break
		}
		visited[parent.ID] = true
		current = *parent
	}

	return current, nil
}

// CanModify reports whether the user may mutate the task: they own it,
// or hold a share on it or on any of its ancestors.
func (r *Resolver) CanModify(ctx context.Context, userID int64, task models.Task) (bool, error) {
	if task.UserID == userID {
		return true, nil
	}

	current := task
	visited := map[int64]bool{current.ID: true}
	for {
		shared, err := r.graph.HasShare(ctx, current.ID, userID)
		if err != nil {
			return false, err
		}
		if shared {
			return true, nil
		}

		if current.ParentID == 0 {
			return false, nil
		}
		parent, err := r.graph.Task(ctx, current.ParentID)
		if err != nil {
			return false, err
		}
		if parent == nil || visited[parent.ID] {
			return false, nil
		}
		visited[parent.ID] = true
		current = *parent
	}
}
