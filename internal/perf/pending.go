package perf

import (
	"sort"
	"time"
)

// PendingOp is an ignore+delete that has been dispatched but not resolved.
// While it is pending, un-ignoring the same path is refused: the daemon would
// otherwise re-sync the file the operator just asked to delete.
type PendingOp struct {
	Folder    string
	Path      string
	StartedAt time.Time
	Deadline  time.Time
}

// PendingOps tracks ignore+delete operations keyed by folder and path.
type PendingOps struct {
	ops     map[string]PendingOp
	timeout time.Duration
}

// NewPendingOps creates a tracker whose operations stop blocking after timeout.
func NewPendingOps(timeout time.Duration) *PendingOps {
	return &PendingOps{ops: make(map[string]PendingOp), timeout: timeout}
}

// Add registers an operation started at now, replacing any previous one for the path.
func (p *PendingOps) Add(folder, path string, now time.Time) PendingOp {
	op := PendingOp{Folder: folder, Path: path, StartedAt: now, Deadline: now.Add(p.timeout)}
	p.ops[Key(folder, path)] = op
	return op
}

// Resolve removes the operation for a path. Returns false if none was pending.
func (p *PendingOps) Resolve(folder, path string) bool {
	key := Key(folder, path)
	if _, ok := p.ops[key]; !ok {
		return false
	}
	delete(p.ops, key)
	return true
}

// Blocks reports whether an un-ignore of path must wait.
func (p *PendingOps) Blocks(folder, path string, now time.Time) bool {
	op, ok := p.ops[Key(folder, path)]
	return ok && now.Before(op.Deadline)
}

// Expire removes and returns operations past their deadline, oldest first.
func (p *PendingOps) Expire(now time.Time) []PendingOp {
	var expired []PendingOp
	for key, op := range p.ops {
		if !now.Before(op.Deadline) {
			expired = append(expired, op)
			delete(p.ops, key)
		}
	}
	sort.Slice(expired, func(i, j int) bool { return expired[i].StartedAt.Before(expired[j].StartedAt) })
	return expired
}

// Len returns the number of pending operations.
func (p *PendingOps) Len() int {
	return len(p.ops)
}
