package block

import "fmt"

// Buffer is the fixed-size doubly-linked cyclic ring of move blocks,
// spec.md §3 "Block buffer" and §4.2. It is single-producer/single-consumer:
// the producer side calls TestWrite/CheckoutWrite/ReleaseWrite/CommitWrite;
// the executor side calls only GetRun/FreeRun, per spec.md §5.
type Buffer struct {
	slots []Block
	w, q, r int // w: next slot to check out; r: current running slot; q is not maintained (CommitWrite takes the block to commit directly)
}

// NewBuffer allocates a ring of the given size (spec.md: "typically 28-40
// blocks"). Neighbor links are wired once, at construction, and never
// change for the life of the ring.
func NewBuffer(size int) *Buffer {
	if size < 3 {
		panic("block: ring size must be at least 3")
	}
	b := &Buffer{slots: make([]Block, size)}
	for i := range b.slots {
		b.slots[i].Pv = (i - 1 + size) % size
		b.slots[i].Nx = (i + 1) % size
	}
	return b
}

// Cap returns the ring's fixed capacity.
func (b *Buffer) Cap() int { return len(b.slots) }

// TestWrite reports whether a slot can be checked out: both the w slot and
// the slot after it must be empty, so the ring never fills completely, at
// most Cap()-1 blocks are queued, and w == r keeps meaning "queue empty".
func (b *Buffer) TestWrite() bool {
	next := (b.w + 1) % len(b.slots)
	return b.slots[b.w].BufferState == BufferEmpty && b.slots[next].BufferState == BufferEmpty
}

// CheckoutWrite atomically transitions the w slot from empty to loading,
// zero-fills the payload (preserving Pv/Nx), and advances w. Returns nil if
// TestWrite reports false (spec.md §4.2, §7 "transient back-pressure").
func (b *Buffer) CheckoutWrite() *Block {
	if !b.TestWrite() {
		return nil
	}
	blk := &b.slots[b.w]
	blk.reset()
	blk.BufferState = BufferLoading
	b.w = (b.w + 1) % len(b.slots)
	return blk
}

// ReleaseWrite pairs with CheckoutWrite when the producer decides not to
// commit: rewinds w and marks the slot empty again.
func (b *Buffer) ReleaseWrite() {
	b.w = (b.w - 1 + len(b.slots)) % len(b.slots)
	blk := &b.slots[b.w]
	blk.reset()
	blk.BufferState = BufferEmpty
}

// CommitWrite transitions the most recently checked-out slot from loading to
// queued, stamps moveType, and sets move_state to new. It panics if blk is
// not in the loading state. It is the caller's responsibility to signal the executor
// (idempotent if already running) — see runtime.Dispatcher.RequestExec.
func (b *Buffer) CommitWrite(blk *Block, moveType MoveType) {
	if blk.BufferState != BufferLoading {
		panic(fmt.Sprintf("block: commit_write: slot not in loading state (got %s)", blk.BufferState))
	}
	blk.BufferState = BufferQueued
	blk.MoveType = moveType
	blk.MoveState = MoveStateNew
}

// GetRun promotes the r slot to running and returns it if it is queued or
// pending; returns the same block, unchanged, if it is already running
// (supporting re-entrant calls from segment preparers); returns nil
// otherwise (spec.md §4.2).
func (b *Buffer) GetRun() *Block {
	blk := &b.slots[b.r]
	switch blk.BufferState {
	case BufferQueued, BufferPending:
		blk.BufferState = BufferRunning
		return blk
	case BufferRunning:
		return blk
	default:
		return nil
	}
}

// FreeRun clears the running slot's payload (preserving links), marks it
// empty, and advances r. If the new r slot is queued, it is promoted to
// pending (spec.md §4.2).
func (b *Buffer) FreeRun() {
	blk := &b.slots[b.r]
	blk.reset()
	blk.BufferState = BufferEmpty
	b.r = (b.r + 1) % len(b.slots)

	next := &b.slots[b.r]
	if next.BufferState == BufferQueued {
		next.BufferState = BufferPending
	}
}

// Idle reports whether the write and run cursors have converged, i.e. the
// queue is empty (spec.md §3: "w == r ⇒ queue empty").
func (b *Buffer) Idle() bool {
	return b.w == b.r
}

// First returns the running block, or nil if none is running.
func (b *Buffer) First() *Block {
	blk := &b.slots[b.r]
	if blk.BufferState == BufferRunning {
		return blk
	}
	return nil
}

// Last returns the last block whose successor is off, i.e. the tail of the
// queued chain: the slot just before w. Returns nil if the queue is empty.
func (b *Buffer) Last() *Block {
	if b.Idle() {
		return nil
	}
	idx := (b.w - 1 + len(b.slots)) % len(b.slots)
	blk := &b.slots[idx]
	if blk.BufferState == BufferEmpty {
		return nil
	}
	return blk
}

// At returns a pointer to the block at the given ring slot, for planner
// traversal via Pv/Nx indices.
func (b *Buffer) At(idx int) *Block {
	return &b.slots[idx]
}

// Index returns the ring slot index of the given block pointer. Used by the
// planner to find a block's own Pv/Nx-relative position when it only has a
// *Block (e.g. the block just appended by submit_aline).
func (b *Buffer) Index(blk *Block) int {
	return int(blk.Pv+1) % len(b.slots) // Pv always equals idx-1 (mod size)
}

// QueueDepth reports how many slots are queued+pending+running, for the
// invariant in spec.md §8: "never exceeds ring capacity - 1".
func (b *Buffer) QueueDepth() int {
	n := len(b.slots)
	d := b.w - b.r
	if d < 0 {
		d += n
	}
	return d
}
