// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package panorama implements Frame Sync + Panorama (§4.C): cylindrical
// pyramid projection of tagged per-camera frames, the fg/bg overlap
// rule, a per-frame 360-radial coverage bitmap, and a self-compacting,
// logarithmically spaced frame history.
package panorama

import "fmt"

// MaxFrameHeapAlloc is the fixed slab size backing the frame history
// (§4.C).
const MaxFrameHeapAlloc = 48

// MaxFrameHeapAvailable is the number of slots the free list starts
// with (§4.C).
const MaxFrameHeapAvailable = 36

// FramePage is one slab slot. next/freeNext encode the two singly
// linked lists (active, free) as slice indices rather than pointers,
// per spec.md §9's "arena of slots with two singly-linked lists
// encoded as integer indices" re-expression of the original's raw
// intrusive pointers (grounded on
// original_source/core/core_modules/panorama/frame_heap.c).
type FramePage struct {
	Timestamp int64
	Content   int // payload identity, used by tests; real frames carry pixel data
	next      int // index into heap.pages, or noIndex
	freeNext  int // index into heap.pages, or noIndex
}

const noIndex = -1

// FrameHeap is the self-compacting frame-page slab (§4.C).
type FrameHeap struct {
	pages       [MaxFrameHeapAlloc]FramePage
	freeHead    int
	freeTail    int
	activeHead  int
	available   int
	insertCount uint64
}

// NewFrameHeap builds a heap with MaxFrameHeapAvailable free pages
// queued. Only the first MaxFrameHeapAvailable slots of the
// MaxFrameHeapAlloc slab ever enter circulation; the remaining slots
// are reserved headroom, matching the 48-slot/36-available split in
// §4.C without ever growing the working set past 36.
func NewFrameHeap() *FrameHeap {
	h := &FrameHeap{activeHead: noIndex}
	for i := range h.pages {
		h.pages[i].next = noIndex
		h.pages[i].freeNext = noIndex
	}
	for i := 0; i < MaxFrameHeapAvailable; i++ {
		h.pages[i].freeNext = i + 1
	}
	h.pages[MaxFrameHeapAvailable-1].freeNext = noIndex
	h.freeHead = 0
	h.freeTail = MaxFrameHeapAvailable - 1
	h.available = MaxFrameHeapAvailable
	return h
}

// freePage returns idx to the tail of the free list, payload
// untouched, so any in-flight reader retains a valid .next for at
// least the retention window (§4.C "Reader safety").
func (h *FrameHeap) freePage(idx int) {
	h.pages[idx].freeNext = noIndex
	if h.available == 0 {
		h.freeHead = idx
	} else {
		h.pages[h.freeTail].freeNext = idx
	}
	h.freeTail = idx
	h.available++
}

// allocatePage pulls a page from the free-list head, evicting the
// oldest active page first if none is free (§4.C "Allocation never
// fails").
func (h *FrameHeap) allocatePage() int {
	if h.available == 0 {
		tail := h.activeHead
		prev := noIndex
		for h.pages[tail].next != noIndex {
			prev = tail
			tail = h.pages[tail].next
		}
		if prev != noIndex {
			h.pages[prev].next = noIndex
		} else {
			h.activeHead = noIndex
		}
		h.freePage(tail)
	}
	idx := h.freeHead
	h.freeHead = h.pages[idx].freeNext
	h.available--
	h.pages[idx].freeNext = noIndex
	h.pages[idx].next = noIndex
	h.pages[idx].Timestamp = 0
	h.pages[idx].Content = 0
	return idx
}

// addToFrames prepends idx to the active list (§4.C "Insert").
func (h *FrameHeap) addToFrames(idx int) {
	h.pages[idx].next = h.activeHead
	h.activeHead = idx
}

// deleteFourth removes the 4th page (1-indexed) counting from
// startIdx, returning the index of the page that followed it (or
// noIndex if no 4th page exists), used to chain further deletions
// further into the list during the same compaction round (grounded on
// delete_fourth in frame_heap.c).
func (h *FrameHeap) deleteFourth(startIdx int) int {
	if startIdx == noIndex {
		return noIndex
	}
	ctr := 0
	prev := startIdx
	idx := startIdx
	for idx != noIndex {
		ctr++
		if ctr == 4 {
			next := h.pages[idx].next
			h.pages[prev].next = next
			h.freePage(idx)
			break
		}
		prev = idx
		idx = h.pages[idx].next
	}
	return h.pages[prev].next
}

// Insert allocates a page, fills it with the given payload, prepends
// it to the active list, and runs one round of compaction (§4.C).
//
// Compaction: on the 0-indexed insertion counter i, walk the low bits
// of i from bit 0 upward, deleting the 4th element of the active list
// (cascading from where the previous deletion in this round left off)
// for as long as the bit is set, stopping at the first zero bit
// (ported verbatim from frame_heap.c's commented-out driver loop:
// `val := i; for val&1 { head = delete_fourth(...); val >>= 1 }`).
func (h *FrameHeap) Insert(ts int64, content int) {
	idx := h.allocatePage()
	h.pages[idx].Timestamp = ts
	h.pages[idx].Content = content
	h.addToFrames(idx)

	i := h.insertCount
	h.insertCount++
	cursor := h.activeHead
	for val := i; val&1 != 0; val >>= 1 {
		cursor = h.deleteFourth(cursor)
	}
}

// ActiveList returns the current active-list contents head-first,
// for tests and diagnostics. The production accessor is Head, which
// hands a consumer the head index for lock-free traversal (§4.C
// "get_frame_list()").
func (h *FrameHeap) ActiveList() []int {
	var out []int
	for idx := h.activeHead; idx != noIndex; idx = h.pages[idx].next {
		out = append(out, h.pages[idx].Content)
	}
	return out
}

// Head returns the current active-list head index; no locking (§4.C).
func (h *FrameHeap) Head() int { return h.activeHead }

// Next returns the page following idx in the active list, or
// (FramePage{}, false) at the tail. Safe to call concurrently with
// Insert (§4.C "Reader safety").
func (h *FrameHeap) Next(idx int) (FramePage, bool) {
	n := h.pages[idx].next
	if n == noIndex {
		return FramePage{}, false
	}
	return h.pages[n], true
}

// Page returns the page stored at idx.
func (h *FrameHeap) Page(idx int) FramePage { return h.pages[idx] }

func (h *FrameHeap) String() string {
	return fmt.Sprintf("FrameHeap{active=%v, available=%d}", h.ActiveList(), h.available)
}
