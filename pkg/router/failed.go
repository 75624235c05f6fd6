package router

import "github.com/wrcad/xictools-sub010/pkg/db"

type failedEntry struct {
	net  *db.Net
	next *failedEntry
}

// FailedList is the queue of nets waiting to be routed again. A net may
// appear more than once.
type FailedList struct {
	head, tail *failedEntry
	n          int
}

// Push adds net at the front.
func (f *FailedList) Push(net *db.Net) {
	e := &failedEntry{net: net, next: f.head}
	f.head = e
	if f.tail == nil {
		f.tail = e
	}
	f.n++
}

// Append adds net at the back.
func (f *FailedList) Append(net *db.Net) {
	e := &failedEntry{net: net}
	if f.tail == nil {
		f.head = e
	} else {
		f.tail.next = e
	}
	f.tail = e
	f.n++
}

// Pop removes and returns the front net, or nil when empty.
func (f *FailedList) Pop() *db.Net {
	e := f.head
	if e == nil {
		return nil
	}
	f.head = e.next
	if f.head == nil {
		f.tail = nil
	}
	f.n--
	return e.net
}

// Remove drops every entry for net and returns how many were dropped.
func (f *FailedList) Remove(net *db.Net) int {
	removed := 0
	var prev *failedEntry
	for e := f.head; e != nil; e = e.next {
		if e.net != net {
			prev = e
			continue
		}
		if prev == nil {
			f.head = e.next
		} else {
			prev.next = e.next
		}
		if f.tail == e {
			f.tail = prev
		}
		f.n--
		removed++
	}
	return removed
}

// Contains reports whether net is queued.
func (f *FailedList) Contains(net *db.Net) bool {
	for e := f.head; e != nil; e = e.next {
		if e.net == net {
			return true
		}
	}
	return false
}

func (f *FailedList) Len() int { return f.n }

// Nets returns the queued nets front to back.
func (f *FailedList) Nets() []*db.Net {
	out := make([]*db.Net, 0, f.n)
	for e := f.head; e != nil; e = e.next {
		out = append(out, e.net)
	}
	return out
}

// Clear empties the list.
func (f *FailedList) Clear() {
	f.head, f.tail, f.n = nil, nil, 0
}
