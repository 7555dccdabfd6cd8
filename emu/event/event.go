// Package event is a cycle-countdown scheduler: a doubly-linked list of
// pending callbacks ordered by the number of remaining ISS cycles, adapted
// from the teacher's event-list ("add callback, fire it in N time units")
// shape but driven by emulator cycles instead of a real-time ticker. The
// virtio block device uses it to model queue-completion latency instead of
// completing a request the instant it is notified.
package event

// Callback is invoked with the argument it was scheduled with once its
// remaining cycle count reaches zero.
type Callback func(arg int)

type pending struct {
	cycles int
	cb     Callback
	arg    int
	prev   *pending
	next   *pending
}

// List is a queue of pending callbacks, sorted by time-to-fire. Zero value
// is an empty, ready-to-use list.
type List struct {
	head *pending
	tail *pending
}

// Schedule adds cb to fire after the given number of cycles (>= 1) have
// elapsed, i.e. after that many calls to Tick. A cycles value of 0 invokes
// cb immediately instead of queuing it.
func (l *List) Schedule(cycles int, cb Callback, arg int) {
	if cycles <= 0 {
		cb(arg)
		return
	}
	ev := &pending{cycles: cycles, cb: cb, arg: arg}

	cur := l.head
	for cur != nil {
		if ev.cycles <= cur.cycles {
			cur.cycles -= ev.cycles
			ev.prev = cur.prev
			ev.next = cur
			if cur.prev != nil {
				cur.prev.next = ev
			} else {
				l.head = ev
			}
			cur.prev = ev
			return
		}
		ev.cycles -= cur.cycles
		cur = cur.next
	}
	// Goes at the tail.
	ev.prev = l.tail
	if l.tail != nil {
		l.tail.next = ev
	} else {
		l.head = ev
	}
	l.tail = ev
}

// Tick advances time by one cycle, firing (and removing) every event whose
// countdown reaches zero.
func (l *List) Tick() {
	if l.head == nil {
		return
	}
	l.head.cycles--
	for l.head != nil && l.head.cycles == 0 {
		ev := l.head
		l.head = ev.next
		if l.head != nil {
			l.head.prev = nil
		} else {
			l.tail = nil
		}
		ev.cb(ev.arg)
	}
}

// Reset discards every pending event.
func (l *List) Reset() {
	l.head = nil
	l.tail = nil
}
