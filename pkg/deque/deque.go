// Package deque implements a doubly linked double-ended queue of arbitrary
// values, backing the worker pool's FIFO task queue.
package deque

// Deque is a double-ended queue. The zero value is an empty, ready-to-use
// deque. Not safe for concurrent use; callers that share a Deque across
// goroutines (as the worker pool does) must guard it with their own lock.
type Deque struct {
	front, back *element
	length      int
}

type element struct {
	value      any
	prev, next *element
}

// Len returns the number of elements in the deque.
func (d *Deque) Len() int { return d.length }

// PushBack appends value to the back of the deque.
func (d *Deque) PushBack(value any) {
	e := &element{value: value, prev: d.back}
	if d.back != nil {
		d.back.next = e
	} else {
		d.front = e
	}
	d.back = e
	d.length++
}

// PushFront prepends value to the front of the deque.
func (d *Deque) PushFront(value any) {
	e := &element{value: value, next: d.front}
	if d.front != nil {
		d.front.prev = e
	} else {
		d.back = e
	}
	d.front = e
	d.length++
}

// PopFront removes and returns the value at the front of the deque. ok is
// false if the deque was empty.
func (d *Deque) PopFront() (value any, ok bool) {
	if d.front == nil {
		return nil, false
	}
	e := d.front
	d.front = e.next
	if d.front != nil {
		d.front.prev = nil
	} else {
		d.back = nil
	}
	d.length--
	return e.value, true
}

// PopBack removes and returns the value at the back of the deque. ok is
// false if the deque was empty.
func (d *Deque) PopBack() (value any, ok bool) {
	if d.back == nil {
		return nil, false
	}
	e := d.back
	d.back = e.prev
	if d.back != nil {
		d.back.next = nil
	} else {
		d.front = nil
	}
	d.length--
	return e.value, true
}

// Front returns the value at the front of the deque without removing it.
func (d *Deque) Front() (value any, ok bool) {
	if d.front == nil {
		return nil, false
	}
	return d.front.value, true
}
