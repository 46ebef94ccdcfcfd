package async

import "sort"

// timerQueue is a deadline-ordered queue of pending timed operations.
//
// It keeps entries sorted across two slices: head, whose front is popped,
// and tail, a staging area that reuses the capacity freed by popping, so
// steady insert/pop traffic settles into a single allocation. Insertion
// finds its slot by binary search over both.
//
// timerQueue is not safe for concurrent use; the Executor guards it with
// its own mutex.
type timerQueue struct {
	head, tail []*timedOp
}

func (q *timerQueue) Empty() bool {
	return len(q.head) == 0
}

// Peek returns the entry with the earliest deadline.
func (q *timerQueue) Peek() *timedOp {
	return q.head[0]
}

func (q *timerQueue) Push(v *timedOp) {
	headsize, tailsize := len(q.head), len(q.tail)

	n := headsize + tailsize

	i := sort.Search(n, func(i int) bool {
		if i < headsize {
			return v.when.Before(q.head[i].when)
		}

		i -= headsize

		return v.when.Before(q.tail[i].when)
	})

	if n == cap(q.tail) {
		s := append(q.tail[:n], nil)[:0]

		if i < headsize {
			s = append(s, q.head[:i]...)
			s = append(s, v)
			s = append(s, q.head[i:]...)
			s = append(s, q.tail...)
		} else {
			i -= headsize
			s = append(s, q.head...)
			s = append(s, q.tail[:i]...)
			s = append(s, v)
			s = append(s, q.tail[i:]...)
		}

		q.head, q.tail = s, s[:0]

		return
	}

	if headsize < cap(q.head) {
		s := q.head
		s = s[:headsize+1]
		copy(s[i+1:], s[i:])
		s[i] = v
		q.head = s
		return
	}

	if i < headsize {
		s := q.head
		u := s[headsize-1]
		copy(s[i+1:], s[i:])
		s[i] = v
		v = u
		i = headsize
	}

	i -= headsize

	s := q.tail
	s = s[:tailsize+1]
	copy(s[i+1:], s[i:])
	s[i] = v
	q.tail = s
}

func (q *timerQueue) Pop() *timedOp {
	v := q.head[0]
	q.head[0] = nil

	if len(q.head) > 1 {
		q.head = q.head[1:]
	} else {
		q.head, q.tail = q.tail, q.tail[:0]
	}

	return v
}
