package gateway

// replyQueue keeps responses on one connection in request order while
// letting the requests themselves complete concurrently. Each request
// reserves a slot before its handler starts; the connection's writer
// drains slots strictly in reservation order, blocking on the oldest
// outstanding one.
type replyQueue struct {
	slots chan chan []byte
}

func newReplyQueue(depth int) *replyQueue {
	return &replyQueue{slots: make(chan chan []byte, depth)}
}

// reserve claims the next position in the response order. The caller
// delivers the finished response into the returned channel.
func (q *replyQueue) reserve() chan []byte {
	slot := make(chan []byte, 1)
	q.slots <- slot
	return slot
}

// closeQueue signals the drainer that no further slots will arrive.
func (q *replyQueue) closeQueue() {
	close(q.slots)
}

// drain hands each response to write in reservation order. It returns
// when the queue is closed and exhausted, or when write fails, or when
// a handler delivered nil (connection should drop).
func (q *replyQueue) drain(write func([]byte) error) {
	for slot := range q.slots {
		resp := <-slot
		if resp == nil {
			return
		}
		if err := write(resp); err != nil {
			return
		}
	}
}
