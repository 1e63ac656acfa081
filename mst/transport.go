package mst

// Transport owns the K machines' inboxes and the send/broadcast
// primitives. Each machine has exactly one inbox channel; FIFO delivery
// per (sender, receiver) falls out for free here because every machine is
// single-threaded — a sender's successive sends to the same receiver
// channel complete, and are buffered, in the order the sender issued them,
// regardless of what other senders interleave.
type Transport struct {
	inboxes []chan Message
}

// NewTransport allocates inboxes for k machines. depth bounds how many
// undelivered messages a single machine's inbox can hold before a sender
// blocks; GHS's message volume is bounded by the graph size, so a generous
// fixed depth avoids the extra bookkeeping of an unbounded queue.
func NewTransport(k int, depth int) *Transport {
	t := &Transport{inboxes: make([]chan Message, k)}
	for i := range t.inboxes {
		t.inboxes[i] = make(chan Message, depth)
	}
	return t
}

func (t *Transport) inboxFor(machine int) chan Message {
	return t.inboxes[machine]
}

// Send enqueues msg to the given machine's inbox.
func (t *Transport) Send(machine int, msg Message) {
	t.inboxes[machine] <- msg
}

// Broadcast enqueues msg to every machine's inbox.
func (t *Transport) Broadcast(msg Message) {
	for i := range t.inboxes {
		t.Send(i, msg)
	}
}

// CloseAll closes every inbox, used once every machine has processed bye
// and no further sends can occur.
func (t *Transport) CloseAll() {
	for _, ch := range t.inboxes {
		close(ch)
	}
}
