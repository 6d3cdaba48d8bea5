package mqtt

import "github.com/pocketgadget/gadgetd/internal/logger"

// message is a serialized publish waiting for the broker.
type message struct {
	topic    string
	payload  []byte
	qos      byte
	retained bool
}

// outbox holds messages published while disconnected. The broker keeps only
// the last retained message per topic, so a retained push replaces any earlier
// retained message on the same topic. When full, the oldest non-retained
// message is evicted first. The caller synchronizes.
type outbox struct {
	msgs    []message
	limit   int
	dropped uint64
	warned  bool
	log     *logger.Logger
}

func newOutbox(limit int, log *logger.Logger) *outbox {
	if log == nil {
		log = logger.Discard()
	}
	return &outbox{msgs: make([]message, 0, limit), limit: limit, log: log}
}

func (o *outbox) push(m message) {
	if m.retained {
		o.remove(func(old message) bool { return old.retained && old.topic == m.topic })
	}
	o.msgs = append(o.msgs, m)
	if len(o.msgs) <= o.limit {
		return
	}

	if !o.remove(func(old message) bool { return !old.retained }) {
		o.msgs = o.msgs[1:]
	}
	o.dropped++
	if !o.warned {
		o.log.Warnf("offline buffer full (%d messages), dropping oldest", o.limit)
		o.warned = true
	}
}

// remove deletes the first message matching f.
func (o *outbox) remove(f func(message) bool) bool {
	for i, old := range o.msgs {
		if f(old) {
			o.msgs = append(o.msgs[:i], o.msgs[i+1:]...)
			return true
		}
	}
	return false
}

// take returns the queued messages in publish order and empties the outbox.
func (o *outbox) take() []message {
	if len(o.msgs) == 0 {
		return nil
	}
	out := o.msgs
	o.msgs = make([]message, 0, o.limit)
	o.warned = false
	return out
}

func (o *outbox) len() int { return len(o.msgs) }
