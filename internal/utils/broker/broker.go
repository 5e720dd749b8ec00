// broker/broker.go
package broker

import (
	"sync"
)

// Broker is an in-process topic fan-out. Publish never blocks: a subscriber
// whose buffer is full misses the message.
type Broker struct {
	subscribers map[string][]chan interface{}
	mu          sync.RWMutex
	bufferSize  int
}

func NewBroker(bufferSize int) *Broker {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Broker{
		subscribers: make(map[string][]chan interface{}),
		bufferSize:  bufferSize,
	}
}

func (b *Broker) Subscribe(topic string) <-chan interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan interface{}, b.bufferSize)
	b.subscribers[topic] = append(b.subscribers[topic], ch)
	return ch
}

// Unsubscribe removes and closes ch. Unknown channels are ignored.
func (b *Broker) Unsubscribe(topic string, ch <-chan interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	chans, ok := b.subscribers[topic]
	if !ok {
		return
	}
	for i, c := range chans {
		if c == ch {
			chans = append(chans[:i], chans[i+1:]...)
			close(c)
			break
		}
	}
	if len(chans) == 0 {
		delete(b.subscribers, topic)
	} else {
		b.subscribers[topic] = chans
	}
}

// Publish returns the number of subscribers that accepted msg.
func (b *Broker) Publish(topic string, msg interface{}) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	delivered := 0
	for _, ch := range b.subscribers[topic] {
		select {
		case ch <- msg:
			delivered++
		default:
		}
	}
	return delivered
}
