// Package notifier provides a simple broadcast mechanism for status
// updates pushed to SSE listeners.
package notifier

import "sync"

// Notifier broadcasts status messages to all subscribed listeners.
type Notifier struct {
	mu        sync.RWMutex
	listeners map[chan string]struct{}
}

// New creates a new Notifier instance.
func New() *Notifier {
	return &Notifier{
		listeners: make(map[chan string]struct{}),
	}
}

// Subscribe returns a channel that receives broadcast messages.
// The caller must call Unsubscribe when done to prevent goroutine leaks.
func (n *Notifier) Subscribe() chan string {
	ch := make(chan string, 16)
	n.mu.Lock()
	n.listeners[ch] = struct{}{}
	n.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (n *Notifier) Unsubscribe(ch chan string) {
	n.mu.Lock()
	delete(n.listeners, ch)
	n.mu.Unlock()
	close(ch)
}

// Broadcast sends a message to all listeners.
// Non-blocking: if a listener's channel is full, the message is skipped.
func (n *Notifier) Broadcast(msg string) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for ch := range n.listeners {
		select {
		case ch <- msg:
		default:
			// Channel full, skip (slow listener misses this update)
		}
	}
}
