package notify

import "sync"

// RingBuffer is a bounded, thread-safe buffer of pending notifications.
// When full, the oldest entries are dropped to make room for new ones:
// notifications are advisory, the audit row itself is already durable.
type RingBuffer struct {
	mu       sync.Mutex
	entries  []Notification
	head     int // next write position
	tail     int // next read position
	count    int
	capacity int

	dropped int64
	onDrop  func()
}

// NewRingBuffer creates a ring buffer with the given capacity.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 10000
	}
	return &RingBuffer{
		entries:  make([]Notification, capacity),
		capacity: capacity,
	}
}

// Enqueue adds a notification, dropping the oldest if necessary.
func (b *RingBuffer) Enqueue(n Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count >= b.capacity {
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
		if b.onDrop != nil {
			b.onDrop()
		}
	}

	b.entries[b.head] = n
	b.head = (b.head + 1) % b.capacity
	b.count++
}

// DequeueBatch removes up to n notifications from the buffer.
func (b *RingBuffer) DequeueBatch(n int) []Notification {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count == 0 {
		return nil
	}
	if n > b.count {
		n = b.count
	}

	result := make([]Notification, n)
	for i := 0; i < n; i++ {
		result[i] = b.entries[b.tail]
		b.tail = (b.tail + 1) % b.capacity
	}
	b.count -= n

	return result
}

// Len returns the current number of buffered notifications.
func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// SetDropHook installs a callback invoked once per dropped notification.
func (b *RingBuffer) SetDropHook(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onDrop = fn
}

// Dropped returns the total number of dropped notifications.
func (b *RingBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
