package observability

import (
	"strconv"
	"sync"
	"time"
)

// Delivery outcomes recorded per channel.
const (
	DeliverySent     = "sent"
	DeliveryRetried  = "retried"
	DeliveryFailed   = "failed"
	DeliverySkipped  = "skipped"
	DeliveryRejected = "rejected"
)

// Metrics provides basic in-memory counters.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	errorCount    map[string]int64
	deliveryCount map[string]int64
	publishErrors int64
	droppedEvents int64
}

// Snapshot is a point-in-time copy of every counter.
type Snapshot struct {
	Requests      map[string]int64 `json:"requests"`
	Errors        map[string]int64 `json:"errors"`
	Deliveries    map[string]int64 `json:"deliveries"`
	PublishErrors int64            `json:"publish_errors"`
	DroppedEvents int64            `json:"dropped_events"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:  make(map[string]int64),
		errorCount:    make(map[string]int64),
		deliveryCount: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + strconv.Itoa(status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordDelivery counts one notification attempt outcome for a channel.
func (m *Metrics) RecordDelivery(channel, outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deliveryCount[channel+"|"+outcome]++
}

// RecordPublishError counts events the engine failed to hand to the dispatcher.
func (m *Metrics) RecordPublishError() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishErrors++
}

// RecordDroppedEvent counts queued events abandoned at shutdown.
func (m *Metrics) RecordDroppedEvent() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.droppedEvents++
}

// Delivery returns the counter for channel and outcome.
func (m *Metrics) Delivery(channel, outcome string) int64 {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deliveryCount[channel+"|"+outcome]
}

// Snapshot copies all counters.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		Requests:      copyCounts(m.requestCount),
		Errors:        copyCounts(m.errorCount),
		Deliveries:    copyCounts(m.deliveryCount),
		PublishErrors: m.publishErrors,
		DroppedEvents: m.droppedEvents,
	}
}

func copyCounts(src map[string]int64) map[string]int64 {
	out := make(map[string]int64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
