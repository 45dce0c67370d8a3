package queue

import (
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// Topic names used across the service.
const TopicTriggerAlerts = "trigger_alerts"

// Queue interface
type Queue interface {
	Publish(topic string, payload any) error
	Subscribe(topic string, handler func(payload any) error) error
}

// InMemoryQueue is an in-process pub/sub queue with retry, used to fan
// trigger alerts out to subscribers without blocking the ingest path.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload any) error
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string][]func(payload any) error),
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Payload    any
	RetryCount int
	MaxRetries int
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(topic string, payload any) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	// No subscribers is a valid deployment (e.g. no broker configured);
	// the message is simply dropped.
	if len(handlers) == 0 {
		log.WithField("topic", topic).Debug("no subscribers, message dropped")
		return nil
	}

	job := JobPayload{
		Payload:    payload,
		RetryCount: 0,
		MaxRetries: 3,
	}

	for _, handler := range handlers {
		go q.processJob(handler, job)
	}

	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(handler func(payload any) error, job JobPayload) {
	for job.RetryCount <= job.MaxRetries {
		err := handler(job.Payload)
		if err == nil {
			return // ACK
		}

		job.RetryCount++
		log.WithError(err).WithFields(log.Fields{
			"attempt": job.RetryCount,
			"max":     job.MaxRetries,
		}).Warn("queue job failed")

		if job.RetryCount > job.MaxRetries {
			log.WithField("payload", fmt.Sprintf("%+v", job.Payload)).Error("queue job permanently failed")
			return // No requeue
		}

		// Exponential backoff before retry
		time.Sleep(time.Duration(job.RetryCount*500) * time.Millisecond)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}
