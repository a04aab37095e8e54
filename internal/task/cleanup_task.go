package task

import (
	"OceanBooks/internal/mq"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// CleanupMessage is the payload sent to the cleanup worker.
type CleanupMessage struct {
	BookID    uint64    `json:"book_id"`
	Paths     []string  `json:"paths"`
	Attempt   int       `json:"attempt"`
	DeletedAt time.Time `json:"deleted_at"`
}

// NewCleanupMessage builds a first-attempt message, dropping empty paths.
func NewCleanupMessage(bookID uint64, paths []string, now time.Time) CleanupMessage {
	kept := make([]string, 0, len(paths))
	for _, p := range paths {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return CleanupMessage{BookID: bookID, Paths: kept, DeletedAt: now}
}

type taskPublisher interface {
	PublishTask(ctx context.Context, body []byte) error
	Healthy() bool
	Close()
}

// CleanupPublisher enqueues cleanup messages, redialing when the channel drops.
type CleanupPublisher struct {
	mu     sync.Mutex
	dial   func() (taskPublisher, error)
	client taskPublisher
}

func NewCleanupPublisher(url string) *CleanupPublisher {
	return &CleanupPublisher{
		dial: func() (taskPublisher, error) {
			client, err := mq.DialPublisher(url)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
	}
}

// PublishCleanup enqueues the blob paths of a deleted book.
func (p *CleanupPublisher) PublishCleanup(ctx context.Context, bookID uint64, paths []string) error {
	msg := NewCleanupMessage(bookID, paths, time.Now().UTC())
	if len(msg.Paths) == 0 {
		return nil
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	client, err := p.publisher()
	if err != nil {
		return fmt.Errorf("connect rabbitmq: %w", err)
	}
	return client.PublishTask(ctx, body)
}

func (p *CleanupPublisher) publisher() (taskPublisher, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		if p.client.Healthy() {
			return p.client, nil
		}
		p.client.Close()
		p.client = nil
	}
	client, err := p.dial()
	if err != nil {
		return nil, err
	}
	p.client = client
	return client, nil
}

// Close releases the underlying connection.
func (p *CleanupPublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
}
