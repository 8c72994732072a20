package rabbitmq

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type Publisher struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queues Queues

	// amqp channels are not safe for concurrent publishes
	mu sync.Mutex
}

func NewPublisher(url, queue string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	qs := QueuesFor(queue)
	if err := DeclareTopology(ch, qs); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	return &Publisher{conn: conn, ch: ch, queues: qs}, nil
}

func (p *Publisher) Close() error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// PublishJob sends a job id to the main queue.
func (p *Publisher) PublishJob(ctx context.Context, jobID string) error {
	return p.publish(ctx, p.queues.Main, JobMessage{JobID: jobID}, 0)
}

// PublishRetry parks a job on the retry queue; it returns to the main queue after delay.
func (p *Publisher) PublishRetry(ctx context.Context, jobID string, delay time.Duration) error {
	return p.publish(ctx, p.queues.Retry, JobMessage{JobID: jobID}, delay)
}

func (p *Publisher) publish(ctx context.Context, queue string, m JobMessage, ttl time.Duration) error {
	body, err := json.Marshal(m)
	if err != nil {
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    time.Now(),
	}
	if ttl > 0 {
		msg.Expiration = strconv.FormatInt(ttl.Milliseconds(), 10)
	}

	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(cctx, "", queue, false, false, msg)
}
