package rabbitmq

import (
	amqp "github.com/rabbitmq/amqp091-go"
)

// Consumer reads the main job queue with manual acks.
type Consumer struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	msgs <-chan amqp.Delivery
}

// NewConsumer declares the queue topology and starts consuming with at most prefetch unacked messages.
func NewConsumer(url, queue string, prefetch int) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	fail := func(err error) (*Consumer, error) {
		_ = ch.Close()
		_ = conn.Close()
		return nil, err
	}
	qs := QueuesFor(queue)
	if err := DeclareTopology(ch, qs); err != nil {
		return fail(err)
	}
	// strict concurrency control
	if err := ch.Qos(prefetch, 0, false); err != nil {
		return fail(err)
	}
	msgs, err := ch.Consume(qs.Main, "", false, false, false, false, nil)
	if err != nil {
		return fail(err)
	}
	return &Consumer{conn: conn, ch: ch, msgs: msgs}, nil
}

func (c *Consumer) Deliveries() <-chan amqp.Delivery { return c.msgs }

func (c *Consumer) Close() error {
	_ = c.ch.Close()
	return c.conn.Close()
}
