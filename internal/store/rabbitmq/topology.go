package rabbitmq

import (
	"encoding/json"
	"errors"

	amqp "github.com/rabbitmq/amqp091-go"
)

// JobMessage is the body of every message on the job queues.
type JobMessage struct {
	JobID string `json:"job_id"`
	Kind  string `json:"kind,omitempty"`
}

func DecodeJobMessage(body []byte) (JobMessage, error) {
	var m JobMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return m, err
	}
	if m.JobID == "" {
		return m, errors.New("job message without job_id")
	}
	return m, nil
}

// Queues names the three queues behind one logical job queue.
type Queues struct {
	Main  string
	Retry string
	DLQ   string
}

func QueuesFor(queue string) Queues {
	return Queues{Main: queue, Retry: queue + ".retry", DLQ: queue + ".dlq"}
}

// DeclareTopology declares main, retry and dead-letter queues.
// Rejected main-queue messages go to the DLQ; retry messages expire back into main.
func DeclareTopology(ch *amqp.Channel, q Queues) error {
	if _, err := ch.QueueDeclare(q.DLQ, true, false, false, false, nil); err != nil {
		return err
	}
	if _, err := ch.QueueDeclare(q.Retry, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": q.Main,
	}); err != nil {
		return err
	}
	_, err := ch.QueueDeclare(q.Main, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": q.DLQ,
	})
	return err
}
