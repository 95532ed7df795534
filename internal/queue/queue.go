// Package queue carries audio processing jobs between the upload service
// and the worker over RabbitMQ. Messages are acked only after a job fully
// completes; failures go through a delayed retry queue and land in a
// dead-letter queue once the retry budget is spent.
package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"casefile/pkg/logger"
)

const AudioQueue = "audio_queue"

// JobMessage is the queue payload for one uploaded audio file.
type JobMessage struct {
	CaseID   string `json:"case_id"`
	Filename string `json:"filename"`
	BlobURL  string `json:"blob_url"`
}

func Init(url string) *amqp091.Connection {
	conn, err := amqp091.Dial(url)
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}
	return conn
}

func SetupQueues(ch *amqp091.Channel, queueNames []string) error {
	for _, name := range queueNames {
		_, err := ch.QueueDeclare(
			name,
			true,  // durable
			false, // autoDelete
			false, // exclusive
			false, // noWait
			nil,   // args
		)
		if err != nil {
			return err
		}

		dlqName := name + "_dlq"
		_, err = ch.QueueDeclare(
			dlqName,
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return err
		}

		retryName := name + "_retry"
		_, err = ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             int32(10000),
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func PublishFIFO(ch *amqp091.Channel, queueName string, data []byte) error {
	q, err := ch.QueueDeclare(
		queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return err
	}

	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}

	return ch.Publish(
		"",
		q.Name,
		false,
		false,
		publishing,
	)
}

// Publisher enqueues audio processing jobs.
type Publisher struct {
	ch *amqp091.Channel
}

func NewPublisher(ch *amqp091.Channel) *Publisher {
	return &Publisher{ch: ch}
}

func (p *Publisher) Enqueue(ctx context.Context, caseID, filename, blobURL string) error {
	body, err := json.Marshal(JobMessage{
		CaseID:   caseID,
		Filename: filename,
		BlobURL:  blobURL,
	})
	if err != nil {
		return err
	}
	return PublishFIFO(p.ch, AudioQueue, body)
}
