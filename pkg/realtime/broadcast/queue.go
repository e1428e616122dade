package broadcast

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/travigo/transitsound/pkg/ctdf"
)

const QueueName = "realtime-queue"

const batchSize = 50
const batchTimeout = time.Second
const pollDuration = 500 * time.Millisecond

// QueueBridge moves update batches through a redis queue so pollers and hubs
// can run in separate processes
type QueueBridge struct {
	queue rmq.Queue
}

func NewQueueBridge(connection rmq.Connection) (*QueueBridge, error) {
	queue, err := connection.OpenQueue(QueueName)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", QueueName, err)
	}

	return &QueueBridge{queue: queue}, nil
}

func (b *QueueBridge) PublishBatch(batch ctdf.UpdateBatch) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("encode update batch: %w", err)
	}

	return b.queue.PublishBytes(payload)
}

// StartConsuming publishes every queued batch into hub
func (b *QueueBridge) StartConsuming(hub *Hub) error {
	if err := b.queue.StartConsuming(batchSize*2, pollDuration); err != nil {
		return fmt.Errorf("start consuming %s: %w", QueueName, err)
	}

	if _, err := b.queue.AddBatchConsumer(QueueName+"-hub", batchSize, batchTimeout, NewBatchConsumer(hub)); err != nil {
		return fmt.Errorf("add consumer to %s: %w", QueueName, err)
	}

	log.Info().Str("queue", QueueName).Msg("Consuming update batches")

	return nil
}

type BatchConsumer struct {
	hub *Hub
}

func NewBatchConsumer(hub *Hub) *BatchConsumer {
	return &BatchConsumer{hub: hub}
}

func (consumer *BatchConsumer) Consume(batch rmq.Deliveries) {
	for _, delivery := range batch {
		var updateBatch ctdf.UpdateBatch
		if err := json.Unmarshal([]byte(delivery.Payload()), &updateBatch); err != nil {
			log.Error().Err(err).Msg("Failed to decode queued update batch")

			if err := delivery.Reject(); err != nil {
				log.Error().Err(err).Msg("Failed to reject update batch")
			}
			continue
		}

		consumer.hub.Publish(updateBatch)

		if err := delivery.Ack(); err != nil {
			log.Error().Err(err).Msg("Failed to ack update batch")
		}
	}
}
