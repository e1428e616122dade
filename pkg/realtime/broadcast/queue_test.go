package broadcast

import (
	"encoding/json"
	"testing"

	"github.com/adjust/rmq/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/travigo/transitsound/pkg/ctdf"
)

func TestQueueBridge_PublishBatch(t *testing.T) {
	connection := rmq.NewTestConnection()

	bridge, err := NewQueueBridge(connection)
	require.NoError(t, err)

	require.NoError(t, bridge.PublishBatch(batchOf(1)))

	deliveries := connection.GetDeliveries(QueueName)
	require.Len(t, deliveries, 1)

	var decoded ctdf.UpdateBatch
	require.NoError(t, json.Unmarshal([]byte(deliveries[0]), &decoded))
	assert.JSONEq(t, `[{"vehicle_id":"B1"}]`, string(decoded.Buses))
}

func TestBatchConsumer_Consume(t *testing.T) {
	_, hub := newHub(4)
	subscription := hub.Subscribe()

	payload, err := json.Marshal(batchOf(7))
	require.NoError(t, err)

	good := rmq.NewTestDeliveryString(string(payload))
	bad := rmq.NewTestDeliveryString("not json")

	NewBatchConsumer(hub).Consume(rmq.Deliveries{good, bad})

	assert.Equal(t, rmq.Acked, good.State)
	assert.Equal(t, rmq.Rejected, bad.State)

	batch := <-subscription.Updates
	assert.JSONEq(t, `[{"vehicle_id":"B7"}]`, string(batch.Buses))
}
