package align

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleResult() MatchResult {
	return MatchResult{
		Transform:  IdentityTransform(),
		Score:      0.87,
		Elapsed:    420 * time.Millisecond,
		Bases:      123,
		Candidates: 456,
	}
}

func TestPublishResult(t *testing.T) {
	client := NewMockClient()
	client.SetConnected(true)

	p := NewPublisher(client)
	p.SetPrefix("scans")

	require.NoError(t, p.PublishResult("bun000-bun045", sampleResult()))

	msgs := client.PublishedMessages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "scans/bun000-bun045", msgs[0].Topic)
	assert.Equal(t, "scans/results", msgs[1].Topic)
	assert.True(t, msgs[0].Retain)

	var event RegistrationEvent
	require.NoError(t, json.Unmarshal(msgs[0].Payload, &event))
	assert.Equal(t, "bun000-bun045", event.PairID)
	assert.Equal(t, 0.87, event.Result.Score)
	assert.NotZero(t, event.Timestamp)
}

func TestPublishResultNotConnected(t *testing.T) {
	p := NewPublisher(NewMockClient())
	assert.Error(t, p.PublishResult("pair", sampleResult()))

	assert.Error(t, NewPublisher(nil).PublishResult("pair", sampleResult()))
}

func TestPublishResultBrokerError(t *testing.T) {
	client := NewMockClient()
	client.SetConnected(true)
	client.SetPublishError(fmt.Errorf("broker on fire"))

	p := NewPublisher(client)
	assert.ErrorContains(t, p.PublishResult("pair", sampleResult()), "broker on fire")
}

func TestCombinedTopicAccumulates(t *testing.T) {
	client := NewMockClient()
	client.SetConnected(true)
	p := NewPublisher(client)
	p.SetPrefix("scans")

	require.NoError(t, p.PublishResult("a-b", sampleResult()))
	require.NoError(t, p.PublishResult("b-c", sampleResult()))

	msgs := client.PublishedMessages()
	require.Len(t, msgs, 4)

	var combined struct {
		Pairs []RegistrationEvent `json:"pairs"`
	}
	require.NoError(t, json.Unmarshal(msgs[3].Payload, &combined))
	assert.Len(t, combined.Pairs, 2)
}

func TestGetResult(t *testing.T) {
	client := NewMockClient()
	client.SetConnected(true)
	p := NewPublisher(client)

	_, ok := p.GetResult("pair")
	assert.False(t, ok)

	require.NoError(t, p.PublishResult("pair", sampleResult()))
	event, ok := p.GetResult("pair")
	require.True(t, ok)
	assert.Equal(t, 0.87, event.Result.Score)
}

func TestPublisherSettings(t *testing.T) {
	t.Setenv("MQTT_PUBLISH_PREFIX", "")
	p := NewPublisher(nil)

	p.SetPrefix("")
	assert.Equal(t, "scanstitch", p.publishPrefix)
	p.SetPrefix("custom")
	assert.Equal(t, "custom", p.publishPrefix)

	p.SetQoS(1)
	assert.Equal(t, byte(1), p.qos)
	p.SetQoS(7) // invalid, ignored
	assert.Equal(t, byte(1), p.qos)

	p.SetRetain(false)
	assert.False(t, p.retain)
}
