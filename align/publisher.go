package align

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// RegistrationEvent is the payload published for a finished alignment.
type RegistrationEvent struct {
	PairID    string      `json:"pairId"`
	Result    MatchResult `json:"result"`
	Timestamp int64       `json:"timestamp"`
}

// Publisher announces finished registrations to MQTT so downstream
// pipeline stages (pose-graph assembly, viewers) can pick them up.
type Publisher struct {
	client        mqtt.Client
	publishPrefix string
	qos           byte
	retain        bool
	results       map[string]*RegistrationEvent
	mu            sync.RWMutex
}

// NewPublisher creates a result publisher. If client is nil, publishing is
// disabled (for testing).
func NewPublisher(client mqtt.Client) *Publisher {
	prefix := os.Getenv("MQTT_PUBLISH_PREFIX")
	if prefix == "" {
		prefix = "scanstitch"
	}
	return &Publisher{
		client:        client,
		publishPrefix: prefix,
		qos:           0,
		retain:        true, // retain latest result per pair
		results:       make(map[string]*RegistrationEvent),
	}
}

// SetPrefix overrides the topic prefix (normally from MQTT_PUBLISH_PREFIX).
func (p *Publisher) SetPrefix(prefix string) {
	if prefix != "" {
		p.publishPrefix = prefix
	}
}

// SetQoS sets the Quality of Service level for publishing (0, 1, or 2).
func (p *Publisher) SetQoS(qos byte) {
	if qos <= 2 {
		p.qos = qos
	}
}

// SetRetain sets whether published messages should be retained by the broker.
func (p *Publisher) SetRetain(retain bool) {
	p.retain = retain
}

// PublishResult publishes a registration result for a cloud pair to both
// the per-pair topic and the combined results topic.
func (p *Publisher) PublishResult(pairID string, result MatchResult) error {
	if p.client == nil || !p.client.IsConnected() {
		return fmt.Errorf("MQTT client not connected")
	}

	event := &RegistrationEvent{
		PairID:    pairID,
		Result:    result,
		Timestamp: time.Now().Unix(),
	}

	p.mu.Lock()
	p.results[pairID] = event
	p.mu.Unlock()

	if err := p.publishIndividual(event); err != nil {
		log.Printf("Error publishing result for %s: %v", pairID, err)
		return err
	}
	if err := p.publishCombined(); err != nil {
		log.Printf("Error publishing combined results: %v", err)
		return err
	}
	return nil
}

// publishIndividual publishes one pair's result to {prefix}/{pairID}.
func (p *Publisher) publishIndividual(event *RegistrationEvent) error {
	topic := fmt.Sprintf("%s/%s", p.publishPrefix, event.PairID)

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshaling result: %w", err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}

	log.Printf("Published result for %s: score=%.3f elapsed=%s",
		event.PairID, event.Result.Score, event.Result.Elapsed.Round(time.Millisecond))
	return nil
}

// publishCombined publishes all known pair results to {prefix}/results.
func (p *Publisher) publishCombined() error {
	p.mu.RLock()
	events := make([]*RegistrationEvent, 0, len(p.results))
	for _, e := range p.results {
		events = append(events, e)
	}
	p.mu.RUnlock()

	if len(events) == 0 {
		return nil
	}

	topic := fmt.Sprintf("%s/results", p.publishPrefix)
	message := map[string]interface{}{
		"pairs":     events,
		"timestamp": time.Now().Unix(),
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshaling combined results: %w", err)
	}

	token := p.client.Publish(topic, p.qos, p.retain, payload)
	if token.WaitTimeout(2*time.Second) && token.Error() != nil {
		return fmt.Errorf("publishing to %s: %w", topic, token.Error())
	}
	return nil
}

// GetResult returns the last published result for a pair.
func (p *Publisher) GetResult(pairID string) (*RegistrationEvent, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.results[pairID]
	return e, ok
}

// ConnectMQTT connects a client per the configuration. Callers own the
// returned client and should Disconnect it on shutdown.
func ConnectMQTT(cfg *MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = fmt.Sprintf("scanstitch-%d", time.Now().Unix())
	}
	opts.SetClientID(clientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(15 * time.Second) {
		return nil, fmt.Errorf("timeout connecting to MQTT broker %s", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connecting to MQTT broker %s: %w", cfg.Broker, err)
	}
	return client, nil
}
