package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"gpsnmea/internal/nmea"
)

const (
	// DefaultTopic is the topic record snapshots are published on.
	DefaultTopic = "gpsnmea/record"
	// DefaultInterval is the minimum time between two publishes.
	DefaultInterval = time.Second

	publishTimeout    = 5 * time.Second
	disconnectQuiesce = 250 // milliseconds
)

// SnapshotSource provides the decoded record.
type SnapshotSource interface {
	Snapshot() nmea.Snapshot
}

// MQTTPublisher publishes record snapshots as retained JSON messages.
type MQTTPublisher struct {
	client   mqtt.Client
	topic    string
	interval time.Duration
	logger   *logrus.Logger

	published atomic.Uint64
	failed    atomic.Uint64
}

// NewMQTTPublisher connects to broker and returns a publisher for topic.
// At most one snapshot is published per interval.
func NewMQTTPublisher(broker, clientID, topic string, interval time.Duration, logger *logrus.Logger) (*MQTTPublisher, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(10 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logger.WithError(err).Warn("MQTT connection lost")
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(publishTimeout) {
		return nil, fmt.Errorf("timed out connecting to MQTT broker %s", broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", broker, err)
	}

	logger.WithFields(logrus.Fields{
		"broker": broker,
		"topic":  topic,
	}).Info("Connected to MQTT broker")

	return newMQTTPublisher(client, topic, interval, logger), nil
}

func newMQTTPublisher(client mqtt.Client, topic string, interval time.Duration, logger *logrus.Logger) *MQTTPublisher {
	if topic == "" {
		topic = DefaultTopic
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &MQTTPublisher{
		client:   client,
		topic:    topic,
		interval: interval,
		logger:   logger,
	}
}

// Topic returns the topic snapshots are published on.
func (p *MQTTPublisher) Topic() string {
	return p.topic
}

// Publish sends one snapshot and waits for the broker to accept it.
func (p *MQTTPublisher) Publish(snap nmea.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	token := p.client.Publish(p.topic, 0, true, payload)
	if !token.WaitTimeout(publishTimeout) {
		p.failed.Add(1)
		return fmt.Errorf("timed out publishing to %s", p.topic)
	}
	if err := token.Error(); err != nil {
		p.failed.Add(1)
		return fmt.Errorf("failed to publish to %s: %w", p.topic, err)
	}

	p.published.Add(1)
	return nil
}

// Run publishes the record right away and then once per interval whenever
// it changed, until ctx is done.
func (p *MQTTPublisher) Run(ctx context.Context, source SnapshotSource) {
	var last nmea.Snapshot
	sent := false

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if snap := source.Snapshot(); !sent || snap != last {
			if err := p.Publish(snap); err != nil {
				p.logger.WithError(err).Warn("Failed to publish record")
			} else {
				last = snap
				sent = true
			}
		}

		select {
		case <-ctx.Done():
			p.logger.WithFields(logrus.Fields{
				"published": p.published.Load(),
				"failed":    p.failed.Load(),
			}).Info("MQTT publisher stopped")
			return
		case <-ticker.C:
		}
	}
}

// Published returns how many snapshots the broker accepted.
func (p *MQTTPublisher) Published() uint64 {
	return p.published.Load()
}

// Failed returns how many publishes failed or timed out.
func (p *MQTTPublisher) Failed() uint64 {
	return p.failed.Load()
}

// Close disconnects from the broker.
func (p *MQTTPublisher) Close() error {
	if p.client.IsConnected() {
		p.client.Disconnect(disconnectQuiesce)
	}
	return nil
}
