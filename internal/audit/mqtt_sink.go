package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/geoclock/timekeeper/internal/errors"
)

// Publisher is the subset of the MQTT client the sink needs.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	IsConnected() bool
}

// MQTTSink publishes events as JSON to <topic>/<orgId>/<action>.
type MQTTSink struct {
	client Publisher
	topic  string
}

// NewMQTTSink creates an MQTTSink rooted at topic.
func NewMQTTSink(client Publisher, topic string) *MQTTSink {
	return &MQTTSink{client: client, topic: strings.TrimSuffix(topic, "/")}
}

// Name implements Backend.
func (s *MQTTSink) Name() string {
	return "mqtt"
}

// Topic returns the topic an event is published to.
func (s *MQTTSink) Topic(event Event) string {
	return fmt.Sprintf("%s/%s/%s", s.topic, event.OrgID, event.Action)
}

// Write implements Backend.
func (s *MQTTSink) Write(ctx context.Context, event Event) error {
	topic := s.Topic(event)
	if !s.client.IsConnected() {
		return errors.Newf("mqtt client not connected").
			Component("audit").
			Category(errors.CategoryMQTTPublish).
			Context("topic", topic).
			Build()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.New(err).
			Component("audit").
			Category(errors.CategoryAudit).
			Context("action", event.Action).
			Build()
	}
	return s.client.Publish(ctx, topic, payload)
}
