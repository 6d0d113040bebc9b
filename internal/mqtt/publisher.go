package mqtt

import (
	"context"
	"encoding/json"
	"time"

	"github.com/tphakala/imageclassifier-go/internal/classifier"
	"github.com/tphakala/imageclassifier-go/internal/errors"
	"github.com/tphakala/imageclassifier-go/internal/logger"
)

// RecognitionMessage is the JSON payload published for each classified photo.
type RecognitionMessage struct {
	RequestID    string                   `json:"request_id"`
	Source       string                   `json:"source"`
	FileName     string                   `json:"file_name,omitempty"`
	Orientation  int                      `json:"orientation"`
	Recognitions []classifier.Recognition `json:"recognitions"`
	DurationMS   float64                  `json:"duration_ms"`
	Timestamp    time.Time                `json:"timestamp"`
}

// Publisher sends recognitions to the configured topic.
type Publisher struct {
	client Client
	topic  string
}

// NewPublisher returns a Publisher that writes to topic through client.
func NewPublisher(client Client, topic string) *Publisher {
	return &Publisher{client: client, topic: topic}
}

// Topic returns the destination topic.
func (p *Publisher) Topic() string { return p.topic }

// Publish encodes msg and publishes it. A disconnected client is reported
// as an error without blocking.
func (p *Publisher) Publish(ctx context.Context, msg RecognitionMessage) error {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	if msg.Recognitions == nil {
		msg.Recognitions = []classifier.Recognition{}
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return errors.New(err).
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Build()
	}

	if !p.client.IsConnected() {
		GetLogger().Debug("skipping publish, broker not connected",
			logger.String("request_id", msg.RequestID))
		return errors.Newf("not connected to MQTT broker").
			Component("mqtt").
			Category(errors.CategoryMQTTPublish).
			Build()
	}

	return p.client.Publish(ctx, p.topic, payload)
}
