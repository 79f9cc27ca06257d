// Package notify publishes ledger sync outcomes for downstream consumers.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/mmdatafocus/taxsales_validator/config"
	"github.com/mmdatafocus/taxsales_validator/ledgersync"
	"github.com/sirupsen/logrus"
)

// SyncEvent is the message body published after every sync attempt.
type SyncEvent struct {
	RunId       string    `json:"run_id"`
	Period      string    `json:"period,omitempty"`
	Mode        string    `json:"mode"`
	State       string    `json:"state"`
	Attempted   int       `json:"attempted"`
	Inserted    int       `json:"inserted"`
	Updated     int       `json:"updated"`
	Skipped     int       `json:"skipped"`
	BlockReason string    `json:"block_reason,omitempty"`
	FailedRow   int       `json:"failed_row,omitempty"`
	FailedKey   string    `json:"failed_key,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"started_at"`
	DurationMs  int64     `json:"duration_ms"`
}

func EventFrom(res *ledgersync.SyncResult) SyncEvent {
	ev := SyncEvent{
		RunId:       res.RunId,
		Period:      res.Period,
		Mode:        string(res.Mode),
		State:       string(res.State),
		Attempted:   res.Attempted,
		Inserted:    res.Inserted,
		Updated:     res.Updated,
		Skipped:     res.Mapping.Failed(),
		BlockReason: string(res.BlockReason),
		FailedRow:   res.FailedRow,
		FailedKey:   res.FailedKey,
		StartedAt:   res.StartedAt,
		DurationMs:  res.Duration.Milliseconds(),
	}
	if err := res.Err(); err != nil {
		ev.Error = err.Error()
	}
	return ev
}

// Sender delivers one encoded event with its attributes.
type Sender interface {
	Send(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

type topicSender struct {
	topic *pubsub.Topic
}

func (s *topicSender) Send(ctx context.Context, data []byte, attrs map[string]string) (string, error) {
	result := s.topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	return result.Get(ctx)
}

type Publisher struct {
	sender Sender
	logger *logrus.Logger
}

func NewPublisher(sender Sender, logger *logrus.Logger) *Publisher {
	if logger == nil {
		logger = logrus.New()
	}
	return &Publisher{sender: sender, logger: logger}
}

// NewPubSubPublisher connects to the configured topic, creating it when missing.
// The returned func stops the topic and closes the client.
func NewPubSubPublisher(ctx context.Context, out config.OutputConfig, logger *logrus.Logger) (*Publisher, func() error, error) {
	client, err := config.NewPubSubClient(ctx, out)
	if err != nil {
		return nil, nil, err
	}
	topic, err := config.CreateTopicIfNotExists(ctx, client, out.SyncEventsTopic)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	closeFn := func() error {
		topic.Stop()
		return client.Close()
	}
	return NewPublisher(&topicSender{topic: topic}, logger), closeFn, nil
}

// Publish sends the outcome of res and returns the server-assigned message id.
func (p *Publisher) Publish(ctx context.Context, res *ledgersync.SyncResult) (string, error) {
	data, err := json.Marshal(EventFrom(res))
	if err != nil {
		return "", err
	}
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	id, err := p.sender.Send(ctx, data, map[string]string{
		"run_id": res.RunId,
		"state":  string(res.State),
		"mode":   string(res.Mode),
	})
	if err != nil {
		return "", fmt.Errorf("publish sync event %s: %w", res.RunId, err)
	}
	p.logger.WithFields(logrus.Fields{
		"module":     "notify",
		"run_id":     res.RunId,
		"message_id": id,
	}).Info("sync event published")
	return id, nil
}
