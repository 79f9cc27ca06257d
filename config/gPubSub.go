package config

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// NewPubSubClient creates a client for the configured project. It uses
// Application Default Credentials unless PUBSUB_CREDENTIALS_JSON is provided.
func NewPubSubClient(ctx context.Context, out OutputConfig) (*pubsub.Client, error) {
	if out.PubSubProjectID == "" {
		return nil, errors.New("PUBSUB_PROJECT_ID/GOOGLE_CLOUD_PROJECT not set")
	}

	const attempts = 3
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		var (
			c   *pubsub.Client
			err error
		)
		if out.PubSubCredentialsJSON != "" {
			c, err = pubsub.NewClient(ctx, out.PubSubProjectID, option.WithCredentialsJSON([]byte(out.PubSubCredentialsJSON)))
		} else {
			c, err = pubsub.NewClient(ctx, out.PubSubProjectID)
		}
		if err == nil {
			log.Printf("pubsub client ready (project_id=%s attempt=%d)", out.PubSubProjectID, attempt)
			return c, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		sleep := time.Second * time.Duration(1<<attempt)
		log.Printf("failed to init pubsub client (project_id=%s attempt=%d): %v; retrying in %s", out.PubSubProjectID, attempt, err, sleep)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(sleep):
		}
	}
	return nil, fmt.Errorf("init pubsub client: %w", lastErr)
}

func CreateTopicIfNotExists(ctx context.Context, c *pubsub.Client, topic string) (*pubsub.Topic, error) {
	if c == nil {
		return nil, errors.New("pubsub client is nil")
	}
	if topic == "" {
		return nil, errors.New("topic is required")
	}

	t := c.Topic(topic)
	ok, err := t.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		return t, nil
	}
	t, err = c.CreateTopic(ctx, topic)
	if err != nil {
		return nil, fmt.Errorf("create topic %q: %w", topic, err)
	}
	return t, nil
}
