// Package consumer bridges the beacon transport to the ingest pipeline. The
// scanner fleet publishes each detection as a record whose headers carry the
// original beacon topic path and QoS; delivery is at-least-once and the
// pipeline tolerates redelivery.
package consumer

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	"attentid/internal/platform/config"
)

// Handler is implemented by the ingest pipeline.
type Handler interface {
	HandleMessage(ctx context.Context, topic string, payload []byte, qos int) error
}

// Consumer polls the beacon topic and hands each record to the pipeline.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	logger  *slog.Logger
}

// New connects a consumer-group client and ensures the ingest topic exists.
func New(cfg config.KafkaConfig, handler Handler, logger *slog.Logger) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.Group),
		kgo.ConsumeTopics(cfg.Topic),
	)
	if err != nil {
		return nil, err
	}

	if err := ensureTopic(context.Background(), client, cfg.Topic); err != nil {
		client.Close()
		return nil, err
	}

	return &Consumer{client: client, handler: handler, logger: logger}, nil
}

// Run polls until the context is cancelled. A failed Append surfaces here as
// an unprocessed record; the offset is not advanced past it, so the broker
// redelivers after restart.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.client.Close()
	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.ErrorContext(ctx, "fetch error",
				"topic", topic, "partition", partition, "error", err)
		})
		fetches.EachRecord(func(record *kgo.Record) {
			beaconTopic, qos := recordMeta(record)
			if err := c.handler.HandleMessage(ctx, beaconTopic, record.Value, qos); err != nil {
				c.logger.ErrorContext(ctx, "message handling failed",
					"beacon_topic", beaconTopic, "error", err)
			}
		})
	}
}

// recordMeta pulls the beacon topic path and QoS from record headers, falling
// back to the record key for the topic.
func recordMeta(record *kgo.Record) (string, int) {
	beaconTopic := string(record.Key)
	qos := 0
	for _, h := range record.Headers {
		switch h.Key {
		case "beacon-topic":
			beaconTopic = string(h.Value)
		case "qos":
			if n, err := strconv.Atoi(string(h.Value)); err == nil {
				qos = n
			}
		}
	}
	return beaconTopic, qos
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	_, err := adm.CreateTopic(ctx, -1, -1, nil, topic)
	if err != nil && !errors.Is(err, kerr.TopicAlreadyExists) {
		return err
	}
	return nil
}
