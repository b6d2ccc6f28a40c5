// Package relay ships committed audit entries to the audit Kafka topic.
// The audit_log table is the outbox: entries are written transactionally
// with their mutation, and the relay drains unshipped rows in the
// background. Delivery is at-least-once; consumers deduplicate on entry id.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"metrology/internal/audit"
	"metrology/internal/domain"
	"metrology/internal/platform/metrics"
)

// Producer is the topic-append seam. Tests swap in a fake; production uses
// KafkaProducer.
type Producer interface {
	Produce(ctx context.Context, records []*kgo.Record) error
}

// Relay drains unshipped audit entries into the topic on a fixed interval.
type Relay struct {
	store    audit.Store
	producer Producer
	topic    string
	interval time.Duration
	batch    int
	log      *slog.Logger
	metrics  *metrics.Metrics
	clock    domain.Clock
}

func New(store audit.Store, producer Producer, topic string, log *slog.Logger, m *metrics.Metrics) *Relay {
	return &Relay{
		store:    store,
		producer: producer,
		topic:    topic,
		interval: 5 * time.Second,
		batch:    200,
		log:      log,
		metrics:  m,
		clock:    time.Now,
	}
}

// WithInterval overrides the drain cadence. For tests.
func (r *Relay) WithInterval(d time.Duration) *Relay {
	r.interval = d
	return r
}

// WithClock overrides the shipped-at timestamp source. For tests.
func (r *Relay) WithClock(clock domain.Clock) *Relay {
	r.clock = clock
	return r
}

// Run drains until the context is canceled. Drain errors are logged and
// retried on the next tick; unshipped rows stay unshipped.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if n, err := r.DrainOnce(ctx); err != nil {
				r.log.Error("audit relay drain failed", "error", err)
			} else if n > 0 {
				r.log.Debug("audit entries shipped", "count", n)
			}
		}
	}
}

// DrainOnce ships one batch of unshipped entries and returns how many.
func (r *Relay) DrainOnce(ctx context.Context) (int, error) {
	entries, err := r.store.Unshipped(ctx, r.batch)
	if err != nil {
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	records := make([]*kgo.Record, 0, len(entries))
	ids := make([]domain.ID, 0, len(entries))
	for _, entry := range entries {
		payload, err := json.Marshal(entry)
		if err != nil {
			return 0, fmt.Errorf("encode audit entry %s: %w", entry.ID, err)
		}
		records = append(records, &kgo.Record{
			Topic: r.topic,
			Key:   []byte(entry.TableName + "/" + entry.RowID.String()),
			Value: payload,
		})
		ids = append(ids, entry.ID)
	}
	if err := r.producer.Produce(ctx, records); err != nil {
		return 0, fmt.Errorf("produce audit batch: %w", err)
	}
	if err := r.store.MarkShipped(ctx, ids, r.clock().UTC()); err != nil {
		return 0, err
	}
	if r.metrics != nil {
		r.metrics.AuditShipped.Add(float64(len(ids)))
	}
	return len(ids), nil
}

// KafkaProducer is the production Producer backed by a franz-go client.
type KafkaProducer struct {
	client *kgo.Client
}

// NewKafkaProducer connects to the brokers and ensures the audit topic
// exists.
func NewKafkaProducer(ctx context.Context, brokers []string, topic string) (*KafkaProducer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}
	return &KafkaProducer{client: client}, nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	topics, err := adm.ListTopics(ctx)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}
	if topics.Has(topic) {
		return nil
	}
	if _, err := adm.CreateTopic(ctx, 1, -1, nil, topic); err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	return nil
}

func (p *KafkaProducer) Produce(ctx context.Context, records []*kgo.Record) error {
	return p.client.ProduceSync(ctx, records...).FirstErr()
}

func (p *KafkaProducer) Close() {
	p.client.Close()
}
