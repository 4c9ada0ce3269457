package repository

import (
	"context"
	"database/sql"
	"fmt"

	"hermes/internal/domain/models"
	"hermes/internal/domain/repository"
	pkgkafka "hermes/pkg/kafka"
)

// ClickHouseOutcomeStore implements OutcomeSink on ClickHouse. Resolved
// outcomes are append-only; the table backs offline calibration analysis.
type ClickHouseOutcomeStore struct {
	db    *sql.DB
	table string
}

// NewClickHouseOutcomeStore creates the outcome sink.
func NewClickHouseOutcomeStore(db *sql.DB, table string) repository.OutcomeSink {
	return &ClickHouseOutcomeStore{db: db, table: table}
}

// OutcomeSchema returns the idempotent DDL for the outcome table.
func OutcomeSchema(database, table string) []string {
	return []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", database),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.%s (
			event_id String,
			scope LowCardinality(String),
			event_type LowCardinality(String),
			symbol LowCardinality(String),
			calibration_group LowCardinality(String),
			benchmark LowCardinality(String),
			published_at DateTime64(3),
			evaluated_at DateTime64(3),
			predicted_score Float64,
			realized_score Float64,
			abnormal_return Float64,
			hit UInt8
		) ENGINE = MergeTree()
		PARTITION BY toYYYYMM(evaluated_at)
		ORDER BY (scope, event_type, evaluated_at)`, database, table),
	}
}

func (s *ClickHouseOutcomeStore) Init(ctx context.Context) error {
	return nil // Schema init in pkg
}

func (s *ClickHouseOutcomeStore) Store(ctx context.Context, o *models.ResolvedOutcome) error {
	q := fmt.Sprintf(`INSERT INTO %s
		(event_id, scope, event_type, symbol, calibration_group, benchmark,
		 published_at, evaluated_at, predicted_score, realized_score, abnormal_return, hit)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, s.table)
	hit := uint8(0)
	if o.Hit {
		hit = 1
	}
	_, err := s.db.ExecContext(ctx, q,
		o.EventID,
		string(o.Scope),
		string(o.EventType),
		o.Symbol,
		o.Group,
		o.Benchmark,
		o.PublishedAt,
		o.EvaluatedAt,
		o.PredictedScore,
		o.RealizedScore,
		o.AbnormalReturn,
		hit,
	)
	return err
}

func (s *ClickHouseOutcomeStore) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ClickHouseOutcomeStore) Close() error {
	return nil // Managed by pkg
}

// KafkaOutcomePublisher implements OutcomePublisher for Kafka.
type KafkaOutcomePublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

// NewKafkaOutcomePublisher creates the outcome topic publisher.
func NewKafkaOutcomePublisher(producer *pkgkafka.Producer, topic string) repository.OutcomePublisher {
	return &KafkaOutcomePublisher{producer: producer, topic: topic}
}

func (p *KafkaOutcomePublisher) Publish(ctx context.Context, o *models.ResolvedOutcome) error {
	return p.producer.Publish(ctx, p.topic, []byte(o.EventID), o)
}

func (p *KafkaOutcomePublisher) Close() error {
	return nil // Producer lifecycle owned by DI
}
