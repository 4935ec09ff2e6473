package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/andrej220/nexcheck/internal/lg"
	"github.com/andrej220/nexcheck/pkg/persistence"
	"github.com/segmentio/kafka-go"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const mongoConnectTimeout = 10 * time.Second

// Sink publishes a finished report.
type Sink interface {
	Publish(ctx context.Context, r *Report) error
	Close() error
}

// FileSink writes the report as indented JSON.
type FileSink struct {
	Path string
}

func (s *FileSink) Publish(ctx context.Context, r *Report) error {
	if err := persistence.WriteJSON(r, s.Path); err != nil {
		return fmt.Errorf("file sink: %w", err)
	}
	lg.FromContext(ctx).Info("report written", lg.String("path", s.Path))
	return nil
}

func (s *FileSink) Close() error { return nil }

type KafkaConfig struct {
	Brokers []string `yaml:"brokers" json:"brokers" validate:"required,min=1,dive,hostname_port"`
	Topic   string   `yaml:"topic" json:"topic" validate:"required"`
}

type messageWriter interface {
	WriteMessages(context.Context, ...kafka.Message) error
	Close() error
}

// KafkaSink publishes the report as one JSON message keyed by the run id.
type KafkaSink struct {
	writer messageWriter
	topic  string
}

func NewKafkaSink(cfg KafkaConfig) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.LeastBytes{},
			Async:                  false,
			AllowAutoTopicCreation: true,
		},
		topic: cfg.Topic,
	}
}

func (s *KafkaSink) Publish(ctx context.Context, r *Report) error {
	logger := lg.FromContext(ctx)
	message, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("kafka sink: failed to marshal report: %w", err)
	}
	err = s.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(r.ID),
		Value: message,
		Time:  r.Finished,
	})
	if err != nil {
		if errors.Is(err, kafka.UnknownTopicOrPartition) {
			logger.Error("Kafka topic does not exist",
				lg.String("topic", s.topic),
				lg.String("action", "Create the topic manually or enable auto-creation"))
		}
		return fmt.Errorf("kafka sink: %w", err)
	}
	logger.Info("report published", lg.String("topic", s.topic), lg.String("id", r.ID))
	return nil
}

func (s *KafkaSink) Close() error { return s.writer.Close() }

type MongoConfig struct {
	URI      string `yaml:"uri" json:"uri" validate:"required"`
	DBName   string `yaml:"dbName" json:"dbName" validate:"required"`
	CollName string `yaml:"collName" json:"collName" validate:"required"`
}

type replacer interface {
	ReplaceOne(ctx context.Context, filter, replacement any, opts ...*options.ReplaceOptions) (*mongo.UpdateResult, error)
}

// MongoSink stores each report as a document keyed by the run id.
type MongoSink struct {
	client     *mongo.Client
	collection replacer
}

func NewMongoSink(ctx context.Context, cfg MongoConfig) (*MongoSink, error) {
	ctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return &MongoSink{
		client:     client,
		collection: client.Database(cfg.DBName).Collection(cfg.CollName),
	}, nil
}

func (s *MongoSink) Publish(ctx context.Context, r *Report) error {
	_, err := s.collection.ReplaceOne(ctx, bson.M{"_id": r.ID}, r, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("mongo sink: %w", err)
	}
	lg.FromContext(ctx).Info("report stored", lg.String("id", r.ID))
	return nil
}

func (s *MongoSink) Close() error {
	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// MultiSink publishes to every sink. A failing sink does not stop the
// others.
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, r *Report) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, r); err != nil {
			lg.FromContext(ctx).Error("failed to publish report", lg.Err(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.Close())
	}
	return errors.Join(errs...)
}

// Config selects the sinks a run publishes to. All are optional.
type Config struct {
	File  string       `yaml:"file" json:"file"`
	Kafka *KafkaConfig `yaml:"kafka" json:"kafka"`
	Mongo *MongoConfig `yaml:"mongo" json:"mongo"`
}

// NewSinks builds the sinks named by cfg. Sinks already opened are closed
// when a later one fails.
func NewSinks(ctx context.Context, cfg Config) (MultiSink, error) {
	var sinks MultiSink
	if cfg.File != "" {
		sinks = append(sinks, &FileSink{Path: cfg.File})
	}
	if cfg.Kafka != nil {
		sinks = append(sinks, NewKafkaSink(*cfg.Kafka))
	}
	if cfg.Mongo != nil {
		s, err := NewMongoSink(ctx, *cfg.Mongo)
		if err != nil {
			_ = sinks.Close()
			return nil, err
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}
