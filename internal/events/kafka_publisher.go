package events

import (
	"context"

	"helios/internal/adapters/kafka"
	"helios/pkg/logger"
)

// KafkaPublisher mirrors pipeline events onto the Kafka audit stream.
// Publish failures are logged and dropped; the pipeline never blocks
// on the broker.
type KafkaPublisher struct {
	BaseObserver
	producer *kafka.Producer
	log      *logger.Logger
}

// NewKafkaPublisher creates the Kafka observer
func NewKafkaPublisher(producer *kafka.Producer) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		log:      logger.Get().With("component", "kafka_events"),
	}
}

func (k *KafkaPublisher) OnBatchProcessed(ctx context.Context, ev BatchEvent) {
	if err := k.producer.Publish(ctx, kafka.TopicFlowBatches, "batch", ev); err != nil {
		k.log.Errorw("Failed to publish batch event", "error", err)
	}
}

func (k *KafkaPublisher) OnOpinionRecorded(ctx context.Context, ev OpinionEvent) {
	if err := k.producer.Publish(ctx, kafka.TopicOpinions, ev.Opinion.Symbol, ev); err != nil {
		k.log.Errorw("Failed to publish opinion event", "error", err)
	}
}

func (k *KafkaPublisher) OnDecisionMade(ctx context.Context, ev DecisionEvent) {
	if err := k.producer.Publish(ctx, kafka.TopicDecisions, ev.Decision.Symbol, ev); err != nil {
		k.log.Errorw("Failed to publish decision event", "error", err)
	}
}

func (k *KafkaPublisher) OnEmergencyChanged(ctx context.Context, ev EmergencyEvent) {
	if err := k.producer.Publish(ctx, kafka.TopicEmergency, ev.Level, ev); err != nil {
		k.log.Errorw("Failed to publish emergency event", "error", err)
	}
}
