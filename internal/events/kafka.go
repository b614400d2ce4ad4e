package events

import (
	"context"

	"github.com/Skotchmaster/online_shop/internal/mykafka"
)

type KafkaSink struct {
	Producer *mykafka.Producer
	Topic    string
}

func (s *KafkaSink) Publish(ctx context.Context, ev Event) error {
	return s.Producer.PublishEvent(ctx, s.Topic, ev.UserID.String(), ev)
}
