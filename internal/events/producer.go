package events

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/SamuelRobart/church-chat-service/internal/model"
)

// Producer publishes a message-sent event for every stored chat message so
// other parts of the system (notifications, moderation review) can consume
// them. A nil Producer is valid and publishes nothing.
type Producer struct {
	writer *kafkago.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.LeastBytes{},
		RequiredAcks: kafkago.RequireOne,
		Async:        true,
	}
	return &Producer{writer: w}
}

func (p *Producer) PublishMessageSent(ctx context.Context, m model.ChatMessage) error {
	if p == nil || p.writer == nil {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(strconv.FormatInt(m.Seq, 10)),
		Value: b,
		Time:  time.Now(),
	})
}

func (p *Producer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
