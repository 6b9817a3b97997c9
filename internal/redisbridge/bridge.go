package redisbridge

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Bridge relays broadcast chat frames between instances over a redis pub/sub
// channel, so clients connected to different replicas still see one stream.
// It assumes the replicas share the durable history backend; the presence
// count stays per-instance. Frames are wrapped with the publishing instance
// id so a replica never re-delivers its own traffic.
type Bridge struct {
	client     *redis.Client
	channel    string
	instanceID string
	deliver    func(frame []byte)
	log        *zap.SugaredLogger
}

type envelope struct {
	Src   string          `json:"src"`
	Frame json.RawMessage `json:"frame"`
}

func New(client *redis.Client, channel string, deliver func(frame []byte), log *zap.SugaredLogger) *Bridge {
	return &Bridge{
		client:     client,
		channel:    channel,
		instanceID: uuid.NewString(),
		deliver:    deliver,
		log:        log,
	}
}

// Publish forwards a locally-broadcast frame to the other instances.
// Failures are logged and otherwise ignored; local delivery already happened.
func (b *Bridge) Publish(ctx context.Context, frame []byte) {
	env, err := json.Marshal(envelope{Src: b.instanceID, Frame: frame})
	if err != nil {
		return
	}
	if err := b.client.Publish(ctx, b.channel, env).Err(); err != nil {
		b.log.Warnw("bridge publish failed", "err", err)
	}
}

// Run consumes the channel until the context is cancelled.
func (b *Bridge) Run(ctx context.Context) {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			b.handlePayload(msg.Payload)
		}
	}
}

// handlePayload unwraps one published envelope and hands the frame to the
// local hub, skipping traffic this instance published itself.
func (b *Bridge) handlePayload(payload string) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.log.Debugw("bridge dropped unparseable payload", "err", err)
		return
	}
	if env.Src == b.instanceID {
		return
	}
	b.deliver(env.Frame)
}
