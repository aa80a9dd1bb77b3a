package notification

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/greenside-app/greenside/internal/logging"
)

func TestRedisEmitterPublishesToWagerAndUserChannels(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	roomSub := client.Subscribe(ctx, "wager:w-1")
	defer roomSub.Close()
	userSub := client.Subscribe(ctx, "user:u-1")
	defer userSub.Close()
	if _, err := roomSub.Receive(ctx); err != nil {
		t.Fatalf("subscribe room: %v", err)
	}
	if _, err := userSub.Receive(ctx); err != nil {
		t.Fatalf("subscribe user: %v", err)
	}

	emitter := NewRedisEmitter(client, logging.Discard())
	emitter.Emit(ctx, Event{
		Name:    EventParticipantJoined,
		WagerID: "w-1",
		UserID:  "u-1",
		Payload: map[string]any{"participants": 2},
	})

	msg, err := roomSub.ReceiveTimeout(ctx, time.Second)
	if err != nil {
		t.Fatalf("receive room message: %v", err)
	}
	payload, ok := msg.(*redis.Message)
	if !ok {
		t.Fatalf("unexpected message type %T", msg)
	}

	var event Event
	if err := json.Unmarshal([]byte(payload.Payload), &event); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if event.Name != EventParticipantJoined || event.WagerID != "w-1" {
		t.Fatalf("unexpected event: %+v", event)
	}

	if _, err := userSub.ReceiveTimeout(ctx, time.Second); err != nil {
		t.Fatalf("receive user message: %v", err)
	}
}

func TestRedisEmitterDropsFailuresSilently(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	mr.Close()

	emitter := NewRedisEmitter(client, logging.Discard())
	// Must not panic or return an error path to the caller.
	emitter.Emit(context.Background(), Event{Name: EventBetStarted, WagerID: "w-1"})
}
