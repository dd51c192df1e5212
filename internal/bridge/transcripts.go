package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const transcriptKeyPrefix = "call_transcript:"

// TranscriptMessage is one finalized utterance of a call.
type TranscriptMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // "user" or "assistant"
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptStore keeps per-call transcripts in Redis. A nil store
// is valid and drops everything.
type TranscriptStore struct {
	redis       *redis.Client
	tracer      trace.Tracer
	ttl         time.Duration
	maxMessages int64
}

// NewTranscriptStore wires a transcript store.
func NewTranscriptStore(redisClient *redis.Client, ttl time.Duration) *TranscriptStore {
	if redisClient == nil {
		return nil
	}
	return &TranscriptStore{
		redis:       redisClient,
		tracer:      otel.Tracer("scheduler.internal.bridge.transcripts"),
		ttl:         ttl,
		maxMessages: 500,
	}
}

// Append records one utterance under the call's stream SID.
func (s *TranscriptStore) Append(ctx context.Context, streamSID string, msg TranscriptMessage) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if streamSID == "" {
		return errors.New("bridge: transcript streamSID required")
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("bridge: marshal transcript message: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "bridge.transcripts.append")
	defer span.End()

	key := transcriptKey(streamSID)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, data)
	pipe.Expire(ctx, key, s.ttl)
	if s.maxMessages > 0 {
		pipe.LTrim(ctx, key, -s.maxMessages, -1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("bridge: append transcript message: %w", err)
	}
	return nil
}

// List returns the call transcript, oldest first. A positive limit
// returns only the most recent messages.
func (s *TranscriptStore) List(ctx context.Context, streamSID string, limit int64) ([]TranscriptMessage, error) {
	if s == nil || s.redis == nil {
		return nil, nil
	}
	if streamSID == "" {
		return nil, errors.New("bridge: transcript streamSID required")
	}

	ctx, span := s.tracer.Start(ctx, "bridge.transcripts.list")
	defer span.End()

	start := int64(0)
	if limit > 0 {
		start = -limit
	}

	raw, err := s.redis.LRange(ctx, transcriptKey(streamSID), start, -1).Result()
	if err != nil {
		span.RecordError(err)
		if err == redis.Nil {
			return []TranscriptMessage{}, nil
		}
		return nil, fmt.Errorf("bridge: list transcript: %w", err)
	}

	out := make([]TranscriptMessage, 0, len(raw))
	for _, item := range raw {
		var msg TranscriptMessage
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			span.RecordError(err)
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func transcriptKey(streamSID string) string {
	return transcriptKeyPrefix + streamSID
}
