package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrNoReport is returned by Latest when nothing has been published yet.
var ErrNoReport = errors.New("no report published")

// Sink consumes finalized projections.
type Sink interface {
	Publish(ctx context.Context, r Report) error
}

// LogSink writes a summary line per report.
type LogSink struct {
	Logger *zap.Logger
}

func (s LogSink) Publish(_ context.Context, r Report) error {
	if s.Logger == nil {
		return nil
	}
	s.Logger.Info("report published",
		zap.String("kind", string(r.Kind)),
		zap.String("generated_at", r.GeneratedAt),
		zap.Int("rows", rowCount(r.Rows)))
	return nil
}

func rowCount(rows any) int {
	switch v := rows.(type) {
	case []DateGroup:
		return len(v)
	case []StaffDuties:
		return len(v)
	case []DutyRow:
		return len(v)
	}
	return 0
}

// RedisSink keeps the latest report of each kind as JSON under prefix:kind.
type RedisSink struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisSink creates a sink. A zero ttl keeps reports until overwritten.
func NewRedisSink(client redis.Cmdable, prefix string, ttl time.Duration) *RedisSink {
	return &RedisSink{client: client, prefix: prefix, ttl: ttl}
}

func (s *RedisSink) key(kind Kind) string {
	return fmt.Sprintf("%s:%s", s.prefix, kind)
}

func (s *RedisSink) Publish(ctx context.Context, r Report) error {
	payload, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	if err := s.client.Set(ctx, s.key(r.Kind), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store report %s: %w", r.Kind, err)
	}
	return nil
}

// Latest returns the raw JSON of the last published report of kind.
func (s *RedisSink) Latest(ctx context.Context, kind Kind) (json.RawMessage, error) {
	raw, err := s.client.Get(ctx, s.key(kind)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoReport
	}
	if err != nil {
		return nil, fmt.Errorf("load report %s: %w", kind, err)
	}
	return raw, nil
}

// MultiSink publishes to every sink and joins the failures.
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, r Report) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
