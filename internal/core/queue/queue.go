package queue

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// Entry is the immutable message appended to the stream for each job. The
// job record itself lives in the job store; the entry only references it.
type Entry struct {
	JobID          string
	Parser         string
	Filename       string
	SourceLocation string
}

// Delivery is one claimed entry. Attempts counts deliveries including this
// one, taken from the consumer group's pending list.
type Delivery struct {
	ID       string
	Entry    Entry
	Attempts int64
}

// StreamQueue wraps a Redis stream plus one consumer group. Entries survive
// until explicitly acknowledged; unacked entries stay on a consumer's
// pending list and can be reclaimed once idle long enough.
type StreamQueue struct {
	rdb    *redis.Client
	stream string
	group  string
}

func New(rdb *redis.Client, stream, group string) *StreamQueue {
	return &StreamQueue{rdb: rdb, stream: stream, group: group}
}

// EnsureGroup creates the consumer group, creating the stream alongside it
// if needed. An already existing group is not an error.
func (q *StreamQueue) EnsureGroup(ctx context.Context) error {
	err := q.rdb.XGroupCreateMkStream(ctx, q.stream, q.group, "$").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group %s: %w", q.group, err)
	}
	return nil
}

// Enqueue appends the entry to the stream and returns its stream ID.
// Stream IDs are monotonic, so append order is the group's delivery order.
func (q *StreamQueue) Enqueue(ctx context.Context, e Entry) (string, error) {
	id, err := q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.stream,
		Values: map[string]interface{}{
			"job_id":          e.JobID,
			"parser":          e.Parser,
			"filename":        e.Filename,
			"source_location": e.SourceLocation,
		},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("failed to append job %s to stream: %w", e.JobID, err)
	}
	return id, nil
}

// Claim blocks up to the given duration for one fresh entry and assigns it
// to the consumer. Returns nil when the wait times out with nothing to do.
func (q *StreamQueue) Claim(ctx context.Context, consumer string, block time.Duration) (*Delivery, error) {
	res, err := q.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group,
		Consumer: consumer,
		Streams:  []string{q.stream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, stream := range res {
		for _, msg := range stream.Messages {
			d := decodeMessage(msg)
			d.Attempts = 1
			return &d, nil
		}
	}
	return nil, nil
}

// Ack removes the entry from the group's pending list. Called only after
// the job's terminal state is durably written.
func (q *StreamQueue) Ack(ctx context.Context, id string) error {
	if err := q.rdb.XAck(ctx, q.stream, q.group, id).Err(); err != nil {
		return fmt.Errorf("failed to ack entry %s: %w", id, err)
	}
	return nil
}

// ReclaimStale transfers entries that have sat unacknowledged on some
// consumer's pending list longer than minIdle over to the given consumer.
// The MinIdle guard on XCLAIM makes the transfer atomic: an entry another
// consumer touched in the meantime is silently skipped.
func (q *StreamQueue) ReclaimStale(ctx context.Context, consumer string, minIdle time.Duration, limit int64) ([]Delivery, error) {
	pending, err := q.rdb.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: q.stream,
		Group:  q.group,
		Start:  "-",
		End:    "+",
		Count:  limit,
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to inspect pending entries: %w", err)
	}

	var ids []string
	attempts := make(map[string]int64)
	for _, p := range pending {
		if p.Idle < minIdle {
			continue
		}
		ids = append(ids, p.ID)
		attempts[p.ID] = p.RetryCount
	}
	if len(ids) == 0 {
		return nil, nil
	}

	claimed, err := q.rdb.XClaim(ctx, &redis.XClaimArgs{
		Stream:   q.stream,
		Group:    q.group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Messages: ids,
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to claim stale entries: %w", err)
	}

	out := make([]Delivery, 0, len(claimed))
	for _, msg := range claimed {
		d := decodeMessage(msg)
		// XCLAIM itself counts as a delivery.
		d.Attempts = attempts[msg.ID] + 1
		out = append(out, d)
	}
	return out, nil
}

// Metrics reports stream depth and pending-entry state for the stats
// endpoint. Group introspection is best effort.
func (q *StreamQueue) Metrics(ctx context.Context) map[string]any {
	m := map[string]any{
		"stream": q.stream,
		"group":  q.group,
	}

	if n, err := q.rdb.XLen(ctx, q.stream).Result(); err == nil {
		m["stream_length"] = n
	}
	if p, err := q.rdb.XPending(ctx, q.stream, q.group).Result(); err == nil {
		m["pending"] = p.Count
		m["consumers"] = len(p.Consumers)
	}
	if groups, err := q.rdb.XInfoGroups(ctx, q.stream).Result(); err == nil {
		infos := make([]map[string]any, 0, len(groups))
		for _, g := range groups {
			infos = append(infos, map[string]any{
				"name":              g.Name,
				"consumers":         g.Consumers,
				"pending":           g.Pending,
				"last_delivered_id": g.LastDeliveredID,
			})
		}
		m["groups"] = infos
	}
	return m
}

func decodeMessage(msg redis.XMessage) Delivery {
	get := func(key string) string {
		if v, ok := msg.Values[key].(string); ok {
			return v
		}
		return ""
	}
	return Delivery{
		ID: msg.ID,
		Entry: Entry{
			JobID:          get("job_id"),
			Parser:         get("parser"),
			Filename:       get("filename"),
			SourceLocation: get("source_location"),
		},
	}
}
