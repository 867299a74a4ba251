package jobstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"docstream/internal/models"
)

// Store keeps one hash per job under job:<id>. All writes that race with
// redeliveries go through Lua scripts so that a terminal status can never
// be overwritten: whichever writer reaches the script first wins, every
// later writer is told it lost and changes nothing.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// markProcessing flips a live job to processing. Returns -1 when the record
// is gone, 0 when it is already terminal, 1 on success.
var markProcessingScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
local status = redis.call('HGET', KEYS[1], 'status')
if status == 'done' or status == 'error' then
  return 0
end
redis.call('HSET', KEYS[1], 'status', 'processing', 'updated_at', ARGV[1])
return 1
`)

// finalize writes the full terminal payload in one step, refusing to touch
// a record that is already terminal. ARGV[1] is the TTL in seconds, the
// rest are field/value pairs.
var finalizeScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
  return -1
end
local status = redis.call('HGET', KEYS[1], 'status')
if status == 'done' or status == 'error' then
  return 0
end
for i = 2, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i+1])
end
local ttl = tonumber(ARGV[1])
if ttl > 0 then
  redis.call('EXPIRE', KEYS[1], ttl)
end
return 1
`)

func jobKey(id string) string {
	return "job:" + id
}

// Create writes the initial pending record. The TTL acts as a safety net so
// abandoned records expire even if no worker ever touches them.
func (s *Store) Create(ctx context.Context, job *models.Job) error {
	fields := map[string]interface{}{
		"status":          string(job.Status),
		"parser":          job.Parser,
		"filename":        job.Filename,
		"source_location": job.SourceLocation,
		"created_at":      job.CreatedAt.Format(time.RFC3339Nano),
		"updated_at":      job.UpdatedAt.Format(time.RFC3339Nano),
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, jobKey(job.ID), fields)
	if s.ttl > 0 {
		pipe.Expire(ctx, jobKey(job.ID), s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to create job %s: %w", job.ID, err)
	}
	return nil
}

// Get loads the full job record.
func (s *Store) Get(ctx context.Context, id string) (*models.Job, error) {
	data, err := s.rdb.HGetAll(ctx, jobKey(id)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load job %s: %w", id, err)
	}
	if len(data) == 0 {
		return nil, models.ErrJobNotFound
	}

	job := &models.Job{
		ID:             id,
		Status:         models.JobStatus(data["status"]),
		Parser:         data["parser"],
		Filename:       data["filename"],
		SourceLocation: data["source_location"],
		SummaryMD:      data["summary_md"],
		ErrorMessage:   data["error_message"],
	}
	job.CreatedAt, _ = time.Parse(time.RFC3339Nano, data["created_at"])
	job.UpdatedAt, _ = time.Parse(time.RFC3339Nano, data["updated_at"])
	job.TTLExpiresAt, _ = time.Parse(time.RFC3339Nano, data["ttl_expires_at"])
	if v := data["page_count"]; v != "" {
		job.PageCount, _ = strconv.Atoi(v)
	}
	if v := data["per_page_json"]; v != "" {
		if err := json.Unmarshal([]byte(v), &job.Pages); err != nil {
			return nil, fmt.Errorf("corrupt per-page payload for job %s: %w", id, err)
		}
	}
	return job, nil
}

// Status reads just the status field.
func (s *Store) Status(ctx context.Context, id string) (models.JobStatus, error) {
	v, err := s.rdb.HGet(ctx, jobKey(id), "status").Result()
	if err == redis.Nil {
		return "", models.ErrJobNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read status of job %s: %w", id, err)
	}
	return models.JobStatus(v), nil
}

// MarkProcessing claims the record for processing. ok is false when the job
// is already terminal, meaning the caller holds a stale redelivery and must
// not run any side effects.
func (s *Store) MarkProcessing(ctx context.Context, id string) (ok bool, err error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := markProcessingScript.Run(ctx, s.rdb, []string{jobKey(id)}, now).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark job %s processing: %w", id, err)
	}
	n, okType := res.(int64)
	if !okType {
		return false, fmt.Errorf("unexpected script reply %T for job %s", res, id)
	}
	switch n {
	case -1:
		return false, models.ErrJobNotFound
	case 0:
		return false, nil
	default:
		return true, nil
	}
}

// FinalizeResult writes the done state with the complete result payload.
// won reports whether this caller performed the terminal write; a false
// return means another writer beat us and the record is untouched.
func (s *Store) FinalizeResult(ctx context.Context, id string, res models.JobResult) (won bool, err error) {
	pages, err := json.Marshal(res.Pages)
	if err != nil {
		return false, fmt.Errorf("failed to encode pages for job %s: %w", id, err)
	}
	return s.finalize(ctx, id,
		"status", string(models.StatusDone),
		"parser", res.Parser,
		"page_count", strconv.Itoa(res.PageCount),
		"summary_md", res.SummaryMD,
		"per_page_json", string(pages),
	)
}

// FinalizeError writes the error state with the user-visible message.
func (s *Store) FinalizeError(ctx context.Context, id string, msg string) (won bool, err error) {
	return s.finalize(ctx, id,
		"status", string(models.StatusError),
		"error_message", msg,
	)
}

func (s *Store) finalize(ctx context.Context, id string, pairs ...string) (bool, error) {
	now := time.Now().UTC()

	args := make([]interface{}, 0, len(pairs)+5)
	args = append(args, strconv.Itoa(int(s.ttl.Seconds())))
	for _, p := range pairs {
		args = append(args, p)
	}
	args = append(args, "updated_at", now.Format(time.RFC3339Nano))
	if s.ttl > 0 {
		args = append(args, "ttl_expires_at", now.Add(s.ttl).Format(time.RFC3339Nano))
	}

	res, err := finalizeScript.Run(ctx, s.rdb, []string{jobKey(id)}, args...).Result()
	if err != nil {
		return false, fmt.Errorf("failed to finalize job %s: %w", id, err)
	}
	n, okType := res.(int64)
	if !okType {
		return false, fmt.Errorf("unexpected script reply %T for job %s", res, id)
	}
	switch n {
	case -1:
		return false, models.ErrJobNotFound
	case 0:
		return false, nil
	default:
		return true, nil
	}
}

// Delete removes the record. Used to roll back ingestion when the queue
// append fails after the record was created.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, jobKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete job %s: %w", id, err)
	}
	return nil
}

// CountByStatus scans all job records and tallies them per status.
func (s *Store) CountByStatus(ctx context.Context) (total int, byStatus map[string]int, err error) {
	byStatus = make(map[string]int)

	iter := s.rdb.Scan(ctx, 0, jobKey("*"), 100).Iterator()
	for iter.Next(ctx) {
		status, err := s.rdb.HGet(ctx, iter.Val(), "status").Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return 0, nil, fmt.Errorf("failed to read status of %s: %w", iter.Val(), err)
		}
		total++
		byStatus[status]++
	}
	if err := iter.Err(); err != nil {
		return 0, nil, fmt.Errorf("job scan failed: %w", err)
	}
	return total, byStatus, nil
}
