package queue

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// popDueScript atomically pops the earliest member whose score (fire time,
// unix millis) is due. Returns the member or false.
const popDueScript = `
local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, 1)
if #due == 0 then
    return false
end
redis.call("ZREM", KEYS[1], due[1])
return due[1]
`

// RedisQueue implements Queue on a Redis sorted set keyed by fire time:
//
//	<prefix>delayed  => ZSET of json-encoded Jobs scored by unix millis
type RedisQueue struct {
	client       *redis.Client
	key          string
	pollInterval time.Duration
}

var _ Queue = (*RedisQueue)(nil)

// NewRedisQueue constructs a Redis-backed delayed queue.
// prefix is optional but recommended (e.g. "sentinel:").
func NewRedisQueue(client *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "sentinel:"
	}
	return &RedisQueue{
		client:       client,
		key:          prefix + "delayed",
		pollInterval: 100 * time.Millisecond,
	}
}

func (q *RedisQueue) Enqueue(ctx context.Context, job Job, delay time.Duration) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.EnqueuedAt = time.Now()
	job.NotBefore = job.EnqueuedAt.Add(delay)

	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.ZAdd(ctx, q.key, redis.Z{
		Score:  float64(job.NotBefore.UnixMilli()),
		Member: data,
	}).Err()
}

// Dequeue polls for due jobs. Polling keeps the consumer simple and the
// interval bounds added latency at well under typical step delays.
func (q *RedisQueue) Dequeue(ctx context.Context) (*Job, error) {
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()

	for {
		res, err := q.client.Eval(ctx, popDueScript, []string{q.key},
			time.Now().UnixMilli()).Result()
		if err != nil && err != redis.Nil {
			return nil, err
		}
		if raw, ok := res.(string); ok {
			var job Job
			if err := json.Unmarshal([]byte(raw), &job); err != nil {
				// Drop the poisoned member and keep consuming.
				log.Printf("[Queue] Dropping undecodable job: %v", err)
				continue
			}
			return &job, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (q *RedisQueue) Len() int {
	n, err := q.client.ZCard(context.Background(), q.key).Result()
	if err != nil {
		log.Printf("[Queue] Len failed: %v", err)
		return 0
	}
	return int(n)
}
