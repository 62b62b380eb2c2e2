// Package stream implements the durable, ID-addressed per-task event
// queue (spec §4.1, component C1): one logical queue per named Redis
// Stream, two created per task (task:input:<id>, task:output:<id>).
//
// put/get observe no lock of their own — the Task Runner is the sole
// producer into its input stream and the sole consumer tailing its
// output stream by cursor, so ordering is already single-writer. Only
// pop (used to dequeue one input message) is serialized by a named
// distributed lock, because more than one goroutine could race to
// drain the same input stream during a resume. See SPEC_FULL.md §E(i).
package stream

import (
	"context"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	lockExpire  = 10 * time.Second
	lockTimeout = 5 * time.Second
	lockPoll    = 100 * time.Millisecond
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`)

var streamIDPattern = regexp.MustCompile(`^\d+(?:-\d+)?$|^\$$`)

// Queue is a single named Redis Stream used as a durable event queue.
type Queue struct {
	rdb  redis.UniversalClient
	name string
	log  *slog.Logger
}

// New builds a Queue bound to the given stream name.
func New(rdb redis.UniversalClient, name string) *Queue {
	return &Queue{rdb: rdb, name: name, log: slog.Default().With("stream", name)}
}

// InputStream returns the conventional input-stream name for a task.
func InputStream(taskID string) string { return "task:input:" + taskID }

// OutputStream returns the conventional output-stream name for a task.
func OutputStream(taskID string) string { return "task:output:" + taskID }

// Put appends payload, returning the assigned stream ID. Payload is
// opaque bytes — the queue never interprets it.
func (q *Queue) Put(ctx context.Context, payload []byte) (string, error) {
	id, err := q.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: q.name,
		Values: map[string]any{"data": payload},
	}).Result()
	if err != nil {
		q.log.Warn("put failed", "error", err)
		return "", nil //nolint:nilerr // transport errors surface as empty return, never thrown (spec §4.1)
	}
	return id, nil
}

// Get returns the first entry with ID strictly greater than startID.
// blockMs<=0 means do not block; blockMs>0 blocks up to that many ms.
// A malformed startID normalizes to "0-0" rather than failing the
// reader.
func (q *Queue) Get(ctx context.Context, startID string, blockMs int) (id string, payload []byte, ok bool) {
	normalized := normalizeStartID(startID)

	args := &redis.XReadArgs{
		Streams: []string{q.name, normalized},
		Count:   1,
	}
	if blockMs > 0 {
		args.Block = time.Duration(blockMs) * time.Millisecond
	}

	res, err := q.rdb.XRead(ctx, args).Result()
	if err != nil {
		if err != redis.Nil {
			q.log.Debug("get failed", "error", err)
		}
		return "", nil, false
	}
	if len(res) == 0 || len(res[0].Messages) == 0 {
		return "", nil, false
	}
	msg := res[0].Messages[0]
	data, found := extractPayload(msg.Values)
	if !found {
		return "", nil, false
	}
	return msg.ID, data, true
}

// Pop dequeues the earliest entry under the stream's distributed lock.
// Returns ok=false on lock timeout or an empty stream — never an error.
func (q *Queue) Pop(ctx context.Context) (id string, payload []byte, ok bool) {
	lockKey := "lock:" + q.name + ":pop"
	token := uuid.NewString()

	if !q.acquireLock(ctx, lockKey, token) {
		return "", nil, false
	}
	defer q.releaseLock(ctx, lockKey, token)

	entries, err := q.rdb.XRange(ctx, q.name, "-", "+").Result()
	if err != nil || len(entries) == 0 {
		return "", nil, false
	}
	entry := entries[0]
	if err := q.rdb.XDel(ctx, q.name, entry.ID).Err(); err != nil {
		q.log.Warn("pop: xdel failed", "error", err)
	}
	data, found := extractPayload(entry.Values)
	if !found {
		return "", nil, false
	}
	return entry.ID, data, true
}

func (q *Queue) acquireLock(ctx context.Context, key, token string) bool {
	deadline := time.Now().Add(lockTimeout)
	for time.Now().Before(deadline) {
		ok, err := q.rdb.SetNX(ctx, key, token, lockExpire).Result()
		if err == nil && ok {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(lockPoll):
		}
	}
	return false
}

func (q *Queue) releaseLock(ctx context.Context, key, token string) {
	if err := releaseScript.Run(ctx, q.rdb, []string{key}, token).Err(); err != nil && err != redis.Nil {
		q.log.Warn("lock release failed", "error", err)
	}
}

// Range returns up to count entries between start and end (inclusive,
// Redis range syntax: "-" earliest, "+" latest).
func (q *Queue) Range(ctx context.Context, start, end string, count int64) []Entry {
	entries, err := q.rdb.XRangeN(ctx, q.name, start, end, count).Result()
	if err != nil {
		q.log.Debug("range failed", "error", err)
		return nil
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if data, ok := extractPayload(e.Values); ok {
			out = append(out, Entry{ID: e.ID, Payload: data})
		}
	}
	return out
}

// Entry is one (ID, payload) pair returned by Range.
type Entry struct {
	ID      string
	Payload []byte
}

// LatestID returns the most recent entry's ID, or "0" if the stream is empty.
func (q *Queue) LatestID(ctx context.Context) string {
	entries, err := q.rdb.XRevRangeN(ctx, q.name, "+", "-", 1).Result()
	if err != nil || len(entries) == 0 {
		return "0"
	}
	return entries[0].ID
}

// Size returns the number of entries currently in the stream.
func (q *Queue) Size(ctx context.Context) int64 {
	n, err := q.rdb.XLen(ctx, q.name).Result()
	if err != nil {
		return 0
	}
	return n
}

// IsEmpty reports whether the stream has no entries.
func (q *Queue) IsEmpty(ctx context.Context) bool {
	return q.Size(ctx) == 0
}

// Clear trims the stream to zero entries.
func (q *Queue) Clear(ctx context.Context) error {
	return q.rdb.XTrimMaxLen(ctx, q.name, 0).Err()
}

// Delete removes a single entry by ID.
func (q *Queue) Delete(ctx context.Context, id string) bool {
	return q.rdb.XDel(ctx, q.name, id).Err() == nil
}

func extractPayload(values map[string]any) ([]byte, bool) {
	v, ok := values["data"]
	if !ok {
		return nil, false
	}
	switch t := v.(type) {
	case string:
		return []byte(t), true
	case []byte:
		return t, true
	default:
		return nil, false
	}
}

func normalizeStartID(startID string) string {
	startID = strings.TrimSpace(startID)
	if startID == "" || startID == "0" {
		return "0-0"
	}
	if streamIDPattern.MatchString(startID) {
		return startID
	}
	return "0-0"
}
