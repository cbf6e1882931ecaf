package frontier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rohmanhakim/webcrawler/internal/metadata"
)

/*
RedisFrontier

The distributed variant of the Frontier contract. A sorted set orders
pending URLs (score = priority, insertion counter breaking ties FIFO), two
plain sets hold visited/in-queue membership, and a hash keeps each request's
serialized form.

Pops are at-least-once: between ZPOPMAX and the visited check another
process may have committed the same URL. Get re-checks visited after the
pop, so a re-popped URL is a no-op — identical to the in-memory contract.
*/

// redisOpTimeout bounds every frontier round-trip so no worker can hang on
// a dead backend while holding crawl capacity.
const redisOpTimeout = 5 * time.Second

// seqPerPriority spaces priority bands far enough apart that 1e9 insertions
// per priority keep FIFO order intact.
const seqPerPriority = 1e9

type redisRequestDTO struct {
	URL        string `json:"url"`
	Depth      int    `json:"depth"`
	MaxDepth   int    `json:"max_depth"`
	ParentURL  string `json:"parent_url,omitempty"`
	Priority   int    `json:"priority"`
	RenderHint string `json:"render_hint,omitempty"`
}

type RedisFrontier struct {
	metadataSink metadata.MetadataSink
	client       *redis.Client
	keyPrefix    string
}

func NewRedisFrontier(metadataSink metadata.MetadataSink, addr, keyPrefix string) *RedisFrontier {
	client := redis.NewClient(&redis.Options{Addr: addr})
	return &RedisFrontier{
		metadataSink: metadataSink,
		client:       client,
		keyPrefix:    keyPrefix,
	}
}

// NewRedisFrontierWithClient injects a pre-built client, primarily for tests.
func NewRedisFrontierWithClient(metadataSink metadata.MetadataSink, client *redis.Client, keyPrefix string) *RedisFrontier {
	return &RedisFrontier{
		metadataSink: metadataSink,
		client:       client,
		keyPrefix:    keyPrefix,
	}
}

func (f *RedisFrontier) queueKey() string   { return f.keyPrefix + "queue" }
func (f *RedisFrontier) dataKey() string    { return f.keyPrefix + "data" }
func (f *RedisFrontier) visitedKey() string { return f.keyPrefix + "visited" }
func (f *RedisFrontier) inQueueKey() string { return f.keyPrefix + "inqueue" }
func (f *RedisFrontier) seqKey() string     { return f.keyPrefix + "seq" }

func (f *RedisFrontier) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), redisOpTimeout)
}

func (f *RedisFrontier) recordBackendError(action string, err error) {
	frontierErr := &FrontierError{
		Message:   err.Error(),
		Retryable: true,
		Cause:     ErrCauseBackendUnavailable,
	}
	f.metadataSink.RecordError(
		time.Now(),
		"frontier",
		action,
		mapFrontierErrorToMetadataCause(frontierErr),
		frontierErr.Error(),
		[]metadata.Attribute{
			metadata.NewAttr(metadata.AttrBackend, "redis"),
		},
	)
}

func (f *RedisFrontier) Add(r Request) bool {
	if r.Depth() > r.MaxDepth() {
		return false
	}

	ctx, cancel := f.opContext()
	defer cancel()

	visited, err := f.client.SIsMember(ctx, f.visitedKey(), r.URL()).Result()
	if err != nil {
		f.recordBackendError("RedisFrontier.Add", err)
		return false
	}
	if visited {
		return false
	}

	// SADD doubles as the membership test for in-queue: 0 means the URL
	// was already queued by a concurrent producer.
	added, err := f.client.SAdd(ctx, f.inQueueKey(), r.URL()).Result()
	if err != nil {
		f.recordBackendError("RedisFrontier.Add", err)
		return false
	}
	if added == 0 {
		return false
	}

	seq, err := f.client.Incr(ctx, f.seqKey()).Result()
	if err != nil {
		f.recordBackendError("RedisFrontier.Add", err)
		return false
	}

	payload, err := json.Marshal(redisRequestDTO{
		URL:        r.URL(),
		Depth:      r.Depth(),
		MaxDepth:   r.MaxDepth(),
		ParentURL:  r.ParentURL(),
		Priority:   r.Priority(),
		RenderHint: string(r.RenderHint()),
	})
	if err != nil {
		f.recordBackendError("RedisFrontier.Add", err)
		return false
	}

	score := float64(r.Priority())*seqPerPriority - float64(seq)

	pipe := f.client.Pipeline()
	pipe.ZAdd(ctx, f.queueKey(), redis.Z{Score: score, Member: r.URL()})
	pipe.HSet(ctx, f.dataKey(), r.URL(), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		f.recordBackendError("RedisFrontier.Add", err)
		return false
	}

	return true
}

func (f *RedisFrontier) Get() (Request, bool) {
	ctx, cancel := f.opContext()
	defer cancel()

	for {
		popped, err := f.client.ZPopMax(ctx, f.queueKey(), 1).Result()
		if err != nil {
			f.recordBackendError("RedisFrontier.Get", err)
			return Request{}, false
		}
		if len(popped) == 0 {
			return Request{}, false
		}

		url, ok := popped[0].Member.(string)
		if !ok {
			continue
		}

		f.client.SRem(ctx, f.inQueueKey(), url)

		payload, err := f.client.HGet(ctx, f.dataKey(), url).Result()
		f.client.HDel(ctx, f.dataKey(), url)
		if err != nil {
			// Another consumer already took the payload; treat as a
			// re-popped URL and keep draining.
			continue
		}

		visited, err := f.client.SIsMember(ctx, f.visitedKey(), url).Result()
		if err != nil {
			f.recordBackendError("RedisFrontier.Get", err)
			return Request{}, false
		}
		if visited {
			continue
		}

		var dto redisRequestDTO
		if err := json.Unmarshal([]byte(payload), &dto); err != nil {
			serErr := &FrontierError{
				Message:   err.Error(),
				Retryable: false,
				Cause:     ErrCauseSerializationFailed,
			}
			f.metadataSink.RecordError(
				time.Now(),
				"frontier",
				"RedisFrontier.Get",
				mapFrontierErrorToMetadataCause(serErr),
				serErr.Error(),
				[]metadata.Attribute{
					metadata.NewAttr(metadata.AttrURL, url),
				},
			)
			continue
		}

		renderHint := RenderHint(dto.RenderHint)
		if renderHint == "" {
			renderHint = RenderStatic
		}

		return NewRequest(dto.URL, dto.Depth, dto.MaxDepth, dto.ParentURL, dto.Priority, renderHint), true
	}
}

func (f *RedisFrontier) MarkVisited(url string) {
	ctx, cancel := f.opContext()
	defer cancel()

	if err := f.client.SAdd(ctx, f.visitedKey(), url).Err(); err != nil {
		f.recordBackendError("RedisFrontier.MarkVisited", err)
	}
}

func (f *RedisFrontier) IsVisited(url string) bool {
	ctx, cancel := f.opContext()
	defer cancel()

	visited, err := f.client.SIsMember(ctx, f.visitedKey(), url).Result()
	if err != nil {
		f.recordBackendError("RedisFrontier.IsVisited", err)
		return false
	}
	return visited
}

func (f *RedisFrontier) Size() int {
	ctx, cancel := f.opContext()
	defer cancel()

	size, err := f.client.ZCard(ctx, f.queueKey()).Result()
	if err != nil {
		f.recordBackendError("RedisFrontier.Size", err)
		return 0
	}
	return int(size)
}

func (f *RedisFrontier) VisitedCount() int {
	ctx, cancel := f.opContext()
	defer cancel()

	count, err := f.client.SCard(ctx, f.visitedKey()).Result()
	if err != nil {
		f.recordBackendError("RedisFrontier.VisitedCount", err)
		return 0
	}
	return int(count)
}

func (f *RedisFrontier) Clear() {
	ctx, cancel := f.opContext()
	defer cancel()

	err := f.client.Del(ctx,
		f.queueKey(),
		f.dataKey(),
		f.visitedKey(),
		f.inQueueKey(),
		f.seqKey(),
	).Err()
	if err != nil {
		f.recordBackendError("RedisFrontier.Clear", err)
	}
}

func (f *RedisFrontier) Close() error {
	return f.client.Close()
}
