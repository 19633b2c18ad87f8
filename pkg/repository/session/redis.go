package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
	"github.com/redis/go-redis/v9"
	"github.com/secmon-lab/syllabus/pkg/domain/interfaces"
	"github.com/secmon-lab/syllabus/pkg/domain/model"
	"github.com/secmon-lab/syllabus/pkg/utils/logging"
)

const lockPollInterval = 50 * time.Millisecond

// releaseScript deletes the lock only if it is still held by the caller's token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis keeps sessions as redis lists so several server replicas share them.
type Redis struct {
	opts   options
	client redis.UniversalClient
}

var _ interfaces.SessionStore = &Redis{}

func NewRedis(client redis.UniversalClient, opts ...Option) *Redis {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Redis{opts: o, client: client}
}

// DialRedis parses a redis URL such as redis://localhost:6379/0 and verifies the connection.
func DialRedis(ctx context.Context, url string) (*redis.Client, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to parse redis url")
	}

	client := redis.NewClient(redisOpts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, goerr.Wrap(err, "failed to connect to redis", goerr.V("addr", redisOpts.Addr))
	}
	return client, nil
}

func (r *Redis) historyKey(id model.SessionID) string {
	return r.opts.keyPrefix + id.String()
}

func (r *Redis) lockKey(id model.SessionID) string {
	return r.opts.keyPrefix + id.String() + ":lock"
}

func (r *Redis) History(ctx context.Context, id model.SessionID) ([]*model.Turn, error) {
	values, err := r.client.LRange(ctx, r.historyKey(id), 0, -1).Result()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read session history", goerr.V(model.SessionIDKey, id))
	}

	turns := make([]*model.Turn, 0, len(values))
	for _, v := range values {
		var turn model.Turn
		if err := json.Unmarshal([]byte(v), &turn); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal session turn", goerr.V(model.SessionIDKey, id))
		}
		turns = append(turns, &turn)
	}
	return turns, nil
}

func (r *Redis) Append(ctx context.Context, id model.SessionID, turns ...*model.Turn) error {
	if id == "" {
		return goerr.Wrap(model.ErrInvalidArgument, "session id is required")
	}
	if len(turns) == 0 {
		return nil
	}

	values := make([]any, len(turns))
	for i, t := range turns {
		raw, err := json.Marshal(t)
		if err != nil {
			return goerr.Wrap(err, "failed to marshal session turn", goerr.V(model.SessionIDKey, id))
		}
		values[i] = raw
	}

	key := r.historyKey(id)
	pipe := r.client.TxPipeline()
	pipe.RPush(ctx, key, values...)
	if limit := int64(r.opts.maxHistory * 2); limit > 0 {
		pipe.LTrim(ctx, key, -limit, -1)
	} else {
		pipe.Del(ctx, key)
	}
	if r.opts.ttl > 0 {
		pipe.Expire(ctx, key, r.opts.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return goerr.Wrap(err, "failed to append session history", goerr.V(model.SessionIDKey, id))
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, id model.SessionID) error {
	if err := r.client.Del(ctx, r.historyKey(id)).Err(); err != nil {
		return goerr.Wrap(err, "failed to delete session", goerr.V(model.SessionIDKey, id))
	}
	return nil
}

func (r *Redis) Lock(ctx context.Context, id model.SessionID) (func(), error) {
	key := r.lockKey(id)
	token := uuid.NewString()

	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.opts.lockTTL).Result()
		if err != nil {
			return nil, goerr.Wrap(err, "failed to acquire session lock", goerr.V(model.SessionIDKey, id))
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, goerr.Wrap(ctx.Err(), "waiting for session lock", goerr.V(model.SessionIDKey, id))
		case <-ticker.C:
		}
	}

	return func() {
		// released even when the request context is already canceled
		releaseCtx := context.WithoutCancel(ctx)
		if err := releaseScript.Run(releaseCtx, r.client, []string{key}, token).Err(); err != nil {
			logging.From(ctx).Warn("failed to release session lock", "session_id", id, "error", err)
		}
	}, nil
}
