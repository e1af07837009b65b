package redisimpls

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/godruoyi/go-snowflake"
	"github.com/patrickmn/go-cache"
	"github.com/sgostarter/i/commerr"
	"github.com/sgostarter/i/l"
	"github.com/sgostarter/librestraint/ensemble"
	"gonum.org/v1/gonum/mat"
)

type Config struct {
	PreKey      string
	MemberCount int

	// WaitTimeout bounds how long Reduce waits for the other members of a
	// window before giving up. The source behavior is an unbounded barrier;
	// pass 0 to keep the default bound.
	WaitTimeout   time.Duration
	PollInterval  time.Duration
	KeyExpiration time.Duration
}

// NewRedisEnsemble builds ensemble resources backed by a shared redis, for
// members spread across processes or hosts. Each window is a hash keyed by
// window index; members publish their local histogram into it and poll until
// every member has contributed, then sum client-side. The first member to
// complete a window publishes the sum, so a member arriving after the hash
// expired still gets its result.
func NewRedisEnsemble(cfg Config, redisCli *redis.Client, logger l.Wrapper) ensemble.Resources {
	if logger == nil {
		logger = l.NewNopLoggerWrapper()
	}

	logger = logger.WithFields(l.StringField(l.ClsKey, "redisEnsemble"))

	if redisCli == nil {
		logger.Fatal("no redis client")
	}

	if cfg.MemberCount <= 0 {
		logger.Fatal("invalid member count:", cfg.MemberCount)
	}

	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = time.Minute * 10
	}

	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Millisecond * 100
	}

	if cfg.KeyExpiration <= 0 {
		cfg.KeyExpiration = cfg.WaitTimeout * 2
	}

	return &redisEnsembleImpl{
		logger:       logger,
		cfg:          cfg,
		redisCli:     redisCli,
		memberID:     fmt.Sprintf("%d", snowflake.ID()),
		reducedCache: cache.New(cfg.KeyExpiration, cfg.KeyExpiration),
	}
}

type redisEnsembleImpl struct {
	logger   l.Wrapper
	cfg      Config
	redisCli *redis.Client
	memberID string

	// reducedCache memoizes summed windows by key, so a Reduce retried after
	// a failure past the rendezvous answers without touching redis again.
	reducedCache *cache.Cache

	lock sync.Mutex

	// window advances only when Reduce succeeds; a failed call leaves the
	// member in the same window and a retry re-enters the same rendezvous.
	window uint64
}

type windowPayload struct {
	Rows int       `json:"rows"`
	Cols int       `json:"cols"`
	Data []float64 `json:"data"`
}

func (impl *redisEnsembleImpl) windowKey(window uint64) string {
	return fmt.Sprintf("%s:win:%d", impl.cfg.PreKey, window)
}

func (impl *redisEnsembleImpl) sumKey(window uint64) string {
	return impl.windowKey(window) + ":sum"
}

func (impl *redisEnsembleImpl) stopKey() string {
	return impl.cfg.PreKey + ":stop"
}

func (impl *redisEnsembleImpl) Reduce(local *mat.Dense) (*mat.Dense, error) {
	if local == nil {
		return nil, ensemble.ErrShapeMismatch
	}

	impl.lock.Lock()
	defer impl.lock.Unlock()

	key := impl.windowKey(impl.window)

	if v, ok := impl.reducedCache.Get(key); ok {
		// nolint:forcetypeassert
		return impl.finishWindow(mat.DenseCopyOf(v.(*mat.Dense)))
	}

	rows, cols := local.Dims()

	d, err := json.Marshal(&windowPayload{
		Rows: rows,
		Cols: cols,
		Data: local.RawMatrix().Data,
	})
	if err != nil {
		return nil, err
	}

	ctx := context.Background()

	// The window may have completed while this member was away; its own
	// contribution is already part of the published sum.
	sum, ok, err := impl.readSum(ctx, rows, cols)
	if err != nil {
		return nil, err
	}

	if ok {
		return impl.completeWindow(key, sum)
	}

	err = impl.redisCli.HSet(ctx, key, impl.memberID, d).Err()
	if err != nil {
		return nil, err
	}

	impl.redisCli.Expire(ctx, key, impl.cfg.KeyExpiration)

	deadline := time.Now().Add(impl.cfg.WaitTimeout)

	for {
		sum, ok, err = impl.readSum(ctx, rows, cols)
		if err != nil {
			return nil, err
		}

		if ok {
			return impl.completeWindow(key, sum)
		}

		cnt, err := impl.redisCli.HLen(ctx, key).Result()
		if err != nil {
			return nil, err
		}

		if cnt >= int64(impl.cfg.MemberCount) {
			break
		}

		if time.Now().After(deadline) {
			impl.logger.WithFields(l.StringField("key", key)).Error("reduce wait timeout")

			return nil, commerr.ErrTimeout
		}

		time.Sleep(impl.cfg.PollInterval)
	}

	members, err := impl.redisCli.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	sum = mat.NewDense(rows, cols, nil)

	for _, v := range members {
		var payload windowPayload

		err = json.Unmarshal([]byte(v), &payload)
		if err != nil {
			return nil, err
		}

		if payload.Rows != rows || payload.Cols != cols || len(payload.Data) != rows*cols {
			return nil, ensemble.ErrShapeMismatch
		}

		sum.Add(sum, mat.NewDense(payload.Rows, payload.Cols, payload.Data))
	}

	return impl.completeWindow(key, sum)
}

// completeWindow memoizes the summed window, then publishes and advances.
func (impl *redisEnsembleImpl) completeWindow(key string, sum *mat.Dense) (*mat.Dense, error) {
	impl.reducedCache.Set(key, mat.DenseCopyOf(sum), cache.DefaultExpiration)

	return impl.finishWindow(sum)
}

// finishWindow publishes the sum for members still waiting on this window
// and advances to the next one. A publish failure leaves the window index
// alone; the retry is served from reducedCache.
func (impl *redisEnsembleImpl) finishWindow(sum *mat.Dense) (*mat.Dense, error) {
	rows, cols := sum.Dims()

	d, err := json.Marshal(&windowPayload{
		Rows: rows,
		Cols: cols,
		Data: sum.RawMatrix().Data,
	})
	if err != nil {
		return nil, err
	}

	err = impl.redisCli.Set(context.Background(), impl.sumKey(impl.window), d, impl.cfg.KeyExpiration).Err()
	if err != nil {
		return nil, err
	}

	impl.window++

	return sum, nil
}

// readSum fetches the published sum of the current window, if any member has
// completed it already.
func (impl *redisEnsembleImpl) readSum(ctx context.Context, rows, cols int) (*mat.Dense, bool, error) {
	d, err := impl.redisCli.Get(ctx, impl.sumKey(impl.window)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}

		return nil, false, err
	}

	var payload windowPayload

	err = json.Unmarshal(d, &payload)
	if err != nil {
		return nil, false, err
	}

	if payload.Rows != rows || payload.Cols != cols || len(payload.Data) != rows*cols {
		return nil, false, ensemble.ErrShapeMismatch
	}

	return mat.NewDense(payload.Rows, payload.Cols, payload.Data), true, nil
}

func (impl *redisEnsembleImpl) Stop() error {
	return impl.redisCli.Set(context.Background(), impl.stopKey(), 1, 0).Err()
}

func (impl *redisEnsembleImpl) ShouldStop() bool {
	cnt, err := impl.redisCli.Exists(context.Background(), impl.stopKey()).Result()
	if err != nil {
		return false
	}

	return cnt > 0
}
