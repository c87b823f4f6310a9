package biz

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"checklistadvisor/cmd/suggest-gateway/internal/domain"
)

// MockGenerator 模拟生成服务
type MockGenerator struct {
	GenerateFunc func(ctx context.Context, prompt string, temperature float64) (string, error)
	calls        atomic.Int32
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string, temperature float64) (string, error) {
	m.calls.Add(1)
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt, temperature)
	}
	return `{"nextSteps": [{"step": "Enumerate endpoints", "impact": "high", "confidence": 80}]}`, nil
}

func (m *MockGenerator) Name() string { return "mock" }

// stubLimiter 固定返回判定
type stubLimiter struct {
	mu       sync.Mutex
	decision domain.RateDecision
	err      error
	keys     []string
}

func (l *stubLimiter) Allow(_ context.Context, key string, _ time.Duration, _ int) (domain.RateDecision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	return l.decision, l.err
}

// mapCache 无过期的测试缓存
type mapCache struct {
	mu      sync.Mutex
	entries map[string]domain.ResponseData
	puts    int
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]domain.ResponseData)}
}

func (c *mapCache) Get(_ context.Context, key string) (domain.ResponseData, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.entries[key]
	return v, ok
}

func (c *mapCache) Put(_ context.Context, key string, value domain.ResponseData) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.puts++
	c.entries[key] = value
}

func allowAll() *stubLimiter {
	return &stubLimiter{decision: domain.RateDecision{Allowed: true, Remaining: 14, ResetIn: time.Minute}}
}

func newTestUsecase(limiter domain.RateLimiter, cache domain.ResponseCache, gen domain.Generator) *SuggestUsecase {
	return NewSuggestUsecase(limiter, cache, gen, NewResponseValidator(zap.NewNop()), SuggestConfig{
		RateWindow:       time.Minute,
		RateMax:          15,
		RateKeyPrefix:    "rl",
		GeneratorTimeout: time.Second,
	}, zap.NewNop())
}

func testRequest() domain.SuggestRequest {
	return domain.SuggestRequest{
		Snapshot: domain.ChecklistSnapshot{
			Scope: "  example.com  ",
			Categories: []domain.ChecklistCategory{
				{Name: "Recon", Items: []domain.ChecklistItem{{Text: "Port scan"}, {Text: "Crawl", Checked: true}}},
			},
		},
		Options: NormalizeOptions(nil, nil),
	}
}

func TestSuggest_CacheHitIsIdempotent(t *testing.T) {
	gen := &MockGenerator{}
	cache := newMapCache()
	uc := newTestUsecase(allowAll(), cache, gen)

	first, err := uc.Suggest(context.Background(), "1.2.3.4", testRequest())
	require.NoError(t, err)
	second, err := uc.Suggest(context.Background(), "1.2.3.4", testRequest())
	require.NoError(t, err)

	assert.Equal(t, int32(1), gen.calls.Load())
	assert.False(t, first.Data.Cached)
	assert.True(t, second.Data.Cached)

	second.Data.Cached = false
	assert.Equal(t, first.Data, second.Data)
	assert.Equal(t, domain.ShapeStrict, first.Data.Shape)
}

func TestSuggest_RateLimited(t *testing.T) {
	gen := &MockGenerator{}
	limiter := &stubLimiter{decision: domain.RateDecision{Allowed: false, Remaining: 0, ResetIn: 12 * time.Second}}
	uc := newTestUsecase(limiter, newMapCache(), gen)

	_, err := uc.Suggest(context.Background(), "1.2.3.4", testRequest())

	require.Error(t, err)
	assert.True(t, domain.IsRateLimited(err))
	se := kerrors.FromError(err)
	assert.Equal(t, int32(429), se.Code)
	assert.Equal(t, "15", se.Metadata["limit"])
	assert.Equal(t, "0", se.Metadata["remaining"])
	assert.Equal(t, "12000", se.Metadata["reset_in_ms"])
	assert.Equal(t, int32(0), gen.calls.Load())
	assert.Equal(t, []string{"rl:1.2.3.4"}, limiter.keys)
}

func TestSuggest_LimiterErrorFailsOpen(t *testing.T) {
	gen := &MockGenerator{}
	limiter := &stubLimiter{err: errors.New("redis down")}
	uc := newTestUsecase(limiter, newMapCache(), gen)

	res, err := uc.Suggest(context.Background(), "1.2.3.4", testRequest())

	require.NoError(t, err)
	assert.Equal(t, 15, res.Rate.Remaining)
	assert.Equal(t, int32(1), gen.calls.Load())
}

func TestSuggest_InvalidScope(t *testing.T) {
	gen := &MockGenerator{}
	uc := newTestUsecase(allowAll(), newMapCache(), gen)

	req := testRequest()
	req.Snapshot.Scope = " x "
	_, err := uc.Suggest(context.Background(), "1.2.3.4", req)

	require.Error(t, err)
	assert.Equal(t, domain.ReasonInvalidRequest, kerrors.Reason(err))
	assert.Equal(t, int32(500), kerrors.FromError(err).Code)
	assert.Equal(t, int32(0), gen.calls.Load())
}

func TestSuggest_UpstreamErrorNotCached(t *testing.T) {
	gen := &MockGenerator{
		GenerateFunc: func(context.Context, string, float64) (string, error) {
			return "", errors.New("connection refused")
		},
	}
	cache := newMapCache()
	uc := newTestUsecase(allowAll(), cache, gen)

	_, err := uc.Suggest(context.Background(), "1.2.3.4", testRequest())

	require.Error(t, err)
	assert.True(t, domain.IsUpstream(err))
	assert.Equal(t, "Failed to get AI suggestions", kerrors.FromError(err).Message)
	assert.Equal(t, 0, cache.puts)
	assert.Equal(t, int32(1), gen.calls.Load(), "no retry")
}

func TestSuggest_GeneratorTimeout(t *testing.T) {
	gen := &MockGenerator{
		GenerateFunc: func(ctx context.Context, _ string, _ float64) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
	}
	cache := newMapCache()
	uc := NewSuggestUsecase(allowAll(), cache, gen, NewResponseValidator(zap.NewNop()), SuggestConfig{
		GeneratorTimeout: 20 * time.Millisecond,
	}, zap.NewNop())

	_, err := uc.Suggest(context.Background(), "1.2.3.4", testRequest())

	require.Error(t, err)
	assert.True(t, domain.IsUpstream(err))
	assert.Equal(t, 0, cache.puts)
}

func TestSuggest_CancelledCallerDoesNotPoisonCache(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	gen := &MockGenerator{
		GenerateFunc: func(context.Context, string, float64) (string, error) {
			cancel()
			return `{"nextSteps": [{"step": "late answer"}]}`, nil
		},
	}
	cache := newMapCache()
	uc := newTestUsecase(allowAll(), cache, gen)

	_, err := uc.Suggest(ctx, "1.2.3.4", testRequest())

	require.Error(t, err)
	assert.True(t, domain.IsUpstream(err))
	assert.Equal(t, 0, cache.puts)
}

func TestSuggest_FallbackShapeIsCached(t *testing.T) {
	gen := &MockGenerator{
		GenerateFunc: func(context.Context, string, float64) (string, error) {
			return "no json here", nil
		},
	}
	cache := newMapCache()
	uc := newTestUsecase(allowAll(), cache, gen)

	res, err := uc.Suggest(context.Background(), "1.2.3.4", testRequest())

	require.NoError(t, err)
	assert.Equal(t, domain.ShapeFallback, res.Data.Shape)
	require.Len(t, res.Data.NextSteps, 1)
	assert.Equal(t, "Port scan", res.Data.NextSteps[0].Step)
	assert.Equal(t, 1, cache.puts)
}

func TestSuggest_ConcurrentMissesCoalesce(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	gen := &MockGenerator{
		GenerateFunc: func(context.Context, string, float64) (string, error) {
			once.Do(func() { close(started) })
			<-release
			return `{"nextSteps": [{"step": "shared"}]}`, nil
		},
	}
	uc := newTestUsecase(allowAll(), newMapCache(), gen)

	var wg sync.WaitGroup
	results := make([]*SuggestResult, 2)
	errs := make([]error, 2)
	run := func(i int) {
		defer wg.Done()
		results[i], errs[i] = uc.Suggest(context.Background(), "1.2.3.4", testRequest())
	}

	wg.Add(1)
	go run(0)
	<-started
	wg.Add(1)
	go run(1)
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, int32(1), gen.calls.Load())
	assert.Equal(t, "shared", results[0].Data.NextSteps[0].Step)
	assert.Equal(t, "shared", results[1].Data.NextSteps[0].Step)
}

// waitersFor 当前唯一共享调用的等待者数量
func waitersFor(uc *SuggestUsecase) int {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	for _, call := range uc.calls {
		return call.waiters
	}
	return 0
}

func TestSuggest_CancelledCallerDoesNotFailOtherWaiters(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	gen := &MockGenerator{
		GenerateFunc: func(ctx context.Context, _ string, _ float64) (string, error) {
			once.Do(func() { close(started) })
			select {
			case <-release:
				return `{"nextSteps": [{"step": "shared"}]}`, nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
	}
	cache := newMapCache()
	uc := newTestUsecase(allowAll(), cache, gen)

	ctxA, cancelA := context.WithCancel(context.Background())
	defer cancelA()
	errA := make(chan error, 1)
	go func() {
		_, err := uc.Suggest(ctxA, "10.0.0.1", testRequest())
		errA <- err
	}()
	<-started

	type outcome struct {
		res *SuggestResult
		err error
	}
	doneB := make(chan outcome, 1)
	go func() {
		res, err := uc.Suggest(context.Background(), "10.0.0.2", testRequest())
		doneB <- outcome{res, err}
	}()
	require.Eventually(t, func() bool { return waitersFor(uc) == 2 }, time.Second, 5*time.Millisecond)

	cancelA()
	err := <-errA
	require.Error(t, err)
	assert.True(t, domain.IsUpstream(err))

	close(release)
	b := <-doneB
	require.NoError(t, b.err, "a live caller must not inherit another caller's cancellation")
	assert.Equal(t, "shared", b.res.Data.NextSteps[0].Step)
	assert.Equal(t, int32(1), gen.calls.Load())
	assert.Equal(t, 1, cache.puts)
}

func TestSuggest_AbandonedGenerationIsCancelled(t *testing.T) {
	started := make(chan struct{})
	observed := make(chan error, 1)
	gen := &MockGenerator{
		GenerateFunc: func(ctx context.Context, _ string, _ float64) (string, error) {
			close(started)
			<-ctx.Done()
			observed <- ctx.Err()
			return "", ctx.Err()
		},
	}
	cache := newMapCache()
	uc := NewSuggestUsecase(allowAll(), cache, gen, NewResponseValidator(zap.NewNop()), SuggestConfig{
		GeneratorTimeout: time.Minute,
	}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := uc.Suggest(ctx, "10.0.0.1", testRequest())
		errCh <- err
	}()
	<-started
	cancel()

	require.Error(t, <-errCh)
	select {
	case err := <-observed:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("generation kept running after every caller left")
	}
	assert.Equal(t, 0, waitersFor(uc))
	assert.Equal(t, 0, cache.puts)
}
