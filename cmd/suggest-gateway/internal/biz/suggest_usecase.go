package biz

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"checklistadvisor/cmd/suggest-gateway/internal/domain"
)

// SuggestConfig 编排配置
type SuggestConfig struct {
	RateWindow       time.Duration
	RateMax          int
	RateKeyPrefix    string
	GeneratorTimeout time.Duration
}

// SuggestResult 成功结果，附带限流状态供响应头使用
type SuggestResult struct {
	Data domain.ResponseData
	Rate domain.RateDecision
}

// SuggestUsecase 推荐网关编排
//
// RECEIVE -> RATE_CHECK -> CACHE_LOOKUP -> ESTIMATE_PROGRESS -> BUILD_PROMPT
// -> CALL_GENERATOR -> VALIDATE_NORMALIZE -> CACHE_STORE -> RESPOND
//
// 生成服务调用失败不重试。同 key 的并发未命中共享一次生成，
// 共享调用只在所有等待者都离开后才取消。
type SuggestUsecase struct {
	limiter   domain.RateLimiter
	cache     domain.ResponseCache
	generator domain.Generator
	validator *ResponseValidator
	config    SuggestConfig
	inflight  singleflight.Group
	logger    *zap.Logger

	mu    sync.Mutex
	calls map[string]*sharedCall
}

// sharedCall 同 key 等待者共享的生成上下文
type sharedCall struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// generated 一次生成的结果；由仍在等待的调用方写入缓存，只写一次
type generated struct {
	data  domain.ResponseData
	shape domain.ResponseShape
	store sync.Once
}

// NewSuggestUsecase 创建编排用例
func NewSuggestUsecase(
	limiter domain.RateLimiter,
	cache domain.ResponseCache,
	generator domain.Generator,
	validator *ResponseValidator,
	config SuggestConfig,
	logger *zap.Logger,
) *SuggestUsecase {
	if config.RateWindow <= 0 {
		config.RateWindow = time.Minute
	}
	if config.RateMax <= 0 {
		config.RateMax = 15
	}
	if config.RateKeyPrefix == "" {
		config.RateKeyPrefix = "rl"
	}
	if config.GeneratorTimeout <= 0 {
		config.GeneratorTimeout = 25 * time.Second
	}
	return &SuggestUsecase{
		limiter:   limiter,
		cache:     cache,
		generator: generator,
		validator: validator,
		config:    config,
		logger:    logger,
		calls:     make(map[string]*sharedCall),
	}
}

// Suggest 处理一次推荐请求
func (uc *SuggestUsecase) Suggest(ctx context.Context, callerKey string, req domain.SuggestRequest) (*SuggestResult, error) {
	ctx, span := otel.Tracer("checklistadvisor/suggest").Start(ctx, "SuggestUsecase.Suggest")
	defer span.End()

	// 1. 限流（在缓存与生成之前）
	decision := uc.checkRate(ctx, callerKey)
	if !decision.Allowed {
		RateLimitDecisionsTotal.WithLabelValues("rejected").Inc()
		SuggestRequestsTotal.WithLabelValues("rate_limited").Inc()
		span.SetAttributes(attribute.Bool("suggest.rate_limited", true))
		return nil, domain.ErrRateLimited.WithMetadata(map[string]string{
			"limit":       strconv.Itoa(uc.config.RateMax),
			"remaining":   strconv.Itoa(decision.Remaining),
			"reset_in_ms": strconv.FormatInt(decision.ResetIn.Milliseconds(), 10),
		})
	}
	RateLimitDecisionsTotal.WithLabelValues("allowed").Inc()

	scope, ok := domain.NormalizeScope(req.Snapshot.Scope)
	if !ok {
		SuggestRequestsTotal.WithLabelValues("invalid").Inc()
		return nil, domain.ErrInvalidRequest.WithMetadata(map[string]string{"field": "scope"})
	}
	opts := domain.SuggestOptions{
		Temperature: req.Options.Temperature,
		MaxSteps:    clampMaxSteps(req.Options.MaxSteps),
	}

	// 2. 缓存
	key := BuildCacheKey(scope, req.Snapshot.Categories, opts)
	if data, hit := uc.cache.Get(ctx, key); hit {
		CacheLookupsTotal.WithLabelValues("hit").Inc()
		SuggestRequestsTotal.WithLabelValues("cached").Inc()
		span.SetAttributes(attribute.Bool("suggest.cached", true))
		data.Cached = true
		return &SuggestResult{Data: data, Rate: decision}, nil
	}
	CacheLookupsTotal.WithLabelValues("miss").Inc()

	// 3. 生成；同key并发未命中合并为一次调用
	call := uc.join(ctx, key)
	defer uc.leave(key, call)

	gen, err := uc.await(ctx, key, call, scope, req.Snapshot, opts)
	// 调用方已断开或超过截止时间：不写缓存
	if cerr := ctx.Err(); cerr != nil {
		SuggestRequestsTotal.WithLabelValues("cancelled").Inc()
		span.SetStatus(codes.Error, "caller gone")
		return nil, domain.ErrUpstream.WithCause(cerr)
	}
	if err != nil {
		SuggestRequestsTotal.WithLabelValues("upstream_error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")
		return nil, err
	}

	if gen.shape != domain.ShapeMinimal {
		gen.store.Do(func() { uc.cache.Put(ctx, key, gen.data) })
	}
	SuggestRequestsTotal.WithLabelValues("generated").Inc()
	return &SuggestResult{Data: gen.data, Rate: decision}, nil
}

// join 登记为 key 的等待者；第一个等待者创建与自身取消解耦的共享上下文
func (uc *SuggestUsecase) join(ctx context.Context, key string) *sharedCall {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if call, ok := uc.calls[key]; ok {
		call.waiters++
		return call
	}
	sctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	call := &sharedCall{ctx: sctx, cancel: cancel, waiters: 1}
	uc.calls[key] = call
	return call
}

// leave 最后一个等待者离开时取消共享调用
func (uc *SuggestUsecase) leave(key string, call *sharedCall) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	call.waiters--
	if call.waiters == 0 {
		call.cancel()
		delete(uc.calls, key)
	}
}

// await 等待共享生成结果
// 若加入的是一个已被全部等待者放弃的调用（结果为 context.Canceled）而自己仍在等待，重新发起一次
func (uc *SuggestUsecase) await(
	ctx context.Context,
	key string,
	call *sharedCall,
	scope string,
	snapshot domain.ChecklistSnapshot,
	opts domain.SuggestOptions,
) (*generated, error) {
	for attempt := 0; ; attempt++ {
		ch := uc.inflight.DoChan(key, func() (any, error) {
			return uc.generate(call.ctx, scope, snapshot, opts)
		})

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case res := <-ch:
			if res.Err != nil {
				if attempt == 0 && ctx.Err() == nil && errors.Is(res.Err, context.Canceled) {
					continue
				}
				return nil, res.Err
			}
			return res.Val.(*generated), nil
		}
	}
}

// checkRate 限流存储出错时放行，只记录日志
func (uc *SuggestUsecase) checkRate(ctx context.Context, callerKey string) domain.RateDecision {
	key := uc.config.RateKeyPrefix + ":" + callerKey
	decision, err := uc.limiter.Allow(ctx, key, uc.config.RateWindow, uc.config.RateMax)
	if err != nil {
		uc.logger.Warn("rate limiter unavailable, allowing request",
			zap.String("key", key),
			zap.Error(err),
		)
		return domain.RateDecision{Allowed: true, Remaining: uc.config.RateMax, ResetIn: uc.config.RateWindow}
	}
	return decision
}

// generate ESTIMATE_PROGRESS -> BUILD_PROMPT -> CALL_GENERATOR -> VALIDATE_NORMALIZE
func (uc *SuggestUsecase) generate(
	ctx context.Context,
	scope string,
	snapshot domain.ChecklistSnapshot,
	opts domain.SuggestOptions,
) (*generated, error) {
	progress := EstimateProgress(snapshot)
	prompt := BuildPrompt(scope, progress, opts.Temperature, opts.MaxSteps)

	callCtx, cancel := context.WithTimeout(ctx, uc.config.GeneratorTimeout)
	defer cancel()

	start := time.Now()
	raw, err := uc.generator.Generate(callCtx, prompt, opts.Temperature)
	elapsed := time.Since(start)
	if err != nil {
		GeneratorCallDuration.WithLabelValues(uc.generator.Name(), "error").Observe(elapsed.Seconds())
		uc.logger.Error("generator call failed",
			zap.String("provider", uc.generator.Name()),
			zap.String("scope", scope),
			zap.Duration("latency", elapsed),
			zap.Error(err),
		)
		return nil, domain.ErrUpstream.WithCause(err)
	}
	GeneratorCallDuration.WithLabelValues(uc.generator.Name(), "ok").Observe(elapsed.Seconds())
	uc.logger.Debug("generator call finished",
		zap.String("provider", uc.generator.Name()),
		zap.Int("prompt_len", len(prompt)),
		zap.Int("raw_len", len(raw)),
		zap.Duration("latency", elapsed),
	)

	result := uc.validator.Process(raw, progress, opts.MaxSteps)
	ResponseShapeTotal.WithLabelValues(string(result.Shape)).Inc()

	return &generated{data: result.Data, shape: result.Shape}, nil
}
