// Package metrics exports session activity as Prometheus counters. A
// Collector follows the event bus and wraps completers to count LLM calls,
// tokens and cache lookups.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/germanamz/huddle/pkg/chats/chat"
	"github.com/germanamz/huddle/pkg/chats/message"
	"github.com/germanamz/huddle/pkg/events"
	"github.com/germanamz/huddle/pkg/modeladapter"
	"github.com/germanamz/huddle/pkg/modeladapter/usage"
	"github.com/germanamz/huddle/pkg/tools/toolbox"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "huddle"

// Collector owns a private registry with the session counters.
type Collector struct {
	registry *prometheus.Registry
	logger   *zap.Logger

	messages       *prometheus.CounterVec
	speakerTurns   *prometheus.CounterVec
	functionCalls  *prometheus.CounterVec
	codeExecutions *prometheus.CounterVec
	chats          *prometheus.CounterVec
	errors         *prometheus.CounterVec
	llmRequests    *prometheus.CounterVec
	llmDuration    *prometheus.HistogramVec
	llmTokens      *prometheus.CounterVec
	cacheLookups   *prometheus.CounterVec
}

// New creates a Collector. An empty namespace selects DefaultNamespace.
func New(namespace string, logger *zap.Logger) *Collector {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Collector{
		registry: reg,
		logger:   logger.With(zap.String("component", "metrics")),
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Messages exchanged between agents.",
		}, []string{"from", "to"}),
		speakerTurns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speaker_turns_total",
			Help:      "Group chat rounds by selected speaker.",
		}, []string{"speaker", "method"}),
		functionCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "function_calls_total",
			Help:      "Function calls made by agents.",
		}, []string{"agent", "function", "status"}),
		codeExecutions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "code_executions_total",
			Help:      "Code executions by outcome.",
		}, []string{"agent", "status"}),
		chats: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chats_total",
			Help:      "Finished conversations by stop reason.",
		}, []string{"reason"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors reported by agents.",
		}, []string{"agent"}),
		llmRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "LLM completion requests.",
		}, []string{"provider", "status"}),
		llmDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM completion latency.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider"}),
		llmTokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Tokens reported by LLM backends.",
		}, []string{"provider", "type"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Completion cache lookups.",
		}, []string{"result"}),
	}
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Observe updates counters for one event.
func (c *Collector) Observe(e events.Event) {
	switch d := e.Data.(type) {
	case events.MessageData:
		c.messages.WithLabelValues(d.From, d.To).Inc()
	case events.SpeakerData:
		c.speakerTurns.WithLabelValues(d.Speaker, d.Method).Inc()
	case events.FunctionData:
		if e.Kind == events.KindFunctionReturn {
			c.functionCalls.WithLabelValues(e.Agent, d.Name, status(!d.IsError)).Inc()
		}
	case events.CodeData:
		c.codeExecutions.WithLabelValues(e.Agent, status(d.ExitCode == 0)).Inc()
	case events.EndData:
		c.chats.WithLabelValues(d.Reason).Inc()
	case events.ErrorData:
		c.errors.WithLabelValues(e.Agent).Inc()
	}
}

// Run observes events from sub until the subscription closes or ctx is done.
func (c *Collector) Run(ctx context.Context, sub *events.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-sub.C:
			if !ok {
				return
			}
			c.Observe(e)
		}
	}
}

// CacheLookup records one completion cache lookup. It matches the
// modeladapter.CachedCompleter OnLookup hook.
func (c *Collector) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.cacheLookups.WithLabelValues(result).Inc()
}

// Serve exposes Handler on addr under /metrics until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	c.logger.Info("serving metrics", zap.String("addr", addr))

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Completer counts requests, latency and tokens of inner under provider.
func (c *Collector) Completer(provider string, inner modeladapter.Completer) modeladapter.Completer {
	return &countingCompleter{inner: inner, provider: provider, c: c}
}

type countingCompleter struct {
	inner    modeladapter.Completer
	provider string
	c        *Collector
}

var _ modeladapter.UsageReporter = (*countingCompleter)(nil)

func (cc *countingCompleter) Complete(ctx context.Context, ch *chat.Chat, tools []toolbox.Tool) (message.Message, error) {
	var before usage.TokenCount
	tracker := cc.UsageTracker()
	if tracker != nil {
		before = tracker.Total()
	}

	start := time.Now()
	msg, err := cc.inner.Complete(ctx, ch, tools)
	cc.c.llmDuration.WithLabelValues(cc.provider).Observe(time.Since(start).Seconds())
	cc.c.llmRequests.WithLabelValues(cc.provider, status(err == nil)).Inc()

	if tracker != nil {
		after := tracker.Total()
		if n := after.InputTokens - before.InputTokens; n > 0 {
			cc.c.llmTokens.WithLabelValues(cc.provider, "input").Add(float64(n))
		}
		if n := after.OutputTokens - before.OutputTokens; n > 0 {
			cc.c.llmTokens.WithLabelValues(cc.provider, "output").Add(float64(n))
		}
	}

	return msg, err
}

func (cc *countingCompleter) UsageTracker() *usage.Tracker {
	if ur, ok := cc.inner.(modeladapter.UsageReporter); ok {
		return ur.UsageTracker()
	}
	return nil
}

func (cc *countingCompleter) ModelMaxTokens() int {
	if ur, ok := cc.inner.(modeladapter.UsageReporter); ok {
		return ur.ModelMaxTokens()
	}
	return 0
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
