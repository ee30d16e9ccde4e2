package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"sync"

	"github.com/germanamz/huddle/pkg/agent"
	"github.com/germanamz/huddle/pkg/ask"
	"github.com/germanamz/huddle/pkg/events"
	"github.com/germanamz/huddle/pkg/groupchat"
	"github.com/germanamz/huddle/pkg/memory"
	"github.com/germanamz/huddle/pkg/metrics"
	"github.com/germanamz/huddle/pkg/modeladapter"
	"github.com/germanamz/huddle/pkg/modeladapter/cache"
	"github.com/germanamz/huddle/pkg/modeladapter/usage"
	"github.com/germanamz/huddle/pkg/tools/mcpclient"
	"github.com/germanamz/huddle/pkg/tools/toolbox"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CacheFile is the SQLite completion cache inside the data directory.
const CacheFile = "cache.db"

// Options holds runtime dependencies that do not belong in the config file.
type Options struct {
	Logger *zap.Logger
	// Session stamps every event; default a random UUID.
	Session string
	// OnAsk is called for each question for the human after it has been
	// published on the bus.
	OnAsk ask.OnAskFunc
}

// Engine is the composition root that assembles all components from
// configuration and exposes them through a frontend-agnostic API.
type Engine struct {
	cfg     Config
	logger  *zap.Logger
	session string

	bus       *events.Bus
	responder *ask.Responder
	registry  *agent.Registry
	metrics   *metrics.Collector

	cache      modeladapter.Cache
	store      *memory.Store
	mcpClients []*mcpclient.MCPClient
	toolboxes  map[string]*toolbox.ToolBox
	completers map[string]modeladapter.Completer
	closers    []io.Closer

	initiator agent.Agent
	recipient agent.Agent
	manager   *groupchat.Manager

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// New creates an Engine from the given configuration. It validates the
// config, opens the cache and memory store, connects MCP servers, builds the
// participants and starts the observers of the event bus.
func New(ctx context.Context, cfg Config, opts Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Session == "" {
		opts.Session = uuid.NewString()
	}

	e := &Engine{
		cfg:        cfg,
		logger:     opts.Logger.With(zap.String("session", opts.Session)),
		session:    opts.Session,
		bus:        events.NewBus(opts.Session),
		registry:   agent.NewRegistry(),
		toolboxes:  make(map[string]*toolbox.ToolBox),
		completers: make(map[string]modeladapter.Completer),
	}
	e.metrics = metrics.New("", e.logger)

	e.responder = ask.NewResponder(func(ctx context.Context, q ask.Question) {
		events.Emit(e.bus, events.KindAskUser, q.Agent, events.AskData{QuestionID: q.ID, Text: q.Text, Options: q.Options})
		if opts.OnAsk != nil {
			opts.OnAsk(ctx, q)
		}
	})

	if err := e.build(ctx); err != nil {
		_ = e.Close()
		return nil, err
	}

	e.logger.Info("engine ready",
		zap.String("initiator", e.initiator.Name()),
		zap.String("recipient", e.recipient.Name()),
		zap.Strings("agents", e.AgentNames()),
	)

	return e, nil
}

func (e *Engine) build(ctx context.Context) error {
	if err := e.openCache(ctx); err != nil {
		return err
	}

	for _, sc := range e.cfg.MCPServers {
		client, err := mcpclient.Connect(ctx, sc)
		if err != nil {
			return fmt.Errorf("engine: mcp %q: %w", sc.Name, err)
		}
		e.mcpClients = append(e.mcpClients, client)

		tb, err := client.Toolbox(ctx)
		if err != nil {
			return fmt.Errorf("engine: mcp %q: list tools: %w", sc.Name, err)
		}
		e.toolboxes[sc.Name] = tb
	}

	for _, name := range e.participants() {
		a, err := e.buildAgent(ctx, name)
		if err != nil {
			return err
		}
		if err := e.registry.Register(a); err != nil {
			return fmt.Errorf("engine: %w", err)
		}
	}

	initiator, _ := e.registry.Get(e.cfg.Resolve(e.cfg.Initiator))
	e.initiator = initiator

	if e.cfg.GroupChat == nil {
		recipient, _ := e.registry.Get(e.cfg.Resolve(e.cfg.Recipient))
		e.recipient = recipient
	} else {
		m, err := e.buildManager()
		if err != nil {
			return err
		}
		e.manager = m
		e.recipient = m
	}

	return e.startObservers()
}

// participants lists the agents taking part, after the memory swap.
func (e *Engine) participants() []string {
	var names []string
	if e.cfg.GroupChat != nil {
		names = e.cfg.GroupChat.Agents
	} else {
		names = []string{e.cfg.Initiator, e.cfg.Recipient}
	}

	out := make([]string, 0, len(names))
	for _, n := range names {
		if seat := e.cfg.Resolve(n); !slices.Contains(out, seat) {
			out = append(out, seat)
		}
	}
	return out
}

func (e *Engine) openCache(ctx context.Context) error {
	switch e.cfg.Cache.Kind {
	case CacheNone:
		return nil
	case CacheRedis:
		rc := e.cfg.Cache.Redis
		r, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
			Prefix:   rc.Prefix,
			TTL:      rc.TTL,
		})
		if err != nil {
			return fmt.Errorf("engine: %w", err)
		}
		e.cache = r
		e.closers = append(e.closers, r)
	default:
		path := e.cfg.Cache.Path
		if path == "" {
			path = filepath.Join(e.cfg.DataDir, CacheFile)
		}
		s, err := cache.OpenSQLite(path)
		if err != nil {
			return fmt.Errorf("engine: %w", err)
		}
		e.cache = s
		e.closers = append(e.closers, s)
	}
	return nil
}

// memoryStore opens the memory store on first use.
func (e *Engine) memoryStore() (*memory.Store, error) {
	if e.store != nil {
		return e.store, nil
	}

	s, err := memory.OpenDir(e.cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	e.store = s
	e.closers = append(e.closers, s)

	return s, nil
}

func (e *Engine) buildManager() (*groupchat.Manager, error) {
	gcfg := e.cfg.GroupChat

	agents, err := e.registry.Lookup(e.participants()...)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	allowRepeat := true
	if gcfg.AllowRepeatSpeaker != nil {
		allowRepeat = *gcfg.AllowRepeatSpeaker
	}

	gc, err := groupchat.New(agents, groupchat.Options{MaxRound: gcfg.MaxRound, AllowRepeatSpeaker: allowRepeat})
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	method, err := groupchat.ParseSpeakerSelection(gcfg.SpeakerSelection)
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	name := gcfg.Manager.Name
	if name == "" {
		name = groupchat.DefaultManagerName
	}

	var completer modeladapter.Completer
	if method == groupchat.Auto || method == groupchat.Manual {
		completer, err = e.completer(e.cfg.LLM.Merge(gcfg.Manager.LLM))
		if err != nil {
			return nil, fmt.Errorf("engine: group chat manager: %w", err)
		}
	}

	selector, err := groupchat.NewSelector(method, completer, e.responder.Input(name))
	if err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}

	return groupchat.NewManager(name, gc, groupchat.ManagerOptions{
		Description: gcfg.Manager.Description,
		Selector:    selector,
		Events:      e.bus,
		Logger:      e.logger,
	}), nil
}

// Session returns the identifier stamped on every event.
func (e *Engine) Session() string { return e.session }

// Config returns the validated configuration.
func (e *Engine) Config() Config { return e.cfg }

// Events returns the engine's event bus.
func (e *Engine) Events() *events.Bus { return e.bus }

// Responder returns the question broker frontends answer through.
func (e *Engine) Responder() *ask.Responder { return e.responder }

// Metrics returns the Prometheus collector.
func (e *Engine) Metrics() *metrics.Collector { return e.metrics }

// Memory returns the memory store, or nil when no memgpt agent takes part.
func (e *Engine) Memory() *memory.Store { return e.store }

// Agent returns a participant by name.
func (e *Engine) Agent(name string) (agent.Agent, bool) { return e.registry.Get(name) }

// AgentNames lists the participants.
func (e *Engine) AgentNames() []string {
	var names []string
	for _, entry := range e.registry.List() {
		names = append(names, entry.Name)
	}
	return names
}

// Usage sums token usage and cache hits of every completer built so far.
func (e *Engine) Usage() usage.Summary {
	var sum usage.Summary
	for _, c := range e.completers {
		ur, ok := c.(modeladapter.UsageReporter)
		if !ok {
			continue
		}
		if t := ur.UsageTracker(); t != nil {
			sum = sum.Plus(t.Summary())
		}
	}
	return sum
}

// Manager returns the group chat manager, or nil for pair chats.
func (e *Engine) Manager() *groupchat.Manager { return e.manager }

// Close stops the observers, closes the bus and releases MCP sessions, the
// cache and the memory store.
func (e *Engine) Close() error {
	e.bus.Close()
	if e.cancel != nil {
		e.cancel()
	}
	e.wg.Wait()

	var errs []error
	for _, c := range e.mcpClients {
		errs = append(errs, c.Close())
	}
	for _, c := range e.closers {
		errs = append(errs, c.Close())
	}
	e.mcpClients, e.closers = nil, nil

	return errors.Join(errs...)
}
