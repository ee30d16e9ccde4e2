package engine

import (
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/germanamz/huddle/pkg/agent"
	"github.com/germanamz/huddle/pkg/codeexec"
	"github.com/germanamz/huddle/pkg/groupchat"
	"github.com/germanamz/huddle/pkg/logging"
	"github.com/germanamz/huddle/pkg/memagent"
	"github.com/germanamz/huddle/pkg/providers/local"
	"github.com/germanamz/huddle/pkg/tools/mcpclient"
	"gopkg.in/yaml.v3"
)

// DefaultDataDir holds the memory store, the completion cache and logs.
const DefaultDataDir = ".huddle"

// Agent kinds.
const (
	KindAssistant = "assistant"
	KindUserProxy = "user_proxy"
	KindMemGPT    = "memgpt"
)

// Cache kinds.
const (
	CacheSQLite = "sqlite"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// ToolboxAsk names the built-in toolbox holding ask_user.
const ToolboxAsk = "ask"

// Config is the top-level engine configuration.
type Config struct {
	DataDir        string                   `yaml:"data_dir"`
	Log            logging.Config           `yaml:"log"`
	Cache          CacheConfig              `yaml:"cache"`
	Providers      []ProviderConfig         `yaml:"providers"`
	MemoryBackends []MemoryBackendConfig    `yaml:"memory_backends"`
	LLM            LLMConfig                `yaml:"llm"`
	MCPServers     []mcpclient.ServerConfig `yaml:"mcp_servers"`
	Agents         []AgentConfig            `yaml:"agents"`

	// UseMemory swaps every memgpt agent in for the agent it replaces.
	UseMemory bool             `yaml:"use_memory"`
	GroupChat *GroupChatConfig `yaml:"group_chat"`

	Initiator     string `yaml:"initiator"`
	Recipient     string `yaml:"recipient"` // Pair chats only.
	Message       string `yaml:"message"`
	MaxTurns      int    `yaml:"max_turns"`
	SummaryMethod string `yaml:"summary_method"`

	MetricsAddr string           `yaml:"metrics_addr"`
	Transcript  TranscriptConfig `yaml:"transcript"`
}

// CacheConfig selects where completions are cached.
type CacheConfig struct {
	Kind  string      `yaml:"kind"` // sqlite (default), redis or none.
	Path  string      `yaml:"path"` // Default <data_dir>/cache.db.
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig configures the redis cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"` //nolint:gosec // configuration field, not a hardcoded secret
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// RateLimitConfig controls per-provider rate limiting.
type RateLimitConfig struct {
	RPM        int    `yaml:"rpm"`         // Requests per minute (0 = no limit).
	MaxRetries int    `yaml:"max_retries"` // Max retries on 429 (default 3).
	BaseDelay  string `yaml:"base_delay"`  // Initial backoff delay as a duration string (e.g. "1s", "500ms").
}

// ProviderConfig describes one entry of the inference config list.
type ProviderConfig struct {
	Name     string `yaml:"name"`
	Kind     string `yaml:"kind"` // Default openai.
	BaseURL  string `yaml:"base_url"`
	APIKey   string `yaml:"api_key"` //nolint:gosec // configuration field, not a hardcoded secret
	Model    string `yaml:"model"`
	// Encoding names the tiktoken encoding that sizes memgpt prompts; empty
	// selects the character estimate.
	Encoding string `yaml:"encoding"`
	// ContextWindow sizes memgpt prompts served by this provider.
	ContextWindow int             `yaml:"context_window"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
}

// MemoryBackendConfig describes a completion-style server for memgpt agents.
type MemoryBackendConfig struct {
	Name          string          `yaml:"name"`
	EndpointType  string          `yaml:"endpoint_type"`
	Endpoint      string          `yaml:"endpoint"`
	Model         string          `yaml:"model"`
	ModelWrapper  string          `yaml:"model_wrapper"`
	ContextWindow int             `yaml:"context_window"`
	RateLimit     RateLimitConfig `yaml:"rate_limit"`
}

// LLMConfig selects providers and sampling settings. Agent-level values
// override the top-level ones field by field.
type LLMConfig struct {
	Providers   []string `yaml:"providers"` // Tried in order; default every provider.
	Seed        *int     `yaml:"seed"`      // Cache seed; also forwarded as the sampling seed.
	Temperature *float64 `yaml:"temperature"`
	MaxTokens   int      `yaml:"max_tokens"`
	Timeout     string   `yaml:"timeout"` // Per-reply timeout as a duration string.
}

// TerminationConfig sets the termination predicate of an agent.
type TerminationConfig struct {
	Suffix string `yaml:"suffix"` // Default TERMINATE.
}

// MemoryConfig configures a memgpt agent.
type MemoryConfig struct {
	Replaces            string `yaml:"replaces"` // Agent swapped out when use_memory is set.
	Backend             string `yaml:"backend"`  // Memory backend or provider name.
	Preset              string `yaml:"preset"`
	Persona             string `yaml:"persona"`
	Human               string `yaml:"human"`
	SystemMessage       string `yaml:"system_message"`
	MaxSteps            int    `yaml:"max_steps"`
	ShowInnerThoughts   bool   `yaml:"show_inner_thoughts"`
	ShowFunctionOutputs bool   `yaml:"show_function_outputs"`
}

// AgentConfig describes one participant.
type AgentConfig struct {
	Name                    string            `yaml:"name"`
	Kind                    string            `yaml:"kind"` // assistant (default), user_proxy or memgpt.
	Description             string            `yaml:"description"`
	SystemMessage           string            `yaml:"system_message"`
	HumanInputMode          string            `yaml:"human_input_mode"`
	MaxConsecutiveAutoReply int               `yaml:"max_consecutive_auto_reply"`
	DefaultAutoReply        string            `yaml:"default_auto_reply"`
	Termination             TerminationConfig `yaml:"termination"`
	CodeExecution           *codeexec.Config  `yaml:"code_execution"`
	LLM                     *LLMConfig        `yaml:"llm"`
	Toolboxes               []string          `yaml:"toolboxes"`
	Memory                  *MemoryConfig     `yaml:"memory"`
}

// ManagerConfig configures the group chat manager.
type ManagerConfig struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	LLM         *LLMConfig `yaml:"llm"`
}

// GroupChatConfig describes the group chat.
type GroupChatConfig struct {
	Agents             []string      `yaml:"agents"`
	MaxRound           int           `yaml:"max_round"`
	SpeakerSelection   string        `yaml:"speaker_selection"`
	AllowRepeatSpeaker *bool         `yaml:"allow_repeat_speaker"` // Default true.
	Manager            ManagerConfig `yaml:"manager"`
}

// TranscriptConfig enables transcript outputs.
type TranscriptConfig struct {
	Path string `yaml:"path"` // JSONL file.
	Addr string `yaml:"addr"` // WebSocket listen address.
}

// LoadConfig reads a YAML file and returns a Config.
// Environment variables referenced as ${VAR} or $VAR in the YAML are expanded
// before parsing, so API keys can stay in the environment or a .env file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return Config{}, fmt.Errorf("engine: load config: %w", err)
	}

	return ParseConfig(data)
}

// ParseConfig parses YAML configuration after expanding environment variables.
func ParseConfig(data []byte) (Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("engine: parse config: %w", err)
	}

	return cfg, nil
}

// Merge returns l with the non-zero fields of override applied.
func (l LLMConfig) Merge(override *LLMConfig) LLMConfig {
	if override == nil {
		return l
	}
	if len(override.Providers) > 0 {
		l.Providers = override.Providers
	}
	if override.Seed != nil {
		l.Seed = override.Seed
	}
	if override.Temperature != nil {
		l.Temperature = override.Temperature
	}
	if override.MaxTokens > 0 {
		l.MaxTokens = override.MaxTokens
	}
	if override.Timeout != "" {
		l.Timeout = override.Timeout
	}
	return l
}

// Agent returns the agent config by name.
func (c Config) Agent(name string) (AgentConfig, bool) {
	for _, a := range c.Agents {
		if a.Name == name {
			return a, true
		}
	}
	return AgentConfig{}, false
}

// Resolve maps a configured participant name to the agent taking its seat:
// with UseMemory set, a memgpt agent replacing name stands in for it.
func (c Config) Resolve(name string) string {
	if !c.UseMemory {
		return name
	}
	for _, a := range c.Agents {
		if a.Kind == KindMemGPT && a.Memory != nil && a.Memory.Replaces == name {
			return a.Name
		}
	}
	return name
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	providerNames := make(map[string]struct{}, len(c.Providers))
	for _, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("engine: config: provider name is required")
		}
		if _, dup := providerNames[p.Name]; dup {
			return fmt.Errorf("engine: config: duplicate provider name %q", p.Name)
		}
		if _, ok := getFactory(providerKind(p)); !ok {
			return fmt.Errorf("engine: config: provider %q: unknown kind %q", p.Name, p.Kind)
		}
		if err := validateRateLimit(p.RateLimit); err != nil {
			return fmt.Errorf("engine: config: provider %q: %w", p.Name, err)
		}
		providerNames[p.Name] = struct{}{}
	}

	backendNames := make(map[string]struct{}, len(c.MemoryBackends))
	for _, b := range c.MemoryBackends {
		if b.Name == "" {
			return fmt.Errorf("engine: config: memory backend name is required")
		}
		if _, dup := backendNames[b.Name]; dup {
			return fmt.Errorf("engine: config: duplicate memory backend name %q", b.Name)
		}
		if _, clash := providerNames[b.Name]; clash {
			return fmt.Errorf("engine: config: memory backend %q shadows a provider", b.Name)
		}
		if !slices.Contains(local.EndpointTypes(), local.EndpointType(b.EndpointType)) {
			return fmt.Errorf("engine: config: memory backend %q: unknown endpoint type %q", b.Name, b.EndpointType)
		}
		backendNames[b.Name] = struct{}{}
	}

	if err := c.validateLLM("llm", c.LLM, providerNames); err != nil {
		return err
	}

	switch c.Cache.Kind {
	case "", CacheSQLite, CacheNone:
	case CacheRedis:
		if c.Cache.Redis.Addr == "" {
			return fmt.Errorf("engine: config: cache: redis addr is required")
		}
	default:
		return fmt.Errorf("engine: config: cache: unknown kind %q", c.Cache.Kind)
	}

	mcpNames := make(map[string]struct{}, len(c.MCPServers))
	for _, m := range c.MCPServers {
		if m.Name == "" {
			return fmt.Errorf("engine: config: mcp server name is required")
		}
		if m.Command == "" && m.URL == "" {
			return fmt.Errorf("engine: config: mcp server %q: command or url is required", m.Name)
		}
		if _, dup := mcpNames[m.Name]; dup || m.Name == ToolboxAsk {
			return fmt.Errorf("engine: config: duplicate mcp server name %q", m.Name)
		}
		mcpNames[m.Name] = struct{}{}
	}

	if len(c.Agents) == 0 {
		return fmt.Errorf("engine: config: at least one agent is required")
	}

	agentNames := make(map[string]struct{}, len(c.Agents))
	for _, a := range c.Agents {
		if a.Name == "" {
			return fmt.Errorf("engine: config: agent name is required")
		}
		if _, dup := agentNames[a.Name]; dup {
			return fmt.Errorf("engine: config: duplicate agent name %q", a.Name)
		}
		agentNames[a.Name] = struct{}{}

		if err := c.validateAgent(a, providerNames, backendNames, mcpNames); err != nil {
			return err
		}
	}

	for _, a := range c.Agents {
		if a.Memory == nil || a.Memory.Replaces == "" {
			continue
		}
		if _, ok := agentNames[a.Memory.Replaces]; !ok {
			return fmt.Errorf("engine: config: agent %q: replaces unknown agent %q", a.Name, a.Memory.Replaces)
		}
	}

	if _, err := parseSummaryMethod(c.SummaryMethod); err != nil {
		return err
	}
	if c.MaxTurns < 0 {
		return fmt.Errorf("engine: config: max_turns must not be negative")
	}

	if c.Initiator == "" {
		return fmt.Errorf("engine: config: initiator is required")
	}
	if _, ok := agentNames[c.Initiator]; !ok {
		return fmt.Errorf("engine: config: initiator %q not found in agents", c.Initiator)
	}

	if c.GroupChat != nil {
		return c.validateGroupChat(agentNames, providerNames)
	}

	if c.Recipient == "" {
		return fmt.Errorf("engine: config: recipient is required without a group chat")
	}
	if _, ok := agentNames[c.Recipient]; !ok {
		return fmt.Errorf("engine: config: recipient %q not found in agents", c.Recipient)
	}
	if c.Resolve(c.Recipient) == c.Resolve(c.Initiator) {
		return fmt.Errorf("engine: config: initiator and recipient must differ")
	}

	return nil
}

func (c Config) validateAgent(a AgentConfig, providers, backends, mcps map[string]struct{}) error {
	switch a.Kind {
	case "", KindAssistant, KindUserProxy:
		if a.Memory != nil {
			return fmt.Errorf("engine: config: agent %q: memory needs kind %q", a.Name, KindMemGPT)
		}
	case KindMemGPT:
		if a.Memory == nil {
			return fmt.Errorf("engine: config: agent %q: memory settings are required", a.Name)
		}
		backend := a.Memory.Backend
		if backend == "" && len(c.MemoryBackends) == 0 {
			return fmt.Errorf("engine: config: agent %q: no memory backend configured", a.Name)
		}
		_, isBackend := backends[backend]
		_, isProvider := providers[backend]
		if backend != "" && !isBackend && !isProvider {
			return fmt.Errorf("engine: config: agent %q: unknown memory backend %q", a.Name, backend)
		}
		if a.Memory.Preset != "" {
			if _, err := memagent.Preset(a.Memory.Preset); err != nil {
				return fmt.Errorf("engine: config: agent %q: %w", a.Name, err)
			}
		}
		if a.Memory.Replaces == a.Name {
			return fmt.Errorf("engine: config: agent %q: cannot replace itself", a.Name)
		}
	default:
		return fmt.Errorf("engine: config: agent %q: unknown kind %q", a.Name, a.Kind)
	}

	if a.HumanInputMode != "" {
		if _, err := agent.ParseHumanInputMode(a.HumanInputMode); err != nil {
			return fmt.Errorf("engine: config: agent %q: %w", a.Name, err)
		}
	}
	if a.MaxConsecutiveAutoReply < 0 {
		return fmt.Errorf("engine: config: agent %q: max_consecutive_auto_reply must not be negative", a.Name)
	}

	for _, tb := range a.Toolboxes {
		if tb == ToolboxAsk {
			continue
		}
		if _, ok := mcps[tb]; !ok {
			return fmt.Errorf("engine: config: agent %q: unknown toolbox %q", a.Name, tb)
		}
	}

	return c.validateLLM("agent "+a.Name, c.LLM.Merge(a.LLM), providers)
}

func (c Config) validateLLM(where string, l LLMConfig, providers map[string]struct{}) error {
	for _, name := range l.Providers {
		if _, ok := providers[name]; !ok {
			return fmt.Errorf("engine: config: %s: unknown provider %q", where, name)
		}
	}
	if l.Timeout != "" {
		if _, err := time.ParseDuration(l.Timeout); err != nil {
			return fmt.Errorf("engine: config: %s: invalid timeout %q: %w", where, l.Timeout, err)
		}
	}
	return nil
}

func (c Config) validateGroupChat(agents, providers map[string]struct{}) error {
	gc := c.GroupChat
	if len(gc.Agents) == 0 {
		return fmt.Errorf("engine: config: group_chat: at least one agent is required")
	}

	seats := make(map[string]struct{}, len(gc.Agents))
	for _, name := range gc.Agents {
		if _, ok := agents[name]; !ok {
			return fmt.Errorf("engine: config: group_chat: unknown agent %q", name)
		}
		seat := c.Resolve(name)
		if _, dup := seats[seat]; dup {
			return fmt.Errorf("engine: config: group_chat: agent %q listed twice", seat)
		}
		seats[seat] = struct{}{}
	}

	if _, ok := seats[c.Resolve(c.Initiator)]; !ok {
		return fmt.Errorf("engine: config: initiator %q is not in the group chat", c.Initiator)
	}
	if gc.MaxRound < 0 {
		return fmt.Errorf("engine: config: group_chat: max_round must not be negative")
	}
	if _, err := groupchat.ParseSpeakerSelection(gc.SpeakerSelection); err != nil {
		return fmt.Errorf("engine: config: %w", err)
	}
	if _, clash := agents[gc.Manager.Name]; clash {
		return fmt.Errorf("engine: config: group_chat: manager name %q is taken by an agent", gc.Manager.Name)
	}

	return c.validateLLM("group_chat manager", c.LLM.Merge(gc.Manager.LLM), providers)
}

func validateRateLimit(rl RateLimitConfig) error {
	if rl.BaseDelay == "" {
		return nil
	}
	if _, err := time.ParseDuration(rl.BaseDelay); err != nil {
		return fmt.Errorf("invalid base_delay %q: %w", rl.BaseDelay, err)
	}
	return nil
}

func parseSummaryMethod(s string) (agent.SummaryMethod, error) {
	switch m := agent.SummaryMethod(s); m {
	case "":
		return agent.SummaryLast, nil
	case agent.SummaryLast, agent.SummaryReflection:
		return m, nil
	default:
		return "", fmt.Errorf("engine: config: unknown summary_method %q", s)
	}
}
