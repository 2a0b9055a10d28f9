package executor

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/anclora/orchestrator/internal/config"
	"github.com/anclora/orchestrator/internal/netstate"
	"github.com/anclora/orchestrator/internal/provider"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Policy holds the cloud usage switches. It is safe to update at runtime.
type Policy struct {
	allowText atomic.Bool
}

// NewPolicy creates a policy from configuration.
func NewPolicy(cfg config.PoliciesConfig) *Policy {
	p := &Policy{}
	p.Update(cfg)
	return p
}

// Update replaces the switches.
func (p *Policy) Update(cfg config.PoliciesConfig) {
	p.allowText.Store(cfg.AllowCloudText)
}

// AllowCloudText reports whether cloud text providers may be used.
func (p *Policy) AllowCloudText() bool {
	return p != nil && p.allowText.Load()
}

// ConditionEnv is the environment available to available-when expressions.
type ConditionEnv struct {
	Online   bool   `expr:"online"`
	Hour     int    `expr:"hour"`
	Weekday  string `expr:"weekday"`
	Provider string `expr:"provider"`
	Model    string `expr:"model"`
}

// ConditionEvaluator compiles and runs availability expressions.
type ConditionEvaluator struct {
	mu       sync.Mutex
	programs map[string]*vm.Program
}

// NewConditionEvaluator creates an evaluator with an empty program cache.
func NewConditionEvaluator() *ConditionEvaluator {
	return &ConditionEvaluator{programs: make(map[string]*vm.Program)}
}

// Compile validates condition and caches its program.
func (e *ConditionEvaluator) Compile(condition string) error {
	_, err := e.program(condition)
	return err
}

// Evaluate runs condition against env. Empty conditions are true.
func (e *ConditionEvaluator) Evaluate(condition string, env ConditionEnv) (bool, error) {
	if strings.TrimSpace(condition) == "" {
		return true, nil
	}
	program, err := e.program(condition)
	if err != nil {
		return false, err
	}
	output, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("failed to run condition '%s': %w", condition, err)
	}
	result, ok := output.(bool)
	if !ok {
		return false, fmt.Errorf("condition '%s' did not return a boolean", condition)
	}
	return result, nil
}

func (e *ConditionEvaluator) program(condition string) (*vm.Program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if p, ok := e.programs[condition]; ok {
		return p, nil
	}
	p, err := expr.Compile(condition, expr.Env(ConditionEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("failed to compile condition '%s': %w", condition, err)
	}
	e.programs[condition] = p
	return p, nil
}

// CloudText is an OpenAI-compatible chat completions provider.
type CloudText struct {
	cfg       config.CloudProviderConfig
	client    *http.Client
	policy    *Policy
	network   netstate.State
	evaluator *ConditionEvaluator
	now       func() time.Time
}

// NewCloudText creates a cloud provider. The available-when expression is
// compiled up front so configuration errors surface at startup.
func NewCloudText(cfg config.CloudProviderConfig, client *http.Client, policy *Policy, network netstate.State, evaluator *ConditionEvaluator) (*CloudText, error) {
	if client == nil {
		client = http.DefaultClient
	}
	if evaluator == nil {
		evaluator = NewConditionEvaluator()
	}
	if strings.TrimSpace(cfg.AvailableWhen) != "" {
		if err := evaluator.Compile(cfg.AvailableWhen); err != nil {
			return nil, fmt.Errorf("cloud provider %s: %w", cfg.ID, err)
		}
	}
	return &CloudText{
		cfg:       cfg,
		client:    client,
		policy:    policy,
		network:   network,
		evaluator: evaluator,
		now:       time.Now,
	}, nil
}

// Available reports whether the provider may be attempted right now.
func (c *CloudText) Available(context.Context) (bool, error) {
	if c.cfg.BaseURL == "" || c.cfg.APIKey == "" || !c.policy.AllowCloudText() {
		return false, nil
	}
	now := c.now()
	online := c.network == nil || c.network.Online()
	return c.evaluator.Evaluate(c.cfg.AvailableWhen, ConditionEnv{
		Online:   online,
		Hour:     now.Hour(),
		Weekday:  strings.ToLower(now.Weekday().String()),
		Provider: c.cfg.ID,
		Model:    c.cfg.Model,
	})
}

// Invoke sends the prompt as a single user message.
func (c *CloudText) Invoke(ctx context.Context, req provider.TextRequest) (string, error) {
	temp := DefaultTemperature
	if req.Temperature != nil {
		temp = *req.Temperature
	}
	body := []byte(`{"stream":false}`)
	body, _ = sjson.SetBytes(body, "model", c.cfg.Model)
	body, _ = sjson.SetBytes(body, "messages.0.role", "user")
	body, _ = sjson.SetBytes(body, "messages.0.content", req.Prompt)
	body, _ = sjson.SetBytes(body, "temperature", temp)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + "/chat/completions"

	data, _, err := post(ctx, c.client, c.label(), url, "application/json", body, header)
	if err != nil {
		return "", err
	}
	content := gjson.GetBytes(data, "choices.0.message.content")
	if !content.Exists() {
		return "", fmt.Errorf("%s: response has no completion content", c.cfg.ID)
	}
	return content.String(), nil
}

func (c *CloudText) label() string {
	if c.cfg.Label != "" {
		return c.cfg.Label
	}
	return c.cfg.ID
}

// Provider adapts c for registration.
func (c *CloudText) Provider() (provider.Provider[provider.TextRequest, string], error) {
	tier, err := provider.ParseTier(c.cfg.Tier)
	if err != nil {
		return provider.Provider[provider.TextRequest, string]{}, fmt.Errorf("cloud provider %s: %w", c.cfg.ID, err)
	}
	return provider.Provider[provider.TextRequest, string]{
		ID:        provider.ID(c.cfg.ID),
		Label:     c.label(),
		Tier:      tier,
		Available: c.Available,
		Invoke:    c.Invoke,
	}, nil
}
