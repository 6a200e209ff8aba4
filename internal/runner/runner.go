// Package runner binds a chat-completion backend to a fixed system
// instruction and executes single prompt/response exchanges.
//
// A Runner is acquired with New, used with Run and released with Close. Do
// wraps the three steps and guarantees the release on every exit path.
package runner

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qmuntal/stateless"
	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/comigor/joker/internal/config"
	"github.com/comigor/joker/internal/llm"
	"github.com/comigor/joker/internal/logger"
)

// DefaultModel is used against the hosted provider when no model is configured.
const DefaultModel = openai.GPT4oMini

const tracerName = "github.com/comigor/joker/internal/runner"

// Result is the textual completion of one run.
type Result struct {
	Text string
}

// Option customizes a Runner.
type Option func(*options)

type options struct {
	client    llm.Client
	tracer    trace.Tracer
	sensitive bool
}

// WithClient replaces the default OpenAI transport. If c also implements
// io.Closer it is closed when the runner shuts down.
func WithClient(c llm.Client) Option {
	return func(o *options) { o.client = c }
}

// WithTracer sets the tracer used for run spans. The global tracer provider
// is used otherwise, which is a no-op unless observability is initialized.
func WithTracer(t trace.Tracer) Option {
	return func(o *options) { o.tracer = t }
}

// WithSensitiveData records prompt, instructions and completion on run spans.
func WithSensitiveData(enabled bool) Option {
	return func(o *options) { o.sensitive = enabled }
}

// Runner executes one prompt/response exchange at a time against a
// chat-completion backend.
type Runner struct {
	llmCfg    config.LLMConfig
	agentCfg  config.AgentConfig
	client    llm.Client
	closer    io.Closer
	tracer    trace.Tracer
	sensitive bool
	fsm       *stateless.StateMachine
}

// New validates the configuration and binds it to a transport. Invalid
// configurations fail with *ConfigurationError before any client exists.
func New(llmCfg config.LLMConfig, agentCfg config.AgentConfig, opts ...Option) (*Runner, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	resolved, err := validate(llmCfg)
	if err != nil {
		return nil, err
	}

	r := &Runner{
		llmCfg:    resolved,
		agentCfg:  agentCfg,
		client:    o.client,
		tracer:    o.tracer,
		sensitive: o.sensitive,
	}
	if r.tracer == nil {
		r.tracer = otel.Tracer(tracerName)
	}
	r.fsm = newLifecycle(r.release)

	if r.client == nil {
		transport := llm.NewClient(resolved)
		r.client = transport
		r.closer = transport
	} else if c, ok := r.client.(io.Closer); ok {
		r.closer = c
	}

	if err := r.fsm.Fire(triggerInitialize); err != nil {
		return nil, fmt.Errorf("initialize runner: %w", err)
	}

	logger.L.Debug("runner ready", "agent", agentCfg.Name, "model", resolved.Model, "hosted", resolved.Hosted())
	return r, nil
}

func validate(cfg config.LLMConfig) (config.LLMConfig, error) {
	cfg = llm.ResolveCredential(cfg)

	if cfg.Hosted() {
		if strings.TrimSpace(cfg.APIKey) == "" {
			return cfg, &ConfigurationError{Field: "api_key", Reason: "no credential configured and " + llm.EnvAPIKey + " is unset"}
		}
		if strings.TrimSpace(cfg.Model) == "" {
			cfg.Model = DefaultModel
		}
		return cfg, nil
	}

	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return cfg, &ConfigurationError{Field: "base_url", Reason: fmt.Sprintf("%q is not an absolute http(s) URL", cfg.BaseURL)}
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return cfg, &ConfigurationError{Field: "model", Reason: "required when base_url is set"}
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return cfg, &ConfigurationError{Field: "api_key", Reason: "required when base_url is set; use a placeholder for servers without authentication"}
	}
	return cfg, nil
}

// State returns the current lifecycle state.
func (r *Runner) State() State {
	return r.fsm.MustState().(State)
}

// Run sends prompt with the configured instructions and waits for the complete
// response. Backend failures surface as *ProviderError, network failures and
// cancellation as *TransportError.
func (r *Runner) Run(ctx context.Context, prompt string) (Result, error) {
	if strings.TrimSpace(prompt) == "" {
		return Result{}, ErrEmptyPrompt
	}
	if err := r.fsm.FireCtx(ctx, triggerRun); err != nil {
		return Result{}, fmt.Errorf("%w: state %s", ErrNotReady, r.State())
	}

	runID := uuid.NewString()
	log := logger.L.With("run_id", runID, "agent", r.agentCfg.Name, "model", r.llmCfg.Model)

	ctx, span := r.tracer.Start(ctx, "chat "+r.llmCfg.Model,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("gen_ai.operation.name", "chat"),
			attribute.String("gen_ai.system", "openai"),
			attribute.String("gen_ai.request.model", r.llmCfg.Model),
			attribute.String("gen_ai.agent.name", r.agentCfg.Name),
			attribute.String("joker.run_id", runID),
		),
	)
	defer span.End()
	if r.sensitive {
		span.SetAttributes(
			attribute.String("gen_ai.system_instructions", r.agentCfg.Instructions),
			attribute.String("gen_ai.prompt", prompt),
		)
	}

	log.Debug("sending chat completion", "prompt_len", len(prompt))
	start := time.Now()

	resp, err := r.client.CreateChatCompletion(ctx, r.request(prompt))
	if err != nil {
		return Result{}, r.fail(ctx, span, log, classify(err))
	}

	text, ok := completionText(resp)
	if !ok {
		return Result{}, r.fail(ctx, span, log, &ProviderError{StatusCode: http.StatusOK, Message: "response contained no choices"})
	}

	span.SetAttributes(
		attribute.String("gen_ai.response.model", resp.Model),
		attribute.Int("gen_ai.usage.input_tokens", resp.Usage.PromptTokens),
		attribute.Int("gen_ai.usage.output_tokens", resp.Usage.CompletionTokens),
	)
	if r.sensitive {
		span.SetAttributes(attribute.String("gen_ai.completion", text))
	}
	if text == "" {
		log.Warn("backend returned an empty completion")
	}
	log.Info("chat completion received", "duration", time.Since(start), "tokens", resp.Usage.TotalTokens)

	if err := r.fsm.FireCtx(context.WithoutCancel(ctx), triggerCompleted); err != nil {
		log.Warn("FSM fire error", "error", err)
	}
	return Result{Text: text}, nil
}

func (r *Runner) fail(ctx context.Context, span trace.Span, log *slog.Logger, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	log.Error("chat completion failed", "error", err, "cancelled", isCancellation(err))
	if fireErr := r.fsm.FireCtx(context.WithoutCancel(ctx), triggerFailed); fireErr != nil {
		log.Error("FSM fire error", "error", fireErr)
	}
	return err
}

func (r *Runner) request(prompt string) openai.ChatCompletionRequest {
	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if r.agentCfg.Instructions != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: r.agentCfg.Instructions,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	return openai.ChatCompletionRequest{
		Model:    r.llmCfg.Model,
		Messages: messages,
	}
}

// completionText concatenates the text parts of the first choice.
func completionText(resp openai.ChatCompletionResponse) (string, bool) {
	if len(resp.Choices) == 0 {
		return "", false
	}
	msg := resp.Choices[0].Message
	if len(msg.MultiContent) == 0 {
		return msg.Content, true
	}
	var b strings.Builder
	b.WriteString(msg.Content)
	for _, part := range msg.MultiContent {
		if part.Type == openai.ChatMessagePartTypeText {
			b.WriteString(part.Text)
		}
	}
	return b.String(), true
}

// Close releases the transport. Repeated calls are no-ops.
func (r *Runner) Close() error {
	return r.fsm.Fire(triggerClose)
}

func (r *Runner) release() error {
	logger.L.Debug("releasing runner transport", "agent", r.agentCfg.Name)
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Do runs a single prompt on a freshly initialized runner and closes it on
// every exit path, including failures, cancellation and panics.
func Do(ctx context.Context, llmCfg config.LLMConfig, agentCfg config.AgentConfig, prompt string, opts ...Option) (res Result, err error) {
	r, err := New(llmCfg, agentCfg, opts...)
	if err != nil {
		return Result{}, err
	}
	defer func() {
		if cerr := r.Close(); cerr != nil {
			if err == nil {
				err = fmt.Errorf("close runner: %w", cerr)
				return
			}
			logger.L.Warn("runner close error after failure", "error", cerr)
		}
	}()

	return r.Run(ctx, prompt)
}
