package llm

import (
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/comigor/joker/internal/config"
	"github.com/sashabaranov/go-openai"
)

// Environment variables consulted for implicit credential resolution.
const (
	EnvAPIKey = "OPENAI_API_KEY"
	EnvModel  = "OPENAI_CHAT_MODEL_ID"
	EnvOrgID  = "OPENAI_ORG_ID"
)

// DefaultBaseURL is the hosted OpenAI API endpoint.
const DefaultBaseURL = "https://api.openai.com/v1"

// Transport is an OpenAI chat client that owns its connection pool.
type Transport struct {
	*openai.Client

	pool      *http.Transport
	closeOnce sync.Once
}

// ResolveCredential fills empty credential fields from the process environment.
// Only the hosted provider resolves implicitly; an explicit endpoint must carry
// its own model and key.
func ResolveCredential(cfg config.LLMConfig) config.LLMConfig {
	if !cfg.Hosted() {
		return cfg
	}
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv(EnvAPIKey)
	}
	if cfg.Model == "" {
		cfg.Model = os.Getenv(EnvModel)
	}
	if cfg.OrgID == "" {
		cfg.OrgID = os.Getenv(EnvOrgID)
	}
	return cfg
}

// NewClient creates a new OpenAI client
func NewClient(cfg config.LLMConfig) *Transport {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTimeout
	}

	pool := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          4,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: time.Second,
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if !cfg.Hosted() {
		clientCfg.BaseURL = cfg.BaseURL
	}
	clientCfg.OrgID = cfg.OrgID
	clientCfg.HTTPClient = &http.Client{Transport: pool, Timeout: timeout}

	return &Transport{
		Client: openai.NewClientWithConfig(clientCfg),
		pool:   pool,
	}
}

// Close drops every pooled connection. It is safe to call more than once.
func (t *Transport) Close() error {
	t.closeOnce.Do(t.pool.CloseIdleConnections)
	return nil
}
