package settings

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/huandu/go-clone"
	"github.com/spf13/viper"
)

type Provider string

const (
	ProviderClaude Provider = "claude"
	ProviderOpenAI Provider = "openai"
	ProviderOllama Provider = "ollama"
)

var defaultModels = map[Provider]string{
	ProviderClaude: "claude-sonnet-4-20250514",
	ProviderOpenAI: "gpt-4o",
	ProviderOllama: "llama3.1",
}

const (
	DefaultMaxTokens     = 4096
	DefaultClientTimeout = 120 * time.Second
)

// Settings configures the model backends. Keys and base URLs are indexed
// by "<provider>-api-key" and "<provider>-base-url", the same names as the
// configuration keys.
type Settings struct {
	Model       string            `yaml:"model,omitempty"`
	MaxTokens   int               `yaml:"max_tokens,omitempty"`
	Temperature *float64          `yaml:"temperature,omitempty"`
	APIKeys     map[string]string `yaml:"api_keys,omitempty"`
	BaseURLs    map[string]string `yaml:"base_urls,omitempty"`
	OllamaHost  string            `yaml:"ollama_host,omitempty"`
	// Timeout bounds connecting and waiting for the response headers. The
	// body of a streamed answer is only bounded by the request context.
	Timeout time.Duration `yaml:"timeout,omitempty"`
	// TokenBudget bounds the estimated prompt size; 0 disables the check.
	TokenBudget int          `yaml:"token_budget,omitempty"`
	HTTPClient  *http.Client `yaml:"-" json:"-"`
}

func NewSettings() *Settings {
	return &Settings{
		MaxTokens: DefaultMaxTokens,
		APIKeys:   map[string]string{},
		BaseURLs:  map[string]string{},
		Timeout:   DefaultClientTimeout,
	}
}

// FromViper reads the backend settings from the process configuration.
func FromViper(v *viper.Viper) *Settings {
	s := NewSettings()
	s.Model = v.GetString("model")
	if n := v.GetInt("max-tokens"); n > 0 {
		s.MaxTokens = n
	}
	if v.IsSet("temperature") {
		t := v.GetFloat64("temperature")
		s.Temperature = &t
	}
	for _, p := range []Provider{ProviderClaude, ProviderOpenAI} {
		if key := strings.TrimSpace(v.GetString(APIKeyName(p))); key != "" {
			s.APIKeys[APIKeyName(p)] = key
		}
		if u := strings.TrimSpace(v.GetString(BaseURLName(p))); u != "" {
			s.BaseURLs[BaseURLName(p)] = u
		}
	}
	s.OllamaHost = strings.TrimSpace(v.GetString("ollama-host"))
	if d := v.GetDuration("client-timeout"); d > 0 {
		s.Timeout = d
	}
	s.TokenBudget = v.GetInt("context-token-budget")
	return s
}

// Clone deep copies the settings. The HTTP client is shared.
func (s *Settings) Clone() *Settings {
	httpClient := s.HTTPClient
	tmp := *s
	tmp.HTTPClient = nil
	ret := clone.Clone(&tmp).(*Settings)
	ret.HTTPClient = httpClient
	return ret
}

func APIKeyName(p Provider) string {
	return string(p) + "-api-key"
}

func BaseURLName(p Provider) string {
	return string(p) + "-base-url"
}

func (s *Settings) APIKey(p Provider) string {
	return s.APIKeys[APIKeyName(p)]
}

func (s *Settings) BaseURL(p Provider) string {
	return s.BaseURLs[BaseURLName(p)]
}

// ModelFor returns the configured model, or the provider's default.
func (s *Settings) ModelFor(p Provider) string {
	if s.Model != "" {
		return s.Model
	}
	return defaultModels[p]
}

// Client returns the configured HTTP client or a new one whose transport
// applies the configured timeout to the response headers only.
func (s *Settings) Client() *http.Client {
	if s.HTTPClient != nil {
		return s.HTTPClient
	}
	return &http.Client{Transport: newTransport(s.Timeout)}
}

func newTransport(headerTimeout time.Duration) *http.Transport {
	dialTimeout := 30 * time.Second
	if headerTimeout > 0 && headerTimeout < dialTimeout {
		dialTimeout = headerTimeout
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   dialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: headerTimeout,
		ExpectContinueTimeout: time.Second,
	}
}
