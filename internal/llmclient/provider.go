package llmclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"net/http"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/secretaria-app/secretaria/internal/llmclient/httpclient"
	"github.com/secretaria-app/secretaria/internal/obs"
)

// userAgent identifies the backend to upstream providers.
const userAgent = "secretaria/1.0"

// maxEventLine bounds a single upstream "data:" line.
const maxEventLine = 2 << 20

// Provider streams chat completions from an OpenAI-compatible endpoint.
// The primary and the search-augmented providers are both instances of it.
type Provider struct {
	cfg    ProviderConfig
	client *http.Client
}

// NewProvider creates a provider adapter from its configuration
func NewProvider(cfg ProviderConfig) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.KeyOwner == "" {
		cfg.KeyOwner = cfg.DisplayName
	}
	cfg.APIBase = strings.TrimRight(cfg.APIBase, "/")
	return &Provider{
		cfg: cfg,
		client: httpclient.New(httpclient.Options{
			ProxyURL: cfg.ProxyURL,
			Timeout:  cfg.Timeout,
			Hooks: []httpclient.HookFunc{
				httpclient.BearerAuth(cfg.APIKey),
				httpclient.UserAgent(userAgent),
			},
		}),
	}
}

// Name returns the provider identifier
func (p *Provider) Name() string { return p.cfg.Name }

// Model returns the default model; it is also the label stored with replies.
func (p *Provider) Model() string { return p.cfg.Model }

// SystemPrompt returns the provider's own system prompt
func (p *Provider) SystemPrompt() string { return p.cfg.SystemPrompt }

// Configured reports whether an API key is present
func (p *Provider) Configured() bool { return p.cfg.APIKey != "" }

// Stream opens one streaming completion and yields content deltas in arrival
// order. It never fails: problems are reported as a single error text chunk
// after which the sequence ends. Stopping the iteration closes the upstream
// connection.
func (p *Provider) Stream(ctx context.Context, messages []Message, model string) iter.Seq[string] {
	return func(yield func(string) bool) {
		if !p.Configured() {
			obs.UpstreamErrors.WithLabelValues(p.cfg.Name, "unconfigured").Inc()
			yield(fmt.Sprintf("Error: No se ha configurado %s. Configura tu API key de %s.", p.cfg.KeyName, p.cfg.KeyOwner))
			return
		}
		if model == "" {
			model = p.cfg.Model
		}

		req, err := p.newRequest(ctx, messages, model)
		if err != nil {
			logrus.Errorf("%s: failed to build request: %v", p.cfg.Name, err)
			yield(p.transportError(err))
			return
		}

		resp, err := p.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				logrus.Debugf("%s: request canceled before response: %v", p.cfg.Name, err)
				return
			}
			obs.UpstreamErrors.WithLabelValues(p.cfg.Name, "transport").Inc()
			logrus.Warnf("%s: request failed: %v", p.cfg.Name, err)
			yield(p.transportError(err))
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
			body, _ := io.ReadAll(resp.Body)
			obs.UpstreamErrors.WithLabelValues(p.cfg.Name, "status").Inc()
			logrus.WithFields(logrus.Fields{
				"provider": p.cfg.Name,
				"status":   resp.StatusCode,
			}).Warn("upstream returned an error status")
			yield(fmt.Sprintf("Error de %s (%d): %s", p.cfg.DisplayName, resp.StatusCode, errorDetail(body)))
			return
		}

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), maxEventLine)
		for scanner.Scan() {
			data, ok := eventData(scanner.Text())
			if !ok {
				continue
			}
			chunk := DecodeChunk([]byte(data))
			switch chunk.Kind {
			case ChunkDone:
				return
			case ChunkContent:
				if !yield(chunk.Text) {
					return
				}
			}
		}

		if err := scanner.Err(); err != nil && ctx.Err() == nil {
			obs.UpstreamErrors.WithLabelValues(p.cfg.Name, "stream").Inc()
			logrus.Warnf("%s: stream interrupted: %v", p.cfg.Name, err)
			yield(p.transportError(err))
		}
	}
}

// eventData returns the payload of a "data:" line. Every data line is one
// event; comments, event names and blank separators are skipped.
func eventData(line string) (string, bool) {
	line = strings.TrimRight(line, "\r")
	if !strings.HasPrefix(line, "data:") {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(line, "data:")), true
}

func (p *Provider) newRequest(ctx context.Context, messages []Message, model string) (*http.Request, error) {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(model),
		Messages: toMessageParams(messages),
	}
	body, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	body, err = sjson.SetBytes(body, "stream", true)
	if err != nil {
		return nil, fmt.Errorf("failed to enable streaming: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.APIBase+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	return req, nil
}

func (p *Provider) transportError(err error) string {
	return fmt.Sprintf("Error de %s: %v", p.cfg.DisplayName, err)
}

func toMessageParams(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// errorDetail prefers the provider's error.message and falls back to the raw body.
func errorDetail(body []byte) string {
	if msg := gjson.GetBytes(body, "error.message"); msg.Type == gjson.String && gjson.ValidBytes(body) {
		return msg.Str
	}
	return strings.TrimSpace(string(body))
}
