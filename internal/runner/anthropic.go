package runner

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"

	"conductor/pkg/models"
)

// AnthropicConfig configures the Anthropic-backed runner.
type AnthropicConfig struct {
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY.
	APIKey string
	// Model is the default model when an agent carries no model hint.
	Model string
	// MaxTokens bounds each response. Defaults to 8192.
	MaxTokens int64
	// UseAWSBedrock routes requests through AWS Bedrock instead of the
	// direct API.
	UseAWSBedrock bool
	// AWSRegion is the Bedrock region (e.g. "us-west-2").
	AWSRegion string
	// AWSProfile is the optional AWS profile name.
	AWSProfile string
}

// AnthropicRunner invokes agents through the Anthropic Messages API.
type AnthropicRunner struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropicRunner creates an Anthropic-backed Runner.
func NewAnthropicRunner(cfg AnthropicConfig) (*AnthropicRunner, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		ctx := context.Background()

		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}

		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY environment variable is not set")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}

	model := anthropic.Model(cfg.Model)
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}

	return &AnthropicRunner{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: maxTokens,
	}, nil
}

// Invoke runs one agent turn against the Messages API.
func (r *AnthropicRunner) Invoke(ctx context.Context, def models.AgentDef, prompt string, session Session) (*Result, error) {
	model := r.model
	if def.Model != "" {
		model = anthropic.Model(def.Model)
	}

	system := def.Prompt
	if system == "" {
		system = fmt.Sprintf("You are the %s agent in a software-change workflow.", def.Name)
	}
	if session.Transcript != "" {
		system = fmt.Sprintf("%s\n\n## Conversation so far\n%s", system, session.Transcript)
	}

	start := time.Now()
	resp, err := r.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: r.maxTokens,
		System: []anthropic.TextBlockParam{
			{Text: system},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, classifyError(err)
	}

	var content string
	for _, block := range resp.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			content += text.Text
		}
	}

	usage := Usage{
		InputTokens:  resp.Usage.InputTokens,
		OutputTokens: resp.Usage.OutputTokens,
		Cost:         estimateCost(resp.Usage.InputTokens, resp.Usage.OutputTokens),
		Duration:     time.Since(start),
	}

	return &Result{Content: content, Usage: usage}, nil
}

// classifyError maps SDK and context errors onto the invocation taxonomy.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apierr *anthropic.Error
	if errors.As(err, &apierr) {
		switch apierr.StatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %v", ErrRateLimited, err)
		case http.StatusUnauthorized, http.StatusForbidden:
			return fmt.Errorf("%w: %v", ErrUnauthorized, err)
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		if apierr.StatusCode >= 400 && apierr.StatusCode < 500 {
			return fmt.Errorf("%w: %v", ErrUnrecoverable, err)
		}
	}

	// Server errors and transport failures are treated as transient.
	return err
}

// estimateCost approximates USD cost at Sonnet pricing:
// $3/1M input tokens, $15/1M output tokens.
func estimateCost(input, output int64) float64 {
	return float64(input)/1_000_000*3.0 + float64(output)/1_000_000*15.0
}
