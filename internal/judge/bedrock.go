package judge

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
)

// BedrockConfig holds parameters for an AWS Bedrock judgment backend.
// AccessKey/SecretKey are optional; when empty the default credential
// chain applies.
type BedrockConfig struct {
	Region    string
	Model     string
	MaxTokens int
	AccessKey string
	SecretKey string
}

// Bedrock is a Judge backed by Anthropic models on AWS Bedrock.
type Bedrock struct {
	cfg    BedrockConfig
	client *bedrockruntime.Client
}

// NewBedrock builds the SDK client and returns a Bedrock judge.
func NewBedrock(ctx context.Context, cfg BedrockConfig) (*Bedrock, error) {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 600
	}
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("bedrock config: %w", err)
	}
	return &Bedrock{cfg: cfg, client: bedrockruntime.NewFromConfig(awsCfg)}, nil
}

// anthropicRequest is the Bedrock messages-API payload.
type anthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	System           string             `json:"system"`
	Messages         []anthropicMessage `json:"messages"`
	Temperature      float64            `json:"temperature"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// JudgeAndAct invokes the model and parses its judgment. Invocation
// failures wrap ErrUnavailable.
func (b *Bedrock) JudgeAndAct(ctx context.Context, in Input) (Judgment, error) {
	payload, _ := json.Marshal(anthropicRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        b.cfg.MaxTokens,
		System:           BuildSystemPrompt(in),
		Messages: []anthropicMessage{
			{Role: "user", Content: BuildUserMessage(in)},
		},
		Temperature: 0,
	})

	out, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.cfg.Model),
		ContentType: aws.String("application/json"),
		Body:        payload,
	})
	if err != nil {
		return Judgment{}, fmt.Errorf("bedrock invoke: %w: %v", ErrUnavailable, err)
	}

	var resp anthropicResponse
	if err := json.Unmarshal(out.Body, &resp); err != nil || len(resp.Content) == 0 {
		return Judgment{}, fmt.Errorf("empty bedrock response: %w", ErrUnavailable)
	}
	return Parse(resp.Content[0].Text)
}
