package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"vietnam-stock-trader/models"
	"vietnam-stock-trader/observability"
)

// SentimentService classifies Vietnamese financial headlines with a Claude
// model on AWS Bedrock. The classifier output is a single score in [-1, 1].
type SentimentService struct {
	client *bedrockruntime.Client
	model  string
}

// claudeRequest is the request format for Claude models via Bedrock.
type claudeRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	System           string          `json:"system,omitempty"`
	Messages         []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// claudeResponse is the response from Claude models.
type claudeResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// sentimentResult is the structured classifier output.
type sentimentResult struct {
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

const sentimentSystemPrompt = `You are a financial news sentiment classifier for the Vietnamese stock market.
Given news headlines about one listed company, respond with a JSON object:
{"score": <number in [-1, 1]>, "rationale": "<one sentence>"}
where -1 is maximally bearish, 0 is neutral, and 1 is maximally bullish.
Respond with the JSON object only, no other text.`

// NewSentimentService creates a Bedrock-backed sentiment classifier.
func NewSentimentService(ctx context.Context, region, modelID string) (*SentimentService, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS SDK config: %w", err)
	}

	return &SentimentService{
		client: bedrockruntime.NewFromConfig(cfg),
		model:  modelID,
	}, nil
}

// Classify scores the sentiment of headlines about symbol. With no headlines
// there is nothing to classify and the result is nil, keeping the downstream
// signal technical-only.
func (s *SentimentService) Classify(ctx context.Context, symbol string, headlines []string) (*float64, error) {
	if len(headlines) == 0 {
		return nil, nil
	}

	metrics := observability.GetMetrics()
	metrics.RecordExternalAPIRequest("bedrock", "classify")
	timer := metrics.NewTimer()
	defer timer.ObserveExternalAPI("bedrock", "classify")

	var sb strings.Builder
	fmt.Fprintf(&sb, "Company: %s\nHeadlines:\n", symbol)
	for _, h := range headlines {
		fmt.Fprintf(&sb, "- %s\n", h)
	}

	result, err := WithCircuitBreaker(ctx, BreakerBedrock, func() (*sentimentResult, error) {
		return s.invoke(ctx, sb.String())
	})
	if err != nil {
		metrics.RecordExternalAPIError("bedrock", "classify", "transient")
		return nil, models.TransientError(fmt.Errorf("sentiment classification for %s: %w", symbol, err))
	}

	score := result.Score
	if score > 1 {
		score = 1
	} else if score < -1 {
		score = -1
	}

	observability.WithSymbol(symbol).Debug("sentiment classified",
		"score", score,
		"headlines", len(headlines),
		"rationale", result.Rationale)
	return &score, nil
}

func (s *SentimentService) invoke(ctx context.Context, userPrompt string) (*sentimentResult, error) {
	request := claudeRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        256,
		System:           sentimentSystemPrompt,
		Messages: []claudeMessage{
			{Role: "user", Content: userPrompt},
		},
	}

	reqBody, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	output, err := s.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(s.model),
		Body:        reqBody,
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to invoke model: %w", err)
	}

	var response claudeResponse
	if err := json.Unmarshal(output.Body, &response); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if len(response.Content) == 0 {
		return nil, fmt.Errorf("empty response from model")
	}

	var result sentimentResult
	text := strings.TrimSpace(response.Content[0].Text)
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("failed to parse classifier output %q: %w", text, err)
	}
	return &result, nil
}
