package personalize

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"

	"github.com/eventpulse/engage/internal/domain"
)

// BedrockClient implements both Personalizer and Scorer against Anthropic
// models on AWS Bedrock. All data stays within AWS.
type BedrockClient struct {
	client  *bedrockruntime.Client
	modelID string
}

// bedrockMessage is a message in the Anthropic messages format.
type bedrockMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// bedrockRequest is the InvokeModel payload for Anthropic models.
type bedrockRequest struct {
	AnthropicVersion string           `json:"anthropic_version"`
	MaxTokens        int              `json:"max_tokens"`
	System           string           `json:"system,omitempty"`
	Messages         []bedrockMessage `json:"messages"`
	Temperature      float64          `json:"temperature,omitempty"`
}

// bedrockResponse is the InvokeModel response body.
type bedrockResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// NewBedrockClient creates a Bedrock-backed personalization client.
func NewBedrockClient(ctx context.Context, region, modelID string) (*BedrockClient, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	if modelID == "" {
		modelID = "anthropic.claude-3-haiku-20240307-v1:0"
	}
	return &BedrockClient{
		client:  bedrockruntime.NewFromConfig(cfg),
		modelID: modelID,
	}, nil
}

const personalizeSystem = `You personalize event emails. Given an attendee profile,
optional event details, and a rendered subject and body, return ONLY a JSON object:
{"subject": "...", "body": "...", "recommendations": ["..."]}.
Keep the structure and links of the original body. Do not invent facts.`

// Personalize asks the model for an enhanced subject/body for one attendee.
func (b *BedrockClient) Personalize(ctx context.Context, a *domain.Attendee, e *domain.Event, subject, body string) (*Content, error) {
	prompt := map[string]interface{}{
		"attendee": map[string]interface{}{
			"name":             a.Name,
			"company":          a.Company,
			"job_title":        a.JobTitle,
			"interests":        a.Interests,
			"engagement_score": a.EngagementScore,
		},
		"subject": subject,
		"body":    body,
	}
	if e != nil {
		prompt["event"] = map[string]interface{}{
			"title":       e.Title,
			"description": e.Description,
			"location":    e.Location,
			"start_time":  e.StartTime,
		}
	}
	promptJSON, err := json.Marshal(prompt)
	if err != nil {
		return nil, err
	}

	text, err := b.invoke(ctx, personalizeSystem, string(promptJSON), 1024, 0.7)
	if err != nil {
		return nil, err
	}

	var content Content
	if err := json.Unmarshal([]byte(extractJSON(text)), &content); err != nil {
		return nil, fmt.Errorf("parsing personalization response: %w", err)
	}
	if content.Subject == "" || content.Body == "" {
		return nil, fmt.Errorf("personalization response missing subject or body")
	}
	return &content, nil
}

const scoreSystem = `You score event attendee engagement. Given a profile and
30-day activity counts, return ONLY a JSON object {"score": N} where N is an
integer from 0 to 100.`

// Score asks the model for an engagement score. The result is clamped to
// [0, 100] regardless of what the model returns.
func (b *BedrockClient) Score(ctx context.Context, a *domain.Attendee, counts domain.ActivityCounts) (int, error) {
	prompt, err := json.Marshal(map[string]interface{}{
		"profile": map[string]interface{}{
			"company":       a.Company,
			"job_title":     a.JobTitle,
			"interests":     a.Interests,
			"current_score": a.EngagementScore,
		},
		"activity": counts,
	})
	if err != nil {
		return 0, err
	}

	text, err := b.invoke(ctx, scoreSystem, string(prompt), 64, 0)
	if err != nil {
		return 0, err
	}

	var result struct {
		Score int `json:"score"`
	}
	if err := json.Unmarshal([]byte(extractJSON(text)), &result); err != nil {
		return 0, fmt.Errorf("parsing score response: %w", err)
	}
	return domain.ClampScore(result.Score), nil
}

func (b *BedrockClient) invoke(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error) {
	reqBody, err := json.Marshal(bedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		System:           system,
		Messages:         []bedrockMessage{{Role: "user", Content: user}},
		Temperature:      temperature,
	})
	if err != nil {
		return "", err
	}

	output, err := b.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(b.modelID),
		ContentType: aws.String("application/json"),
		Body:        reqBody,
	})
	if err != nil {
		return "", fmt.Errorf("invoking model %s: %w", b.modelID, err)
	}

	var resp bedrockResponse
	if err := json.Unmarshal(output.Body, &resp); err != nil {
		return "", fmt.Errorf("parsing model response: %w", err)
	}
	if len(resp.Content) == 0 {
		return "", fmt.Errorf("empty model response")
	}
	return resp.Content[0].Text, nil
}

// extractJSON trims any prose the model wrapped around the JSON object.
func extractJSON(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return text[start : end+1]
	}
	return text
}
