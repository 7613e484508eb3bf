package sentiment

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"cryptoagents-go/internal/signal"
)

const systemPrompt = "You are an expert financial sentiment analyst. Analyse cryptocurrency news " +
	"headlines and summaries. Always respond with valid JSON using the schema " +
	"{label: string, score: float, reasoning: string}. Valid labels are " +
	`"positive", "negative", and "neutral". Scores must be within [-1, 1] and ` +
	"reflect sentiment strength."

const missingReasoning = "Reasoning not provided by model."

// OpenAIConfig configures the chat-completions scorer.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// OpenAI scores articles through an OpenAI-compatible chat completions endpoint.
type OpenAI struct {
	cfg    OpenAIConfig
	client *resty.Client
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string            `json:"model"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format"`
	Messages       []chatMessage     `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// NewOpenAI builds the remote scorer. An API key is required.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("openai scorer: api key is not configured")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json")
	return &OpenAI{cfg: cfg, client: client}, nil
}

// Name returns the provider identifier.
func (o *OpenAI) Name() string { return "openai" }

// Score asks the model for a JSON verdict on one article.
func (o *OpenAI) Score(ctx context.Context, a signal.Article) (signal.Sentiment, error) {
	var out chatResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetBody(chatRequest{
			Model:          o.cfg.Model,
			Temperature:    o.cfg.Temperature,
			ResponseFormat: map[string]string{"type": "json_object"},
			Messages: []chatMessage{
				{Role: "system", Content: systemPrompt},
				{Role: "user", Content: buildPrompt(a)},
			},
		}).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return signal.Sentiment{}, fmt.Errorf("openai scorer: %w", err)
	}
	if resp.IsError() {
		return signal.Sentiment{}, fmt.Errorf("openai scorer: http %d", resp.StatusCode())
	}
	if len(out.Choices) == 0 {
		return signal.Sentiment{}, fmt.Errorf("%w: no choices", ErrInvalidResponse)
	}
	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return signal.Sentiment{}, fmt.Errorf("%w: empty content", ErrInvalidResponse)
	}
	return ParseResponse(a.ID, content)
}

func buildPrompt(a signal.Article) string {
	symbols := "(none detected)"
	if len(a.Symbols) > 0 {
		symbols = strings.Join(a.Symbols, ", ")
	}
	var b strings.Builder
	b.WriteString("Assess the investment sentiment of the following cryptocurrency news article.\n")
	b.WriteString("1. label must be one of positive, negative, neutral\n")
	b.WriteString("2. score is a decimal between -1.0 and 1.0\n")
	b.WriteString("3. reasoning gives the key evidence in one or two sentences\n\n")
	fmt.Fprintf(&b, "Title: %s\n", a.Title)
	fmt.Fprintf(&b, "Summary: %s\n", a.Summary)
	fmt.Fprintf(&b, "Link: %s\n", a.URL)
	fmt.Fprintf(&b, "Published (UTC): %s\n", a.PublishedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "Symbols: %s\n", symbols)
	return b.String()
}

var labelAliases = map[string]signal.Label{
	"positive": signal.Positive,
	"pos":      signal.Positive,
	"negative": signal.Negative,
	"neg":      signal.Negative,
	"neutral":  signal.Neutral,
}

// ParseResponse decodes the model's JSON object. The score is clamped to [-1, 1].
func ParseResponse(articleID, content string) (signal.Sentiment, error) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return signal.Sentiment{}, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	rawLabel, ok := payload["label"].(string)
	if !ok {
		return signal.Sentiment{}, fmt.Errorf("%w: missing label", ErrInvalidResponse)
	}
	label, ok := labelAliases[strings.ToLower(strings.TrimSpace(rawLabel))]
	if !ok {
		return signal.Sentiment{}, fmt.Errorf("%w: unsupported label %q", ErrInvalidResponse, rawLabel)
	}

	var score float64
	switch v := payload["score"].(type) {
	case float64:
		score = v
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return signal.Sentiment{}, fmt.Errorf("%w: non-numeric score", ErrInvalidResponse)
		}
		score = parsed
	default:
		return signal.Sentiment{}, fmt.Errorf("%w: missing score", ErrInvalidResponse)
	}

	reason := missingReasoning
	if raw, present := payload["reasoning"]; present && raw != nil {
		text, isString := raw.(string)
		if !isString {
			text = fmt.Sprint(raw)
		}
		if text = strings.TrimSpace(text); text != "" {
			reason = text
		}
	}
	return signal.Sentiment{
		ArticleID: articleID,
		Score:     signal.Clamp(score, -1, 1),
		Label:     label,
		Reason:    reason,
	}, nil
}
