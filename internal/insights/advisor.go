package insights

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"financeai/internal/cache"
	"financeai/internal/core"
)

// Request carries the financial snapshot the advisor analyzes.
type Request struct {
	Transactions  []core.Transaction `json:"transactions"`
	MonthlyIncome float64            `json:"monthlyIncome"`
	SavingsGoal   float64            `json:"savingsGoal"`
	Currency      string             `json:"currency"`
	Categories    core.CategorySet   `json:"categories"`
}

// Recommendation is one actionable suggestion from the advisor.
type Recommendation struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Impact      string `json:"impact"`
	Priority    string `json:"priority"`
}

// Insights is the advisor's structured analysis.
type Insights struct {
	OverallAssessment string           `json:"overallAssessment"`
	Recommendations   []Recommendation `json:"recommendations"`
	SpendingPatterns  []string         `json:"spendingPatterns"`
	SavingsTips       []string         `json:"savingsTips"`
}

// completionClient is the slice of the OpenAI client the advisor needs.
type completionClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Advisor generates spending insights through an OpenAI-compatible API.
// Responses are cached so repeated requests over unchanged data skip the
// upstream call.
type Advisor struct {
	client completionClient
	model  string
	cache  *cache.TTLCache[Insights]
}

// ErrNotConfigured is returned when no API key was provided.
var ErrNotConfigured = errors.New("insights advisor is not configured")

// NewAdvisor creates an advisor. baseURL may be empty to use the default
// OpenAI endpoint. Returns ErrNotConfigured when apiKey is empty.
func NewAdvisor(apiKey, baseURL, model string) (*Advisor, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}

	return &Advisor{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		cache:  cache.New[Insights](64, 10*time.Minute),
	}, nil
}

// Generate produces insights for the given snapshot, serving from cache
// when the same snapshot was analyzed recently.
func (a *Advisor) Generate(ctx context.Context, req Request) (Insights, error) {
	key := cacheKey(req)
	if cached, ok := a.cache.Get(key); ok {
		return cached, nil
	}

	prompt := buildPrompt(req)

	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens:   2000,
		Temperature: 0.7,
	})
	if err != nil {
		return Insights{}, fmt.Errorf("generate insights: %w", err)
	}
	if len(resp.Choices) == 0 {
		return Insights{}, errors.New("generate insights: empty completion")
	}

	result := parseInsights(resp.Choices[0].Message.Content)
	a.cache.Set(key, result)
	return result, nil
}

func cacheKey(req Request) string {
	raw, err := json.Marshal(req)
	if err != nil {
		return fmt.Sprintf("fallback_%d_%f", len(req.Transactions), req.MonthlyIncome)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// buildPrompt renders the analysis context and instructions sent upstream.
func buildPrompt(req Request) string {
	symbol := core.CurrencySymbol(req.Currency)

	var spending core.MonthlySpending
	for _, t := range req.Transactions {
		spending.Accumulate(t)
	}
	totalSpent := spending.Total
	actualSavings := req.MonthlyIncome - totalSpent

	var b strings.Builder
	b.WriteString("Personal Finance Analysis Context:\n")
	fmt.Fprintf(&b, "- Monthly Income: %s%.2f\n", symbol, req.MonthlyIncome)
	fmt.Fprintf(&b, "- Savings Goal: %s%.2f\n", symbol, req.SavingsGoal)
	fmt.Fprintf(&b, "- Total Spent: %s%.2f (%.1f%% of income)\n", symbol, totalSpent, percentage(totalSpent, req.MonthlyIncome))
	fmt.Fprintf(&b, "- Actual Savings: %s%.2f\n\n", symbol, actualSavings)

	b.WriteString("Spending Breakdown:\n")
	fmt.Fprintf(&b, "- Needs: %s%.2f (%.1f%%)\n", symbol, spending.Needs, percentage(spending.Needs, totalSpent))
	fmt.Fprintf(&b, "- Wants: %s%.2f (%.1f%%)\n", symbol, spending.Wants, percentage(spending.Wants, totalSpent))
	fmt.Fprintf(&b, "- Not Important: %s%.2f (%.1f%%)\n\n", symbol, spending.NotImportant, percentage(spending.NotImportant, totalSpent))

	b.WriteString("Recent Transactions (last 10):\n")
	recent := req.Transactions
	if len(recent) > 10 {
		recent = recent[:10]
	}
	for _, t := range recent {
		fmt.Fprintf(&b, "- %s: %s%.2f (%s - %s)\n", t.Description, symbol, t.Amount, t.Type, t.Category)
	}

	b.WriteString("\nUser Categories:\n")
	fmt.Fprintf(&b, "- Needs: %s\n", strings.Join(req.Categories.Needs, ", "))
	fmt.Fprintf(&b, "- Wants: %s\n", strings.Join(req.Categories.Wants, ", "))
	fmt.Fprintf(&b, "- Not Important: %s\n", strings.Join(req.Categories.NotImportant, ", "))

	return fmt.Sprintf(`You are a personal finance advisor AI. Analyze the following financial data and provide actionable insights.

%s

Please provide:
1. A brief overall assessment (2-3 sentences)
2. 3-4 specific actionable recommendations
3. Spending pattern observations
4. Savings optimization tips

Format your response as JSON with the following structure:
{
  "overallAssessment": "Brief assessment text",
  "recommendations": [
    {
      "title": "Recommendation title",
      "description": "Detailed recommendation",
      "impact": "potential savings amount or benefit",
      "priority": "high|medium|low"
    }
  ],
  "spendingPatterns": [
    "Pattern observation 1",
    "Pattern observation 2"
  ],
  "savingsTips": [
    "Savings tip 1",
    "Savings tip 2"
  ]
}

Keep recommendations practical and specific to their spending habits. Use the currency symbol %s in monetary amounts.`, b.String(), symbol)
}

func percentage(part, whole float64) float64 {
	if whole == 0 {
		return 0
	}
	return part / whole * 100
}

// parseInsights decodes the model reply, tolerating markdown code fences.
// A reply that is not valid JSON degrades to a generic fallback built
// around the raw text.
func parseInsights(text string) Insights {
	candidate := strings.TrimSpace(text)
	if after, ok := strings.CutPrefix(candidate, "```json"); ok {
		candidate = after
	} else if after, ok := strings.CutPrefix(candidate, "```"); ok {
		candidate = after
	}
	candidate = strings.TrimSuffix(strings.TrimSpace(candidate), "```")

	var parsed Insights
	if err := json.Unmarshal([]byte(candidate), &parsed); err == nil && parsed.OverallAssessment != "" {
		return parsed
	}

	slog.Warn("Insights reply was not valid JSON, using fallback")

	summary := text
	if len(summary) > 200 {
		summary = summary[:200] + "..."
	}
	return Insights{
		OverallAssessment: summary,
		Recommendations: []Recommendation{
			{
				Title:       "Review Your Spending",
				Description: "Analyze your recent transactions to identify areas for improvement.",
				Impact:      "Potential savings of 10-20%",
				Priority:    "medium",
			},
		},
		SpendingPatterns: []string{"Unable to parse detailed patterns"},
		SavingsTips:      []string{"Track your expenses regularly", "Set specific savings goals"},
	}
}
