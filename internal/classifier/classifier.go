package classifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/leadgate-ai/leadgate/internal/leads"
)

// ErrUnparseable reports that the model responded but its output could not
// be read as a classification. Treated like any other classifier failure:
// the lead goes to a human instead.
var ErrUnparseable = errors.New("classifier: response is not a valid classification")

const leadPrompt = `You qualify inbound leads for a B2B software company. Classify this submission into ONE category. Respond with JSON only.

Categories:
- high-quality: a genuine prospect with budget signals, a concrete use case, or a named company that fits our market
- low-quality: a vague, misdirected, or non-commercial inquiry with no buying signal
- support: an existing product user asking for help, reporting a bug, or requesting documentation
- existing: the sender is already a customer (mentions an account, a contract, or an ongoing engagement)

IMPORTANT:
- Do not invent facts about the sender. Base the call only on the submission text.
- confidence is your certainty in the classification, between 0 and 1.
- is_existing_customer is true only when the text itself shows an active customer relationship.

Submission:
Name: %NAME%
Email: %EMAIL%
Company: %COMPANY%
Message: %MESSAGE%

Respond with: {"classification": "<category>", "confidence": <0..1>, "reasoning": "<one sentence>", "is_existing_customer": <true|false>}`

// Classifier turns a lead submission into a classification result using
// an LLM. Its output is validated before anything downstream acts on it;
// a confidence outside [0,1] or an unknown category is an error, never
// silently repaired.
type Classifier struct {
	client  LLMClient
	modelID string
}

func New(client LLMClient, modelID string) *Classifier {
	if client == nil {
		panic("classifier: nil llm client")
	}
	return &Classifier{client: client, modelID: modelID}
}

// Classify produces a classification result for the submission. Any
// failure, transport, parse, or validation, means no automatic decision
// should be attempted for this lead.
func (c *Classifier) Classify(ctx context.Context, sub leads.Submission) (leads.ClassificationResult, error) {
	prompt := buildPrompt(sub)

	resp, err := c.client.Complete(ctx, LLMRequest{
		Model:       c.modelID,
		Messages:    []ChatMessage{{Role: ChatRoleUser, Content: prompt}},
		MaxTokens:   300,
		Temperature: 0,
	})
	if err != nil {
		return leads.ClassificationResult{}, fmt.Errorf("classifier: completion failed: %w", err)
	}

	result, err := parseResult(resp.Text)
	if err != nil {
		return leads.ClassificationResult{}, err
	}
	if err := result.Validate(); err != nil {
		return leads.ClassificationResult{}, fmt.Errorf("%w: %w", ErrUnparseable, err)
	}
	return result, nil
}

func buildPrompt(sub leads.Submission) string {
	r := strings.NewReplacer(
		"%NAME%", sub.Name,
		"%EMAIL%", sub.Email,
		"%COMPANY%", sub.Company,
		"%MESSAGE%", sub.Message,
	)
	return r.Replace(leadPrompt)
}

// parseResult extracts the JSON object from the model output. Models
// sometimes wrap JSON in prose or code fences, so everything outside the
// outermost braces is discarded.
func parseResult(text string) (leads.ClassificationResult, error) {
	content := strings.TrimSpace(text)
	startIdx := strings.Index(content, "{")
	endIdx := strings.LastIndex(content, "}")
	if startIdx < 0 || endIdx <= startIdx {
		return leads.ClassificationResult{}, ErrUnparseable
	}
	content = content[startIdx : endIdx+1]

	var result leads.ClassificationResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return leads.ClassificationResult{}, fmt.Errorf("%w: %w", ErrUnparseable, err)
	}
	return result, nil
}
