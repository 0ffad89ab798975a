// Package judge talks to an OpenAI-compatible chat completion API and
// turns a round's answers into a verdict: one ranking per judge persona,
// an overall ranking, a bonus-category winner and table banter.
package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/quipcourt/quipcourt/internal/game"
)

const systemPrompt = `You are the judging panel of a party game. Players answered a prompt; ` +
	`each judge persona ranks every answer from best to worst in their own voice. ` +
	`Respond with strict JSON only, no prose around it.`

type Client struct {
	APIKey  string
	BaseURL string
	Model   string
	http    *http.Client
}

func New(apiKey, baseURL, model string) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Client{
		APIKey:  apiKey,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// verdictPayload is the JSON shape the model is instructed to emit.
type verdictPayload struct {
	PerJudge    map[string][]string `json:"perJudge"`
	Overall     []string            `json:"overall"`
	BonusWinner string              `json:"bonusWinner"`
	Commentary  string              `json:"commentary"`
}

func (c *Client) Judge(ctx context.Context, req game.JudgeRequest) (*game.Verdict, error) {
	raw, err := c.Complete(ctx, systemPrompt, buildUserPrompt(req))
	if err != nil {
		return nil, fmt.Errorf("judge completion: %w", err)
	}

	var payload verdictPayload
	if err := json.Unmarshal([]byte(stripFences(raw)), &payload); err != nil {
		return nil, fmt.Errorf("judge response not valid JSON: %w", err)
	}
	if len(payload.Overall) == 0 || len(payload.PerJudge) == 0 {
		return nil, errors.New("judge response missing rankings")
	}
	return &game.Verdict{
		Overall:       payload.Overall,
		PerJudge:      payload.PerJudge,
		BonusWinnerID: payload.BonusWinner,
		Commentary:    payload.Commentary,
	}, nil
}

func buildUserPrompt(req game.JudgeRequest) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Prompt: %s\n", req.Prompt)
	fmt.Fprintf(&b, "Bonus category: %s\n", req.BonusCategory)
	fmt.Fprintf(&b, "Judges: %s\n\nAnswers:\n", strings.Join(req.Judges, ", "))
	for _, a := range req.Answers {
		text := a.Text
		if text == "" {
			text = "(no answer submitted)"
		}
		fmt.Fprintf(&b, "- player %s: %s\n", a.PlayerID, text)
	}
	b.WriteString("\nReturn JSON: {\"perJudge\": {<judge name>: [player ids best to worst]}, " +
		"\"overall\": [player ids best to worst], " +
		"\"bonusWinner\": <player id best fitting the bonus category>, " +
		"\"commentary\": <two or three sentences of judge banter>}. " +
		"Every ranking must contain every player id exactly once.")
	return b.String()
}

// Complete performs one chat completion. Exposed so the recap generator
// can reuse the same transport.
func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	if c.APIKey == "" {
		return "", errors.New("missing api key")
	}
	payload := map[string]any{
		"model": c.Model,
		"messages": []map[string]string{
			{"role": "system", "content": system},
			{"role": "user", "content": prompt},
		},
		"temperature": 0.8,
		"max_tokens":  800,
	}
	b, _ := json.Marshal(payload)
	req, _ := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v1/chat/completions", bytes.NewReader(b))
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode/100 != 2 {
		return "", fmt.Errorf("completion status %d", resp.StatusCode)
	}
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", errors.New("no choices")
	}
	return strings.TrimSpace(out.Choices[0].Message.Content), nil
}

// stripFences tolerates models that wrap JSON in a markdown code block.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
