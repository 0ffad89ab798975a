package judge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/quipcourt/quipcourt/internal/game"
)

func completionServer(t *testing.T, content string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" {
			t.Errorf("expected system+user messages, got %+v", body.Messages)
		}

		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}},
			},
		})
	}))
}

func testRequest() game.JudgeRequest {
	return game.JudgeRequest{
		Prompt:        "The worst possible opening line for a wedding toast.",
		BonusCategory: "Funniest",
		Judges:        []string{"The Hardliner", "The Chaos Gremlin", "The Retired Diva"},
		Answers: []game.JudgeAnswer{
			{PlayerID: "p1", PlayerName: "Alice", Text: "As the bride's ex..."},
			{PlayerID: "p2", PlayerName: "Bob", Text: "Per my last email"},
			{PlayerID: "p3", PlayerName: "Cleo", Text: ""},
		},
	}
}

const goodVerdict = `{
  "perJudge": {
    "The Hardliner": ["p2", "p1", "p3"],
    "The Chaos Gremlin": ["p1", "p2", "p3"],
    "The Retired Diva": ["p2", "p1", "p3"]
  },
  "overall": ["p2", "p1", "p3"],
  "bonusWinner": "p1",
  "commentary": "The bench is divided but the email joke lands."
}`

func TestJudgeParsesVerdict(t *testing.T) {
	srv := completionServer(t, goodVerdict, http.StatusOK)
	defer srv.Close()

	c := New("test-key", srv.URL, "gpt-4o-mini")
	v, err := c.Judge(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("judge: %v", err)
	}
	if len(v.Overall) != 3 || v.Overall[0] != "p2" {
		t.Fatalf("unexpected overall ranking %v", v.Overall)
	}
	if len(v.PerJudge) != 3 {
		t.Fatalf("expected 3 per-judge rankings, got %d", len(v.PerJudge))
	}
	if v.BonusWinnerID != "p1" {
		t.Fatalf("expected bonus winner p1, got %q", v.BonusWinnerID)
	}
	if v.Commentary == "" {
		t.Fatal("commentary should survive parsing")
	}
}

func TestJudgeToleratesFencedJSON(t *testing.T) {
	srv := completionServer(t, "```json\n"+goodVerdict+"\n```", http.StatusOK)
	defer srv.Close()

	c := New("test-key", srv.URL, "")
	v, err := c.Judge(context.Background(), testRequest())
	if err != nil {
		t.Fatalf("judge: %v", err)
	}
	if v.Overall[0] != "p2" {
		t.Fatalf("unexpected ranking %v", v.Overall)
	}
}

func TestJudgeRejectsProse(t *testing.T) {
	srv := completionServer(t, "Sorry, I cannot rank these answers.", http.StatusOK)
	defer srv.Close()

	c := New("test-key", srv.URL, "")
	if _, err := c.Judge(context.Background(), testRequest()); err == nil {
		t.Fatal("expected an error for a non-JSON response")
	}
}

func TestJudgeRejectsMissingRankings(t *testing.T) {
	srv := completionServer(t, `{"commentary": "lovely answers all around"}`, http.StatusOK)
	defer srv.Close()

	c := New("test-key", srv.URL, "")
	if _, err := c.Judge(context.Background(), testRequest()); err == nil {
		t.Fatal("expected an error when rankings are missing")
	}
}

func TestJudgeSurfacesHTTPErrors(t *testing.T) {
	srv := completionServer(t, "", http.StatusInternalServerError)
	defer srv.Close()

	c := New("test-key", srv.URL, "")
	if _, err := c.Judge(context.Background(), testRequest()); err == nil {
		t.Fatal("expected an error on a 500")
	}
}

func TestJudgeRequiresAPIKey(t *testing.T) {
	c := New("", "http://127.0.0.1:0", "")
	if _, err := c.Judge(context.Background(), testRequest()); err == nil {
		t.Fatal("expected an error without an api key")
	}
}

func TestBuildUserPromptMarksEmptyAnswers(t *testing.T) {
	p := buildUserPrompt(testRequest())
	if !strings.Contains(p, "(no answer submitted)") {
		t.Fatal("empty answers should be marked, not dropped")
	}
	if !strings.Contains(p, "player p1") || !strings.Contains(p, "The Chaos Gremlin") {
		t.Fatal("prompt should name players and judges")
	}
}

func TestStripFences(t *testing.T) {
	cases := map[string]string{
		"{\"a\":1}":                      `{"a":1}`,
		"```json\n{\"a\":1}\n```":        `{"a":1}`,
		"```\n{\"a\":1}\n```":            `{"a":1}`,
		"  \n```json\n{\"a\":1}\n```\n ": `{"a":1}`,
	}
	for in, want := range cases {
		if got := stripFences(in); got != want {
			t.Fatalf("stripFences(%q) = %q, want %q", in, got, want)
		}
	}
}
