// Package recap produces the narrative session summary. It has no
// scoring effect; a failed recap just leaves the session without one.
package recap

import (
	"context"
	"fmt"
	"strings"

	"github.com/quipcourt/quipcourt/internal/game"
)

// Completer is the slice of the judge client the recap needs.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

const systemPrompt = `You are the excitable announcer of a party game wrapping up a session. ` +
	`Write a short, punchy recap of the final standings. Plain text, one paragraph.`

type Generator struct {
	c Completer
}

func NewGenerator(c Completer) *Generator {
	return &Generator{c: c}
}

func (g *Generator) Recap(ctx context.Context, req game.RecapRequest) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Category: %s\nFinal standings:\n", req.Category)
	for _, r := range req.Results {
		fmt.Fprintf(&b, "%d. %s — %d points\n", r.Placement, r.Name, r.Total)
	}
	return g.c.Complete(ctx, systemPrompt, b.String())
}
