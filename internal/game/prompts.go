package game

import "math/rand"

// bonusCategories cycles per round: round n uses (n-1) mod 5.
var bonusCategories = [5]string{
	"Funniest",
	"Most Original",
	"Most Brutal",
	"Most Wholesome",
	"Best Wordplay",
}

func bonusCategoryFor(roundNumber int) string {
	return bonusCategories[(roundNumber-1)%len(bonusCategories)]
}

// judgePersonas is the pool the session's three judges are drawn from.
var judgePersonas = []string{
	"The Hardliner",
	"The Hopeless Romantic",
	"The Chaos Gremlin",
	"The Tenured Professor",
	"The Retired Diva",
	"The Small-Town Grandparent",
	"The Tech Bro",
	"The Film Critic",
}

// pickJudges samples n distinct personas uniformly without replacement.
func pickJudges(n int) []string {
	idx := rand.Perm(len(judgePersonas))
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = judgePersonas[idx[i]]
	}
	return out
}

var seedPrompts = []Prompt{
	{ID: "p01", Text: "The worst possible opening line for a wedding toast.", Category: "mixed", Active: true},
	{ID: "p02", Text: "A rejected slogan for a funeral home.", Category: "mixed", Active: true},
	{ID: "p03", Text: "The real reason the dinosaurs went extinct.", Category: "mixed", Active: true},
	{ID: "p04", Text: "Something you should never whisper during a job interview.", Category: "mixed", Active: true},
	{ID: "p05", Text: "The title of the least inspiring self-help book ever written.", Category: "mixed", Active: true},
	{ID: "p06", Text: "What your pet would say about you in therapy.", Category: "icebreakers", Active: true},
	{ID: "p07", Text: "The most embarrassing thing on your search history, lightly fictionalized.", Category: "icebreakers", Active: true},
	{ID: "p08", Text: "Your superhero name and extremely underwhelming power.", Category: "icebreakers", Active: true},
	{ID: "p09", Text: "The hill you would genuinely die on.", Category: "icebreakers", Active: true},
	{ID: "p10", Text: "If you could uninvent one thing, what and why.", Category: "hypotheticals", Active: true},
	{ID: "p11", Text: "Humanity discovers aliens. What do we accidentally do first?", Category: "hypotheticals", Active: true},
	{ID: "p12", Text: "You rule the world for one hour. Your first decree.", Category: "hypotheticals", Active: true},
	{ID: "p13", Text: "The eleventh commandment, if Moses had kept going.", Category: "hypotheticals", Active: true},
	{ID: "p14", Text: "A food opinion that could end a friendship.", Category: "hot-takes", Active: true},
	{ID: "p15", Text: "The most overrated thing everyone pretends to love.", Category: "hot-takes", Active: true},
	{ID: "p16", Text: "A movie everyone loves that deserved to flop.", Category: "hot-takes", Active: true},
	{ID: "p17", Text: "Your most defensible crime.", Category: "confessions", Active: true},
	{ID: "p18", Text: "The pettiest grudge you are still holding.", Category: "confessions", Active: true},
	{ID: "p19", Text: "Something you did as a kid that your parents never found out about.", Category: "confessions", Active: true},
	{ID: "p20", Text: "The lie you tell most often.", Category: "confessions", Active: true},
}

// PromptPool serves round prompts. Selection is uniform over the active
// pool filtered by category, excluding prompts already used in the
// session; if the filter empties the pool it falls back to the whole
// active pool.
type PromptPool struct {
	prompts []Prompt
}

func NewPromptPool() *PromptPool {
	return &PromptPool{prompts: seedPrompts}
}

func NewPromptPoolWith(prompts []Prompt) *PromptPool {
	return &PromptPool{prompts: prompts}
}

func (pp *PromptPool) Pick(category string, used map[string]bool) Prompt {
	candidates := pp.filter(category, used)
	if len(candidates) == 0 {
		candidates = pp.filter("", used)
	}
	if len(candidates) == 0 {
		// every active prompt used this session; reuse is better than stalling
		candidates = pp.filter("", nil)
	}
	return candidates[rand.Intn(len(candidates))]
}

func (pp *PromptPool) filter(category string, used map[string]bool) []Prompt {
	var out []Prompt
	for _, p := range pp.prompts {
		if !p.Active || used[p.ID] {
			continue
		}
		if category != "" && category != "mixed" && p.Category != category {
			continue
		}
		out = append(out, p)
	}
	return out
}
