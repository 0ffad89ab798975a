package game

import (
	"reflect"
	"testing"
)

func sampleVerdict() (*Verdict, []string) {
	judges := []string{"The Hardliner", "The Chaos Gremlin", "The Retired Diva"}
	return &Verdict{
		Overall: []string{"p2", "p1", "p3"},
		PerJudge: map[string][]string{
			judges[0]: {"p1", "p2", "p3"},
			judges[1]: {"p2", "p1", "p3"},
			judges[2]: {"p2", "p1", "p3"},
		},
		BonusWinnerID: "p3",
	}, judges
}

func TestBordaTotalsPrefix(t *testing.T) {
	v, judges := sampleVerdict()

	// one judge out: their ranking alone
	one := bordaTotals(v.PerJudge, judges, 1)
	if one["p1"] != 3 || one["p2"] != 2 || one["p3"] != 1 {
		t.Fatalf("after 1 judge: expected p1=3 p2=2 p3=1, got %v", one)
	}

	// two judges out: totals tie at the top
	two := bordaTotals(v.PerJudge, judges, 2)
	if two["p1"] != 5 || two["p2"] != 5 || two["p3"] != 2 {
		t.Fatalf("after 2 judges: expected p1=5 p2=5 p3=2, got %v", two)
	}

	all := bordaTotals(v.PerJudge, judges, 3)
	if all["p1"] != 7 || all["p2"] != 8 || all["p3"] != 3 {
		t.Fatalf("after 3 judges: expected p1=7 p2=8 p3=3, got %v", all)
	}

	// revealed counts past the judge list clamp to the full set
	if got := bordaTotals(v.PerJudge, judges, 99); !reflect.DeepEqual(got, all) {
		t.Fatalf("overshoot should clamp: expected %v, got %v", all, got)
	}
}

func TestRevealStandingsTieAtPrefix(t *testing.T) {
	v, judges := sampleVerdict()

	standings := RevealStandings(v, judges, 2)
	if len(standings) != 3 {
		t.Fatalf("expected 3 standings, got %d", len(standings))
	}
	// p1 and p2 share placement 1 with 5 points each; p3 is third
	if standings[0].Placement != 1 || standings[1].Placement != 1 {
		t.Fatalf("expected a shared first place, got %+v", standings)
	}
	if standings[2].PlayerID != "p3" || standings[2].Placement != 3 {
		t.Fatalf("expected p3 third, got %+v", standings[2])
	}
	// tied rows fall back to player id order
	if standings[0].PlayerID != "p1" || standings[1].PlayerID != "p2" {
		t.Fatalf("expected id-ordered tie, got %+v", standings)
	}
}

func TestRevealStandingsFullReveal(t *testing.T) {
	v, judges := sampleVerdict()

	standings := RevealStandings(v, judges, 3)
	want := []Standing{
		{PlayerID: "p2", Points: 8, Placement: 1},
		{PlayerID: "p1", Points: 7, Placement: 2},
		{PlayerID: "p3", Points: 3, Placement: 3},
	}
	if !reflect.DeepEqual(standings, want) {
		t.Fatalf("expected %+v, got %+v", want, standings)
	}
}

func TestRevealStandingsDeterministic(t *testing.T) {
	v, judges := sampleVerdict()
	for revealed := 0; revealed <= 3; revealed++ {
		first := RevealStandings(v, judges, revealed)
		for i := 0; i < 10; i++ {
			if again := RevealStandings(v, judges, revealed); !reflect.DeepEqual(again, first) {
				t.Fatalf("revealed=%d: standings changed between calls", revealed)
			}
		}
	}
}

func TestRevealStandingsEmptyInputs(t *testing.T) {
	_, judges := sampleVerdict()
	if RevealStandings(nil, judges, 2) != nil {
		t.Fatal("nil verdict should produce nil standings")
	}
	v, _ := sampleVerdict()
	if RevealStandings(v, judges, 0) != nil {
		t.Fatal("zero revealed judges should produce nil standings")
	}
}

// The snapshot only ever shows the prefix the host has revealed, so a
// late-joining client can never see an unrevealed judge's ranking.
func TestStagedVerdictHidesUnrevealedJudges(t *testing.T) {
	m, _ := newTestManager(t, nil)
	oracle := &switchableOracle{}
	m.oracle = oracle

	code, tokens, ids := startGame(t, m)
	oracle.set(rankedOracle([]string{ids[1], ids[0], ids[2]}, ids[2]))
	toGuessing(t, m, code, tokens)
	if err := m.AdvanceToReveal(code, tokens[0]); err != nil {
		t.Fatalf("reveal: %v", err)
	}
	waitFor(t, func() bool {
		var scored bool
		withState(t, m, code, func(st *state) { scored = st.currentRound().Scored })
		return scored
	}, "verdict should be scored")

	// authors step: no verdict detail at all
	snap, _ := m.GetSnapshot(code)
	if snap.Round.Verdict.Commentary != "" || len(snap.Round.Verdict.PerJudge) != 0 {
		t.Fatalf("authors step should hide the verdict, got %+v", snap.Round.Verdict)
	}

	if err := m.AdvanceRevealStep(code, tokens[0]); err != nil { // banter
		t.Fatalf("to banter: %v", err)
	}
	snap, _ = m.GetSnapshot(code)
	if snap.Round.Verdict.Commentary == "" {
		t.Fatal("banter step should expose the commentary")
	}
	if len(snap.Round.Verdict.PerJudge) != 0 || len(snap.Round.Verdict.Overall) != 0 {
		t.Fatal("banter step must not leak rankings")
	}

	if err := m.AdvanceRevealStep(code, tokens[0]); err != nil { // rankings
		t.Fatalf("to rankings: %v", err)
	}
	for revealed := 1; revealed <= JudgeCount; revealed++ {
		if err := m.RevealNextJudge(code, tokens[0]); err != nil {
			t.Fatalf("reveal judge %d: %v", revealed, err)
		}
		snap, _ = m.GetSnapshot(code)
		if len(snap.Round.Verdict.PerJudge) != revealed {
			t.Fatalf("expected %d revealed rankings, got %d", revealed, len(snap.Round.Verdict.PerJudge))
		}
		if revealed < JudgeCount && len(snap.Round.Verdict.Overall) != 0 {
			t.Fatal("overall result must wait for the last judge")
		}
		if len(snap.Round.Standings) == 0 {
			t.Fatalf("standings over %d judges should be present", revealed)
		}
	}

	snap, _ = m.GetSnapshot(code)
	if len(snap.Round.Verdict.Overall) == 0 || snap.Round.Verdict.BonusWinnerID == "" {
		t.Fatal("full reveal should expose the overall result and bonus winner")
	}
}
