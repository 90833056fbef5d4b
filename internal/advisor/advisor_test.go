package advisor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"duit/internal/core"
	"duit/internal/log"
)

func testLogger() *log.Logger {
	return log.New(log.Config{Handler: slog.NewTextHandler(io.Discard, nil)})
}

func TestFormatIDR(t *testing.T) {
	tests := []struct {
		amount int64
		want   string
	}{
		{0, "0"},
		{999, "999"},
		{1_000, "1.000"},
		{15_000, "15.000"},
		{1_500_000, "1.500.000"},
		{-25_000, "-25.000"},
	}
	for _, tt := range tests {
		if got := FormatIDR(tt.amount); got != tt.want {
			t.Errorf("FormatIDR(%d) = %q, want %q", tt.amount, got, tt.want)
		}
	}
}

func TestRecentFoodLines(t *testing.T) {
	now := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)
	txs := []core.Transaction{
		{CategoryID: "food", Date: now.AddDate(0, 0, -1), Description: "warteg", Amount: 15_000},
		{CategoryID: "food", Date: now.AddDate(0, 0, -40), Description: "catering lama", Amount: 120_000},
		{CategoryID: "fun", Date: now.AddDate(0, 0, -2), Description: "bioskop", Amount: 50_000},
		{CategoryID: "food", Date: now.AddDate(0, 0, -10), Description: "soto ayam", Amount: 20_000},
	}

	lines := RecentFoodLines(txs, "food", now)
	if len(lines) != 2 {
		t.Fatalf("RecentFoodLines() = %d lines, want 2: %v", len(lines), lines)
	}
	if lines[0] != "- 2026-08-28: warteg (Rp 15.000)" {
		t.Errorf("line[0] = %q", lines[0])
	}
	if !strings.Contains(lines[1], "soto ayam") {
		t.Errorf("line[1] = %q, want soto ayam entry", lines[1])
	}
}

func TestBuildPromptIncludesProfileAndBudget(t *testing.T) {
	prompt := BuildPrompt(
		core.HealthProfile{DietPreference: core.DietVegetarian},
		1_500_000,
		[]string{"- 2026-08-28: warteg (Rp 15.000)"},
	)

	for _, want := range []string{
		"vegetarian",
		"Rp 1.500.000",
		"- 2026-08-28: warteg (Rp 15.000)",
		"format JSON",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildPromptDietDescriptions(t *testing.T) {
	tests := []struct {
		pref core.DietPreference
		want string
	}{
		{core.DietNormal, "makan lebih sehat"},
		{core.DietVegetarian, "sumber nabati"},
		{core.DietLowSugar, "rendah gula"},
		{core.DietPregnancy, "ibu hamil"},
		{core.DietBulking, "surplus kalori"},
		{core.DietKidGrowth, "pertumbuhan dan perkembangan"},
	}
	for _, tt := range tests {
		t.Run(string(tt.pref), func(t *testing.T) {
			prompt := BuildPrompt(core.HealthProfile{DietPreference: tt.pref}, 0, nil)
			if !strings.Contains(prompt, tt.want) {
				t.Errorf("prompt for %q missing %q", tt.pref, tt.want)
			}
		})
	}
}

type stubGenerator struct {
	calls    int
	response string
	err      error
	prompt   string
}

func (s *stubGenerator) Generate(_ context.Context, prompt string) (string, error) {
	s.calls++
	s.prompt = prompt
	return s.response, s.err
}

func adviceInput() Input {
	return Input{
		Owner: "alice",
		Transactions: []core.Transaction{
			{CategoryID: "food", Date: time.Now().AddDate(0, 0, -3), Description: "warteg", Amount: 15_000},
		},
		Categories: []core.Category{{ID: "food", Name: "Makanan", Color: "#ef4444"}},
		Budget:     core.Budget{"food": 1_500_000},
		Profile:    core.HealthProfile{DietPreference: core.DietNormal},
	}
}

func TestAdvise(t *testing.T) {
	stub := &stubGenerator{
		response: `{"spendingSummary":"Cukup hemat.","nutritionalAdvice":"Kurangi gorengan.","actionableTips":["Masak sendiri","Bawa bekal","Beli di pasar"]}`,
	}
	r := NewRequester(stub, testLogger())

	a, err := r.Advise(context.Background(), adviceInput())
	if err != nil {
		t.Fatalf("Advise() error = %v", err)
	}
	if a.SpendingSummary != "Cukup hemat." {
		t.Errorf("SpendingSummary = %q", a.SpendingSummary)
	}
	if len(a.ActionableTips) != 3 {
		t.Errorf("ActionableTips = %d items, want 3", len(a.ActionableTips))
	}
	if !strings.Contains(stub.prompt, "warteg") {
		t.Errorf("prompt missing recent transaction: %q", stub.prompt)
	}
}

func TestAdviseCachesPerOwner(t *testing.T) {
	stub := &stubGenerator{
		response: `{"spendingSummary":"ok","nutritionalAdvice":"ok","actionableTips":[]}`,
	}
	r := NewRequester(stub, testLogger())

	in := adviceInput()
	if _, err := r.Advise(context.Background(), in); err != nil {
		t.Fatalf("first Advise() error = %v", err)
	}
	if _, err := r.Advise(context.Background(), in); err != nil {
		t.Fatalf("second Advise() error = %v", err)
	}
	if stub.calls != 1 {
		t.Errorf("generator called %d times, want 1 (cached)", stub.calls)
	}

	r.Invalidate(in.Owner)
	if _, err := r.Advise(context.Background(), in); err != nil {
		t.Fatalf("Advise() after invalidate error = %v", err)
	}
	if stub.calls != 2 {
		t.Errorf("generator called %d times after invalidate, want 2", stub.calls)
	}
}

func TestAdviseNoFoodCategory(t *testing.T) {
	r := NewRequester(&stubGenerator{}, testLogger())

	in := adviceInput()
	in.Categories = []core.Category{{ID: "fun", Name: "Hiburan"}}
	if _, err := r.Advise(context.Background(), in); !errors.Is(err, ErrNoFoodCategory) {
		t.Errorf("Advise() error = %v, want ErrNoFoodCategory", err)
	}
}

func TestAdviseNoRecentFoodSpends(t *testing.T) {
	r := NewRequester(&stubGenerator{}, testLogger())

	in := adviceInput()
	in.Transactions = []core.Transaction{
		{CategoryID: "food", Date: time.Now().AddDate(0, 0, -45), Description: "lama", Amount: 15_000},
	}
	if _, err := r.Advise(context.Background(), in); !errors.Is(err, ErrNoRecentFoodSpends) {
		t.Errorf("Advise() error = %v, want ErrNoRecentFoodSpends", err)
	}
}

func TestAdviseGeneratorFailure(t *testing.T) {
	stub := &stubGenerator{err: errors.New("quota exceeded")}
	r := NewRequester(stub, testLogger())

	if _, err := r.Advise(context.Background(), adviceInput()); err == nil {
		t.Fatal("Advise() succeeded despite generator failure")
	}
}
