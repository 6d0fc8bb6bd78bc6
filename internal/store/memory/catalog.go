package memory

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"lexdesk.app/credits/internal/features/purchases"
	"lexdesk.app/credits/internal/features/tasks"
	"lexdesk.app/credits/internal/features/toolcost"
)

// --- toolcost.Loader / toolcost.Writer ---

func (s *Store) LoadToolCosts(_ context.Context) ([]toolcost.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked("load tool costs"); err != nil {
		return nil, err
	}
	out := make([]toolcost.Entry, 0, len(s.tools))
	for _, e := range s.tools {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ToolType < out[j].ToolType })
	return out, nil
}

func (s *Store) UpsertToolCosts(_ context.Context, entries []toolcost.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkLocked("upsert tool costs"); err != nil {
		return err
	}
	for _, e := range entries {
		s.tools[e.ToolType] = e
	}
	return nil
}

// SeedPackages adds or replaces packages.
func (s *Store) SeedPackages(pkgs ...purchases.Package) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range pkgs {
		s.packages[p.ID] = p
	}
}

// SeedTasks adds or replaces tasks.
func (s *Store) SeedTasks(ts ...tasks.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range ts {
		s.tasks[t.Key] = t
	}
}

// SeedDefaults loads the same catalog the SQL migrations insert.
func (s *Store) SeedDefaults() {
	_ = s.UpsertToolCosts(context.Background(), []toolcost.Entry{
		{ToolType: "research", Name: "Legal research", CreditCost: 5, Active: true},
		{ToolType: "document", Name: "Document generation", CreditCost: 10, Active: true},
		{ToolType: "chat", Name: "AI chat message", CreditCost: 1, Active: true},
		{ToolType: "voice_session", Name: "Voice session", CreditCost: 15, Active: true},
		{ToolType: "case_lookup", Name: "Judicial records", CreditCost: 3, Active: true},
	})
	s.SeedPackages(
		purchases.Package{ID: "starter", Name: "Starter", Credits: 100, Price: decimal.RequireFromString("9.99"), Currency: "USD", Active: true, SortOrder: 1},
		purchases.Package{ID: "professional", Name: "Professional", Credits: 500, Price: decimal.RequireFromString("39.99"), Currency: "USD", Active: true, SortOrder: 2},
		purchases.Package{ID: "firm", Name: "Firm", Credits: 2000, Price: decimal.RequireFromString("129.00"), Currency: "USD", Active: true, SortOrder: 3},
	)
	s.SeedTasks(
		tasks.Task{Key: "complete_profile", Title: "Complete your profile", Reward: 15, TargetCount: 1, MaxCompletions: 1, Active: true},
		tasks.Task{Key: "first_document", Title: "Generate your first document", Reward: 10, TargetCount: 1, MaxCompletions: 1, Active: true},
		tasks.Task{Key: "ten_research", Title: "Run ten research queries", Reward: 25, TargetCount: 10, MaxCompletions: 1, Active: true},
		tasks.Task{Key: "weekly_client", Title: "Add a client this week", Reward: 5, TargetCount: 1, MaxCompletions: 52, Active: true},
	)
}
