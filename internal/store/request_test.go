package store

import (
	"context"
	"testing"
	"time"

	"github.com/dukerupert/ayudame/internal/model"
)

func setupRequestTestDB(t *testing.T) (*RequestStore, *UserStore) {
	t.Helper()
	db := openTestDB(t)
	return NewRequestStore(db), NewUserStore(db)
}

var created = time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)

func TestRequestCreateFillsCreatorSlot(t *testing.T) {
	rs, us := setupRequestTestDB(t)
	ctx := context.Background()
	elder := createTestUser(t, us, "elder1", model.RoleElder)

	r, err := rs.Create(ctx, "r1", elder, model.NewRequest{
		Title: "Compra semanal", Description: "Leche y pan", Urgency: model.UrgencyHigh,
	}, created)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}

	if r.Status != model.StatusCreated {
		t.Errorf("status = %q, want %q", r.Status, model.StatusCreated)
	}
	if r.CreatedBy != model.RoleElder {
		t.Errorf("created_by = %q, want %q", r.CreatedBy, model.RoleElder)
	}
	if r.Elder.UserID != "elder1" || r.Elder.Username != "elder1" || r.Elder.Phone != "600elder1" {
		t.Errorf("elder slot = %+v, want elder1 contact", r.Elder)
	}
	if !r.Helper.Empty() {
		t.Errorf("helper slot = %+v, want empty", r.Helper)
	}
	if r.AcceptedBy != "" {
		t.Errorf("accepted_by = %q, want empty", r.AcceptedBy)
	}
	if !r.CreatedAt.Equal(created) {
		t.Errorf("date_created = %v, want %v", r.CreatedAt, created)
	}
}

func TestRequestListOpenFilters(t *testing.T) {
	rs, us := setupRequestTestDB(t)
	ctx := context.Background()
	elder := createTestUser(t, us, "elder1", model.RoleElder)
	helper := createTestUser(t, us, "helper1", model.RoleHelper)

	rs.Create(ctx, "r1", elder, model.NewRequest{Title: "A", Urgency: model.UrgencyHigh}, created)
	rs.Create(ctx, "r2", elder, model.NewRequest{Title: "B", Urgency: model.UrgencyLow}, created.Add(time.Hour))
	rs.Create(ctx, "r3", helper, model.NewRequest{Title: "Ofrezco paseo"}, created)

	open, err := rs.ListOpen(ctx, model.RoleHelper, model.UrgencyNone)
	if err != nil {
		t.Fatalf("list open: %v", err)
	}
	if len(open) != 2 {
		t.Fatalf("expected 2 requests seeking helpers, got %d", len(open))
	}
	if open[0].ID != "r2" {
		t.Errorf("open[0] = %q, want newest first (r2)", open[0].ID)
	}

	high, err := rs.ListOpen(ctx, model.RoleHelper, model.UrgencyHigh)
	if err != nil {
		t.Fatalf("list open high: %v", err)
	}
	if len(high) != 1 || high[0].ID != "r1" {
		t.Errorf("high urgency = %v, want [r1]", high)
	}

	forElders, err := rs.ListOpen(ctx, model.RoleElder, model.UrgencyNone)
	if err != nil {
		t.Fatalf("list open for elders: %v", err)
	}
	if len(forElders) != 1 || forElders[0].ID != "r3" {
		t.Errorf("seeking elders = %v, want [r3]", forElders)
	}
}

func TestRequestClaimOnce(t *testing.T) {
	rs, us := setupRequestTestDB(t)
	ctx := context.Background()
	elder := createTestUser(t, us, "elder1", model.RoleElder)
	h1 := createTestUser(t, us, "helper1", model.RoleHelper)
	h2 := createTestUser(t, us, "helper2", model.RoleHelper)
	rs.Create(ctx, "r1", elder, model.NewRequest{Title: "A"}, created)

	ok, err := rs.Claim(ctx, "r1", h1)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !ok {
		t.Fatal("expected first claim to succeed")
	}

	ok, err = rs.Claim(ctx, "r1", h2)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if ok {
		t.Fatal("expected second claim to fail")
	}

	r, _ := rs.GetByID(ctx, "r1")
	if r.AcceptedBy != "helper1" {
		t.Errorf("accepted_by = %q, want helper1", r.AcceptedBy)
	}
	if r.Helper.Username != "helper1" || r.Helper.Address != "Calle helper1" {
		t.Errorf("helper slot = %+v, want helper1 contact", r.Helper)
	}
	if r.Elder.UserID != "elder1" {
		t.Errorf("elder slot changed: %+v", r.Elder)
	}

	n, err := rs.CountInProgress(ctx, "helper1")
	if err != nil {
		t.Fatalf("count in progress: %v", err)
	}
	if n != 1 {
		t.Errorf("in progress = %d, want 1", n)
	}

	accepted, _ := rs.ListAccepted(ctx, "helper1")
	if len(accepted) != 1 {
		t.Errorf("accepted = %d, want 1", len(accepted))
	}
}

func TestRequestTransition(t *testing.T) {
	rs, us := setupRequestTestDB(t)
	ctx := context.Background()
	elder := createTestUser(t, us, "elder1", model.RoleElder)
	helper := createTestUser(t, us, "helper1", model.RoleHelper)
	rs.Create(ctx, "r1", elder, model.NewRequest{Title: "A"}, created)

	ok, _ := rs.Transition(ctx, "r1", model.StatusAccepted, model.StatusCompleted, created)
	if ok {
		t.Fatal("expected transition from wrong status to fail")
	}

	rs.Claim(ctx, "r1", helper)
	done := created.Add(2 * time.Hour)
	ok, err := rs.Transition(ctx, "r1", model.StatusAccepted, model.StatusCompleted, done)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if !ok {
		t.Fatal("expected transition to succeed")
	}

	r, _ := rs.GetByID(ctx, "r1")
	if r.Status != model.StatusCompleted {
		t.Errorf("status = %q, want %q", r.Status, model.StatusCompleted)
	}
	if r.CompletedAt == nil || !r.CompletedAt.Equal(done) {
		t.Errorf("completed_at = %v, want %v", r.CompletedAt, done)
	}

	ok, _ = rs.Transition(ctx, "r1", model.StatusAccepted, model.StatusCompleted, done)
	if ok {
		t.Error("expected second completion to match no row")
	}
}

func TestRequestRelease(t *testing.T) {
	rs, us := setupRequestTestDB(t)
	ctx := context.Background()
	elder := createTestUser(t, us, "elder1", model.RoleElder)
	helper := createTestUser(t, us, "helper1", model.RoleHelper)
	rs.Create(ctx, "r1", elder, model.NewRequest{Title: "A"}, created)
	rs.Claim(ctx, "r1", helper)

	ok, err := rs.Release(ctx, "r1", helper)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if !ok {
		t.Fatal("expected release to succeed")
	}

	r, _ := rs.GetByID(ctx, "r1")
	if r.Status != model.StatusCreated || r.AcceptedBy != "" || !r.Helper.Empty() {
		t.Errorf("released request = %+v, want open with empty helper slot", r)
	}

	open, _ := rs.ListOpen(ctx, model.RoleHelper, model.UrgencyNone)
	if len(open) != 1 {
		t.Errorf("open = %d, want 1", len(open))
	}
}

func TestRequestDeleteUnclaimed(t *testing.T) {
	rs, us := setupRequestTestDB(t)
	ctx := context.Background()
	elder := createTestUser(t, us, "elder1", model.RoleElder)
	helper := createTestUser(t, us, "helper1", model.RoleHelper)
	rs.Create(ctx, "r1", elder, model.NewRequest{Title: "A"}, created)
	rs.Create(ctx, "r2", elder, model.NewRequest{Title: "B"}, created)

	if ok, _ := rs.DeleteUnclaimed(ctx, "r1", "helper1"); ok {
		t.Error("non-creator must not delete")
	}

	rs.Claim(ctx, "r2", helper)
	if ok, _ := rs.DeleteUnclaimed(ctx, "r2", "elder1"); ok {
		t.Error("claimed request must not be deleted")
	}

	ok, err := rs.DeleteUnclaimed(ctx, "r1", "elder1")
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !ok {
		t.Fatal("expected creator delete to succeed")
	}
	if r, _ := rs.GetByID(ctx, "r1"); r != nil {
		t.Error("expected nil after delete")
	}
}
