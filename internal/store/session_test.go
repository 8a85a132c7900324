package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCredentialCreateAndLookup(t *testing.T) {
	cs := NewCredentialStore(openTestDB(t))
	ctx := context.Background()

	c, err := cs.Create(ctx, "u1", "alice@example.com", "hash")
	if err != nil {
		t.Fatalf("create credential: %v", err)
	}
	if c.VerifiedAt != nil {
		t.Error("new credential should be unverified")
	}

	if _, err := cs.Create(ctx, "u2", "alice@example.com", "hash"); !errors.Is(err, ErrDuplicate) {
		t.Errorf("duplicate email err = %v, want ErrDuplicate", err)
	}

	if err := cs.MarkVerified(ctx, "u1"); err != nil {
		t.Fatalf("mark verified: %v", err)
	}
	got, _ := cs.GetByEmail(ctx, "alice@example.com")
	if got == nil || got.VerifiedAt == nil {
		t.Errorf("credential = %+v, want verified", got)
	}
}

func TestSessionCreateAndExpire(t *testing.T) {
	db := openTestDB(t)
	cs := NewCredentialStore(db)
	ss := NewSessionStore(db)
	ctx := context.Background()
	cs.Create(ctx, "u1", "alice@example.com", "hash")

	sess, err := ss.Create(ctx, "u1", time.Hour)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	if len(sess.Token) != 64 {
		t.Errorf("token length = %d, want 64", len(sess.Token))
	}

	got, err := ss.GetByToken(ctx, sess.Token)
	if err != nil {
		t.Fatalf("get by token: %v", err)
	}
	if got == nil || got.UserID != "u1" {
		t.Fatalf("session = %+v, want u1", got)
	}

	expired, _ := ss.Create(ctx, "u1", -time.Minute)
	if got, _ := ss.GetByToken(ctx, expired.Token); got != nil {
		t.Error("expected nil for expired session")
	}

	n, err := ss.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted = %d, want 1", n)
	}

	if err := ss.DeleteByToken(ctx, sess.Token); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if got, _ := ss.GetByToken(ctx, sess.Token); got != nil {
		t.Error("expected nil after sign out")
	}
}

func TestVerificationCodeLifecycle(t *testing.T) {
	db := openTestDB(t)
	NewCredentialStore(db).Create(context.Background(), "u1", "alice@example.com", "hash")
	vs := NewVerificationStore(db)
	ctx := context.Background()

	first, err := vs.Create(ctx, "u1")
	if err != nil {
		t.Fatalf("create code: %v", err)
	}
	if len(first.Code) != 6 {
		t.Errorf("code length = %d, want 6", len(first.Code))
	}

	second, _ := vs.Create(ctx, "u1")
	latest, err := vs.GetLatest(ctx, "u1")
	if err != nil {
		t.Fatalf("get latest: %v", err)
	}
	if latest == nil || latest.ID != second.ID {
		t.Fatalf("latest = %+v, want second code", latest)
	}

	for i := 0; i < 3; i++ {
		ok, err := vs.UseAttempt(ctx, second.ID, 3)
		if err != nil {
			t.Fatalf("use attempt %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("attempt %d refused, want allowed", i)
		}
	}
	if ok, _ := vs.UseAttempt(ctx, second.ID, 3); ok {
		t.Error("attempt past the cap was allowed")
	}
	if got, _ := vs.GetLatest(ctx, "u1"); got == nil || got.Attempts != 3 {
		t.Errorf("stored attempts = %+v, want 3", got)
	}

	vs.MarkUsed(ctx, second.ID)
	if got, _ := vs.GetLatest(ctx, "u1"); got != nil {
		t.Error("expected no pending code after use")
	}
}
