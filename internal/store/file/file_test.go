package file

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/aousabdo/meetingsage/internal/domain"
	"github.com/aousabdo/meetingsage/internal/ports"
)

func newTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := New(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("creating store: %v", err)
	}
	return s, dir
}

func TestMeetingCRUD(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateMeeting(ctx, domain.Meeting{
		Title:  "Weekly sync",
		UserID: "u1",
		ActionItems: []domain.ActionItem{
			{Description: "send notes", Status: domain.StatusPending},
		},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}

	m, err := s.Meeting(ctx, id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if m.Title != "Weekly sync" || m.CreatedAt.IsZero() {
		t.Fatalf("unexpected meeting: %+v", m)
	}

	newTitle := "Renamed sync"
	if err := s.UpdateMeeting(ctx, id, domain.MeetingUpdate{Title: &newTitle}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	m, _ = s.Meeting(ctx, id)
	if m.Title != newTitle {
		t.Fatalf("title not updated: %q", m.Title)
	}
	if !m.UpdatedAt.After(m.CreatedAt) && !m.UpdatedAt.Equal(m.CreatedAt) {
		t.Fatal("updated_at should move forward")
	}
	if len(m.ActionItems) != 1 {
		t.Fatal("untouched fields should survive a partial update")
	}

	if err := s.DeleteMeeting(ctx, id); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := s.Meeting(ctx, id); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := s.DeleteMeeting(ctx, id); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("double delete should report not found, got %v", err)
	}
}

func TestMeetingsByUserSortsNewestFirst(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()

	var ids []string
	for _, title := range []string{"first", "second", "third"} {
		id, err := s.CreateMeeting(ctx, domain.Meeting{Title: title, UserID: "u1"})
		if err != nil {
			t.Fatalf("create failed: %v", err)
		}
		ids = append(ids, id)
		time.Sleep(2 * time.Millisecond)
	}
	if _, err := s.CreateMeeting(ctx, domain.Meeting{Title: "other user", UserID: "u2"}); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	meetings, err := s.MeetingsByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(meetings) != 3 {
		t.Fatalf("expected 3 meetings, got %d", len(meetings))
	}
	if meetings[0].Title != "third" || meetings[2].Title != "first" {
		t.Fatalf("wrong order: %q, %q, %q", meetings[0].Title, meetings[1].Title, meetings[2].Title)
	}
	_ = ids
}

func TestReloadPersistsAcrossInstances(t *testing.T) {
	t.Parallel()

	s, dir := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateMeeting(ctx, domain.Meeting{Title: "durable", UserID: "u1"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	reopened, err := New(dir, zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	m, err := reopened.Meeting(ctx, id)
	if err != nil {
		t.Fatalf("get after reload failed: %v", err)
	}
	if m.Title != "durable" {
		t.Fatalf("unexpected meeting after reload: %+v", m)
	}
}

func TestCreateMeetingCoercesUnknownStatus(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateMeeting(ctx, domain.Meeting{
		Title:  "sync",
		UserID: "u1",
		ActionItems: []domain.ActionItem{
			{Description: "task", Status: domain.ActionItemStatus("weird")},
		},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	m, _ := s.Meeting(ctx, id)
	if m.ActionItems[0].Status != domain.StatusPending {
		t.Fatalf("expected coerced status, got %q", m.ActionItems[0].Status)
	}
}

func TestUserLifecycle(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()

	id, err := s.CreateUser(ctx, domain.User{Username: "dana", Email: "dana@example.com"})
	if err != nil {
		t.Fatalf("create user failed: %v", err)
	}

	if _, err := s.CreateUser(ctx, domain.User{Username: "dana"}); err == nil {
		t.Fatal("duplicate username should fail")
	}

	u, err := s.UserByUsername(ctx, "dana")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if u.ID != id || u.LastLogin != nil {
		t.Fatalf("unexpected user: %+v", u)
	}

	if err := s.TouchLogin(ctx, id); err != nil {
		t.Fatalf("touch login failed: %v", err)
	}
	u, _ = s.UserByUsername(ctx, "dana")
	if u.LastLogin == nil {
		t.Fatal("expected last login timestamp")
	}

	if _, err := s.UserByUsername(ctx, "nobody"); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
