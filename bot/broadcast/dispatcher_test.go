package broadcast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/casewatch/casebot/bot/escalate"
	"github.com/casewatch/casebot/domain"

	tele "gopkg.in/telebot.v4"
)

type fakeSource struct {
	reports   []domain.DailyReport
	confirmed []int64
}

func (f *fakeSource) UnconfirmedDailyReports(context.Context) ([]domain.DailyReport, error) {
	return f.reports, nil
}

func (f *fakeSource) ConfirmDailyReport(_ context.Context, userID int64) error {
	f.confirmed = append(f.confirmed, userID)
	return nil
}

type fakeUsers struct{ deleted []int64 }

func (f *fakeUsers) DeleteUser(_ context.Context, userID int64) (string, bool) {
	f.deleted = append(f.deleted, userID)
	return "removed", true
}

func reportsFor(ids ...int64) []domain.DailyReport {
	out := make([]domain.DailyReport, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.DailyReport{UserID: id, Message: "daily report"})
	}
	return out
}

func testDispatcher(send SendFunc, users *fakeUsers) *Dispatcher {
	w := NewFloodWindow(25, 1050*time.Millisecond)
	w.sleep = func(context.Context, time.Duration) error { return nil }
	return &Dispatcher{
		Window:     w,
		Photos:     NewPhotoCache(),
		Send:       send,
		Escalation: &escalate.Handler{Users: users},
	}
}

func TestDispatchDailyConfirmsDeliveredAndPrunesRevoked(t *testing.T) {
	src := &fakeSource{reports: reportsFor(1, 2, 3, 4, 5, 6, 7, 8, 9, 10)}
	users := &fakeUsers{}

	send := func(_ context.Context, userID int64, _ string) (int, error) {
		if userID == 4 {
			return 0, tele.ErrBlockedByUser
		}
		return 1, nil
	}

	d := testDispatcher(send, users)
	outcomes, err := d.DispatchDaily(context.Background(), src)
	if err != nil {
		t.Fatalf("DispatchDaily: %v", err)
	}
	if len(outcomes) != 10 {
		t.Fatalf("outcomes = %d, want one per recipient", len(outcomes))
	}

	var delivered, removed int
	for _, o := range outcomes {
		switch o.Status {
		case StatusDelivered:
			delivered++
		case StatusRemoved:
			removed++
			if o.UserID != 4 {
				t.Fatalf("wrong recipient pruned: %d", o.UserID)
			}
		}
	}
	if delivered != 9 || removed != 1 {
		t.Fatalf("delivered=%d removed=%d", delivered, removed)
	}
	if len(src.confirmed) != 9 {
		t.Fatalf("confirmed %d reports, want 9", len(src.confirmed))
	}
	for _, id := range src.confirmed {
		if id == 4 {
			t.Fatal("revoked recipient was confirmed")
		}
	}
	if len(users.deleted) != 1 || users.deleted[0] != 4 {
		t.Fatalf("deleted = %v", users.deleted)
	}
}

func TestDispatchDailyTransientFailureKeepsRecipient(t *testing.T) {
	src := &fakeSource{reports: reportsFor(1, 2)}
	users := &fakeUsers{}

	send := func(_ context.Context, userID int64, _ string) (int, error) {
		if userID == 1 {
			return 0, &tele.Error{Code: 400, Description: "Bad Request"}
		}
		return 1, nil
	}

	d := testDispatcher(send, users)
	outcomes, err := d.DispatchDaily(context.Background(), src)
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if len(outcomes) != 2 {
		t.Fatalf("outcomes = %d", len(outcomes))
	}
	if outcomes[0].Status != StatusFailed {
		t.Fatalf("first outcome = %v", outcomes[0].Status)
	}
	if outcomes[1].Status != StatusDelivered {
		t.Fatalf("second outcome = %v, failure must not abort the round", outcomes[1].Status)
	}
	if len(users.deleted) != 0 {
		t.Fatalf("transient failure pruned user: %v", users.deleted)
	}
	if len(src.confirmed) != 1 || src.confirmed[0] != 2 {
		t.Fatalf("confirmed = %v", src.confirmed)
	}
}

func TestDispatchDailyInvalidatesPhotoCache(t *testing.T) {
	src := &fakeSource{reports: reportsFor(1)}
	d := testDispatcher(func(context.Context, int64, string) (int, error) { return 1, nil }, &fakeUsers{})
	d.Photos.Put("graph.png", "handle-1")

	if _, err := d.DispatchDaily(context.Background(), src); err != nil {
		t.Fatalf("DispatchDaily: %v", err)
	}
	if d.Photos.Len() != 0 {
		t.Fatal("stale photo handles survived a fresh batch")
	}
}

func TestDispatchDailyRecordsReportedCallCount(t *testing.T) {
	src := &fakeSource{reports: reportsFor(1, 2)}
	d := testDispatcher(func(_ context.Context, userID int64, _ string) (int, error) {
		if userID == 1 {
			return 2, nil // long caption split into two calls
		}
		return 1, nil
	}, &fakeUsers{})

	if _, err := d.DispatchDaily(context.Background(), src); err != nil {
		t.Fatalf("DispatchDaily: %v", err)
	}
	if got := d.Window.Len(); got != 3 {
		t.Fatalf("window stamps = %d, want 3", got)
	}
}

func TestDispatchDailyEmptySetIsNoop(t *testing.T) {
	d := testDispatcher(func(context.Context, int64, string) (int, error) {
		t.Fatal("send called with no pending reports")
		return 0, nil
	}, &fakeUsers{})
	d.Photos.Put("graph.png", "handle-1")

	outcomes, err := d.DispatchDaily(context.Background(), &fakeSource{})
	if err != nil || outcomes != nil {
		t.Fatalf("outcomes=%v err=%v", outcomes, err)
	}
	if d.Photos.Len() != 1 {
		t.Fatal("empty batch must not invalidate the cache")
	}
}

func TestBroadcastAggregatesErrors(t *testing.T) {
	users := &fakeUsers{}
	failure := errors.New("wire: connection reset")
	d := testDispatcher(func(_ context.Context, userID int64, _ string) (int, error) {
		if userID%2 == 0 {
			return 0, &tele.Error{Code: 400, Description: failure.Error()}
		}
		return 1, nil
	}, users)

	outcomes, err := d.Broadcast(context.Background(), []int64{1, 2, 3, 4}, "maintenance tonight")
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if len(outcomes) != 4 {
		t.Fatalf("outcomes = %d", len(outcomes))
	}
}

func TestBroadcastCancelledContextStopsRound(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := testDispatcher(func(context.Context, int64, string) (int, error) { return 1, nil }, &fakeUsers{})
	if _, err := d.Broadcast(ctx, []int64{1, 2}, "hello"); err == nil {
		t.Fatal("expected context error")
	}
}
