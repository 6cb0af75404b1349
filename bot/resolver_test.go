package bot

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/casewatch/casebot/bot/action"
	"github.com/casewatch/casebot/domain"

	tele "gopkg.in/telebot.v4"
)

// stubService cans the domain answers the resolver needs and records calls.
type stubService struct {
	subscribed   []int
	unsubscribed []int
	deleted      []int64
	feedback     []string
	feedbackErr  error
}

func (s *stubService) StartMessage(context.Context, int64, string, string) string { return "start" }
func (s *stubService) HelpMessage(context.Context, int64) string          { return "help" }
func (s *stubService) ExplainMessage(context.Context) string              { return "info" }
func (s *stubService) PrivacyMessage(context.Context) string              { return "privacy" }
func (s *stubService) DebugReport(context.Context, int64) string          { return "debug" }
func (s *stubService) SetLanguage(context.Context, int64, string) string  { return "lang" }
func (s *stubService) UnknownAction(context.Context) string               { return "unknown action" }
func (s *stubService) ErrorMessage(context.Context) string                { return "sorry" }

func (s *stubService) FindDistrict(context.Context, string) (string, []domain.District) {
	return "", nil
}
func (s *stubService) FindDistrictByLocation(context.Context, float64, float64) (string, []domain.District) {
	return "", nil
}
func (s *stubService) Overview(context.Context, int64) (string, []domain.District) {
	return "overview", nil
}

func (s *stubService) PossibleActions(_ context.Context, _ int64, districtID int) (string, []domain.Action) {
	return fmt.Sprintf("actions for %d", districtID), []domain.Action{
		{Label: "Bericht", Kind: domain.ActionReport},
		{Label: "Abo", Kind: domain.ActionSubscribe},
	}
}

func (s *stubService) Subscribe(_ context.Context, _ int64, districtID int) string {
	s.subscribed = append(s.subscribed, districtID)
	return "subscribed"
}

func (s *stubService) Unsubscribe(_ context.Context, _ int64, districtID int) string {
	s.unsubscribed = append(s.unsubscribed, districtID)
	return "unsubscribed"
}

func (s *stubService) DeleteUser(_ context.Context, userID int64) (string, bool) {
	s.deleted = append(s.deleted, userID)
	return "deleted", true
}

func (s *stubService) DistrictReport(_ context.Context, districtID int) string {
	return fmt.Sprintf("report %d", districtID)
}
func (s *stubService) Report(context.Context, int64) string              { return "personal report" }
func (s *stubService) Statistic(context.Context) string                  { return "stats" }
func (s *stubService) VaccinationOverview(context.Context, int) string   { return "vaccinations" }
func (s *stubService) UnconfirmedDailyReports(context.Context) ([]domain.DailyReport, error) {
	return nil, nil
}
func (s *stubService) ConfirmDailyReport(context.Context, int64) error { return nil }

func (s *stubService) AddFeedback(_ context.Context, _ int64, text string) error {
	if s.feedbackErr != nil {
		return s.feedbackErr
	}
	s.feedback = append(s.feedback, text)
	return nil
}

func (s *stubService) AllUserIDs(context.Context) ([]int64, error) { return nil, nil }

// fakePage records what the resolver did to the message.
type fakePage struct {
	chatID    int64
	messageID int
	userID    int64

	acks    int
	edits   []string
	markups []*tele.ReplyMarkup
	deleted bool
}

func (p *fakePage) Ack() error { p.acks++; return nil }
func (p *fakePage) Edit(text string, markup *tele.ReplyMarkup) error {
	p.edits = append(p.edits, text)
	p.markups = append(p.markups, markup)
	return nil
}
func (p *fakePage) Delete() error  { p.deleted = true; return nil }
func (p *fakePage) ChatID() int64  { return p.chatID }
func (p *fakePage) MessageID() int { return p.messageID }
func (p *fakePage) UserID() int64  { return p.userID }

type fakeReporter struct {
	sent []int
	err  error
}

func (f *fakeReporter) SendDistrictReport(_ context.Context, _ int64, districtID int) error {
	f.sent = append(f.sent, districtID)
	return f.err
}

func newTestResolver() (*Resolver, *stubService, *fakeReporter) {
	svc := &stubService{}
	rep := &fakeReporter{}
	return NewResolver(svc, rep), svc, rep
}

func page() *fakePage {
	return &fakePage{chatID: 100, messageID: 555, userID: 7}
}

func TestResolveSubscribeEditsWithRefreshedActions(t *testing.T) {
	r, svc, _ := newTestResolver()
	p := page()

	err := r.Resolve(context.Background(), p, action.EncodeDistrict(action.Subscribe, 42))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if p.acks != 1 {
		t.Fatalf("acks = %d, want exactly one", p.acks)
	}
	if len(svc.subscribed) != 1 || svc.subscribed[0] != 42 {
		t.Fatalf("subscribed = %v", svc.subscribed)
	}
	if len(p.edits) != 1 || p.edits[0] != "subscribed" {
		t.Fatalf("edits = %v", p.edits)
	}
	if p.markups[0] == nil {
		t.Fatal("expected refreshed action keyboard")
	}
}

func TestResolveChooseActionShowsActions(t *testing.T) {
	r, _, _ := newTestResolver()
	p := page()

	if err := r.Resolve(context.Background(), p, action.EncodeDistrict(action.ChooseAction, 9)); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(p.edits) != 1 || p.edits[0] != "actions for 9" {
		t.Fatalf("edits = %v", p.edits)
	}
	markup := p.markups[0]
	if markup == nil || len(markup.InlineKeyboard) != 2 {
		t.Fatalf("markup = %+v", markup)
	}
	if got := markup.InlineKeyboard[0][0].Data; got != action.EncodeDistrict(action.Report, 9) {
		t.Fatalf("first button data = %q", got)
	}
}

func TestResolveReportDeletesAndSuppresses(t *testing.T) {
	r, _, rep := newTestResolver()
	p := page()

	if err := r.Resolve(context.Background(), p, action.EncodeDistrict(action.Report, 3)); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(rep.sent) != 1 || rep.sent[0] != 3 {
		t.Fatalf("sent = %v", rep.sent)
	}
	if !p.deleted {
		t.Fatal("keyboard message was not deleted")
	}

	// A second press on the same message only acks.
	p2 := page()
	if err := r.Resolve(context.Background(), p2, action.EncodeDistrict(action.Report, 3)); err != nil {
		t.Fatalf("Resolve on suppressed: %v", err)
	}
	if p2.acks != 1 {
		t.Fatalf("suppressed press acks = %d", p2.acks)
	}
	if len(rep.sent) != 1 {
		t.Fatalf("suppressed press sent another report: %v", rep.sent)
	}
	if len(p2.edits) != 0 || p2.deleted {
		t.Fatal("suppressed press had side effects")
	}
}

func TestResolveReportSuppressesEvenWhenSendFails(t *testing.T) {
	r, _, rep := newTestResolver()
	rep.err = errors.New("wire down")
	p := page()

	if err := r.Resolve(context.Background(), p, action.EncodeDistrict(action.Report, 3)); err == nil {
		t.Fatal("expected send error")
	}
	if !p.deleted {
		t.Fatal("failed send must still retire the keyboard")
	}
	if !r.suppressed.Contains(p.ChatID(), p.MessageID()) {
		t.Fatal("message not suppressed after failed send")
	}
}

func TestResolveDeleteMe(t *testing.T) {
	r, svc, _ := newTestResolver()
	p := page()

	if err := r.Resolve(context.Background(), p, action.Encode(action.DeleteMe)); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(svc.deleted) != 1 || svc.deleted[0] != 7 {
		t.Fatalf("deleted = %v", svc.deleted)
	}
	if len(p.edits) != 1 || p.edits[0] != "deleted" {
		t.Fatalf("edits = %v", p.edits)
	}
	if !r.suppressed.Contains(p.ChatID(), p.MessageID()) {
		t.Fatal("confirmation keyboard still live after deletion")
	}
}

func TestResolveFeedbackConfirmConsumesPending(t *testing.T) {
	r, svc, _ := newTestResolver()
	p := page()

	r.Feedback().Put(p.ChatID(), "older text")
	r.Feedback().Put(p.ChatID(), "newer text")

	if err := r.Resolve(context.Background(), p, action.Encode(action.ConfirmFeedback)); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(svc.feedback) != 1 || svc.feedback[0] != "newer text" {
		t.Fatalf("feedback = %v, newer candidate must win", svc.feedback)
	}

	// Second confirm finds nothing pending and shows the generic error.
	p2 := page()
	if err := r.Resolve(context.Background(), p2, action.Encode(action.ConfirmFeedback)); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(svc.feedback) != 1 {
		t.Fatalf("feedback stored twice: %v", svc.feedback)
	}
	if len(p2.edits) != 1 || p2.edits[0] != "sorry" {
		t.Fatalf("empty confirm edits = %v, want the generic error", p2.edits)
	}
}

func TestResolveDiscardDeletesAndSuppresses(t *testing.T) {
	r, svc, _ := newTestResolver()
	p := page()

	r.Feedback().Put(p.ChatID(), "text")
	if err := r.Resolve(context.Background(), p, action.Encode(action.Discard)); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := r.Feedback().Take(p.ChatID()); ok {
		t.Fatal("pending feedback survived discard")
	}
	if len(svc.feedback) != 0 {
		t.Fatalf("discarded feedback was stored: %v", svc.feedback)
	}
	if !p.deleted {
		t.Fatal("discard left the prompt message alive")
	}
	if len(p.edits) != 0 {
		t.Fatalf("discard edited instead of deleting: %v", p.edits)
	}
	if !r.suppressed.Contains(p.ChatID(), p.MessageID()) {
		t.Fatal("discarded message not suppressed")
	}

	// A late press on the deleted prompt only acks.
	p2 := page()
	if err := r.Resolve(context.Background(), p2, action.Encode(action.ConfirmFeedback)); err != nil {
		t.Fatalf("Resolve on suppressed: %v", err)
	}
	if p2.acks != 1 || len(p2.edits) != 0 || p2.deleted {
		t.Fatal("suppressed press had side effects")
	}
}

func TestResolveFeedbackKeyedByChat(t *testing.T) {
	r, svc, _ := newTestResolver()

	// Pending text lives on the chat, so another member of the same chat
	// confirms it.
	r.Feedback().Put(100, "from the group")
	other := &fakePage{chatID: 100, messageID: 556, userID: 8}
	if err := r.Resolve(context.Background(), other, action.Encode(action.ConfirmFeedback)); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(svc.feedback) != 1 || svc.feedback[0] != "from the group" {
		t.Fatalf("feedback = %v", svc.feedback)
	}
}

func TestResolveUnrecognizedFailsClosed(t *testing.T) {
	r, svc, rep := newTestResolver()
	for _, data := range []string{"", "NOPE", "SUBSCRIBE", "SUBSCRIBEabc"} {
		p := page()
		if err := r.Resolve(context.Background(), p, data); err != nil {
			t.Fatalf("Resolve(%q): %v", data, err)
		}
		if p.acks != 1 {
			t.Fatalf("Resolve(%q) acks = %d", data, p.acks)
		}
		if len(p.edits) != 1 || p.edits[0] != "unknown action" {
			t.Fatalf("Resolve(%q) edits = %v", data, p.edits)
		}
	}
	if len(svc.subscribed)+len(svc.unsubscribed)+len(svc.deleted) != 0 {
		t.Fatal("unrecognized data mutated state")
	}
	if len(rep.sent) != 0 {
		t.Fatal("unrecognized data sent a report")
	}
}
