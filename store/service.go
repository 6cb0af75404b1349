package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/casewatch/casebot/core/logger"
	"github.com/casewatch/casebot/domain"
	"log/slog"
)

// Service implements the domain port on top of the Postgres store. Message
// texts are composed here; the front end never formats report content.
type Service struct {
	store *Store
}

var _ domain.Service = (*Service)(nil)

// NewService builds the domain service.
func NewService(store *Store) *Service {
	return &Service{store: store}
}

func (s *Service) fail(ctx context.Context, op string, err error) {
	logger.SVCUsers.LogAttrs(ctx, slog.LevelError, op,
		slog.String("event", "svc."+op),
		slog.String("status", "fail"),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
}

func (s *Service) StartMessage(ctx context.Context, userID int64, name, lang string) string {
	if err := s.store.EnsureUser(ctx, userID, lang); err != nil {
		s.fail(ctx, "start", err)
	}
	greeting := "Hallo"
	if name != "" {
		greeting = "Hallo " + name
	}
	return greeting + "!\n" +
		"Ich schicke dir aktuelle Fallzahlen für deine Orte. " +
		"Schicke mir einen Ortsnamen oder deinen Standort, um loszulegen. " +
		"Mit /hilfe siehst du alle Befehle."
}

func (s *Service) HelpMessage(ctx context.Context, userID int64) string {
	return "Das kann ich für dich tun:\n" +
		"/ort <Name> – Bericht für einen Ort\n" +
		"/abo <Name> – Ort abonnieren oder Abos anzeigen\n" +
		"/beende <Name> – Abo beenden\n" +
		"/bericht – dein persönlicher Bericht\n" +
		"/impfungen – Impfbericht\n" +
		"/statistik – Nutzungsstatistik\n" +
		"/sprache <Code> – Sprache ändern\n" +
		"/info – Erläuterung der Kennzahlen\n" +
		"/datenschutz – Datenschutzerklärung\n" +
		"/loeschmich – alle Daten löschen"
}

func (s *Service) ExplainMessage(ctx context.Context) string {
	return "Die 7-Tage-Inzidenz ist die Zahl der Neuinfektionen je 100.000 " +
		"Einwohner innerhalb der letzten sieben Tage. Alle Angaben stammen " +
		"aus den offiziell gemeldeten Daten; Nachmeldungen können die Werte " +
		"im Nachhinein verändern."
}

func (s *Service) PrivacyMessage(ctx context.Context) string {
	return "Gespeichert werden nur deine Telegram-Nutzerkennung, deine " +
		"Spracheinstellung und deine Abos. Mit /loeschmich entfernst du " +
		"alle Daten dauerhaft."
}

func (s *Service) DebugReport(ctx context.Context, userID int64) string {
	subs, err := s.store.Subscriptions(ctx, userID)
	if err != nil {
		s.fail(ctx, "debug", err)
		return "Debug nicht verfügbar."
	}
	names := make([]string, 0, len(subs))
	for _, d := range subs {
		names = append(names, fmt.Sprintf("%s (%d)", d.Name, d.ID))
	}
	return fmt.Sprintf("uid=%d\nabos=%s", userID, strings.Join(names, ", "))
}

func (s *Service) SetLanguage(ctx context.Context, userID int64, lang string) string {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if err := s.store.SetLanguage(ctx, userID, lang); err != nil {
		s.fail(ctx, "set_language", err)
		return s.ErrorMessage(ctx)
	}
	return fmt.Sprintf("Deine Sprache ist jetzt %q.", lang)
}

func (s *Service) UnknownAction(ctx context.Context) string {
	return "Diese Aktion kenne ich nicht. Versuche es mit /hilfe."
}

func (s *Service) ErrorMessage(ctx context.Context) string {
	return "Entschuldige, da ist etwas schiefgelaufen. Bitte versuche es " +
		"später noch einmal."
}

func (s *Service) FindDistrict(ctx context.Context, query string) (string, []domain.District) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "Bitte gib einen Ortsnamen an.", nil
	}
	districts, err := s.store.SearchDistricts(ctx, query)
	if err != nil {
		s.fail(ctx, "find_district", err)
		return s.ErrorMessage(ctx), nil
	}
	switch len(districts) {
	case 0:
		return fmt.Sprintf("Ich habe keinen Ort zu %q gefunden.", query), nil
	case 1:
		return districts[0].Name, districts
	default:
		return fmt.Sprintf("Mehrere Orte passen zu %q, bitte wähle aus:", query), districts
	}
}

// FindDistrictByLocation is not backed by geodata in this deployment; users
// are pointed at the name lookup instead.
func (s *Service) FindDistrictByLocation(ctx context.Context, lon, lat float64) (string, []domain.District) {
	return "Standorte kann ich gerade nicht auflösen. " +
		"Schicke mir stattdessen den Ortsnamen.", nil
}

func (s *Service) Overview(ctx context.Context, userID int64) (string, []domain.District) {
	subs, err := s.store.Subscriptions(ctx, userID)
	if err != nil {
		s.fail(ctx, "overview", err)
		return s.ErrorMessage(ctx), nil
	}
	if len(subs) == 0 {
		return "Du hast noch keine Abos. Schicke mir einen Ortsnamen, " +
			"um einen Ort zu abonnieren.", nil
	}
	return "Deine Abos – tippe einen Ort an, um ihn zu verwalten:", subs
}

func (s *Service) PossibleActions(ctx context.Context, userID int64, districtID int) (string, []domain.Action) {
	rec, err := s.store.District(ctx, districtID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.fail(ctx, "possible_actions", err)
		}
		return s.UnknownAction(ctx), nil
	}

	actions := []domain.Action{{Label: "📈 Bericht", Kind: domain.ActionReport}}
	subscribed, err := s.store.IsSubscribed(ctx, userID, districtID)
	if err != nil {
		s.fail(ctx, "possible_actions", err)
		return s.ErrorMessage(ctx), nil
	}
	if subscribed {
		actions = append(actions, domain.Action{Label: "🔕 Abo beenden", Kind: domain.ActionUnsubscribe})
	} else {
		actions = append(actions, domain.Action{Label: "🔔 Abonnieren", Kind: domain.ActionSubscribe})
	}
	return fmt.Sprintf("Was möchtest du für %s tun?", rec.Name), actions
}

func (s *Service) Subscribe(ctx context.Context, userID int64, districtID int) string {
	rec, err := s.store.District(ctx, districtID)
	if err != nil {
		return s.UnknownAction(ctx)
	}
	added, err := s.store.Subscribe(ctx, userID, districtID)
	if err != nil {
		s.fail(ctx, "subscribe", err)
		return s.ErrorMessage(ctx)
	}
	if !added {
		return fmt.Sprintf("Du hast %s bereits abonniert.", rec.Name)
	}
	return fmt.Sprintf("Du erhältst ab jetzt täglich den Bericht für %s.", rec.Name)
}

func (s *Service) Unsubscribe(ctx context.Context, userID int64, districtID int) string {
	rec, err := s.store.District(ctx, districtID)
	if err != nil {
		return s.UnknownAction(ctx)
	}
	removed, err := s.store.Unsubscribe(ctx, userID, districtID)
	if err != nil {
		s.fail(ctx, "unsubscribe", err)
		return s.ErrorMessage(ctx)
	}
	if !removed {
		return fmt.Sprintf("Du hattest %s nicht abonniert.", rec.Name)
	}
	return fmt.Sprintf("Dein Abo für %s ist beendet.", rec.Name)
}

func (s *Service) DeleteUser(ctx context.Context, userID int64) (string, bool) {
	removed, err := s.store.DeleteUser(ctx, userID)
	if err != nil {
		s.fail(ctx, "delete_user", err)
		return s.ErrorMessage(ctx), false
	}
	if !removed {
		return "Es waren keine Daten über dich gespeichert.", false
	}
	return "Alle deine Daten wurden gelöscht.", true
}

func (s *Service) DistrictReport(ctx context.Context, districtID int) string {
	rec, err := s.store.District(ctx, districtID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.fail(ctx, "district_report", err)
		}
		return s.UnknownAction(ctx)
	}
	return formatDistrict(rec)
}

func (s *Service) Report(ctx context.Context, userID int64) string {
	subs, err := s.store.Subscriptions(ctx, userID)
	if err != nil {
		s.fail(ctx, "report", err)
		return s.ErrorMessage(ctx)
	}
	if len(subs) == 0 {
		return "Du hast noch keine Abos, daher gibt es keinen persönlichen " +
			"Bericht. Schicke mir einen Ortsnamen, um einen Ort zu abonnieren."
	}

	var b strings.Builder
	b.WriteString("<b>Dein täglicher Bericht</b>\n")
	for _, d := range subs {
		rec, err := s.store.District(ctx, d.ID)
		if err != nil {
			continue
		}
		b.WriteString("\n")
		b.WriteString(formatDistrict(rec))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *Service) Statistic(ctx context.Context) string {
	counters, err := s.store.Count(ctx)
	if err != nil {
		s.fail(ctx, "statistic", err)
		return s.ErrorMessage(ctx)
	}
	top, err := s.store.TopDistricts(ctx, 5)
	if err != nil {
		s.fail(ctx, "statistic", err)
		return s.ErrorMessage(ctx)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Aktuell nutzen %d Personen diesen Bot mit %d Abos.\n",
		counters.Users, counters.Subscriptions)
	if len(top) > 0 {
		b.WriteString("Beliebteste Orte:\n")
		for i, d := range top {
			fmt.Fprintf(&b, "%d. %s\n", i+1, d.Name)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (s *Service) VaccinationOverview(ctx context.Context, districtID int) string {
	rec, err := s.store.District(ctx, districtID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.fail(ctx, "vaccination", err)
		}
		return s.UnknownAction(ctx)
	}
	if !rec.VaccFirst.Valid && !rec.VaccFull.Valid {
		return fmt.Sprintf("Für %s liegen keine Impfdaten vor.", rec.Name)
	}
	return fmt.Sprintf("<b>Impfungen in %s</b>\nErstimpfungen: %s\nVollständig geimpft: %s",
		rec.Name, formatCount(rec.VaccFirst), formatCount(rec.VaccFull))
}

func (s *Service) UnconfirmedDailyReports(ctx context.Context) ([]domain.DailyReport, error) {
	date, ok, err := s.store.LatestReportDate(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	userIDs, err := s.store.UnconfirmedUsers(ctx, date)
	if err != nil {
		return nil, err
	}
	reports := make([]domain.DailyReport, 0, len(userIDs))
	for _, userID := range userIDs {
		reports = append(reports, domain.DailyReport{
			UserID:  userID,
			Message: s.Report(ctx, userID),
		})
	}
	return reports, nil
}

func (s *Service) ConfirmDailyReport(ctx context.Context, userID int64) error {
	date, ok, err := s.store.LatestReportDate(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	return s.store.ConfirmReport(ctx, userID, date)
}

func (s *Service) AddFeedback(ctx context.Context, userID int64, text string) error {
	return s.store.AddFeedback(ctx, userID, text)
}

func (s *Service) AllUserIDs(ctx context.Context) ([]int64, error) {
	return s.store.AllUserIDs(ctx)
}

func formatDistrict(rec DistrictRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "📍 <b>%s</b>\n", rec.Name)
	if rec.Incidence.Valid {
		fmt.Fprintf(&b, "7-Tage-Inzidenz: %.1f\n", rec.Incidence.Float64)
	}
	fmt.Fprintf(&b, "Neuinfektionen: %s\n", formatCount(rec.NewCases))
	fmt.Fprintf(&b, "Todesfälle: %s", formatCount(rec.NewDeaths))
	if rec.ReportDate.Valid {
		fmt.Fprintf(&b, "\nStand: %s", rec.ReportDate.Time.Format("02.01.2006"))
	}
	return b.String()
}

func formatCount(v sql.NullInt64) string {
	if !v.Valid {
		return "unbekannt"
	}
	return formatThousands(v.Int64)
}

// formatThousands renders 1234567 as "1.234.567".
func formatThousands(n int64) string {
	neg := n < 0
	if neg {
		n = -n
	}
	digits := fmt.Sprintf("%d", n)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
		if len(digits) > lead {
			b.WriteByte('.')
		}
	}
	for i := lead; i < len(digits); i += 3 {
		b.WriteString(digits[i : i+3])
		if i+3 < len(digits) {
			b.WriteByte('.')
		}
	}
	return b.String()
}
