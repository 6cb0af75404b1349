// Package domain declares the ports the Telegram front end talks to. The
// decision-making component behind them owns users, subscriptions and report
// content; the front end only routes interactions and delivers messages.
package domain

import "context"

// District is a geographic unit the domain layer resolves by name or id.
type District struct {
	ID   int
	Name string
}

// ActionKind enumerates operations currently valid for a (user, district) pair.
type ActionKind int

const (
	// ActionReport offers the district report.
	ActionReport ActionKind = iota
	// ActionSubscribe offers a new subscription.
	ActionSubscribe
	// ActionUnsubscribe offers cancelling an existing subscription.
	ActionUnsubscribe
)

// Action pairs a user-visible label with the operation it triggers.
type Action struct {
	Label string
	Kind  ActionKind
}

// DailyReport is one pending notification for one recipient.
type DailyReport struct {
	UserID  int64
	Message string
}

// Service is the decision-making component. All user and subscription state
// lives behind it; the front end never touches storage directly.
type Service interface {
	StartMessage(ctx context.Context, userID int64, name, lang string) string
	HelpMessage(ctx context.Context, userID int64) string
	ExplainMessage(ctx context.Context) string
	PrivacyMessage(ctx context.Context) string
	DebugReport(ctx context.Context, userID int64) string
	SetLanguage(ctx context.Context, userID int64, lang string) string
	UnknownAction(ctx context.Context) string
	ErrorMessage(ctx context.Context) string

	// FindDistrict resolves a free-text query. The message is always set;
	// the slice may be empty (no match), a single district, or candidates.
	FindDistrict(ctx context.Context, query string) (string, []District)
	// FindDistrictByLocation resolves a shared location to districts.
	FindDistrictByLocation(ctx context.Context, lon, lat float64) (string, []District)

	// Overview lists the user's subscribed districts.
	Overview(ctx context.Context, userID int64) (string, []District)
	// PossibleActions returns the operations valid for the pair right now:
	// Subscribe is never offered for an already subscribed district, and
	// Unsubscribe never for an unsubscribed one.
	PossibleActions(ctx context.Context, userID int64, districtID int) (string, []Action)

	Subscribe(ctx context.Context, userID int64, districtID int) string
	Unsubscribe(ctx context.Context, userID int64, districtID int) string
	// DeleteUser erases everything stored for the user and reports whether
	// anything was removed.
	DeleteUser(ctx context.Context, userID int64) (string, bool)

	DistrictReport(ctx context.Context, districtID int) string
	// Report builds the personal report for a user's subscriptions.
	Report(ctx context.Context, userID int64) string
	Statistic(ctx context.Context) string
	VaccinationOverview(ctx context.Context, districtID int) string

	// UnconfirmedDailyReports lists recipients still owed today's report.
	UnconfirmedDailyReports(ctx context.Context) ([]DailyReport, error)
	// ConfirmDailyReport marks today's report delivered for the user.
	// Confirming an already confirmed report is a no-op.
	ConfirmDailyReport(ctx context.Context, userID int64) error

	AddFeedback(ctx context.Context, userID int64, text string) error
	AllUserIDs(ctx context.Context) ([]int64, error)
}

// Visualizer renders graphs and returns local file paths for upload.
// District id 0 addresses the country-wide aggregate.
type Visualizer interface {
	InfectionsGraph(districtID int) (string, error)
	IncidenceGraph(districtID int) (string, error)
	VaccinationGraph(districtID int) (string, error)
	UserGraph() (string, error)
}
