package bot

// User-facing texts owned by the front end. Everything content-related
// (reports, help, overviews) comes from the domain layer instead.
const (
	msgAskDistrict = "Für welchen Ort möchtest du Informationen erhalten? " +
		"Schicke mir den Namen oder teile deinen Standort."

	msgFeedbackPrompt = "Danke für deine Nachricht! Soll ich sie als Feedback " +
		"an mein Team weiterleiten?"
	msgFeedbackThanks = "Vielen Dank für dein Feedback!"

	msgDeletePrompt = "Sollen wirklich alle deine Daten inklusive Abos gelöscht werden?"

	msgMissingLanguage = "Bitte gib eine Sprache an, z. B. /sprache de."

	btnFeedbackConfirm = "Ja, Feedback senden"
	btnFeedbackDiscard = "Nein, verwerfen"
	btnDeleteConfirm   = "Ja, alles löschen"
	btnDeleteCancel    = "Abbrechen"
)
