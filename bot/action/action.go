// Package action encodes interactive-button actions into compact callback
// tokens and decodes them back. A token is the verb name optionally followed
// by a decimal district id, e.g. "SUBSCRIBE11000". Decoding never fails with
// an error; anything that does not parse cleanly comes back as Unrecognized.
package action

import "strconv"

// Verb identifies the operation an inline button stands for.
type Verb int

const (
	// Unrecognized marks a token that did not decode; callers show a generic
	// error and must not mutate any state.
	Unrecognized Verb = iota
	// Subscribe adds a district subscription.
	Subscribe
	// Unsubscribe removes a district subscription.
	Unsubscribe
	// Report requests the full report for a district.
	Report
	// ChooseAction opens the per-district action menu.
	ChooseAction
	// DeleteMe erases all data stored for the user.
	DeleteMe
	// Discard removes the interactive message without further effect.
	Discard
	// ConfirmFeedback submits previously captured free text as feedback.
	ConfirmFeedback
)

// Token carries a decoded callback payload.
type Token struct {
	Verb     Verb
	District int
	// HasDistrict distinguishes "no id" from district 0 (the federal level).
	HasDistrict bool
}

// prefixes maps verbs to their wire names. No name may be a prefix of
// another; decoding scans them in this fixed order and takes the first match.
var prefixes = []struct {
	verb Verb
	name string
	arg  bool
}{
	{Subscribe, "SUBSCRIBE", true},
	{Unsubscribe, "UNSUBSCRIBE", true},
	{Report, "REPORT", true},
	{ChooseAction, "CHOOSE_ACTION", true},
	{DeleteMe, "DELETE_ME", false},
	{Discard, "DISCARD", false},
	{ConfirmFeedback, "CONFIRM_FEEDBACK", false},
}

// Encode produces the callback token for a verb without a district id.
func Encode(v Verb) string {
	for _, p := range prefixes {
		if p.verb == v {
			return p.name
		}
	}
	return ""
}

// EncodeDistrict produces the callback token for a verb acting on a district.
func EncodeDistrict(v Verb, districtID int) string {
	name := Encode(v)
	if name == "" {
		return ""
	}
	return name + strconv.Itoa(districtID)
}

// Decode parses a callback token. Malformed input yields a Token with
// Verb == Unrecognized; it never panics or returns an error.
func Decode(data string) Token {
	for _, p := range prefixes {
		if len(data) < len(p.name) || data[:len(p.name)] != p.name {
			continue
		}
		rest := data[len(p.name):]
		if rest == "" {
			if p.arg {
				// district-taking verbs require a trailing id
				return Token{Verb: Unrecognized}
			}
			return Token{Verb: p.verb}
		}
		if !p.arg {
			return Token{Verb: Unrecognized}
		}
		id, err := strconv.Atoi(rest)
		if err != nil || id < 0 {
			return Token{Verb: Unrecognized}
		}
		return Token{Verb: p.verb, District: id, HasDistrict: true}
	}
	return Token{Verb: Unrecognized}
}

// String returns the wire name of the verb, or "unrecognized".
func (v Verb) String() string {
	if name := Encode(v); name != "" {
		return name
	}
	return "unrecognized"
}
