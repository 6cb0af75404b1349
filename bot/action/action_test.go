package action

import "testing"

func TestRoundTripDistrictVerbs(t *testing.T) {
	verbs := []Verb{Subscribe, Unsubscribe, Report, ChooseAction}
	ids := []int{0, 1, 42, 11000, 16077}
	for _, v := range verbs {
		for _, id := range ids {
			tok := Decode(EncodeDistrict(v, id))
			if tok.Verb != v {
				t.Errorf("verb %s id %d: decoded verb %s", v, id, tok.Verb)
			}
			if !tok.HasDistrict || tok.District != id {
				t.Errorf("verb %s id %d: decoded district %d (has=%v)", v, id, tok.District, tok.HasDistrict)
			}
		}
	}
}

func TestRoundTripBareVerbs(t *testing.T) {
	for _, v := range []Verb{DeleteMe, Discard, ConfirmFeedback} {
		tok := Decode(Encode(v))
		if tok.Verb != v {
			t.Errorf("verb %s: decoded %s", v, tok.Verb)
		}
		if tok.HasDistrict {
			t.Errorf("verb %s: unexpected district %d", v, tok.District)
		}
	}
}

func TestDecodeFailsClosed(t *testing.T) {
	cases := []string{
		"",
		"NOPE",
		"SUBSCRIBE",       // district verb without id
		"SUBSCRIBEabc",    // non-numeric suffix
		"SUBSCRIBE-1",     // negative id
		"SUBSCRIBE12x",    // trailing garbage
		"DELETE_ME7",      // bare verb with suffix
		"DISCARDNOW",      // bare verb with suffix
		"subscribe12",     // wrong case
		"CHOOSE_ACTION",   // district verb without id
		"\\fSUBSCRIBE|12", // foreign encoding
	}
	for _, in := range cases {
		if tok := Decode(in); tok.Verb != Unrecognized {
			t.Errorf("Decode(%q) = %s, want Unrecognized", in, tok.Verb)
		}
	}
}

func TestNoVerbNameIsPrefixOfAnother(t *testing.T) {
	for i, a := range prefixes {
		for j, b := range prefixes {
			if i == j {
				continue
			}
			if len(a.name) <= len(b.name) && b.name[:len(a.name)] == a.name {
				t.Errorf("%s is a prefix of %s", a.name, b.name)
			}
		}
	}
}
