package bot

import (
	"strings"
	"testing"

	"github.com/casewatch/casebot/bot/broadcast"

	tele "gopkg.in/telebot.v4"
)

// fakeTransport records outgoing messages and fabricates photo handles.
type fakeTransport struct {
	sends  []interface{}
	albums []tele.Album
	handle string
}

func (f *fakeTransport) Send(_ tele.Recipient, what interface{}, _ ...interface{}) (*tele.Message, error) {
	f.sends = append(f.sends, what)
	msg := &tele.Message{ID: len(f.sends)}
	if _, ok := what.(*tele.Photo); ok && f.handle != "" {
		msg.Photo = &tele.Photo{File: tele.File{FileID: f.handle}}
	}
	return msg, nil
}

func (f *fakeTransport) SendAlbum(_ tele.Recipient, a tele.Album, _ ...interface{}) ([]tele.Message, error) {
	f.albums = append(f.albums, a)
	msgs := make([]tele.Message, len(a))
	for i := range msgs {
		msgs[i] = tele.Message{ID: i + 1}
		if f.handle != "" {
			msgs[i].Photo = &tele.Photo{File: tele.File{FileID: f.handle}}
		}
	}
	return msgs, nil
}

func TestSendTextCountsOneCall(t *testing.T) {
	tr := &fakeTransport{}
	m := NewMessenger(tr, nil)

	calls, err := m.SendText(1, "hello", nil)
	if err != nil || calls != 1 {
		t.Fatalf("calls=%d err=%v", calls, err)
	}
	if calls, err = m.SendText(1, "", nil); err != nil || calls != 0 {
		t.Fatalf("empty text: calls=%d err=%v", calls, err)
	}
}

func TestSendReportShortTextRidesAsCaption(t *testing.T) {
	tr := &fakeTransport{}
	m := NewMessenger(tr, nil)

	calls, err := m.SendReport(1, "short report", []string{"graph.png"}, nil)
	if err != nil || calls != 1 {
		t.Fatalf("calls=%d err=%v", calls, err)
	}
	photo, ok := tr.sends[0].(*tele.Photo)
	if !ok {
		t.Fatalf("sent %T, want photo", tr.sends[0])
	}
	if photo.Caption != "short report" {
		t.Fatalf("caption = %q", photo.Caption)
	}
}

func TestSendReportLongTextSplitsIntoTwoCalls(t *testing.T) {
	tr := &fakeTransport{}
	m := NewMessenger(tr, nil)
	long := strings.Repeat("x", captionLimit+1)

	calls, err := m.SendReport(1, long, []string{"graph.png"}, nil)
	if err != nil || calls != 2 {
		t.Fatalf("calls=%d err=%v", calls, err)
	}
	photo := tr.sends[0].(*tele.Photo)
	if photo.Caption != "" {
		t.Fatal("over-limit text must not be used as caption")
	}
	if text, ok := tr.sends[1].(string); !ok || text != long {
		t.Fatalf("trailing message = %v", tr.sends[1])
	}
}

func TestSendReportBoundaryTextStaysSingleCall(t *testing.T) {
	tr := &fakeTransport{}
	m := NewMessenger(tr, nil)
	exact := strings.Repeat("x", captionLimit)

	calls, err := m.SendReport(1, exact, []string{"graph.png"}, nil)
	if err != nil || calls != 1 {
		t.Fatalf("calls=%d err=%v", calls, err)
	}
}

func TestSendReportCachesAndReusesPhotoHandle(t *testing.T) {
	tr := &fakeTransport{handle: "tg-file-123"}
	cache := broadcast.NewPhotoCache()
	m := NewMessenger(tr, cache)

	if _, err := m.SendReport(1, "report", []string{"graph.png"}, nil); err != nil {
		t.Fatalf("SendReport: %v", err)
	}
	if h, ok := cache.Get("graph.png"); !ok || h != "tg-file-123" {
		t.Fatalf("cached handle = %q, ok=%v", h, ok)
	}

	if _, err := m.SendReport(2, "report", []string{"graph.png"}, nil); err != nil {
		t.Fatalf("SendReport: %v", err)
	}
	second := tr.sends[1].(*tele.Photo)
	if second.File.FileID != "tg-file-123" {
		t.Fatal("second send re-uploaded instead of using the cached handle")
	}
}

func TestSendReportAlbumAlwaysSendsTextSeparately(t *testing.T) {
	tr := &fakeTransport{}
	m := NewMessenger(tr, nil)

	calls, err := m.SendReport(1, "short", []string{"a.png", "b.png"}, nil)
	if err != nil || calls != 3 {
		t.Fatalf("calls=%d err=%v", calls, err)
	}
	if len(tr.albums) != 1 || len(tr.albums[0]) != 2 {
		t.Fatalf("albums = %v", tr.albums)
	}
	if text, ok := tr.sends[0].(string); !ok || text != "short" {
		t.Fatalf("trailing text = %v", tr.sends[0])
	}
}

func TestSendReportNoGraphsFallsBackToText(t *testing.T) {
	tr := &fakeTransport{}
	m := NewMessenger(tr, nil)

	calls, err := m.SendReport(1, "plain", []string{"", ""}, nil)
	if err != nil || calls != 1 {
		t.Fatalf("calls=%d err=%v", calls, err)
	}
	if _, ok := tr.sends[0].(string); !ok {
		t.Fatalf("sent %T, want plain text", tr.sends[0])
	}
}
