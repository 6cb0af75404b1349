package bot

import (
	"github.com/casewatch/casebot/bot/broadcast"

	tele "gopkg.in/telebot.v4"
)

// captionLimit is the platform cap on photo captions. Longer report texts
// are sent as a separate message after the photo, costing one extra call.
const captionLimit = 1024

// transport is the slice of tele.Bot the sender needs.
type transport interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
	SendAlbum(to tele.Recipient, a tele.Album, opts ...interface{}) ([]tele.Message, error)
}

// Messenger is the single send primitive. Every outbound message, whether
// from an interactive handler or the bulk dispatcher, goes through it so the
// per-recipient call count feeding flood control is computed in one place.
type Messenger struct {
	bot    transport
	photos *broadcast.PhotoCache
}

// NewMessenger builds a Messenger on top of a live bot connection.
func NewMessenger(bot transport, photos *broadcast.PhotoCache) *Messenger {
	if photos == nil {
		photos = broadcast.NewPhotoCache()
	}
	return &Messenger{bot: bot, photos: photos}
}

// Photos exposes the handle cache shared with the dispatcher.
func (m *Messenger) Photos() *broadcast.PhotoCache { return m.photos }

func sendOpts(markup *tele.ReplyMarkup) *tele.SendOptions {
	return &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
		ReplyMarkup:           markup,
	}
}

// SendText delivers a plain message and reports the API call count.
func (m *Messenger) SendText(chatID int64, text string, markup *tele.ReplyMarkup) (int, error) {
	if text == "" {
		return 0, nil
	}
	_, err := m.bot.Send(tele.ChatID(chatID), text, sendOpts(markup))
	if err != nil {
		return 0, err
	}
	return 1, nil
}

// SendReport delivers a report text together with its graphs. With a single
// graph the text rides along as the caption when it fits; otherwise, and for
// multi-graph reports with long texts, the text is a separate trailing
// message. The returned count covers every message produced.
func (m *Messenger) SendReport(chatID int64, text string, graphPaths []string, markup *tele.ReplyMarkup) (int, error) {
	paths := make([]string, 0, len(graphPaths))
	for _, p := range graphPaths {
		if p != "" {
			paths = append(paths, p)
		}
	}

	if len(paths) == 0 {
		return m.SendText(chatID, text, markup)
	}

	captionFits := len(text) <= captionLimit

	if len(paths) == 1 {
		photo := m.photoFor(paths[0])
		if captionFits {
			photo.Caption = text
		}
		msg, err := m.bot.Send(tele.ChatID(chatID), photo, sendOpts(markup))
		if err != nil {
			return 0, err
		}
		m.rememberHandle(paths[0], msg)
		if captionFits {
			return 1, nil
		}
		calls, err := m.SendText(chatID, text, markup)
		return 1 + calls, err
	}

	// Albums never carry the text; it follows as its own message so the
	// keyboard, if any, has something to attach to.
	album := make(tele.Album, 0, len(paths))
	for _, p := range paths {
		album = append(album, m.photoFor(p))
	}
	msgs, err := m.bot.SendAlbum(tele.ChatID(chatID), album, sendOpts(nil))
	if err != nil {
		return 0, err
	}
	for i := range msgs {
		if i < len(paths) {
			m.rememberHandle(paths[i], &msgs[i])
		}
	}
	calls := len(msgs)
	if calls == 0 {
		calls = len(paths)
	}
	extra, err := m.SendText(chatID, text, markup)
	return calls + extra, err
}

func (m *Messenger) photoFor(path string) *tele.Photo {
	if handle, ok := m.photos.Get(path); ok {
		return &tele.Photo{File: tele.File{FileID: handle}}
	}
	return &tele.Photo{File: tele.FromDisk(path)}
}

func (m *Messenger) rememberHandle(path string, msg *tele.Message) {
	if msg == nil || msg.Photo == nil || msg.Photo.FileID == "" {
		return
	}
	m.photos.Put(path, msg.Photo.FileID)
}
