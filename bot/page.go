package bot

import (
	tele "gopkg.in/telebot.v4"
)

// telePage adapts a callback's tele.Context to the Page interface.
type telePage struct {
	c tele.Context
}

func (p telePage) Ack() error { return p.c.Respond() }

func (p telePage) Edit(text string, markup *tele.ReplyMarkup) error {
	return p.c.Edit(text, sendOpts(markup))
}

func (p telePage) Delete() error { return p.c.Delete() }

func (p telePage) ChatID() int64 {
	if chat := p.c.Chat(); chat != nil {
		return chat.ID
	}
	return 0
}

func (p telePage) MessageID() int {
	if msg := p.c.Message(); msg != nil {
		return msg.ID
	}
	return 0
}

func (p telePage) UserID() int64 {
	if user := p.c.Sender(); user != nil {
		return user.ID
	}
	return 0
}
