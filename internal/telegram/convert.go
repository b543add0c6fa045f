package telegram

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"joingate/internal/dialogue"
)

// Update kinds used in logs and metrics.
const (
	KindMessage     = "message"
	KindCallback    = "callback"
	KindChannelPost = "channel_post"
	KindIgnored     = "ignored"
)

// kindOf classifies an update by its payload.
func kindOf(u tgbotapi.Update) string {
	switch {
	case u.Message != nil && u.Message.Chat != nil:
		return KindMessage
	case u.CallbackQuery != nil && u.CallbackQuery.From != nil:
		return KindCallback
	case u.ChannelPost != nil && u.ChannelPost.Chat != nil:
		return KindChannelPost
	default:
		return KindIgnored
	}
}

func toSender(u *tgbotapi.User) dialogue.Sender {
	return dialogue.Sender{
		ID:           u.ID,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Username:     u.UserName,
		LanguageCode: u.LanguageCode,
	}
}

func toMessage(m *tgbotapi.Message) dialogue.Message {
	msg := dialogue.Message{
		ID:      m.MessageID,
		ChatID:  m.Chat.ID,
		Private: m.Chat.IsPrivate(),
		Text:    m.Text,
	}
	if m.From != nil {
		sender := toSender(m.From)
		msg.From = &sender
	}
	if m.IsCommand() {
		msg.Command = dialogue.ParseCommand(m.Command())
	}
	return msg
}

func toCallback(q *tgbotapi.CallbackQuery) dialogue.Callback {
	cb := dialogue.Callback{
		ID:   q.ID,
		Data: q.Data,
		From: toSender(q.From),
	}
	if m := q.Message; m != nil && m.Chat != nil {
		cb.Message = &dialogue.ReviewMessage{
			ChatID:   m.Chat.ID,
			ID:       m.MessageID,
			Text:     m.Text,
			Entities: fromEntities(m.Entities),
		}
	}
	return cb
}

func toChannelPost(m *tgbotapi.Message) dialogue.ChannelPost {
	return dialogue.ChannelPost{ChatID: m.Chat.ID, MessageID: m.MessageID}
}

func fromEntities(in []tgbotapi.MessageEntity) []dialogue.Entity {
	if len(in) == 0 {
		return nil
	}
	out := make([]dialogue.Entity, 0, len(in))
	for _, e := range in {
		entity := dialogue.Entity{Type: e.Type, Offset: e.Offset, Length: e.Length, URL: e.URL}
		if e.User != nil {
			entity.UserID = e.User.ID
		}
		out = append(out, entity)
	}
	return out
}
