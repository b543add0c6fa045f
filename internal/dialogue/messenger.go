package dialogue

import (
	"context"
	"errors"
	"time"
)

// ErrRecipientBlocked is returned by a Messenger when the recipient has
// blocked the bot and cannot receive messages.
var ErrRecipientBlocked = errors.New("dialogue: recipient has blocked the bot")

// Button is an inline button carrying an encoded review.
type Button struct {
	Text string
	Data string
}

// Outgoing is a new message.
type Outgoing struct {
	ChatID  int64
	Text    string
	HTML    bool
	Buttons [][]Button
}

// Edit replaces the text of an existing message. A nil Buttons removes the
// inline keyboard.
type Edit struct {
	ChatID    int64
	MessageID int
	Text      string
	Entities  []Entity
	Buttons   [][]Button
}

// Messenger delivers messages on behalf of the engine.
type Messenger interface {
	// Send posts a message and returns its id.
	Send(ctx context.Context, msg Outgoing) (int, error)
	Edit(ctx context.Context, edit Edit) error
	Delete(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID string) error
	// CreateInviteLink issues an invite link for chatID that expires at
	// expiresAt and admits at most memberLimit users.
	CreateInviteLink(ctx context.Context, chatID int64, expiresAt time.Time, memberLimit int) (string, error)
	// Forward copies a message and returns the id of the forwarded copy.
	Forward(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error)
	Pin(ctx context.Context, chatID int64, messageID int) error
}

// Gate answers whether a user is a known scammer.
type Gate interface {
	IsKnown(ctx context.Context, userID uint64) bool
}
