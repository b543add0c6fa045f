package dialogue

import (
	"html"
	"strconv"
	"strings"
)

// Command is a bot command recognized in private chats.
type Command int

const (
	CommandNone Command = iota
	CommandStart
	CommandHelp
	CommandCancel
	CommandPrivacy
)

// ParseCommand maps a command name without the leading slash. Unknown names
// yield CommandNone so the message is handled as plain text.
func ParseCommand(name string) Command {
	switch strings.ToLower(name) {
	case "start":
		return CommandStart
	case "help":
		return CommandHelp
	case "cancel":
		return CommandCancel
	case "privacy":
		return CommandPrivacy
	default:
		return CommandNone
	}
}

// Sender is the author of a message or a button press.
type Sender struct {
	ID           int64
	FirstName    string
	LastName     string
	Username     string
	LanguageCode string
}

// FullName joins first and last name.
func (s Sender) FullName() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// DisplayName is the plain-text name used in audit lines.
func (s Sender) DisplayName() string {
	if s.Username == "" {
		return s.FullName()
	}
	return s.FullName() + " (@" + s.Username + ")"
}

// Mention renders an HTML link to the user's profile followed by the username, if any.
func (s Sender) Mention() string {
	var b strings.Builder
	b.WriteString(`<a href="tg://user?id=`)
	b.WriteString(strconv.FormatInt(s.ID, 10))
	b.WriteString(`">`)
	b.WriteString(html.EscapeString(s.FullName()))
	b.WriteString("</a>")
	if s.Username != "" {
		b.WriteString(" (@")
		b.WriteString(html.EscapeString(s.Username))
		b.WriteString(")")
	}
	return b.String()
}

// Message is an incoming chat message. Text is empty for non-text messages
// such as stickers or photos.
type Message struct {
	ID      int
	ChatID  int64
	Private bool
	From    *Sender
	Text    string
	Command Command
}

// Entity is a formatting span of a message text, kept so that edits preserve links.
type Entity struct {
	Type   string
	Offset int
	Length int
	URL    string
	UserID int64
}

// ReviewMessage is the moderator notification a button press came from.
type ReviewMessage struct {
	ChatID   int64
	ID       int
	Text     string
	Entities []Entity
}

// Callback is a moderator pressing one of the review buttons.
type Callback struct {
	ID      string
	Data    string
	From    Sender
	Message *ReviewMessage
}

// ChannelPost is a new post in a channel the bot is a member of.
type ChannelPost struct {
	ChatID    int64
	MessageID int
}
