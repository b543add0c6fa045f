// Package dialogue drives the join conversation of each applicant and applies
// the decisions moderators make on review notifications.
//
// The engine does no locking of its own. Events touching the same applicant
// are ordered by the session store.
package dialogue

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"time"

	"joingate/internal/clock"
	"joingate/internal/i18n"
	"joingate/internal/metrics"
	"joingate/internal/review"
	"joingate/internal/session"
)

// inviteExpiryLayout formats the invite expiry shown to applicants.
const inviteExpiryLayout = "2006-01-02 15:04 MST"

// DefaultInviteTTL is the lifetime of an invite link issued on approval.
const DefaultInviteTTL = 24 * time.Hour

// Config holds the chats the engine works with.
type Config struct {
	PrimaryChatID   int64
	ModeratorChatID int64
	// ChannelID enables relaying channel posts into the primary chat when non-zero.
	ChannelID        int64
	InviteTTL        time.Duration
	ScammerAutoBlock bool
	ModeratorLocale  string
}

// Engine is the join dialogue state machine.
type Engine struct {
	cfg       Config
	store     session.Store
	messenger Messenger
	catalog   *i18n.Catalog
	gate      Gate
	clock     clock.Clock
	logger    *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithGate consults g for every received join reason.
func WithGate(g Gate) Option {
	return func(e *Engine) { e.gate = g }
}

// WithClock sets the time source used for invite expiry.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// New creates an engine.
func New(cfg Config, store session.Store, messenger Messenger, catalog *i18n.Catalog, opts ...Option) *Engine {
	if cfg.InviteTTL <= 0 {
		cfg.InviteTTL = DefaultInviteTTL
	}
	if cfg.ModeratorLocale == "" {
		cfg.ModeratorLocale = i18n.BaseLocale
	}

	e := &Engine{
		cfg:       cfg,
		store:     store,
		messenger: messenger,
		catalog:   catalog,
		clock:     clock.Real(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// HandleMessage advances the dialogue of the applicant who sent msg.
// Messages outside private chats are ignored.
func (e *Engine) HandleMessage(ctx context.Context, msg Message) error {
	if !msg.Private || msg.From == nil {
		return nil
	}
	locale := msg.From.LanguageCode

	state, ok, err := e.store.Get(ctx, msg.ChatID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if !ok {
		state = nil
	}

	if _, blocked := state.(session.Blocked); blocked {
		return e.reply(ctx, msg.ChatID, locale, "blocked")
	}

	switch msg.Command {
	case CommandHelp:
		return e.reply(ctx, msg.ChatID, locale, "help")
	case CommandPrivacy:
		return e.reply(ctx, msg.ChatID, locale, "privacy-policy")
	case CommandCancel:
		return e.cancel(ctx, msg.ChatID, locale, state)
	case CommandStart:
		if _, pending := state.(session.AwaitApproval); pending {
			return e.reply(ctx, msg.ChatID, locale, "under-review")
		}
		if err := e.reply(ctx, msg.ChatID, locale, "reason-prompt"); err != nil {
			return err
		}
		if err := e.store.Update(ctx, msg.ChatID, session.ReceiveReason{}); err != nil {
			return fmt.Errorf("store session: %w", err)
		}
		return nil
	}

	switch state.(type) {
	case session.ReceiveReason:
		return e.receiveReason(ctx, msg)
	case session.AwaitApproval:
		return e.reply(ctx, msg.ChatID, locale, "under-review")
	default:
		return e.reply(ctx, msg.ChatID, locale, "start-hint")
	}
}

func (e *Engine) cancel(ctx context.Context, chatID int64, locale string, state session.State) error {
	if pending, ok := state.(session.AwaitApproval); ok {
		if err := e.messenger.Delete(ctx, e.cfg.ModeratorChatID, pending.MessageID); err != nil {
			e.logger.Warn("delete review notification", "chat_id", chatID, "message_id", pending.MessageID, "error", err)
		}
	}
	if state != nil {
		if err := e.store.Remove(ctx, chatID); err != nil {
			return fmt.Errorf("remove session: %w", err)
		}
	}
	return e.reply(ctx, chatID, locale, "cancelling-join-request")
}

func (e *Engine) receiveReason(ctx context.Context, msg Message) error {
	locale := msg.From.LanguageCode
	reason := strings.TrimSpace(msg.Text)
	if reason == "" {
		return e.reply(ctx, msg.ChatID, locale, "reason-missing")
	}

	userID := uint64(msg.From.ID)
	known := e.gate != nil && e.gate.IsKnown(ctx, userID)
	pending := review.New(review.ActionApprove, msg.ChatID, userID, locale)

	text := e.moderatorText("review-request",
		"applicant", msg.From.Mention(),
		"reason", html.EscapeString(reason),
	)

	if known && e.cfg.ScammerAutoBlock {
		buttons, err := e.keyboard(pending, [][]review.Action{{review.ActionUnblock}})
		if err != nil {
			return err
		}
		text += "\n\n" + html.EscapeString(e.moderatorText("review-auto-blocked"))
		if _, err := e.messenger.Send(ctx, Outgoing{ChatID: e.cfg.ModeratorChatID, Text: text, HTML: true, Buttons: buttons}); err != nil {
			return fmt.Errorf("send review notification: %w", err)
		}
		if err := e.store.Update(ctx, msg.ChatID, session.Blocked{}); err != nil {
			return fmt.Errorf("store session: %w", err)
		}
		e.logger.Info("known scammer blocked", "chat_id", msg.ChatID, "user_id", userID)
		return e.reply(ctx, msg.ChatID, locale, "blocked")
	}

	buttons, err := e.keyboard(pending, [][]review.Action{
		{review.ActionApprove, review.ActionDeny},
		{review.ActionBlock, review.ActionRequestContact},
	})
	if err != nil {
		return err
	}
	if known {
		text += "\n\n" + html.EscapeString(e.moderatorText("review-scammer-warning"))
	}

	messageID, err := e.messenger.Send(ctx, Outgoing{ChatID: e.cfg.ModeratorChatID, Text: text, HTML: true, Buttons: buttons})
	if err != nil {
		return fmt.Errorf("send review notification: %w", err)
	}
	if err := e.store.Update(ctx, msg.ChatID, session.AwaitApproval{MessageID: messageID}); err != nil {
		return fmt.Errorf("store session: %w", err)
	}

	e.logger.Info("join reason received", "chat_id", msg.ChatID, "user_id", userID, "known_scammer", known)
	return e.reply(ctx, msg.ChatID, locale, "reason-received")
}

// HandleCallback applies the decision encoded in a review button press.
// Presses outside the moderator chat and undecodable payloads are dropped.
func (e *Engine) HandleCallback(ctx context.Context, cb Callback) error {
	if cb.Message == nil || cb.Message.ChatID != e.cfg.ModeratorChatID {
		e.logger.Debug("ignoring callback outside moderator chat", "callback_id", cb.ID)
		return nil
	}

	if err := e.messenger.AnswerCallback(ctx, cb.ID); err != nil {
		e.logger.Warn("answer callback", "callback_id", cb.ID, "error", err)
	}

	r, err := review.Decode(cb.Data)
	if err != nil {
		metrics.RecordReviewDecodeError()
		e.logger.Error("decode review", "callback_id", cb.ID, "error", err)
		return nil
	}
	e.logger.Info("review received", "action", r.Action.String(), "chat_id", r.ChatID, "moderator_id", cb.From.ID)

	var next [][]review.Action
	var notifyErr error

	switch r.Action {
	case review.ActionApprove:
		expiresAt := e.clock.Now().Add(e.cfg.InviteTTL)
		link, err := e.messenger.CreateInviteLink(ctx, e.cfg.PrimaryChatID, expiresAt, 1)
		if err != nil {
			return fmt.Errorf("create invite link: %w", err)
		}
		notifyErr = e.notify(ctx, r, false, "request-approved", "link", link, "expires", expiresAt.UTC().Format(inviteExpiryLayout))
		if !isDelivered(notifyErr) {
			return notifyErr
		}
		if err := e.remove(ctx, r.ChatID); err != nil {
			return err
		}

	case review.ActionDeny:
		notifyErr = e.notify(ctx, r, false, "request-denied")
		if !isDelivered(notifyErr) {
			return notifyErr
		}
		if err := e.remove(ctx, r.ChatID); err != nil {
			return err
		}

	case review.ActionBlock:
		if err := e.store.Update(ctx, r.ChatID, session.Blocked{}); err != nil {
			return fmt.Errorf("store session: %w", err)
		}
		notifyErr = e.notify(ctx, r, false, "blocked")
		if !isDelivered(notifyErr) {
			return notifyErr
		}
		next = [][]review.Action{{review.ActionUnblock}}

	case review.ActionUnblock:
		if err := e.remove(ctx, r.ChatID); err != nil {
			return err
		}
		notifyErr = e.notify(ctx, r, false, "unblocked")
		if !isDelivered(notifyErr) {
			return notifyErr
		}

	case review.ActionRequestContact:
		notifyErr = e.notify(ctx, r, true, "contact-requested", "moderator", cb.From.Mention())
		if !isDelivered(notifyErr) {
			return notifyErr
		}
		if err := e.remove(ctx, r.ChatID); err != nil {
			return err
		}
		next = [][]review.Action{{review.ActionBlock}}
	}

	metrics.RecordReview(r.Action.String())
	e.updateReviewMessage(ctx, cb, r, next, errors.Is(notifyErr, ErrRecipientBlocked))
	return nil
}

// updateReviewMessage appends the audit line to the notification and swaps
// its buttons. Failures are logged only.
func (e *Engine) updateReviewMessage(ctx context.Context, cb Callback, r review.Review, next [][]review.Action, recipientBlocked bool) {
	msg := cb.Message
	if msg.Text == "" {
		return
	}

	text := msg.Text + "\n\n" + e.moderatorText("review-audit-"+r.Action.String(), "moderator", cb.From.DisplayName())
	edit := Edit{ChatID: msg.ChatID, MessageID: msg.ID, Entities: msg.Entities}

	if recipientBlocked {
		text += "\n\n" + e.moderatorText("review-user-blocked-bot")
	} else if next != nil {
		buttons, err := e.keyboard(r, next)
		if err != nil {
			e.logger.Error("build review buttons", "chat_id", r.ChatID, "error", err)
		} else {
			edit.Buttons = buttons
		}
	}
	edit.Text = text

	if err := e.messenger.Edit(ctx, edit); err != nil {
		e.logger.Warn("edit review notification", "chat_id", r.ChatID, "message_id", msg.ID, "error", err)
	}
}

// HandleChannelPost forwards posts of the configured channel into the primary
// chat and pins them.
func (e *Engine) HandleChannelPost(ctx context.Context, post ChannelPost) error {
	if e.cfg.ChannelID == 0 || post.ChatID != e.cfg.ChannelID {
		return nil
	}

	id, err := e.messenger.Forward(ctx, e.cfg.PrimaryChatID, e.cfg.ChannelID, post.MessageID)
	if err != nil {
		return fmt.Errorf("forward channel post: %w", err)
	}
	if err := e.messenger.Pin(ctx, e.cfg.PrimaryChatID, id); err != nil {
		return fmt.Errorf("pin channel post: %w", err)
	}
	return nil
}

func (e *Engine) reply(ctx context.Context, chatID int64, locale, key string, args ...string) error {
	if _, err := e.messenger.Send(ctx, Outgoing{ChatID: chatID, Text: e.catalog.Text(locale, key, args...)}); err != nil {
		return fmt.Errorf("send %s: %w", key, err)
	}
	return nil
}

// notify sends an outcome to the applicant in the locale carried by the review.
func (e *Engine) notify(ctx context.Context, r review.Review, asHTML bool, key string, args ...string) error {
	text := e.catalog.Text(r.Locale, key, args...)
	if _, err := e.messenger.Send(ctx, Outgoing{ChatID: r.ChatID, Text: text, HTML: asHTML}); err != nil {
		return fmt.Errorf("notify applicant: %w", err)
	}
	return nil
}

func (e *Engine) remove(ctx context.Context, chatID int64) error {
	if err := e.store.Remove(ctx, chatID); err != nil {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}

func (e *Engine) moderatorText(key string, args ...string) string {
	return e.catalog.Text(e.cfg.ModeratorLocale, key, args...)
}

// keyboard builds one button per action, all bound to the same applicant.
func (e *Engine) keyboard(base review.Review, rows [][]review.Action) ([][]Button, error) {
	out := make([][]Button, 0, len(rows))
	for _, row := range rows {
		buttons := make([]Button, 0, len(row))
		for _, action := range row {
			data, err := base.WithAction(action).EncodePayload()
			if err != nil {
				return nil, fmt.Errorf("encode %s review: %w", action, err)
			}
			label := e.moderatorText("button-" + strings.ReplaceAll(action.String(), "_", "-"))
			buttons = append(buttons, Button{Text: label, Data: data})
		}
		out = append(out, buttons)
	}
	return out, nil
}

// isDelivered reports whether err allows the outcome to proceed: the message
// was sent, or the applicant blocked the bot.
func isDelivered(err error) bool {
	return err == nil || errors.Is(err, ErrRecipientBlocked)
}
