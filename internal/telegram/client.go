// Package telegram connects the dialogue engine to the Bot API.
package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"joingate/internal/dialogue"
)

// pollTimeout is the long polling timeout in seconds.
const pollTimeout = 60

// Client implements dialogue.Messenger with the Bot API.
type Client struct {
	bot *tgbotapi.BotAPI
}

// NewClient authenticates with token. An empty endpoint selects the public Bot API.
func NewClient(token, endpoint string, httpClient *http.Client) (*Client, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: (pollTimeout + 10) * time.Second}
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, httpClient)
	if err != nil {
		return nil, fmt.Errorf("connect to bot api: %w", err)
	}
	return &Client{bot: bot}, nil
}

// Username returns the bot's username.
func (c *Client) Username() string {
	return c.bot.Self.UserName
}

// Send posts msg and returns its id.
func (c *Client) Send(ctx context.Context, msg dialogue.Outgoing) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	cfg := tgbotapi.NewMessage(msg.ChatID, msg.Text)
	if msg.HTML {
		cfg.ParseMode = tgbotapi.ModeHTML
	}
	if len(msg.Buttons) > 0 {
		cfg.ReplyMarkup = keyboard(msg.Buttons)
	}

	sent, err := c.bot.Send(cfg)
	if err != nil {
		return 0, classify(err)
	}
	return sent.MessageID, nil
}

// Edit replaces the text and keyboard of a message.
func (c *Client) Edit(ctx context.Context, edit dialogue.Edit) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	cfg := tgbotapi.NewEditMessageText(edit.ChatID, edit.MessageID, edit.Text)
	cfg.Entities = entities(edit.Entities)
	if len(edit.Buttons) > 0 {
		markup := keyboard(edit.Buttons)
		cfg.ReplyMarkup = &markup
	}
	return c.request(cfg)
}

func (c *Client) Delete(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.request(tgbotapi.NewDeleteMessage(chatID, messageID))
}

func (c *Client) AnswerCallback(ctx context.Context, callbackID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.request(tgbotapi.NewCallback(callbackID, ""))
}

// CreateInviteLink issues a chat invite link.
func (c *Client) CreateInviteLink(ctx context.Context, chatID int64, expiresAt time.Time, memberLimit int) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	resp, err := c.bot.Request(tgbotapi.CreateChatInviteLinkConfig{
		ChatConfig:  tgbotapi.ChatConfig{ChatID: chatID},
		ExpireDate:  int(expiresAt.Unix()),
		MemberLimit: memberLimit,
	})
	if err != nil {
		return "", classify(err)
	}

	var link tgbotapi.ChatInviteLink
	if err := json.Unmarshal(resp.Result, &link); err != nil {
		return "", fmt.Errorf("decode invite link: %w", err)
	}
	if link.InviteLink == "" {
		return "", errors.New("bot api returned an empty invite link")
	}
	return link.InviteLink, nil
}

// Forward forwards a message and returns the id of the copy.
func (c *Client) Forward(ctx context.Context, toChatID, fromChatID int64, messageID int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	sent, err := c.bot.Send(tgbotapi.NewForward(toChatID, fromChatID, messageID))
	if err != nil {
		return 0, classify(err)
	}
	return sent.MessageID, nil
}

func (c *Client) Pin(ctx context.Context, chatID int64, messageID int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return c.request(tgbotapi.PinChatMessageConfig{ChatID: chatID, MessageID: messageID})
}

// Updates starts long polling. Call StopUpdates to end it.
func (c *Client) Updates() (tgbotapi.UpdatesChannel, error) {
	// A leftover webhook makes getUpdates fail.
	if err := c.request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		return nil, fmt.Errorf("delete webhook: %w", err)
	}
	u := tgbotapi.NewUpdate(0)
	u.Timeout = pollTimeout
	u.AllowedUpdates = []string{"message", "callback_query", "channel_post"}
	return c.bot.GetUpdatesChan(u), nil
}

// StopUpdates ends long polling.
func (c *Client) StopUpdates() {
	c.bot.StopReceivingUpdates()
}

// SetWebhook registers url as the update destination.
func (c *Client) SetWebhook(url string) error {
	wh, err := tgbotapi.NewWebhook(url)
	if err != nil {
		return fmt.Errorf("parse webhook url: %w", err)
	}
	wh.AllowedUpdates = []string{"message", "callback_query", "channel_post"}
	return c.request(wh)
}

func (c *Client) request(cfg tgbotapi.Chattable) error {
	if _, err := c.bot.Request(cfg); err != nil {
		return classify(err)
	}
	return nil
}

// classify maps Bot API errors to dialogue errors.
func classify(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) &&
		apiErr.Code == http.StatusForbidden &&
		strings.Contains(apiErr.Message, "bot was blocked by the user") {
		return fmt.Errorf("%w: %s", dialogue.ErrRecipientBlocked, apiErr.Message)
	}
	return err
}

func keyboard(rows [][]dialogue.Button) tgbotapi.InlineKeyboardMarkup {
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Text, b.Data))
		}
		out = append(out, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	return tgbotapi.NewInlineKeyboardMarkup(out...)
}

func entities(in []dialogue.Entity) []tgbotapi.MessageEntity {
	if len(in) == 0 {
		return nil
	}
	out := make([]tgbotapi.MessageEntity, 0, len(in))
	for _, e := range in {
		me := tgbotapi.MessageEntity{Type: e.Type, Offset: e.Offset, Length: e.Length, URL: e.URL}
		if e.UserID != 0 {
			me.User = &tgbotapi.User{ID: e.UserID}
		}
		out = append(out, me)
	}
	return out
}
