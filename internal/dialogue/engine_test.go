package dialogue

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"joingate/internal/clock"
	"joingate/internal/i18n"
	"joingate/internal/review"
	"joingate/internal/session"
	"joingate/internal/testutil"
)

const (
	applicantChat = int64(4242)
	primaryChat   = int64(-100111)
	moderatorChat = int64(-100222)
	channelChat   = int64(-100333)
)

type invite struct {
	chatID      int64
	expiresAt   time.Time
	memberLimit int
}

type fakeMessenger struct {
	mu        sync.Mutex
	nextID    int
	sent      []Outgoing
	edits     []Edit
	deleted   []int
	answered  []string
	invites   []invite
	forwarded []int
	pinned    []int

	sendErr   map[int64]error
	deleteErr error
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{nextID: 100, sendErr: map[int64]error{}}
}

func (f *fakeMessenger) Send(_ context.Context, msg Outgoing) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.sendErr[msg.ChatID]; err != nil {
		return 0, err
	}
	f.nextID++
	f.sent = append(f.sent, msg)
	return f.nextID, nil
}

func (f *fakeMessenger) Edit(_ context.Context, edit Edit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.edits = append(f.edits, edit)
	return nil
}

func (f *fakeMessenger) Delete(_ context.Context, _ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeMessenger) AnswerCallback(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.answered = append(f.answered, id)
	return nil
}

func (f *fakeMessenger) CreateInviteLink(_ context.Context, chatID int64, expiresAt time.Time, memberLimit int) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.invites = append(f.invites, invite{chatID, expiresAt, memberLimit})
	return "https://t.me/+invite", nil
}

func (f *fakeMessenger) Forward(_ context.Context, _, _ int64, messageID int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forwarded = append(f.forwarded, messageID)
	return messageID + 1000, nil
}

func (f *fakeMessenger) Pin(_ context.Context, _ int64, messageID int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pinned = append(f.pinned, messageID)
	return nil
}

// sentTo returns the messages delivered to chatID in order.
func (f *fakeMessenger) sentTo(chatID int64) []Outgoing {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Outgoing
	for _, m := range f.sent {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeMessenger) lastTo(t *testing.T, chatID int64) Outgoing {
	t.Helper()
	msgs := f.sentTo(chatID)
	if len(msgs) == 0 {
		t.Fatalf("no message sent to %d", chatID)
	}
	return msgs[len(msgs)-1]
}

type fakeGate struct {
	known map[uint64]bool
}

func (g fakeGate) IsKnown(_ context.Context, id uint64) bool { return g.known[id] }

type fixture struct {
	engine    *Engine
	store     session.Store
	messenger *fakeMessenger
	catalog   *i18n.Catalog
	clock     *clock.Fake
}

func newFixture(t *testing.T, cfg Config, opts ...Option) *fixture {
	t.Helper()
	catalog, err := i18n.Load()
	if err != nil {
		t.Fatalf("i18n.Load() error = %v", err)
	}
	if cfg.PrimaryChatID == 0 {
		cfg.PrimaryChatID = primaryChat
	}
	if cfg.ModeratorChatID == 0 {
		cfg.ModeratorChatID = moderatorChat
	}

	f := &fixture{
		store:     session.NewMemoryStore(),
		messenger: newFakeMessenger(),
		catalog:   catalog,
		clock:     clock.NewFake(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	}
	opts = append([]Option{
		WithClock(f.clock),
		WithLogger(testutil.DiscardLogger()),
	}, opts...)
	f.engine = New(cfg, f.store, f.messenger, catalog, opts...)
	return f
}

var applicant = &Sender{ID: 987654, FirstName: "Ada", LastName: "<Lovelace>", Username: "ada", LanguageCode: "de-DE"}
var moderator = Sender{ID: 1, FirstName: "Mod", Username: "mod"}

func (f *fixture) say(t *testing.T, text string) {
	t.Helper()
	msg := Message{ID: 1, ChatID: applicantChat, Private: true, From: applicant, Text: text}
	if strings.HasPrefix(text, "/") {
		msg.Command = ParseCommand(strings.TrimPrefix(text, "/"))
	}
	if err := f.engine.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleMessage(%q) error = %v", text, err)
	}
}

func (f *fixture) state(t *testing.T) session.State {
	t.Helper()
	s, ok, err := f.store.Get(context.Background(), applicantChat)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !ok {
		return nil
	}
	return s
}

func (f *fixture) setState(t *testing.T, s session.State) {
	t.Helper()
	if err := f.store.Update(context.Background(), applicantChat, s); err != nil {
		t.Fatalf("Update() error = %v", err)
	}
}

func (f *fixture) text(key string, args ...string) string {
	return f.catalog.Text(applicant.LanguageCode, key, args...)
}

// press builds a callback for the button carrying action on msg.
func press(t *testing.T, buttons [][]Button, action review.Action, messageID int) Callback {
	t.Helper()
	for _, row := range buttons {
		for _, b := range row {
			r, err := review.Decode(b.Data)
			if err != nil {
				t.Fatalf("Decode(%q) error = %v", b.Data, err)
			}
			if r.Action == action {
				return Callback{
					ID:   "cb-" + action.String(),
					Data: b.Data,
					From: moderator,
					Message: &ReviewMessage{
						ChatID:   moderatorChat,
						ID:       messageID,
						Text:     "Ada would like to join",
						Entities: []Entity{{Type: "text_mention", Offset: 0, Length: 3, UserID: applicant.ID}},
					},
				}
			}
		}
	}
	t.Fatalf("no %s button in %v", action, buttons)
	return Callback{}
}

func pendingCallback(t *testing.T, action review.Action) Callback {
	t.Helper()
	data, err := review.New(action, applicantChat, uint64(applicant.ID), applicant.LanguageCode).EncodePayload()
	if err != nil {
		t.Fatalf("EncodePayload() error = %v", err)
	}
	return Callback{
		ID:      "cb",
		Data:    data,
		From:    moderator,
		Message: &ReviewMessage{ChatID: moderatorChat, ID: 55, Text: "Ada would like to join"},
	}
}

func actions(t *testing.T, buttons [][]Button) []review.Action {
	t.Helper()
	var out []review.Action
	for _, row := range buttons {
		for _, b := range row {
			r, err := review.Decode(b.Data)
			if err != nil {
				t.Fatalf("Decode(%q) error = %v", b.Data, err)
			}
			if r.ChatID != applicantChat || r.UserID != uint64(applicant.ID) {
				t.Errorf("button %q bound to chat %d user %d", b.Text, r.ChatID, r.UserID)
			}
			out = append(out, r.Action)
		}
	}
	return out
}

func TestEngine_ApproveScenario(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	f.say(t, "/start")
	if got := f.messenger.lastTo(t, applicantChat).Text; got != f.text("reason-prompt") {
		t.Errorf("reply = %q, want reason prompt", got)
	}
	if got := f.state(t); got != (session.ReceiveReason{}) {
		t.Fatalf("state = %#v, want ReceiveReason", got)
	}

	f.say(t, "hello")
	notification := f.messenger.lastTo(t, moderatorChat)
	if !notification.HTML {
		t.Error("review notification is not HTML")
	}
	if !strings.Contains(notification.Text, "hello") || !strings.Contains(notification.Text, "&lt;Lovelace&gt;") {
		t.Errorf("notification = %q, want escaped name and reason", notification.Text)
	}
	want := []review.Action{review.ActionApprove, review.ActionDeny, review.ActionBlock, review.ActionRequestContact}
	if got := actions(t, notification.Buttons); !equalActions(got, want) {
		t.Errorf("buttons = %v, want %v", got, want)
	}
	pending, ok := f.state(t).(session.AwaitApproval)
	if !ok || pending.MessageID != f.messenger.nextID-1 {
		t.Fatalf("state = %#v, want AwaitApproval on the notification", f.state(t))
	}
	if got := f.messenger.lastTo(t, applicantChat).Text; got != f.text("reason-received") {
		t.Errorf("reply = %q, want reason received", got)
	}

	cb := press(t, notification.Buttons, review.ActionApprove, pending.MessageID)
	if err := f.engine.HandleCallback(ctx, cb); err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}

	if len(f.messenger.invites) != 1 {
		t.Fatalf("invites = %v, want one", f.messenger.invites)
	}
	inv := f.messenger.invites[0]
	if inv.chatID != primaryChat || inv.memberLimit != 1 || !inv.expiresAt.Equal(f.clock.Now().Add(24*time.Hour)) {
		t.Errorf("invite = %+v, want single use for 24h on primary chat", inv)
	}
	if got := f.messenger.lastTo(t, applicantChat).Text; got != f.text("request-approved", "link", "https://t.me/+invite", "expires", "2026-03-02 12:00 UTC") {
		t.Errorf("notification = %q, want approval with link", got)
	}
	if got := f.state(t); got != nil {
		t.Errorf("state = %#v, want removed", got)
	}
	if len(f.messenger.answered) != 1 || f.messenger.answered[0] != cb.ID {
		t.Errorf("answered = %v, want %s", f.messenger.answered, cb.ID)
	}

	if len(f.messenger.edits) != 1 {
		t.Fatalf("edits = %d, want 1", len(f.messenger.edits))
	}
	edit := f.messenger.edits[0]
	if !strings.HasSuffix(edit.Text, "\n\nApproved by Mod (@mod)") {
		t.Errorf("edit text = %q, want audit line", edit.Text)
	}
	if edit.Buttons != nil || len(edit.Entities) != 1 || edit.MessageID != pending.MessageID {
		t.Errorf("edit = %+v, want no buttons and preserved entities", edit)
	}

	f.say(t, "hi again")
	if got := f.messenger.lastTo(t, applicantChat).Text; got != f.text("start-hint") {
		t.Errorf("reply after approval = %q, want start hint", got)
	}
}

func TestEngine_BlockScenario(t *testing.T) {
	f := newFixture(t, Config{})
	f.setState(t, session.AwaitApproval{MessageID: 55})

	if err := f.engine.HandleCallback(context.Background(), pendingCallback(t, review.ActionBlock)); err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if got := f.state(t); got != (session.Blocked{}) {
		t.Fatalf("state = %#v, want Blocked", got)
	}
	if got := f.messenger.lastTo(t, applicantChat).Text; got != f.text("blocked") {
		t.Errorf("notification = %q, want blocked", got)
	}

	edit := f.messenger.edits[0]
	if got := actions(t, edit.Buttons); !equalActions(got, []review.Action{review.ActionUnblock}) {
		t.Errorf("edit buttons = %v, want Unblock", got)
	}
	if !strings.HasSuffix(edit.Text, "Blocked by Mod (@mod)") {
		t.Errorf("edit text = %q", edit.Text)
	}

	for _, text := range []string{"please", "/start", "/cancel", "/help", ""} {
		before := len(f.messenger.sentTo(applicantChat))
		f.say(t, text)
		msgs := f.messenger.sentTo(applicantChat)
		if len(msgs) != before+1 || msgs[len(msgs)-1].Text != f.text("blocked") {
			t.Errorf("reply to %q = %q, want blocked", text, msgs[len(msgs)-1].Text)
		}
		if got := f.state(t); got != (session.Blocked{}) {
			t.Errorf("state after %q = %#v, want Blocked", text, got)
		}
	}
}

func TestEngine_Unblock(t *testing.T) {
	f := newFixture(t, Config{})
	f.setState(t, session.Blocked{})

	if err := f.engine.HandleCallback(context.Background(), pendingCallback(t, review.ActionUnblock)); err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if got := f.state(t); got != nil {
		t.Errorf("state = %#v, want removed", got)
	}
	if got := f.messenger.lastTo(t, applicantChat).Text; got != f.text("unblocked") {
		t.Errorf("notification = %q, want unblocked", got)
	}
	if f.messenger.edits[0].Buttons != nil {
		t.Error("unblock left buttons on the notification")
	}
}

func TestEngine_Deny(t *testing.T) {
	f := newFixture(t, Config{})
	f.setState(t, session.AwaitApproval{MessageID: 55})

	if err := f.engine.HandleCallback(context.Background(), pendingCallback(t, review.ActionDeny)); err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if got := f.state(t); got != nil {
		t.Errorf("state = %#v, want removed", got)
	}
	if got := f.messenger.lastTo(t, applicantChat).Text; got != f.text("request-denied") {
		t.Errorf("notification = %q, want denied", got)
	}
}

func TestEngine_RequestContact(t *testing.T) {
	f := newFixture(t, Config{})
	f.setState(t, session.AwaitApproval{MessageID: 55})

	if err := f.engine.HandleCallback(context.Background(), pendingCallback(t, review.ActionRequestContact)); err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if got := f.state(t); got != nil {
		t.Errorf("state = %#v, want removed", got)
	}
	msg := f.messenger.lastTo(t, applicantChat)
	if !msg.HTML || !strings.Contains(msg.Text, `<a href="tg://user?id=1">Mod</a> (@mod)`) {
		t.Errorf("notification = %+v, want HTML moderator mention", msg)
	}
	if got := actions(t, f.messenger.edits[0].Buttons); !equalActions(got, []review.Action{review.ActionBlock}) {
		t.Errorf("edit buttons = %v, want Block", got)
	}

	f.say(t, "are you there?")
	if got := f.messenger.lastTo(t, applicantChat).Text; got != f.text("start-hint") {
		t.Errorf("reply = %q, want start hint", got)
	}
}

func TestEngine_RecipientBlocked(t *testing.T) {
	tests := []struct {
		name      string
		action    review.Action
		wantState session.State
	}{
		{"deny", review.ActionDeny, nil},
		{"approve", review.ActionApprove, nil},
		{"block", review.ActionBlock, session.Blocked{}},
		{"request contact", review.ActionRequestContact, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			f.setState(t, session.AwaitApproval{MessageID: 55})
			f.messenger.sendErr[applicantChat] = ErrRecipientBlocked

			if err := f.engine.HandleCallback(context.Background(), pendingCallback(t, tt.action)); err != nil {
				t.Fatalf("HandleCallback() error = %v", err)
			}
			if got := f.state(t); got != tt.wantState {
				t.Errorf("state = %#v, want %#v", got, tt.wantState)
			}
			edit := f.messenger.edits[0]
			if !strings.HasSuffix(edit.Text, "\n\nUser has blocked this bot") {
				t.Errorf("edit text = %q, want blocked-bot note", edit.Text)
			}
			if edit.Buttons != nil {
				t.Errorf("edit buttons = %v, want none", edit.Buttons)
			}
		})
	}
}

func TestEngine_DeliveryFailureKeepsState(t *testing.T) {
	f := newFixture(t, Config{})
	f.setState(t, session.AwaitApproval{MessageID: 55})
	boom := errors.New("bad gateway")
	f.messenger.sendErr[applicantChat] = boom

	err := f.engine.HandleCallback(context.Background(), pendingCallback(t, review.ActionDeny))
	if !errors.Is(err, boom) {
		t.Fatalf("HandleCallback() error = %v, want %v", err, boom)
	}
	if got := f.state(t); got != (session.AwaitApproval{MessageID: 55}) {
		t.Errorf("state = %#v, want unchanged", got)
	}
	if len(f.messenger.edits) != 0 {
		t.Errorf("edits = %v, want none", f.messenger.edits)
	}
}

func TestEngine_DroppedCallbacks(t *testing.T) {
	tests := []struct {
		name string
		cb   func(t *testing.T) Callback
	}{
		{"undecodable", func(t *testing.T) Callback {
			cb := pendingCallback(t, review.ActionApprove)
			cb.Data = "%%%"
			return cb
		}},
		{"unknown action", func(t *testing.T) Callback {
			cb := pendingCallback(t, review.ActionApprove)
			cb.Data = "BUDiAQAAAAAABhIPAAAAAAAA"
			return cb
		}},
		{"other chat", func(t *testing.T) Callback {
			cb := pendingCallback(t, review.ActionApprove)
			cb.Message.ChatID = primaryChat
			return cb
		}},
		{"no message", func(t *testing.T) Callback {
			cb := pendingCallback(t, review.ActionApprove)
			cb.Message = nil
			return cb
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			f.setState(t, session.AwaitApproval{MessageID: 55})

			if err := f.engine.HandleCallback(context.Background(), tt.cb(t)); err != nil {
				t.Fatalf("HandleCallback() error = %v", err)
			}
			if got := f.state(t); got != (session.AwaitApproval{MessageID: 55}) {
				t.Errorf("state = %#v, want unchanged", got)
			}
			if len(f.messenger.sent) != 0 || len(f.messenger.edits) != 0 || len(f.messenger.invites) != 0 {
				t.Errorf("messenger touched: sent %d, edits %d", len(f.messenger.sent), len(f.messenger.edits))
			}
		})
	}
}

func TestEngine_Replies(t *testing.T) {
	tests := []struct {
		name      string
		state     session.State
		text      string
		wantKey   string
		wantState session.State
	}{
		{"start hint", nil, "hi", "start-hint", nil},
		{"unknown command", nil, "/join", "start-hint", nil},
		{"help", nil, "/help", "help", nil},
		{"privacy", session.ReceiveReason{}, "/privacy", "privacy-policy", session.ReceiveReason{}},
		{"reason missing", session.ReceiveReason{}, "", "reason-missing", session.ReceiveReason{}},
		{"whitespace reason", session.ReceiveReason{}, "  \n ", "reason-missing", session.ReceiveReason{}},
		{"under review", session.AwaitApproval{MessageID: 9}, "any news?", "under-review", session.AwaitApproval{MessageID: 9}},
		{"start under review", session.AwaitApproval{MessageID: 9}, "/start", "under-review", session.AwaitApproval{MessageID: 9}},
		{"restart", session.ReceiveReason{}, "/start", "reason-prompt", session.ReceiveReason{}},
		{"cancel without session", nil, "/cancel", "cancelling-join-request", nil},
		{"cancel reason", session.ReceiveReason{}, "/cancel", "cancelling-join-request", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			if tt.state != nil {
				f.setState(t, tt.state)
			}
			f.say(t, tt.text)

			if got := f.messenger.lastTo(t, applicantChat).Text; got != f.text(tt.wantKey) {
				t.Errorf("reply = %q, want %s", got, tt.wantKey)
			}
			if got := f.state(t); got != tt.wantState {
				t.Errorf("state = %#v, want %#v", got, tt.wantState)
			}
			if got := len(f.messenger.sentTo(moderatorChat)); got != 0 {
				t.Errorf("moderator messages = %d, want 0", got)
			}
		})
	}
}

func TestEngine_Cancel(t *testing.T) {
	tests := []struct {
		name      string
		deleteErr error
	}{
		{"deletes notification", nil},
		{"delete failure is not fatal", errors.New("message to delete not found")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			f.setState(t, session.AwaitApproval{MessageID: 55})
			f.messenger.deleteErr = tt.deleteErr

			f.say(t, "/cancel")

			if tt.deleteErr == nil && (len(f.messenger.deleted) != 1 || f.messenger.deleted[0] != 55) {
				t.Errorf("deleted = %v, want [55]", f.messenger.deleted)
			}
			if got := f.state(t); got != nil {
				t.Errorf("state = %#v, want removed", got)
			}
			if got := f.messenger.lastTo(t, applicantChat).Text; got != f.text("cancelling-join-request") {
				t.Errorf("reply = %q, want cancellation", got)
			}
		})
	}
}

func TestEngine_IgnoresNonPrivate(t *testing.T) {
	f := newFixture(t, Config{})
	msg := Message{ChatID: primaryChat, Private: false, From: applicant, Text: "/start", Command: CommandStart}
	if err := f.engine.HandleMessage(context.Background(), msg); err != nil {
		t.Fatalf("HandleMessage() error = %v", err)
	}
	if len(f.messenger.sent) != 0 {
		t.Errorf("sent = %v, want none", f.messenger.sent)
	}
}

func TestEngine_KnownScammer(t *testing.T) {
	gate := fakeGate{known: map[uint64]bool{uint64(applicant.ID): true}}

	t.Run("warning", func(t *testing.T) {
		f := newFixture(t, Config{}, WithGate(gate))
		f.setState(t, session.ReceiveReason{})
		f.say(t, "let me in")

		notification := f.messenger.lastTo(t, moderatorChat)
		if !strings.Contains(notification.Text, "known scammer") {
			t.Errorf("notification = %q, want scammer warning", notification.Text)
		}
		if got := len(actions(t, notification.Buttons)); got != 4 {
			t.Errorf("buttons = %d, want 4", got)
		}
		if _, ok := f.state(t).(session.AwaitApproval); !ok {
			t.Errorf("state = %#v, want AwaitApproval", f.state(t))
		}
	})

	t.Run("auto block", func(t *testing.T) {
		f := newFixture(t, Config{ScammerAutoBlock: true}, WithGate(gate))
		f.setState(t, session.ReceiveReason{})
		f.say(t, "let me in")

		notification := f.messenger.lastTo(t, moderatorChat)
		if got := actions(t, notification.Buttons); !equalActions(got, []review.Action{review.ActionUnblock}) {
			t.Errorf("buttons = %v, want Unblock", got)
		}
		if got := f.state(t); got != (session.Blocked{}) {
			t.Errorf("state = %#v, want Blocked", got)
		}
		if got := f.messenger.lastTo(t, applicantChat).Text; got != f.text("blocked") {
			t.Errorf("reply = %q, want blocked", got)
		}
	})

	t.Run("unknown user", func(t *testing.T) {
		f := newFixture(t, Config{ScammerAutoBlock: true}, WithGate(fakeGate{}))
		f.setState(t, session.ReceiveReason{})
		f.say(t, "let me in")

		if strings.Contains(f.messenger.lastTo(t, moderatorChat).Text, "scammer") {
			t.Error("unknown user flagged as scammer")
		}
	})
}

func TestEngine_HandleChannelPost(t *testing.T) {
	f := newFixture(t, Config{ChannelID: channelChat})
	ctx := context.Background()

	if err := f.engine.HandleChannelPost(ctx, ChannelPost{ChatID: channelChat, MessageID: 7}); err != nil {
		t.Fatalf("HandleChannelPost() error = %v", err)
	}
	if err := f.engine.HandleChannelPost(ctx, ChannelPost{ChatID: -1, MessageID: 8}); err != nil {
		t.Fatalf("HandleChannelPost() error = %v", err)
	}

	if len(f.messenger.forwarded) != 1 || f.messenger.forwarded[0] != 7 {
		t.Errorf("forwarded = %v, want [7]", f.messenger.forwarded)
	}
	if len(f.messenger.pinned) != 1 || f.messenger.pinned[0] != 1007 {
		t.Errorf("pinned = %v, want [1007]", f.messenger.pinned)
	}

	off := newFixture(t, Config{})
	if err := off.engine.HandleChannelPost(ctx, ChannelPost{ChatID: channelChat, MessageID: 7}); err != nil {
		t.Fatalf("HandleChannelPost() error = %v", err)
	}
	if len(off.messenger.forwarded) != 0 {
		t.Error("channel relay ran without a configured channel")
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		want Command
	}{
		{"start", CommandStart},
		{"START", CommandStart},
		{"help", CommandHelp},
		{"cancel", CommandCancel},
		{"privacy", CommandPrivacy},
		{"join", CommandNone},
		{"", CommandNone},
	}

	for _, tt := range tests {
		if got := ParseCommand(tt.name); got != tt.want {
			t.Errorf("ParseCommand(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestSender_Names(t *testing.T) {
	tests := []struct {
		name        string
		sender      Sender
		wantDisplay string
		wantMention string
	}{
		{
			name:        "first name only",
			sender:      Sender{ID: 5, FirstName: "Bob"},
			wantDisplay: "Bob",
			wantMention: `<a href="tg://user?id=5">Bob</a>`,
		},
		{
			name:        "full name and username",
			sender:      Sender{ID: 6, FirstName: "A&B", LastName: "Co", Username: "ab_co"},
			wantDisplay: "A&B Co (@ab_co)",
			wantMention: `<a href="tg://user?id=6">A&amp;B Co</a> (@ab_co)`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.sender.DisplayName(); got != tt.wantDisplay {
				t.Errorf("DisplayName() = %q, want %q", got, tt.wantDisplay)
			}
			if got := tt.sender.Mention(); got != tt.wantMention {
				t.Errorf("Mention() = %q, want %q", got, tt.wantMention)
			}
		})
	}
}

func equalActions(a, b []review.Action) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestEngine_ApproveUsesInviteTTL(t *testing.T) {
	f := newFixture(t, Config{InviteTTL: 90 * time.Minute})
	ctx := context.Background()

	f.say(t, "/start")
	f.say(t, "hello")
	pending, ok := f.state(t).(session.AwaitApproval)
	if !ok {
		t.Fatalf("state = %#v, want AwaitApproval", f.state(t))
	}

	cb := press(t, f.messenger.lastTo(t, moderatorChat).Buttons, review.ActionApprove, pending.MessageID)
	if err := f.engine.HandleCallback(ctx, cb); err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}

	want := time.Date(2026, 3, 1, 13, 30, 0, 0, time.UTC)
	if len(f.messenger.invites) != 1 || !f.messenger.invites[0].expiresAt.Equal(want) {
		t.Fatalf("invites = %+v, want one expiring at %v", f.messenger.invites, want)
	}
	got := f.messenger.lastTo(t, applicantChat).Text
	if !strings.Contains(got, "2026-03-01 13:30 UTC") || strings.Contains(got, "24") {
		t.Errorf("notification = %q, want expiry 2026-03-01 13:30 UTC", got)
	}
}
