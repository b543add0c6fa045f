// Package review encodes moderation decisions into the opaque payload carried
// by a moderator's inline button and decodes them back when the button is pressed.
//
// Layout (little-endian, then unpadded standard base64):
//
//	offset 0   1 byte  action tag
//	offset 1   8 bytes chat id (int64)
//	offset 9   8 bytes user id (uint64)
//	offset 17  1 byte  locale length N
//	offset 18  N bytes locale (UTF-8 language tag)
package review

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/language"
)

const (
	// headerSize is the fixed part of an encoded review, before the locale bytes.
	headerSize = 18

	// MaxLocaleLength is the largest locale the one-byte length prefix can describe.
	MaxLocaleLength = 255

	// MaxPayloadSize is the Bot API limit for inline button callback data.
	MaxPayloadSize = 64
)

var (
	ErrInvalidEncoding = errors.New("review: invalid base64 encoding")
	ErrTruncated       = errors.New("review: payload truncated")
	ErrUnknownAction   = errors.New("review: unknown action")
	ErrInvalidLocale   = errors.New("review: invalid locale")
	ErrLocaleTooLong   = errors.New("review: locale longer than 255 bytes")
	ErrPayloadTooLarge = errors.New("review: payload does not fit the button limit")
)

var encoding = base64.RawStdEncoding

// Review is a moderator decision together with the context needed to apply it.
type Review struct {
	Action Action
	ChatID int64
	UserID uint64
	Locale string
}

// New creates a review for the given applicant.
func New(action Action, chatID int64, userID uint64, locale string) Review {
	return Review{Action: action, ChatID: chatID, UserID: userID, Locale: locale}
}

// WithAction returns a copy of r carrying a different action.
func (r Review) WithAction(action Action) Review {
	r.Action = action
	return r
}

// Encode serializes the review. Identical reviews always produce identical output.
func (r Review) Encode() (string, error) {
	if len(r.Locale) > MaxLocaleLength {
		return "", ErrLocaleTooLong
	}

	buf := make([]byte, headerSize+len(r.Locale))
	buf[0] = byte(r.Action)
	binary.LittleEndian.PutUint64(buf[1:9], uint64(r.ChatID))
	binary.LittleEndian.PutUint64(buf[9:17], r.UserID)
	buf[17] = byte(len(r.Locale))
	copy(buf[headerSize:], r.Locale)

	return encoding.EncodeToString(buf), nil
}

// EncodePayload encodes the review so that it fits MaxPayloadSize. When the
// full locale is too long it falls back to the base language and finally to
// no locale at all, which decodes to the default language.
func (r Review) EncodePayload() (string, error) {
	for _, locale := range localeCandidates(r.Locale) {
		r.Locale = locale
		payload, err := r.Encode()
		if err != nil {
			continue
		}
		if len(payload) <= MaxPayloadSize {
			return payload, nil
		}
	}
	return "", ErrPayloadTooLarge
}

func localeCandidates(locale string) []string {
	candidates := []string{locale}
	if tag, err := language.Parse(locale); err == nil {
		if base, conf := tag.Base(); conf != language.No {
			if b := base.String(); b != locale {
				candidates = append(candidates, b)
			}
		}
	}
	return append(candidates, "")
}

// Decode parses a payload produced by Encode. Checks run in a fixed order:
// base64, minimum length, declared locale length, action tag, locale.
func Decode(payload string) (Review, error) {
	buf, err := encoding.DecodeString(payload)
	if err != nil {
		return Review{}, fmt.Errorf("%w: %v", ErrInvalidEncoding, err)
	}

	if len(buf) < headerSize {
		return Review{}, fmt.Errorf("%w: %d bytes", ErrTruncated, len(buf))
	}

	n := int(buf[17])
	if headerSize+n > len(buf) {
		return Review{}, fmt.Errorf("%w: locale needs %d bytes, %d left", ErrTruncated, n, len(buf)-headerSize)
	}

	action := Action(buf[0])
	if !action.Valid() {
		return Review{}, fmt.Errorf("%w: %d", ErrUnknownAction, buf[0])
	}

	locale := buf[headerSize : headerSize+n]
	if err := validateLocale(locale); err != nil {
		return Review{}, err
	}

	return Review{
		Action: action,
		ChatID: int64(binary.LittleEndian.Uint64(buf[1:9])),
		UserID: binary.LittleEndian.Uint64(buf[9:17]),
		Locale: string(locale),
	}, nil
}

// An empty locale is allowed and means "use the default language".
func validateLocale(locale []byte) error {
	if len(locale) == 0 {
		return nil
	}
	if !utf8.Valid(locale) {
		return fmt.Errorf("%w: not UTF-8", ErrInvalidLocale)
	}
	if _, err := language.Parse(string(locale)); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrInvalidLocale, locale, err)
	}
	return nil
}
