// Package callbacks encodes and decodes inline-button data of the form
// "<key>:<payload>", where payload parts are separated by ':' as well.
package callbacks

import (
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"
)

// Sep separates the key from the payload and payload parts from each other.
const Sep = ":"

// MaxDataLen is Telegram's limit for callback_data in bytes.
const MaxDataLen = 64

// Data builds callback data from a key and payload parts.
func Data(key string, parts ...string) string {
	if len(parts) == 0 {
		return key
	}
	return key + Sep + strings.Join(parts, Sep)
}

// Parse splits raw callback data into key and payload. A leading "\f" unique
// marker, as produced by telebot's Data buttons, is ignored.
func Parse(raw string) (string, string) {
	raw = strings.TrimPrefix(raw, "\f")
	key, payload, _ := strings.Cut(raw, Sep)
	return strings.TrimSpace(key), payload
}

// Key returns the callback key of c, or "" for non-callback updates.
func Key(c tele.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	if cb.Unique != "" {
		return cb.Unique
	}
	k, _ := Parse(cb.Data)
	return k
}

// Payload returns everything after the key separator.
func Payload(c tele.Context) string {
	cb := c.Callback()
	if cb == nil {
		return ""
	}
	if cb.Unique != "" {
		return cb.Data
	}
	_, p := Parse(cb.Data)
	return p
}

// PayloadParts splits the payload into exactly n parts; the last part keeps
// any further separators. It returns strconv.ErrSyntax when fewer parts exist.
func PayloadParts(c tele.Context, n int) ([]string, error) {
	p := Payload(c)
	if p == "" {
		return nil, strconv.ErrSyntax
	}
	parts := strings.SplitN(p, Sep, n)
	if len(parts) != n {
		return nil, strconv.ErrSyntax
	}
	return parts, nil
}

// PayloadInts parses a payload of n integers.
func PayloadInts(c tele.Context, n int) ([]int, error) {
	parts, err := PayloadParts(c, n)
	if err != nil {
		return nil, err
	}
	out := make([]int, n)
	for i, s := range parts {
		v, err := strconv.Atoi(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
