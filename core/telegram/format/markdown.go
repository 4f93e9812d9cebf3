package format

import (
	"fmt"
	"strings"
)

const (
	// MarkdownV1 denotes Telegram markdown version 1.
	MarkdownV1 = 1
	// MarkdownV2 denotes Telegram markdown version 2.
	MarkdownV2 = 2
)

var (
	mdV1 = replacerFor("_*`[")
	mdV2 = replacerFor(`\_*[]()~` + "`" + `>#+-=|{}.!`)
)

func replacerFor(specials string) *strings.Replacer {
	pairs := make([]string, 0, 2*len(specials))
	for _, r := range specials {
		pairs = append(pairs, string(r), `\`+string(r))
	}
	return strings.NewReplacer(pairs...)
}

// EscapeMarkdown escapes Telegram markdown specials for the given version.
func EscapeMarkdown(text string, version int) (string, error) {
	switch version {
	case MarkdownV1:
		return mdV1.Replace(text), nil
	case MarkdownV2:
		return mdV2.Replace(text), nil
	}
	return "", fmt.Errorf("unsupported markdown version: %d", version)
}

// MD escapes user-controlled text for ParseMode Markdown (v1).
func MD(text string) string {
	return mdV1.Replace(text)
}
