package catalog

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// StripMarkup returns the visible text of s with HTML tags removed, entities
// decoded and whitespace collapsed. Script and style bodies are dropped.
func StripMarkup(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return cleanText(s)
	}

	tokenizer := html.NewTokenizer(strings.NewReader(s))
	var textBuilder strings.Builder
	inScript := false
	inStyle := false

	for {
		switch tokenizer.Next() {
		case html.ErrorToken:
			if tokenizer.Err() != io.EOF {
				// Malformed markup: fall back to the raw text
				return cleanText(s)
			}
			return cleanText(textBuilder.String())

		case html.StartTagToken:
			switch tokenizer.Token().Data {
			case "script":
				inScript = true
			case "style":
				inStyle = true
			}

		case html.EndTagToken:
			switch tokenizer.Token().Data {
			case "script":
				inScript = false
			case "style":
				inStyle = false
			}

		case html.TextToken:
			if !inScript && !inStyle {
				textBuilder.WriteString(tokenizer.Token().Data)
				textBuilder.WriteByte(' ')
			}
		}
	}
}

// cleanText removes excessive whitespace
func cleanText(input string) string {
	return strings.Join(strings.Fields(input), " ")
}
