package extraction

import (
	"regexp"
	"strings"
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// StripCodeFence returns the JSON payload of a model answer, with or without a
// fenced code block around it.
func StripCodeFence(answer string) string {
	if m := fencedJSON.FindStringSubmatch(answer); m != nil {
		return strings.TrimSpace(m[1])
	}
	return strings.TrimSpace(answer)
}
