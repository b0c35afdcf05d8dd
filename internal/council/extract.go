// internal/council/extract.go
package council

import (
	"regexp"
	"strings"
)

var (
	fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*\n?(.*?)\n?```")
	jsonObjectRe  = regexp.MustCompile(`(?s)\{.*\}`)
)

// ExtractJSON pulls a JSON object out of raw model text. Models wrap their
// output in prose and markdown fences despite instructions, so extraction
// applies, in order:
//
//  1. text starting with '{': brace-depth scan to the matching close,
//     tolerating trailing commentary after the object;
//  2. a fenced code block (``` optionally tagged json): its interior;
//  3. the first {...} span anywhere in the text;
//  4. the trimmed text as-is (left to fail validation).
//
// Extraction is deterministic: identical input yields identical output.
func ExtractJSON(text string) string {
	trimmed := strings.TrimSpace(text)

	if strings.HasPrefix(trimmed, "{") {
		depth := 0
		for i, r := range trimmed {
			switch r {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return trimmed[:i+1]
				}
			}
		}
		// Unbalanced braces; fall through to the other strategies.
	}

	if m := fencedBlockRe.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}

	if m := jsonObjectRe.FindString(text); m != "" {
		return m
	}

	return trimmed
}
