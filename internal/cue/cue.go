// Package cue defines the wire types shared by the publish path, the event
// bus, and the dispatcher, plus the glob matching used for cue names.
package cue

import (
	"regexp"
	"strings"
)

// Subject is the event-bus subject every server instance publishes to and
// the dispatcher subscribes to.
const Subject = "cues"

// MaxContentBytes caps the raw body of a publish (512 KiB).
const MaxContentBytes = 512 * 1024

// MaxListenPatterns caps the number of patterns a single listen session may
// subscribe with.
const MaxListenPatterns = 128

// Payload is the message carried on the event bus for one published cue.
// Content is the base64 of the raw request body, or nil when the body was
// empty.
type Payload struct {
	ID      string   `json:"id"`
	UID     string   `json:"uid"`
	Names   []string `json:"names"`
	Content *string  `json:"content"`
}

// Envelope is the frame delivered to a listen session. Names holds only the
// published names that matched the session's subscription, sorted.
type Envelope struct {
	ID      string   `json:"id"`
	Names   []string `json:"names"`
	Content *string  `json:"content"`
}

// Match reports whether name matches the shell-style glob pattern
// (*, ?, [set], [!set]) against the whole string. Cue names are opaque
// strings, not paths: wildcards cross every character, including "/".
func Match(name, pattern string) bool {
	re, err := regexp.Compile(translate(pattern))
	if err != nil {
		return false
	}
	return re.MatchString(name)
}

// translate converts a glob pattern into an anchored regular expression.
// An unterminated set is matched literally.
func translate(pattern string) string {
	var b strings.Builder
	b.WriteString(`(?s)^`)
	for i := 0; i < len(pattern); {
		c := pattern[i]
		i++
		switch c {
		case '*':
			b.WriteString(`.*`)
		case '?':
			b.WriteByte('.')
		case '[':
			j := i
			if j < len(pattern) && (pattern[j] == '!' || pattern[j] == '^') {
				j++
			}
			// A "]" in first position is a set member, not the closer.
			if j < len(pattern) && pattern[j] == ']' {
				j++
			}
			for j < len(pattern) && pattern[j] != ']' {
				j++
			}
			if j >= len(pattern) {
				b.WriteString(`\[`)
				continue
			}
			set := pattern[i:j]
			i = j + 1
			b.WriteByte('[')
			if strings.HasPrefix(set, "!") {
				b.WriteByte('^')
				set = set[1:]
			}
			if strings.HasPrefix(set, "^") {
				b.WriteByte('\\')
			}
			b.WriteString(strings.ReplaceAll(set, `\`, `\\`))
			b.WriteByte(']')
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	b.WriteByte('$')
	return b.String()
}
