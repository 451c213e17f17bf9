// Package transcript renders a conversation's retained history into a
// durable, deterministic text document.
package transcript

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/spec-kit/ticket-bot/internal/platform"
)

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9-_]`)

// Document is an exportable transcript.
type Document struct {
	Filename string
	Body     []byte
}

// Render produces the transcript for a ticket conversation. Messages are
// ordered by ascending timestamp regardless of retrieval order, and
// platform-system messages (joins, pins and the like) are excluded. The
// filename is derived from the sanitized creator name and the closing date.
func Render(creatorName string, now time.Time, msgs []platform.Message) Document {
	ordered := make([]platform.Message, 0, len(msgs))
	for _, msg := range msgs {
		if msg.System {
			continue
		}
		ordered = append(ordered, msg)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Timestamp.Before(ordered[j].Timestamp)
	})

	var buf bytes.Buffer
	for _, msg := range ordered {
		fmt.Fprintf(&buf, "[%s] %s: %s\n", msg.Timestamp.UTC().Format(time.RFC3339), msg.AuthorName, msg.Body)
	}

	return Document{
		Filename: Filename(creatorName, now),
		Body:     buf.Bytes(),
	}
}

// Filename builds the export filename: ticket-{sanitizedCreator}-{date}.txt.
func Filename(creatorName string, now time.Time) string {
	return fmt.Sprintf("ticket-%s-%s.txt", SanitizeName(creatorName), now.UTC().Format("2006-01-02"))
}

// SanitizeName strips characters that are unsafe in filenames.
func SanitizeName(name string) string {
	return unsafeNameChars.ReplaceAllString(name, "_")
}
