// Package thread detects content already recorded for a conversation thread
// and trims repeated thread history from new replies.
package thread

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/intake-cli/internal/model"
	"github.com/sells-group/intake-cli/internal/store"
)

const (
	// DuplicateThreshold is the note similarity at which a message is a
	// pure duplicate of already-recorded thread content.
	DuplicateThreshold = 0.8

	// SuffixThreshold is the similarity a trailing window of new content
	// needs to count as a quoted prior body.
	SuffixThreshold = 0.85

	// MinPriorWords is the shortest prior body considered for trimming.
	MinPriorWords = 5

	// MinNewContent is the shortest trimmed reply kept. Shorter results fall
	// back to the full content.
	MinNewContent = 20
)

// Store is the subset of the record store the deduplicator reads.
type Store interface {
	ListMessages(ctx context.Context, filter store.MessageFilter) ([]model.InboundMessage, error)
	GetNotesByIDs(ctx context.Context, ids []string) ([]model.Note, error)
}

// Deduplicator compares new messages against processed messages of the
// same thread.
type Deduplicator struct {
	store Store
}

// New creates a Deduplicator backed by st.
func New(st Store) *Deduplicator {
	return &Deduplicator{store: st}
}

// History returns the processed messages of threadID, excluding excludeID.
// An empty thread id has no history.
func (d *Deduplicator) History(ctx context.Context, threadID, excludeID string) ([]model.InboundMessage, error) {
	if threadID == "" {
		return nil, nil
	}
	msgs, err := d.store.ListMessages(ctx, store.ThreadFilter(threadID))
	if err != nil {
		return nil, eris.Wrapf(err, "thread: list history for %s", threadID)
	}
	out := msgs[:0]
	for _, m := range msgs {
		if m.ID != excludeID {
			out = append(out, m)
		}
	}
	return out, nil
}

// IsDuplicate follows the linkage of history messages to the notes they
// created and reports whether content matches any of them at or above
// DuplicateThreshold. The best score is returned either way.
func (d *Deduplicator) IsDuplicate(ctx context.Context, content string, history []model.InboundMessage) (bool, float64, error) {
	var noteIDs []string
	seen := make(map[string]bool)
	for _, m := range history {
		id := m.Linkage.NoteID
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		noteIDs = append(noteIDs, id)
	}

	best := 0.0
	for start := 0; start < len(noteIDs); start += store.MaxNoteBatch {
		end := min(start+store.MaxNoteBatch, len(noteIDs))
		notes, err := d.store.GetNotesByIDs(ctx, noteIDs[start:end])
		if err != nil {
			return false, best, eris.Wrap(err, "thread: load thread notes")
		}
		for _, n := range notes {
			score := Similarity(content, n.Body)
			if score > best {
				best = score
			}
		}
	}

	if best >= DuplicateThreshold {
		zap.L().Debug("thread: duplicate content",
			zap.Float64("similarity", best),
			zap.Int("notes_compared", len(noteIDs)),
		)
		return true, best, nil
	}
	return false, best, nil
}

var reWord = regexp.MustCompile(`\S+`)

// ExtractNewContent removes the longest prior body found as a trailing
// suffix of content. When the remaining reply would be shorter than
// MinNewContent the full content is returned and trimmed is false.
func ExtractNewContent(content string, priors []string) (string, bool) {
	spans := reWord.FindAllStringIndex(content, -1)
	if len(spans) == 0 {
		return content, false
	}

	sorted := make([]string, 0, len(priors))
	for _, p := range priors {
		if strings.TrimSpace(p) != "" {
			sorted = append(sorted, p)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })

	for _, prior := range sorted {
		n := len(strings.Fields(prior))
		if n < MinPriorWords || n > len(spans) {
			continue
		}
		cut := spans[len(spans)-n][0]
		if Similarity(content[cut:], prior) < SuffixThreshold {
			continue
		}
		reply := strings.TrimSpace(content[:cut])
		if len(reply) < MinNewContent {
			return content, false
		}
		return reply, true
	}
	return content, false
}

var (
	reHTMLGmailQuote = regexp.MustCompile(`(?is)<div[^>]*class="[^"]*gmail_quote[^"]*"`)
	reHTMLBlockquote = regexp.MustCompile(`(?is)<blockquote\b`)
)

// TrimHTML cuts html at the first quoted-history container. It returns the
// input unchanged when no container is found or nothing would remain.
func TrimHTML(html string) (string, bool) {
	cut := -1
	for _, re := range []*regexp.Regexp{reHTMLGmailQuote, reHTMLBlockquote} {
		if loc := re.FindStringIndex(html); loc != nil && (cut < 0 || loc[0] < cut) {
			cut = loc[0]
		}
	}
	if cut < 0 {
		return html, false
	}
	trimmed := strings.TrimSpace(html[:cut])
	if trimmed == "" {
		return html, false
	}
	return trimmed, true
}
