package agent

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/kokoro-dev/kokoro/pkg/utils/logging"
)

// structuredReply is the three-field decomposition of a raw draft.
type structuredReply struct {
	Reflection string
	Reply      string
	FollowUp   string
}

func extractTag(payload, tag string) string {
	open := "<" + tag + ">"
	close := "</" + tag + ">"
	start := strings.Index(payload, open)
	if start == -1 {
		return ""
	}
	start += len(open)
	end := strings.Index(payload[start:], close)
	if end == -1 {
		return strings.TrimSpace(payload[start:])
	}
	return strings.TrimSpace(payload[start : start+end])
}

// parseStructuredReply extracts reflection, reply, and follow-up from a
// draft. It tries tag extraction first, then the outermost JSON object,
// and finally treats the whole draft as the reply. It never fails; a
// malformed draft degrades to the last form.
func parseStructuredReply(ctx context.Context, draft string) structuredReply {
	candidate := strings.TrimSpace(draft)

	if strings.Contains(candidate, "<reply>") {
		return structuredReply{
			Reflection: extractTag(candidate, "thinking"),
			Reply:      extractTag(candidate, "reply"),
			FollowUp:   extractTag(candidate, "follow_up"),
		}
	}

	start := strings.Index(candidate, "{")
	end := strings.LastIndex(candidate, "}")
	if start != -1 && end != -1 && start < end {
		var data struct {
			Reflection string `json:"reflection"`
			Reply      string `json:"reply"`
			FollowUp   string `json:"follow_up"`
		}
		if err := json.Unmarshal([]byte(candidate[start:end+1]), &data); err == nil {
			return structuredReply{
				Reflection: strings.TrimSpace(data.Reflection),
				Reply:      strings.TrimSpace(data.Reply),
				FollowUp:   strings.TrimSpace(data.FollowUp),
			}
		}
		logging.From(ctx).Debug("structured reply JSON did not parse, using raw draft")
	}

	return structuredReply{Reply: candidate}
}

// tagSnapshot returns the current content of tag within a partially
// received payload, and whether the closing tag has arrived. A nil first
// return means the opening tag has not appeared yet.
func tagSnapshot(payload, tag string) (*string, bool) {
	open := "<" + tag + ">"
	close := "</" + tag + ">"
	start := strings.Index(payload, open)
	if start == -1 {
		return nil, false
	}
	start += len(open)
	end := strings.Index(payload[start:], close)
	if end == -1 {
		body := payload[start:]
		return &body, false
	}
	body := payload[start : start+end]
	return &body, true
}

// tagStream tracks incremental tag content across streamed chunks so
// thinking and reply deltas can be emitted as they arrive. Thinking deltas
// always precede reply deltas within a turn because the prompt demands tag
// order and emission follows payload order.
type tagStream struct {
	payload  strings.Builder
	thinking int
	reply    int
}

// delta describes newly arrived content for one logical field.
type delta struct {
	thinking string
	reply    string
}

// feed appends a chunk and reports the unseen portions of the thinking and
// reply tags.
func (t *tagStream) feed(chunk string) delta {
	t.payload.WriteString(chunk)
	payload := t.payload.String()

	var d delta
	if body, _ := tagSnapshot(payload, "thinking"); body != nil && len(*body) > t.thinking {
		d.thinking = (*body)[t.thinking:]
		t.thinking = len(*body)
	}
	if body, _ := tagSnapshot(payload, "reply"); body != nil && len(*body) > t.reply {
		d.reply = (*body)[t.reply:]
		t.reply = len(*body)
	}
	return d
}

func (t *tagStream) raw() string {
	return t.payload.String()
}
