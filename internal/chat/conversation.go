package chat

import "chatgate/internal/upstream"

// Turn roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in a conversation. The in-progress assistant turn is
// mutated in place while a response streams, so turns are shared by pointer.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Conversation holds the ordered turn sequence for one chat, plus the optional
// system prompt that is logically first.
type Conversation struct {
	System string
	Turns  []*Turn
}

// Append adds a turn to the end of the conversation and returns it.
func (c *Conversation) Append(role, content string) *Turn {
	t := &Turn{Role: role, Content: content}
	c.Turns = append(c.Turns, t)
	return t
}

// Messages builds the outgoing message sequence: the system turn, when
// non-empty, is prepended; nil entries are filtered out.
func (c *Conversation) Messages() []upstream.Message {
	msgs := make([]upstream.Message, 0, len(c.Turns)+1)
	if c.System != "" {
		msgs = append(msgs, upstream.Message{Role: RoleSystem, Content: c.System})
	}
	for _, t := range c.Turns {
		if t == nil {
			continue
		}
		msgs = append(msgs, upstream.Message{Role: t.Role, Content: t.Content})
	}
	return msgs
}

// assistantTarget returns the turn a streaming response should write into:
// a pre-seeded trailing assistant stub is reused, otherwise a fresh empty
// assistant turn is appended.
func (c *Conversation) assistantTarget() *Turn {
	if n := len(c.Turns); n > 0 && c.Turns[n-1] != nil && c.Turns[n-1].Role == RoleAssistant {
		return c.Turns[n-1]
	}
	return c.Append(RoleAssistant, "")
}
