// Package conv holds the conversation data model: role-tagged messages in
// chronological order, with the system message pinned at index 0.
package conv

// Role identifies who produced a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single conversation entry. Messages are never mutated after
// being appended.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is an ordered sequence of messages. Index 0 is always the
// current system message. The zero value is not usable; construct with New.
//
// Conversation has value semantics: Append, Trim and WithSystem return a new
// value and leave the receiver untouched, so a snapshot handed to a renderer
// stays stable while the engine keeps appending.
type Conversation struct {
	msgs []Message
}

// New returns a conversation seeded with the given system message.
func New(systemPrompt string) Conversation {
	return Conversation{msgs: []Message{{Role: RoleSystem, Content: systemPrompt}}}
}

// Append returns a new conversation with msgs added at the end.
func (c Conversation) Append(msgs ...Message) Conversation {
	out := make([]Message, 0, len(c.msgs)+len(msgs))
	out = append(out, c.msgs...)
	out = append(out, msgs...)
	return Conversation{msgs: out}
}

// WithSystem returns a new conversation whose system message is replaced
// wholesale. All other messages are kept.
func (c Conversation) WithSystem(content string) Conversation {
	out := make([]Message, len(c.msgs))
	copy(out, c.msgs)
	out[0] = Message{Role: RoleSystem, Content: content}
	return Conversation{msgs: out}
}

// Messages returns a copy of the message sequence.
func (c Conversation) Messages() []Message {
	out := make([]Message, len(c.msgs))
	copy(out, c.msgs)
	return out
}

// Len reports the number of messages, including the system message.
func (c Conversation) Len() int { return len(c.msgs) }

// System returns the current system message.
func (c Conversation) System() Message { return c.msgs[0] }

// Last returns the most recent message.
func (c Conversation) Last() Message { return c.msgs[len(c.msgs)-1] }

// Trim bounds the conversation to maxMessages entries. The system message and
// the most recent maxMessages-1 entries are kept; everything strictly between
// is discarded. A conversation already within the bound is returned unchanged,
// so repeated trims with the same bound are idempotent.
func (c Conversation) Trim(maxMessages int) Conversation {
	if maxMessages < 1 || len(c.msgs) <= maxMessages {
		return c
	}
	out := make([]Message, 0, maxMessages)
	out = append(out, c.msgs[0])
	out = append(out, c.msgs[len(c.msgs)-(maxMessages-1):]...)
	return Conversation{msgs: out}
}
