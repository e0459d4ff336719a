package export

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Napageneral/smsexport/internal/contacts"
)

// renderText emits the plain-text transcript. Group chats get a header
// block naming the chat and its participants before the messages.
func renderText(conv Conversation, ix *contacts.Index) []byte {
	var b strings.Builder
	first := conv.Messages[0]

	if first.IsGroup {
		name := first.GroupName
		if name == "" {
			name = "Group Chat"
		}
		b.WriteString("Group Chat: " + name + "\n")
		b.WriteString("Participants:\n")
		for _, p := range first.Participants {
			if resolved, ok := ix.Lookup(p); ok {
				b.WriteString(resolved + "\n")
			} else {
				b.WriteString(p + "\n")
			}
		}
		b.WriteString(strings.Repeat("-", 50) + "\n\n")
	}

	for _, msg := range conv.Messages {
		b.WriteString("[" + msg.Timestamp.Format("2006-01-02 15:04") + "] " + senderLabel(msg) + ":\n")
		b.WriteString(msg.Text + "\n\n")
	}

	return []byte(b.String())
}

var csvHeader = []string{"Timestamp", "Sender", "Message", "Is Group Chat", "Group Name", "Participants"}

// renderCSV emits one row per message. Every field is double-quoted and
// literal quotes are escaped by doubling, so `He said "hi"` round-trips
// under standard CSV parsing. encoding/csv is not used because it quotes
// only when necessary, while this format always quotes.
func renderCSV(conv Conversation) []byte {
	var b strings.Builder
	writeRow := func(fields []string) {
		for i, f := range fields {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(f, `"`, `""`))
			b.WriteByte('"')
		}
		b.WriteByte('\n')
	}

	writeRow(csvHeader)
	for _, msg := range conv.Messages {
		isGroup := "false"
		if msg.IsGroup {
			isGroup = "true"
		}
		writeRow([]string{
			msg.Timestamp.Format("2006-01-02 15:04:05"),
			senderLabel(msg),
			msg.Text,
			isGroup,
			msg.GroupName,
			strings.Join(msg.Participants, ";"),
		})
	}

	return []byte(b.String())
}

type jsonMessage struct {
	Timestamp string `json:"timestamp"`
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	IsFromMe  bool   `json:"isFromMe"`
}

type jsonConversation struct {
	IsGroupChat  bool          `json:"isGroupChat"`
	GroupName    string        `json:"groupName"`
	Participants []string      `json:"participants"`
	Messages     []jsonMessage `json:"messages"`
}

// renderJSON emits one object per conversation with ISO-8601 timestamps.
func renderJSON(conv Conversation) ([]byte, error) {
	first := conv.Messages[0]
	out := jsonConversation{
		IsGroupChat:  first.IsGroup,
		GroupName:    first.GroupName,
		Participants: first.Participants,
		Messages:     make([]jsonMessage, 0, len(conv.Messages)),
	}
	if out.Participants == nil {
		out.Participants = []string{}
	}

	for _, msg := range conv.Messages {
		out.Messages = append(out.Messages, jsonMessage{
			Timestamp: msg.Timestamp.UTC().Format(time.RFC3339),
			Sender:    senderLabel(msg),
			Text:      msg.Text,
			IsFromMe:  msg.IsFromMe,
		})
	}

	return json.MarshalIndent(out, "", "  ")
}
