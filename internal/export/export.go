// Package export renders reconciled conversations into portable files,
// one per conversation, inside a freshly allocated output directory.
package export

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Napageneral/smsexport/internal/assemble"
	"github.com/Napageneral/smsexport/internal/contacts"
)

// Format selects the rendered file format.
type Format string

const (
	FormatText Format = "text"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// ParseFormat validates a caller-supplied format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatText:
		return FormatText, nil
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", fmt.Errorf("unknown format %q (expected text, csv or json)", s)
}

// Ext returns the file extension for the format.
func (f Format) Ext() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	default:
		return "txt"
	}
}

// Conversation is the transient export-time grouping of one thread.
type Conversation struct {
	Key      string
	Messages []assemble.Message
}

// Result reports where the export landed and how degraded it was.
// Write failures are counted, never fatal to the batch.
type Result struct {
	OutputDir     string
	Conversations int
	FilesWritten  int
	Messages      int
	WriteFailures int
}

// Options configures one export run.
type Options struct {
	Format  Format
	BaseDir string
	Logger  *zap.Logger
}

// Run groups messages by conversation key, orders each group by timestamp,
// renders it and writes one file per conversation into a newly allocated
// output directory under BaseDir.
func Run(messages []assemble.Message, ix *contacts.Index, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if ix == nil {
		ix = contacts.NewIndex()
	}

	outDir, err := AllocateOutputDir(opts.BaseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate output directory: %w", err)
	}

	conversations := Group(messages)
	result := &Result{
		OutputDir:     outDir,
		Conversations: len(conversations),
	}

	used := make(map[string]struct{})
	for _, conv := range conversations {
		stem := SanitizeFileName(conversationName(conv, ix))
		if _, taken := used[stem]; taken {
			stem = stem + "_" + SanitizeFileName(conv.Key)
		}
		used[stem] = struct{}{}

		path := filepath.Join(outDir, stem+"."+opts.Format.Ext())

		data, err := render(conv, ix, opts.Format)
		if err == nil {
			err = os.WriteFile(path, data, 0644)
		}
		if err != nil {
			result.WriteFailures++
			logger.Warn("failed to export conversation",
				zap.String("conversation", conv.Key),
				zap.String("path", path),
				zap.Error(err))
			continue
		}

		result.FilesWritten++
		result.Messages += len(conv.Messages)
	}

	logger.Info("export complete",
		zap.String("output_dir", outDir),
		zap.Int("conversations", result.Conversations),
		zap.Int("files_written", result.FilesWritten),
		zap.Int("messages", result.Messages),
		zap.Int("write_failures", result.WriteFailures))

	return result, nil
}

// Group partitions messages by conversation key, preserving first-seen
// conversation order, and stable-sorts each group by timestamp so ties
// keep extraction order. Grouping is always by key, never by display name.
func Group(messages []assemble.Message) []Conversation {
	byKey := make(map[string]int)
	var conversations []Conversation

	for _, msg := range messages {
		idx, ok := byKey[msg.ConversationKey]
		if !ok {
			idx = len(conversations)
			byKey[msg.ConversationKey] = idx
			conversations = append(conversations, Conversation{Key: msg.ConversationKey})
		}
		conversations[idx].Messages = append(conversations[idx].Messages, msg)
	}

	for i := range conversations {
		msgs := conversations[i].Messages
		sort.SliceStable(msgs, func(a, b int) bool {
			return msgs[a].Timestamp.Before(msgs[b].Timestamp)
		})
	}

	return conversations
}

// conversationName derives the display name used for the file stem:
// the group name (or a placeholder) for group chats, otherwise the
// resolved name or raw address of the other party.
func conversationName(conv Conversation, ix *contacts.Index) string {
	if len(conv.Messages) == 0 {
		return conv.Key
	}
	first := conv.Messages[0]

	if first.IsGroup {
		if first.GroupName != "" {
			return first.GroupName
		}
		return "Group Chat"
	}

	for _, msg := range conv.Messages {
		if msg.IsFromMe {
			continue
		}
		if msg.DisplayName != "" {
			return msg.DisplayName
		}
		return msg.Address
	}

	// All outbound: fall back to the chat participants.
	for _, p := range first.Participants {
		if p == assemble.MeAddress {
			continue
		}
		if name, ok := ix.Lookup(p); ok {
			return name
		}
		return p
	}
	return conv.Key
}

var (
	invalidFileChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	whitespaceRuns   = regexp.MustCompile(`\s+`)
)

// SanitizeFileName replaces filesystem-hostile characters with underscores
// and collapses whitespace runs to a single underscore.
func SanitizeFileName(name string) string {
	name = invalidFileChars.ReplaceAllString(name, "_")
	return whitespaceRuns.ReplaceAllString(name, "_")
}

func render(conv Conversation, ix *contacts.Index, format Format) ([]byte, error) {
	switch format {
	case FormatCSV:
		return renderCSV(conv), nil
	case FormatJSON:
		return renderJSON(conv)
	default:
		return renderText(conv, ix), nil
	}
}

// senderLabel is the rendered sender for a message: always "Me" for
// outbound, regardless of any resolved display name.
func senderLabel(msg assemble.Message) string {
	if msg.IsFromMe {
		return "Me"
	}
	if msg.DisplayName != "" {
		return msg.DisplayName
	}
	return msg.Address
}
