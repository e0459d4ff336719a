// Package assemble joins the chat, handle and message tables of the
// backup message store into domain message records, each carrying a
// stable conversation key.
package assemble

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Napageneral/smsexport/internal/contacts"
	"github.com/Napageneral/smsexport/internal/store"
)

// MeAddress is the sentinel address for outbound messages.
const MeAddress = "me"

// In the message store schema, chat.style 43 marks a group chat and 45 a 1:1.
const groupChatStyle = 43

// Message is one reconciled message record.
type Message struct {
	ID              string
	Text            string
	Address         string // MeAddress when outbound
	IsFromMe        bool
	Timestamp       time.Time
	DisplayName     string // empty when unresolved
	ConversationKey string
	IsGroup         bool
	GroupName       string
	Participants    []string
}

// ChatMeta describes one chat row: grouping flag, optional name and the
// participant addresses resolved through the handle table. Built once per
// run and read-only afterwards.
type ChatMeta struct {
	IsGroup      bool
	GroupName    string
	Participants []string
}

// Result carries the assembled messages plus the degradation counters the
// caller reports. Skips are counted, never silent.
type Result struct {
	Messages             []Message
	ChatCount            int
	SkippedMissingHandle int
	ReactionsFiltered    int
}

// GroupPolicy decides whether a chat row is a group conversation. The
// canonical rule is the style sentinel; schema variants without a style
// column fall back to counting participants excluding self.
func GroupPolicy(style sql.NullInt64, participantCount int) bool {
	if style.Valid {
		return style.Int64 == groupChatStyle
	}
	return participantCount > 1
}

// Assemble runs the two-phase reconciliation: chat metadata first, then
// the message pass. All joins are bulk in-memory lookups; no per-message
// queries are issued.
func Assemble(st *store.Store, ix *contacts.Index, logger *zap.Logger) (*Result, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ix == nil {
		ix = contacts.NewIndex()
	}

	handles, err := loadHandles(st)
	if err != nil {
		return nil, err
	}

	meta, err := buildChatMeta(st, handles)
	if err != nil {
		return nil, err
	}

	chatByMessage, err := loadMessageChatJoin(st)
	if err != nil {
		return nil, err
	}

	result := &Result{ChatCount: len(meta)}

	// Resolve each distinct address once; the index scan is linear.
	resolved := make(map[string]string)
	lookupName := func(addr string) string {
		if name, ok := resolved[addr]; ok {
			return name
		}
		name, _ := ix.Lookup(addr)
		resolved[addr] = name
		return name
	}

	if err := scanMessages(st, func(row *messageRow) {
		if isReaction(row) {
			result.ReactionsFiltered++
			return
		}

		msg := Message{
			ID:        strconv.FormatInt(row.ROWID, 10),
			IsFromMe:  row.IsFromMe,
			Timestamp: AppleTime(row.Date),
		}

		if row.Text.Valid {
			msg.Text = row.Text.String
		}
		if msg.Text == "" && len(row.AttributedBody) > 0 {
			msg.Text = decodeAttributedBody(row.AttributedBody)
		}
		msg.Text = cleanMessageText(msg.Text)

		if row.IsFromMe {
			msg.Address = MeAddress
			msg.DisplayName = "Me"
		} else {
			addr, ok := handles[row.HandleID.Int64]
			if !row.HandleID.Valid || !ok {
				result.SkippedMissingHandle++
				logger.Debug("dropping message with unresolvable handle",
					zap.Int64("rowid", row.ROWID))
				return
			}
			msg.Address = addr
			msg.DisplayName = lookupName(addr)
		}

		if chatID, ok := chatByMessage[row.ROWID]; ok {
			msg.ConversationKey = strconv.FormatInt(chatID, 10)
		} else {
			// No chat join: the message stays a singleton conversation.
			msg.ConversationKey = "unknown-" + msg.ID
		}

		if m, ok := meta[msg.ConversationKey]; ok {
			msg.IsGroup = m.IsGroup
			msg.GroupName = m.GroupName
			msg.Participants = m.Participants
		} else {
			msg.Participants = []string{msg.Address}
		}

		result.Messages = append(result.Messages, msg)
	}); err != nil {
		return nil, err
	}

	logger.Info("assembled messages",
		zap.Int("messages", len(result.Messages)),
		zap.Int("chats", result.ChatCount),
		zap.Int("skipped_missing_handle", result.SkippedMissingHandle),
		zap.Int("reactions_filtered", result.ReactionsFiltered))

	return result, nil
}

// loadHandles builds the handle ROWID -> address map.
func loadHandles(st *store.Store) (map[int64]string, error) {
	if err := st.RequireTableColumns("handle", "ROWID", "id"); err != nil {
		return nil, err
	}

	rows, err := st.Query("handle", store.QueryOptions{Columns: []string{"ROWID", "id"}})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	handles := make(map[int64]string)
	for rows.Next() {
		var rowid int64
		var id string
		if err := rows.Scan(&rowid, &id); err != nil {
			return nil, fmt.Errorf("failed to scan handle: %w", err)
		}
		handles[rowid] = id
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating handles: %w", err)
	}
	return handles, nil
}

// buildChatMeta builds the conversation key -> ChatMeta map from the chat
// and chat_handle_join tables.
func buildChatMeta(st *store.Store, handles map[int64]string) (map[string]ChatMeta, error) {
	if err := st.RequireTableColumns("chat", "ROWID"); err != nil {
		return nil, err
	}
	if err := st.RequireTableColumns("chat_handle_join", "chat_id", "handle_id"); err != nil {
		return nil, err
	}

	hasDisplayName, err := st.HasColumn("chat", "display_name")
	if err != nil {
		return nil, err
	}
	hasStyle, err := st.HasColumn("chat", "style")
	if err != nil {
		return nil, err
	}

	// Participants per chat, resolved through the handle table. The join
	// table never includes self. A chat with zero resolved participants
	// still gets an entry.
	participants := make(map[int64][]string)
	joinRows, err := st.Query("chat_handle_join", store.QueryOptions{
		Columns: []string{"chat_id", "handle_id"},
	})
	if err != nil {
		return nil, err
	}
	defer joinRows.Close()
	for joinRows.Next() {
		var chatID, handleID int64
		if err := joinRows.Scan(&chatID, &handleID); err != nil {
			return nil, fmt.Errorf("failed to scan chat_handle_join: %w", err)
		}
		if addr, ok := handles[handleID]; ok {
			participants[chatID] = append(participants[chatID], addr)
		}
	}
	if err := joinRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat_handle_join: %w", err)
	}

	cols := []string{"ROWID"}
	if hasDisplayName {
		cols = append(cols, "display_name")
	}
	if hasStyle {
		cols = append(cols, "style")
	}

	chatRows, err := st.Query("chat", store.QueryOptions{Columns: cols})
	if err != nil {
		return nil, err
	}
	defer chatRows.Close()

	meta := make(map[string]ChatMeta)
	for chatRows.Next() {
		var rowid int64
		var displayName sql.NullString
		var style sql.NullInt64

		dest := []interface{}{&rowid}
		if hasDisplayName {
			dest = append(dest, &displayName)
		}
		if hasStyle {
			dest = append(dest, &style)
		}
		if err := chatRows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan chat: %w", err)
		}

		ps := participants[rowid]
		m := ChatMeta{
			IsGroup:      GroupPolicy(style, len(ps)),
			GroupName:    strings.TrimSpace(displayName.String),
			Participants: ps,
		}
		if m.Participants == nil {
			m.Participants = []string{}
		}
		meta[strconv.FormatInt(rowid, 10)] = m
	}
	if err := chatRows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chats: %w", err)
	}
	return meta, nil
}

// loadMessageChatJoin builds the message ROWID -> chat ROWID map.
func loadMessageChatJoin(st *store.Store) (map[int64]int64, error) {
	if err := st.RequireTableColumns("chat_message_join", "chat_id", "message_id"); err != nil {
		return nil, err
	}

	rows, err := st.Query("chat_message_join", store.QueryOptions{
		Columns: []string{"chat_id", "message_id"},
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	join := make(map[int64]int64)
	for rows.Next() {
		var chatID, messageID int64
		if err := rows.Scan(&chatID, &messageID); err != nil {
			return nil, fmt.Errorf("failed to scan chat_message_join: %w", err)
		}
		join[messageID] = chatID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat_message_join: %w", err)
	}
	return join, nil
}

// messageRow is one raw row from the message table.
type messageRow struct {
	ROWID          int64
	Text           sql.NullString
	AttributedBody []byte
	HandleID       sql.NullInt64
	Date           int64
	IsFromMe       bool
	Type           sql.NullInt64
	AssociatedGUID sql.NullString
}

// scanMessages streams message rows in extraction (ROWID) order. Optional
// columns are probed first so older schema generations still scan cleanly.
func scanMessages(st *store.Store, fn func(*messageRow)) error {
	if err := st.RequireTableColumns("message", "ROWID", "text", "handle_id", "date", "is_from_me"); err != nil {
		return err
	}

	hasBody, err := st.HasColumn("message", "attributedBody")
	if err != nil {
		return err
	}
	hasType, err := st.HasColumn("message", "type")
	if err != nil {
		return err
	}
	hasAssoc, err := st.HasColumn("message", "associated_message_guid")
	if err != nil {
		return err
	}

	cols := []string{"ROWID", "text", "handle_id", "date", "is_from_me"}
	if hasBody {
		cols = append(cols, "attributedBody")
	}
	if hasType {
		cols = append(cols, "type")
	}
	if hasAssoc {
		cols = append(cols, "associated_message_guid")
	}

	rows, err := st.RawQuery(fmt.Sprintf(
		"SELECT %s FROM message ORDER BY ROWID", strings.Join(cols, ", ")))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var row messageRow
		var date sql.NullInt64

		dest := []interface{}{&row.ROWID, &row.Text, &row.HandleID, &date, &row.IsFromMe}
		if hasBody {
			dest = append(dest, &row.AttributedBody)
		}
		if hasType {
			dest = append(dest, &row.Type)
		}
		if hasAssoc {
			dest = append(dest, &row.AssociatedGUID)
		}
		if err := rows.Scan(dest...); err != nil {
			return fmt.Errorf("failed to scan message: %w", err)
		}
		row.Date = date.Int64

		fn(&row)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating messages: %w", err)
	}
	return nil
}

// Prefixes of the text-based tapback rows that shadow a reacted-to message.
var reactionPrefixes = []string{
	"Loved ", "Liked ", "Disliked ", "Laughed at ", "Emphasized ", "Questioned ",
}

// isReaction reports whether a row is a tapback rather than a message.
func isReaction(row *messageRow) bool {
	if row.Type.Valid && row.Type.Int64 >= 2000 && row.Type.Int64 <= 2005 {
		return true
	}
	if row.AssociatedGUID.Valid && row.AssociatedGUID.String != "" && row.Text.Valid {
		for _, p := range reactionPrefixes {
			if strings.HasPrefix(row.Text.String, p) {
				return true
			}
		}
	}
	return false
}
