package pipeline

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/Napageneral/smsexport/internal/assemble"
	"github.com/Napageneral/smsexport/internal/backup"
	"github.com/Napageneral/smsexport/internal/store"
)

// BackupStats summarizes a backup without exporting anything.
type BackupStats struct {
	BackupRoot       string    `json:"backup_root"`
	TotalMessages    int       `json:"total_messages"`
	MaxRowID         int64     `json:"max_rowid"`
	OldestDate       time.Time `json:"oldest_date,omitempty"`
	NewestDate       time.Time `json:"newest_date,omitempty"`
	Chats            int       `json:"chats"`
	Handles          int       `json:"handles"`
	HasContactsStore bool      `json:"has_contacts_store"`
	ContactRecords   int       `json:"contact_records"`
}

// Inspect probes the backup and reports message store statistics.
func Inspect(backupRoot string) (*BackupStats, error) {
	layout, err := backup.Locate(backupRoot)
	if err != nil {
		return nil, err
	}

	stats := &BackupStats{
		BackupRoot:       layout.Root,
		HasContactsStore: layout.HasContacts(),
	}

	st, err := store.Open(layout.MessageStorePath)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	if err := st.RequireTableColumns("message", "ROWID", "date"); err != nil {
		return nil, err
	}

	var oldest, newest sql.NullInt64
	err = st.RawQueryRow(`
		SELECT COUNT(*), COALESCE(MAX(ROWID), 0), MIN(date), MAX(date)
		FROM message
	`).Scan(&stats.TotalMessages, &stats.MaxRowID, &oldest, &newest)
	if err != nil {
		return nil, fmt.Errorf("failed to count messages: %w", err)
	}

	if oldest.Valid && oldest.Int64 > 0 {
		stats.OldestDate = assemble.AppleTime(oldest.Int64)
	}
	if newest.Valid && newest.Int64 > 0 {
		stats.NewestDate = assemble.AppleTime(newest.Int64)
	}

	if ok, err := st.HasTable("chat"); err == nil && ok {
		_ = st.RawQueryRow("SELECT COUNT(*) FROM chat").Scan(&stats.Chats)
	}
	if ok, err := st.HasTable("handle"); err == nil && ok {
		_ = st.RawQueryRow("SELECT COUNT(*) FROM handle").Scan(&stats.Handles)
	}

	if layout.HasContacts() {
		cst, err := store.Open(layout.ContactsStorePath)
		if err == nil {
			defer cst.Close()
			if ok, err := cst.HasTable("ABPerson"); err == nil && ok {
				_ = cst.RawQueryRow("SELECT COUNT(*) FROM ABPerson").Scan(&stats.ContactRecords)
			}
		}
	}

	return stats, nil
}
