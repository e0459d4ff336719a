// Package pipeline wires the extraction, reconciliation and export stages
// into one run against a device backup.
package pipeline

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Napageneral/smsexport/internal/assemble"
	"github.com/Napageneral/smsexport/internal/backup"
	"github.com/Napageneral/smsexport/internal/config"
	"github.com/Napageneral/smsexport/internal/contacts"
	"github.com/Napageneral/smsexport/internal/export"
	"github.com/Napageneral/smsexport/internal/store"
)

// RunResult reports the outcome of one export run, including the
// degradation counters that distinguish a clean run from a lossy one.
type RunResult struct {
	RunID                string `json:"run_id"`
	OutputDir            string `json:"output_dir"`
	Format               string `json:"format"`
	Conversations        int    `json:"conversations"`
	FilesWritten         int    `json:"files_written"`
	MessagesExported     int    `json:"messages_exported"`
	SkippedMissingHandle int    `json:"skipped_missing_handle"`
	ReactionsFiltered    int    `json:"reactions_filtered"`
	WriteFailures        int    `json:"write_failures"`
	ContactsUnavailable  bool   `json:"contacts_unavailable"`
	ContactsIndexed      int    `json:"contacts_indexed"`
}

// Run executes the full pipeline. Each store is opened, fully queried and
// closed before the next phase begins.
func Run(cfg *config.Config, logger *zap.Logger) (*RunResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	runID := uuid.NewString()
	logger = logger.With(zap.String("run_id", runID))

	format, err := export.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}

	layout, err := backup.Locate(cfg.BackupRoot)
	if err != nil {
		return nil, err
	}
	logger.Info("located backup stores",
		zap.String("backup_root", layout.Root),
		zap.Bool("has_contacts", layout.HasContacts()))

	ix, contactsUnavailable := buildContactIndex(layout, logger)

	assembled, err := extractMessages(layout, ix, logger)
	if err != nil {
		return nil, err
	}

	exported, err := export.Run(assembled.Messages, ix, export.Options{
		Format:  format,
		BaseDir: cfg.ExportBase,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}

	return &RunResult{
		RunID:                runID,
		OutputDir:            exported.OutputDir,
		Format:               string(format),
		Conversations:        exported.Conversations,
		FilesWritten:         exported.FilesWritten,
		MessagesExported:     exported.Messages,
		SkippedMissingHandle: assembled.SkippedMissingHandle,
		ReactionsFiltered:    assembled.ReactionsFiltered,
		WriteFailures:        exported.WriteFailures,
		ContactsUnavailable:  contactsUnavailable,
		ContactsIndexed:      ix.Len(),
	}, nil
}

// buildContactIndex loads the contacts store when present. Any failure is
// non-fatal: the run continues with an empty index and raw addresses.
func buildContactIndex(layout *backup.Layout, logger *zap.Logger) (ix *contacts.Index, unavailable bool) {
	if !layout.HasContacts() {
		logger.Warn("contacts store missing, display names will fall back to raw addresses")
		return contacts.NewIndex(), true
	}

	st, err := store.Open(layout.ContactsStorePath)
	if err != nil {
		logger.Warn("contacts store unreadable", zap.Error(err))
		return contacts.NewIndex(), true
	}
	defer st.Close()

	loaded, err := contacts.LoadIndex(st)
	if err != nil {
		logger.Warn("failed to build contact index", zap.Error(err))
		return contacts.NewIndex(), true
	}

	logger.Info("built contact index", zap.Int("addresses", loaded.Len()))
	return loaded, false
}

func extractMessages(layout *backup.Layout, ix *contacts.Index, logger *zap.Logger) (*assemble.Result, error) {
	st, err := store.Open(layout.MessageStorePath)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	result, err := assemble.Assemble(st, ix, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble messages: %w", err)
	}
	return result, nil
}
