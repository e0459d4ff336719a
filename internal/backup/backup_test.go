package backup

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Napageneral/smsexport/internal/store"
)

// createBackupTree lays out a fake backup with the given stores present
func createBackupTree(t *testing.T, withMessages, withContacts bool) string {
	root := t.TempDir()

	write := func(hash string) {
		dir := filepath.Join(root, hash[:2])
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("Failed to create prefix dir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, hash), []byte("sqlite"), 0644); err != nil {
			t.Fatalf("Failed to write store file: %v", err)
		}
	}

	if withMessages {
		write(messageStoreHash)
	}
	if withContacts {
		write(contactsStoreHash)
	}
	return root
}

func TestLocate(t *testing.T) {
	root := createBackupTree(t, true, true)

	layout, err := Locate(root)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if layout.MessageStorePath != filepath.Join(root, "3d", messageStoreHash) {
		t.Errorf("unexpected message store path: %s", layout.MessageStorePath)
	}
	if !layout.HasContacts() {
		t.Error("expected contacts store to be found")
	}
}

func TestLocateMissingMessageStore(t *testing.T) {
	root := createBackupTree(t, false, true)

	_, err := Locate(root)
	if err == nil {
		t.Fatal("expected error when message store is absent")
	}
	var nfe *store.NotFoundError
	if !errors.As(err, &nfe) {
		t.Errorf("expected NotFoundError, got %T: %v", err, err)
	}
}

func TestLocateMissingContactsIsNotFatal(t *testing.T) {
	root := createBackupTree(t, true, false)

	layout, err := Locate(root)
	if err != nil {
		t.Fatalf("Locate failed: %v", err)
	}
	if layout.HasContacts() {
		t.Error("contacts store should not be found")
	}
}

func TestLocateFlatLayout(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, messageStoreHash), []byte("sqlite"), 0644); err != nil {
		t.Fatalf("Failed to write store file: %v", err)
	}

	layout, err := Locate(root)
	if err != nil {
		t.Fatalf("Locate failed for flat layout: %v", err)
	}
	if layout.MessageStorePath != filepath.Join(root, messageStoreHash) {
		t.Errorf("unexpected message store path: %s", layout.MessageStorePath)
	}
}
