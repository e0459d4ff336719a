// Package backup locates the message and contacts databases inside an
// iPhone device backup tree. Backup files are stored under hash-derived
// names in two-character-prefix subdirectories.
package backup

import (
	"os"
	"path/filepath"

	"github.com/Napageneral/smsexport/internal/store"
)

const (
	// SHA-1 names the backup format assigns to the two databases we need.
	messageStoreHash  = "3d0d7e5fb2ce288813306e4d4636395e047a3d28"
	contactsStoreHash = "31bb7ba8914766d4ba40d6dfb6113c8b614be442"
)

// Layout holds the resolved paths inside one backup tree.
type Layout struct {
	Root              string
	MessageStorePath  string
	ContactsStorePath string // empty when the contacts store is absent
}

// HasContacts reports whether the contacts store was found.
// Its absence is non-fatal: the run proceeds with raw addresses.
func (l *Layout) HasContacts() bool {
	return l.ContactsStorePath != ""
}

// Locate probes root for the message and contacts stores.
// A missing message store is *store.NotFoundError; it is never treated
// as "zero messages".
func Locate(root string) (*Layout, error) {
	msgPath, ok := findStore(root, messageStoreHash)
	if !ok {
		return nil, &store.NotFoundError{Path: hashedPath(root, messageStoreHash)}
	}

	layout := &Layout{
		Root:             root,
		MessageStorePath: msgPath,
	}
	if contactsPath, ok := findStore(root, contactsStoreHash); ok {
		layout.ContactsStorePath = contactsPath
	}
	return layout, nil
}

// findStore checks the prefixed location first, then the flat layout used
// by older backup generations.
func findStore(root, hash string) (string, bool) {
	candidates := []string{
		hashedPath(root, hash),
		filepath.Join(root, hash),
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, true
		}
	}
	return "", false
}

func hashedPath(root, hash string) string {
	return filepath.Join(root, hash[:2], hash)
}
