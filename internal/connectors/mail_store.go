package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"

	"courierval/internal"
)

// MailStore keeps the raw bytes of every qualifying message, named by content
// hash so repeated runs over the same day do not duplicate files.
type MailStore struct {
	rawMailDir string
}

func NewMailStore(rawMailDir string) *MailStore {
	return &MailStore{rawMailDir: rawMailDir}
}

func (s *MailStore) Archive(msg internal.InboxMessage) (string, error) {
	if len(msg.Raw) == 0 {
		return "", errors.New("message has no raw content")
	}
	hashBytes := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(hashBytes[:])

	if err := os.MkdirAll(s.rawMailDir, 0o755); err != nil {
		return "", err
	}

	rawPath := filepath.Join(s.rawMailDir, hash+".eml")
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, msg.Raw, 0o644); err != nil {
			return "", err
		}
	}
	return rawPath, nil
}
