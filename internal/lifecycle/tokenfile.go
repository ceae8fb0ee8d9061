// Package lifecycle keeps the outbound credential and the inbound
// change-notification subscription alive. Both run as supervised
// background loops with wall-clock deadlines; request workers only ever
// read the state these loops maintain.
package lifecycle

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/Network-Direction/chatbot/internal/types"
)

// tokenFile is the on-disk credential shape. Times are split into an
// acquisition instant and a lifetime so the file mirrors what the token
// endpoint granted.
type tokenFile struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresIn    int64     `json:"expires_in"`
	AcquiredAt   time.Time `json:"acquired_at"`
	User         string    `json:"user"`
}

// FileStore persists the credential across restarts. The file holds the
// raw token values, so it is written with owner-only permissions.
type FileStore struct {
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save writes the credential atomically via a temp file rename.
func (s *FileStore) Save(cred *types.Credential, now time.Time) error {
	tf := tokenFile{
		AccessToken:  cred.AccessToken.Unmask(),
		RefreshToken: cred.RefreshToken.Unmask(),
		ExpiresIn:    int64(cred.ExpiresAt.Sub(now) / time.Second),
		AcquiredAt:   now.UTC(),
		User:         cred.User,
	}
	data, err := json.Marshal(tf)
	if err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "encoding token file", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "writing token file", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return types.NewAppError(types.ErrCodeInternalUnexpected, "replacing token file", err)
	}
	return nil
}

// Load reads the persisted credential. A missing file is not an error;
// it just means no token has been acquired yet.
func (s *FileStore) Load() (*types.Credential, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "reading token file", err)
	}

	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalUnexpected, "decoding token file "+filepath.Base(s.path), err)
	}

	return &types.Credential{
		AccessToken:  types.SecretString(tf.AccessToken),
		RefreshToken: types.SecretString(tf.RefreshToken),
		ExpiresAt:    tf.AcquiredAt.Add(time.Duration(tf.ExpiresIn) * time.Second),
		User:         tf.User,
	}, nil
}
