package session

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/lora-edge/macd"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// FileStore persists each record as its own JSON file under a base
// directory, written via write-to-temp-then-rename so a crash mid-write
// never leaves a corrupt record (rename is atomic on the same filesystem).
// This fits the single end-device process the engine targets; it is not
// meant for concurrent writers.
type FileStore struct {
	Dir string
}

// NewFileStore creates a FileStore rooted at dir, creating it if missing.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "session: create store dir")
	}
	return &FileStore{Dir: dir}, nil
}

func (s *FileStore) path(devEUI lorawan.EUI64, kind string) string {
	return filepath.Join(s.Dir, devEUI.String()+"."+kind+".json")
}

func writeAtomic(path string, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "session: marshal")
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return errors.Wrap(err, "session: write temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "session: rename temp file")
	}
	return nil
}

func readInto(path string, v interface{}) error {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound
		}
		return errors.Wrap(err, "session: read file")
	}
	return json.Unmarshal(b, v)
}

// LoadIdentity implements Store.
func (s *FileStore) LoadIdentity(_ context.Context, devEUI lorawan.EUI64) (*Identity, error) {
	var id Identity
	if err := readInto(s.path(devEUI, "identity"), &id); err != nil {
		return nil, err
	}
	return &id, nil
}

// PersistIdentity implements Store.
func (s *FileStore) PersistIdentity(_ context.Context, id Identity) error {
	return writeAtomic(s.path(id.DevEUI, "identity"), id)
}

// LoadSession implements Store.
func (s *FileStore) LoadSession(_ context.Context, devEUI lorawan.EUI64) (*Session, error) {
	var sess Session
	if err := readInto(s.path(devEUI, "session"), &sess); err != nil {
		return nil, err
	}
	return &sess, nil
}

// PersistSession implements Store.
func (s *FileStore) PersistSession(_ context.Context, devEUI lorawan.EUI64, sess Session) error {
	logrus.WithField("dev_eui", devEUI).Debug("session: persisting session state")
	return writeAtomic(s.path(devEUI, "session"), sess)
}

// ClearSession implements Store.
func (s *FileStore) ClearSession(_ context.Context, devEUI lorawan.EUI64) error {
	err := os.Remove(s.path(devEUI, "session"))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "session: remove session file")
	}
	return nil
}

// LoadDevNonce implements Store.
func (s *FileStore) LoadDevNonce(_ context.Context, devEUI lorawan.EUI64) (*DevNonceRecord, error) {
	var r DevNonceRecord
	if err := readInto(s.path(devEUI, "devnonce"), &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// PersistDevNonce implements Store.
func (s *FileStore) PersistDevNonce(_ context.Context, devEUI lorawan.EUI64, r DevNonceRecord) error {
	return writeAtomic(s.path(devEUI, "devnonce"), r)
}
