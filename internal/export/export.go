package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"

	"github.com/yadielglz/littlesprout-sub001/internal/sprout"
)

// archive is the on-disk shape of an exported dataset. The version field
// lets a future importer reject archives it cannot read.
type archive struct {
	Version int               `json:"version"`
	State   sprout.LocalState `json:"state"`
}

const archiveVersion = 1

// Write serializes the full local dataset to JSON and writes it to w
// age-encrypted with the passphrase (scrypt recipient). The archive can be
// restored on any device with Read and the same passphrase.
func Write(w io.Writer, st sprout.LocalState, passphrase string) error {
	recipient, err := age.NewScryptRecipient(passphrase)
	if err != nil {
		return fmt.Errorf("creating scrypt recipient: %w", err)
	}

	encWriter, err := age.Encrypt(w, recipient)
	if err != nil {
		return fmt.Errorf("creating encrypted writer: %w", err)
	}

	enc := json.NewEncoder(encWriter)
	if err := enc.Encode(archive{Version: archiveVersion, State: st}); err != nil {
		return fmt.Errorf("encoding archive: %w", err)
	}

	if err := encWriter.Close(); err != nil {
		return fmt.Errorf("finalizing encryption: %w", err)
	}
	return nil
}

// Read decrypts an archive written by Write and returns the contained
// dataset.
func Read(r io.Reader, passphrase string) (sprout.LocalState, error) {
	identity, err := age.NewScryptIdentity(passphrase)
	if err != nil {
		return sprout.LocalState{}, fmt.Errorf("creating scrypt identity: %w", err)
	}

	decReader, err := age.Decrypt(r, identity)
	if err != nil {
		return sprout.LocalState{}, fmt.Errorf("decrypting archive: %w", err)
	}

	var a archive
	if err := json.NewDecoder(decReader).Decode(&a); err != nil {
		return sprout.LocalState{}, fmt.Errorf("decoding archive: %w", err)
	}
	if a.Version != archiveVersion {
		return sprout.LocalState{}, fmt.Errorf("unsupported archive version %d", a.Version)
	}
	return a.State, nil
}

// WriteFile writes an encrypted archive to path atomically (temp file +
// rename).
func WriteFile(path string, st sprout.LocalState, passphrase string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating export directory: %w", err)
	}

	var buf bytes.Buffer
	if err := Write(&buf, st, passphrase); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-export-*")
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	tmpPath := tmp.Name()
	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return fmt.Errorf("writing export file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing export file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("writing export file: %w", err)
	}
	success = true
	return nil
}

// ReadFile reads an encrypted archive from path.
func ReadFile(path string, passphrase string) (sprout.LocalState, error) {
	f, err := os.Open(path)
	if err != nil {
		return sprout.LocalState{}, fmt.Errorf("opening export file: %w", err)
	}
	defer f.Close()
	return Read(f, passphrase)
}
