/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: snapshot_writer.go
Description: Utility for writing snapshots to the export directory and reading them back.
Files are timestamped JSON, optionally age-encrypted to an X25519 recipient.
*/

package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"filippo.io/age"
	"github.com/kleascm/droidquery/pkg/inventory"
)

// EncryptedSuffix marks age-encrypted snapshot files
const EncryptedSuffix = ".age"

// ExportMetadata describes a written snapshot file
type ExportMetadata struct {
	Path         string `json:"path"`
	Encrypted    bool   `json:"encrypted"`
	BytesWritten int64  `json:"bytes_written"`
}

// SnapshotFilename names a snapshot: 2026-10-18_09-30-00_emulator-5554_0f8c2a34.json
func SnapshotFilename(snapshot *inventory.Snapshot) string {
	device := "device"
	if snapshot.Device != nil && snapshot.Device.Serial != "" {
		device = strings.NewReplacer(":", "-", "/", "-").Replace(snapshot.Device.Serial)
	}
	id := snapshot.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s_%s_%s.json", snapshot.CreatedAt.Format("2006-01-02_15-04-05"), device, id)
}

// WriteSnapshot writes snapshot into dir. A non-empty recipient encrypts the file with age.
func WriteSnapshot(dir string, snapshot *inventory.Snapshot, recipient string) (*ExportMetadata, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	meta := &ExportMetadata{
		Path:      filepath.Join(dir, SnapshotFilename(snapshot)),
		Encrypted: recipient != "",
	}
	var r age.Recipient
	if meta.Encrypted {
		meta.Path += EncryptedSuffix
		if r, err = age.ParseX25519Recipient(recipient); err != nil {
			return nil, fmt.Errorf("failed to parse age public key: %w", err)
		}
	}

	file, err := os.Create(meta.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create snapshot file %s: %w", meta.Path, err)
	}
	defer file.Close()

	var w io.Writer = file
	var encWriter io.WriteCloser
	if meta.Encrypted {
		encWriter, err = age.Encrypt(file, r)
		if err != nil {
			return nil, fmt.Errorf("failed to create age encryption writer: %w", err)
		}
		w = encWriter
	}

	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("failed to write snapshot: %w", err)
	}
	if encWriter != nil {
		// Close flushes the last encrypted chunk
		if err := encWriter.Close(); err != nil {
			return nil, fmt.Errorf("failed to finish encryption: %w", err)
		}
	}

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat snapshot file: %w", err)
	}
	meta.BytesWritten = info.Size()
	return meta, nil
}

// ReadSnapshot loads a snapshot written by WriteSnapshot. Encrypted files need a matching identity.
func ReadSnapshot(path string, identities ...age.Identity) (*inventory.Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot: %w", err)
	}
	defer file.Close()

	var r io.Reader = file
	if strings.HasSuffix(path, EncryptedSuffix) {
		if len(identities) == 0 {
			return nil, fmt.Errorf("snapshot %s is encrypted and no identity was given", path)
		}
		r, err = age.Decrypt(file, identities...)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt snapshot: %w", err)
		}
	}

	var snapshot inventory.Snapshot
	if err := json.NewDecoder(r).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return &snapshot, nil
}

// LoadIdentities reads age identities from a key file as written by age-keygen
func LoadIdentities(path string) ([]age.Identity, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open identity file: %w", err)
	}
	defer file.Close()

	identities, err := age.ParseIdentities(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse identities: %w", err)
	}
	return identities, nil
}
