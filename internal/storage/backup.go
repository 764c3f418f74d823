package storage

import (
	"bytes"
	"encoding/json"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
	"github.com/pkg/errors"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"tabledb/internal/domain"
)

const (
	backupPrefix = "tabledb-"
	backupExt    = ".json.zst"
	backupLayout = "20060102-150405"
)

// BackupInfo describes one written backup archive.
type BackupInfo struct {
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// WriteBackup writes every database as one zstd-compressed JSON document
// {"<db>": {"tables": {...}}} into dir, named by timestamp.
func WriteBackup(dir string, snaps []domain.DatabaseSnapshot, now time.Time) (*BackupInfo, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "create backup directory")
	}

	doc := orderedmap.New[string, json.RawMessage](len(snaps))
	for i := range snaps {
		raw, err := encodeJSONDatabase(&snaps[i])
		if err != nil {
			return nil, errors.Wrapf(err, "encode database %q", snaps[i].Name)
		}
		doc.Set(snaps[i].Name, raw)
	}
	plain, err := doc.MarshalJSON()
	if err != nil {
		return nil, errors.Wrap(err, "encode backup")
	}

	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, errors.Wrap(err, "zstd writer")
	}
	if _, err := enc.Write(plain); err != nil {
		enc.Close()
		return nil, errors.Wrap(err, "compress backup")
	}
	if err := enc.Close(); err != nil {
		return nil, errors.Wrap(err, "compress backup")
	}

	path := filepath.Join(dir, backupPrefix+now.UTC().Format(backupLayout)+backupExt)
	if err := writeFileAtomic(path, buf.Bytes()); err != nil {
		return nil, err
	}

	log.Printf("backup: wrote %s (%s, %s uncompressed)",
		path, humanize.Bytes(uint64(buf.Len())), humanize.Bytes(uint64(len(plain))))
	return &BackupInfo{Path: path, Size: int64(buf.Len()), CreatedAt: now}, nil
}

// ReadBackup decodes an archive written by WriteBackup.
func ReadBackup(path string) ([]domain.DatabaseSnapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open backup")
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, errors.Wrap(err, "zstd reader")
	}
	defer dec.Close()

	plain, err := io.ReadAll(dec)
	if err != nil {
		return nil, errors.Wrap(err, "decompress backup")
	}

	doc := orderedmap.New[string, json.RawMessage]()
	if err := doc.UnmarshalJSON(plain); err != nil {
		return nil, errors.Wrap(err, "decode backup")
	}
	out := make([]domain.DatabaseSnapshot, 0, doc.Len())
	for pair := doc.Oldest(); pair != nil; pair = pair.Next() {
		snap, err := decodeJSONDatabase(pair.Key, pair.Value)
		if err != nil {
			return nil, errors.Wrapf(err, "decode database %q", pair.Key)
		}
		out = append(out, snap)
	}
	return out, nil
}

// ListBackups returns the archives in dir, newest first.
func ListBackups(dir string) ([]BackupInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read backup directory")
	}
	var out []BackupInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, backupPrefix) || !strings.HasSuffix(name, backupExt) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, backupPrefix), backupExt)
		created, err := time.Parse(backupLayout, stamp)
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, BackupInfo{Path: filepath.Join(dir, name), Size: info.Size(), CreatedAt: created})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// PruneBackups deletes all but the newest keep archives in dir.
func PruneBackups(dir string, keep int) (int, error) {
	if keep <= 0 {
		return 0, nil
	}
	backups, err := ListBackups(dir)
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, b := range backups[min(keep, len(backups)):] {
		if err := os.Remove(b.Path); err != nil {
			return removed, errors.Wrapf(err, "remove %s", b.Path)
		}
		removed++
	}
	return removed, nil
}
