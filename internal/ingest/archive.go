package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"

	"mwb/internal/storage"
)

// Archive keeps fetched documents on disk, named by content hash.
type Archive struct {
	db     *storage.DB
	rawDir string
}

func NewArchive(db *storage.DB, rawDir string) *Archive {
	return &Archive{db: db, rawDir: rawDir}
}

func (a *Archive) Store(ctx context.Context, sourceURL, kind string, raw []byte) (storage.DocumentRow, error) {
	hashBytes := sha256.Sum256(raw)
	hash := hex.EncodeToString(hashBytes[:])

	if err := os.MkdirAll(a.rawDir, 0o755); err != nil {
		return storage.DocumentRow{}, err
	}

	rawPath := filepath.Join(a.rawDir, hash+"."+kind)
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, raw, 0o644); err != nil {
			return storage.DocumentRow{}, err
		}
	}

	doc := storage.DocumentRow{Hash: hash, URL: sourceURL, Kind: kind, RawRef: rawPath}
	if err := a.db.UpsertDocument(ctx, doc); err != nil {
		return storage.DocumentRow{}, err
	}
	return doc, nil
}
