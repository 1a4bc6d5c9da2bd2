package likes

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"jine-api-go/logcolors"

	log "github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

// BackupInfo contains metadata about a backup file
type BackupInfo struct {
	FileName  string    `json:"fileName"`
	FilePath  string    `json:"filePath"`
	Size      int64     `json:"sizeBytes"`
	CreatedAt time.Time `json:"createdAt"`
}

// Backup writes a consistent copy of the database into the backup
// directory and returns its path. The store stays open while copying.
func (s *Store) Backup() (string, error) {
	if s.backupPath == "" {
		return "", fmt.Errorf("no backup directory configured")
	}

	name := fmt.Sprintf("likes_backup_%s.db", s.now().Format("2006-01-02_15-04-05.000"))
	path := filepath.Join(s.backupPath, name)

	log.Infof("%s Creating backup at %s", logcolors.LogLikesBackup, path)
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.CopyFile(path, 0600)
	})
	if err != nil {
		return "", fmt.Errorf("failed to write backup: %w", err)
	}

	log.Infof("%s Backup created: %s", logcolors.LogLikesBackup, path)
	return path, nil
}

// ListBackups returns the available backups, newest first
func (s *Store) ListBackups() ([]BackupInfo, error) {
	backups := []BackupInfo{}
	if s.backupPath == "" {
		return backups, nil
	}

	entries, err := os.ReadDir(s.backupPath)
	if err != nil {
		if os.IsNotExist(err) {
			return backups, nil
		}
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".db" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			log.Warnf("%s Failed to stat %s: %v", logcolors.LogLikesBackup, entry.Name(), err)
			continue
		}
		backups = append(backups, BackupInfo{
			FileName:  entry.Name(),
			FilePath:  filepath.Join(s.backupPath, entry.Name()),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].FileName > backups[j].FileName
	})
	return backups, nil
}
