package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/apex/log"
	"github.com/fsnotify/fsnotify"
)

// InboxService loads PDFs dropped into a directory into the context store,
// exactly as if they had been uploaded. The newest load wins.
type InboxService struct {
	extractor Extractor
	store     *ContextStore

	mu       sync.Mutex
	lastHash string
	lastText string
}

func NewInboxService(extractor Extractor, store *ContextStore) *InboxService {
	return &InboxService{
		extractor: extractor,
		store:     store,
	}
}

// LoadLatest loads the most recently modified PDF in dirPath, if any.
func (s *InboxService) LoadLatest(ctx context.Context, dirPath string) error {
	entries, err := os.ReadDir(dirPath)
	if err != nil {
		return fmt.Errorf("could not read inbox %s: %w", dirPath, err)
	}

	var (
		latest    string
		latestMod time.Time
	)
	for _, entry := range entries {
		if entry.IsDir() || !isPDF(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if latest == "" || info.ModTime().After(latestMod) {
			latest = filepath.Join(dirPath, entry.Name())
			latestMod = info.ModTime()
		}
	}
	if latest == "" {
		log.Infof("INBOX: No PDF found in %s", dirPath)
		return nil
	}
	_, err = s.LoadFile(ctx, latest)
	return err
}

// LoadFile extracts path and replaces the stored context. It reports false
// without touching the store when the content matches the last file loaded
// and that file's text is still the stored context. A failed extraction also
// leaves the store unchanged.
func (s *InboxService) LoadFile(ctx context.Context, path string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, err
	}
	sum := sha256.Sum256(data)
	hash := hex.EncodeToString(sum[:])

	s.mu.Lock()
	defer s.mu.Unlock()
	if hash == s.lastHash && s.store.Get() == s.lastText {
		return false, nil
	}

	text, err := s.extractor.Extract(ctx, data)
	if err != nil {
		return false, fmt.Errorf("could not extract %s: %w", path, err)
	}
	s.store.Set(text)
	s.lastHash = hash
	s.lastText = text
	log.WithFields(log.Fields{
		"file":       path,
		"characters": len([]rune(text)),
	}).Info("INBOX: PDF loaded")
	return true, nil
}

// WatchDirectory blocks until ctx is cancelled, loading every PDF that is
// created or written in dirPath. The newest PDF already present is loaded once
// the watcher is registered, so no file dropped during start-up is missed.
func (s *InboxService) WatchDirectory(ctx context.Context, dirPath string) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.WithError(err).Error("INBOX: Failed to create file watcher")
		return
	}
	defer watcher.Close()

	if err := watcher.Add(dirPath); err != nil {
		log.WithError(err).Errorf("INBOX: Failed to watch %s", dirPath)
		return
	}
	log.Infof("INBOX: Watching directory: %s", dirPath)

	if err := s.LoadLatest(ctx, dirPath); err != nil {
		log.WithError(err).Warn("INBOX: Initial load failed")
	}

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !isPDF(event.Name) {
				continue
			}
			// Editors and copy tools often emit Create followed by several
			// Writes; the content hash absorbs the repeats.
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				if _, err := s.LoadFile(ctx, event.Name); err != nil {
					log.WithError(err).Errorf("INBOX: Failed to load %s", event.Name)
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.WithError(err).Error("INBOX: watcher error")
		case <-ctx.Done():
			log.Info("INBOX: Context cancelled, shutting down watcher.")
			return
		}
	}
}

func isPDF(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".pdf")
}
