package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"engagement-engine/internal/model"
	"engagement-engine/pkg/logger"
)

// DiskStorage keeps one JSON file per session under sessions/, its messages
// under messages/, and a sessions.json index for listing. A bounded cache of
// recently used sessions sits in front of the files.
type DiskStorage struct {
	dataDir   string
	mu        sync.RWMutex
	cache     map[string]*model.Session
	index     map[string]*SessionSummary
	cacheSize int
	now       func() time.Time
}

func NewDiskStorage(dataDir string, cacheSize int) *DiskStorage {
	if cacheSize <= 0 {
		cacheSize = 100
	}
	return &DiskStorage{
		dataDir:   dataDir,
		cache:     make(map[string]*model.Session),
		index:     make(map[string]*SessionSummary),
		cacheSize: cacheSize,
		now:       time.Now,
	}
}

func (d *DiskStorage) Init() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.createDirectories(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	if err := d.loadSessions(); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}

	logger.Infof("Disk storage initialized at %s (%d sessions)", d.dataDir, len(d.index))
	return nil
}

func (d *DiskStorage) createDirectories() error {
	dirs := []string{
		d.dataDir,
		filepath.Join(d.dataDir, "sessions"),
		filepath.Join(d.dataDir, "messages"),
		filepath.Join(d.dataDir, "backup"),
	}

	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	return nil
}

func (d *DiskStorage) indexPath() string {
	return filepath.Join(d.dataDir, "sessions.json")
}

func (d *DiskStorage) sessionPath(id string) string {
	return filepath.Join(d.dataDir, "sessions", id+".json")
}

func (d *DiskStorage) messagesPath(id string) string {
	return filepath.Join(d.dataDir, "messages", id+".json")
}

// loadSessions reads the index and warms the cache with the most recent
// sessions.
func (d *DiskStorage) loadSessions() error {
	data, err := os.ReadFile(d.indexPath())
	if errors.Is(err, os.ErrNotExist) {
		return d.saveIndex()
	}
	if err != nil {
		return err
	}

	var summaries []*SessionSummary
	if err := json.Unmarshal(data, &summaries); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidData, err)
	}
	sortByRecent(summaries)

	for _, summary := range summaries {
		d.index[summary.ID] = summary
		if len(d.cache) >= d.cacheSize {
			continue
		}

		session, err := d.loadSessionFromFile(summary.ID)
		if err != nil {
			logger.Errorf("Failed to load session %s: %v", summary.ID, err)
			continue
		}

		d.cache[summary.ID] = session
	}

	return nil
}

func (d *DiskStorage) loadSessionFromFile(sessionID string) (*model.Session, error) {
	data, err := os.ReadFile(d.sessionPath(sessionID))
	if err != nil {
		return nil, err
	}

	var session model.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	messages, err := d.loadMessagesFromFile(sessionID)
	if err != nil {
		logger.Errorf("Failed to load messages for session %s: %v", sessionID, err)
		messages = []model.Message{}
	}

	session.Messages = messages
	return &session, nil
}

func (d *DiskStorage) loadMessagesFromFile(sessionID string) ([]model.Message, error) {
	data, err := os.ReadFile(d.messagesPath(sessionID))
	if errors.Is(err, os.ErrNotExist) {
		return []model.Message{}, nil
	}
	if err != nil {
		return nil, err
	}

	var messages []model.Message
	if err := json.Unmarshal(data, &messages); err != nil {
		return nil, err
	}

	return messages, nil
}

// writeJSON writes through a temp file and renames, so readers never see a
// half-written file.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return err
	}

	return os.Rename(tempPath, path)
}

func (d *DiskStorage) saveIndex() error {
	summaries := make([]*SessionSummary, 0, len(d.index))
	for _, s := range d.index {
		summaries = append(summaries, s)
	}
	sortByRecent(summaries)
	return writeJSON(d.indexPath(), summaries)
}

func (d *DiskStorage) SaveSession(session *model.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("%w: session without id", ErrInvalidData)
	}
	snapshot := session.Clone()
	if snapshot.Messages == nil {
		snapshot.Messages = []model.Message{}
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	header := *snapshot
	header.Messages = nil
	if err := writeJSON(d.sessionPath(snapshot.ID), header); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	if err := writeJSON(d.messagesPath(snapshot.ID), snapshot.Messages); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.index[snapshot.ID] = summarize(snapshot)
	if err := d.saveIndex(); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.cache[snapshot.ID] = snapshot
	d.evictCache()

	return nil
}

func (d *DiskStorage) GetSession(sessionID string) (*model.Session, error) {
	session, err := d.getSession(sessionID)
	if err != nil {
		return nil, err
	}
	return session.Clone(), nil
}

// getSession returns the cached pointer. Callers must not mutate it.
func (d *DiskStorage) getSession(sessionID string) (*model.Session, error) {
	d.mu.RLock()
	if session, exists := d.cache[sessionID]; exists {
		d.mu.RUnlock()
		return session, nil
	}
	d.mu.RUnlock()

	session, err := d.loadSessionFromFile(sessionID)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	d.mu.Lock()
	d.cache[sessionID] = session
	d.evictCache()
	d.mu.Unlock()

	return session, nil
}

func (d *DiskStorage) DeleteSession(sessionID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	sessionPath := d.sessionPath(sessionID)
	if _, err := os.Stat(sessionPath); errors.Is(err, os.ErrNotExist) {
		return ErrSessionNotFound
	}

	if err := os.Remove(sessionPath); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	if err := os.Remove(d.messagesPath(sessionID)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	delete(d.cache, sessionID)
	delete(d.index, sessionID)

	if err := d.saveIndex(); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}
	return nil
}

func (d *DiskStorage) ListSessions() ([]*SessionSummary, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	sessions := make([]*SessionSummary, 0, len(d.index))
	for _, s := range d.index {
		c := *s
		sessions = append(sessions, &c)
	}
	sortByRecent(sessions)

	return sessions, nil
}

func (d *DiskStorage) GetMessages(sessionID string) ([]model.Message, error) {
	session, err := d.getSession(sessionID)
	if err != nil {
		return nil, err
	}

	return model.CloneMessages(session.Messages), nil
}

// evictCache drops the least recently updated sessions. Caller holds mu.
func (d *DiskStorage) evictCache() {
	if len(d.cache) <= d.cacheSize {
		return
	}

	type cacheEntry struct {
		id        string
		updatedAt time.Time
	}

	entries := make([]cacheEntry, 0, len(d.cache))
	for id, session := range d.cache {
		entries = append(entries, cacheEntry{
			id:        id,
			updatedAt: session.UpdatedAt,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].updatedAt.Before(entries[j].updatedAt)
	})

	toEvict := len(d.cache) - d.cacheSize
	for i := 0; i < toEvict; i++ {
		delete(d.cache, entries[i].id)
	}
}

func (d *DiskStorage) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.cache = make(map[string]*model.Session)
	return nil
}

// Backup copies sessions, messages and the index into backup/backup_<unix>.
func (d *DiskStorage) Backup() error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	backupDir := filepath.Join(d.dataDir, "backup", fmt.Sprintf("backup_%d", d.now().UnixNano()))

	for _, dir := range []string{"sessions", "messages"} {
		srcDir := filepath.Join(d.dataDir, dir)
		dstDir := filepath.Join(backupDir, dir)

		if err := os.MkdirAll(dstDir, 0755); err != nil {
			return fmt.Errorf("%w: %v", ErrFileOperation, err)
		}

		if err := copyDir(srcDir, dstDir); err != nil {
			return fmt.Errorf("%w: %v", ErrFileOperation, err)
		}
	}

	if err := copyFile(d.indexPath(), filepath.Join(backupDir, "sessions.json")); err != nil {
		return fmt.Errorf("%w: %v", ErrFileOperation, err)
	}

	logger.Infof("Backup completed: %s", backupDir)
	return nil
}

func copyDir(src, dst string) error {
	files, err := os.ReadDir(src)
	if err != nil {
		return err
	}

	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		if err := copyFile(filepath.Join(src, file.Name()), filepath.Join(dst, file.Name())); err != nil {
			return err
		}
	}

	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}

	return os.WriteFile(dst, data, 0644)
}
