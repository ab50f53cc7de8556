package storage

import (
	"errors"
	"fmt"
	"time"

	"engagement-engine/internal/model"
	"engagement-engine/pkg/logger"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type sessionRow struct {
	ID          string    `gorm:"type:varchar(64);primaryKey"`
	Title       string    `gorm:"type:varchar(255);not null"`
	Initialized bool      `gorm:"not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false;index"`
}

func (sessionRow) TableName() string { return "chat_sessions" }

type messageRow struct {
	ID        string          `gorm:"type:varchar(64);primaryKey"`
	SessionID string          `gorm:"type:varchar(64);not null;index:idx_chat_msg_session_seq,priority:1"`
	Seq       int             `gorm:"not null;index:idx_chat_msg_session_seq,priority:2"`
	Role      string          `gorm:"type:varchar(16);not null"`
	Content   string          `gorm:"type:text;not null"`
	Timestamp time.Time       `gorm:"not null"`
	Metadata  *model.Metadata `gorm:"serializer:json"`
}

func (messageRow) TableName() string { return "chat_messages" }

// SQLStorage stores sessions in a relational database through gorm.
// sqlite (pure Go) and mysql are supported.
type SQLStorage struct {
	dialector gorm.Dialector
	db        *gorm.DB
}

// NewSQLiteStorage opens a sqlite database. dsn may be a file path or
// "file::memory:?cache=shared".
func NewSQLiteStorage(dsn string) *SQLStorage {
	return &SQLStorage{dialector: sqlite.Open(dsn)}
}

func NewMySQLStorage(dsn string) *SQLStorage {
	return &SQLStorage{dialector: mysql.Open(dsn)}
}

// NewSQLStorageFromDB wraps an already opened connection.
func NewSQLStorageFromDB(db *gorm.DB) *SQLStorage {
	return &SQLStorage{db: db}
}

func (s *SQLStorage) Init() error {
	if s.db == nil {
		db, err := gorm.Open(s.dialector, &gorm.Config{
			Logger: gormlogger.Default.LogMode(gormlogger.Silent),
		})
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStorageInit, err)
		}
		s.db = db
	}
	if err := s.db.AutoMigrate(&sessionRow{}, &messageRow{}); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageInit, err)
	}
	logger.Infof("SQL storage initialized (%s)", s.db.Dialector.Name())
	return nil
}

func (s *SQLStorage) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Backup is left to the database's own tooling.
func (s *SQLStorage) Backup() error {
	logger.Warnf("Backup is not supported for %s storage", s.db.Dialector.Name())
	return nil
}

// SaveSession replaces the session row and all of its messages in one
// transaction.
func (s *SQLStorage) SaveSession(session *model.Session) error {
	if session == nil || session.ID == "" {
		return fmt.Errorf("%w: session without id", ErrInvalidData)
	}

	row := sessionRow{
		ID:          session.ID,
		Title:       session.Title,
		Initialized: session.Initialized,
		CreatedAt:   session.CreatedAt,
		UpdatedAt:   session.UpdatedAt,
	}
	msgs := make([]messageRow, len(session.Messages))
	for i, m := range session.Messages {
		m = m.Clone()
		msgs[i] = messageRow{
			ID:        m.ID,
			SessionID: session.ID,
			Seq:       i,
			Role:      string(m.Role),
			Content:   m.Content,
			Timestamp: m.Timestamp,
			Metadata:  m.Metadata,
		}
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ?", session.ID).Delete(&messageRow{}).Error; err != nil {
			return err
		}
		if len(msgs) == 0 {
			return nil
		}
		return tx.CreateInBatches(msgs, 100).Error
	})
}

func (s *SQLStorage) GetSession(sessionID string) (*model.Session, error) {
	var row sessionRow
	if err := s.db.First(&row, "id = ?", sessionID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	messages, err := s.loadMessages(sessionID)
	if err != nil {
		return nil, err
	}

	return &model.Session{
		ID:          row.ID,
		Title:       row.Title,
		Messages:    messages,
		Initialized: row.Initialized,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}, nil
}

func (s *SQLStorage) loadMessages(sessionID string) ([]model.Message, error) {
	var rows []messageRow
	if err := s.db.Where("session_id = ?", sessionID).Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	messages := make([]model.Message, len(rows))
	for i, r := range rows {
		messages[i] = model.Message{
			ID:        r.ID,
			Role:      model.Role(r.Role),
			Content:   r.Content,
			Timestamp: r.Timestamp,
			Metadata:  r.Metadata,
		}
	}
	return messages, nil
}

func (s *SQLStorage) DeleteSession(sessionID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		res := tx.Delete(&sessionRow{}, "id = ?", sessionID)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrSessionNotFound
		}
		return tx.Where("session_id = ?", sessionID).Delete(&messageRow{}).Error
	})
}

func (s *SQLStorage) ListSessions() ([]*SessionSummary, error) {
	var rows []struct {
		sessionRow
		MessageCount int
	}
	err := s.db.Model(&sessionRow{}).
		Select("chat_sessions.*, (SELECT COUNT(*) FROM chat_messages WHERE chat_messages.session_id = chat_sessions.id) AS message_count").
		Order("updated_at DESC").
		Order("id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]*SessionSummary, len(rows))
	for i, r := range rows {
		out[i] = &SessionSummary{
			ID:           r.ID,
			Title:        r.Title,
			MessageCount: r.MessageCount,
			CreatedAt:    r.CreatedAt,
			UpdatedAt:    r.UpdatedAt,
		}
	}
	return out, nil
}

func (s *SQLStorage) GetMessages(sessionID string) ([]model.Message, error) {
	var count int64
	if err := s.db.Model(&sessionRow{}).Where("id = ?", sessionID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, ErrSessionNotFound
	}
	return s.loadMessages(sessionID)
}
