// Package sqlstore persists call logs and exemplar phrases through GORM,
// on SQLite for a single machine or MySQL for a shared database.
package sqlstore

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"sales-coach-go/internal/store"
	"sales-coach-go/internal/types"
)

// CallLog is one analysed call.
type CallLog struct {
	ID                uint   `gorm:"primaryKey;autoIncrement"`
	EntryID           string `gorm:"size:64;index"`
	RunID             string `gorm:"size:64;index"`
	URL               string `gorm:"size:2048"`
	CallType          string `gorm:"size:16;index:idx_call_class"`
	Outcome           string `gorm:"size:16;index:idx_call_class"`
	Summary           string `gorm:"type:text"`
	Empathy           int
	Persuasion        int
	ProductKnowledge  int
	ObjectionHandling int
	Notes             string `gorm:"type:text"`
	Feedback          string `gorm:"type:text"`
	FeedbackFailed    bool
	CalledAt          time.Time `gorm:"index"`
	CreatedAt         time.Time
}

// ExemplarPhrase is one winning phrase. Phrases from the same call share a RunID.
type ExemplarPhrase struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	RunID     string `gorm:"size:64;index"`
	URL       string `gorm:"size:2048"`
	CallType  string `gorm:"size:16;index"`
	Position  int
	Phrase    string `gorm:"type:text"`
	CreatedAt time.Time
}

// AllModels returns every table this package manages.
func AllModels() []interface{} {
	return []interface{}{&CallLog{}, &ExemplarPhrase{}}
}

// Store implements store.Sink and store.ExemplarStore.
type Store struct {
	db *gorm.DB
}

// Open connects with the named driver ("sqlite" or "mysql") and migrates.
func Open(driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case "sqlite":
		dialector = sqlite.Open(dsn)
	case "mysql":
		dialector = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("sqlstore: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("sqlstore: connect %s: %w", driver, err)
	}
	return New(db)
}

// New wraps an existing connection and migrates the tables.
func New(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("sqlstore: auto-migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying connection.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) Append(ctx context.Context, e types.LogEntry) error {
	row := fromEntry(e)
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("sqlstore: insert call log: %w", err)
	}
	return nil
}

func (s *Store) AppendExemplars(ctx context.Context, b store.ExemplarBatch) error {
	if len(b.Phrases) == 0 {
		return nil
	}
	at := b.At
	if at.IsZero() {
		at = time.Now()
	}
	rows := make([]ExemplarPhrase, 0, len(b.Phrases))
	for i, p := range b.Phrases {
		rows = append(rows, ExemplarPhrase{
			RunID:     b.RunID,
			URL:       b.URL,
			CallType:  b.CallType.String(),
			Position:  i,
			Phrase:    p,
			CreatedAt: at,
		})
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
	if err != nil {
		return fmt.Errorf("sqlstore: insert exemplars: %w", err)
	}
	return nil
}

// ListEntries returns up to limit of the most recent calls, oldest first.
// limit <= 0 returns everything.
func (s *Store) ListEntries(ctx context.Context, limit int) ([]types.LogEntry, error) {
	var rows []CallLog
	q := s.db.WithContext(ctx).Order("called_at DESC").Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sqlstore: list call logs: %w", err)
	}
	out := make([]types.LogEntry, len(rows))
	for i, r := range rows {
		out[len(rows)-1-i] = r.toEntry()
	}
	return out, nil
}

// ListExemplars returns phrases captured for the given call type, newest first.
func (s *Store) ListExemplars(ctx context.Context, ct types.CallType, limit int) ([]ExemplarPhrase, error) {
	var rows []ExemplarPhrase
	q := s.db.WithContext(ctx).
		Where("call_type = ?", ct.String()).
		Order("created_at DESC").Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("sqlstore: list exemplars: %w", err)
	}
	return rows, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func fromEntry(e types.LogEntry) CallLog {
	return CallLog{
		EntryID:           e.ID,
		RunID:             e.RunID,
		URL:               e.URL,
		CallType:          e.Classification.Type.String(),
		Outcome:           e.Classification.Outcome.String(),
		Summary:           e.Summary,
		Empathy:           e.Scores.Empathy,
		Persuasion:        e.Scores.Persuasion,
		ProductKnowledge:  e.Scores.ProductKnowledge,
		ObjectionHandling: e.Scores.ObjectionHandling,
		Notes:             e.Scores.Notes,
		Feedback:          e.Feedback,
		FeedbackFailed:    e.FeedbackFailed,
		CalledAt:          e.Timestamp,
	}
}

func (r CallLog) toEntry() types.LogEntry {
	return types.LogEntry{
		ID:        r.EntryID,
		RunID:     r.RunID,
		Timestamp: r.CalledAt,
		URL:       r.URL,
		Classification: types.Classification{
			Type:    types.ParseCallType(r.CallType),
			Outcome: types.ParseCallOutcome(r.Outcome),
		},
		Summary: r.Summary,
		Scores: types.Scores{
			Empathy:           r.Empathy,
			Persuasion:        r.Persuasion,
			ProductKnowledge:  r.ProductKnowledge,
			ObjectionHandling: r.ObjectionHandling,
			Notes:             r.Notes,
		},
		Feedback:       r.Feedback,
		FeedbackFailed: r.FeedbackFailed,
	}
}

var (
	_ store.Sink          = (*Store)(nil)
	_ store.ExemplarStore = (*Store)(nil)
)
