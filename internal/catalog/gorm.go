package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"quizroom/internal/quiz"
)

// QuizModel is a stored quiz; Questions holds the question list as JSON.
type QuizModel struct {
	ID        string `gorm:"primaryKey"`
	Title     string `gorm:"not null"`
	Questions string `gorm:"type:jsonb;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (QuizModel) TableName() string { return "quizzes" }

// GormCatalog serves quizzes from the quizzes table.
type GormCatalog struct {
	db *gorm.DB
}

func OpenGormCatalog(dsn string) (*GormCatalog, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening quiz catalog: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return &GormCatalog{db: db}, nil
}

func NewGormCatalog(db *gorm.DB) *GormCatalog {
	return &GormCatalog{db: db}
}

func (c *GormCatalog) Get(ctx context.Context, id string) (quiz.Definition, error) {
	var m QuizModel
	err := c.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return quiz.Definition{}, notFound(id)
	}
	if err != nil {
		return quiz.Definition{}, fmt.Errorf("loading quiz %s: %w", id, err)
	}
	doc, err := json.Marshal(struct {
		Title     string          `json:"title"`
		Questions json.RawMessage `json:"questions"`
	}{m.Title, json.RawMessage(m.Questions)})
	if err != nil {
		return quiz.Definition{}, err
	}
	return quiz.Parse(doc)
}

func (c *GormCatalog) List(ctx context.Context) ([]Summary, error) {
	var rows []struct {
		ID        string
		Title     string
		Questions int
	}
	err := c.db.WithContext(ctx).Model(&QuizModel{}).
		Select("id, title, jsonb_array_length(questions) AS questions").
		Order("id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing quizzes: %w", err)
	}
	list := make([]Summary, 0, len(rows))
	for _, r := range rows {
		list = append(list, Summary{ID: r.ID, Title: r.Title, Questions: r.Questions})
	}
	return list, nil
}

// Save validates def and stores it under id, replacing any previous version.
func (c *GormCatalog) Save(ctx context.Context, id string, def quiz.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}
	questions, err := json.Marshal(def.Questions)
	if err != nil {
		return err
	}
	m := QuizModel{ID: id, Title: def.Title, Questions: string(questions)}
	return c.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "questions", "updated_at"}),
	}).Create(&m).Error
}

func (c *GormCatalog) Close() error {
	sqlDB, err := c.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
