package app

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	coreconfig "github.com/m3rciful/quizbot/core/config"
	coredatabase "github.com/m3rciful/quizbot/core/database"
	"github.com/m3rciful/quizbot/internal/storage"
)

// QuizConfig tunes the session engine.
type QuizConfig struct {
	MaxActive      int           `yaml:"max_active" envconfig:"QUIZ_MAX_ACTIVE"`
	QuestionWindow time.Duration `yaml:"question_window" envconfig:"QUIZ_QUESTION_WINDOW"`
	TickInterval   time.Duration `yaml:"tick_interval" envconfig:"QUIZ_TICK_INTERVAL"`
	Timezone       string        `yaml:"timezone" envconfig:"QUIZ_TIMEZONE"`
	// BankFile seeds the question bank when the store has none.
	BankFile   string `yaml:"bank_file" envconfig:"QUIZ_BANK_FILE"`
	GradeScale int    `yaml:"grade_scale"`
}

// RankingConfig tunes rankings and grade bands.
type RankingConfig struct {
	TopN      int     `yaml:"top_n"`
	Overview  int     `yaml:"overview"`
	Excellent float64 `yaml:"excellent"`
	Good      float64 `yaml:"good"`
}

// Config is the bot configuration: the shared core plus quiz settings.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Storage  storage.Config      `yaml:"storage"`
	Database coredatabase.Config `yaml:"database"`
	Quiz     QuizConfig          `yaml:"quiz"`
	Ranking  RankingConfig       `yaml:"ranking"`
}

// CoreConfig implements cmd.ConfigCarrier.
func (c *Config) CoreConfig() *coreconfig.Config { return &c.Config }

// Load reads the YAML file at path, overlays the environment and validates.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates the core and quiz sections and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	c.Storage.Driver = c.Storage.DriverName()
	if c.Storage.Driver == storage.DriverFile && strings.TrimSpace(c.Storage.Dir) == "" {
		c.Storage.Dir = "data"
	}

	q := &c.Quiz
	if q.MaxActive <= 0 {
		q.MaxActive = 30
	}
	if q.QuestionWindow <= 0 {
		q.QuestionWindow = 30 * time.Second
	}
	if q.TickInterval <= 0 {
		q.TickInterval = time.Second
	}
	if q.TickInterval > q.QuestionWindow {
		return fmt.Errorf("quiz.tick_interval must not exceed quiz.question_window")
	}
	if q.GradeScale <= 0 {
		q.GradeScale = 5
	}
	if strings.TrimSpace(q.Timezone) == "" {
		q.Timezone = "America/Bogota"
	}
	if _, err := time.LoadLocation(q.Timezone); err != nil {
		return fmt.Errorf("invalid quiz.timezone %q: %w", q.Timezone, err)
	}

	r := &c.Ranking
	if r.TopN < 0 || r.Overview < 0 {
		return fmt.Errorf("ranking.top_n and ranking.overview must be >= 0")
	}
	if r.Overview == 0 {
		r.Overview = 3
	}
	if r.Excellent == 0 {
		r.Excellent = 1
	}
	if r.Good == 0 {
		r.Good = 0.7
	}
	if r.Good > r.Excellent {
		return fmt.Errorf("ranking.good must not exceed ranking.excellent")
	}
	return nil
}

// Location returns the timezone used to render history timestamps.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Quiz.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// DatabaseConfig returns the SQL connection the storage driver needs, or nil.
func (c *Config) DatabaseConfig() *coredatabase.Config {
	switch c.Storage.DriverName() {
	case storage.DriverPostgres:
		db := c.Database
		db.Driver = coredatabase.DriverPostgres
		return &db
	case storage.DriverSQLite:
		return &coredatabase.Config{Driver: coredatabase.DriverSQLite, Path: c.Storage.SQLitePath}
	}
	return nil
}
