package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/centralita-ai/voice-orchestrator/internal/domain"
	"github.com/centralita-ai/voice-orchestrator/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewDatabaseConnection creates a new GORM database connection with the
// pool settings tuned for the orchestrator's write pattern.
func NewDatabaseConnection(dsn string) (*gorm.DB, error) {
	gormLog := gormlogger.New(logger.NewGORMWriter(), gormlogger.Config{
		SlowThreshold:             200 * time.Millisecond,
		LogLevel:                  gormlogger.Error,
		IgnoreRecordNotFoundError: true,
	})

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	return db, nil
}

// AutoMigrate runs database migrations for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.Organization{},
		&domain.APIToken{},
		&domain.Agent{},
		&domain.ContextProfile{},
		&domain.Call{},
		&domain.Turn{},
		&domain.CallEvent{},
		&domain.Recording{},
		&domain.Webhook{},
		&domain.WebhookDelivery{},
		&domain.QACriterion{},
		&domain.QAEvaluation{},
		&domain.CorrectionEntry{},
		&domain.CriticalWordList{},
	)
}

// Manager combines all repositories. Every read or write that touches a
// tenant-owned entity takes the organization id; the repositories refuse
// unscoped queries by construction.
type Manager interface {
	Organizations() *OrganizationRepository
	Tokens() *TokenRepository
	Agents() *AgentRepository
	Calls() *CallRepository
	Recordings() *RecordingRepository
	Webhooks() *WebhookRepository
	QA() *QARepository
	Dictionary() *DictionaryRepository

	// WithTx executes fn within one database transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context, repos Manager) error) error

	Ping(ctx context.Context) error
	Close() error
}

// GormManager implements Manager using GORM.
type GormManager struct {
	db            *gorm.DB
	orgRepo       *OrganizationRepository
	tokenRepo     *TokenRepository
	agentRepo     *AgentRepository
	callRepo      *CallRepository
	recordingRepo *RecordingRepository
	webhookRepo   *WebhookRepository
	qaRepo        *QARepository
	dictRepo      *DictionaryRepository
}

// NewGormManager creates a new GORM repository manager.
func NewGormManager(db *gorm.DB) *GormManager {
	return &GormManager{
		db:            db,
		orgRepo:       NewOrganizationRepository(db),
		tokenRepo:     NewTokenRepository(db),
		agentRepo:     NewAgentRepository(db),
		callRepo:      NewCallRepository(db),
		recordingRepo: NewRecordingRepository(db),
		webhookRepo:   NewWebhookRepository(db),
		qaRepo:        NewQARepository(db),
		dictRepo:      NewDictionaryRepository(db),
	}
}

// Organizations returns the organization repository.
func (m *GormManager) Organizations() *OrganizationRepository { return m.orgRepo }

// Tokens returns the api token repository.
func (m *GormManager) Tokens() *TokenRepository { return m.tokenRepo }

// Agents returns the agent repository.
func (m *GormManager) Agents() *AgentRepository { return m.agentRepo }

// Calls returns the call repository.
func (m *GormManager) Calls() *CallRepository { return m.callRepo }

// Recordings returns the recording repository.
func (m *GormManager) Recordings() *RecordingRepository { return m.recordingRepo }

// Webhooks returns the webhook repository.
func (m *GormManager) Webhooks() *WebhookRepository { return m.webhookRepo }

// QA returns the quality-assurance repository.
func (m *GormManager) QA() *QARepository { return m.qaRepo }

// Dictionary returns the correction dictionary repository.
func (m *GormManager) Dictionary() *DictionaryRepository { return m.dictRepo }

// WithTx executes fn within a database transaction.
func (m *GormManager) WithTx(ctx context.Context, fn func(ctx context.Context, repos Manager) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(ctx, NewGormManager(tx))
	})
}

// Ping verifies database connectivity.
func (m *GormManager) Ping(ctx context.Context) error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (m *GormManager) Close() error {
	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}
