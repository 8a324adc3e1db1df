package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vendorse/internal/auth"
	"vendorse/internal/models"
	"vendorse/internal/notify"
	"vendorse/internal/repository"

	"go.uber.org/zap"
)

const (
	defaultPage  = 1
	defaultLimit = 10
	maxLimit     = 100
	maxPage      = 1_000_000
)

// Store is the persistence the service runs on. InTx hands fn a Store bound
// to a single transaction.
type Store interface {
	InTx(ctx context.Context, fn func(tx Store) error) error

	CreateOrganization(ctx context.Context, org models.Organization) (models.Organization, error)
	GetOrganization(ctx context.Context, id string) (models.Organization, error)
	ListOrganizations(ctx context.Context) ([]models.Organization, error)

	CreateUser(ctx context.Context, user models.User) (models.User, error)
	GetUser(ctx context.Context, id string) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	ListUsers(ctx context.Context, f models.UserFilter) ([]models.User, error)
	CountUsers(ctx context.Context, f models.UserFilter) (int, error)
	UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (models.User, error)

	ListTenders(ctx context.Context, f models.TenderFilter) ([]models.Tender, int, error)
	GetTender(ctx context.Context, id string, forUpdate bool) (models.Tender, error)
	GetTenderDetail(ctx context.Context, id string) (models.Tender, error)
	CreateTender(ctx context.Context, t models.Tender) (models.Tender, error)
	AddTenderDocument(ctx context.Context, doc models.TenderDocument) (models.TenderDocument, error)
	TransitionTender(ctx context.Context, id string, from []models.TenderStatus, to models.TenderStatus) (bool, error)
	CountTenders(ctx context.Context, createdBy string, statuses []models.TenderStatus) (int, error)

	CreateBid(ctx context.Context, b models.Bid) (models.Bid, error)
	AddBidDocument(ctx context.Context, doc models.BidDocument) (models.BidDocument, error)
	GetBid(ctx context.Context, id string, forUpdate bool) (models.Bid, error)
	UserBids(ctx context.Context, userId string) ([]models.Bid, error)
	TransitionBid(ctx context.Context, id string, from []models.BidStatus, to models.BidStatus) (bool, error)
	RejectSubmittedBids(ctx context.Context, tenderId, exceptId string) (int64, error)
	CountUserBids(ctx context.Context, userId string) (int, error)
	CountPendingEvaluations(ctx context.Context, reviewerId string) (int, error)

	UpsertEvaluation(ctx context.Context, e models.EvaluationScore) (models.EvaluationScore, bool, error)
	BidEvaluations(ctx context.Context, bidId string) ([]models.EvaluationScore, error)

	AddNotification(ctx context.Context, n models.Notification) (models.Notification, error)
	ListNotifications(ctx context.Context, userId string, limit, offset int) ([]models.Notification, error)
	AppendAudit(ctx context.Context, entry models.AuditLog) error
}

type repoStore struct {
	*repository.Repository
}

// FromRepository adapts the Postgres repository to Store.
func FromRepository(repo *repository.Repository) Store {
	return repoStore{repo}
}

func (s repoStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	return s.Repository.InTx(ctx, func(tx *repository.Repository) error {
		return fn(repoStore{tx})
	})
}

type TokenIssuer interface {
	Issue(user models.User) (string, time.Time, error)
	Parse(token string) (*auth.Claims, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) error
}

type StatsCache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any) error
	Delete(ctx context.Context, keys ...string) error
}

// Recorder receives lifecycle counters.
type Recorder interface {
	TenderTransition(status string)
	BidSubmitted()
	Evaluation(inserted bool)
}

type Service struct {
	store     Store
	tokens    TokenIssuer
	passwords PasswordHasher
	cache     StatsCache
	events    notify.Publisher
	metrics   Recorder
	log       *zap.Logger
	now       func() time.Time
}

type Option func(*Service)

func WithTokens(t TokenIssuer) Option {
	return func(s *Service) { s.tokens = t }
}

func WithPasswords(p PasswordHasher) Option {
	return func(s *Service) { s.passwords = p }
}

func WithCache(c StatsCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithPublisher(p notify.Publisher) Option {
	return func(s *Service) { s.events = p }
}

func WithMetrics(r Recorder) Option {
	return func(s *Service) { s.metrics = r }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.log = l.Named("service") }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(store Store, opts ...Option) *Service {
	s := &Service{
		store:     store,
		passwords: auth.NewPasswords(0),
		cache:     nopCache{},
		events:    notify.Nop{},
		metrics:   nopRecorder{},
		log:       zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

//// Service

func requireRole(actor models.Actor, roles ...models.Role) error {
	for _, r := range roles {
		if actor.Role == r {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", models.ErrRoleNotAllowed, actor.Role)
}

// lookupErr turns a missing row into the given not-found kind.
func lookupErr(err error, kind error, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", kind, id)
	}
	return err
}

func pageParams(page, limit int) (int, int) {
	if page < 1 {
		page = defaultPage
	}
	if limit < 1 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if page > maxPage {
		page = maxPage
	}
	return page, limit
}

func totalPages(total, limit int) int {
	if total <= 0 {
		return 0
	}
	return (total + limit - 1) / limit
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrInvalidInput, fmt.Sprintf(format, args...))
}

// publish sends a domain event after commit. Failures are logged only.
func (s *Service) publish(ctx context.Context, event notify.Event) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := s.events.Publish(ctx, event)
	if err != nil {
		s.log.Warn("event publish failed",
			zap.String("type", string(event.Type)),
			zap.String("tenderId", event.TenderId),
			zap.Error(err),
		)
	}
}

func (s *Service) audit(ctx context.Context, tx Store, actor models.Actor, action, targetType, targetId string) error {
	return tx.AppendAudit(ctx, models.AuditLog{
		ActorId:    actor.Id,
		ActionType: action,
		TargetId:   targetId,
		TargetType: targetType,
		IPAddress:  actor.IP,
	})
}

type nopCache struct{}

func (nopCache) Get(context.Context, string, any) (bool, error) { return false, nil }
func (nopCache) Set(context.Context, string, any) error         { return nil }
func (nopCache) Delete(context.Context, ...string) error        { return nil }

type nopRecorder struct{}

func (nopRecorder) TenderTransition(string) {}
func (nopRecorder) BidSubmitted()           {}
func (nopRecorder) Evaluation(bool)         {}
