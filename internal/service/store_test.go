package service

import (
	"context"
	"database/sql"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	"vendorse/internal/models"

	"github.com/google/uuid"
)

// memStore is an in-memory Store with the same semantics as the Postgres
// repository: unique emails, one evaluation per (bid, reviewer, criteria),
// rollback of every change made inside a failed InTx.
type memStore struct {
	orgs          map[string]models.Organization
	users         map[string]models.User
	tenders       map[string]models.Tender
	tenderDocs    []models.TenderDocument
	bids          map[string]models.Bid
	bidDocs       []models.BidDocument
	evals         []models.EvaluationScore
	notifications []models.Notification
	audit         []models.AuditLog

	base  time.Time
	seq   int
	inTx  bool
	locks []string

	// failOn makes the named method return an error, to exercise rollback.
	failOn string
}

func newMemStore() *memStore {
	return &memStore{
		orgs:    map[string]models.Organization{},
		users:   map[string]models.User{},
		tenders: map[string]models.Tender{},
		bids:    map[string]models.Bid{},
		base:    time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) tick() time.Time {
	m.seq++
	return m.base.Add(time.Duration(m.seq) * time.Second)
}

func (m *memStore) fail(method string) error {
	if m.failOn == method {
		return fmt.Errorf("memStore.%s: injected failure", method)
	}
	return nil
}

func (m *memStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if m.inTx {
		return fn(m)
	}

	snapshot := *m
	snapshot.orgs = maps.Clone(m.orgs)
	snapshot.users = maps.Clone(m.users)
	snapshot.tenders = maps.Clone(m.tenders)
	snapshot.bids = maps.Clone(m.bids)
	snapshot.tenderDocs = slices.Clone(m.tenderDocs)
	snapshot.bidDocs = slices.Clone(m.bidDocs)
	snapshot.evals = slices.Clone(m.evals)
	snapshot.notifications = slices.Clone(m.notifications)
	snapshot.audit = slices.Clone(m.audit)

	m.inTx = true
	err := fn(m)
	m.inTx = false
	if err != nil {
		locks := m.locks
		*m = snapshot
		m.locks = locks
		return err
	}
	return nil
}

//// Organizations and users

func (m *memStore) CreateOrganization(_ context.Context, org models.Organization) (models.Organization, error) {
	org.Id = uuid.NewString()
	org.CreatedAt = m.tick()
	org.UpdatedAt = org.CreatedAt
	m.orgs[org.Id] = org
	return org, nil
}

func (m *memStore) GetOrganization(_ context.Context, id string) (models.Organization, error) {
	org, ok := m.orgs[id]
	if !ok {
		return models.Organization{}, sql.ErrNoRows
	}
	return org, nil
}

func (m *memStore) ListOrganizations(context.Context) ([]models.Organization, error) {
	orgs := slices.Collect(maps.Values(m.orgs))
	sort.Slice(orgs, func(i, j int) bool { return orgs[i].Name < orgs[j].Name })
	return orgs, nil
}

func (m *memStore) CreateUser(_ context.Context, user models.User) (models.User, error) {
	for _, u := range m.users {
		if u.Email == user.Email {
			return models.User{}, models.ErrEmailTaken
		}
	}
	user.Id = uuid.NewString()
	user.CreatedAt = m.tick()
	user.UpdatedAt = user.CreatedAt
	m.users[user.Id] = user
	return user, nil
}

func (m *memStore) GetUser(_ context.Context, id string) (models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return models.User{}, sql.ErrNoRows
	}
	return user, nil
}

func (m *memStore) GetUserByEmail(_ context.Context, email string) (models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, sql.ErrNoRows
}

func (m *memStore) filterUsers(f models.UserFilter) []models.User {
	var users []models.User
	for _, u := range m.users {
		if f.Role != "" && u.Role != f.Role {
			continue
		}
		if f.Status != "" && u.Status != f.Status {
			continue
		}
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].CreatedAt.After(users[j].CreatedAt) })
	return users
}

func (m *memStore) ListUsers(_ context.Context, f models.UserFilter) ([]models.User, error) {
	return paginate(m.filterUsers(f), f.Limit, f.Offset), nil
}

func (m *memStore) CountUsers(_ context.Context, f models.UserFilter) (int, error) {
	return len(m.filterUsers(f)), nil
}

func (m *memStore) UpdateUser(_ context.Context, id string, upd models.UserUpdate) (models.User, error) {
	user, ok := m.users[id]
	if !ok {
		return models.User{}, sql.ErrNoRows
	}
	if upd.Email != nil {
		for _, u := range m.users {
			if u.Id != id && u.Email == *upd.Email {
				return models.User{}, models.ErrEmailTaken
			}
		}
		user.Email = *upd.Email
	}
	if upd.Name != nil {
		user.Name = *upd.Name
	}
	if upd.PasswordHash != nil {
		user.PasswordHash = *upd.PasswordHash
	}
	if upd.Role != nil {
		user.Role = *upd.Role
	}
	if upd.Status != nil {
		user.Status = *upd.Status
	}
	user.UpdatedAt = m.tick()
	m.users[id] = user
	return user, nil
}

//// Tenders

func (m *memStore) tenderMatches(t models.Tender, f models.TenderFilter) bool {
	if f.Id != "" && t.Id != f.Id {
		return false
	}
	if len(f.Scope.Statuses) > 0 && !slices.Contains(f.Scope.Statuses, t.Status) {
		return false
	}
	if f.Scope.CreatedBy != "" && t.CreatedById != f.Scope.CreatedBy {
		return false
	}
	if f.Scope.PendingReviewer != "" && !m.pendingFor(t.Id, f.Scope.PendingReviewer) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, t.Status) {
		return false
	}
	if s := strings.ToLower(strings.TrimSpace(f.Search)); s != "" {
		if !strings.Contains(strings.ToLower(t.Title), s) && !strings.Contains(strings.ToLower(t.Description), s) {
			return false
		}
	}
	return true
}

// pendingFor reports whether the tender has a SUBMITTED bid the reviewer has not scored.
func (m *memStore) pendingFor(tenderId, reviewerId string) bool {
	for _, b := range m.bids {
		if b.TenderId == tenderId && b.Status == models.BidSubmitted && !m.scoredBy(b.Id, reviewerId) {
			return true
		}
	}
	return false
}

func (m *memStore) scoredBy(bidId, reviewerId string) bool {
	for _, e := range m.evals {
		if e.BidId == bidId && e.ReviewerId == reviewerId {
			return true
		}
	}
	return false
}

func (m *memStore) withSummary(t models.Tender) models.Tender {
	if u, ok := m.users[t.CreatedById]; ok {
		summary := u.Summary()
		t.CreatedBy = &summary
	}
	for _, b := range m.bids {
		if b.TenderId == t.Id {
			t.BidCount++
		}
	}
	return t
}

func (m *memStore) ListTenders(_ context.Context, f models.TenderFilter) ([]models.Tender, int, error) {
	var tenders []models.Tender
	for _, t := range m.tenders {
		if m.tenderMatches(t, f) {
			tenders = append(tenders, m.withSummary(t))
		}
	}
	sort.Slice(tenders, func(i, j int) bool { return tenders[i].CreatedAt.After(tenders[j].CreatedAt) })
	return paginate(tenders, f.Limit, f.Offset), len(tenders), nil
}

func (m *memStore) GetTender(_ context.Context, id string, forUpdate bool) (models.Tender, error) {
	t, ok := m.tenders[id]
	if !ok {
		return models.Tender{}, sql.ErrNoRows
	}
	if forUpdate {
		m.locks = append(m.locks, "tender:"+id)
	}
	return t, nil
}

func (m *memStore) GetTenderDetail(ctx context.Context, id string) (models.Tender, error) {
	t, ok := m.tenders[id]
	if !ok {
		return models.Tender{}, sql.ErrNoRows
	}
	t = m.withSummary(t)

	for _, d := range m.tenderDocs {
		if d.TenderId == id {
			t.Documents = append(t.Documents, d)
		}
	}
	for _, b := range m.bids {
		if b.TenderId != id {
			continue
		}
		b.Evaluations, _ = m.BidEvaluations(ctx, b.Id)
		t.Bids = append(t.Bids, b)
	}
	sort.Slice(t.Bids, func(i, j int) bool { return t.Bids[i].SubmittedAt.Before(t.Bids[j].SubmittedAt) })
	return t, nil
}

func (m *memStore) CreateTender(_ context.Context, t models.Tender) (models.Tender, error) {
	if err := m.fail("CreateTender"); err != nil {
		return models.Tender{}, err
	}
	t.Id = uuid.NewString()
	t.CreatedAt = m.tick()
	t.UpdatedAt = t.CreatedAt
	m.tenders[t.Id] = t
	return t, nil
}

func (m *memStore) AddTenderDocument(_ context.Context, doc models.TenderDocument) (models.TenderDocument, error) {
	if err := m.fail("AddTenderDocument"); err != nil {
		return models.TenderDocument{}, err
	}
	doc.Id = uuid.NewString()
	doc.CreatedAt = m.tick()
	m.tenderDocs = append(m.tenderDocs, doc)
	return doc, nil
}

func (m *memStore) TransitionTender(_ context.Context, id string, from []models.TenderStatus, to models.TenderStatus) (bool, error) {
	t, ok := m.tenders[id]
	if !ok || !slices.Contains(from, t.Status) {
		return false, nil
	}
	t.Status = to
	t.UpdatedAt = m.tick()
	m.tenders[id] = t
	return true, nil
}

func (m *memStore) CountTenders(_ context.Context, createdBy string, statuses []models.TenderStatus) (int, error) {
	count := 0
	for _, t := range m.tenders {
		if createdBy != "" && t.CreatedById != createdBy {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, t.Status) {
			continue
		}
		count++
	}
	return count, nil
}

//// Bids

func (m *memStore) CreateBid(_ context.Context, b models.Bid) (models.Bid, error) {
	if err := m.fail("CreateBid"); err != nil {
		return models.Bid{}, err
	}
	b.Id = uuid.NewString()
	b.CreatedAt = m.tick()
	b.SubmittedAt = b.CreatedAt
	b.UpdatedAt = b.CreatedAt
	m.bids[b.Id] = b
	return b, nil
}

func (m *memStore) AddBidDocument(_ context.Context, doc models.BidDocument) (models.BidDocument, error) {
	if err := m.fail("AddBidDocument"); err != nil {
		return models.BidDocument{}, err
	}
	doc.Id = uuid.NewString()
	doc.CreatedAt = m.tick()
	m.bidDocs = append(m.bidDocs, doc)
	return doc, nil
}

func (m *memStore) GetBid(_ context.Context, id string, forUpdate bool) (models.Bid, error) {
	b, ok := m.bids[id]
	if !ok {
		return models.Bid{}, sql.ErrNoRows
	}
	if forUpdate {
		m.locks = append(m.locks, "bid:"+id)
	}
	return b, nil
}

func (m *memStore) UserBids(_ context.Context, userId string) ([]models.Bid, error) {
	var bids []models.Bid
	for _, b := range m.bids {
		if b.SubmittedById != userId {
			continue
		}
		t := m.tenders[b.TenderId]
		b.Tender = &models.TenderSummary{Id: t.Id, Title: t.Title, Status: t.Status, Deadline: t.Deadline}
		for _, d := range m.bidDocs {
			if d.BidId == b.Id {
				b.Documents = append(b.Documents, d)
			}
		}
		bids = append(bids, b)
	}
	sort.Slice(bids, func(i, j int) bool { return bids[i].SubmittedAt.After(bids[j].SubmittedAt) })
	return bids, nil
}

func (m *memStore) TransitionBid(_ context.Context, id string, from []models.BidStatus, to models.BidStatus) (bool, error) {
	b, ok := m.bids[id]
	if !ok || !slices.Contains(from, b.Status) {
		return false, nil
	}
	b.Status = to
	b.UpdatedAt = m.tick()
	m.bids[id] = b
	return true, nil
}

func (m *memStore) RejectSubmittedBids(_ context.Context, tenderId, exceptId string) (int64, error) {
	var n int64
	for id, b := range m.bids {
		if b.TenderId == tenderId && id != exceptId && b.Status == models.BidSubmitted {
			b.Status = models.BidRejected
			m.bids[id] = b
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountUserBids(_ context.Context, userId string) (int, error) {
	count := 0
	for _, b := range m.bids {
		if b.SubmittedById == userId {
			count++
		}
	}
	return count, nil
}

func (m *memStore) CountPendingEvaluations(_ context.Context, reviewerId string) (int, error) {
	count := 0
	for _, b := range m.bids {
		if b.Status == models.BidSubmitted && !m.scoredBy(b.Id, reviewerId) {
			count++
		}
	}
	return count, nil
}

//// Evaluations

func (m *memStore) UpsertEvaluation(_ context.Context, e models.EvaluationScore) (models.EvaluationScore, bool, error) {
	if err := m.fail("UpsertEvaluation"); err != nil {
		return models.EvaluationScore{}, false, err
	}
	now := m.tick()
	for i, cur := range m.evals {
		if cur.BidId == e.BidId && cur.ReviewerId == e.ReviewerId && cur.Criteria == e.Criteria {
			cur.Score = e.Score
			cur.Notes = e.Notes
			cur.Recommendation = e.Recommendation
			cur.UpdatedAt = now
			m.evals[i] = cur
			return cur, false, nil
		}
	}
	e.Id = uuid.NewString()
	e.CreatedAt = now
	e.UpdatedAt = now
	m.evals = append(m.evals, e)
	return e, true, nil
}

func (m *memStore) BidEvaluations(_ context.Context, bidId string) ([]models.EvaluationScore, error) {
	var evals []models.EvaluationScore
	for _, e := range m.evals {
		if e.BidId == bidId {
			evals = append(evals, e)
		}
	}
	return evals, nil
}

//// Notifications and audit

func (m *memStore) AddNotification(_ context.Context, n models.Notification) (models.Notification, error) {
	n.Id = uuid.NewString()
	n.CreatedAt = m.tick()
	m.notifications = append(m.notifications, n)
	return n, nil
}

func (m *memStore) ListNotifications(_ context.Context, userId string, limit, offset int) ([]models.Notification, error) {
	var result []models.Notification
	for i := len(m.notifications) - 1; i >= 0; i-- {
		if m.notifications[i].UserId == userId {
			result = append(result, m.notifications[i])
		}
	}
	return paginate(result, limit, offset), nil
}

func (m *memStore) AppendAudit(_ context.Context, entry models.AuditLog) error {
	if err := m.fail("AppendAudit"); err != nil {
		return err
	}
	entry.Id = uuid.NewString()
	entry.CreatedAt = m.tick()
	m.audit = append(m.audit, entry)
	return nil
}

func (m *memStore) auditActions(targetId string) []string {
	var actions []string
	for _, a := range m.audit {
		if a.TargetId == targetId {
			actions = append(actions, a.ActionType)
		}
	}
	return actions
}

func (m *memStore) notificationsOf(userId string) []models.Notification {
	var result []models.Notification
	for _, n := range m.notifications {
		if n.UserId == userId {
			result = append(result, n)
		}
	}
	return result
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
