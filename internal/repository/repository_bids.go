package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"vendorse/internal/models"

	"github.com/lib/pq"
)

type bidRow struct {
	Id             string           `db:"id"`
	TenderId       string           `db:"tender_id"`
	SubmittedById  string           `db:"submitted_by"`
	OrganizationId string           `db:"organization_id"`
	Amount         sql.NullFloat64  `db:"amount"`
	Description    string           `db:"description"`
	Status         models.BidStatus `db:"status"`
	SubmittedAt    time.Time        `db:"submitted_at"`
	CreatedAt      time.Time        `db:"created_at"`
	UpdatedAt      time.Time        `db:"updated_at"`

	SubmitterName  sql.NullString `db:"submitter_name"`
	SubmitterEmail sql.NullString `db:"submitter_email"`
	TenderTitle    sql.NullString `db:"tender_title"`
	TenderStatus   sql.NullString `db:"tender_status"`
	TenderDeadline sql.NullTime   `db:"tender_deadline"`
}

func (r bidRow) model() models.Bid {
	b := models.Bid{
		Id:             r.Id,
		TenderId:       r.TenderId,
		SubmittedById:  r.SubmittedById,
		OrganizationId: r.OrganizationId,
		Description:    r.Description,
		Status:         r.Status,
		SubmittedAt:    r.SubmittedAt,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
	if r.Amount.Valid {
		amount := r.Amount.Float64
		b.Amount = &amount
	}
	if r.SubmitterName.Valid {
		b.SubmittedBy = &models.UserSummary{
			Id:             r.SubmittedById,
			Name:           r.SubmitterName.String,
			Email:          r.SubmitterEmail.String,
			OrganizationId: r.OrganizationId,
		}
	}
	if r.TenderTitle.Valid {
		b.Tender = &models.TenderSummary{
			Id:       r.TenderId,
			Title:    r.TenderTitle.String,
			Status:   models.TenderStatus(r.TenderStatus.String),
			Deadline: r.TenderDeadline.Time,
		}
	}
	return b
}

const bidColumns = `id, tender_id, submitted_by, organization_id, amount, description, status, submitted_at, created_at, updated_at`

func (repo *Repository) CreateBid(ctx context.Context, b models.Bid) (models.Bid, error) {
	query := `
	INSERT INTO bids (tender_id, submitted_by, organization_id, amount, description, status)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING ` + bidColumns

	var row bidRow
	err := repo.getContext(ctx, &row, query, b.TenderId, b.SubmittedById, b.OrganizationId, b.Amount, b.Description, b.Status)
	if err != nil {
		return models.Bid{}, fmt.Errorf("repository.Repository.CreateBid: %w", err)
	}
	return row.model(), nil
}

type bidDocumentRow struct {
	Id            string    `db:"id"`
	BidId         string    `db:"bid_id"`
	FilePath      string    `db:"file_path"`
	SignatureHash string    `db:"signature_hash"`
	CreatedAt     time.Time `db:"created_at"`
}

func (repo *Repository) AddBidDocument(ctx context.Context, doc models.BidDocument) (models.BidDocument, error) {
	query := `
	INSERT INTO bid_documents (bid_id, file_path, signature_hash)
	VALUES ($1, $2, $3)
	RETURNING id, bid_id, file_path, signature_hash, created_at
	`

	var row bidDocumentRow
	err := repo.getContext(ctx, &row, query, doc.BidId, doc.FilePath, doc.SignatureHash)
	if err != nil {
		return models.BidDocument{}, fmt.Errorf("repository.Repository.AddBidDocument: %w", err)
	}
	return models.BidDocument(row), nil
}

// GetBid loads the bare bid row. forUpdate locks it until the surrounding
// transaction ends.
func (repo *Repository) GetBid(ctx context.Context, id string, forUpdate bool) (models.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var row bidRow
	err := repo.getContext(ctx, &row, query, id)
	if err != nil {
		return models.Bid{}, errNotFound("repository.Repository.GetBid", id, err)
	}
	return row.model(), nil
}

// TenderBids returns the bids of a tender, oldest first, with submitter,
// documents and evaluations attached.
func (repo *Repository) TenderBids(ctx context.Context, tenderId string) ([]models.Bid, error) {
	query := `
	SELECT
		b.id, b.tender_id, b.submitted_by, b.organization_id, b.amount, b.description,
		b.status, b.submitted_at, b.created_at, b.updated_at,
		u.name AS submitter_name,
		u.email AS submitter_email
	FROM bids b
	LEFT JOIN users u ON u.id = b.submitted_by
	WHERE b.tender_id = $1
	ORDER BY b.submitted_at, b.id
	`

	var rows []bidRow
	err := repo.selectContext(ctx, &rows, query, tenderId)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.TenderBids: %w", err)
	}

	bids, err := repo.attachBidDetails(ctx, rows, true)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.TenderBids: %w", err)
	}
	return bids, nil
}

// UserBids returns the bids submitted by userId, newest first, with the tender
// summary and documents attached.
func (repo *Repository) UserBids(ctx context.Context, userId string) ([]models.Bid, error) {
	query := `
	SELECT
		b.id, b.tender_id, b.submitted_by, b.organization_id, b.amount, b.description,
		b.status, b.submitted_at, b.created_at, b.updated_at,
		t.title AS tender_title,
		t.status AS tender_status,
		t.deadline AS tender_deadline
	FROM bids b
	JOIN tenders t ON t.id = b.tender_id
	WHERE b.submitted_by = $1
	ORDER BY b.submitted_at DESC, b.id
	`

	var rows []bidRow
	err := repo.selectContext(ctx, &rows, query, userId)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.UserBids: %w", err)
	}

	bids, err := repo.attachBidDetails(ctx, rows, false)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.UserBids: %w", err)
	}
	return bids, nil
}

func (repo *Repository) attachBidDetails(ctx context.Context, rows []bidRow, withEvaluations bool) ([]models.Bid, error) {
	bids := make([]models.Bid, 0, len(rows))
	if len(rows) == 0 {
		return bids, nil
	}

	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.Id)
	}

	docs, err := repo.bidDocuments(ctx, ids)
	if err != nil {
		return nil, err
	}

	evals := map[string][]models.EvaluationScore{}
	if withEvaluations {
		evals, err = repo.evaluationsByBid(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	for _, r := range rows {
		b := r.model()
		b.Documents = docs[b.Id]
		b.Evaluations = evals[b.Id]
		bids = append(bids, b)
	}
	return bids, nil
}

func (repo *Repository) bidDocuments(ctx context.Context, bidIds []string) (map[string][]models.BidDocument, error) {
	query := `
	SELECT id, bid_id, file_path, signature_hash, created_at
	FROM bid_documents
	WHERE bid_id = ANY($1::uuid[])
	ORDER BY created_at, id
	`

	var rows []bidDocumentRow
	err := repo.selectContext(ctx, &rows, query, pq.Array(bidIds))
	if err != nil {
		return nil, fmt.Errorf("bid documents: %w", err)
	}

	result := make(map[string][]models.BidDocument, len(bidIds))
	for _, r := range rows {
		result[r.BidId] = append(result[r.BidId], models.BidDocument(r))
	}
	return result, nil
}

// TransitionBid moves the bid to status `to` only when its current status is
// one of from. It reports whether a row changed.
func (repo *Repository) TransitionBid(ctx context.Context, id string, from []models.BidStatus, to models.BidStatus) (bool, error) {
	query := `
	UPDATE bids
	SET (status, updated_at) = ($2, CURRENT_TIMESTAMP)
	WHERE id = $1 AND status = ANY($3::bid_status[])
	`

	n, err := repo.exec(ctx, query, id, to, pq.Array(toStrings(from)))
	if err != nil {
		return false, fmt.Errorf("repository.Repository.TransitionBid: %w", err)
	}
	return n > 0, nil
}

// RejectSubmittedBids rejects every SUBMITTED bid of the tender except exceptId.
func (repo *Repository) RejectSubmittedBids(ctx context.Context, tenderId, exceptId string) (int64, error) {
	query := `
	UPDATE bids
	SET (status, updated_at) = ('REJECTED', CURRENT_TIMESTAMP)
	WHERE tender_id = $1 AND id <> $2 AND status = 'SUBMITTED'
	`

	n, err := repo.exec(ctx, query, tenderId, exceptId)
	if err != nil {
		return 0, fmt.Errorf("repository.Repository.RejectSubmittedBids: %w", err)
	}
	return n, nil
}

func (repo *Repository) CountUserBids(ctx context.Context, userId string) (int, error) {
	var count int
	err := repo.getContext(ctx, &count, `SELECT COUNT(*) FROM bids WHERE submitted_by = $1`, userId)
	if err != nil {
		return 0, fmt.Errorf("repository.Repository.CountUserBids: %w", err)
	}
	return count, nil
}

// CountPendingEvaluations counts SUBMITTED bids the reviewer has not scored yet.
func (repo *Repository) CountPendingEvaluations(ctx context.Context, reviewerId string) (int, error) {
	query := `
	SELECT COUNT(*)
	FROM bids b
	WHERE b.status = 'SUBMITTED'
		AND NOT EXISTS (
			SELECT 1 FROM evaluation_scores e
			WHERE e.bid_id = b.id AND e.reviewer_id = $1
		)
	`

	var count int
	err := repo.getContext(ctx, &count, query, reviewerId)
	if err != nil {
		return 0, fmt.Errorf("repository.Repository.CountPendingEvaluations: %w", err)
	}
	return count, nil
}
