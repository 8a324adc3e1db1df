package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"vendorse/internal/models"

	"github.com/lib/pq"
)

type tenderRow struct {
	Id          string              `db:"id"`
	Title       string              `db:"title"`
	Description string              `db:"description"`
	Budget      float64             `db:"budget"`
	Deadline    time.Time           `db:"deadline"`
	Status      models.TenderStatus `db:"status"`
	CreatedById string              `db:"created_by"`
	CreatedAt   time.Time           `db:"created_at"`
	UpdatedAt   time.Time           `db:"updated_at"`

	CreatorName  sql.NullString `db:"creator_name"`
	CreatorEmail sql.NullString `db:"creator_email"`
	CreatorOrg   sql.NullString `db:"creator_org"`
	BidCount     int            `db:"bid_count"`
}

func (r tenderRow) model() models.Tender {
	t := models.Tender{
		Id:          r.Id,
		Title:       r.Title,
		Description: r.Description,
		Budget:      r.Budget,
		Deadline:    r.Deadline,
		Status:      r.Status,
		CreatedById: r.CreatedById,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
		BidCount:    r.BidCount,
	}
	if r.CreatorName.Valid {
		t.CreatedBy = &models.UserSummary{
			Id:             r.CreatedById,
			Name:           r.CreatorName.String,
			Email:          r.CreatorEmail.String,
			OrganizationId: r.CreatorOrg.String,
		}
	}
	return t
}

const tenderColumns = `id, title, description, budget, deadline, status, created_by, created_at, updated_at`

func tenderConditions(f models.TenderFilter) *conditions {
	c := &conditions{}

	if f.Id != "" {
		c.add("t.id = $$", f.Id)
	}
	if len(f.Scope.Statuses) > 0 {
		c.add("t.status = ANY($$::tender_status[])", pq.Array(toStrings(f.Scope.Statuses)))
	}
	if f.Scope.CreatedBy != "" {
		c.add("t.created_by = $$", f.Scope.CreatedBy)
	}
	if f.Scope.PendingReviewer != "" {
		c.add(`EXISTS (
		SELECT 1 FROM bids b
		WHERE b.tender_id = t.id
			AND b.status = 'SUBMITTED'
			AND NOT EXISTS (
				SELECT 1 FROM evaluation_scores e
				WHERE e.bid_id = b.id AND e.reviewer_id = $$
			)
	)`, f.Scope.PendingReviewer)
	}
	if len(f.Statuses) > 0 {
		c.add("t.status = ANY($$::tender_status[])", pq.Array(toStrings(f.Statuses)))
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		c.add("(t.title ILIKE $$ OR t.description ILIKE $$)", "%"+escapeLike(s)+"%")
	}

	return c
}

func prepTendersQuery(f models.TenderFilter) (query string, queryParams []interface{}) {
	query = `
	SELECT
		t.id,
		t.title,
		t.description,
		t.budget,
		t.deadline,
		t.status,
		t.created_by,
		t.created_at,
		t.updated_at,
		u.name AS creator_name,
		u.email AS creator_email,
		u.organization_id AS creator_org,
		(SELECT COUNT(*) FROM bids b WHERE b.tender_id = t.id) AS bid_count
	FROM tenders t
	LEFT JOIN users u ON u.id = t.created_by
	$conditions$
	ORDER BY t.created_at DESC, t.id
	LIMIT $1
	OFFSET $2
	`

	c := tenderConditions(f)
	query = strings.Replace(query, "$conditions$", c.where(3), 1)
	queryParams = append([]interface{}{limitParam(f.Limit), f.Offset}, c.params...)

	return query, queryParams
}

// ListTenders returns one page of tenders matching f and the total number of matches.
func (repo *Repository) ListTenders(ctx context.Context, f models.TenderFilter) ([]models.Tender, int, error) {
	query, queryParams := prepTendersQuery(f)

	var rows []tenderRow
	err := repo.selectContext(ctx, &rows, query, queryParams...)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.Repository.ListTenders: %w", err)
	}

	c := tenderConditions(f)
	var total int
	err = repo.getContext(ctx, &total, `SELECT COUNT(*) FROM tenders t `+c.where(1), c.params...)
	if err != nil {
		return nil, 0, fmt.Errorf("repository.Repository.ListTenders: count failed: %w", err)
	}

	result := make([]models.Tender, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.model())
	}
	return result, total, nil
}

// GetTender loads the bare tender row. forUpdate locks it until the
// surrounding transaction ends.
func (repo *Repository) GetTender(ctx context.Context, id string, forUpdate bool) (models.Tender, error) {
	query := `SELECT ` + tenderColumns + ` FROM tenders WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	var row tenderRow
	err := repo.getContext(ctx, &row, query, id)
	if err != nil {
		return models.Tender{}, errNotFound("repository.Repository.GetTender", id, err)
	}
	return row.model(), nil
}

// GetTenderDetail loads the tender with its creator, documents and bids.
// Bids carry their documents, evaluations and submitter.
func (repo *Repository) GetTenderDetail(ctx context.Context, id string) (models.Tender, error) {
	query, queryParams := prepTendersQuery(models.TenderFilter{Id: id, Limit: 1})

	var row tenderRow
	err := repo.getContext(ctx, &row, query, queryParams...)
	if err != nil {
		return models.Tender{}, errNotFound("repository.Repository.GetTenderDetail", id, err)
	}
	tender := row.model()

	tender.Documents, err = repo.tenderDocuments(ctx, id)
	if err != nil {
		return models.Tender{}, fmt.Errorf("repository.Repository.GetTenderDetail: %w", err)
	}

	tender.Bids, err = repo.TenderBids(ctx, id)
	if err != nil {
		return models.Tender{}, fmt.Errorf("repository.Repository.GetTenderDetail: %w", err)
	}

	return tender, nil
}

func (repo *Repository) CreateTender(ctx context.Context, t models.Tender) (models.Tender, error) {
	query := `
	INSERT INTO tenders (title, description, budget, deadline, status, created_by)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING ` + tenderColumns

	var row tenderRow
	err := repo.getContext(ctx, &row, query, t.Title, t.Description, t.Budget, t.Deadline, t.Status, t.CreatedById)
	if err != nil {
		return models.Tender{}, fmt.Errorf("repository.Repository.CreateTender: %w", err)
	}
	return row.model(), nil
}

func (repo *Repository) AddTenderDocument(ctx context.Context, doc models.TenderDocument) (models.TenderDocument, error) {
	query := `
	INSERT INTO tender_documents (tender_id, file_name, file_path, signature_hash, uploaded_by)
	VALUES ($1, $2, $3, $4, $5)
	RETURNING id, tender_id, file_name, file_path, signature_hash, uploaded_by, created_at
	`

	var row tenderDocumentRow
	err := repo.getContext(ctx, &row, query, doc.TenderId, doc.FileName, doc.FilePath, doc.SignatureHash, doc.UploadedById)
	if err != nil {
		return models.TenderDocument{}, fmt.Errorf("repository.Repository.AddTenderDocument: %w", err)
	}
	return models.TenderDocument(row), nil
}

type tenderDocumentRow struct {
	Id            string    `db:"id"`
	TenderId      string    `db:"tender_id"`
	FileName      string    `db:"file_name"`
	FilePath      string    `db:"file_path"`
	SignatureHash string    `db:"signature_hash"`
	UploadedById  string    `db:"uploaded_by"`
	CreatedAt     time.Time `db:"created_at"`
}

func (repo *Repository) tenderDocuments(ctx context.Context, tenderId string) ([]models.TenderDocument, error) {
	query := `
	SELECT id, tender_id, file_name, file_path, signature_hash, uploaded_by, created_at
	FROM tender_documents
	WHERE tender_id = $1
	ORDER BY created_at, id
	`

	var rows []tenderDocumentRow
	err := repo.selectContext(ctx, &rows, query, tenderId)
	if err != nil {
		return nil, fmt.Errorf("tender documents: %w", err)
	}

	result := make([]models.TenderDocument, 0, len(rows))
	for _, r := range rows {
		result = append(result, models.TenderDocument(r))
	}
	return result, nil
}

// TransitionTender moves the tender to status `to` only when its current
// status is one of from. It reports whether a row changed.
func (repo *Repository) TransitionTender(ctx context.Context, id string, from []models.TenderStatus, to models.TenderStatus) (bool, error) {
	query := `
	UPDATE tenders
	SET (status, updated_at) = ($2, CURRENT_TIMESTAMP)
	WHERE id = $1 AND status = ANY($3::tender_status[])
	`

	n, err := repo.exec(ctx, query, id, to, pq.Array(toStrings(from)))
	if err != nil {
		return false, fmt.Errorf("repository.Repository.TransitionTender: %w", err)
	}
	return n > 0, nil
}

// CountTenders counts tenders created by createdBy (any creator when empty)
// whose status is one of statuses (any status when empty).
func (repo *Repository) CountTenders(ctx context.Context, createdBy string, statuses []models.TenderStatus) (int, error) {
	c := tenderConditions(models.TenderFilter{Scope: models.TenderScope{CreatedBy: createdBy, Statuses: statuses}})

	var count int
	err := repo.getContext(ctx, &count, `SELECT COUNT(*) FROM tenders t `+c.where(1), c.params...)
	if err != nil {
		return 0, fmt.Errorf("repository.Repository.CountTenders: %w", err)
	}
	return count, nil
}
