package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"vendorse/internal/models"

	"github.com/lib/pq"
)

type evaluationRow struct {
	Id             string         `db:"id"`
	BidId          string         `db:"bid_id"`
	ReviewerId     string         `db:"reviewer_id"`
	Criteria       string         `db:"criteria"`
	Score          float64        `db:"score"`
	Notes          sql.NullString `db:"notes"`
	Recommendation sql.NullString `db:"recommendation"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
	ReviewerName   sql.NullString `db:"reviewer_name"`
	Inserted       sql.NullBool   `db:"inserted"`
}

func (r evaluationRow) model() models.EvaluationScore {
	e := models.EvaluationScore{
		Id:         r.Id,
		BidId:      r.BidId,
		ReviewerId: r.ReviewerId,
		Criteria:   r.Criteria,
		Score:      r.Score,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.Notes.Valid {
		notes := r.Notes.String
		e.Notes = &notes
	}
	if r.Recommendation.Valid {
		rec := models.Recommendation(r.Recommendation.String)
		e.Recommendation = &rec
	}
	if r.ReviewerName.Valid {
		e.Reviewer = &models.UserSummary{Id: r.ReviewerId, Name: r.ReviewerName.String}
	}
	return e
}

const evaluationColumns = `id, bid_id, reviewer_id, criteria, score, notes, recommendation, created_at, updated_at`

// UpsertEvaluation writes the reviewer's score for one criterion of a bid.
// The unique (bid_id, reviewer_id, criteria) constraint turns a repeated call
// into an update. inserted is false for updates.
func (repo *Repository) UpsertEvaluation(ctx context.Context, e models.EvaluationScore) (score models.EvaluationScore, inserted bool, err error) {
	query := `
	INSERT INTO evaluation_scores (bid_id, reviewer_id, criteria, score, notes, recommendation)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (bid_id, reviewer_id, criteria)
	DO UPDATE SET (score, notes, recommendation, updated_at) =
		(EXCLUDED.score, EXCLUDED.notes, EXCLUDED.recommendation, CURRENT_TIMESTAMP)
	RETURNING ` + evaluationColumns + `, (xmax = 0) AS inserted
	`

	var recommendation interface{}
	if e.Recommendation != nil {
		recommendation = string(*e.Recommendation)
	}

	var row evaluationRow
	err = repo.getContext(ctx, &row, query, e.BidId, e.ReviewerId, e.Criteria, e.Score, e.Notes, recommendation)
	if err != nil {
		return models.EvaluationScore{}, false, fmt.Errorf("repository.Repository.UpsertEvaluation: %w", err)
	}
	return row.model(), row.Inserted.Bool, nil
}

func (repo *Repository) BidEvaluations(ctx context.Context, bidId string) ([]models.EvaluationScore, error) {
	evals, err := repo.evaluationsByBid(ctx, []string{bidId})
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.BidEvaluations: %w", err)
	}
	return evals[bidId], nil
}

func (repo *Repository) evaluationsByBid(ctx context.Context, bidIds []string) (map[string][]models.EvaluationScore, error) {
	query := `
	SELECT
		e.id, e.bid_id, e.reviewer_id, e.criteria, e.score, e.notes, e.recommendation,
		e.created_at, e.updated_at,
		u.name AS reviewer_name
	FROM evaluation_scores e
	LEFT JOIN users u ON u.id = e.reviewer_id
	WHERE e.bid_id = ANY($1::uuid[])
	ORDER BY e.created_at, e.id
	`

	var rows []evaluationRow
	err := repo.selectContext(ctx, &rows, query, pq.Array(bidIds))
	if err != nil {
		return nil, fmt.Errorf("evaluations: %w", err)
	}

	result := make(map[string][]models.EvaluationScore, len(bidIds))
	for _, r := range rows {
		result[r.BidId] = append(result[r.BidId], r.model())
	}
	return result, nil
}
