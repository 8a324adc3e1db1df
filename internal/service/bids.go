package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"vendorse/internal/models"
	"vendorse/internal/notify"
)

const (
	maxCriteriaLength = 100
	minScore          = 0
	maxScore          = 100
)

// SubmitBid records a vendor's bid on a PUBLISHED tender together with its
// documents. Nothing is written when the tender is in any other state.
func (s *Service) SubmitBid(ctx context.Context, actor models.Actor, tenderId string, in models.NewBid) (models.Bid, error) {
	err := requireRole(actor, models.RoleVendor)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.SubmitBid: %w", err)
	}

	err = validateNewBid(in)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.SubmitBid: %w", err)
	}

	var bid models.Bid
	err = s.store.InTx(ctx, func(tx Store) error {
		tender, err := tx.GetTender(ctx, tenderId, true)
		if err != nil {
			return lookupErr(err, models.ErrNoTender, tenderId)
		}
		if tender.Status != models.TenderPublished {
			return fmt.Errorf("%w: %s is %s", models.ErrTenderNotPublished, tenderId, tender.Status)
		}

		bid, err = tx.CreateBid(ctx, models.Bid{
			TenderId:       tenderId,
			SubmittedById:  actor.Id,
			OrganizationId: actor.OrganizationId,
			Amount:         in.Amount,
			Description:    in.Description,
			Status:         models.BidSubmitted,
		})
		if err != nil {
			return err
		}

		bid.Documents = make([]models.BidDocument, 0, len(in.Documents))
		for _, d := range in.Documents {
			doc, err := tx.AddBidDocument(ctx, models.BidDocument{
				BidId:         bid.Id,
				FilePath:      d.FilePath,
				SignatureHash: d.SignatureHash,
			})
			if err != nil {
				return err
			}
			bid.Documents = append(bid.Documents, doc)
		}

		return s.audit(ctx, tx, actor, models.AuditBidSubmitted, models.TargetBid, bid.Id)
	})
	if err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.SubmitBid: %w", err)
	}

	s.metrics.BidSubmitted()
	s.invalidateStats(ctx, actor.Id)
	return bid, nil
}

func validateNewBid(in models.NewBid) error {
	if in.Amount != nil && *in.Amount < 0 {
		return invalidInput("amount must not be negative")
	}
	if in.Amount != nil && *in.Amount > maxMoney {
		return invalidInput("amount must not exceed %.2f", maxMoney)
	}
	if utf8.RuneCountInString(in.Description) > maxDescriptionLength {
		return invalidInput("description is longer than %d characters", maxDescriptionLength)
	}
	for i, d := range in.Documents {
		if strings.TrimSpace(d.FilePath) == "" || strings.TrimSpace(d.SignatureHash) == "" {
			return invalidInput("document %d needs filePath and signatureHash", i)
		}
	}
	return nil
}

// GetUserBids lists the actor's own bids, newest first.
func (s *Service) GetUserBids(ctx context.Context, actor models.Actor) ([]models.Bid, error) {
	bids, err := s.store.UserBids(ctx, actor.Id)
	if err != nil {
		return nil, fmt.Errorf("service.Service.GetUserBids: %w", err)
	}
	if bids == nil {
		bids = []models.Bid{}
	}
	return bids, nil
}

// EvaluateBid writes the reviewer's scores for one bid. All criteria are
// written in one transaction. Each criterion is an upsert on
// (bid, reviewer, criteria); only a first write notifies the submitter,
// appends an audit entry and moves the bid and tender to UNDER_REVIEW.
func (s *Service) EvaluateBid(ctx context.Context, actor models.Actor, bidId string, scores []models.CriterionScore) ([]models.EvaluationScore, error) {
	err := requireRole(actor, models.RoleReviewer)
	if err != nil {
		return nil, fmt.Errorf("service.Service.EvaluateBid: %w", err)
	}

	scores, err = normalizeScores(scores)
	if err != nil {
		return nil, fmt.Errorf("service.Service.EvaluateBid: %w", err)
	}

	var results []models.EvaluationScore
	var inserted []bool
	var bid models.Bid

	err = s.store.InTx(ctx, func(tx Store) error {
		results, inserted = nil, nil

		// lock the tender before the bid, the same order AwardTender uses
		ref, err := tx.GetBid(ctx, bidId, false)
		if err != nil {
			return lookupErr(err, models.ErrNoBid, bidId)
		}
		tender, err := tx.GetTender(ctx, ref.TenderId, true)
		if err != nil {
			return lookupErr(err, models.ErrNoTender, ref.TenderId)
		}
		bid, err = tx.GetBid(ctx, bidId, true)
		if err != nil {
			return lookupErr(err, models.ErrNoBid, bidId)
		}

		if !models.BidReviewable(bid.Status) {
			return fmt.Errorf("%w: %s is %s", models.ErrBidClosed, bidId, bid.Status)
		}
		if !models.TenderOpen(tender.Status) {
			return fmt.Errorf("%w: %s is %s", models.ErrTenderClosed, tender.Id, tender.Status)
		}

		for _, sc := range scores {
			e, ins, err := tx.UpsertEvaluation(ctx, models.EvaluationScore{
				BidId:          bidId,
				ReviewerId:     actor.Id,
				Criteria:       sc.Criteria,
				Score:          sc.Score,
				Notes:          sc.Notes,
				Recommendation: sc.Recommendation,
			})
			if err != nil {
				return err
			}
			results = append(results, e)
			inserted = append(inserted, ins)

			if !ins {
				continue
			}

			_, err = tx.AddNotification(ctx, models.Notification{
				UserId:  bid.SubmittedById,
				Type:    models.NotifyBidEvaluated,
				Message: fmt.Sprintf("Your bid for tender %q has been evaluated on %s", tender.Title, sc.Criteria),
			})
			if err != nil {
				return err
			}

			err = s.audit(ctx, tx, actor, models.AuditBidEvaluated, models.TargetBid, bidId)
			if err != nil {
				return err
			}

			if bid.Status == models.BidSubmitted {
				_, err = tx.TransitionBid(ctx, bidId, []models.BidStatus{models.BidSubmitted}, models.BidUnderReview)
				if err != nil {
					return err
				}
				bid.Status = models.BidUnderReview
			}
			if tender.Status != models.TenderUnderReview {
				_, err = tx.TransitionTender(ctx, tender.Id, []models.TenderStatus{models.TenderPublished}, models.TenderUnderReview)
				if err != nil {
					return err
				}
				tender.Status = models.TenderUnderReview
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("service.Service.EvaluateBid: %w", err)
	}

	anyInserted := false
	for _, ins := range inserted {
		s.metrics.Evaluation(ins)
		anyInserted = anyInserted || ins
	}

	if anyInserted {
		s.invalidateStats(ctx, actor.Id)
		s.publish(ctx, notify.Event{
			Type:       notify.EventBidEvaluated,
			TenderId:   bid.TenderId,
			BidId:      bidId,
			ActorId:    actor.Id,
			OccurredAt: s.now().UTC(),
		})
	}

	return results, nil
}

// normalizeScores trims criteria names and rejects empty batches, out of
// range scores, unknown recommendations and criteria repeated in one batch.
func normalizeScores(scores []models.CriterionScore) ([]models.CriterionScore, error) {
	if len(scores) == 0 {
		return nil, invalidInput("at least one criterion is required")
	}

	seen := make(map[string]struct{}, len(scores))
	result := make([]models.CriterionScore, 0, len(scores))
	for _, sc := range scores {
		sc.Criteria = strings.TrimSpace(sc.Criteria)
		switch {
		case sc.Criteria == "":
			return nil, invalidInput("criteria is required")
		case utf8.RuneCountInString(sc.Criteria) > maxCriteriaLength:
			return nil, invalidInput("criteria is longer than %d characters", maxCriteriaLength)
		case sc.Score < minScore || sc.Score > maxScore:
			return nil, invalidInput("score %v is outside [%d, %d]", sc.Score, minScore, maxScore)
		case sc.Recommendation != nil && !models.ValidRecommendation(*sc.Recommendation):
			return nil, invalidInput("unknown recommendation %q", *sc.Recommendation)
		}

		if _, dup := seen[sc.Criteria]; dup {
			return nil, invalidInput("criteria %q given twice", sc.Criteria)
		}
		seen[sc.Criteria] = struct{}{}
		result = append(result, sc)
	}
	return result, nil
}

// BidScore aggregates all evaluation rows of a bid with caller supplied
// per-criterion weights. Criteria missing from weights weigh 1.
func (s *Service) BidScore(ctx context.Context, actor models.Actor, bidId string, weights map[string]float64) (models.BidScore, error) {
	err := requireRole(actor, models.RoleAdmin, models.RoleBuyer, models.RoleReviewer)
	if err != nil {
		return models.BidScore{}, fmt.Errorf("service.Service.BidScore: %w", err)
	}

	bid, err := s.store.GetBid(ctx, bidId, false)
	if err != nil {
		return models.BidScore{}, fmt.Errorf("service.Service.BidScore: %w", lookupErr(err, models.ErrNoBid, bidId))
	}

	if actor.Role == models.RoleBuyer {
		tender, err := s.store.GetTender(ctx, bid.TenderId, false)
		if err != nil {
			return models.BidScore{}, fmt.Errorf("service.Service.BidScore: %w", lookupErr(err, models.ErrNoTender, bid.TenderId))
		}
		if tender.CreatedById != actor.Id {
			return models.BidScore{}, fmt.Errorf("service.Service.BidScore: %w: %s", models.ErrNotOwner, tender.Id)
		}
	}

	evals, err := s.store.BidEvaluations(ctx, bidId)
	if err != nil {
		return models.BidScore{}, fmt.Errorf("service.Service.BidScore: %w", err)
	}

	result := models.BidScore{
		BidId:     bidId,
		Criteria:  criterionMeans(evals),
		Weights:   map[string]float64{},
		Evaluated: len(evals),
	}
	for criteria := range result.Criteria {
		w, ok := weights[criteria]
		if !ok {
			w = 1
		}
		result.Weights[criteria] = w
	}
	if len(evals) == 0 {
		return result, nil
	}

	result.Score, err = scoreEvaluations(evals, weights)
	if err != nil {
		return models.BidScore{}, fmt.Errorf("service.Service.BidScore: %w", err)
	}
	return result, nil
}

// criterionMeans averages each criterion over reviewers.
func criterionMeans(evals []models.EvaluationScore) map[string]float64 {
	sums := map[string]float64{}
	counts := map[string]int{}
	for _, e := range evals {
		sums[e.Criteria] += e.Score
		counts[e.Criteria]++
	}

	means := make(map[string]float64, len(sums))
	for k, sum := range sums {
		means[k] = sum / float64(counts[k])
	}
	return means
}
