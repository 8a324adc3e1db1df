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
	maxTitleLength       = 200
	maxDescriptionLength = 10000

	// budget and amount columns are numeric(14, 2)
	maxMoney = 999999999999.99
)

func (s *Service) CreateTender(ctx context.Context, actor models.Actor, in models.NewTender) (models.Tender, error) {
	err := requireRole(actor, models.RoleAdmin, models.RoleBuyer)
	if err != nil {
		return models.Tender{}, fmt.Errorf("service.Service.CreateTender: %w", err)
	}

	in.Title = strings.TrimSpace(in.Title)
	err = validateNewTender(in)
	if err != nil {
		return models.Tender{}, fmt.Errorf("service.Service.CreateTender: %w", err)
	}

	var created models.Tender
	err = s.store.InTx(ctx, func(tx Store) error {
		created, err = tx.CreateTender(ctx, models.Tender{
			Title:       in.Title,
			Description: in.Description,
			Budget:      in.Budget,
			Deadline:    in.Deadline,
			Status:      models.TenderDraft,
			CreatedById: actor.Id,
		})
		if err != nil {
			return err
		}

		for _, d := range in.Documents {
			doc, err := tx.AddTenderDocument(ctx, models.TenderDocument{
				TenderId:      created.Id,
				FileName:      d.FileName,
				FilePath:      d.FilePath,
				SignatureHash: d.SignatureHash,
				UploadedById:  actor.Id,
			})
			if err != nil {
				return err
			}
			created.Documents = append(created.Documents, doc)
		}

		return s.audit(ctx, tx, actor, models.AuditTenderCreated, models.TargetTender, created.Id)
	})
	if err != nil {
		return models.Tender{}, fmt.Errorf("service.Service.CreateTender: %w", err)
	}

	s.metrics.TenderTransition(string(models.TenderDraft))
	s.invalidateStats(ctx, actor.Id)
	return created, nil
}

func validateNewTender(in models.NewTender) error {
	switch {
	case in.Title == "":
		return invalidInput("title is required")
	case utf8.RuneCountInString(in.Title) > maxTitleLength:
		return invalidInput("title is longer than %d characters", maxTitleLength)
	case utf8.RuneCountInString(in.Description) > maxDescriptionLength:
		return invalidInput("description is longer than %d characters", maxDescriptionLength)
	case in.Budget < 0:
		return invalidInput("budget must not be negative")
	case in.Budget > maxMoney:
		return invalidInput("budget must not exceed %.2f", maxMoney)
	case in.Deadline.IsZero():
		return invalidInput("deadline is required")
	}

	for i, d := range in.Documents {
		if strings.TrimSpace(d.FilePath) == "" || strings.TrimSpace(d.SignatureHash) == "" {
			return invalidInput("document %d needs filePath and signatureHash", i)
		}
	}
	return nil
}

// PublishTender moves a DRAFT tender to PUBLISHED. Only its creator may do so.
func (s *Service) PublishTender(ctx context.Context, actor models.Actor, tenderId string) (models.Tender, error) {
	err := requireRole(actor, models.RoleAdmin, models.RoleBuyer)
	if err != nil {
		return models.Tender{}, fmt.Errorf("service.Service.PublishTender: %w", err)
	}

	var published models.Tender
	err = s.store.InTx(ctx, func(tx Store) error {
		// get tender
		tender, err := tx.GetTender(ctx, tenderId, true)
		if err != nil {
			return lookupErr(err, models.ErrNoTender, tenderId)
		}

		// check ownership and status
		if tender.CreatedById != actor.Id {
			return fmt.Errorf("%w: %s", models.ErrNotOwner, tenderId)
		}
		if tender.Status != models.TenderDraft {
			return fmt.Errorf("%w: %s is %s", models.ErrTenderNotDraft, tenderId, tender.Status)
		}

		_, err = tx.TransitionTender(ctx, tenderId, []models.TenderStatus{models.TenderDraft}, models.TenderPublished)
		if err != nil {
			return err
		}

		err = s.audit(ctx, tx, actor, models.AuditTenderPublished, models.TargetTender, tenderId)
		if err != nil {
			return err
		}

		published, err = tx.GetTender(ctx, tenderId, false)
		return err
	})
	if err != nil {
		return models.Tender{}, fmt.Errorf("service.Service.PublishTender: %w", err)
	}

	s.metrics.TenderTransition(string(models.TenderPublished))
	s.invalidateStats(ctx, actor.Id)
	return published, nil
}

// AwardTender accepts one bid and closes the tender. The tender, the chosen
// bid and every other SUBMITTED bid change in one transaction.
func (s *Service) AwardTender(ctx context.Context, actor models.Actor, tenderId, bidId string) (models.Tender, error) {
	err := requireRole(actor, models.RoleAdmin, models.RoleBuyer)
	if err != nil {
		return models.Tender{}, fmt.Errorf("service.Service.AwardTender: %w", err)
	}

	var winner models.Bid
	err = s.store.InTx(ctx, func(tx Store) error {
		tender, err := tx.GetTender(ctx, tenderId, true)
		if err != nil {
			return lookupErr(err, models.ErrNoTender, tenderId)
		}

		if tender.CreatedById != actor.Id {
			return fmt.Errorf("%w: %s", models.ErrNotOwner, tenderId)
		}
		switch tender.Status {
		case models.TenderPublished, models.TenderUnderReview:
		case models.TenderDraft:
			return fmt.Errorf("%w: %s is %s", models.ErrTenderNotPublished, tenderId, tender.Status)
		default:
			return fmt.Errorf("%w: %s is %s", models.ErrTenderClosed, tenderId, tender.Status)
		}

		winner, err = tx.GetBid(ctx, bidId, true)
		if err != nil {
			return lookupErr(err, models.ErrNoBid, bidId)
		}
		if winner.TenderId != tenderId {
			return fmt.Errorf("%w: %s does not belong to tender %s", models.ErrNoBid, bidId, tenderId)
		}
		if !models.BidReviewable(winner.Status) {
			return fmt.Errorf("%w: %s is %s", models.ErrBidNotAwardable, bidId, winner.Status)
		}

		_, err = tx.TransitionTender(ctx, tenderId, []models.TenderStatus{models.TenderPublished, models.TenderUnderReview}, models.TenderAwarded)
		if err != nil {
			return err
		}
		_, err = tx.TransitionBid(ctx, bidId, []models.BidStatus{models.BidSubmitted, models.BidUnderReview}, models.BidAccepted)
		if err != nil {
			return err
		}
		_, err = tx.RejectSubmittedBids(ctx, tenderId, bidId)
		if err != nil {
			return err
		}

		_, err = tx.AddNotification(ctx, models.Notification{
			UserId:  winner.SubmittedById,
			Type:    models.NotifyTenderAwarded,
			Message: fmt.Sprintf("Your bid for tender %q has been accepted", tender.Title),
		})
		if err != nil {
			return err
		}

		return s.audit(ctx, tx, actor, models.AuditTenderAwarded, models.TargetTender, tenderId)
	})
	if err != nil {
		return models.Tender{}, fmt.Errorf("service.Service.AwardTender: %w", err)
	}

	s.metrics.TenderTransition(string(models.TenderAwarded))
	s.invalidateStats(ctx, actor.Id, winner.SubmittedById)
	s.publish(ctx, notify.Event{
		Type:       notify.EventTenderAwarded,
		TenderId:   tenderId,
		BidId:      bidId,
		ActorId:    actor.Id,
		OccurredAt: s.now().UTC(),
	})

	tender, err := s.store.GetTenderDetail(ctx, tenderId)
	if err != nil {
		return models.Tender{}, fmt.Errorf("service.Service.AwardTender: %w", err)
	}
	return withScores(tender), nil
}

// GetTender returns the tender with documents and the bids the actor may see.
func (s *Service) GetTender(ctx context.Context, actor models.Actor, tenderId string) (models.Tender, error) {
	strategy, err := strategyFor(actor.Role)
	if err != nil {
		return models.Tender{}, fmt.Errorf("service.Service.GetTender: %w", err)
	}

	tender, err := s.store.GetTenderDetail(ctx, tenderId)
	if err != nil {
		return models.Tender{}, fmt.Errorf("service.Service.GetTender: %w", lookupErr(err, models.ErrNoTender, tenderId))
	}

	err = strategy.canView(actor, tender)
	if err != nil {
		return models.Tender{}, fmt.Errorf("service.Service.GetTender: %w", err)
	}

	tender.Bids = strategy.visibleBids(actor, tender.Bids)
	return withScores(tender), nil
}

// ListTenders returns one page of the tenders visible to the actor, newest first.
func (s *Service) ListTenders(ctx context.Context, actor models.Actor, q models.TenderQuery) (models.TenderPage, error) {
	strategy, err := strategyFor(actor.Role)
	if err != nil {
		return models.TenderPage{}, fmt.Errorf("service.Service.ListTenders: %w", err)
	}

	for _, st := range q.Statuses {
		if !models.ValidTenderStatus(st) {
			return models.TenderPage{}, fmt.Errorf("service.Service.ListTenders: %w", invalidInput("unknown status %q", st))
		}
	}

	page, limit := pageParams(q.Page, q.Limit)
	tenders, total, err := s.store.ListTenders(ctx, models.TenderFilter{
		Scope:    strategy.scopeFilter(actor),
		Statuses: q.Statuses,
		Search:   q.Search,
		Limit:    limit,
		Offset:   (page - 1) * limit,
	})
	if err != nil {
		return models.TenderPage{}, fmt.Errorf("service.Service.ListTenders: %w", err)
	}
	if tenders == nil {
		tenders = []models.Tender{}
	}

	return models.TenderPage{
		Tenders:    tenders,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	}, nil
}

// withScores fills each evaluated bid's aggregate with equal criterion weights.
func withScores(t models.Tender) models.Tender {
	for i := range t.Bids {
		if len(t.Bids[i].Evaluations) == 0 {
			continue
		}
		score, err := scoreEvaluations(t.Bids[i].Evaluations, nil)
		if err == nil {
			t.Bids[i].Score = &score
		}
	}
	return t
}
