package approval

import (
	"context"

	"github.com/uptrace/bun"
)

func (s *BunStore) GetSubmission(ctx context.Context, uid string) (*PendingSubmission, error) {
	return s.getSubmissionTx(ctx, s.db, uid)
}

func (s *BunStore) getSubmissionTx(ctx context.Context, tx bun.IDB, uid string) (*PendingSubmission, error) {
	record := &PendingSubmission{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.uid = ?", uid).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, errorf(ErrNotFound, map[string]any{"uid": uid}, "pending registration not found")
		}
		return nil, internalError(err, "failed to read pending registration")
	}
	return record, nil
}

func (s *BunStore) SetSubmission(ctx context.Context, submission *PendingSubmission) (*PendingSubmission, error) {
	record := *submission
	record.CreatedAt = s.stamp()

	_, err := s.db.NewInsert().
		Model(&record).
		On("CONFLICT (uid) DO UPDATE").
		Set("email = EXCLUDED.email").
		Set("role = EXCLUDED.role").
		Set("payload = EXCLUDED.payload").
		Set("provider = EXCLUDED.provider").
		Set("status = EXCLUDED.status").
		Set("rejection_reason = EXCLUDED.rejection_reason").
		Set("escalation_requested_at = EXCLUDED.escalation_requested_at").
		Set("created_at = EXCLUDED.created_at").
		Set("reviewed_at = EXCLUDED.reviewed_at").
		Set("approved_at = EXCLUDED.approved_at").
		Exec(ctx)
	if err != nil {
		return nil, internalError(err, "failed to write pending registration")
	}

	return &record, nil
}

func (s *BunStore) UpdateSubmission(ctx context.Context, uid string, update SubmissionUpdate) (*PendingSubmission, error) {
	var result *PendingSubmission

	err := s.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		record, err := s.getSubmissionTx(ctx, tx, uid)
		if err != nil {
			return err
		}

		columns := make([]string, 0, 5)
		if update.Status != nil {
			record.Status = *update.Status
			columns = append(columns, "status")
		}
		if update.RejectionReason != nil {
			reason := *update.RejectionReason
			record.RejectionReason = &reason
			columns = append(columns, "rejection_reason")
		}
		if update.StampReviewed {
			record.ReviewedAt = s.stamp()
			columns = append(columns, "reviewed_at")
		}
		if update.StampApproved {
			record.ApprovedAt = s.stamp()
			columns = append(columns, "approved_at")
		}
		if update.StampEscalation {
			record.EscalationRequestedAt = s.stamp()
			columns = append(columns, "escalation_requested_at")
		}

		result = record
		if len(columns) == 0 {
			return nil
		}

		_, err = tx.NewUpdate().
			Model(record).
			Column(columns...).
			WherePK().
			Exec(ctx)
		if err != nil {
			return internalError(err, "failed to update pending registration")
		}
		return nil
	})
	if err != nil {
		if ErrorKind(err) != KindInternal {
			return nil, err
		}
		return nil, internalError(err, "pending registration update failed")
	}

	return result, nil
}

func (s *BunStore) ListSubmissions(ctx context.Context, status SubmissionStatus) ([]*PendingSubmission, error) {
	records := []*PendingSubmission{}
	q := s.db.NewSelect().Model(&records)
	if status != "" {
		q = q.Where("?TableAlias.status = ?", status)
	}

	if err := q.Order("created_at ASC").Scan(ctx); err != nil {
		if isNoRows(err) {
			return records, nil
		}
		return nil, internalError(err, "failed to list pending registrations")
	}
	return records, nil
}
