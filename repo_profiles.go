package approval

import (
	"context"
)

func (s *BunStore) GetProfile(ctx context.Context, uid string) (*ApprovedProfile, error) {
	record := &ApprovedProfile{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.uid = ?", uid).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, errorf(ErrNotFound, map[string]any{"uid": uid}, "profile not found")
		}
		return nil, internalError(err, "failed to read profile")
	}
	return record, nil
}

func (s *BunStore) MergeProfile(ctx context.Context, profile *ApprovedProfile) (*ApprovedProfile, error) {
	record := *profile
	if record.RegistrationCompleted {
		record.RegistrationCompletedAt = s.stamp()
	}
	if record.Approved {
		record.ApprovedAt = s.stamp()
	}

	q := s.db.NewInsert().
		Model(&record).
		On("CONFLICT (uid) DO UPDATE").
		Set("email = EXCLUDED.email").
		Set("role = EXCLUDED.role").
		Set("registration_payload = EXCLUDED.registration_payload").
		Set("registration_completed = EXCLUDED.registration_completed").
		Set("approved = EXCLUDED.approved")

	if record.RegistrationCompletedAt != nil {
		q = q.Set("registration_completed_at = EXCLUDED.registration_completed_at")
	}
	if record.ApprovedAt != nil {
		q = q.Set("approved_at = EXCLUDED.approved_at")
	}

	if _, err := q.Exec(ctx); err != nil {
		return nil, internalError(err, "failed to merge profile")
	}

	return s.GetProfile(ctx, record.UID)
}
