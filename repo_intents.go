package approval

import (
	"context"

	"github.com/google/uuid"
)

func (s *BunStore) CreateIntent(ctx context.Context, intent *ApprovalIntent) (*ApprovalIntent, error) {
	record := *intent
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	if record.Step == "" {
		record.Step = IntentStarted
	}
	record.CreatedAt = s.stamp()
	record.UpdatedAt = record.CreatedAt

	if _, err := s.db.NewInsert().Model(&record).Exec(ctx); err != nil {
		return nil, internalError(err, "failed to record approval intent")
	}
	return &record, nil
}

func (s *BunStore) AdvanceIntent(ctx context.Context, id string, step IntentStep) error {
	intentID, err := parseIntentID(id)
	if err != nil {
		return err
	}

	res, err := s.db.NewUpdate().
		Model((*ApprovalIntent)(nil)).
		Set("step = ?", step).
		Set("updated_at = ?", s.stamp()).
		Where("id = ?", intentID).
		Exec(ctx)
	if err != nil {
		return internalError(err, "failed to advance approval intent")
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errorf(ErrNotFound, map[string]any{"id": id}, "approval intent not found")
	}
	return nil
}

func (s *BunStore) GetIntent(ctx context.Context, id string) (*ApprovalIntent, error) {
	intentID, err := parseIntentID(id)
	if err != nil {
		return nil, err
	}

	record := &ApprovalIntent{}
	err = s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", intentID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, errorf(ErrNotFound, map[string]any{"id": id}, "approval intent not found")
		}
		return nil, internalError(err, "failed to read approval intent")
	}
	return record, nil
}

func (s *BunStore) ListOpenIntents(ctx context.Context) ([]*ApprovalIntent, error) {
	records := []*ApprovalIntent{}
	err := s.db.NewSelect().
		Model(&records).
		Where("?TableAlias.step != ?", IntentCompleted).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil && !isNoRows(err) {
		return nil, internalError(err, "failed to list approval intents")
	}
	return records, nil
}

// FindOpenIntent returns the oldest unfinished intent of uid.
func (s *BunStore) FindOpenIntent(ctx context.Context, uid string) (*ApprovalIntent, error) {
	record := &ApprovalIntent{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.uid = ?", uid).
		Where("?TableAlias.step != ?", IntentCompleted).
		Order("created_at ASC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, errorf(ErrNotFound, map[string]any{"uid": uid}, "no open approval intent")
		}
		return nil, internalError(err, "failed to read approval intent")
	}
	return record, nil
}

func parseIntentID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, errorf(ErrInvalidArgument, map[string]any{"id": id}, "invalid intent id")
	}
	return parsed, nil
}
