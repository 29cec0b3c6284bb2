package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MKhiriev/go-care-keeper/internal/logger"
	"github.com/MKhiriev/go-care-keeper/internal/validators"
	"github.com/MKhiriev/go-care-keeper/models"
)

type evaluationService struct {
	engine    SyncEngine
	codec     FieldCodec
	ids       IDGenerator
	validator validators.Validator
	logger    *logger.Logger
	now       func() time.Time
}

// NewEvaluationService creates the evaluation facade. Fields listed in
// [models.EvaluationSensitiveFields] are encrypted by codec before they reach
// engine and decrypted on the way out. Evaluations are checked by validator
// before they are saved.
func NewEvaluationService(engine SyncEngine, codec FieldCodec, ids IDGenerator, validator validators.Validator, logger *logger.Logger) EvaluationService {
	return &evaluationService{
		engine:    engine,
		codec:     codec,
		ids:       ids,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *evaluationService) Save(ctx context.Context, evaluation models.Evaluation) (models.Evaluation, error) {
	now := s.now().UTC()
	if evaluation.ID == "" {
		evaluation.ID = s.ids.Generate()
	}
	if evaluation.CreatedAt.IsZero() {
		evaluation.CreatedAt = now
	}
	if evaluation.Status == "" {
		evaluation.Status = models.EvaluationDraft
	}
	evaluation.UpdatedAt = now

	if err := s.validator.Validate(ctx, evaluation); err != nil {
		return models.Evaluation{}, fmt.Errorf("%w: %w", ErrInvalidEvaluation, err)
	}

	entity, err := evaluation.ToEntity()
	if err != nil {
		return models.Evaluation{}, err
	}

	sealed, err := s.codec.EncryptFields(ctx, entity, models.EvaluationSensitiveFields)
	if err != nil {
		return models.Evaluation{}, fmt.Errorf("encrypt evaluation %q: %w", evaluation.ID, err)
	}

	if _, err = s.engine.SaveLocal(ctx, sealed); err != nil {
		return models.Evaluation{}, err
	}
	return evaluation, nil
}

func (s *evaluationService) Get(ctx context.Context, id string) (models.Evaluation, error) {
	entity, err := s.engine.Get(ctx, id)
	if err != nil {
		return models.Evaluation{}, err
	}
	return s.open(ctx, entity)
}

func (s *evaluationService) List(ctx context.Context) ([]models.Evaluation, error) {
	entities, err := s.engine.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.Evaluation, 0, len(entities))
	for _, entity := range entities {
		evaluation, err := s.open(ctx, entity)
		if err != nil {
			s.logger.Err(err).
				Str("func", "evaluationService.List").
				Str("id", entity.ID()).
				Msg("skipping unreadable evaluation")
			continue
		}
		out = append(out, evaluation)
	}
	return out, nil
}

func (s *evaluationService) Summaries(ctx context.Context) ([]models.EvaluationSummary, error) {
	evaluations, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]models.EvaluationSummary, 0, len(evaluations))
	for _, e := range evaluations {
		summary := models.EvaluationSummary{
			ID:              e.ID,
			PatientInitials: MaskName(e.PatientName),
			PatientDocument: MaskDocument(e.PatientDocument),
			Status:          e.Status,
			ScheduledAt:     e.ScheduledAt,
			UpdatedAt:       e.UpdatedAt,
		}
		if meta, ok := s.engine.Meta(e.ID); ok {
			summary.SyncStatus = meta.SyncStatus
		}
		out = append(out, summary)
	}
	return out, nil
}

func (s *evaluationService) Delete(ctx context.Context, id string) error {
	return s.engine.DeleteLocal(ctx, id)
}

func (s *evaluationService) open(ctx context.Context, entity models.Entity) (models.Evaluation, error) {
	plain, err := s.codec.DecryptFields(ctx, entity, models.EvaluationSensitiveFields)
	if err != nil {
		return models.Evaluation{}, err
	}

	evaluation, err := models.EvaluationFromEntity(plain)
	if err != nil {
		return models.Evaluation{}, errors.Join(ErrInvalidEntity, err)
	}
	return evaluation, nil
}
