package application

import (
	"context"

	"github.com/draftea/saga-engine/shared/saga"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// RecoverSagas sweeps the state store for sagas that were interrupted by a
// crash and drives each one to a terminal state through the orchestrator it
// belongs to. It runs once at startup, before the service accepts traffic.
type RecoverSagas struct {
	store       saga.StateStore
	runners     map[string]SagaRunner
	logger      *zap.Logger
	concurrency int
}

// NewRecoverSagas creates the recovery sweep over the given runners,
// indexed by saga type
func NewRecoverSagas(store saga.StateStore, runners []SagaRunner, logger *zap.Logger, concurrency int) *RecoverSagas {
	if concurrency <= 0 {
		concurrency = 4
	}
	index := make(map[string]SagaRunner, len(runners))
	for _, runner := range runners {
		index[runner.Name()] = runner
	}
	return &RecoverSagas{
		store:       store,
		runners:     index,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Execute resumes every non-terminal saga. Sagas resume independently and a
// failure to resume one does not stop the sweep; the first resume error is
// reported after all sagas were attempted. It returns the number of sagas
// picked up.
func (uc *RecoverSagas) Execute(ctx context.Context) (int, error) {
	records, err := uc.store.ListByStatus(ctx,
		saga.StatusPending, saga.StatusInProgress, saga.StatusCompensating)
	if err != nil {
		return 0, errors.Wrap(err, "failed to list interrupted sagas")
	}

	if len(records) == 0 {
		return 0, nil
	}

	uc.logger.Info("recovering interrupted sagas", zap.Int("count", len(records)))

	var g errgroup.Group
	g.SetLimit(uc.concurrency)

	for _, record := range records {
		record := record
		g.Go(func() error {
			runner, ok := uc.runners[record.SagaType]
			if !ok {
				uc.logger.Error("no orchestrator registered for saga type",
					zap.String("saga_id", record.SagaID.String()),
					zap.String("saga_type", record.SagaType),
				)
				return errors.Errorf("no orchestrator for saga type %q", record.SagaType)
			}

			result, err := runner.Resume(ctx, record.SagaID)
			if err != nil {
				uc.logger.Error("failed to resume saga",
					zap.String("saga_id", record.SagaID.String()),
					zap.String("saga_type", record.SagaType),
					zap.Error(err),
				)
				return err
			}

			uc.logger.Info("saga recovered",
				zap.String("saga_id", record.SagaID.String()),
				zap.String("saga_type", record.SagaType),
				zap.String("status", string(result.Status)),
			)
			return nil
		})
	}

	return len(records), g.Wait()
}
