package validate

import (
	"context"
	"errors"
	"fmt"
)

// CleanupModels deletes every model configuration without content and
// returns the names of the models it deleted, or would delete on a dry run.
// A failed delete does not stop the others.
func (v *Validator) CleanupModels(ctx context.Context, dryRun bool) ([]string, error) {
	models, err := v.p.ListLookMLModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}

	var deleted []string
	var errs []error
	for _, m := range models {
		if m.HasContent {
			continue
		}
		if dryRun {
			v.log.Info().Str("model", m.Name).Msg("would delete model")
			deleted = append(deleted, m.Name)
			continue
		}
		v.log.Info().Str("model", m.Name).Msg("deleting model")
		if err := v.p.DeleteLookMLModel(ctx, m.Name); err != nil {
			v.log.Warn().Err(err).Str("model", m.Name).Msg("cannot delete model")
			errs = append(errs, fmt.Errorf("delete model %s: %w", m.Name, err))
			continue
		}
		deleted = append(deleted, m.Name)
	}
	return deleted, errors.Join(errs...)
}
