// Package loaders batches the per-task lookups made while rendering queue views.
package loaders

import (
	"context"
	"fmt"

	"github.com/graph-gophers/dataloader/v7"
	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
	"github.com/zatekoja/clearlink/backend/internal/domain/repositories"
	apperrors "github.com/zatekoja/clearlink/backend/pkg/errors"
)

type ctxKey string

const loadersKey ctxKey = "dataloaders"

// Loaders contains the request-scoped dataloaders
type Loaders struct {
	AppointmentLoader *dataloader.Loader[string, *entities.Appointment]
	PatientLoader     *dataloader.Loader[string, *entities.Patient]
	ResourceLoader    *dataloader.Loader[string, *entities.Resource]
}

// NewLoaders creates a new instance of Loaders
func NewLoaders(appointments repositories.AppointmentRepository, patients repositories.PatientRepository, resources repositories.ResourceRepository) *Loaders {
	return &Loaders{
		AppointmentLoader: dataloader.NewBatchedLoader(batch(appointments.GetByIDs, func(a *entities.Appointment) string { return a.ID }, "appointment")),
		PatientLoader:     dataloader.NewBatchedLoader(batch(patients.GetByIDs, func(p *entities.Patient) string { return p.ID }, "patient")),
		ResourceLoader:    dataloader.NewBatchedLoader(batch(resources.GetByIDs, func(r *entities.Resource) string { return r.ID }, "resource")),
	}
}

// batch adapts a GetByIDs lookup to a dataloader batch function, preserving key order
func batch[T any](fetch func(context.Context, []string) ([]T, error), id func(T) string, kind string) dataloader.BatchFunc[string, T] {
	return func(ctx context.Context, keys []string) []*dataloader.Result[T] {
		results := make([]*dataloader.Result[T], len(keys))
		items, err := fetch(ctx, keys)

		byID := make(map[string]T, len(items))
		if err == nil {
			for _, item := range items {
				byID[id(item)] = item
			}
		}

		for i, key := range keys {
			if err != nil {
				results[i] = &dataloader.Result[T]{Error: err}
			} else if item, ok := byID[key]; ok {
				results[i] = &dataloader.Result[T]{Data: item}
			} else {
				results[i] = &dataloader.Result[T]{Error: apperrors.NewNotFoundError(fmt.Sprintf("%s %s not found", kind, key))}
			}
		}
		return results
	}
}

// For returns the loaders attached to ctx, or nil
func For(ctx context.Context) *Loaders {
	l, _ := ctx.Value(loadersKey).(*Loaders)
	return l
}

// WithLoaders returns a new context with the loaders attached
func WithLoaders(ctx context.Context, loaders *Loaders) context.Context {
	return context.WithValue(ctx, loadersKey, loaders)
}
