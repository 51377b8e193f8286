package store

import (
	"context"

	"github.com/ethpandaops/ntview/pkg/api"
	"github.com/sirupsen/logrus"
)

// ProjectStore holds the project list. New projects are appended.
type ProjectStore struct {
	*Resource[api.Project]

	projects api.ProjectsAPI
}

// NewProjectStore creates a project store backed by projects.
func NewProjectStore(log logrus.FieldLogger, projects api.ProjectsAPI, opts ...Option) *ProjectStore {
	return &ProjectStore{
		Resource: NewResource[api.Project](log, Names{Singular: "project", Plural: "projects"}, Append, opts...),
		projects: projects,
	}
}

// FetchProjects replaces the collection with the remote list.
func (s *ProjectStore) FetchProjects(ctx context.Context) Read[[]api.Project] {
	return s.FetchAll(ctx, s.projects.List)
}

// FetchProject loads one project into the current slot.
func (s *ProjectStore) FetchProject(ctx context.Context, id int64) Read[api.Project] {
	return s.FetchOne(ctx, id, func(ctx context.Context) (api.Project, error) {
		return deref(s.projects.Get(ctx, id))
	})
}

// CreateProject creates a project and appends it to the collection.
func (s *ProjectStore) CreateProject(ctx context.Context, in *api.ProjectCreate) (api.Project, error) {
	return s.Create(ctx, func(ctx context.Context) (api.Project, error) {
		return deref(s.projects.Create(ctx, in))
	})
}

// UpdateProject applies a sparse update and replaces the entry in place.
func (s *ProjectStore) UpdateProject(ctx context.Context, id int64, in *api.ProjectUpdate) (api.Project, error) {
	return s.Update(ctx, id, func(ctx context.Context) (api.Project, error) {
		return deref(s.projects.Update(ctx, id, in))
	})
}

// DeleteProject deletes a project and removes it from the collection.
func (s *ProjectStore) DeleteProject(ctx context.Context, id int64) error {
	return s.Delete(ctx, id, func(ctx context.Context) error {
		return s.projects.Delete(ctx, id)
	})
}

// deref adapts a pointer-returning client call to a value-returning one.
func deref[T any](v *T, err error) (T, error) {
	if err != nil {
		var zero T

		return zero, err
	}

	return *v, nil
}
