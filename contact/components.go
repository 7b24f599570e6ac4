/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package contact

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/tomoncle/contactd/repository"
	"github.com/tomoncle/contactd/types"
	"github.com/tomoncle/contactd/utils"
)

var log = utils.NewLogger("CONTACT")

// SaveComponent creates a contact when the model has no id and updates the
// stored one otherwise.
type SaveComponent interface {
	Save(ctx context.Context, m *Model) (*Model, error)
}

type DeleteComponent interface {
	Delete(ctx context.Context, id uuid.UUID) error
}

type GetComponent interface {
	GetAll(ctx context.Context) ([]*Model, error)
	GetPage(ctx context.Context, page, pageSize int) (*types.Pagination[Model], error)
}

func openRepository(repos repository.Factory) (Repository, error) {
	repo, err := repository.Create[Repository](repos)
	if err != nil {
		return nil, fmt.Errorf("open contact repository: %w", err)
	}
	return repo, nil
}

// closeRepository closes repo and reports its error through errp unless an
// earlier error is already set there.
func closeRepository(repo Repository, errp *error) {
	cerr := repo.Close()
	if cerr == nil {
		return
	}
	if *errp == nil {
		*errp = cerr
		return
	}
	log.WithError(cerr).Debug("close after failed operation")
}

type saveComponent struct {
	repos repository.Factory
}

func NewSaveComponent(repos repository.Factory) SaveComponent {
	return &saveComponent{repos: repos}
}

func (c *saveComponent) Save(ctx context.Context, m *Model) (*Model, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: no contact given", ErrRecordNotFound)
	}
	if m.ContactID == "" {
		return c.create(ctx, m)
	}
	return c.update(ctx, m)
}

func (c *saveComponent) create(ctx context.Context, m *Model) (saved *Model, err error) {
	entity, err := ToEntity(m)
	if err != nil {
		return nil, err
	}
	repo, err := openRepository(c.repos)
	if err != nil {
		return nil, err
	}
	defer closeRepository(repo, &err)

	entity = repo.Add(entity)
	if _, err = repo.SaveChanges(ctx); err != nil {
		return nil, fmt.Errorf("create contact: %w", err)
	}
	log.WithField("contact_id", entity.ID).Info("contact created")
	return ToModel(entity), nil
}

// update returns m itself rather than the stored row.
func (c *saveComponent) update(ctx context.Context, m *Model) (_ *Model, err error) {
	id, perr := uuid.Parse(m.ContactID)
	if perr != nil {
		return nil, fmt.Errorf("%w: malformed id %q", ErrRecordNotFound, m.ContactID)
	}
	repo, err := openRepository(c.repos)
	if err != nil {
		return nil, err
	}
	defer closeRepository(repo, &err)

	existing, err := repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("load contact %s: %w", id, err)
	}
	status, err := ParseStatus(m.Status)
	if err != nil {
		return nil, err
	}

	existing.FirstName = m.FirstName
	existing.LastName = m.LastName
	existing.Email = m.Email
	existing.PhoneNumber = m.PhoneNumber
	existing.Status = status
	repo.Update(existing)
	if _, err = repo.SaveChanges(ctx); err != nil {
		return nil, fmt.Errorf("update contact %s: %w", id, err)
	}
	log.WithField("contact_id", id).Info("contact updated")
	return m, nil
}

type deleteComponent struct {
	repos repository.Factory
}

func NewDeleteComponent(repos repository.Factory) DeleteComponent {
	return &deleteComponent{repos: repos}
}

func (c *deleteComponent) Delete(ctx context.Context, id uuid.UUID) (err error) {
	repo, err := openRepository(c.repos)
	if err != nil {
		return err
	}
	defer closeRepository(repo, &err)

	existing, err := repo.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrInvalidID, id)
	}
	if err != nil {
		return fmt.Errorf("load contact %s: %w", id, err)
	}
	repo.Delete(existing)
	if _, err = repo.SaveChanges(ctx); err != nil {
		return fmt.Errorf("delete contact %s: %w", id, err)
	}
	log.WithField("contact_id", id).Info("contact deleted")
	return nil
}

type getComponent struct {
	repos repository.Factory
}

func NewGetComponent(repos repository.Factory) GetComponent {
	return &getComponent{repos: repos}
}

func (c *getComponent) GetAll(ctx context.Context) (_ []*Model, err error) {
	repo, err := openRepository(c.repos)
	if err != nil {
		return nil, err
	}
	defer closeRepository(repo, &err)

	contacts, err := repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	return ToModels(contacts), nil
}

func (c *getComponent) GetPage(ctx context.Context, page, pageSize int) (_ *types.Pagination[Model], err error) {
	repo, err := openRepository(c.repos)
	if err != nil {
		return nil, err
	}
	defer closeRepository(repo, &err)

	req := types.NewPageRequest(page, pageSize, nil, "last_name ASC", "first_name ASC", "id ASC")
	p, err := repo.Page(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("page contacts: %w", err)
	}
	return types.MapPagination(p, ToModel), nil
}
