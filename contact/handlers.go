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

	"github.com/google/uuid"

	"github.com/tomoncle/contactd/cqrs"
	"github.com/tomoncle/contactd/repository"
	"github.com/tomoncle/contactd/types"
)

// SaveContactCommand creates or updates Contact. Result: *Model.
type SaveContactCommand struct {
	Contact *Model
}

type DeleteContactCommand struct {
	ContactID uuid.UUID
}

// GetContactQuery lists every contact. Result: []*Model.
type GetContactQuery struct{}

// GetContactPageQuery lists one page of contacts ordered by name.
// Result: *types.Pagination[Model].
type GetContactPageQuery struct {
	Page     int
	PageSize int
}

type saveContactHandler struct {
	component SaveComponent
}

func (h *saveContactHandler) Handle(ctx context.Context, cmd SaveContactCommand) (*Model, error) {
	return h.component.Save(ctx, cmd.Contact)
}

type deleteContactHandler struct {
	component DeleteComponent
}

func (h *deleteContactHandler) Handle(ctx context.Context, cmd DeleteContactCommand) error {
	return h.component.Delete(ctx, cmd.ContactID)
}

type getContactHandler struct {
	component GetComponent
}

func (h *getContactHandler) Handle(ctx context.Context, _ GetContactQuery) ([]*Model, error) {
	return h.component.GetAll(ctx)
}

type getContactPageHandler struct {
	component GetComponent
}

func (h *getContactPageHandler) Handle(ctx context.Context, q GetContactPageQuery) (*types.Pagination[Model], error) {
	return h.component.GetPage(ctx, q.Page, q.PageSize)
}

// RegisterHandlers binds the contact commands and queries. Every dispatch
// builds a new handler and component over repos.
func RegisterHandlers(reg *cqrs.Registry, repos repository.Factory) error {
	return errors.Join(
		cqrs.RegisterCommandFor(reg, func() cqrs.CommandResultHandler[SaveContactCommand, *Model] {
			return &saveContactHandler{component: NewSaveComponent(repos)}
		}),
		cqrs.RegisterCommand(reg, func() cqrs.CommandHandler[DeleteContactCommand] {
			return &deleteContactHandler{component: NewDeleteComponent(repos)}
		}),
		cqrs.RegisterQuery(reg, func() cqrs.QueryHandler[GetContactQuery, []*Model] {
			return &getContactHandler{component: NewGetComponent(repos)}
		}),
		cqrs.RegisterQuery(reg, func() cqrs.QueryHandler[GetContactPageQuery, *types.Pagination[Model]] {
			return &getContactPageHandler{component: NewGetComponent(repos)}
		}),
	)
}
