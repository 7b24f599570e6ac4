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

package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/google/uuid"

	"github.com/tomoncle/contactd/contact"
	"github.com/tomoncle/contactd/cqrs"
	"github.com/tomoncle/contactd/types"
)

// Contacts serves /contact by dispatching contact commands and queries.
type Contacts struct {
	Dispatcher   *cqrs.Dispatcher
	ErrorHandler func(context.Context, error)
}

func (h *Contacts) Register(api huma.API) {
	huma.Get(api, "/contact",
		handlerWithErrorHandler(h.list, h.ErrorHandler),
		opErrors(http.StatusInternalServerError),
	)
	huma.Get(api, "/contact/page",
		handlerWithErrorHandler(h.page, h.ErrorHandler),
		opErrors(http.StatusInternalServerError),
	)
	huma.Post(api, "/contact",
		handlerWithErrorHandler(h.post, h.ErrorHandler),
		opStatus(http.StatusOK),
		opErrors(http.StatusBadRequest, http.StatusInternalServerError),
	)
	huma.Put(api, "/contact/{id}",
		handlerWithErrorHandler(h.put, h.ErrorHandler),
		opErrors(http.StatusBadRequest, http.StatusInternalServerError),
	)
	huma.Delete(api, "/contact/{id}",
		handlerWithErrorHandler(h.del, h.ErrorHandler),
		opStatus(http.StatusOK),
		opErrors(http.StatusBadRequest, http.StatusInternalServerError),
	)
}

type ContactsListOutput struct {
	Body []*contact.Model
}

func (h *Contacts) list(ctx context.Context, _ *struct{}) (*ContactsListOutput, error) {
	models, err := cqrs.Ask[contact.GetContactQuery, []*contact.Model](ctx, h.Dispatcher, contact.GetContactQuery{})
	if err != nil {
		return nil, err
	}
	return &ContactsListOutput{Body: models}, nil
}

type ContactsPageOutput struct {
	Body *types.Pagination[contact.Model]
}

func (h *Contacts) page(ctx context.Context, input *struct {
	Page     int `query:"page" default:"1" minimum:"1" doc:"Page number, starting at 1"`
	PageSize int `query:"pageSize" default:"10" minimum:"1" maximum:"1000" doc:"Contacts per page"`
}) (*ContactsPageOutput, error) {
	q := contact.GetContactPageQuery{Page: input.Page, PageSize: input.PageSize}
	p, err := cqrs.Ask[contact.GetContactPageQuery, *types.Pagination[contact.Model]](ctx, h.Dispatcher, q)
	if err != nil {
		return nil, err
	}
	return &ContactsPageOutput{Body: p}, nil
}

type ContactOutput struct {
	Body *contact.Model
}

func (h *Contacts) save(ctx context.Context, m *contact.Model) (*ContactOutput, error) {
	saved, err := cqrs.SendFor[contact.SaveContactCommand, *contact.Model](ctx, h.Dispatcher, contact.SaveContactCommand{Contact: m})
	if err != nil {
		return nil, err
	}
	return &ContactOutput{Body: saved}, nil
}

func (h *Contacts) post(ctx context.Context, input *struct {
	Body contact.Model
}) (*ContactOutput, error) {
	return h.save(ctx, &input.Body)
}

func (h *Contacts) put(ctx context.Context, input *struct {
	ID   string `path:"id" doc:"ID of the contact to update"`
	Body contact.Model
}) (*ContactOutput, error) {
	id, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid contact id", err)
	}
	bodyID, err := uuid.Parse(input.Body.ContactID)
	if err != nil || bodyID != id {
		return nil, huma.Error400BadRequest("contactId in model must match id in route")
	}
	return h.save(ctx, &input.Body)
}

func (h *Contacts) del(ctx context.Context, input *struct {
	ID string `path:"id" doc:"ID of the contact to delete"`
}) (*struct{}, error) {
	id, err := uuid.Parse(input.ID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid contact id", err)
	}
	return nil, cqrs.Send(ctx, h.Dispatcher, contact.DeleteContactCommand{ContactID: id})
}
