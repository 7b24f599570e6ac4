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
	"strings"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Contact struct {
	bun.BaseModel `bun:"table:contacts,alias:c"`

	ID          uuid.UUID `bun:"id,pk,type:varchar(36)"`
	FirstName   string    `bun:"first_name,notnull"`
	LastName    string    `bun:"last_name,notnull"`
	Email       string    `bun:"email,notnull"`
	PhoneNumber int64     `bun:"phone_number,notnull"`
	Status      Status    `bun:"status,notnull,default:0"`
}

// GenerateKey assigns a random id to a contact that has none.
func (c *Contact) GenerateKey() {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
}

// Model is the external representation of a contact.
type Model struct {
	ContactID   string `json:"contactId,omitempty" doc:"Contact id, empty when creating"`
	FirstName   string `json:"firstName" example:"Jane"`
	LastName    string `json:"lastName" example:"Doe"`
	Email       string `json:"email" example:"jane@example.com"`
	PhoneNumber int64  `json:"phoneNumber" example:"5551234"`
	Status      string `json:"status" example:"Active" doc:"Active or Inactive"`
}

func ToModel(c *Contact) *Model {
	m := &Model{
		FirstName:   c.FirstName,
		LastName:    c.LastName,
		Email:       c.Email,
		PhoneNumber: c.PhoneNumber,
		Status:      c.Status.Name(),
	}
	if c.ID != uuid.Nil {
		m.ContactID = c.ID.String()
	}
	return m
}

func ToModels(contacts []*Contact) []*Model {
	out := make([]*Model, 0, len(contacts))
	for _, c := range contacts {
		out = append(out, ToModel(c))
	}
	return out
}

// ToEntity maps m to a new Contact. The id of m is not copied. A blank status
// maps to Active.
func ToEntity(m *Model) (*Contact, error) {
	status := Active
	if strings.TrimSpace(m.Status) != "" {
		s, err := ParseStatus(m.Status)
		if err != nil {
			return nil, err
		}
		status = s
	}
	return &Contact{
		FirstName:   m.FirstName,
		LastName:    m.LastName,
		Email:       m.Email,
		PhoneNumber: m.PhoneNumber,
		Status:      status,
	}, nil
}
