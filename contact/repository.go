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
	"github.com/uptrace/bun"

	"github.com/tomoncle/contactd/database"
	"github.com/tomoncle/contactd/repository"
)

// Repository is the unit of work over contacts.
type Repository interface {
	repository.UnitOfWork[Contact]
}

func NewRepository(db *bun.DB) Repository {
	return repository.NewUnitOfWork[Contact](db)
}

// RegisterModels adds the contact tables to the models created by the
// initial migration.
func RegisterModels() {
	database.RegisterModel((*Contact)(nil), 10)
}

func RegisterRepositories(reg *repository.Registry) error {
	return repository.Register(reg, NewRepository)
}
