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
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/tomoncle/contactd/cqrs"
	"github.com/tomoncle/contactd/repository"
	"github.com/tomoncle/contactd/types"
)

func newTestFactory(t *testing.T) (repository.Factory, *bun.DB) {
	t.Helper()
	sqldb, err := sql.Open(sqliteshim.ShimName, filepath.Join(t.TempDir(), "contacts.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	db := bun.NewDB(sqldb, sqlitedialect.New())
	t.Cleanup(func() { _ = db.Close() })
	if _, err := db.NewCreateTable().Model((*Contact)(nil)).Exec(context.Background()); err != nil {
		t.Fatalf("create table: %v", err)
	}
	reg := repository.NewRegistry()
	if err := RegisterRepositories(reg); err != nil {
		t.Fatalf("RegisterRepositories: %v", err)
	}
	return repository.NewFactory(db, reg), db
}

func jane() *Model {
	return &Model{FirstName: "Jane", LastName: "Doe", Email: "j@x.com", PhoneNumber: 5551234, Status: "Active"}
}

func mustCreate(t *testing.T, repos repository.Factory, m *Model) *Model {
	t.Helper()
	saved, err := NewSaveComponent(repos).Save(context.Background(), m)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	return saved
}

func listAll(t *testing.T, repos repository.Factory) []*Model {
	t.Helper()
	all, err := NewGetComponent(repos).GetAll(context.Background())
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	return all
}

func TestParseStatus(t *testing.T) {
	cases := []struct {
		in      string
		want    Status
		wantErr bool
	}{
		{in: "Active", want: Active},
		{in: " Inactive ", want: Inactive},
		{in: "1", want: Inactive},
		{in: "0", want: Active},
		{in: "active", wantErr: true},
		{in: "2", wantErr: true},
		{in: "", wantErr: true},
		{in: "Archived", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseStatus(tc.in)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidStatus) {
				t.Errorf("ParseStatus(%q) err = %v, want ErrInvalidStatus", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseStatus(%q) = %v, %v; want %v", tc.in, got, err, tc.want)
		}
	}
}

func TestIsDomainError(t *testing.T) {
	if !IsDomainError(ErrRecordNotFound) || !IsDomainError(ErrInvalidID) {
		t.Fatalf("not-found errors must be domain errors")
	}
	if _, err := ParseStatus("Archived"); IsDomainError(err) {
		t.Fatalf("status parse error %v classified as a domain error", err)
	}
}

func TestStatusEnum(t *testing.T) {
	if Inactive.Number() != 1 || Inactive.String() != "Inactive" || !Inactive.IsValid() {
		t.Fatalf("Inactive = %d %s %v", Inactive.Number(), Inactive, Inactive.IsValid())
	}
	bad := Status(7)
	if bad.IsValid() || bad.Number() != types.IllegalValue || bad.Name() != types.IllegalName || bad.Desc() != types.IllegalDesc {
		t.Fatalf("out of range status not reported as illegal")
	}
}

func TestModelMapping(t *testing.T) {
	e, err := ToEntity(&Model{ContactID: uuid.NewString(), FirstName: "A", Status: ""})
	if err != nil {
		t.Fatalf("ToEntity: %v", err)
	}
	if e.ID != uuid.Nil || e.Status != Active {
		t.Fatalf("entity = %+v", e)
	}
	if _, err := ToEntity(&Model{Status: "Gone"}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("ToEntity bad status = %v", err)
	}

	id := uuid.New()
	m := ToModel(&Contact{ID: id, FirstName: "A", LastName: "B", Email: "e", PhoneNumber: 9, Status: Inactive})
	want := &Model{ContactID: id.String(), FirstName: "A", LastName: "B", Email: "e", PhoneNumber: 9, Status: "Inactive"}
	if !reflect.DeepEqual(m, want) {
		t.Fatalf("ToModel = %+v, want %+v", m, want)
	}
	if ToModel(&Contact{}).ContactID != "" {
		t.Fatalf("nil id should map to an empty contactId")
	}
	if got := ToModels(nil); got == nil || len(got) != 0 {
		t.Fatalf("ToModels(nil) = %#v", got)
	}
}

func TestCreateThenGetAll(t *testing.T) {
	repos, db := newTestFactory(t)
	saved := mustCreate(t, repos, jane())

	if _, err := uuid.Parse(saved.ContactID); err != nil {
		t.Fatalf("created contact has no usable id: %q", saved.ContactID)
	}
	want := jane()
	want.ContactID = saved.ContactID
	if !reflect.DeepEqual(saved, want) {
		t.Fatalf("saved = %+v, want %+v", saved, want)
	}

	all := listAll(t, repos)
	if len(all) != 1 || !reflect.DeepEqual(all[0], want) {
		t.Fatalf("GetAll = %+v", all)
	}
	if inUse := db.Stats().InUse; inUse != 0 {
		t.Fatalf("connections still in use: %d", inUse)
	}
}

func TestUpdateMissingContact(t *testing.T) {
	repos, _ := newTestFactory(t)
	save := NewSaveComponent(repos)

	m := jane()
	m.ContactID = uuid.NewString()
	if _, err := save.Save(context.Background(), m); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("unknown id: err = %v", err)
	}
	m.ContactID = "not-a-uuid"
	if _, err := save.Save(context.Background(), m); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("malformed id: err = %v", err)
	}
	if len(listAll(t, repos)) != 0 {
		t.Fatalf("failed update created a row")
	}
}

func TestUpdateWithInvalidStatusLeavesRow(t *testing.T) {
	repos, _ := newTestFactory(t)
	saved := mustCreate(t, repos, jane())

	m := *saved
	m.FirstName = "Changed"
	m.Status = "Retired"
	if _, err := NewSaveComponent(repos).Save(context.Background(), &m); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("err = %v, want ErrInvalidStatus", err)
	}
	all := listAll(t, repos)
	if len(all) != 1 || !reflect.DeepEqual(all[0], saved) {
		t.Fatalf("row changed: %+v", all)
	}
}

func TestUpdateReturnsInput(t *testing.T) {
	repos, _ := newTestFactory(t)
	saved := mustCreate(t, repos, jane())

	m := &Model{
		ContactID:   saved.ContactID,
		FirstName:   "Janet",
		LastName:    "Doe",
		Email:       "janet@x.com",
		PhoneNumber: 5559999,
		Status:      "1",
	}
	got, err := NewSaveComponent(repos).Save(context.Background(), m)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got != m {
		t.Fatalf("update should return the input model")
	}

	all := listAll(t, repos)
	want := &Model{ContactID: saved.ContactID, FirstName: "Janet", LastName: "Doe", Email: "janet@x.com", PhoneNumber: 5559999, Status: "Inactive"}
	if len(all) != 1 || !reflect.DeepEqual(all[0], want) {
		t.Fatalf("GetAll = %+v, want %+v", all, want)
	}
}

func TestDeleteUnknownID(t *testing.T) {
	repos, _ := newTestFactory(t)
	mustCreate(t, repos, jane())
	before := listAll(t, repos)

	err := NewDeleteComponent(repos).Delete(context.Background(), uuid.New())
	if !errors.Is(err, ErrInvalidID) {
		t.Fatalf("err = %v, want ErrInvalidID", err)
	}
	if after := listAll(t, repos); !reflect.DeepEqual(before, after) {
		t.Fatalf("GetAll changed: %+v -> %+v", before, after)
	}
}

func TestDeleteRemovesRow(t *testing.T) {
	repos, _ := newTestFactory(t)
	a := mustCreate(t, repos, jane())
	b := mustCreate(t, repos, &Model{FirstName: "John", LastName: "Roe", Status: "Inactive"})

	if err := NewDeleteComponent(repos).Delete(context.Background(), uuid.MustParse(a.ContactID)); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	all := listAll(t, repos)
	if len(all) != 1 || all[0].ContactID != b.ContactID {
		t.Fatalf("GetAll = %+v", all)
	}
}

func TestGetPageOrdersByName(t *testing.T) {
	repos, _ := newTestFactory(t)
	for _, name := range [][2]string{{"Zoe", "Adams"}, {"Amy", "Brown"}, {"Bob", "Adams"}} {
		mustCreate(t, repos, &Model{FirstName: name[0], LastName: name[1]})
	}

	page, err := NewGetComponent(repos).GetPage(context.Background(), 1, 2)
	if err != nil {
		t.Fatalf("GetPage: %v", err)
	}
	if page.Total != 3 || page.TotalPages != 2 || len(page.Items) != 2 {
		t.Fatalf("page = %+v", page)
	}
	if page.Items[0].FirstName != "Bob" || page.Items[1].FirstName != "Zoe" {
		t.Fatalf("order = %s, %s", page.Items[0].FirstName, page.Items[1].FirstName)
	}

	last, err := NewGetComponent(repos).GetPage(context.Background(), 2, 2)
	if err != nil || len(last.Items) != 1 || last.Items[0].FirstName != "Amy" {
		t.Fatalf("last page = %+v, %v", last, err)
	}
}

type failingFactory struct{}

func (failingFactory) Resolve(reflect.Type) (any, error) {
	return nil, repository.ErrNotRegistered
}

func TestComponentsReportFactoryErrors(t *testing.T) {
	ctx := context.Background()
	if _, err := NewSaveComponent(failingFactory{}).Save(ctx, jane()); !errors.Is(err, repository.ErrNotRegistered) {
		t.Fatalf("Save = %v", err)
	}
	if err := NewDeleteComponent(failingFactory{}).Delete(ctx, uuid.New()); !errors.Is(err, repository.ErrNotRegistered) {
		t.Fatalf("Delete = %v", err)
	}
	if _, err := NewGetComponent(failingFactory{}).GetAll(ctx); !errors.Is(err, repository.ErrNotRegistered) {
		t.Fatalf("GetAll = %v", err)
	}
}

func TestHandlersThroughDispatcher(t *testing.T) {
	repos, _ := newTestFactory(t)
	reg := cqrs.NewRegistry()
	if err := RegisterHandlers(reg, repos); err != nil {
		t.Fatalf("RegisterHandlers: %v", err)
	}
	d := cqrs.NewDispatcher(reg)
	ctx := context.Background()

	saved, err := cqrs.SendFor[SaveContactCommand, *Model](ctx, d, SaveContactCommand{Contact: jane()})
	if err != nil || saved.ContactID == "" {
		t.Fatalf("save = %+v, %v", saved, err)
	}
	all, err := cqrs.Ask[GetContactQuery, []*Model](ctx, d, GetContactQuery{})
	if err != nil || len(all) != 1 {
		t.Fatalf("get = %+v, %v", all, err)
	}
	page, err := cqrs.Ask[GetContactPageQuery, *types.Pagination[Model]](ctx, d, GetContactPageQuery{Page: 1, PageSize: 10})
	if err != nil || page.Total != 1 {
		t.Fatalf("page = %+v, %v", page, err)
	}
	if err := cqrs.Send(ctx, d, DeleteContactCommand{ContactID: uuid.MustParse(saved.ContactID)}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := cqrs.Send(ctx, d, DeleteContactCommand{ContactID: uuid.MustParse(saved.ContactID)}); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("second delete = %v", err)
	}
	if _, err := cqrs.SendFor[SaveContactCommand, *Model](ctx, d, SaveContactCommand{}); !errors.Is(err, ErrRecordNotFound) {
		t.Fatalf("save without contact = %v", err)
	}
}
