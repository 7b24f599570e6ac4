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
	"fmt"

	"github.com/tomoncle/contactd/types"
)

// Status is stored as its number.
type Status int

const (
	Active Status = iota
	Inactive
)

var _ types.BaseEnum = Active

var statuses = []Status{Active, Inactive}

func (s Status) IsValid() bool {
	return s >= Active && s <= Inactive
}

func (s Status) Number() int {
	if !s.IsValid() {
		return types.IllegalValue
	}
	return int(s)
}

func (s Status) Name() string {
	switch s {
	case Active:
		return "Active"
	case Inactive:
		return "Inactive"
	default:
		return types.IllegalName
	}
}

func (s Status) String() string {
	return s.Name()
}

func (s Status) Desc() string {
	switch s {
	case Active:
		return "contact is in use"
	case Inactive:
		return "contact is kept but not in use"
	default:
		return types.IllegalDesc
	}
}

// ParseStatus accepts a member name, matched case-sensitively, or its number.
func ParseStatus(text string) (Status, error) {
	s, ok := types.ParseEnum(text, statuses)
	if !ok {
		return s, fmt.Errorf("%w: %q", ErrInvalidStatus, text)
	}
	return s, nil
}
