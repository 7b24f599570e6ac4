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

import "errors"

var (
	// ErrRecordNotFound is returned when the contact to update does not exist.
	ErrRecordNotFound = errors.New("invalid contact details")
	// ErrInvalidID is returned when the contact to delete does not exist.
	ErrInvalidID = errors.New("invalid contact id")
	// ErrInvalidStatus is returned for status text that names no Status. It is
	// not a domain error and reaches HTTP callers as a 500.
	ErrInvalidStatus = errors.New("invalid contact status")
)

// IsDomainError reports whether err is one of the not-found errors callers
// get as a 400.
func IsDomainError(err error) bool {
	return errors.Is(err, ErrRecordNotFound) ||
		errors.Is(err, ErrInvalidID)
}
