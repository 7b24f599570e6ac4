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
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/tomoncle/contactd/contact"
)

type handler[I, O any] = func(context.Context, *I) (*O, error)

// handlerWithErrorHandler passes any error of h to do, then replaces it with
// the status error the client gets.
func handlerWithErrorHandler[I, O any](h handler[I, O], do func(context.Context, error)) handler[I, O] {
	return func(ctx context.Context, i *I) (*O, error) {
		o, err := h(ctx, i)
		if err != nil {
			if do != nil {
				do(ctx, err)
			}
			return nil, statusError(err)
		}
		return o, nil
	}
}

// statusError maps domain errors to 400 and hides everything else behind a
// bare 500.
func statusError(err error) error {
	var se huma.StatusError
	switch {
	case errors.As(err, &se):
		return se
	case contact.IsDomainError(err):
		return huma.Error400BadRequest(err.Error())
	default:
		return huma.Error500InternalServerError("internal server error")
	}
}

func opErrors(codes ...int) func(*huma.Operation) {
	return func(o *huma.Operation) { o.Errors = codes }
}

func opStatus(code int) func(*huma.Operation) {
	return func(o *huma.Operation) { o.DefaultStatus = code }
}
