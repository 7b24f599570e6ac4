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

package types

import (
	"strconv"
	"strings"
)

const (
	IllegalValue = -1
	IllegalName  = "unknown"
	IllegalDesc  = "unknown"
)

// BaseEnum is the contract of the integer enums stored by the domain models.
type BaseEnum interface {
	IsValid() bool
	Number() int
	String() string
	Desc() string
	Name() string
}

// ParseEnum finds the member of members whose Name equals text, ignoring
// surrounding whitespace but not case, or whose Number equals text read as a
// decimal integer.
func ParseEnum[E BaseEnum](text string, members []E) (E, bool) {
	text = strings.TrimSpace(text)
	for _, m := range members {
		if m.Name() == text {
			return m, true
		}
	}
	if n, err := strconv.Atoi(text); err == nil {
		for _, m := range members {
			if m.Number() == n {
				return m, true
			}
		}
	}
	var zero E
	return zero, false
}
