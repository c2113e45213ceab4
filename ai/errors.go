// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ai

import "errors"

var (
	// ErrProvider indicates an upstream model service failure.
	ErrProvider = errors.New("ai provider error")

	// ErrTimeout indicates a model call exceeded its deadline.
	ErrTimeout = errors.New("ai call timed out")

	// ErrMalformedResponse indicates the model's output could not be parsed
	// at all. Partially malformed output is recovered by dropping the
	// offending candidates and does not produce this error.
	ErrMalformedResponse = errors.New("malformed model response")
)
