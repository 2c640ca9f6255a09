// Copyright 2023 ColStream
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package colexec holds the contracts shared by columnar operators.
package colexec

// Work is a resumable unit of computation. Process performs a bounded
// increment and returns true once the result is available; each call
// picks up exactly where the previous one stopped, so an expensive pass
// over a batch can span several scheduler turns without replaying work.
// Result must only be called after Process has returned true.
type Work[T any] interface {
	Process() (bool, error)
	Result() T
}
