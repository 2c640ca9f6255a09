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

package moerr

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorCodes(t *testing.T) {
	err := NewInvalidState(context.Background(), "bad %s", "stage")
	require.Equal(t, ErrInvalidState, err.ErrorCode())
	require.Equal(t, "invalid state bad stage", err.Error())

	require.True(t, IsMoErrCode(err, ErrInvalidState))
	require.False(t, IsMoErrCode(err, ErrInternal))
	require.False(t, IsMoErrCode(errors.New("plain"), ErrInternal))
	require.True(t, IsMoErrCode(nil, 0))
}

func TestConvertPanicError(t *testing.T) {
	err := ConvertPanicError(context.Background(), "boom")
	require.True(t, IsMoErrCode(err, ErrInternal))

	orig := NewOOMNoCtx()
	require.Equal(t, orig, ConvertPanicError(context.Background(), orig))
}
