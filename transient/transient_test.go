// Copyright 2024 The netq Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct {
	timeout bool
}

func (e *timeoutErr) Error() string {
	return fmt.Sprintf("timeoutErr[%t]", e.timeout)
}

func (e *timeoutErr) Timeout() bool {
	return e.timeout
}

func TestCategorize(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected Category
	}{
		{"nil", nil, Not},
		{"deadline exceeded", context.DeadlineExceeded, Timeout},
		{"wrapped deadline", fmt.Errorf("doing thing: %w", context.DeadlineExceeded), Timeout},
		{"timeout interface true", &timeoutErr{timeout: true}, Timeout},
		{"timeout interface false", &timeoutErr{timeout: false}, Unknown},
		{"url wrapped timeout", &url.Error{Op: "Get", URL: "http://x", Err: &timeoutErr{timeout: true}}, Timeout},
		{"conn refused", syscall.ECONNREFUSED, NoConnection},
		{"conn reset", syscall.ECONNRESET, NoConnection},
		{"host unreachable", syscall.EHOSTUNREACH, NoConnection},
		{"net unreachable", syscall.ENETUNREACH, NoConnection},
		{"syscall wrapped", &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, NoConnection},
		{"dns error", &net.DNSError{Err: "no such host", Name: "nope.invalid", IsNotFound: true}, UnknownHost},
		{"dns error wrapped", &url.Error{Op: "Get", URL: "http://nope.invalid", Err: &net.OpError{Op: "dial", Err: &net.DNSError{Err: "no such host"}}}, UnknownHost},
		{"unsupported scheme", errors.New(`Get "gopher://x": unsupported protocol scheme "gopher"`), InvalidURL},
		{"missing scheme", errors.New(`parse ":nope": missing protocol scheme`), InvalidURL},
		{"plain error", errors.New("something else entirely"), Unknown},
		{"cancelled context", context.Canceled, Unknown},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert.Equal(t, testCase.expected, Categorize(testCase.err))
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(Not))
	assert.True(t, Retryable(Timeout))
	assert.True(t, Retryable(NoConnection))
	assert.False(t, Retryable(UnknownHost))
	assert.False(t, Retryable(InvalidURL))
	assert.True(t, Retryable(Unknown))
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "Not", Not.String())
	assert.Equal(t, "Timeout", Timeout.String())
	assert.Equal(t, "NoConnection", NoConnection.String())
	assert.Equal(t, "UnknownHost", UnknownHost.String())
	assert.Equal(t, "InvalidURL", InvalidURL.String())
	assert.Equal(t, "Unknown", Unknown.String())
	assert.Equal(t, "Invalid", Category(100).String())
}

func TestNewError(t *testing.T) {
	t.Run("nil cause", func(t *testing.T) {
		assert.Nil(t, NewError(nil))
	})
	t.Run("classifies cause", func(t *testing.T) {
		err := NewError(syscall.ECONNRESET)
		var te *Error
		require.ErrorAs(t, err, &te)
		assert.Equal(t, NoConnection, te.Category)
		assert.ErrorIs(t, err, syscall.ECONNRESET)
	})
	t.Run("idempotent", func(t *testing.T) {
		inner := NewError(context.DeadlineExceeded)
		outer := NewError(inner)
		assert.Same(t, inner, outer)
		wrapped := NewError(fmt.Errorf("attempt 3: %w", inner))
		var te *Error
		require.ErrorAs(t, wrapped, &te)
		assert.Equal(t, Timeout, te.Category)
	})
	t.Run("timeout method", func(t *testing.T) {
		err := NewError(context.DeadlineExceeded)
		var te *Error
		require.ErrorAs(t, err, &te)
		assert.True(t, te.Timeout())
		err = NewError(errors.New("x"))
		require.ErrorAs(t, err, &te)
		assert.False(t, te.Timeout())
	})
}
