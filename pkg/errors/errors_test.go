package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCarriesCodeAndSeverity(t *testing.T) {
	err := New(ErrCodeConfigNotFound, "missing config")

	assert.Equal(t, ErrCodeConfigNotFound, err.Code)
	assert.Equal(t, SeverityError, err.Severity)
	assert.Contains(t, err.Error(), "ADME2001")
	assert.Contains(t, err.Error(), "missing config")
}

func TestWrapPreservesCauseAndContext(t *testing.T) {
	cause := New(ErrCodeEmptyUpstream, "nothing upstream").WithContext("requested", 3)

	err := Wrap(cause, ErrCodeFetchFailed, "metadata fetch failed")
	require.NotNil(t, err)
	assert.Equal(t, ErrCodeFetchFailed, err.Code)
	assert.Equal(t, 3, err.Context["requested"])
	assert.True(t, stderrors.Is(err, cause))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrCodeInternal, "ignored"))
}

func TestHasCodeWalksChain(t *testing.T) {
	inner := New(ErrCodeEmptyUpstream, "nothing upstream")
	outer := Wrap(inner, ErrCodeFetchFailed, "fetch failed")

	assert.True(t, HasCode(outer, ErrCodeFetchFailed))
	assert.True(t, HasCode(outer, ErrCodeEmptyUpstream))
	assert.False(t, HasCode(outer, ErrCodeSQLExecution))
	assert.False(t, HasCode(stderrors.New("plain"), ErrCodeInternal))
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeAPIStatus, GetErrorCode(New(ErrCodeAPIStatus, "api")))
	assert.Equal(t, ErrCodeInternal, GetErrorCode(stderrors.New("plain")))
}

func TestRecoverable(t *testing.T) {
	err := New(ErrCodeConnectionFailed, "down").AsRecoverable()

	assert.True(t, IsRecoverable(err))
	assert.False(t, IsRecoverable(New(ErrCodeConnectionFailed, "down")))
	assert.False(t, IsRecoverable(stderrors.New("plain")))
}

func TestSQLErrorTruncatesQuery(t *testing.T) {
	long := make([]byte, 500)
	for i := range long {
		long[i] = 'x'
	}

	err := SQLError("failed", string(long), stderrors.New("boom"))
	q := err.Context["query"].(string)
	assert.LessOrEqual(t, len(q), 203)
	assert.Contains(t, q, "...")
}
