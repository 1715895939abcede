package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsCodeThroughWrapping(t *testing.T) {
	base := NotFound("machine")
	wrapped := fmt.Errorf("mint token: %w", base)

	assert.True(t, IsCode(wrapped, CodeNotFound))
	assert.False(t, IsCode(wrapped, CodeInvalid))
	assert.Equal(t, CodeNotFound, CodeOf(wrapped))
	assert.Equal(t, CodeUnknown, CodeOf(stderrors.New("plain")))
}

func TestValidationCarriesField(t *testing.T) {
	err := Validation("environment", "environment must be one of production staging public-share")
	require.Equal(t, CodeInvalid, err.Code)
	assert.Equal(t, "environment", err.Meta["field"])
}

func TestHTTPStatus(t *testing.T) {
	cases := map[error]int{
		Unauthenticated():                          http.StatusUnauthorized,
		NotFound("run"):                            http.StatusNotFound,
		Validation("plan", "bad plan"):             http.StatusBadRequest,
		Upstream(stderrors.New("boom"), "stripe"):  http.StatusBadGateway,
		New(CodeInternal, "db"):                    http.StatusInternalServerError,
		stderrors.New("unclassified"):              http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, HTTPStatus(err), err.Error())
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Upstream(cause, "stripe checkout failed")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "upstream_error")
}
