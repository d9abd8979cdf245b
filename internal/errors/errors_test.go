package errors_test

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AmanSingh336699/ai-interview-battle/internal/errors"
)

func TestHTTPStatusCode(t *testing.T) {
	tests := map[string]struct {
		err  *errors.Error
		want int
	}{
		"invalid argument maps to 400":    {errors.New(errors.CodeInvalidArgument), http.StatusBadRequest},
		"not found maps to 404":           {errors.New(errors.CodeNotFound), http.StatusNotFound},
		"already exists maps to 409":      {errors.New(errors.CodeAlreadyExists), http.StatusConflict},
		"failed precondition maps to 400": {errors.New(errors.CodeFailedPrecondition), http.StatusBadRequest},
		"aborted maps to 409":             {errors.New(errors.CodeAborted), http.StatusConflict},
		"unavailable maps to 503":         {errors.New(errors.CodeUnavailable), http.StatusServiceUnavailable},
		"internal maps to 500":            {errors.New(errors.CodeInternal), http.StatusInternalServerError},
	}

	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.HTTPStatusCode())
		})
	}
}

func TestConvert(t *testing.T) {
	t.Run("plain error becomes internal", func(t *testing.T) {
		e := errors.Convert(stderrors.New("boom"))
		assert.Equal(t, errors.CodeInternal, e.Code)
	})

	t.Run("wrapped Error keeps its code", func(t *testing.T) {
		orig := errors.New(errors.CodeAlreadyExists, errors.WithMessagef("already answered"))
		e := errors.Convert(stderrors.Join(orig, stderrors.New("context")))
		assert.Equal(t, errors.CodeAlreadyExists, e.Code)
		assert.Equal(t, "already answered", e.Message)
	})
}

func TestIsCode(t *testing.T) {
	err := errors.New(errors.CodeNotFound, errors.WithMessagef("battle not found"))
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
	assert.False(t, errors.IsCode(err, errors.CodeAlreadyExists))
	assert.False(t, errors.IsCode(stderrors.New("plain"), errors.CodeNotFound))
}
