package errors_test

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/turtacn/molstruct/pkg/errors"
)

func TestConstructors(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		err  *errors.AppError
		code errors.ErrorCode
		msg  string
	}{
		{errors.New(errors.CodeMoleculeNotFound, "molecule 1234 not found"), errors.ErrCodeMoleculeNotFound, "molecule 1234 not found"},
		{errors.NotFound("gone"), errors.ErrCodeNotFound, "gone"},
		{errors.InvalidParam("bad page"), errors.ErrCodeBadRequest, "bad page"},
		{errors.Internal("boom"), errors.ErrCodeInternal, "boom"},
		{errors.Conflict("dup"), errors.ErrCodeConflict, "dup"},
		{errors.Unauthorized("who"), errors.ErrCodeUnauthorized, "who"},
		{errors.Forbidden("no"), errors.ErrCodeForbidden, "no"},
	} {
		assert.Equal(t, tc.code, tc.err.Code)
		assert.Equal(t, tc.msg, tc.err.Message)
		assert.Nil(t, tc.err.Cause)
		assert.Contains(t, tc.err.StackTrace(), "errors_test.go", tc.code)
	}
}

func TestAppError_Error(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "[MOL_004] molecule not found", errors.New(errors.CodeMoleculeNotFound, "molecule not found").Error())
	assert.Equal(t, "[MOL_001] invalid SMILES: input=[]",
		errors.New(errors.ErrCodeMoleculeInvalidSMILES, "invalid SMILES").WithDetail("input=[]").Error())
	assert.Equal(t, "[OK] ", errors.New(errors.CodeOK, "").Error())
}

func TestWrap(t *testing.T) {
	t.Parallel()

	assert.Nil(t, errors.Wrap(nil, errors.CodeInternal, "ignored"))

	root := stderrors.New("dial tcp: refused")
	w := errors.Wrap(root, errors.CodeDBConnectionError, "connection failed")
	require.NotNil(t, w)
	assert.Equal(t, errors.ErrCodeDatabaseError, w.Code)
	assert.Same(t, root, stderrors.Unwrap(w))
	assert.True(t, errors.Is(w, root))

	// CodeUnknown keeps the inner classification; an explicit code wins.
	inner := errors.MalformedInput("pdb", "no atoms found")
	assert.Equal(t, errors.ErrCodeMoleculeMalformedInput, errors.Wrap(inner, errors.CodeUnknown, "context").Code)
	assert.Equal(t, errors.CodeInternal, errors.Wrap(inner, errors.CodeInternal, "context").Code)
	assert.Equal(t, errors.CodeUnknown, errors.Wrap(root, errors.CodeUnknown, "context").Code)
}

func TestWithDetailAndCause_Copy(t *testing.T) {
	t.Parallel()

	base := errors.New(errors.ErrCodeCacheError, "cache failure")
	cause := stderrors.New("eof")

	d := base.WithDetail("key=x")
	c := base.WithCause(cause)
	assert.Empty(t, base.Detail)
	assert.Nil(t, base.Cause)
	assert.Equal(t, "key=x", d.Detail)
	assert.True(t, stderrors.Is(c, cause))

	var nilErr *errors.AppError
	assert.Nil(t, nilErr.WithDetail("x"))
	assert.Nil(t, nilErr.WithCause(cause))
}

func TestChainInspection(t *testing.T) {
	t.Parallel()

	inner := errors.UnsupportedElement("Xx")
	outer := fmt.Errorf("engine primary: %w", errors.Wrap(inner, errors.CodeInternal, "parse"))

	assert.True(t, errors.IsCode(outer, errors.ErrCodeMoleculeUnsupportedElem))
	assert.True(t, errors.IsCode(outer, errors.CodeInternal))
	assert.False(t, errors.IsCode(outer, errors.CodeNotFound))
	assert.False(t, errors.IsCode(nil, errors.CodeInternal))
	assert.False(t, errors.IsCode(stderrors.New("plain"), errors.CodeInternal))

	assert.Equal(t, errors.CodeInternal, errors.GetCode(outer))
	assert.Equal(t, errors.CodeOK, errors.GetCode(nil))
	assert.Equal(t, errors.CodeUnknown, errors.GetCode(stderrors.New("plain")))

	var ae *errors.AppError
	require.True(t, errors.As(outer, &ae))
	assert.Equal(t, "parse", ae.Message)
}

func TestIsNotFound(t *testing.T) {
	t.Parallel()

	assert.True(t, errors.IsNotFound(errors.NotFound("gone")))
	assert.True(t, errors.IsNotFound(fmt.Errorf("svc: %w", errors.New(errors.CodeMoleculeNotFound, "gone"))))
	assert.True(t, errors.IsNotFound(errors.Wrap(errors.NotFound("gone"), errors.CodeInternal, "lookup")))
	assert.False(t, errors.IsNotFound(errors.Internal("boom")))
	assert.False(t, errors.IsNotFound(nil))
}

func TestParseFailures(t *testing.T) {
	t.Parallel()

	u := errors.UndecodableInput([]string{"utf-8", "utf-16"})
	assert.Equal(t, errors.ErrCodeMoleculeUndecodableInput, u.Code)
	assert.Equal(t, "tried utf-8, utf-16", u.Detail)

	supported := []string{"xyz", "pdb", "mol", "sdf"}
	f := errors.UnsupportedFormat("txt", supported)
	assert.Equal(t, errors.ErrCodeMoleculeUnsupportedFormat, f.Code)
	assert.Contains(t, f.Message, `"txt"`)
	assert.Equal(t, "supported formats: mol, pdb, sdf, xyz", f.Detail)
	assert.Equal(t, []string{"xyz", "pdb", "mol", "sdf"}, supported, "input slice must not be sorted in place")

	m := errors.MalformedInput("xyz", "line 1: atom count is not an integer")
	assert.Equal(t, "malformed xyz input", m.Message)
	assert.Equal(t, "line 1: atom count is not an integer", m.Detail)

	assert.Contains(t, errors.UnsupportedElement("Xe").Error(), `"Xe"`)
	assert.Equal(t, errors.ErrCodeMoleculeEmpty, errors.EmptyMolecule().Code)
}

func TestIsParseError(t *testing.T) {
	t.Parallel()

	for name, tc := range map[string]struct {
		err  error
		want bool
	}{
		"malformed":   {errors.MalformedInput("pdb", "x"), true},
		"element":     {errors.UnsupportedElement("Q"), true},
		"undecodable": {errors.UndecodableInput([]string{"utf-8"}), true},
		"empty":       {errors.EmptyMolecule(), true},
		"wrapped":     {fmt.Errorf("ctx: %w", errors.EmptyMolecule()), true},
		"rewrapped":   {errors.Wrap(errors.EmptyMolecule(), errors.CodeInternal, "engine"), true},
		"format":      {errors.UnsupportedFormat("txt", []string{"xyz"}), false},
		"internal":    {errors.Internal("boom"), false},
		"plain":       {stderrors.New("plain"), false},
		"nil":         {nil, false},
	} {
		assert.Equal(t, tc.want, errors.IsParseError(tc.err), name)
	}
}

//Personal.AI order the ending
