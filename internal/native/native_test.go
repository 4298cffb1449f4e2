// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package native_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/gpureset/internal/native"
	"github.com/jeranaias/gpureset/internal/native/nativetest"
)

func TestOpenFirst(t *testing.T) {
	second := &nativetest.Library{LibName: "b"}
	loader := &nativetest.Loader{Libraries: map[string]*nativetest.Library{
		"b": second,
		"c": {LibName: "c"},
	}}

	lib, err := native.OpenFirst(loader, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, "b", lib.Name())
	assert.Equal(t, []string{"a", "b"}, loader.Opened())
}

func TestOpenFirst_AllFail(t *testing.T) {
	loader := &nativetest.Loader{}
	_, err := native.OpenFirst(loader, []string{"x", "y"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "x")
	assert.Contains(t, err.Error(), "y")

	_, err = native.OpenFirst(loader, nil)
	assert.ErrorIs(t, err, native.ErrNoCandidates)
}

func TestRequireSymbols(t *testing.T) {
	lib := &nativetest.Library{LibName: "libcuda.so.1", Symbols: map[string]nativetest.Func{
		"cuInit": nativetest.Returns(0),
	}}
	assert.NoError(t, native.RequireSymbols(lib, "cuInit"))

	err := native.RequireSymbols(lib, "cuInit", "cuCtxCreate_v2")
	assert.ErrorIs(t, err, native.ErrSymbolNotFound)
	assert.Contains(t, err.Error(), "cuCtxCreate_v2")
}

func TestInt32(t *testing.T) {
	assert.Equal(t, int32(0), native.Int32(0))
	assert.Equal(t, int32(-1), native.Int32(uintptr(0xFFFFFFFF)))
	// Upper register bits are ignored.
	wide := uint64(1)<<32 | 100
	assert.Equal(t, int32(100), native.Int32(uintptr(wide)))
}

func TestSystemLoader_MissingLibrary(t *testing.T) {
	_, err := native.System.Open("libdefinitely-not-a-real-library-gpureset.so")
	assert.Error(t, err)
}
