package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return strings.TrimSpace(out.String()), err
}

func TestHashThenVerify(t *testing.T) {
	hash, err := execute(t, "--cost", "4", "s3cret")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2a$04$"))

	out, err := execute(t, "verify", hash, "s3cret")
	require.NoError(t, err)
	assert.Equal(t, "ok", out)

	_, err = execute(t, "verify", hash, "wrong")
	assert.Error(t, err)
}

func TestHashRequiresOneArgument(t *testing.T) {
	_, err := execute(t)
	assert.Error(t, err)
}
