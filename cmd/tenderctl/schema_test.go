package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writePayload(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "requirements.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestSchemaValidate_OK(t *testing.T) {
	path := writePayload(t, `[
		{"stage":"PRELIMINARY","fieldName":"Business Licence","required":true,"description":"","percentage":40},
		{"stage":"TECHNICAL","fieldName":"Work Plan","required":false,"description":"","percentage":60}
	]`)

	out, err := runCLI(t, "schema", "validate", path)
	require.NoError(t, err)
	assert.Contains(t, out, "PRELIMINARY")
	assert.Contains(t, out, "Business Licence")
	assert.Contains(t, out, "OK: 2 requirements, total 100%")
}

func TestSchemaValidate_Rejects(t *testing.T) {
	path := writePayload(t, `[{"stage":"TECHNICAL","fieldName":"Work Plan","required":true,"description":"","percentage":70}]`)

	_, err := runCLI(t, "schema", "validate", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "total is 70%")
}

func TestSchemaValidate_MissingFile(t *testing.T) {
	_, err := runCLI(t, "schema", "validate", filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestPaymentPush_RequiresFlags(t *testing.T) {
	_, err := runCLI(t, "payment", "push", "--amount", "100")
	assert.Error(t, err)
}
