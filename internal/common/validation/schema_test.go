package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const personSchema = `{
	"type": "object",
	"required": ["name"],
	"properties": {"name": {"type": "string", "minLength": 1}}
}`

func TestSchema_ValidateBytes(t *testing.T) {
	s := MustCompile(personSchema)

	ok, err := s.ValidateBytes([]byte(`{"name":"Amina"}`))
	require.NoError(t, err)
	assert.True(t, ok.Valid)
	assert.Empty(t, ok.GetErrorMessages())

	bad, err := s.ValidateBytes([]byte(`{"name":""}`))
	require.NoError(t, err)
	assert.False(t, bad.Valid)
	require.Len(t, bad.Errors, 1)
	assert.Equal(t, "name", bad.Errors[0].Field)
}

func TestSchema_MalformedDocument(t *testing.T) {
	_, err := MustCompile(personSchema).ValidateBytes([]byte(`{`))
	assert.Error(t, err)
}

func TestCompile_InvalidSchema(t *testing.T) {
	_, err := Compile(`{"type": 12}`)
	assert.Error(t, err)
	assert.Panics(t, func() { MustCompile(`{"type": 12}`) })
}

func TestValidatePhone(t *testing.T) {
	tests := []struct {
		phone string
		want  bool
	}{
		{"255700000001", true},
		{"+255 700 000 001", true},
		{"0700-000-001", true},
		{"12345", false},
		{"not-a-number", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ValidatePhone(tt.phone), tt.phone)
	}
}
