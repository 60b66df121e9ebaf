package id_test

import (
	"testing"

	"github.com/hashmap-kz/katomik-flow/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "simple", input: "copy"},
		{name: "leading underscore", input: "_internal"},
		{name: "digits after first char", input: "item_1"},
		{name: "empty", input: "", wantErr: true},
		{name: "leading digit", input: "1item", wantErr: true},
		{name: "contains dash", input: "my-item", wantErr: true},
		{name: "contains space", input: "my item", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := id.New(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				var invalid *id.InvalidFormatError
				require.ErrorAs(t, err, &invalid)
				assert.Equal(t, tt.input, invalid.Value)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.input, got.String())
		})
	}
}

func TestMustNewPanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() {
		id.MustNew("1-invalid")
	})
}

func TestLess(t *testing.T) {
	a := id.MustNew("a")
	b := id.MustNew("b")
	assert.True(t, a.Less(b))
	assert.False(t, b.Less(a))
}
