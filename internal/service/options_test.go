package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithLogin(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		login   string
		want    string
		wantErr bool
	}{
		{name: "valid", login: "acme", want: "acme"},
		{name: "trimmed", login: " acme-corp ", want: "acme-corp"},
		{name: "blank", login: "  ", wantErr: true},
		{name: "slash", login: "acme/web", wantErr: true},
		{name: "leading hyphen", login: "-acme", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var o RegisterOrganizationOptions
			err := WithLogin(tt.login)(&o)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrValidation)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, o.Login)
		})
	}
}

func TestWithDefaultLinkURL(t *testing.T) {
	t.Parallel()

	var o RegisterOrganizationOptions
	require.NoError(t, WithDefaultLinkURL(" https://acme.example ")(&o))
	assert.Equal(t, "https://acme.example", o.DefaultLinkURL)

	err := WithDefaultLinkURL("ftp://acme.example")(&o)
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "https://acme.example", o.DefaultLinkURL)
}

func TestWithLimit(t *testing.T) {
	t.Parallel()

	var o FeedOptions
	require.NoError(t, WithLimit(MaxPageSize+10)(&o))
	assert.Equal(t, MaxPageSize, o.Limit)

	require.ErrorIs(t, WithLimit(0)(&o), ErrValidation)
}
