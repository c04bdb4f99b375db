package server

import (
	"testing"

	"github.com/matryer/is"

	"spot-exchange/internal/apperr"
)

func TestExtractAPIKey(t *testing.T) {
	cases := []struct {
		name   string
		header string
		want   string
	}{
		{"token form", "TOKEN key-abc", "key-abc"},
		{"lowercase token form", "Token key-abc", "key-abc"},
		{"bearer form", "Bearer key-abc", "key-abc"},
		{"raw key", "key-abc", "key-abc"},
		{"surrounding whitespace", "  key-abc  ", "key-abc"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)
			key, err := extractAPIKey(tc.header)
			is.NoErr(err)
			is.Equal(key, tc.want)
		})
	}
}

func TestExtractAPIKeyMissing(t *testing.T) {
	is := is.New(t)

	_, err := extractAPIKey("")
	is.True(err != nil)
	is.Equal(apperr.KindOf(err), apperr.Unauthenticated)

	_, err = extractAPIKey("   ")
	is.True(err != nil)
	is.Equal(apperr.KindOf(err), apperr.Unauthenticated)
}
