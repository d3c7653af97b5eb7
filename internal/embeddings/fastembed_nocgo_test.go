//go:build !cgo

package embeddings

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewProvider_FastEmbedWithoutCgo(t *testing.T) {
	_, err := NewProvider(context.Background(), ProviderConfig{Provider: "fastembed"})
	assert.ErrorIs(t, err, ErrFastEmbedNotAvailable)
}
