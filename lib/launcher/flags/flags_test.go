package flags_test

import (
	"testing"

	"github.com/go-rod/launch-server/lib/launcher/flags"
	"github.com/stretchr/testify/assert"
)

func TestFlag(t *testing.T) {
	assert.Equal(t, flags.Headless, flags.Flag("--headless").NormalizeFlag())
	assert.True(t, flags.Leakless.IsPrivate())
	assert.False(t, flags.UserDataDir.IsPrivate())

	assert.NotPanics(t, flags.Headless.Check)
	assert.Panics(t, flags.Flag("a=b").Check)
}
