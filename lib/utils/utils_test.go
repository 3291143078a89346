package utils_test

import (
	"encoding/hex"
	"errors"
	"io/ioutil"
	"path/filepath"
	"testing"

	"github.com/go-rod/launch-server/lib/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLog(t *testing.T) {
	var out []interface{}
	utils.Log(func(msg ...interface{}) { out = msg }).Println("a", 1)
	assert.Equal(t, []interface{}{"a", 1}, out)

	utils.LoggerQuiet.Println()
}

func TestE(t *testing.T) {
	utils.E(nil)

	assert.Panics(t, func() {
		utils.E(errors.New("err"))
	})
}

func TestRandString(t *testing.T) {
	v := utils.RandString(10)
	raw, err := hex.DecodeString(v)
	require.NoError(t, err)
	assert.Len(t, raw, 10)
	assert.NotEqual(t, v, utils.RandString(10))
}

func TestMkdir(t *testing.T) {
	p := filepath.Join(t.TempDir(), "a", "b")
	require.NoError(t, utils.Mkdir(p))
	assert.DirExists(t, p)
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "f.txt")

	assert.False(t, utils.FileExists(p))
	assert.False(t, utils.FileExists(dir))

	require.NoError(t, ioutil.WriteFile(p, []byte("ok"), 0664))
	assert.True(t, utils.FileExists(p))

	s, err := utils.ReadString(p)
	require.NoError(t, err)
	assert.Equal(t, "ok", s)
}

func TestReadTrimmed(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "token")

	v, has, err := utils.ReadTrimmed(p)
	require.NoError(t, err)
	assert.False(t, has)
	assert.Empty(t, v)

	require.NoError(t, ioutil.WriteFile(p, []byte("  abc123  \n"), 0664))
	v, has, err = utils.ReadTrimmed(p)
	require.NoError(t, err)
	assert.True(t, has)
	assert.Equal(t, "abc123", v)

	_, _, err = utils.ReadTrimmed(dir)
	assert.Error(t, err)
}
