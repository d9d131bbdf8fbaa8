package ipixel

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendPNG_HexPayload(t *testing.T) {
	cmd, err := SendPNG("0102")
	require.NoError(t, err)
	require.Len(t, cmd, 17)

	assert.Equal(t, uint16(17), binary.LittleEndian.Uint16(cmd[0:2]))
	assert.Equal(t, []byte{0x02, 0x00, 0x00}, []byte(cmd[2:5]))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(cmd[5:9]))
	assert.Equal(t, ChecksumBinary([]byte{0x01, 0x02}), binary.LittleEndian.Uint32(cmd[9:13]))
	assert.Equal(t, []byte{0x00, 0x65}, []byte(cmd[13:15]))
	assert.Equal(t, []byte{0x01, 0x02}, []byte(cmd[15:]))
}

func TestSendAnimation_Markers(t *testing.T) {
	cmd, err := SendAnimation("AABBCC")
	require.NoError(t, err)
	require.Len(t, cmd, 18)
	assert.Equal(t, uint16(18), binary.LittleEndian.Uint16(cmd[0:2]))
	assert.Equal(t, []byte{0x03, 0x00, 0x00}, []byte(cmd[2:5]))
	assert.Equal(t, uint32(3), binary.LittleEndian.Uint32(cmd[5:9]))
	assert.Equal(t, []byte{0x02, 0x01}, []byte(cmd[13:15]))
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc}, []byte(cmd[15:]))
}

func TestSendPNG_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logo.PNG")
	data := []byte{0x89, 'P', 'N', 'G'}
	require.NoError(t, os.WriteFile(path, data, 0o600))

	fromFile, err := SendPNG(path)
	require.NoError(t, err)
	fromHex, err := SendPNG("89504e47")
	require.NoError(t, err)
	assert.Equal(t, fromHex, fromFile)
}

func TestSendMedia_Errors(t *testing.T) {
	_, err := SendPNG(filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, ErrResourceUnavailable)

	_, err = SendAnimation(filepath.Join(t.TempDir(), "missing.gif"))
	assert.ErrorIs(t, err, ErrResourceUnavailable)

	// 扩展名不匹配时按十六进制解析
	_, err = SendPNG("clip.gif")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = SendPNG("abc")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestSendPNG_TooLarge(t *testing.T) {
	payload := make([]byte, 0xFFFF)
	path := filepath.Join(t.TempDir(), "big.png")
	require.NoError(t, os.WriteFile(path, payload, 0o600))

	_, err := SendPNG(path)
	assert.ErrorIs(t, err, ErrOutOfRange)
}
