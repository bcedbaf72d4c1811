package serialport

import (
	"bufio"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockConn_ReadDrainsScriptedData(t *testing.T) {
	m := NewMockConn("hello\nworld\n")

	r := bufio.NewReader(m)
	line1, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "hello\n", line1)

	line2, err := r.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, "world\n", line2)

	_, err = r.ReadString('\n')
	assert.ErrorIs(t, err, io.EOF)
}

func TestMockConn_RecordsWrites(t *testing.T) {
	m := NewMockConn("")

	_, err := m.Write([]byte("<x,+,100>"))
	require.NoError(t, err)
	_, err = m.Write([]byte("<y,-,50>"))
	require.NoError(t, err)

	assert.Equal(t, "<x,+,100><y,-,50>", m.Written())
}

func TestMockConn_ErrorInjection(t *testing.T) {
	m := NewMockConn("data")
	m.ReadErr = errors.New("port unplugged")

	buf := make([]byte, 4)
	_, err := m.Read(buf)
	assert.EqualError(t, err, "port unplugged")

	m.WriteErr = errors.New("write failed")
	_, err = m.Write([]byte("x"))
	assert.EqualError(t, err, "write failed")
}

func TestMockConn_FeedAppends(t *testing.T) {
	m := NewMockConn("a")
	m.Feed("b")

	buf := make([]byte, 2)
	n, err := io.ReadFull(m, buf)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "ab", string(buf))
}

func TestMockConn_Close(t *testing.T) {
	m := NewMockConn("")
	require.NoError(t, m.Close())
	assert.True(t, m.Closed)
}
