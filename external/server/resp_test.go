package server

import (
	"bufio"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Meesho/BharatMLStack/wavering/internal/store"
)

type respClient struct {
	conn net.Conn
	r    *bufio.Reader
}

func startServer(t *testing.T) *respClient {
	t.Helper()

	st, err := store.New(store.Config{NumShards: 4, JanitorInterval: time.Hour})
	require.NoError(t, err)
	t.Cleanup(st.Close)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	go Serve(ln, st)

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &respClient{conn: conn, r: bufio.NewReader(conn)}
}

func (c *respClient) cmd(t *testing.T, args ...string) string {
	t.Helper()

	var b strings.Builder
	b.WriteString("*" + strconv.Itoa(len(args)) + "\r\n")
	for _, a := range args {
		b.WriteString("$" + strconv.Itoa(len(a)) + "\r\n" + a + "\r\n")
	}
	_, err := c.conn.Write([]byte(b.String()))
	require.NoError(t, err)
	return c.readReply(t)
}

func (c *respClient) readReply(t *testing.T) string {
	t.Helper()

	line, err := c.r.ReadString('\n')
	require.NoError(t, err)
	line = strings.TrimSuffix(line, "\r\n")

	switch line[0] {
	case '+', '-', ':':
		return line
	case '$':
		n, err := strconv.Atoi(line[1:])
		require.NoError(t, err)
		if n < 0 {
			return "(nil)"
		}
		buf := make([]byte, n+2)
		_, err = io.ReadFull(c.r, buf)
		require.NoError(t, err)
		return string(buf[:n])
	case '*':
		n, err := strconv.Atoi(line[1:])
		require.NoError(t, err)
		parts := make([]string, 0, n)
		for i := 0; i < n; i++ {
			parts = append(parts, c.readReply(t))
		}
		return strings.Join(parts, "\n")
	}
	t.Fatalf("unexpected reply line %q", line)
	return ""
}

func TestSetGetBytes(t *testing.T) {
	c := startServer(t)

	assert.Equal(t, "+OK", c.cmd(t, "SET", "k", "hello"))
	assert.Equal(t, "hello", c.cmd(t, "GET", "k"))
	assert.Equal(t, "(nil)", c.cmd(t, "GET", "missing"))
	assert.Equal(t, "-ERR wrong number of arguments for 'get'", c.cmd(t, "GET"))
}

func TestWaveCommands(t *testing.T) {
	c := startServer(t)

	assert.Equal(t, ":5", c.cmd(t, "WV.INCRBY", "w", "5", "1000", "no", "60", "0.05", "1024"))
	assert.Equal(t, ":8", c.cmd(t, "WV.INCRBY", "w", "3", "1001"))

	assert.Equal(t, ":8", c.cmd(t, "WV.GET", "w", "1001"))
	assert.Equal(t, ":8", c.cmd(t, "WV.GET", "w", "1001", "yes"))
	assert.Equal(t, ":8", c.cmd(t, "wv.total", "w"))

	debug := c.cmd(t, "WV.DEBUG", "w", "yes")
	assert.Contains(t, debug, "EXPIRE => false")
	assert.Contains(t, debug, "total => 8")
	assert.Contains(t, debug, "sz L => 2")

	assert.Equal(t, ":1", c.cmd(t, "WV.RESET", "w", "missing"))
}

func TestWaveErrors(t *testing.T) {
	c := startServer(t)

	assert.Equal(t, "-ERR no such key", c.cmd(t, "WV.GET", "missing", "1000"))
	assert.Equal(t, "-ERR no such key", c.cmd(t, "WV.TOTAL", "missing"))
	assert.Equal(t, "-ERR no such key", c.cmd(t, "WV.DEBUG", "missing"))

	assert.Equal(t, "+OK", c.cmd(t, "SET", "blob", "x"))
	reply := c.cmd(t, "WV.GET", "blob", "1000")
	assert.True(t, strings.HasPrefix(reply, "-WRONGTYPE"), reply)
	reply = c.cmd(t, "WV.INCRBY", "blob", "1", "1000")
	assert.True(t, strings.HasPrefix(reply, "-WRONGTYPE"), reply)

	assert.Equal(t, ":5", c.cmd(t, "WV.INCRBY", "w", "5", "1000", "no", "60", "0.05", "1024"))
	assert.Equal(t, "-ERR increment or decrement would overflow", c.cmd(t, "WV.INCRBY", "w", "2000", "1001"))

	assert.Equal(t, "-ERR value for incr is not a valid long", c.cmd(t, "WV.INCRBY", "w", "abc"))
	assert.Equal(t, "-ERR value for incr must not be negative", c.cmd(t, "WV.INCRBY", "w", "-1"))
	assert.Equal(t, "-ERR value for ts must not be negative", c.cmd(t, "WV.GET", "w", "-1"))
	assert.Equal(t, "-ERR value for E must be between ]0,1[", c.cmd(t, "WV.INCRBY", "w", "1", "1000", "no", "60", "1.5"))
	assert.Equal(t, "-ERR syntax error", c.cmd(t, "WV.TOTAL", "w", "extra"))
	assert.Equal(t, "-ERR syntax error", c.cmd(t, "WV.INCRBY", "w", "1", "1000", "no", "60", "0.05", "1024", "extra"))
	assert.Equal(t, "-ERR unknown command", c.cmd(t, "NOPE"))
}

func TestPipelinedCommands(t *testing.T) {
	c := startServer(t)

	// two commands in one write, two replies back to back
	payload := "*4\r\n$9\r\nWV.INCRBY\r\n$1\r\np\r\n$1\r\n2\r\n$4\r\n1000\r\n" +
		"*3\r\n$6\r\nWV.GET\r\n$1\r\np\r\n$4\r\n1000\r\n"
	_, err := c.conn.Write([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, ":2", c.readReply(t))
	assert.Equal(t, ":2", c.readReply(t))
}
