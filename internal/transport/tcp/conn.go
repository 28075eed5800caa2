package tcp

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"
)

// ErrLineTooLong is returned by ReadLine when a line exceeds the configured
// maximum.
var ErrLineTooLong = errors.New("inbound line too long")

// lineConn frames a net.Conn as newline-terminated text lines.
type lineConn struct {
	conn         net.Conn
	scanner      *bufio.Scanner
	maxLine      int
	writeTimeout time.Duration
	addr         string

	mu        sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

func newLineConn(conn net.Conn, maxLine int, writeTimeout time.Duration) *lineConn {
	if maxLine <= 0 {
		maxLine = bufio.MaxScanTokenSize
	}
	// Scanner treats max(cap(buf), limit) as its token limit. The limit
	// leaves room for a CRLF terminator.
	limit := maxLine + 2
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, min(512, limit)), limit)

	addr := conn.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return &lineConn{
		conn:         conn,
		scanner:      scanner,
		maxLine:      maxLine,
		writeTimeout: writeTimeout,
		addr:         addr,
	}
}

// ReadLine is only called from the connection's own goroutine. Cancellation
// is delivered by setting a read deadline, see Server.handle.
func (c *lineConn) ReadLine(_ context.Context) (string, error) {
	if c.scanner.Scan() {
		line := strings.TrimRight(c.scanner.Text(), "\r")
		if len(line) > c.maxLine {
			return "", ErrLineTooLong
		}
		return line, nil
	}
	err := c.scanner.Err()
	switch {
	case err == nil:
		return "", io.EOF
	case errors.Is(err, bufio.ErrTooLong):
		return "", ErrLineTooLong
	default:
		return "", err
	}
}

func (c *lineConn) WriteLine(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(c.conn, line+"\n")
	return err
}

func (c *lineConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *lineConn) RemoteAddr() string {
	return c.addr
}
