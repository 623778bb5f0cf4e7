// Copyright (c) 2020 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// released under the MIT license

package irc

import (
	"io"
	"math/rand"
	"net"
	"reflect"
	"testing"
	"time"
)

// mockConn is a fake net.Conn that yields its data buffer in chunks of
// at most chunkSize bytes, then EOF.
type mockConn struct {
	data      []byte
	chunkSize int
}

func (c *mockConn) Read(b []byte) (n int, err error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	size := len(c.data)
	if c.chunkSize > 0 && c.chunkSize < size {
		size = c.chunkSize
	}
	if len(b) < size {
		size = len(b)
	}
	copy(b, c.data[:size])
	c.data = c.data[size:]
	return size, nil
}

func (c *mockConn) Write(b []byte) (n int, err error) {
	return len(b), nil
}

func (c *mockConn) Close() error {
	c.data = nil
	return nil
}

func (c *mockConn) LocalAddr() net.Addr                { return nil }
func (c *mockConn) RemoteAddr() net.Addr               { return nil }
func (c *mockConn) SetDeadline(t time.Time) error      { return nil }
func (c *mockConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *mockConn) SetWriteDeadline(t time.Time) error { return nil }

func readAllLines(r IRCConn) (lines []string, err error) {
	for {
		line, err := r.ReadLine()
		switch err {
		case nil:
			lines = append(lines, string(line))
		case io.EOF:
			return lines, nil
		default:
			return lines, err
		}
	}
}

func TestLineReader(t *testing.T) {
	testCases := []struct {
		name      string
		data      string
		chunkSize int
		expected  []string
	}{
		{
			name:     "crlf terminated",
			data:     "NICK alice\r\nUSER alice 0 * :Alice\r\n",
			expected: []string{"NICK alice", "USER alice 0 * :Alice"},
		},
		{
			name:     "bare lf terminated",
			data:     "NICK alice\nPING 123\n",
			expected: []string{"NICK alice", "PING 123"},
		},
		{
			name:     "empty lines",
			data:     "\r\n\nNICK alice\r\n",
			expected: []string{"", "", "NICK alice"},
		},
		{
			name:      "lines split across reads",
			data:      "PRIVMSG #chan :hello there\r\nPING 123\r\n",
			chunkSize: 3,
			expected:  []string{"PRIVMSG #chan :hello there", "PING 123"},
		},
		{
			name:     "partial line at EOF is discarded",
			data:     "NICK alice\r\nUSER alice",
			expected: []string{"NICK alice"},
		},
		{
			name:     "no data",
			data:     "",
			expected: nil,
		},
	}

	for _, tt := range testCases {
		t.Run(tt.name, func(t *testing.T) {
			cc := NewIRCStreamConn(&mockConn{data: []byte(tt.data), chunkSize: tt.chunkSize})
			lines, err := readAllLines(cc)
			if err != nil {
				t.Fatalf("unexpected read error: %v", err)
			}
			if !reflect.DeepEqual(lines, tt.expected) {
				t.Errorf("expected %#v, got %#v", tt.expected, lines)
			}
		})
	}
}

func makeLine(length int, terminator string) string {
	content := make([]byte, length-len(terminator))
	for i := range content {
		content[i] = 'a'
	}
	return string(content) + terminator
}

func TestLineReaderLimit(t *testing.T) {
	// a frame of exactly MaxLineLen bytes including the terminator is legal
	line := makeLine(MaxLineLen, "\r\n")
	cc := NewIRCStreamConn(&mockConn{data: []byte(line + "PING 123\r\n")})
	read, err := cc.ReadLine()
	if err != nil {
		t.Fatalf("unexpected error reading a maximum-length frame: %v", err)
	}
	if len(read) != MaxLineLen-2 {
		t.Errorf("expected %d content bytes, got %d", MaxLineLen-2, len(read))
	}
	if read, err = cc.ReadLine(); err != nil || string(read) != "PING 123" {
		t.Errorf("expected to keep reading after a maximum-length frame, got [%s], %v", read, err)
	}

	// one byte more and the frame must be rejected
	cc = NewIRCStreamConn(&mockConn{data: []byte(makeLine(MaxLineLen+1, "\r\n"))})
	if _, err = cc.ReadLine(); err != errLineTooLong {
		t.Errorf("expected errLineTooLong for an oversized frame, got %v", err)
	}

	// an oversized frame is rejected even if the terminator never arrives
	cc = NewIRCStreamConn(&mockConn{data: []byte(makeLine(MaxLineLen+100, ""))})
	if _, err = cc.ReadLine(); err != errLineTooLong {
		t.Errorf("expected errLineTooLong for an unterminated oversized frame, got %v", err)
	}
}

func TestLineReaderFuzz(t *testing.T) {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	for i := 0; i < 1000; i++ {
		lineCount := r.Intn(100) + 1
		var expected []string
		var data []byte
		for j := 0; j < lineCount; j++ {
			line := makeLine(r.Intn(MaxLineLen-2)+2, "\r\n")
			expected = append(expected, line[:len(line)-2])
			data = append(data, line...)
		}
		cc := NewIRCStreamConn(&mockConn{data: data, chunkSize: r.Intn(600) + 1})
		lines, err := readAllLines(cc)
		if err != nil {
			t.Fatalf("unexpected read error: %v", err)
		}
		if !reflect.DeepEqual(lines, expected) {
			t.Fatalf("fuzz case %d: read lines did not match input", i)
		}
	}
}
