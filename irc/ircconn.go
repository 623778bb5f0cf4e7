// Copyright (c) 2020 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// released under the MIT license

package irc

import (
	"bytes"
	"io"
	"net"
	"unicode/utf8"

	"github.com/gorilla/websocket"
)

var (
	crlf = []byte{'\r', '\n'}
)

// IRCConn abstracts away the distinction between a regular
// net.Conn (which includes both raw TCP and TLS) and a websocket.
// it doesn't expose Read and Write because websockets are message-oriented,
// not stream-oriented.
type IRCConn interface {
	UnderlyingConn() net.Conn

	Write([]byte) error
	WriteBuffers([][]byte) error
	ReadLine() (line []byte, err error)

	Close() error
}

// IRCStreamConn is an IRCConn over a regular stream connection. It
// enforces the line length limit at the framing layer: a frame that
// exceeds MaxLineLen bytes including its terminator fails with
// errLineTooLong before any of it is handed to the parser.
type IRCStreamConn struct {
	conn net.Conn

	buffer     []byte
	start      int // start of the current (incomplete) line
	end        int // end of valid data
	searchFrom int // no terminator exists before this offset
	eof        bool
}

func NewIRCStreamConn(conn net.Conn) *IRCStreamConn {
	return &IRCStreamConn{
		conn:   conn,
		buffer: make([]byte, MaxLineLen),
	}
}

func (cc *IRCStreamConn) UnderlyingConn() net.Conn {
	return cc.conn
}

func (cc *IRCStreamConn) Write(buf []byte) (err error) {
	_, err = cc.conn.Write(buf)
	return
}

func (cc *IRCStreamConn) WriteBuffers(buffers [][]byte) (err error) {
	// on Linux, with a plaintext TCP or Unix domain socket,
	// the Go runtime will optimize this into a single writev(2) call:
	_, err = (*net.Buffers)(&buffers).WriteTo(cc.conn)
	return
}

// ReadLine returns the next \n-terminated line, stripped of its
// terminator and of at most one preceding \r. A partial line cut off
// by EOF is not a line; it is discarded and EOF reported instead.
func (cc *IRCStreamConn) ReadLine() (line []byte, err error) {
	for {
		if idx := bytes.IndexByte(cc.buffer[cc.searchFrom:cc.end], '\n'); idx != -1 {
			nl := cc.searchFrom + idx
			line = bytes.TrimSuffix(cc.buffer[cc.start:nl], []byte{'\r'})
			cc.start = nl + 1
			cc.searchFrom = cc.start
			return line, nil
		}
		cc.searchFrom = cc.end

		if cc.eof {
			return nil, io.EOF
		}

		// an unterminated line filling the whole buffer can never
		// be completed within the length limit
		if cc.end-cc.start == len(cc.buffer) {
			return nil, errLineTooLong
		}

		// slide the partial line to the front to make room
		if cc.start > 0 {
			copy(cc.buffer, cc.buffer[cc.start:cc.end])
			cc.end -= cc.start
			cc.searchFrom -= cc.start
			cc.start = 0
		}

		var n int
		n, err = cc.conn.Read(cc.buffer[cc.end:])
		cc.end += n
		if err != nil {
			if err == io.EOF {
				// flush any lines already buffered before reporting EOF
				cc.eof = true
				continue
			}
			return nil, err
		}
	}
}

func (cc *IRCStreamConn) Close() (err error) {
	return cc.conn.Close()
}

// IRCWSConn is an IRCConn over a websocket.
type IRCWSConn struct {
	conn *websocket.Conn
}

func NewIRCWSConn(conn *websocket.Conn) IRCWSConn {
	return IRCWSConn{conn: conn}
}

func (wc IRCWSConn) UnderlyingConn() net.Conn {
	return wc.conn.UnderlyingConn()
}

func (wc IRCWSConn) Write(buf []byte) (err error) {
	buf = bytes.TrimSuffix(buf, crlf)
	// there's not much we can do about this;
	// silently drop the message
	if !utf8.Valid(buf) {
		return nil
	}
	return wc.conn.WriteMessage(websocket.TextMessage, buf)
}

func (wc IRCWSConn) WriteBuffers(buffers [][]byte) (err error) {
	for _, buf := range buffers {
		err = wc.Write(buf)
		if err != nil {
			return
		}
	}
	return
}

func (wc IRCWSConn) ReadLine() (line []byte, err error) {
	for {
		var messageType int
		messageType, line, err = wc.conn.ReadMessage()
		if err != nil {
			return
		}
		if len(line) > MaxLineLen-2 {
			return nil, errLineTooLong
		}
		// on empty message or non-text message, try again, block if necessary
		if messageType == websocket.TextMessage && len(line) != 0 {
			return
		}
	}
}

func (wc IRCWSConn) Close() (err error) {
	return wc.conn.Close()
}
