// Copyright (c) 2012-2014 Jeremy Latt
// Copyright (c) 2014-2015 Edmund Huber
// Copyright (c) 2017-2018 Shivaram Lingamneni <slingamn@cs.stanford.edu>
// released under the MIT license

package irc

import (
	"io"
	"sync"

	"github.com/ergochat/peregrine/irc/utils"
)

// Socket represents an IRC socket. Writes are queued under a mutex and
// flushed by a single writer goroutine, so no caller ever blocks on
// network I/O while holding server state locks.
type Socket struct {
	conn IRCConn

	maxSendQBytes int

	// coordination system for asynchronous writes
	buffersMutex  sync.Mutex
	buffers       [][]byte
	totalLength   int
	closed        bool
	sendQExceeded bool
	finalData     []byte // what to send when we die
	finalized     bool

	// this is a trylock enforcing that only one goroutine can write to `conn` at a time
	writerSemaphore utils.Semaphore
}

// NewSocket returns a new Socket.
func NewSocket(conn IRCConn, maxSendQBytes int) *Socket {
	result := Socket{
		conn:          conn,
		maxSendQBytes: maxSendQBytes,
	}
	result.writerSemaphore.Initialize(1)
	return &result
}

// Close stops a Socket from being able to send/receive any more data.
func (socket *Socket) Close() {
	socket.buffersMutex.Lock()
	socket.closed = true
	socket.buffersMutex.Unlock()

	socket.wakeWriter()
}

// Read returns a single IRC line from a Socket.
func (socket *Socket) Read() (string, error) {
	if socket.IsClosed() {
		return "", io.EOF
	}

	lineBytes, err := socket.conn.ReadLine()
	line := string(lineBytes)

	if err == io.EOF {
		socket.Close()
	}

	return line, err
}

// Write sends the given string out of Socket. Requirements:
// 1. MUST NOT block for macroscopic amounts of time
// 2. MUST NOT reorder messages
// 3. MUST provide mutual exclusion for access to the connection
// 4. SHOULD NOT tie up additional goroutines, beyond the one blocked on the connection
func (socket *Socket) Write(data []byte) (err error) {
	if len(data) == 0 {
		return
	}

	socket.buffersMutex.Lock()
	if socket.closed {
		err = io.EOF
	} else {
		prospectiveLen := socket.totalLength + len(data)
		if prospectiveLen > socket.maxSendQBytes {
			socket.sendQExceeded = true
			socket.closed = true
			err = errSendQExceeded
		} else {
			socket.buffers = append(socket.buffers, data)
			socket.totalLength = prospectiveLen
		}
	}
	socket.buffersMutex.Unlock()

	socket.wakeWriter()
	return
}

// wakeWriter starts the goroutine that actually performs the write, if
// one is not already running.
func (socket *Socket) wakeWriter() {
	if socket.writerSemaphore.TryAcquire() {
		// acquired the trylock; send() will release it
		go socket.send()
	}
	// else: the holder will check for more data after releasing it
}

// SetFinalData sets the final data to send when the SocketWriter closes.
func (socket *Socket) SetFinalData(data []byte) {
	socket.buffersMutex.Lock()
	defer socket.buffersMutex.Unlock()
	socket.finalData = data
}

// IsClosed returns whether the socket is closed.
func (socket *Socket) IsClosed() bool {
	socket.buffersMutex.Lock()
	defer socket.buffersMutex.Unlock()
	return socket.closed
}

// is there data to write?
func (socket *Socket) readyToWrite() bool {
	socket.buffersMutex.Lock()
	defer socket.buffersMutex.Unlock()
	// on the first time observing socket.closed, we still have to write socket.finalData
	return !socket.finalized && (socket.totalLength > 0 || socket.closed)
}

// send actually writes messages to socket.conn; it may block
func (socket *Socket) send() {
	for {
		// we are holding the trylock: actually do the write
		socket.performWrite()
		// surrender the trylock, avoiding a race where a write comes in after we've
		// checked readyToWrite() and it returned false, but while we still hold the trylock:
		socket.writerSemaphore.Release()
		// check if more data came in while we held the trylock:
		if !socket.readyToWrite() {
			return
		}
		if !socket.writerSemaphore.TryAcquire() {
			// failed to acquire; exit and wait for the holder to observe readyToWrite()
			// after releasing it
			return
		}
		// got the lock again, loop back around and write
	}
}

// write the contents of the buffer, then see if we need to close
// returns whether we closed
func (socket *Socket) performWrite() (closedYet bool) {
	// retrieve the buffered data, clear the buffer
	socket.buffersMutex.Lock()
	buffers := socket.buffers
	socket.buffers = nil
	socket.totalLength = 0
	closed := socket.closed
	socket.buffersMutex.Unlock()

	var err error
	if 0 < len(buffers) {
		err = socket.conn.WriteBuffers(buffers)
	}

	closedYet = closed || err != nil

	if closedYet {
		socket.finalize()
	}

	return
}

// mark the socket closed (if someone hasn't already), then write error lines if applicable
func (socket *Socket) finalize() {
	socket.buffersMutex.Lock()
	finalized := socket.finalized
	socket.finalized = true
	finalData := socket.finalData
	sendQExceeded := socket.sendQExceeded
	socket.closed = true
	socket.buffersMutex.Unlock()

	if finalized {
		return
	}

	if sendQExceeded {
		socket.conn.Write([]byte("ERROR :SendQ Exceeded\r\n"))
	} else if len(finalData) != 0 {
		socket.conn.Write(finalData)
	}

	socket.conn.Close()
}
