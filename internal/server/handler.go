// Package server implements the per-connection protocol (handler) and the
// accept loop (acceptor) that multiplex it across clients.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"time"

	"github.com/aesdsocket/linelogd/internal/reclog"
)

const (
	// readBufSize is B from the spec: the fixed chunk size used both to read
	// off the socket and to stream the log back.
	readBufSize = 1024

	// pollInterval bounds how long a blocking conn.Read can run before the
	// handler rechecks ctx for cancellation — the Go equivalent of the
	// spec's "check the termination flag on a bounded schedule (<= 1s)".
	pollInterval = 1 * time.Second
)

var seekPrefix = []byte("AESDCHAR_IOCSEEKTO:")

// HandleConn drives one client connection to completion: reassemble
// newline-terminated records from conn, dispatch control commands against
// log, append data records, and stream the full log back after each data
// append. It returns nil when the peer closes cleanly or ctx is cancelled,
// and a non-nil error for any other socket failure.
func HandleConn(ctx context.Context, conn net.Conn, log *reclog.Log) error {
	var cursor uint64
	var staging []byte
	buf := make([]byte, readBufSize)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		conn.SetReadDeadline(time.Now().Add(pollInterval))

		n, readErr := conn.Read(buf)
		if n > 0 {
			staging = append(staging, buf[:n]...)

			for {
				i := bytes.IndexByte(staging, '\n')
				if i < 0 {
					break
				}
				record := append([]byte(nil), staging[:i+1]...)
				staging = staging[i+1:]

				if writeCmd, writeCmdOffset, ok := parseSeek(record); ok {
					if off, err := log.ResolveSeek(writeCmd, writeCmdOffset); err == nil {
						cursor = off
					}
					// SeekInvalid is swallowed at this boundary: cursor
					// stays put, nothing is appended, no reply is sent.
					continue
				}

				log.AppendRecord(record)
				if err := streamLog(conn, log, &cursor); err != nil {
					return err
				}
				// The next reply is the full log again, unless a seek
				// repositions the cursor before it.
				cursor = 0
			}
		}

		if readErr != nil {
			if isTimeout(readErr) {
				continue
			}
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			return fmt.Errorf("read: %w", readErr)
		}
	}
}

// streamLog sends the log to conn starting at *cursor, advancing *cursor as
// it goes, until the facade reports end-of-stream.
func streamLog(conn net.Conn, log *reclog.Log, cursor *uint64) error {
	for {
		data, advance := log.ReadAt(*cursor, readBufSize)
		if advance == 0 {
			return nil
		}
		if _, err := conn.Write(data); err != nil {
			return fmt.Errorf("write: %w", err)
		}
		*cursor += advance
	}
}

// parseSeek recognizes a record of the exact form
// "AESDCHAR_IOCSEEKTO:<write_cmd>, <write_cmd_offset>\n". A record that
// merely starts with the prefix mid-record, or fails to parse cleanly, is
// not a control command at all — the whole record is treated as data (see
// the source's documented behavior for a prefix appearing outside this
// exact shape).
func parseSeek(record []byte) (writeCmd, writeCmdOffset uint64, ok bool) {
	if !bytes.HasPrefix(record, seekPrefix) {
		return 0, 0, false
	}
	body := bytes.TrimSuffix(record[len(seekPrefix):], []byte("\n"))
	parts := bytes.SplitN(body, []byte(","), 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	x, err := strconv.ParseUint(string(bytes.TrimSpace(parts[0])), 10, 64)
	if err != nil {
		return 0, 0, false
	}
	y, err := strconv.ParseUint(string(bytes.TrimSpace(parts[1])), 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return x, y, true
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
