// File: internal/engine/response.go
// Package engine
// License: Apache-2.0
//
// Incremental HTTP/1.x response parser. Fed whatever byte slices the socket
// yields; never blocks, never copies body bytes (they go straight to the
// sink). Headers are kept in receive order with duplicates preserved.

package engine

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/bitbouncer/deprecated-csi-http-client/api"
)

const defaultMaxHeaderBytes = 64 << 10

type bodyMode int

const (
	bodyNone bodyMode = iota
	bodyLength
	bodyChunked
	bodyUntilEOF
)

type chunkPhase int

const (
	chunkSize chunkPhase = iota
	chunkData
	chunkDataCRLF
	chunkTrailer
)

type responseParser struct {
	headerDone bool
	complete   bool
	noBody     bool // HEAD request: no body regardless of headers

	scratch []byte // header block / chunk-size line / trailer accumulation
	status  int
	headers []api.Header

	mode      bodyMode
	remaining int64
	chunk     chunkPhase
	maxHeader int
}

// feed consumes data, emitting body bytes through sink. Sets p.complete
// when the message ends inside data.
func (p *responseParser) feed(data []byte, sink func([]byte)) error {
	for len(data) > 0 && !p.complete {
		if !p.headerDone {
			n, err := p.feedHeader(data)
			if err != nil {
				return err
			}
			data = data[n:]
			continue
		}
		n, err := p.feedBody(data, sink)
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// finishEOF is called when the peer closes the connection. For
// EOF-delimited bodies that is the normal end of message; anywhere else it
// is a protocol error.
func (p *responseParser) finishEOF() error {
	if p.complete {
		return nil
	}
	if p.headerDone && p.mode == bodyUntilEOF {
		p.complete = true
		return nil
	}
	return fmt.Errorf("response truncated: %w", io.ErrUnexpectedEOF)
}

func (p *responseParser) feedHeader(data []byte) (int, error) {
	limit := p.maxHeader
	if limit == 0 {
		limit = defaultMaxHeaderBytes
	}
	// Search for the blank line across the scratch/data boundary.
	start := len(p.scratch) - 3
	if start < 0 {
		start = 0
	}
	p.scratch = append(p.scratch, data...)
	if len(p.scratch) > limit {
		return 0, fmt.Errorf("response header block exceeds %d bytes", limit)
	}
	idx := bytes.Index(p.scratch[start:], []byte("\r\n\r\n"))
	if idx < 0 {
		return len(data), nil
	}
	end := start + idx + 4
	block := p.scratch[:end]
	consumed := len(data) - (len(p.scratch) - end)
	p.scratch = nil

	status, headers, err := parseHeaderBlock(block)
	if err != nil {
		return 0, err
	}
	if status >= 100 && status < 200 {
		// Informational response: discard and parse the next block.
		return consumed, nil
	}
	p.status = status
	p.headers = headers
	p.headerDone = true
	return consumed, p.chooseBodyMode()
}

func (p *responseParser) chooseBodyMode() error {
	if p.noBody || p.status == 204 || p.status == 304 {
		p.mode = bodyNone
		p.complete = true
		return nil
	}
	for _, h := range p.headers {
		if strings.EqualFold(h.Name, "Transfer-Encoding") &&
			strings.Contains(strings.ToLower(h.Value), "chunked") {
			p.mode = bodyChunked
			p.chunk = chunkSize
			return nil
		}
	}
	for _, h := range p.headers {
		if strings.EqualFold(h.Name, "Content-Length") {
			n, err := strconv.ParseInt(strings.TrimSpace(h.Value), 10, 64)
			if err != nil || n < 0 {
				return fmt.Errorf("bad Content-Length %q", h.Value)
			}
			p.mode = bodyLength
			p.remaining = n
			if n == 0 {
				p.complete = true
			}
			return nil
		}
	}
	p.mode = bodyUntilEOF
	return nil
}

func (p *responseParser) feedBody(data []byte, sink func([]byte)) (int, error) {
	switch p.mode {
	case bodyLength:
		n := int64(len(data))
		if n > p.remaining {
			n = p.remaining
		}
		if n > 0 {
			sink(data[:n])
			p.remaining -= n
		}
		if p.remaining == 0 {
			p.complete = true
		}
		return int(n), nil
	case bodyChunked:
		return p.feedChunked(data, sink)
	case bodyUntilEOF:
		sink(data)
		return len(data), nil
	}
	// bodyNone: trailing bytes after a complete message are ignored.
	return len(data), nil
}

func (p *responseParser) feedChunked(data []byte, sink func([]byte)) (int, error) {
	consumed := 0
	for consumed < len(data) && !p.complete {
		rest := data[consumed:]
		switch p.chunk {
		case chunkSize:
			i := bytes.IndexByte(rest, '\n')
			if i < 0 {
				p.scratch = append(p.scratch, rest...)
				return len(data), nil
			}
			line := append(p.scratch, rest[:i]...)
			p.scratch = nil
			consumed += i + 1
			size, err := parseChunkSize(line)
			if err != nil {
				return 0, err
			}
			if size == 0 {
				p.chunk = chunkTrailer
				continue
			}
			p.remaining = size
			p.chunk = chunkData
		case chunkData:
			n := int64(len(rest))
			if n > p.remaining {
				n = p.remaining
			}
			sink(rest[:n])
			p.remaining -= n
			consumed += int(n)
			if p.remaining == 0 {
				p.chunk = chunkDataCRLF
			}
		case chunkDataCRLF:
			i := bytes.IndexByte(rest, '\n')
			if i < 0 {
				return len(data), nil
			}
			consumed += i + 1
			p.chunk = chunkSize
		case chunkTrailer:
			// Trailer section ends at the first empty line.
			i := bytes.IndexByte(rest, '\n')
			if i < 0 {
				p.scratch = append(p.scratch, rest...)
				return len(data), nil
			}
			line := bytes.TrimRight(append(p.scratch, rest[:i]...), "\r")
			p.scratch = nil
			consumed += i + 1
			if len(line) == 0 {
				p.complete = true
			}
		}
	}
	return consumed, nil
}

func parseChunkSize(line []byte) (int64, error) {
	s := string(bytes.TrimSpace(line))
	if i := strings.IndexByte(s, ';'); i >= 0 {
		s = s[:i] // chunk extensions are ignored
	}
	size, err := strconv.ParseInt(s, 16, 64)
	if err != nil || size < 0 {
		return 0, fmt.Errorf("bad chunk size %q", s)
	}
	return size, nil
}

func parseHeaderBlock(block []byte) (int, []api.Header, error) {
	lines := bytes.Split(bytes.TrimSuffix(block, []byte("\r\n\r\n")), []byte("\r\n"))
	if len(lines) == 0 {
		return 0, nil, fmt.Errorf("empty response header block")
	}
	status, err := parseStatusLine(string(lines[0]))
	if err != nil {
		return 0, nil, err
	}
	var headers []api.Header
	for _, line := range lines[1:] {
		if len(line) == 0 {
			continue
		}
		i := bytes.IndexByte(line, ':')
		if i < 0 {
			return 0, nil, fmt.Errorf("malformed header line %q", line)
		}
		headers = append(headers, api.Header{
			Name:  string(line[:i]),
			Value: string(bytes.TrimLeft(line[i+1:], " \t")),
		})
	}
	return status, headers, nil
}

func parseStatusLine(line string) (int, error) {
	if !strings.HasPrefix(line, "HTTP/1.") {
		return 0, fmt.Errorf("bad status line %q", line)
	}
	fields := strings.SplitN(line, " ", 3)
	if len(fields) < 2 {
		return 0, fmt.Errorf("bad status line %q", line)
	}
	code, err := strconv.Atoi(fields[1])
	if err != nil || code < 100 || code > 599 {
		return 0, fmt.Errorf("bad status code in %q", line)
	}
	return code, nil
}
