// Package frame implements the length-prefixed, sentinel-delimited framing
// protocol used to embed structured JSON payloads in otherwise free-form
// process output. Frames survive wrapper tools that interleave their own log
// lines with the runner's output, and a frame may arrive split across an
// arbitrary number of stream chunks.
package frame

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

const (
	startMarker = "##testpipe-begin##"
	endMarker   = "##testpipe-end##"

	headerSep = "::"

	// Longest header we are willing to scan before declaring a start marker
	// accidental: sessionID + type + a 20-digit length + separators.
	maxHeaderLen = 256
)

// MessageTypeResults tags a payload carrying a canonical run result.
const MessageTypeResults = "results"

// Message is a decoded protocol unit. Payload is the raw canonical JSON;
// Start/End delimit the full frame within the buffer handed to Decode.
type Message struct {
	SessionID string
	Type      string
	Payload   json.RawMessage
	Start     int
	End       int
}

// Encode serializes payload to canonical JSON and wraps it in a frame:
//
//	START sid::type::len:: <json> END sid::type
//
// The explicit byte length lets the decoder slice the payload exactly even
// when the payload itself contains the sentinel substrings.
func Encode(sessionID, msgType string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding frame payload: %w", err)
	}
	var buf bytes.Buffer
	buf.WriteString(startMarker)
	buf.WriteString(sessionID)
	buf.WriteString(headerSep)
	buf.WriteString(msgType)
	buf.WriteString(headerSep)
	buf.WriteString(strconv.Itoa(len(body)))
	buf.WriteString(headerSep)
	buf.Write(body)
	buf.WriteString(endMarker)
	buf.WriteString(sessionID)
	buf.WriteString(headerSep)
	buf.WriteString(msgType)
	return buf.Bytes(), nil
}

// Decode scans buffer for complete frames. When sessionID is non-empty, only
// frames tagged with that id are returned, so concurrent runs sharing decoder
// state do not cross-contaminate.
//
// Malformed frames (bad header, end marker mismatch, invalid JSON) are
// skipped one byte past their start marker and never returned as errors; an
// accidental sentinel collision in free-form text must not abort the scan. A
// frame whose tail has not arrived yet is left untouched: everything from its
// start marker onward comes back as remaining, to be re-offered once more
// bytes are buffered.
func Decode(buffer []byte, sessionID string) (messages []Message, remaining []byte) {
	start := []byte(startMarker)
	pos := 0
	for {
		rel := bytes.Index(buffer[pos:], start)
		if rel < 0 {
			// A partial start marker at the buffer tail must survive until
			// the next chunk arrives, or frames split mid-marker are lost.
			return messages, partialMarkerTail(buffer[pos:], start)
		}
		frameStart := pos + rel

		msg, frameEnd, status := decodeOne(buffer, frameStart)
		switch status {
		case frameIncomplete:
			return messages, buffer[frameStart:]
		case frameMalformed:
			pos = frameStart + 1
		default:
			if sessionID == "" || msg.SessionID == sessionID {
				messages = append(messages, msg)
			}
			pos = frameEnd
		}
	}
}

// partialMarkerTail returns the longest tail of buf that is a proper prefix
// of marker, or nil when the tail cannot start a frame.
func partialMarkerTail(buf, marker []byte) []byte {
	maxLen := len(marker) - 1
	if maxLen > len(buf) {
		maxLen = len(buf)
	}
	for n := maxLen; n > 0; n-- {
		tail := buf[len(buf)-n:]
		if bytes.HasPrefix(marker, tail) {
			return tail
		}
	}
	return nil
}

type frameStatus int

const (
	frameOK frameStatus = iota
	frameIncomplete
	frameMalformed
)

// decodeOne attempts to decode a single frame whose start marker sits at
// frameStart. It returns the decoded message and the index one past the
// frame's end marker.
func decodeOne(buffer []byte, frameStart int) (Message, int, frameStatus) {
	header := buffer[frameStart+len(startMarker):]

	sid, rest, status := headerField(header)
	if status != frameOK {
		return Message{}, 0, status
	}
	msgType, rest, status := headerField(rest)
	if status != frameOK {
		return Message{}, 0, status
	}
	lenField, rest, status := headerField(rest)
	if status != frameOK {
		return Message{}, 0, status
	}
	payloadLen, err := strconv.Atoi(string(lenField))
	if err != nil || payloadLen < 0 {
		return Message{}, 0, frameMalformed
	}

	trailer := endMarker + string(sid) + headerSep + string(msgType)
	if len(rest) < payloadLen+len(trailer) {
		return Message{}, 0, frameIncomplete
	}
	payload := rest[:payloadLen]
	if string(rest[payloadLen:payloadLen+len(trailer)]) != trailer {
		return Message{}, 0, frameMalformed
	}
	if !json.Valid(payload) {
		return Message{}, 0, frameMalformed
	}

	payloadStart := len(buffer) - len(rest)
	frameEnd := payloadStart + payloadLen + len(trailer)
	return Message{
		SessionID: string(sid),
		Type:      string(msgType),
		Payload:   json.RawMessage(bytes.Clone(payload)),
		Start:     frameStart,
		End:       frameEnd,
	}, frameEnd, frameOK
}

// headerField reads one "::"-terminated header field. A missing separator is
// incomplete while the scanned region is still short enough to be a partial
// header, malformed once it cannot be.
func headerField(buf []byte) (field, rest []byte, status frameStatus) {
	idx := bytes.Index(buf, []byte(headerSep))
	if idx < 0 {
		if len(buf) < maxHeaderLen {
			return nil, nil, frameIncomplete
		}
		return nil, nil, frameMalformed
	}
	if idx > maxHeaderLen {
		return nil, nil, frameMalformed
	}
	return buf[:idx], buf[idx+len(headerSep):], frameOK
}

// Decoder carries undecoded bytes across chunked writes. One Decoder serves
// one stream; independent runs get independent decoders.
type Decoder struct {
	sessionID string
	pending   []byte
}

// NewDecoder returns a decoder that only yields frames tagged sessionID.
// An empty sessionID matches every frame.
func NewDecoder(sessionID string) *Decoder {
	return &Decoder{sessionID: sessionID}
}

// Feed appends chunk to the pending buffer and returns any frames completed
// by it. Incomplete trailing frames stay buffered for the next Feed.
func (d *Decoder) Feed(chunk []byte) []Message {
	d.pending = append(d.pending, chunk...)
	messages, remaining := Decode(d.pending, d.sessionID)
	d.pending = remaining
	return messages
}
