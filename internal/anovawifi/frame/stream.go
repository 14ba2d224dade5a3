package frame

import "github.com/anova4all/gateway/internal/gwerrors"

// Stream buffers raw bytes read off a socket and extracts complete,
// back-to-back frames as they become available. A single Read call may
// straddle frame boundaries on either side; Stream buffers the remainder
// across calls.
type Stream struct {
	buf []byte
}

// Feed appends freshly read bytes and returns every complete message that
// can now be decoded, in wire order. Decode errors for one frame (bad
// header, checksum mismatch) abort extraction for the remaining buffered
// bytes too, since framing has been lost; the error is returned alongside
// whatever messages decoded cleanly before it.
func (s *Stream) Feed(data []byte) ([]string, error) {
	s.buf = append(s.buf, data...)

	var messages []string
	for {
		if len(s.buf) < 2 {
			break
		}
		if s.buf[0] != header {
			return messages, gwerrors.ErrFrame("invalid header")
		}
		length := s.buf[1]
		need := FrameLen(length)
		if len(s.buf) < need {
			break // wait for more bytes
		}

		frameBytes := s.buf[:need]
		rest := s.buf[need:]
		// a trailing SYN, if present, belongs to this frame and is
		// consumed here rather than left for the next Feed.
		if len(rest) > 0 && rest[0] == syn {
			rest = rest[1:]
		}

		msg, err := Decode(frameBytes)
		s.buf = rest
		if err != nil {
			return messages, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
