package audio

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// DecodeError indicates unreadable or unsupported audio input. It is fatal
// for the file being processed.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("failed to decode audio: %s", e.Reason)
}

// Chunk is a bounded-size slice of one source audio file. Data is a
// standalone playable WAV so the chunk can be submitted to the
// transcription service on its own. Chunks are ephemeral and never
// persisted.
type Chunk struct {
	Index       int
	StartSecond int // cumulative offset of the chunk's first sample, in whole seconds
	Data        []byte
}

type wavFormat struct {
	numChannels   uint16
	sampleRate    uint32
	byteRate      uint32
	blockAlign    uint16
	bitsPerSample uint16
}

// Segmenter splits a PCM WAV stream into chunks of whole 1-second sample
// increments, never exceeding the configured byte budget. It is a lazy,
// non-restartable sequence: each call to Next consumes input and returns
// the next chunk in order. Concatenating the chunks' sample data in order
// reproduces the source sample sequence exactly.
type Segmenter struct {
	r             *bufio.Reader
	format        wavFormat
	maxChunkBytes int64

	dataRemaining uint32
	nextIndex     int
	nextSecond    int
	done          bool
}

// NewSegmenter parses the WAV header of r and prepares a chunk sequence
// bounded by maxChunkBytes of sample data per chunk. Malformed or non-PCM
// input returns a DecodeError.
func NewSegmenter(r io.Reader, maxChunkBytes int64) (*Segmenter, error) {
	br := bufio.NewReader(r)

	format, dataLen, err := readWavHeader(br)
	if err != nil {
		return nil, err
	}

	if maxChunkBytes < int64(format.bytesPerSecond()) {
		return nil, &DecodeError{Reason: fmt.Sprintf("chunk byte budget %d is below one second of audio (%d bytes)", maxChunkBytes, format.bytesPerSecond())}
	}

	return &Segmenter{
		r:             br,
		format:        format,
		maxChunkBytes: maxChunkBytes,
		dataRemaining: dataLen,
	}, nil
}

func (f wavFormat) bytesPerSecond() int {
	return int(f.sampleRate) * int(f.blockAlign)
}

// Next returns the next chunk in order, or io.EOF when the source is
// exhausted. A chunk accumulates whole 1-second sample increments; a new
// chunk begins once adding the next second would exceed the byte budget.
// The final partial second, if any, is included in the last chunk.
func (s *Segmenter) Next() (Chunk, error) {
	if s.done || s.dataRemaining == 0 {
		s.done = true
		return Chunk{}, io.EOF
	}

	perSecond := s.format.bytesPerSecond()
	var samples []byte

	for s.dataRemaining > 0 {
		secondLen := perSecond
		if uint32(secondLen) > s.dataRemaining {
			secondLen = int(s.dataRemaining)
		}
		if len(samples) > 0 && int64(len(samples)+secondLen) > s.maxChunkBytes {
			break
		}

		second := make([]byte, secondLen)
		if _, err := io.ReadFull(s.r, second); err != nil {
			s.done = true
			return Chunk{}, &DecodeError{Reason: fmt.Sprintf("truncated sample data: %v", err)}
		}
		samples = append(samples, second...)
		s.dataRemaining -= uint32(secondLen)
	}

	chunk := Chunk{
		Index:       s.nextIndex,
		StartSecond: s.nextSecond,
		Data:        encodeWav(s.format, samples),
	}
	s.nextIndex++
	s.nextSecond += (len(samples) + perSecond - 1) / perSecond

	return chunk, nil
}

func readWavHeader(r *bufio.Reader) (wavFormat, uint32, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return wavFormat{}, 0, &DecodeError{Reason: "input shorter than a RIFF header"}
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return wavFormat{}, 0, &DecodeError{Reason: "not a RIFF/WAVE stream"}
	}

	var format wavFormat
	haveFormat := false

	// Scan chunks until the data chunk; anything else (LIST, fact, ...) is skipped.
	for {
		var header [8]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return wavFormat{}, 0, &DecodeError{Reason: "no data chunk found"}
		}
		chunkID := string(header[0:4])
		chunkLen := binary.LittleEndian.Uint32(header[4:8])

		switch chunkID {
		case "fmt ":
			if chunkLen < 16 {
				return wavFormat{}, 0, &DecodeError{Reason: "fmt chunk too short"}
			}
			body := make([]byte, chunkLen)
			if _, err := io.ReadFull(r, body); err != nil {
				return wavFormat{}, 0, &DecodeError{Reason: "truncated fmt chunk"}
			}
			// Chunks are word-aligned; an odd-length body carries a pad byte.
			if chunkLen%2 == 1 {
				if _, err := r.Discard(1); err != nil {
					return wavFormat{}, 0, &DecodeError{Reason: "truncated fmt chunk"}
				}
			}
			audioFormat := binary.LittleEndian.Uint16(body[0:2])
			if audioFormat != 1 {
				return wavFormat{}, 0, &DecodeError{Reason: fmt.Sprintf("unsupported audio format %d, only PCM is supported", audioFormat)}
			}
			format = wavFormat{
				numChannels:   binary.LittleEndian.Uint16(body[2:4]),
				sampleRate:    binary.LittleEndian.Uint32(body[4:8]),
				byteRate:      binary.LittleEndian.Uint32(body[8:12]),
				blockAlign:    binary.LittleEndian.Uint16(body[12:14]),
				bitsPerSample: binary.LittleEndian.Uint16(body[14:16]),
			}
			if format.sampleRate == 0 || format.blockAlign == 0 {
				return wavFormat{}, 0, &DecodeError{Reason: "invalid fmt chunk: zero sample rate or block align"}
			}
			haveFormat = true
		case "data":
			if !haveFormat {
				return wavFormat{}, 0, &DecodeError{Reason: "data chunk before fmt chunk"}
			}
			return format, chunkLen, nil
		default:
			if _, err := io.CopyN(io.Discard, r, int64(chunkLen)+int64(chunkLen%2)); err != nil {
				return wavFormat{}, 0, &DecodeError{Reason: fmt.Sprintf("truncated %q chunk", chunkID)}
			}
		}
	}
}

// encodeWav wraps raw sample data in a minimal RIFF/WAVE container using
// the source stream's format.
func encodeWav(f wavFormat, samples []byte) []byte {
	buf := make([]byte, 0, 44+len(samples))

	buf = append(buf, "RIFF"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(36+len(samples)))
	buf = append(buf, "WAVE"...)

	buf = append(buf, "fmt "...)
	buf = binary.LittleEndian.AppendUint32(buf, 16)
	buf = binary.LittleEndian.AppendUint16(buf, 1) // PCM
	buf = binary.LittleEndian.AppendUint16(buf, f.numChannels)
	buf = binary.LittleEndian.AppendUint32(buf, f.sampleRate)
	buf = binary.LittleEndian.AppendUint32(buf, f.byteRate)
	buf = binary.LittleEndian.AppendUint16(buf, f.blockAlign)
	buf = binary.LittleEndian.AppendUint16(buf, f.bitsPerSample)

	buf = append(buf, "data"...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(samples)))
	buf = append(buf, samples...)

	return buf
}
