// Package persistence implements the on-disk snapshot format (.tgs): a
// sequence of checksummed binary frames carrying the snapshot metadata, its
// items and its edges. The frame layer makes corruption detectable record by
// record; a truncated or bit-flipped file fails loading instead of producing
// a silently broken graph.
package persistence

import (
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
)

// Constants for the snapshot binary protocol.
const (
	// MagicByte marks the start of a valid frame and helps detect loss of
	// synchronization in a damaged file.
	MagicByte = 0xA7

	// HeaderSize is the fixed size of the frame metadata:
	// 1 byte (Magic) + 1 byte (OpCode) + 4 bytes (Length) + 4 bytes (CRC32).
	HeaderSize = 10

	// Frame opcodes. Meta must be the first frame of a file.
	OpCodeMeta = 0x01
	OpCodeItem = 0x02
	OpCodeEdge = 0x03

	// MaxFrameSize bounds a single frame payload. Real frames are a few
	// KiB at most; the length field is read before the checksum can vouch
	// for it, so a corrupted length must not drive the allocation.
	MaxFrameSize = 16 << 20
)

var (
	// ErrInvalidMagic indicates the stream is not a snapshot file or lost
	// synchronization.
	ErrInvalidMagic = errors.New("invalid magic byte")
	// ErrChecksumMismatch indicates data corruption within a frame payload.
	ErrChecksumMismatch = errors.New("crc32 checksum mismatch")
	// ErrIncompleteFrame indicates the file ended mid-frame.
	ErrIncompleteFrame = errors.New("incomplete frame")
	// ErrFrameTooLarge indicates a frame length beyond MaxFrameSize,
	// almost always a corrupted header.
	ErrFrameTooLarge = errors.New("frame length exceeds limit")
)

// FrameWriter writes binary frames to an underlying io.Writer.
type FrameWriter struct {
	w io.Writer
}

// NewFrameWriter wraps w. Wrapping a bufio.Writer is recommended so header
// and payload land in one syscall.
func NewFrameWriter(w io.Writer) *FrameWriter {
	return &FrameWriter{w: w}
}

// WriteFrame encodes the payload into one frame:
// [Magic(1)][OpCode(1)][Length(4)][CRC(4)][Payload(N)]
func (fw *FrameWriter) WriteFrame(opCode byte, payload []byte) error {
	header := make([]byte, HeaderSize)
	header[0] = MagicByte
	header[1] = opCode
	binary.LittleEndian.PutUint32(header[2:6], uint32(len(payload)))
	binary.LittleEndian.PutUint32(header[6:10], crc32.ChecksumIEEE(payload))

	if _, err := fw.w.Write(header); err != nil {
		return err
	}
	_, err := fw.w.Write(payload)
	return err
}

// ReadFrame reads and validates the next frame, returning its opcode and
// payload. A clean io.EOF at a frame boundary is passed through; EOF inside
// a frame surfaces as ErrIncompleteFrame.
func ReadFrame(r io.Reader) (byte, []byte, error) {
	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if err == io.EOF {
			return 0, nil, io.EOF
		}
		return 0, nil, ErrIncompleteFrame
	}

	if header[0] != MagicByte {
		return 0, nil, ErrInvalidMagic
	}
	opCode := header[1]
	length := binary.LittleEndian.Uint32(header[2:6])
	expectedCRC := binary.LittleEndian.Uint32(header[6:10])

	if length > MaxFrameSize {
		return 0, nil, ErrFrameTooLarge
	}
	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, ErrIncompleteFrame
	}

	if crc32.ChecksumIEEE(payload) != expectedCRC {
		return 0, nil, ErrChecksumMismatch
	}
	return opCode, payload, nil
}
