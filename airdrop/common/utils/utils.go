package utils

import (
	"encoding/binary"
	"fmt"
)

// AppendUint8 appends the value byte to the input slice
func AppendUint8(input []byte, value uint8) []byte {
	return append(input, value)
}

// AppendUint16 appends the value bytes to the input slice (big endian)
func AppendUint16(input []byte, value uint16) []byte {
	return binary.BigEndian.AppendUint16(input, value)
}

// AppendUint32 appends the value bytes to the input slice (big endian)
func AppendUint32(input []byte, value uint32) []byte {
	return binary.BigEndian.AppendUint32(input, value)
}

// AppendUint64 appends the value bytes to the input slice (big endian)
func AppendUint64(input []byte, value uint64) []byte {
	return binary.BigEndian.AppendUint64(input, value)
}

// AppendShortData appends data to the input slice, prefixed by its size as uint16
func AppendShortData(input []byte, data []byte) []byte {
	if len(data) > 0xffff {
		panic(fmt.Sprintf("short data can have at most 65535 bytes, got %d", len(data)))
	}
	input = AppendUint16(input, uint16(len(data)))
	return append(input, data...)
}

// ReadUint8 reads a uint8 from the input and returns the rest
func ReadUint8(input []byte) (value uint8, rest []byte, err error) {
	if len(input) < 1 {
		return 0, input, fmt.Errorf("input size (%d) is too small to read a uint8", len(input))
	}
	return input[0], input[1:], nil
}

// ReadUint16 reads a uint16 from the input and returns the rest
func ReadUint16(input []byte) (value uint16, rest []byte, err error) {
	if len(input) < 2 {
		return 0, input, fmt.Errorf("input size (%d) is too small to read a uint16", len(input))
	}
	return binary.BigEndian.Uint16(input[:2]), input[2:], nil
}

// ReadUint32 reads a uint32 from the input and returns the rest
func ReadUint32(input []byte) (value uint32, rest []byte, err error) {
	if len(input) < 4 {
		return 0, input, fmt.Errorf("input size (%d) is too small to read a uint32", len(input))
	}
	return binary.BigEndian.Uint32(input[:4]), input[4:], nil
}

// ReadUint64 reads a uint64 from the input and returns the rest
func ReadUint64(input []byte) (value uint64, rest []byte, err error) {
	if len(input) < 8 {
		return 0, input, fmt.Errorf("input size (%d) is too small to read a uint64", len(input))
	}
	return binary.BigEndian.Uint64(input[:8]), input[8:], nil
}

// ReadSlice reads `size` bytes from the input and returns the rest
func ReadSlice(input []byte, size int) (value []byte, rest []byte, err error) {
	if size < 0 || len(input) < size {
		return nil, input, fmt.Errorf("input size (%d) is too small to read %d bytes", len(input), size)
	}
	return input[:size], input[size:], nil
}

// ReadShortData reads data prefixed by its size as uint16 and returns the rest
func ReadShortData(input []byte) (data []byte, rest []byte, err error) {
	size, rest, err := ReadUint16(input)
	if err != nil {
		return nil, rest, err
	}
	return ReadSlice(rest, int(size))
}
