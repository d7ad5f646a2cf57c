// Package ledstrip drives an addressable RGB strip behind a serial port and
// exposes named segments of it as individually controllable lights.
package ledstrip

import (
	"encoding/binary"
	"hash/crc32"
	"io"

	"github.com/pkg/errors"
)

// Endianness of the serial protocol.
var Endianness = binary.LittleEndian

// CommandType tags a host-to-strip packet.
type CommandType uint8

const (
	CmdInit CommandType = iota
	CmdClear
	CmdShow
)

func (t CommandType) String() string {
	switch t {
	case CmdInit:
		return "init"
	case CmdClear:
		return "clear"
	case CmdShow:
		return "show"
	default:
		return "unknown"
	}
}

// Command is a host-to-strip packet.
type Command interface {
	Type() CommandType
}

// InitCommand tells the firmware how many pixels to allocate.
type InitCommand struct {
	NumPixels uint16
}

// ClearCommand blanks the strip.
type ClearCommand struct{}

// ShowCommand replaces the whole strip with the given pixel data, three
// bytes per pixel.
type ShowCommand struct {
	Pix []uint8
}

func (InitCommand) Type() CommandType  { return CmdInit }
func (ClearCommand) Type() CommandType { return CmdClear }
func (ShowCommand) Type() CommandType  { return CmdShow }

// WriteCommand writes one command packet: type byte, payload, CRC32 of
// everything before the checksum.
func WriteCommand(w io.Writer, cmd Command) error {
	hash := crc32.NewIEEE()
	w = io.MultiWriter(w, hash)

	if err := binary.Write(w, Endianness, cmd.Type()); err != nil {
		return errors.Wrap(err, "failed to write command type")
	}

	switch cmd := cmd.(type) {
	case InitCommand:
		if err := binary.Write(w, Endianness, cmd.NumPixels); err != nil {
			return errors.Wrap(err, "failed to write pixel count")
		}
	case ClearCommand:
		// No payload.
	case ShowCommand:
		if _, err := w.Write(cmd.Pix); err != nil {
			return errors.Wrap(err, "failed to write pixel data")
		}
	default:
		return errors.Errorf("unknown command type: %T", cmd)
	}

	if err := binary.Write(w, Endianness, hash.Sum32()); err != nil {
		return errors.Wrap(err, "failed to write checksum")
	}
	return nil
}

// ReplyType tags a strip-to-host packet.
type ReplyType uint8

const (
	ReplyAck ReplyType = iota
	ReplyFault
	ReplyLog
)

func (t ReplyType) String() string {
	switch t {
	case ReplyAck:
		return "ack"
	case ReplyFault:
		return "fault"
	case ReplyLog:
		return "log"
	default:
		return "unknown"
	}
}

// Reply is a strip-to-host packet.
type Reply interface {
	Type() ReplyType
}

// AckReply acknowledges a command.
type AckReply struct {
	Acked CommandType
}

// FaultReply reports an unrecoverable firmware error.
type FaultReply struct {
	Message string
}

// LogReply carries a firmware log line.
type LogReply struct {
	Message string
}

func (AckReply) Type() ReplyType   { return ReplyAck }
func (FaultReply) Type() ReplyType { return ReplyFault }
func (LogReply) Type() ReplyType   { return ReplyLog }

// ReadReply reads one reply packet and verifies its checksum.
func ReadReply(r io.Reader) (Reply, error) {
	hash := crc32.NewIEEE()
	r = io.TeeReader(r, hash)

	var rtype ReplyType
	if err := binary.Read(r, Endianness, &rtype); err != nil {
		return nil, errors.Wrap(err, "failed to read reply type")
	}

	var reply Reply
	switch rtype {
	case ReplyAck:
		var acked CommandType
		if err := binary.Read(r, Endianness, &acked); err != nil {
			return nil, errors.Wrap(err, "failed to read acked command")
		}
		reply = AckReply{Acked: acked}

	case ReplyFault, ReplyLog:
		msg, err := readString(r)
		if err != nil {
			return nil, err
		}
		if rtype == ReplyFault {
			reply = FaultReply{Message: msg}
		} else {
			reply = LogReply{Message: msg}
		}

	default:
		return nil, errors.Errorf("unknown reply type: %d", rtype)
	}

	sum := hash.Sum32()
	var checksum uint32
	if err := binary.Read(r, Endianness, &checksum); err != nil {
		return nil, errors.Wrap(err, "failed to read checksum")
	}
	if checksum != sum {
		return nil, errors.New("reply checksum mismatch")
	}
	return reply, nil
}

// WriteReply writes one reply packet. Only exercised from tests and tooling;
// the real sender is the firmware.
func WriteReply(w io.Writer, reply Reply) error {
	hash := crc32.NewIEEE()
	w = io.MultiWriter(w, hash)

	if err := binary.Write(w, Endianness, reply.Type()); err != nil {
		return errors.Wrap(err, "failed to write reply type")
	}

	switch reply := reply.(type) {
	case AckReply:
		if err := binary.Write(w, Endianness, reply.Acked); err != nil {
			return errors.Wrap(err, "failed to write acked command")
		}
	case FaultReply:
		if err := writeString(w, reply.Message); err != nil {
			return err
		}
	case LogReply:
		if err := writeString(w, reply.Message); err != nil {
			return err
		}
	default:
		return errors.Errorf("unknown reply type: %T", reply)
	}

	if err := binary.Write(w, Endianness, hash.Sum32()); err != nil {
		return errors.Wrap(err, "failed to write checksum")
	}
	return nil
}

func readString(r io.Reader) (string, error) {
	var length uint16
	if err := binary.Read(r, Endianness, &length); err != nil {
		return "", errors.Wrap(err, "failed to read string length")
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", errors.Wrap(err, "failed to read string")
	}
	return string(buf), nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, Endianness, uint16(len(s))); err != nil {
		return errors.Wrap(err, "failed to write string length")
	}
	if _, err := w.Write([]byte(s)); err != nil {
		return errors.Wrap(err, "failed to write string")
	}
	return nil
}
