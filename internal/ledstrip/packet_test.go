package ledstrip

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
	"reflect"
	"testing"
)

func TestWriteInitCommandLayout(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteCommand(&buf, InitCommand{NumPixels: 300}); err != nil {
		t.Fatal(err)
	}

	payload := []byte{byte(CmdInit), 0x2c, 0x01} // 300 little-endian
	want := append([]byte{}, payload...)
	want = binary.LittleEndian.AppendUint32(want, crc32.ChecksumIEEE(payload))

	if !bytes.Equal(buf.Bytes(), want) {
		t.Errorf("wire bytes = %x, want %x", buf.Bytes(), want)
	}
}

func TestWriteShowCommand(t *testing.T) {
	pix := []uint8{1, 2, 3, 4, 5, 6}
	var buf bytes.Buffer
	if err := WriteCommand(&buf, ShowCommand{Pix: pix}); err != nil {
		t.Fatal(err)
	}

	// type byte + pixels + crc32
	if got, want := buf.Len(), 1+len(pix)+4; got != want {
		t.Fatalf("packet length = %d, want %d", got, want)
	}
	if buf.Bytes()[0] != byte(CmdShow) {
		t.Errorf("type byte = %d", buf.Bytes()[0])
	}
	if !bytes.Equal(buf.Bytes()[1:1+len(pix)], pix) {
		t.Errorf("pixel payload = %x", buf.Bytes()[1:1+len(pix)])
	}
}

func TestReplyRoundTrip(t *testing.T) {
	replies := []Reply{
		AckReply{Acked: CmdShow},
		FaultReply{Message: "pixel overrun"},
		LogReply{Message: "booted"},
	}

	for _, reply := range replies {
		var buf bytes.Buffer
		if err := WriteReply(&buf, reply); err != nil {
			t.Fatalf("WriteReply(%#v) failed: %v", reply, err)
		}
		got, err := ReadReply(&buf)
		if err != nil {
			t.Fatalf("ReadReply(%#v) failed: %v", reply, err)
		}
		if !reflect.DeepEqual(got, reply) {
			t.Errorf("round trip = %#v, want %#v", got, reply)
		}
	}
}

func TestReadReplyChecksumMismatch(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteReply(&buf, LogReply{Message: "ok"}); err != nil {
		t.Fatal(err)
	}

	corrupted := buf.Bytes()
	corrupted[1] ^= 0xff // flip a length byte, checksum no longer matches

	if _, err := ReadReply(bytes.NewReader(corrupted)); err == nil {
		t.Fatal("ReadReply accepted a corrupted packet")
	}
}

func TestReadReplyUnknownType(t *testing.T) {
	if _, err := ReadReply(bytes.NewReader([]byte{0xee, 0, 0, 0, 0})); err == nil {
		t.Fatal("ReadReply accepted an unknown reply type")
	}
}
