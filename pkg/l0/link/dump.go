package link

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/golang/glog"
)

// FormatFrame writes a human readable dump of a frame.
func FormatFrame(w io.Writer, title string, f *Frame) {
	size := f.Size()
	bad := size != 0 && !f.Valid()
	status := "OK"
	if bad {
		status = "ERROR"
	}
	fmt.Fprintf(w, "%s: header size %d %04X, checksum %04X %s\n", title, size, size, f.Checksum(), status)
	if bad || size == 0 {
		return
	}
	s := f.Scan()
	for s.Next() {
		FormatPacket(w, s.Packet())
	}
	if err := s.Err(); err != nil {
		fmt.Fprintf(w, "- %v\n", err)
	}
}

// FormatPacket writes a single line dump of a sub-packet.
func FormatPacket(w io.Writer, pkt *Packet) {
	fmt.Fprintf(w, "- PKT channel: %d %s, opcode: %d, size: %d data:%s\n",
		pkt.Channel, strings.ToUpper(pkt.Channel.String()), pkt.Opcode, len(pkt.Data), hexBytes(pkt.Data))
}

// DumpFrame logs a frame dump.
func DumpFrame(title string, f *Frame) {
	var buf bytes.Buffer
	FormatFrame(&buf, title, f)
	for _, line := range strings.Split(strings.TrimRight(buf.String(), "\n"), "\n") {
		glog.Info(line)
	}
}

func hexBytes(data []byte) string {
	var sb strings.Builder
	for _, b := range data {
		fmt.Fprintf(&sb, " %02X", b)
	}
	return sb.String()
}
