// ABOUTME: Read output formatting, one line per visible message
// ABOUTME: Lines are "* sender:\tpayload\n" for unread and "  sender:\tpayload\n" for read messages

package protocol

import "io"

// Line prefixes marking message state in read output.
const (
	UnreadMarker = "* "
	ReadMarker   = "  "
	Separator    = ":\t"
)

// LineLen returns the number of bytes FormatLine writes for the given fields.
func LineLen(sender string, payload []byte) int {
	return len(UnreadMarker) + len(sender) + len(Separator) + len(payload) + 1
}

// AppendLine appends one formatted line to buf.
func AppendLine(buf []byte, unread bool, sender string, payload []byte) []byte {
	if unread {
		buf = append(buf, UnreadMarker...)
	} else {
		buf = append(buf, ReadMarker...)
	}
	buf = append(buf, sender...)
	buf = append(buf, Separator...)
	buf = append(buf, payload...)
	return append(buf, '\n')
}

// FormatLine writes one formatted line to w.
func FormatLine(w io.Writer, unread bool, sender string, payload []byte) (int, error) {
	line := AppendLine(make([]byte, 0, LineLen(sender, payload)), unread, sender, payload)
	return w.Write(line)
}
