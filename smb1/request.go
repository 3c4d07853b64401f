package smb1

import (
	"encoding/binary"

	"github.com/dmarenin/smb1d/utils"
)

// Request is a parsed view over a single command block within an SMB1
// message. The first block of a message starts right after the header;
// chained AndX blocks start at the offset announced by the previous block.
type Request struct {
	Msg Header
	Off int
}

// NewRequest wraps a raw message, positioned at the first command block.
func NewRequest(msg []byte) Request {
	return Request{Msg: Header(msg), Off: HeaderSize}
}

// Header returns the message header.
func (req Request) Header() Header {
	return req.Msg
}

// WordCount returns the parameter word count of the current block.
func (req Request) WordCount() (int, error) {
	return WordCount(req.Msg, req.Off)
}

// Words returns the parameter words of the current block.
func (req Request) Words() ([]byte, error) {
	return ParamWords(req.Msg, req.Off)
}

// Word returns the n-th parameter word of the current block.
func (req Request) Word(n int) (uint16, error) {
	words, err := req.Words()
	if err != nil {
		return 0, err
	}
	if n*2+2 > len(words) {
		return 0, ErrWrongLength
	}
	return binary.LittleEndian.Uint16(words[n*2 : n*2+2]), nil
}

// Dword returns the 32-bit value at parameter word n of the current block.
func (req Request) Dword(n int) (uint32, error) {
	words, err := req.Words()
	if err != nil {
		return 0, err
	}
	if n*2+4 > len(words) {
		return 0, ErrWrongLength
	}
	return binary.LittleEndian.Uint32(words[n*2 : n*2+4]), nil
}

// Bytes returns the data bytes of the current block.
func (req Request) Bytes() ([]byte, error) {
	return DataBytes(req.Msg, req.Off)
}

// AndX returns the chained command code and the request positioned at the
// chained block. The second return is false when the chain ends.
func (req Request) AndX() (uint8, Request, bool, error) {
	words, err := req.Words()
	if err != nil {
		return 0, Request{}, false, err
	}
	if len(words) < 4 {
		return 0, Request{}, false, ErrWrongFormat
	}
	cmd := words[0]
	if cmd == SMB_NO_MORE_ANDX_COMMAND {
		return 0, Request{}, false, nil
	}
	off := int(binary.LittleEndian.Uint16(words[2:4]))
	if off <= req.Off || off >= len(req.Msg) {
		return 0, Request{}, false, ErrWrongFormat
	}
	return cmd, Request{Msg: req.Msg, Off: off}, true, nil
}

// String decodes a string field from buf starting at off, honoring the
// Flags2.UNICODE setting of the request. Unicode strings are aligned to an
// even offset from the start of the header. It returns the decoded string
// and the offset just past its terminator.
func (req Request) String(buf []byte, off int) (string, int, error) {
	if !req.Msg.IsUnicode() {
		end := off
		for end < len(buf) && buf[end] != 0 {
			end++
		}
		if end >= len(buf) {
			return "", 0, ErrWrongFormat
		}
		return string(buf[off:end]), end + 1, nil
	}
	if off&1 != 0 {
		off++
	}
	end := off
	for end+1 < len(buf) && (buf[end] != 0 || buf[end+1] != 0) {
		end += 2
	}
	if end+1 >= len(buf) {
		return "", 0, ErrWrongFormat
	}
	return utils.DecodeToString(buf[off:end]), end + 2, nil
}

// Composer assembles a response message block by block, patching AndX
// links as chained blocks are appended.
type Composer struct {
	buf      []byte
	andxLink int
}

// NewComposer starts a response message for the given request, copying the
// identifying header fields.
func NewComposer(req Header) *Composer {
	buf := make([]byte, HeaderSize, HeaderSize+512)
	NewHeader(buf)
	Header(buf).CopyFrom(req)
	return &Composer{buf: buf, andxLink: -1}
}

// Header returns the response header for in-place adjustment.
func (c *Composer) Header() Header {
	return Header(c.buf)
}

// Len returns the current length of the response message.
func (c *Composer) Len() int {
	return len(c.buf)
}

// PutBlock appends a parameter/data block and returns its offset within the
// message. Callers chaining AndX blocks should pass parameter words whose
// first four bytes are the AndXCommand/AndXReserved/AndXOffset prefix.
func (c *Composer) PutBlock(words, data []byte) int {
	off := len(c.buf)
	c.buf = append(c.buf, byte(len(words)/2))
	c.buf = append(c.buf, words...)
	var bc [2]byte
	binary.LittleEndian.PutUint16(bc[:], uint16(len(data)))
	c.buf = append(c.buf, bc[:]...)
	c.buf = append(c.buf, data...)
	return off
}

// PutEmptyBlock appends a block with zero parameter words and zero data
// bytes, the shape of most error responses.
func (c *Composer) PutEmptyBlock() int {
	return c.PutBlock(nil, nil)
}

// PutAndXBlock appends a block whose first four parameter bytes are the AndX
// prefix, stamping cmd and the block offset into the previously appended
// block's link. cmd is the command code of the block being appended; the
// words slice must not include the prefix.
func (c *Composer) PutAndXBlock(cmd uint8, words, data []byte) int {
	prefixed := make([]byte, 4+len(words))
	prefixed[0] = SMB_NO_MORE_ANDX_COMMAND
	copy(prefixed[4:], words)
	off := c.PutBlock(prefixed, data)
	if c.andxLink >= 0 {
		c.buf[c.andxLink] = cmd
		binary.LittleEndian.PutUint16(c.buf[c.andxLink+2:c.andxLink+4], uint16(off))
	}
	c.andxLink = off + 1
	return off
}

// TerminateAndX seals the chain; subsequent blocks are not linked.
func (c *Composer) TerminateAndX() {
	c.andxLink = -1
}

// SetStatus stamps the status on the response header, downgrading to the
// DOS class/code encoding when the client did not negotiate 32-bit errors.
func (c *Composer) SetStatus(status uint32) {
	h := Header(c.buf)
	if h.IsFlag2Set(Flags2ErrStatus) {
		h.SetStatus(status)
		return
	}
	class, code := DosError(status)
	h.SetDosStatus(class, code)
}

// Bytes returns the assembled message.
func (c *Composer) Bytes() []byte {
	return c.buf
}

// PutString encodes s into the data area encoding implied by the request's
// Flags2.UNICODE flag. Unicode strings are padded to an even offset from
// the message start; dataOff is the absolute offset where the data will
// land in the message. The terminator is included.
func PutString(unicode bool, dataOff int, s string) []byte {
	if !unicode {
		return append([]byte(s), 0)
	}
	var out []byte
	if dataOff&1 != 0 {
		out = append(out, 0)
	}
	out = append(out, utils.EncodeStringToBytes(s)...)
	return append(out, 0, 0)
}
