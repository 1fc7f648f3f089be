package actions

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"parkcraft.gg/internal/sim/world"
)

// CodecVersion is the wire format version. Bump it when the frame layout or
// any action's visitation order changes.
const CodecVersion = 1

// Frame layout: version byte, kind (uvarint), execution flags (uvarint),
// actor id (uvarint), then every parameter in AcceptParameters order as
// fixed-width little-endian values. Network transport and replay logs carry
// this identical encoding, so the two are bit-interchangeable.

// Encode serializes the action into a wire frame.
func Encode(a Action) []byte {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	buf.WriteByte(CodecVersion)
	n := binary.PutUvarint(tmp[:], uint64(a.Kind()))
	buf.Write(tmp[:n])
	n = binary.PutUvarint(tmp[:], uint64(a.ExecFlags()))
	buf.Write(tmp[:n])
	n = binary.PutUvarint(tmp[:], uint64(a.Actor()))
	buf.Write(tmp[:n])

	a.AcceptParameters(&paramWriter{buf: &buf})
	return buf.Bytes()
}

// Decode reconstructs an action from a wire frame. Any failure here is a
// malformed-stream condition: the single action is dropped, the queue is not.
func Decode(frame []byte) (Action, error) {
	r := bytes.NewReader(frame)

	ver, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("empty frame")
	}
	if ver != CodecVersion {
		return nil, fmt.Errorf("unsupported codec version %d", ver)
	}
	kind, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("read kind: %w", err)
	}
	exec, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("read exec flags: %w", err)
	}
	actor, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("read actor: %w", err)
	}

	a, err := New(Kind(kind))
	if err != nil {
		return nil, err
	}
	a.SetExecFlags(uint32(exec))
	a.SetActor(uint32(actor))

	pr := &paramReader{r: r}
	a.AcceptParameters(pr)
	if pr.err != nil {
		return nil, fmt.Errorf("decode %s: %w", a.Kind(), pr.err)
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("decode %s: %d trailing bytes", a.Kind(), r.Len())
	}
	return a, nil
}

type paramWriter struct {
	buf *bytes.Buffer
}

func (w *paramWriter) Bool(_ string, p *bool) {
	if *p {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
}

func (w *paramWriter) Uint8(_ string, p *uint8) { w.buf.WriteByte(*p) }

func (w *paramWriter) Uint16(_ string, p *uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], *p)
	w.buf.Write(b[:])
}

func (w *paramWriter) Int32(_ string, p *int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(*p))
	w.buf.Write(b[:])
}

func (w *paramWriter) Coords(name string, p *world.CoordsXY) {
	w.Int32(name, &p.X)
	w.Int32(name, &p.Y)
}

type paramReader struct {
	r   *bytes.Reader
	err error
}

func (r *paramReader) take(name string, n int) []byte {
	if r.err != nil {
		return nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		r.err = fmt.Errorf("field %q: truncated", name)
		return nil
	}
	return b
}

func (r *paramReader) Bool(name string, p *bool) {
	if b := r.take(name, 1); b != nil {
		*p = b[0] != 0
	}
}

func (r *paramReader) Uint8(name string, p *uint8) {
	if b := r.take(name, 1); b != nil {
		*p = b[0]
	}
}

func (r *paramReader) Uint16(name string, p *uint16) {
	if b := r.take(name, 2); b != nil {
		*p = binary.LittleEndian.Uint16(b)
	}
}

func (r *paramReader) Int32(name string, p *int32) {
	if b := r.take(name, 4); b != nil {
		*p = int32(binary.LittleEndian.Uint32(b))
	}
}

func (r *paramReader) Coords(name string, p *world.CoordsXY) {
	r.Int32(name, &p.X)
	r.Int32(name, &p.Y)
}
