package xapk

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash"
	"hash/crc32"
	"io"
	"unicode/utf8"

	"github.com/klauspost/compress/flate"
	"golang.org/x/text/encoding/charmap"
)

const (
	localHeaderSig    = 0x04034b50
	dataDescriptorSig = 0x08074b50
	centralDirSig     = 0x02014b50
	endOfCentralSig   = 0x06054b50
	zip64EndSig       = 0x06064b50
	zip64LocatorSig   = 0x07064b50
	archiveExtraSig   = 0x08064b50
	digitalSigSig     = 0x05054b50

	localHeaderLen = 30
	zip64ExtraID   = 0x0001

	methodStore   = 0
	methodDeflate = 8

	flagEncrypted  = 0x1
	flagDescriptor = 0x8
	flagUTF8       = 0x800
)

var (
	errNotZip           = errors.New("zip: not a valid zip stream")
	errChecksum         = errors.New("zip: checksum error")
	errSizeMismatch     = errors.New("zip: size mismatch")
	errAlgorithm        = errors.New("zip: unsupported compression method")
	errEncrypted        = errors.New("zip: encrypted entries are not supported")
	errStoredDescriptor = errors.New("zip: stored entry with data descriptor cannot be streamed")
)

// zipStream walks a zip archive through its local file headers only, so the
// source never needs to support seeking. It stops at the central directory.
type zipStream struct {
	r       *bufio.Reader
	cur     *entryBody
	entries int
	done    bool
}

type streamEntry struct {
	Name             string
	Method           uint16
	Flags            uint16
	CRC32            uint32
	CompressedSize   uint64
	UncompressedSize uint64
	zip64            bool

	body *entryBody
}

func (e *streamEntry) IsDir() bool {
	return len(e.Name) > 0 && e.Name[len(e.Name)-1] == '/'
}

func (e *streamEntry) hasDescriptor() bool {
	return e.Flags&flagDescriptor != 0
}

// Open returns the decompressed content. It may be read at most once and
// reports errChecksum or errSizeMismatch at EOF when the data is damaged.
func (e *streamEntry) Open() io.Reader {
	return e.body
}

func newZipStream(r io.Reader) *zipStream {
	return &zipStream{r: bufio.NewReaderSize(r, 64*1024)}
}

// Next advances to the next entry, draining whatever is left of the previous
// one. It returns io.EOF after the last entry.
func (z *zipStream) Next() (*streamEntry, error) {
	if z.done {
		return nil, io.EOF
	}
	if z.cur != nil {
		if _, err := io.Copy(io.Discard, z.cur); err != nil {
			return nil, err
		}
		z.cur = nil
	}

	var sigBuf [4]byte
	if _, err := io.ReadFull(z.r, sigBuf[:]); err != nil {
		if err == io.EOF && z.entries > 0 {
			// Stream truncated after a complete entry. Nothing past this
			// point is needed, so treat it as the end.
			z.done = true
			return nil, io.EOF
		}
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("%w: %v", errNotZip, io.ErrUnexpectedEOF)
		}
		return nil, err
	}

	switch sig := binary.LittleEndian.Uint32(sigBuf[:]); sig {
	case localHeaderSig:
	case centralDirSig, endOfCentralSig, zip64EndSig, zip64LocatorSig, archiveExtraSig, digitalSigSig:
		z.done = true
		return nil, io.EOF
	default:
		return nil, fmt.Errorf("%w: unexpected signature %#08x after %d entries", errNotZip, sig, z.entries)
	}

	entry, err := z.readLocalHeader()
	if err != nil {
		return nil, err
	}
	z.entries++
	z.cur = entry.body
	return entry, nil
}

func (z *zipStream) readLocalHeader() (*streamEntry, error) {
	var hdr [localHeaderLen - 4]byte
	if _, err := io.ReadFull(z.r, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: truncated local header: %v", errNotZip, err)
	}

	le := binary.LittleEndian
	e := &streamEntry{
		Flags:            le.Uint16(hdr[2:4]),
		Method:           le.Uint16(hdr[4:6]),
		CRC32:            le.Uint32(hdr[10:14]),
		CompressedSize:   uint64(le.Uint32(hdr[14:18])),
		UncompressedSize: uint64(le.Uint32(hdr[18:22])),
	}
	nameLen := int(le.Uint16(hdr[22:24]))
	extraLen := int(le.Uint16(hdr[24:26]))

	buf := make([]byte, nameLen+extraLen)
	if _, err := io.ReadFull(z.r, buf); err != nil {
		return nil, fmt.Errorf("%w: truncated entry name: %v", errNotZip, err)
	}
	e.Name = decodeName(buf[:nameLen], e.Flags)
	parseZip64Extra(e, buf[nameLen:])

	if e.Flags&flagEncrypted != 0 {
		return nil, fmt.Errorf("%w: %s", errEncrypted, e.Name)
	}

	body, err := newEntryBody(z.r, e)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, e.Name)
	}
	e.body = body
	return e, nil
}

// decodeName returns the entry name as UTF-8. Names without the UTF-8 flag
// are CP437 unless they already happen to be valid UTF-8.
func decodeName(raw []byte, flags uint16) string {
	if flags&flagUTF8 != 0 || utf8.Valid(raw) {
		return string(raw)
	}
	name, err := charmap.CodePage437.NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(name)
}

func parseZip64Extra(e *streamEntry, extra []byte) {
	le := binary.LittleEndian
	for len(extra) >= 4 {
		id := le.Uint16(extra[0:2])
		size := int(le.Uint16(extra[2:4]))
		extra = extra[4:]
		if size > len(extra) {
			return
		}
		field := extra[:size]
		extra = extra[size:]
		if id != zip64ExtraID {
			continue
		}

		e.zip64 = true
		// Local header order: uncompressed size, then compressed size, each
		// present only when the 32-bit field is saturated.
		if e.UncompressedSize == 0xffffffff && len(field) >= 8 {
			e.UncompressedSize = le.Uint64(field[:8])
			field = field[8:]
		}
		if e.CompressedSize == 0xffffffff && len(field) >= 8 {
			e.CompressedSize = le.Uint64(field[:8])
		}
	}
}

// entryBody inflates one entry and verifies its CRC-32 and size at EOF.
type entryBody struct {
	src    *bufio.Reader
	entry  *streamEntry
	rc     io.Reader
	closer io.Closer
	limit  *io.LimitedReader
	crc    hash.Hash32
	n      uint64
	err    error
}

func newEntryBody(src *bufio.Reader, e *streamEntry) (*entryBody, error) {
	b := &entryBody{src: src, entry: e, crc: crc32.NewIEEE()}

	var raw io.Reader = src
	if !e.hasDescriptor() {
		b.limit = &io.LimitedReader{R: src, N: int64(e.CompressedSize)}
		raw = b.limit
	}

	switch e.Method {
	case methodStore:
		if e.hasDescriptor() {
			return nil, errStoredDescriptor
		}
		b.rc = raw
	case methodDeflate:
		// With a descriptor the deflate stream is self-terminating; src is a
		// bufio.Reader, so flate reads byte-wise and never overshoots it.
		fr := flate.NewReader(raw)
		b.rc = fr
		b.closer = fr
	default:
		return nil, fmt.Errorf("%w %d", errAlgorithm, e.Method)
	}
	return b, nil
}

func (b *entryBody) Read(p []byte) (int, error) {
	if b.err != nil {
		return 0, b.err
	}

	n, err := b.rc.Read(p)
	b.crc.Write(p[:n])
	b.n += uint64(n)

	switch {
	case err == io.EOF:
		b.err = b.finish()
		if b.err == nil {
			b.err = io.EOF
		}
		return n, b.err
	case err == io.ErrUnexpectedEOF:
		b.err = fmt.Errorf("%w: %s truncated", errNotZip, b.entry.Name)
		return n, b.err
	case err != nil:
		var corrupt flate.CorruptInputError
		if errors.As(err, &corrupt) {
			err = fmt.Errorf("%w: %s: %v", errNotZip, b.entry.Name, err)
		}
		b.err = err
		return n, err
	}

	if !b.entry.hasDescriptor() && b.n > b.entry.UncompressedSize {
		b.err = errSizeMismatch
		return n, b.err
	}
	return n, nil
}

func (b *entryBody) finish() error {
	if b.closer != nil {
		b.closer.Close()
	}
	if b.limit != nil && b.limit.N > 0 {
		if _, err := io.Copy(io.Discard, b.limit); err != nil {
			return err
		}
	}

	if b.entry.hasDescriptor() {
		if err := b.readDescriptor(); err != nil {
			return err
		}
	}

	if b.n != b.entry.UncompressedSize {
		return fmt.Errorf("%w: %s has %d bytes, header says %d", errSizeMismatch, b.entry.Name, b.n, b.entry.UncompressedSize)
	}
	if b.crc.Sum32() != b.entry.CRC32 {
		return fmt.Errorf("%w: %s", errChecksum, b.entry.Name)
	}
	return nil
}

func (b *entryBody) readDescriptor() error {
	le := binary.LittleEndian

	sig, err := b.src.Peek(4)
	if err != nil {
		return fmt.Errorf("%w: missing data descriptor for %s", errNotZip, b.entry.Name)
	}
	if le.Uint32(sig) == dataDescriptorSig {
		b.src.Discard(4)
	}

	sizeLen := 4
	if b.entry.zip64 {
		sizeLen = 8
	}
	buf := make([]byte, 4+2*sizeLen)
	if _, err := io.ReadFull(b.src, buf); err != nil {
		return fmt.Errorf("%w: truncated data descriptor for %s", errNotZip, b.entry.Name)
	}

	b.entry.CRC32 = le.Uint32(buf[0:4])
	if sizeLen == 8 {
		b.entry.CompressedSize = le.Uint64(buf[4:12])
		b.entry.UncompressedSize = le.Uint64(buf[12:20])
	} else {
		b.entry.CompressedSize = uint64(le.Uint32(buf[4:8]))
		b.entry.UncompressedSize = uint64(le.Uint32(buf[8:12]))
	}
	return nil
}
