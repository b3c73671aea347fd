package xapk

import (
	"archive/zip"
	"bytes"
	"compress/flate"
	"hash/crc32"
	"testing"

	"github.com/stretchr/testify/require"
)

// zipEntry describes one entry of a test archive. Stored entries and deflate
// entries without a descriptor are written raw so the local header carries
// the final sizes, the way most XAPK producers write them.
type zipEntry struct {
	name       string
	data       []byte
	deflate    bool
	descriptor bool
}

func buildZip(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, e := range entries {
		if len(e.name) > 0 && e.name[len(e.name)-1] == '/' {
			_, err := zw.CreateHeader(&zip.FileHeader{Name: e.name})
			require.NoError(t, err)
			continue
		}

		if e.descriptor {
			require.True(t, e.deflate, "stored entries with a descriptor are built by hand")
			w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Deflate})
			require.NoError(t, err)
			_, err = w.Write(e.data)
			require.NoError(t, err)
			continue
		}

		payload := e.data
		method := zip.Store
		if e.deflate {
			payload = deflateBytes(t, e.data)
			method = zip.Deflate
		}
		w, err := zw.CreateRaw(&zip.FileHeader{
			Name:               e.name,
			Method:             method,
			CRC32:              crc32.ChecksumIEEE(e.data),
			CompressedSize64:   uint64(len(payload)),
			UncompressedSize64: uint64(len(e.data)),
		})
		require.NoError(t, err)
		_, err = w.Write(payload)
		require.NoError(t, err)
	}

	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func deflateBytes(t *testing.T, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	fw, err := flate.NewWriter(&buf, flate.DefaultCompression)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, fw.Close())
	return buf.Bytes()
}

// storedWithDescriptor builds an archive holding one stored entry that
// announces a data descriptor, which no streaming reader can delimit.
func storedWithDescriptor(t *testing.T, name string, data []byte) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.CreateRaw(&zip.FileHeader{
		Name:               name,
		Method:             zip.Store,
		Flags:              0x8,
		CRC32:              crc32.ChecksumIEEE(data),
		CompressedSize64:   uint64(len(data)),
		UncompressedSize64: uint64(len(data)),
	})
	require.NoError(t, err)
	_, err = w.Write(data)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// onlyReader hides every interface but io.Reader, so nothing can seek.
type onlyReader struct {
	r *bytes.Reader
}

func (o onlyReader) Read(p []byte) (int, error) {
	return o.r.Read(p)
}

func streamOf(b []byte) onlyReader {
	return onlyReader{r: bytes.NewReader(b)}
}

type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) add(level, msg string) {
	l.lines = append(l.lines, level+" "+msg)
}

func (l *recordingLogger) Debug(msg string, args ...interface{}) { l.add("DEBUG", msg) }
func (l *recordingLogger) Info(msg string, args ...interface{})  { l.add("INFO", msg) }
func (l *recordingLogger) Warn(msg string, args ...interface{})  { l.add("WARN", msg) }
func (l *recordingLogger) Error(msg string, args ...interface{}) { l.add("ERROR", msg) }
