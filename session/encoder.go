package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
)

const (
	entryFormatVersion   = 1
	refreshFormatVersion = 1
)

var errCorruptRecord = errors.New("session: corrupt record")

func encodeEntry(e Entry) ([]byte, error) {
	if len(e.SessionID) > math.MaxUint8 {
		return nil, errors.New("sessionID too long")
	}
	if len(e.AccessToken) > math.MaxUint16 {
		return nil, errors.New("access token too long")
	}

	var buf bytes.Buffer
	buf.Grow(1 + 1 + len(e.SessionID) + 2 + len(e.AccessToken) + 16)

	buf.WriteByte(entryFormatVersion)
	buf.WriteByte(byte(len(e.SessionID)))
	buf.WriteString(e.SessionID)
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(e.AccessToken)))
	buf.WriteString(e.AccessToken)
	_ = binary.Write(&buf, binary.BigEndian, e.CreatedAt)
	_ = binary.Write(&buf, binary.BigEndian, e.ExpiresAt)

	return buf.Bytes(), nil
}

func decodeEntry(data []byte) (Entry, error) {
	var e Entry
	r := reader{buf: data}

	if v, ok := r.readByte(); !ok || v != entryFormatVersion {
		return e, errCorruptRecord
	}
	sidLen, ok := r.readByte()
	if !ok {
		return e, errCorruptRecord
	}
	if e.SessionID, ok = r.readString(int(sidLen)); !ok {
		return e, errCorruptRecord
	}
	tokLen, ok := r.readUint16()
	if !ok {
		return e, errCorruptRecord
	}
	if e.AccessToken, ok = r.readString(int(tokLen)); !ok {
		return e, errCorruptRecord
	}
	if e.CreatedAt, ok = r.readInt64(); !ok {
		return e, errCorruptRecord
	}
	if e.ExpiresAt, ok = r.readInt64(); !ok {
		return e, errCorruptRecord
	}
	if !r.done() {
		return e, errCorruptRecord
	}
	return e, nil
}

func encodeRefresh(rec refreshRecord) ([]byte, error) {
	if len(rec.Token) > math.MaxUint16 {
		return nil, errors.New("refresh token too long")
	}

	var buf bytes.Buffer
	buf.WriteByte(refreshFormatVersion)
	_ = binary.Write(&buf, binary.BigEndian, uint16(len(rec.Token)))
	buf.WriteString(rec.Token)
	_ = binary.Write(&buf, binary.BigEndian, rec.ExpiresAt)

	return buf.Bytes(), nil
}

func decodeRefresh(data []byte) (refreshRecord, error) {
	var rec refreshRecord
	r := reader{buf: data}

	if v, ok := r.readByte(); !ok || v != refreshFormatVersion {
		return rec, errCorruptRecord
	}
	n, ok := r.readUint16()
	if !ok {
		return rec, errCorruptRecord
	}
	if rec.Token, ok = r.readString(int(n)); !ok {
		return rec, errCorruptRecord
	}
	if rec.ExpiresAt, ok = r.readInt64(); !ok {
		return rec, errCorruptRecord
	}
	if !r.done() {
		return rec, errCorruptRecord
	}
	return rec, nil
}

type reader struct {
	buf []byte
	off int
}

func (r *reader) take(n int) ([]byte, bool) {
	if n < 0 || r.off+n > len(r.buf) {
		return nil, false
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, true
}

func (r *reader) readByte() (byte, bool) {
	b, ok := r.take(1)
	if !ok {
		return 0, false
	}
	return b[0], true
}

func (r *reader) readUint16() (uint16, bool) {
	b, ok := r.take(2)
	if !ok {
		return 0, false
	}
	return binary.BigEndian.Uint16(b), true
}

func (r *reader) readInt64() (int64, bool) {
	b, ok := r.take(8)
	if !ok {
		return 0, false
	}
	return int64(binary.BigEndian.Uint64(b)), true
}

func (r *reader) readString(n int) (string, bool) {
	b, ok := r.take(n)
	if !ok {
		return "", false
	}
	return string(b), true
}

func (r *reader) done() bool {
	return r.off == len(r.buf)
}
