package redisstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/MrEthical07/goSession/store"
)

const tokenRecordVersionV1 = 1

var errCorruptRecord = errors.New("redisstore: corrupt token record")

// encodeToken layout: version(1) expiresAtMillis(8 BE) then userID, hash,
// userAgent, ip each as uint16 BE length + bytes. The id lives in the key.
func encodeToken(rec *store.TokenRecord) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(16 + len(rec.UserID) + len(rec.Hash) + len(rec.UserAgent) + len(rec.IPAddress))

	buf.WriteByte(tokenRecordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, rec.ExpiresAt.UnixMilli()); err != nil {
		return nil, err
	}
	for _, field := range []string{rec.UserID, rec.Hash, rec.UserAgent, rec.IPAddress} {
		if len(field) > 0xFFFF {
			return nil, errors.New("redisstore: token field too long")
		}
		if err := binary.Write(&buf, binary.BigEndian, uint16(len(field))); err != nil {
			return nil, err
		}
		buf.WriteString(field)
	}
	return buf.Bytes(), nil
}

func decodeToken(id string, data []byte) (*store.TokenRecord, error) {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil || version != tokenRecordVersionV1 {
		return nil, errCorruptRecord
	}
	var expiresAt int64
	if err := binary.Read(r, binary.BigEndian, &expiresAt); err != nil {
		return nil, errCorruptRecord
	}

	fields := make([]string, 4)
	for i := range fields {
		var n uint16
		if err := binary.Read(r, binary.BigEndian, &n); err != nil {
			return nil, errCorruptRecord
		}
		b := make([]byte, n)
		if _, err := io.ReadFull(r, b); err != nil {
			return nil, errCorruptRecord
		}
		fields[i] = string(b)
	}
	if r.Len() != 0 {
		return nil, errCorruptRecord
	}

	return &store.TokenRecord{
		ID:        id,
		ExpiresAt: time.UnixMilli(expiresAt).UTC(),
		UserID:    fields[0],
		Hash:      fields[1],
		UserAgent: fields[2],
		IPAddress: fields[3],
	}, nil
}
