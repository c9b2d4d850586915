package badgerstore

import (
	"strconv"

	"github.com/jacentio/mockstate/store"
)

// Values are stored as a one byte kind tag followed by the payload:
//
//	Kind      Tag  Payload
//	========================================
//	null      0    none
//	string    1    UTF-8 bytes
//	number    2    canonical decimal text
//	bool      3    0 or 1
//	binary    4    raw bytes
const (
	tagNull   byte = 0
	tagString byte = 1
	tagNumber byte = 2
	tagBool   byte = 3
	tagBinary byte = 4
)

func encodeValue(v store.Value) []byte {
	switch v.Kind() {
	case store.KindString:
		s, _ := v.AsString()
		return append([]byte{tagString}, s...)
	case store.KindNumber:
		n, _ := v.NumberString()
		return append([]byte{tagNumber}, n...)
	case store.KindBool:
		b, _ := v.AsBool()
		if b {
			return []byte{tagBool, 1}
		}
		return []byte{tagBool, 0}
	case store.KindBinary:
		p, _ := v.AsBinary()
		return append([]byte{tagBinary}, p...)
	default:
		return []byte{tagNull}
	}
}

// decodeValue never fails: a payload that does not match its tag is read
// back as a string.
func decodeValue(raw []byte) store.Value {
	if len(raw) == 0 {
		return store.Null()
	}
	payload := raw[1:]
	switch raw[0] {
	case tagNull:
		return store.Null()
	case tagString:
		return store.String(string(payload))
	case tagNumber:
		n, err := store.NumberText(string(payload))
		if err != nil {
			return store.String(string(payload))
		}
		return n
	case tagBool:
		if len(payload) == 1 && payload[0] <= 1 {
			return store.Bool(payload[0] == 1)
		}
		return store.String(strconv.Quote(string(payload)))
	case tagBinary:
		return store.Binary(payload)
	default:
		return store.String(string(raw))
	}
}
