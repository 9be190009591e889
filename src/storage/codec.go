// This file is part of Latsar.

// Latsar is free software released under the MIT License.
// See LICENSE.md file for details.

package storage

import (
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"
)

const (
	encodingIdentity = "identity"
	encodingZstd     = "zstd"
)

// Response headers are stored as deterministic CBOR so that identical
// responses produce identical rows.
var (
	headerEnc cbor.EncMode
	headerDec cbor.DecMode

	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error

	headerEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("storage: CBOR encoder initialization failed: " + err.Error())
	}
	headerDec, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("storage: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("storage: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("storage: zstd decoder initialization failed: " + err.Error())
	}
}

func encodeHeader(h http.Header) ([]byte, error) {
	if h == nil {
		h = http.Header{}
	}
	return headerEnc.Marshal(map[string][]string(h))
}

func decodeHeader(data []byte) (http.Header, error) {
	var m map[string][]string
	if err := headerDec.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	return http.Header(m), nil
}

// encodeBody compresses body unless that does not make it smaller.
func encodeBody(body []byte) ([]byte, string) {
	if body == nil {
		body = []byte{}
	}
	compressed := zstdEncoder.EncodeAll(body, nil)
	if len(compressed) >= len(body) {
		return body, encodingIdentity
	}
	return compressed, encodingZstd
}

func decodeBody(data []byte, encoding string, size int64) ([]byte, error) {
	switch encoding {
	case encodingIdentity:
		return data, nil
	case encodingZstd:
		body, err := zstdDecoder.DecodeAll(data, make([]byte, 0, size))
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if int64(len(body)) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(body), size)
		}
		return body, nil
	}
	return nil, fmt.Errorf("unknown body encoding %q", encoding)
}

// rowID derives a fixed-length primary key from its parts.
func rowID(parts ...string) string {
	h := blake3.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
