// SPDX-FileCopyrightText: 2026 The fjage-go Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package fjage

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// Large numeric arrays are transmitted as {"clazz": tag, "data": base64}
// objects. The base64 payload holds the little-endian elements of the Java
// array type named by the tag.
const (
	byteArrayTag   = "[B"
	shortArrayTag  = "[S"
	intArrayTag    = "[I"
	longArrayTag   = "[J"
	floatArrayTag  = "[F"
	doubleArrayTag = "[D"
)

// typedArray is the wire form of a packed numeric array.
type typedArray struct {
	Clazz string `json:"clazz"`
	Data  string `json:"data"`
}

// elementSize of a tag's array type in bytes, or 0 for unknown tags.
func elementSize(tag string) int {
	switch tag {
	case byteArrayTag:
		return 1
	case shortArrayTag:
		return 2
	case intArrayTag, floatArrayTag:
		return 4
	case longArrayTag, doubleArrayTag:
		return 8
	default:
		return 0
	}
}

// encodeTypedArray packs []byte, []int16, []int32, []int64, []float32 and
// []float64. Other values are reported as not packable.
func encodeTypedArray(v any) (ta typedArray, ok bool) {
	var buf []byte

	switch arr := v.(type) {
	case []byte:
		ta.Clazz, buf = byteArrayTag, append([]byte(nil), arr...)

	case []int16:
		ta.Clazz, buf = shortArrayTag, make([]byte, 2*len(arr))
		for i, e := range arr {
			binary.LittleEndian.PutUint16(buf[2*i:], uint16(e))
		}

	case []int32:
		ta.Clazz, buf = intArrayTag, make([]byte, 4*len(arr))
		for i, e := range arr {
			binary.LittleEndian.PutUint32(buf[4*i:], uint32(e))
		}

	case []int64:
		ta.Clazz, buf = longArrayTag, make([]byte, 8*len(arr))
		for i, e := range arr {
			binary.LittleEndian.PutUint64(buf[8*i:], uint64(e))
		}

	case []float32:
		ta.Clazz, buf = floatArrayTag, make([]byte, 4*len(arr))
		for i, e := range arr {
			binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(e))
		}

	case []float64:
		ta.Clazz, buf = doubleArrayTag, make([]byte, 8*len(arr))
		for i, e := range arr {
			binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(e))
		}

	default:
		return
	}

	ta.Data = base64.StdEncoding.EncodeToString(buf)
	ok = true
	return
}

// decodeTypedArray unpacks a base64 payload into the Go slice type matching the
// tag. Bytes are unsigned.
func decodeTypedArray(tag, data string) (any, error) {
	size := elementSize(tag)
	if size == 0 {
		return nil, fmt.Errorf("unknown typed array tag %q", tag)
	}

	buf, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}
	if len(buf)%size != 0 {
		return nil, fmt.Errorf("typed array %s: %d bytes are no multiple of %d", tag, len(buf), size)
	}

	n := len(buf) / size
	switch tag {
	case byteArrayTag:
		return buf, nil

	case shortArrayTag:
		arr := make([]int16, n)
		for i := range arr {
			arr[i] = int16(binary.LittleEndian.Uint16(buf[2*i:]))
		}
		return arr, nil

	case intArrayTag:
		arr := make([]int32, n)
		for i := range arr {
			arr[i] = int32(binary.LittleEndian.Uint32(buf[4*i:]))
		}
		return arr, nil

	case longArrayTag:
		arr := make([]int64, n)
		for i := range arr {
			arr[i] = int64(binary.LittleEndian.Uint64(buf[8*i:]))
		}
		return arr, nil

	case floatArrayTag:
		arr := make([]float32, n)
		for i := range arr {
			arr[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
		}
		return arr, nil

	default:
		arr := make([]float64, n)
		for i := range arr {
			arr[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[8*i:]))
		}
		return arr, nil
	}
}

// packValue replaces all packable arrays within v, descending into maps and
// slices.
func packValue(v any) any {
	if ta, ok := encodeTypedArray(v); ok {
		return ta
	}

	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, e := range v {
			out[k] = packValue(e)
		}
		return out

	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = packValue(e)
		}
		return out

	default:
		return v
	}
}

// unpackValue replaces all {"clazz": tag, "data": base64} objects within a
// decoded JSON value by their Go slices. Objects which cannot be decoded are
// kept as they are. Numbers, decoded as json.Number, become int64 if they are
// integral and float64 otherwise.
func unpackValue(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		f, _ := v.Float64()
		return f

	case map[string]any:
		if len(v) == 2 {
			clazz, cOk := v["clazz"].(string)
			data, dOk := v["data"].(string)
			if cOk && dOk && elementSize(clazz) > 0 {
				if arr, err := decodeTypedArray(clazz, data); err == nil {
					return arr
				}
				return v
			}
		}

		for k, e := range v {
			v[k] = unpackValue(e)
		}
		return v

	case []any:
		for i, e := range v {
			v[i] = unpackValue(e)
		}
		return v

	default:
		return v
	}
}
