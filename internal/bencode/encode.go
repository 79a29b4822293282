package bencode

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// Marshal returns the bencoded form of v.
func Marshal(v *Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := (&Encoder{w: &buf}).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Encoder writes bencoded Values to an io.Writer.
type Encoder struct {
	w io.Writer
}

func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes the bencoded representation of v. Dict keys are
// emitted in the OrderedDict's stored order — callers that need
// canonical BEP 3 (lexicographic) output build that dict with keys
// already inserted in sorted order; a dict decoded from valid bencode
// is already in that order, so re-encoding an unmodified decoded value
// reproduces the original bytes.
func (e *Encoder) Encode(v *Value) error {
	if v == nil {
		return fmt.Errorf("bencode: cannot encode nil value")
	}

	switch v.Kind {
	case KindInt:
		return e.encodeInt(v.Int)
	case KindString:
		return e.encodeString(v.Str)
	case KindList:
		return e.encodeList(v.List)
	case KindDict:
		return e.encodeDict(v.Dict)
	default:
		return fmt.Errorf("bencode: unknown kind %v", v.Kind)
	}
}

func (e *Encoder) encodeInt(n int64) error {
	if _, err := e.w.Write([]byte{byte(tokenInteger)}); err != nil {
		return err
	}
	var buf [32]byte
	b := strconv.AppendInt(buf[:0], n, 10)
	if _, err := e.w.Write(b); err != nil {
		return err
	}
	_, err := e.w.Write([]byte{byte(tokenEnding)})
	return err
}

func (e *Encoder) encodeString(s []byte) error {
	var buf [32]byte
	b := strconv.AppendInt(buf[:0], int64(len(s)), 10)
	if _, err := e.w.Write(b); err != nil {
		return err
	}
	if _, err := e.w.Write([]byte{byte(tokenStringSeparator)}); err != nil {
		return err
	}
	_, err := e.w.Write(s)
	return err
}

func (e *Encoder) encodeList(xs []*Value) error {
	if _, err := e.w.Write([]byte{byte(tokenList)}); err != nil {
		return err
	}
	for _, v := range xs {
		if err := e.Encode(v); err != nil {
			return err
		}
	}
	_, err := e.w.Write([]byte{byte(tokenEnding)})
	return err
}

func (e *Encoder) encodeDict(d *OrderedDict) error {
	if _, err := e.w.Write([]byte{byte(tokenDict)}); err != nil {
		return err
	}
	if d != nil {
		for _, k := range d.Keys() {
			if err := e.encodeString([]byte(k)); err != nil {
				return err
			}
			v, _ := d.Get(k)
			if err := e.Encode(v); err != nil {
				return err
			}
		}
	}
	_, err := e.w.Write([]byte{byte(tokenEnding)})
	return err
}
