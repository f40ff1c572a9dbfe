package parser

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"github.com/turtacn/molstruct/pkg/errors"
)

// Encoding names accepted by NewDecoder.
const (
	EncodingUTF8        = "utf-8"
	EncodingUTF16       = "utf-16"
	EncodingLatin1      = "latin-1"
	EncodingWindows1252 = "windows-1252"
)

// DefaultEncodings is the order tried when none is configured.
var DefaultEncodings = []string{EncodingUTF8, EncodingLatin1}

var encodingAliases = map[string]string{
	"utf8":         EncodingUTF8,
	"utf-8":        EncodingUTF8,
	"utf16":        EncodingUTF16,
	"utf-16":       EncodingUTF16,
	"latin1":       EncodingLatin1,
	"latin-1":      EncodingLatin1,
	"iso-8859-1":   EncodingLatin1,
	"cp1252":       EncodingWindows1252,
	"windows1252":  EncodingWindows1252,
	"windows-1252": EncodingWindows1252,
}

const byteOrderMark = "\uFEFF"

type decodeFunc func(raw []byte) (string, bool)

// Decoder tries an ordered list of text encodings; the first that accepts the
// bytes wins.
type Decoder struct {
	names []string
	funcs []decodeFunc
}

// NewDecoder builds a decoder for the given encoding names, tried in order.
// With no names, DefaultEncodings is used.
func NewDecoder(names ...string) (*Decoder, error) {
	if len(names) == 0 {
		names = DefaultEncodings
	}
	d := &Decoder{}
	for _, n := range names {
		canonical, ok := encodingAliases[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return nil, errors.InvalidParam(fmt.Sprintf("unknown text encoding %q", n))
		}
		d.names = append(d.names, canonical)
		d.funcs = append(d.funcs, decoderFor(canonical))
	}
	return d, nil
}

// MustNewDecoder is NewDecoder for static encoding lists.
func MustNewDecoder(names ...string) *Decoder {
	d, err := NewDecoder(names...)
	if err != nil {
		panic(err)
	}
	return d
}

// Encodings returns the canonical encoding names in trial order.
func (d *Decoder) Encodings() []string {
	return append([]string(nil), d.names...)
}

// Decode returns the text and the name of the encoding that accepted it.
func (d *Decoder) Decode(raw []byte) (string, string, error) {
	for i, fn := range d.funcs {
		if text, ok := fn(raw); ok {
			return text, d.names[i], nil
		}
	}
	return "", "", errors.UndecodableInput(d.Encodings())
}

func decoderFor(name string) decodeFunc {
	switch name {
	case EncodingUTF8:
		return decodeUTF8
	case EncodingUTF16:
		return decodeWith(unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM))
	case EncodingWindows1252:
		return decodeWith(charmap.Windows1252)
	default:
		return decodeWith(charmap.ISO8859_1)
	}
}

func decodeUTF8(raw []byte) (string, bool) {
	if !utf8.Valid(raw) {
		return "", false
	}
	return strings.TrimPrefix(string(raw), byteOrderMark), true
}

// decodeWith rejects output containing the replacement character, which the
// x/text decoders emit for byte sequences they cannot map.
func decodeWith(enc encoding.Encoding) decodeFunc {
	return func(raw []byte) (string, bool) {
		out, err := enc.NewDecoder().Bytes(raw)
		if err != nil {
			return "", false
		}
		text := string(out)
		if strings.ContainsRune(text, utf8.RuneError) {
			return "", false
		}
		return strings.TrimPrefix(text, byteOrderMark), true
	}
}

//Personal.AI order the ending
