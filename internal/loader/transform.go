package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// blockComment matches /* ... */ comments, including ones spanning lines.
var blockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)

var (
	errNotObject    = errors.New("document is not a JSON object")
	errTrailingData = errors.New("unexpected data after JSON document")
	errInvalidUTF8  = errors.New("text is not valid UTF-8")
)

// DecodeText converts raw file bytes to UTF-8, honouring and dropping a
// leading byte-order mark. Text without a UTF-16 mark must already be valid
// UTF-8; the decoder would otherwise substitute U+FFFD for bad bytes.
func DecodeText(raw []byte) ([]byte, error) {
	if !hasUTF16BOM(raw) && !utf8.Valid(bytes.TrimPrefix(raw, utf8BOM)) {
		return nil, errInvalidUTF8
	}

	decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), raw)
	if err != nil {
		return nil, err
	}
	return decoded, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func hasUTF16BOM(raw []byte) bool {
	return bytes.HasPrefix(raw, []byte{0xFF, 0xFE}) || bytes.HasPrefix(raw, []byte{0xFE, 0xFF})
}

// StripComments removes block comments from source text before parsing.
func StripComments(text []byte) []byte {
	return blockComment.ReplaceAll(text, nil)
}

// ParseObject parses text as a single JSON object. Numbers are kept as
// json.Number so large identifiers survive re-encoding untouched.
func ParseObject(text []byte) (map[string]interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(text))
	dec.UseNumber()

	var value interface{}
	if err := dec.Decode(&value); err != nil {
		return nil, err
	}
	var extra interface{}
	if err := dec.Decode(&extra); err != io.EOF {
		return nil, errTrailingData
	}

	obj, ok := value.(map[string]interface{})
	if !ok {
		return nil, errNotObject
	}
	return obj, nil
}

// Unwrap returns the object stored under key.
func Unwrap(obj map[string]interface{}, key string) (map[string]interface{}, error) {
	value, ok := obj[key]
	if !ok {
		return nil, fmt.Errorf("missing key %q", key)
	}
	body, ok := value.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("value under %q is not a JSON object", key)
	}
	return body, nil
}
