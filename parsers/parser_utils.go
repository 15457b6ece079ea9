package parsers

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// Encoding は取込ファイルの文字コードです。
type Encoding string

const (
	EncodingUTF8     Encoding = "utf8"
	EncodingShiftJIS Encoding = "sjis"
)

// ParseEncoding はフォーム値から文字コードを判定します。未指定は UTF-8 です。
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "utf8", "utf-8":
		return EncodingUTF8, nil
	case "sjis", "shift_jis", "shift-jis", "cp932":
		return EncodingShiftJIS, nil
	default:
		return "", fmt.Errorf("unsupported encoding: %s", s)
	}
}

// SkipBOM はUTF-8 BOMをスキップします。
func SkipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	peeked, err := br.Peek(3)
	if err != nil {
		return br
	}
	if peeked[0] == 0xEF && peeked[1] == 0xBB && peeked[2] == 0xBF {
		br.Discard(3)
	}
	return br
}

// decodeReader は文字コードに応じて UTF-8 の Reader を返します。
func decodeReader(r io.Reader, enc Encoding) io.Reader {
	if enc == EncodingShiftJIS {
		return transform.NewReader(r, japanese.ShiftJIS.NewDecoder())
	}
	return SkipBOM(r)
}

// getColIndex はヘッダー名から列インデックスを取得するヘルパーです。
func getColIndex(header []string, required []string) (map[string]int, error) {
	colIndex := make(map[string]int)
	for i, colName := range header {
		colIndex[strings.TrimSpace(colName)] = i
	}
	for _, req := range required {
		if _, ok := colIndex[req]; !ok {
			return nil, fmt.Errorf("required header not found: %s", req)
		}
	}
	return colIndex, nil
}
