package source

import (
	"bytes"
	"fmt"
	"io"
	stdpath "path"
	"strings"
	"unicode/utf8"

	pdf "github.com/ledongthuc/pdf"
)

// decodeObject turns raw object bytes into uploadable text. PDF objects get
// their plain text extracted; everything else is treated as UTF-8 text.
func decodeObject(key string, data []byte) (FetchedDocument, error) {
	name := stdpath.Base(key)

	if strings.EqualFold(stdpath.Ext(key), ".pdf") {
		text, err := extractPDFText(data)
		if err != nil {
			return FetchedDocument{}, err
		}
		return FetchedDocument{Content: text, Name: name}, nil
	}

	if !utf8.Valid(data) {
		return FetchedDocument{}, fmt.Errorf("object is not valid UTF-8 text")
	}

	return FetchedDocument{Content: string(data), Name: name}, nil
}

func extractPDFText(data []byte) (string, error) {
	reader := bytes.NewReader(data)
	doc, err := pdf.NewReader(reader, int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	plain, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	buf := &bytes.Buffer{}
	if _, err := io.Copy(buf, plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	return strings.TrimSpace(buf.String()), nil
}
