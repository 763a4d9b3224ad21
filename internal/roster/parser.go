// Package roster は認可ロスターCSVの取り込みを提供する。
// 入会フォームの回答CSVを解析し、authorized_usersへバッチでUPSERTする。
package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/irissociety/irisportal/internal/model"
)

// ヘッダー行で探す列名。完全一致で検索し、列の順序は問わない。
const (
	HeaderEmail = "Email Address"
	HeaderName  = "Name"
)

const utf8BOM = "\uFEFF"

// FormatError はCSVの形式が不正で取り込みを開始できない場合のエラー。
// このエラーが返された場合、ストアへの書き込みは一切行われていない。
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "invalid roster format: " + e.Reason
}

// Parse はCSVを読み込み、取り込み対象のレコードを返す。
//
// 1行目はヘッダーとして扱い、"Email Address"と"Name"の列位置を名前で決定する。
// 空行、列数が足りない行、emailまたはnameがトリム後に空の行は読み飛ばす。
// 閉じられていない引用符や、改行を含むemail・nameは形式エラーとし、1件も返さない。
// 同じemailが複数回現れた場合は最初の出現位置に最後の値を採用する。
func Parse(r io.Reader) ([]model.AuthorizedRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &FormatError{Reason: "empty file, expected a header row"}
	}
	var parseErr *csv.ParseError
	if errors.As(err, &parseErr) {
		return nil, &FormatError{Reason: fmt.Sprintf("unreadable header row: %v", err)}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}

	emailIdx, nameIdx := -1, -1
	for i, col := range header {
		col = strings.TrimSpace(strings.TrimPrefix(col, utf8BOM))
		switch col {
		case HeaderEmail:
			if emailIdx < 0 {
				emailIdx = i
			}
		case HeaderName:
			if nameIdx < 0 {
				nameIdx = i
			}
		}
	}

	var missing []string
	if emailIdx < 0 {
		missing = append(missing, fmt.Sprintf("%q", HeaderEmail))
	}
	if nameIdx < 0 {
		missing = append(missing, fmt.Sprintf("%q", HeaderName))
	}
	if len(missing) > 0 {
		return nil, &FormatError{Reason: "missing required header column " + strings.Join(missing, " and ")}
	}

	var records []model.AuthorizedRecord
	position := make(map[string]int)

	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			return nil, &FormatError{Reason: parseErr.Error()}
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read roster: %w", err)
		}

		if emailIdx >= len(row) || nameIdx >= len(row) {
			continue
		}

		email := strings.TrimSpace(row[emailIdx])
		name := strings.TrimSpace(row[nameIdx])
		if email == "" || name == "" {
			continue
		}
		if strings.ContainsAny(email, "\r\n") || strings.ContainsAny(name, "\r\n") {
			line, _ := reader.FieldPos(emailIdx)
			return nil, &FormatError{Reason: fmt.Sprintf("line break inside a field of the record starting at line %d", line)}
		}

		if i, ok := position[email]; ok {
			records[i].Name = name
			continue
		}
		position[email] = len(records)
		records = append(records, model.AuthorizedRecord{Email: email, Name: name})
	}

	return records, nil
}
