package roster

import (
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/irissociety/irisportal/internal/model"
)

func TestParse_CanonicalHeader(t *testing.T) {
	csv := "Timestamp,Email Address,Name,Roll Number\n" +
		"2024/08/01 10:00:00,a@ds.study.iitm.ac.in,A,21f001\n" +
		"2024/08/01 10:05:00,b@ds.study.iitm.ac.in,B,21f002\n"

	got, err := Parse(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []model.AuthorizedRecord{
		{Email: "a@ds.study.iitm.ac.in", Name: "A"},
		{Email: "b@ds.study.iitm.ac.in", Name: "B"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

// 列は位置ではなくヘッダー名で特定される。
func TestParse_SwappedHeaderOrder(t *testing.T) {
	csv := "Name,Email Address\n\"Jane Doe\",\"jane@x.edu\"\n"

	got, err := Parse(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []model.AuthorizedRecord{{Email: "jane@x.edu", Name: "Jane Doe"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestParse_SkipRules(t *testing.T) {
	csv := "Email Address,Name\n" +
		"\"\", \"\"\n" + // 両方空
		"\n" + // 空行
		"   \n" + // 空白のみ
		"only@x.edu,\n" + // nameなし
		",Only Name\n" + // emailなし
		"short@x.edu\n" + // 列不足
		"  keep@x.edu  ,  Keep Me  \n"

	got, err := Parse(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []model.AuthorizedRecord{{Email: "keep@x.edu", Name: "Keep Me"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestParse_QuotedFieldWithComma(t *testing.T) {
	csv := "Name,Email Address,Department\n" +
		"\"Doe, Jane\",jane@x.edu,\"Data Science, BS\"\n"

	got, err := Parse(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []model.AuthorizedRecord{{Email: "jane@x.edu", Name: "Doe, Jane"}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestParse_BOMAndCRLF(t *testing.T) {
	csv := "\uFEFFEmail Address,Name\r\na@x.edu,A\r\n"

	got, err := Parse(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Email != "a@x.edu" || got[0].Name != "A" {
		t.Errorf("got %+v", got)
	}
}

func TestParse_DuplicateEmail_LastValueWins(t *testing.T) {
	csv := "Email Address,Name\n" +
		"a@x.edu,First\n" +
		"b@x.edu,B\n" +
		"a@x.edu,Second\n"

	got, err := Parse(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []model.AuthorizedRecord{
		{Email: "a@x.edu", Name: "Second"},
		{Email: "b@x.edu", Name: "B"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

// メールアドレスは大文字小文字を区別してそのまま保持する。
func TestParse_EmailCasePreserved(t *testing.T) {
	csv := "Email Address,Name\nA@X.edu,Upper\na@x.edu,Lower\n"

	got, err := Parse(strings.NewReader(csv))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(got), got)
	}
	if got[0].Email != "A@X.edu" {
		t.Errorf("email = %q, want %q", got[0].Email, "A@X.edu")
	}
}

func TestParse_MissingHeader_ReturnsFormatError(t *testing.T) {
	tests := []struct {
		name     string
		csv      string
		wantText string
	}{
		{"no email column", "Name,Phone\nJane,123\n", HeaderEmail},
		{"no name column", "Email Address,Phone\njane@x.edu,123\n", HeaderName},
		{"header case differs", "email address,name\njane@x.edu,Jane\n", HeaderEmail},
		{"empty input", "", "header"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(strings.NewReader(tt.csv))
			if err == nil {
				t.Fatalf("expected error, got records %+v", got)
			}

			var formatErr *FormatError
			if !errors.As(err, &formatErr) {
				t.Fatalf("expected *FormatError, got %T: %v", err, err)
			}
			if !strings.Contains(err.Error(), tt.wantText) {
				t.Errorf("error %q should mention %q", err.Error(), tt.wantText)
			}
			if got != nil {
				t.Errorf("expected no records, got %+v", got)
			}
		})
	}
}

func TestParse_HeaderOnly_ReturnsEmpty(t *testing.T) {
	got, err := Parse(strings.NewReader("Email Address,Name\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no records, got %+v", got)
	}
}

func TestParse_MalformedQuoting_ReturnsFormatError(t *testing.T) {
	tests := []struct {
		name string
		csv  string
	}{
		// 閉じられていない引用符が以降の行を飲み込むケース
		{"unterminated quote", "Email Address,Name\na@x.edu,\"Ann\nb@x.edu,Bob\nc@x.edu,Cat\n"},
		{"bare quote in field", "Email Address,Name\na@x.edu,Ann \"The Lens\" Lee\nb@x.edu,Bob\n"},
		{"quoted field spanning lines", "Email Address,Name\na@x.edu,\"Ann\nb@x.edu,Bob\"\nc@x.edu,Cat\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(strings.NewReader(tt.csv))
			if err == nil {
				t.Fatalf("expected error, got records %+v", got)
			}

			var formatErr *FormatError
			if !errors.As(err, &formatErr) {
				t.Fatalf("expected *FormatError, got %T: %v", err, err)
			}
			if got != nil {
				t.Errorf("expected no records, got %+v", got)
			}
		})
	}
}

func TestParse_LongNameKept(t *testing.T) {
	long := strings.Repeat("n", 300)

	got, err := Parse(strings.NewReader("Email Address,Name\na@x.edu," + long + "\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Name != long {
		t.Errorf("expected the 300-character name to be kept, got %+v", got)
	}
}
