package roster

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
)

// ErrTooLarge は取り込み元の本文がサイズ上限を超えた場合のエラー。
var ErrTooLarge = errors.New("roster exceeds maximum size")

// Source は取り込み元のCSVを開く。
type Source interface {
	// Open はCSV本文を返す。呼び出し側がCloseする。
	Open(ctx context.Context) (io.ReadCloser, error)
	// String はログ出力用の取り込み元表記を返す。
	String() string
}

// HTTPSource はURLからCSVを取得するSource。
type HTTPSource struct {
	URL     string
	Client  *http.Client
	MaxSize int64 // 0以下の場合は上限なし
}

var _ Source = (*HTTPSource)(nil)

// NewHTTPSource はHTTPSourceを生成する。
// clientにはSSRF対策済みのクライアントを渡すことを想定している。
func NewHTTPSource(url string, client *http.Client, maxSize int64) *HTTPSource {
	return &HTTPSource{URL: url, Client: client, MaxSize: maxSize}
}

// Open はGETでCSVを取得する。200以外のステータスはエラーとする。
// 本文がMaxSizeを超える場合は読み込み時にエラーを返す。
func (s *HTTPSource) Open(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create roster request: %w", err)
	}
	req.Header.Set("Accept", "text/csv, text/plain;q=0.9, */*;q=0.1")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch roster: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to fetch roster: unexpected status %d", resp.StatusCode)
	}

	if s.MaxSize <= 0 {
		return resp.Body, nil
	}
	return &limitedBody{r: io.LimitReader(resp.Body, s.MaxSize+1), c: resp.Body, max: s.MaxSize}, nil
}

func (s *HTTPSource) String() string { return s.URL }

// limitedBody は上限を超えた時点でErrTooLargeを返すReadCloser。
type limitedBody struct {
	r    io.Reader
	c    io.Closer
	max  int64
	read int64
}

func (b *limitedBody) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	b.read += int64(n)
	if b.read > b.max {
		return 0, fmt.Errorf("%w of %d bytes", ErrTooLarge, b.max)
	}
	return n, err
}

func (b *limitedBody) Close() error { return b.c.Close() }

// FileSource はローカルファイルからCSVを読むSource。CLIからの取り込みに使う。
type FileSource struct {
	Path string
}

var _ Source = (*FileSource)(nil)

// Open はファイルを開く。
func (s *FileSource) Open(_ context.Context) (io.ReadCloser, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open roster file: %w", err)
	}
	return f, nil
}

func (s *FileSource) String() string { return s.Path }
