package fetcher

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/encoding/korean"
)

func collectRows(t *testing.T, rowCh <-chan []string, errCh <-chan error) ([][]string, error) {
	t.Helper()
	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	// Drain error channel
	for err := range errCh {
		if err != nil {
			return rows, err
		}
	}
	return rows, nil
}

func TestStreamCSV_Basic(t *testing.T) {
	input := "키워드,노출수,클릭수\n무선 청소기,100,2\n로봇청소기,300,9\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"키워드", "노출수", "클릭수"}, rows[0])
	assert.Equal(t, []string{"무선 청소기", "100", "2"}, rows[1])
	assert.Equal(t, []string{"로봇청소기", "300", "9"}, rows[2])
}

func TestStreamCSV_WithHeader(t *testing.T) {
	input := "keyword,clicks\na,30\nb,25\n"
	headerCh := make(chan []string, 1)

	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		HasHeader: true,
		HeaderCh:  headerCh,
	})

	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)

	// Data rows should not include header
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"a", "30"}, rows[0])
	assert.Equal(t, []string{"b", "25"}, rows[1])

	header := <-headerCh
	assert.Equal(t, []string{"keyword", "clicks"}, header)
}

func TestStreamCSV_HasHeaderNoHeaderCh(t *testing.T) {
	input := "keyword,clicks\na,30\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		HasHeader: true,
	})

	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"a", "30"}, rows[0])
}

func TestStreamCSV_QuotedThousands(t *testing.T) {
	input := "키워드,광고비\n\"무선 청소기\",\"1,234\"\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"무선 청소기", "1,234"}, rows[1])
}

func TestStreamCSV_TabDelimitedTrimmed(t *testing.T) {
	input := " 키워드 \t 클릭수 \n a \t 1 \n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Delimiter: '\t',
		TrimSpace: true,
	})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"키워드", "클릭수"}, rows[0])
	assert.Equal(t, []string{"a", "1"}, rows[1])
}

func TestStreamCSV_Comment(t *testing.T) {
	input := "# exported 2024-05-01\na,b\n1,2\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		Comment: '#',
	})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"a", "b"}, rows[0])
}

func TestStreamCSV_VariableFields(t *testing.T) {
	input := "a,b,c\n1,2\n3,4,5,6\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{})

	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Len(t, rows[1], 2)
	assert.Len(t, rows[2], 4)
}

func TestStreamCSV_LazyQuotes(t *testing.T) {
	input := "a,b,c\n1,\"hello \"world\",3\n"
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(input), CSVOptions{
		LazyQuotes: true,
	})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}

func TestStreamCSV_Empty(t *testing.T) {
	rowCh, errCh := StreamCSV(context.Background(), strings.NewReader(""), CSVOptions{})
	rows, err := collectRows(t, rowCh, errCh)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStreamCSV_StripsUTF8BOM(t *testing.T) {
	input := "\xEF\xBB\xBF키워드,클릭수\na,1\n"
	rows, err := ReadCSV(context.Background(), strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "키워드", rows[0][0])
}

func TestStreamCSV_EUCKR(t *testing.T) {
	encoded, err := korean.EUCKR.NewEncoder().String("키워드,광고 노출 지면\n무선 청소기,검색 영역\n")
	require.NoError(t, err)

	rows, err := ReadCSV(context.Background(), strings.NewReader(encoded), CSVOptions{Encoding: EncodingEUCKR})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"키워드", "광고 노출 지면"}, rows[0])
	assert.Equal(t, []string{"무선 청소기", "검색 영역"}, rows[1])
}

func TestStreamCSV_UnsupportedEncoding(t *testing.T) {
	_, err := ReadCSV(context.Background(), strings.NewReader("a\n"), CSVOptions{Encoding: "latin-9"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported encoding")
}

func TestStreamCSV_ReadError(t *testing.T) {
	r := &failingReader{
		data:    "a,b,c\n1,2,3\n",
		failAt:  10,
		failErr: io.ErrUnexpectedEOF,
	}

	_, err := ReadCSV(context.Background(), r, CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "csv: read row")
}

// failingReader returns an error after reading failAt bytes.
type failingReader struct {
	data    string
	pos     int
	failAt  int
	failErr error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if r.pos >= r.failAt {
		return 0, r.failErr
	}
	remaining := r.data[r.pos:]
	n := copy(p, remaining)
	if r.pos+n >= r.failAt {
		n = r.failAt - r.pos
		r.pos = r.failAt
		return n, nil
	}
	r.pos += n
	return n, nil
}

func TestStreamCSV_ContextCancellation(t *testing.T) {
	var sb strings.Builder
	for range 10000 {
		sb.WriteString("a,1,2\n")
	}

	ctx, cancel := context.WithCancel(context.Background())
	rowCh, errCh := StreamCSV(ctx, strings.NewReader(sb.String()), CSVOptions{})

	count := 0
	for range rowCh {
		count++
		if count >= 5 {
			cancel()
			break
		}
	}
	for range rowCh { //nolint:revive // drain
	}

	var gotErr error
	for err := range errCh {
		if err != nil {
			gotErr = err
		}
	}
	// Either we get a context cancelled error or the goroutine finished before noticing
	if gotErr != nil {
		assert.Contains(t, gotErr.Error(), "context cancelled")
	}
	cancel()
}

func TestReadCSV_AlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReadCSV(ctx, strings.NewReader("a,b\n1,2\n"), CSVOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "context cancelled")
}
