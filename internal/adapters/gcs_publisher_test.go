package adapters

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingWriter struct {
	uri, contentType, body string
	calls                  int
	err                    error
}

func (w *recordingWriter) Write(_ context.Context, uri string, content io.Reader, contentType string) error {
	b, _ := io.ReadAll(content)
	w.calls++
	w.uri, w.contentType, w.body = uri, contentType, string(b)
	return w.err
}

type upperConverter struct{}

func (upperConverter) Convert(_ context.Context, title, markdown string) (io.Reader, error) {
	return strings.NewReader("<h1>" + title + "</h1>" + strings.ToUpper(markdown)), nil
}

func TestParseGCSURI(t *testing.T) {
	bucket, object, err := ParseGCSURI("gs://reviews/pr/1/result.html")
	require.NoError(t, err)
	assert.Equal(t, "reviews", bucket)
	assert.Equal(t, "pr/1/result.html", object)

	for _, bad := range []string{"s3://b/o", "gs://", "gs://bucket", "gs://bucket/", "gs:///object"} {
		_, _, err := ParseGCSURI(bad)
		assert.Error(t, err, bad)
	}
}

func TestGCSPublisher_Publish(t *testing.T) {
	w := &recordingWriter{}
	p := &GCSPublisher{Writer: w, Converter: upperConverter{}}

	require.NoError(t, p.Publish(context.Background(), "gs://b/o.html", "Title", "body", "text/html; charset=utf-8"))
	assert.Equal(t, "gs://b/o.html", w.uri)
	assert.Equal(t, "text/html; charset=utf-8", w.contentType)
	assert.Equal(t, "<h1>Title</h1>BODY", w.body)
}

func TestGCSPublisher_MarkdownPassthroughAndErrors(t *testing.T) {
	w := &recordingWriter{}
	p := &GCSPublisher{Writer: w}
	require.NoError(t, p.Publish(context.Background(), "gs://b/o.md", "T", "# raw", "text/markdown"))
	assert.Equal(t, "# raw", w.body)

	// local paths would be written to disk by remoteio, so they never reach the writer
	calls := w.calls
	assert.Error(t, p.Publish(context.Background(), "bad-uri", "T", "x", "text/markdown"))
	assert.Error(t, p.Publish(context.Background(), "gs://bucket-only", "T", "x", "text/markdown"))
	assert.Equal(t, calls, w.calls)

	w.err = errors.New("permission denied")
	err := p.Publish(context.Background(), "gs://b/o.md", "T", "x", "text/markdown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "gs://b/o.md")
}
