package adapters

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/shouni/go-remote-io/pkg/factory"
	"github.com/shouni/go-remote-io/pkg/remoteio"
	"github.com/shouni/go-text-format/pkg/builder"
)

// GCSWriter は URI を指定したオブジェクト書き込みの抽象化です。remoteio.OutputWriter が満たします。
type GCSWriter interface {
	Write(ctx context.Context, uri string, content io.Reader, contentType string) error
}

// HTMLConverter は Markdown を完全な HTML ドキュメントに変換します。
type HTMLConverter interface {
	Convert(ctx context.Context, title, markdown string) (io.Reader, error)
}

// ParseGCSURI は "gs://bucket/object" を検証し、バケット名とオブジェクトパスに分解します。
// 分解は remoteio に任せ、アップロード先として使えないバケットのみの URI もここで拒否します。
func ParseGCSURI(gcsURI string) (bucketName, objectPath string, err error) {
	bucketName, objectPath, err = remoteio.ParseGCSURI(gcsURI)
	if err != nil {
		return "", "", fmt.Errorf("無効なGCS URIです (%s): %w", gcsURI, err)
	}
	if bucketName == "" || objectPath == "" {
		return "", "", fmt.Errorf("無効なGCS URIフォーマットです。バケット名とオブジェクトパスが不足しています: %s", gcsURI)
	}
	return bucketName, objectPath, nil
}

// NewGCSWriter は go-remote-io の ClientFactory から書き込みクライアントを取得します。
// 返される close 関数で GCS クライアントを解放してください。
func NewGCSWriter(ctx context.Context) (GCSWriter, func() error, error) {
	clientFactory, err := factory.NewClientFactory(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("ClientFactory の初期化に失敗しました: %w", err)
	}
	writer, err := clientFactory.NewOutputWriter()
	if err != nil {
		_ = clientFactory.Close()
		return nil, nil, fmt.Errorf("OutputWriterの取得に失敗しました: %w", err)
	}
	return writer, clientFactory.Close, nil
}

// MarkdownHTMLConverter は go-text-format で Markdown を HTML に変換します。
type MarkdownHTMLConverter struct{}

// Convert はタイトル見出しを付けた Markdown を HTML に変換します。
func (MarkdownHTMLConverter) Convert(ctx context.Context, title, markdown string) (io.Reader, error) {
	htmlBuilder, err := builder.NewBuilder()
	if err != nil {
		return nil, fmt.Errorf("go-text-format builderの初期化に失敗: %w", err)
	}
	runner, err := htmlBuilder.BuildMarkdownToHtmlRunner()
	if err != nil {
		return nil, fmt.Errorf("MarkdownToHtmlRunnerの構築に失敗: %w", err)
	}

	var content bytes.Buffer
	content.WriteString("# " + title + "\n\n")
	content.WriteString(markdown)

	html, err := runner.ConvertMarkdownToHtml(ctx, title, content.Bytes())
	if err != nil {
		return nil, fmt.Errorf("MarkdownからHTMLへの変換に失敗: %w", err)
	}
	return html, nil
}

// GCSPublisher はレビュー結果を HTML（または Markdown）として GCS に保存します。
type GCSPublisher struct {
	Writer    GCSWriter
	Converter HTMLConverter
}

// Publish はレビュー結果を gcsURI に保存します。Converter が nil の場合は Markdown のまま保存します。
func (p *GCSPublisher) Publish(ctx context.Context, gcsURI, title, markdown, contentType string) error {
	// remoteio.OutputWriter は gs:// 以外をローカルパスとして扱うため、ここで弾く
	if _, _, err := ParseGCSURI(gcsURI); err != nil {
		return err
	}

	var content io.Reader = strings.NewReader(markdown)
	if p.Converter != nil {
		var err error
		content, err = p.Converter.Convert(ctx, title, markdown)
		if err != nil {
			return err
		}
	}

	if err := p.Writer.Write(ctx, gcsURI, content, contentType); err != nil {
		return fmt.Errorf("GCSへの書き込みに失敗しました (URI: %s): %w", gcsURI, err)
	}
	return nil
}
