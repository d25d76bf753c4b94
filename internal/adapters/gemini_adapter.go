package adapters

import (
	"context"
	"errors"
	"fmt"

	"github.com/shouni/go-ai-client/v2/pkg/ai/gemini"
)

const (
	// コードレビューの一貫性を優先するため、低い温度に設定
	defaultGeminiTemperature = float32(0.2)
	// 一時的なネットワークエラーやAPIのレート制限に対応するためのリトライ回数
	defaultGeminiMaxRetries = uint64(3)
)

// CodeReviewAI はレビューエンジンの抽象化です。
type CodeReviewAI interface {
	// ReviewCodeDiff は完成されたプロンプトを基にレビューを依頼し、レビュー本文を返します。
	ReviewCodeDiff(ctx context.Context, finalPrompt string) (string, error)
}

// GeminiAdapter は go-ai-client の gemini.Client をラップした CodeReviewAI です。
type GeminiAdapter struct {
	client    *gemini.Client
	modelName string
}

// NewGeminiAdapter は温度 0.2・リトライ3回の設定で GeminiAdapter を初期化します。
func NewGeminiAdapter(ctx context.Context, apiKey, modelName string) (*GeminiAdapter, error) {
	if apiKey == "" {
		return nil, errors.New("Gemini の APIキーが空です")
	}

	temperature := defaultGeminiTemperature
	cfg := gemini.Config{
		APIKey:      apiKey,
		Temperature: &temperature,
		MaxRetries:  defaultGeminiMaxRetries,
	}

	client, err := gemini.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize underlying gemini client: %w", err)
	}

	return &GeminiAdapter{
		client:    client,
		modelName: modelName,
	}, nil
}

// ReviewCodeDiff は CodeReviewAI インターフェースを満たします。
func (ga *GeminiAdapter) ReviewCodeDiff(ctx context.Context, finalPrompt string) (string, error) {
	resp, err := ga.client.GenerateContent(ctx, finalPrompt, ga.modelName)
	if err != nil {
		return "", fmt.Errorf("Gemini API call failed (Model: %s): %w", ga.modelName, err)
	}
	return resp.Text, nil
}
