package config

import "fmt"

// レビューエンジンの識別子
const (
	EngineCody   = "cody"
	EngineGemini = "gemini"
)

// ReviewConfig はAIコードレビューに必要なすべての設定を含みます。
// この構造体は、コマンドライン引数からサービスロジックへ設定を渡すための共通のデータモデルです。
type ReviewConfig struct {
	ReviewMode       string
	Engine           string
	GeminiModel      string
	RepoURL          string
	BaseBranch       string
	FeatureBranch    string
	SSHKeyPath       string
	LocalPath        string
	SkipHostKeyCheck bool
}

// ValidateEngine は指定されたレビューエンジンが既知のものか確認します。
func ValidateEngine(engine string) error {
	switch engine {
	case EngineCody, EngineGemini:
		return nil
	default:
		return fmt.Errorf("無効なレビューエンジンが指定されました: '%s'。'%s' または '%s' を選択してください", engine, EngineCody, EngineGemini)
	}
}
