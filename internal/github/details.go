package github

import "strings"

const (
	noPatchPlaceholder = "No patch data available."
	patchRule          = "--------------------------------"
)

// FormatDetails はプルリクエストのタイトル・本文と変更ファイルのパッチを、
// レビュープロンプトに埋め込むテキストに整形します。
func FormatDetails(pr *PullRequest, files []File) string {
	var sb strings.Builder

	if pr != nil {
		sb.WriteString("--- Pull Request Details ---\n")
		sb.WriteString("Title: " + pr.Title + "\n")
		sb.WriteString("Body:\n" + pr.Body + "\n\n")
	}

	sb.WriteString("--- Changed Files ---\n")
	for _, f := range files {
		patch := f.Patch
		if patch == "" {
			patch = noPatchPlaceholder
		}
		sb.WriteString("File Name: " + f.Filename + "\n")
		sb.WriteString("Patch:\n")
		sb.WriteString(patchRule + "\n")
		sb.WriteString(patch + "\n")
		sb.WriteString(patchRule + "\n")
	}

	return sb.String()
}
