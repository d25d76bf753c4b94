package pipeline

import (
	"fmt"
	"strings"
)

// CommentMarker はこのツールが投稿したコメントを識別するための不可視マーカーです。
const CommentMarker = "<!-- git-cody-reviewer:review -->"

// FormatComment はレビュー本文をPRコメントの本文に整形します。
func FormatComment(res *Result) string {
	var sb strings.Builder
	sb.WriteString(CommentMarker + "\n")
	fmt.Fprintf(&sb, "## AI Code Review (%s)\n\n", res.Engine)
	sb.WriteString(strings.TrimSpace(res.Review))
	sb.WriteString("\n\n---\n")
	fmt.Fprintf(&sb, "<sub>run: `%s`</sub>\n", res.RunID)
	return sb.String()
}
