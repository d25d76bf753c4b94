// Package diffstat は unified diff を解析し、ファイルごとの追加・削除行数を集計します。
package diffstat

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/sourcegraph/go-diff/diff"
)

const devNull = "/dev/null"

// FileStat は1ファイル分の変更統計です。
type FileStat struct {
	Name    string
	Added   int
	Deleted int
}

// Summary は差分全体の統計です。
type Summary struct {
	Files []FileStat
}

// Totals は全ファイルの追加・削除行数の合計を返します。
func (s Summary) Totals() (added, deleted int) {
	for _, f := range s.Files {
		added += f.Added
		deleted += f.Deleted
	}
	return added, deleted
}

// String はプロンプトやログに埋め込むための人間向けの表現を返します。
func (s Summary) String() string {
	if len(s.Files) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, f := range s.Files {
		fmt.Fprintf(&sb, "- %s (+%d -%d)\n", f.Name, f.Added, f.Deleted)
	}
	added, deleted := s.Totals()
	fmt.Fprintf(&sb, "合計: %d files (+%d -%d)", len(s.Files), added, deleted)
	return sb.String()
}

// FromGitDiff は git diff 形式の複数ファイル差分を集計します。
func FromGitDiff(unified string) (Summary, error) {
	if strings.TrimSpace(unified) == "" {
		return Summary{}, nil
	}
	fileDiffs, err := diff.ParseMultiFileDiff([]byte(unified))
	if err != nil {
		return Summary{}, fmt.Errorf("差分の解析に失敗しました: %w", err)
	}

	summary := Summary{Files: make([]FileStat, 0, len(fileDiffs))}
	for _, fd := range fileDiffs {
		stat := FileStat{Name: fileName(fd)}
		for _, h := range fd.Hunks {
			a, d := countBody(h.Body)
			stat.Added += a
			stat.Deleted += d
		}
		summary.Files = append(summary.Files, stat)
	}
	return summary, nil
}

// FromPatch は GitHub API が返すファイル単位のパッチ（ハンクのみ）を集計します。
// パッチが空の場合（バイナリや巨大なファイル）はゼロの統計を返します。
func FromPatch(name, patch string) (FileStat, error) {
	stat := FileStat{Name: name}
	if strings.TrimSpace(patch) == "" {
		return stat, nil
	}
	if !strings.HasSuffix(patch, "\n") {
		patch += "\n"
	}
	hunks, err := diff.ParseHunks([]byte(patch))
	if err != nil {
		return stat, fmt.Errorf("%s のパッチ解析に失敗しました: %w", name, err)
	}
	for _, h := range hunks {
		a, d := countBody(h.Body)
		stat.Added += a
		stat.Deleted += d
	}
	return stat, nil
}

func fileName(fd *diff.FileDiff) string {
	name := fd.NewName
	if name == devNull || name == "" {
		name = fd.OrigName
	}
	return trimPrefix(name)
}

func trimPrefix(name string) string {
	if strings.HasPrefix(name, "a/") || strings.HasPrefix(name, "b/") {
		return name[2:]
	}
	return name
}

func countBody(body []byte) (added, deleted int) {
	for _, line := range bytes.Split(body, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		switch line[0] {
		case '+':
			added++
		case '-':
			deleted++
		}
	}
	return added, deleted
}
