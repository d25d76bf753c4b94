package main

import "git-cody-reviewer-go/cmd"

// main はプログラムのエントリポイントです。全ての CLI ロジックを cmd パッケージに委譲します。
func main() {
	cmd.Execute()
}
