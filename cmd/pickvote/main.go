// pickvote はソーシャル投票サービスのエントリーポイント。
// サブコマンド: serve（デフォルト）, migrate, healthcheck
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/pickvote/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
