// Command traderdesk はトレーダー予約APIサーバーと運用サブコマンドを提供する。
//
//	traderdesk serve                 APIサーバーを起動（既定）
//	traderdesk migrate [up|down N|version]
//	traderdesk healthcheck           /health を確認（コンテナ用）
//	traderdesk token <user-id>       開発用Bearerトークンを発行
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/traderdesk/internal/app"
)

func main() {
	if err := app.Run(os.Stderr, os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
