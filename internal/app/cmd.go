package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はHTTPサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker はワーカーモード（セッション掃除・ロスター定期同期）で起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandImportRoster はロスターを1回だけ取り込むことを示す。
	CommandImportRoster Command = "import-roster"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "worker":
		return CommandWorker
	case "serve":
		return CommandServe
	case "migrate":
		return CommandMigrate
	case "import-roster":
		return CommandImportRoster
	case "healthcheck":
		return CommandHealthcheck
	default:
		return CommandServe
	}
}

// ImportRosterPath はimport-rosterに渡されたローカルCSVのパスを返す。
// 指定がなければ空文字列を返し、設定済みのURLから取り込む。
func ImportRosterPath(args []string) string {
	if len(args) < 2 || args[0] != string(CommandImportRoster) {
		return ""
	}
	return args[1]
}
