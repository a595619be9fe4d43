package models

// Config 構造体はデータベース接続の設定情報を保持します。
// DBBackendが"sqlite"の場合はDBPathのファイルに接続する（開発用）。
type Config struct {
	DBBackend  string `json:"db_backend"`
	DBHost     string `json:"db_host"`
	DBUser     string `json:"db_user"`
	DBPassword string `json:"db_password"`
	DBName     string `json:"db_name"`
	DBSSLMode  string `json:"db_sslmode"`
	DBPath     string `json:"db_path"`
}
