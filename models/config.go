package models

// Config 構造体はサーバー全体の設定情報を保持します。
// config.json と PARTY_* 環境変数から viper で読み込まれます。
type Config struct {
	DBHost     string `json:"db_host" mapstructure:"db_host"`
	DBPort     int    `json:"db_port" mapstructure:"db_port"`
	DBUser     string `json:"db_user" mapstructure:"db_user"`
	DBPassword string `json:"db_password" mapstructure:"db_password"`
	DBName     string `json:"db_name" mapstructure:"db_name"`
	DBSSLMode  string `json:"db_sslmode" mapstructure:"db_sslmode"`

	RedisAddr     string `json:"redis_addr" mapstructure:"redis_addr"`
	RedisPassword string `json:"redis_password" mapstructure:"redis_password"`
	RedisDB       int    `json:"redis_db" mapstructure:"redis_db"`

	JWTSecret          string   `json:"jwt_secret" mapstructure:"jwt_secret"`
	SuperAdminUsername string   `json:"super_admin_username" mapstructure:"super_admin_username"`
	SuperAdminPassword string   `json:"super_admin_password" mapstructure:"super_admin_password"`
	AllowOrigins       []string `json:"allow_origins" mapstructure:"allow_origins"`
	Addr               string   `json:"addr" mapstructure:"addr"`
	PublicBaseURL      string   `json:"public_base_url" mapstructure:"public_base_url"`

	// アップロード先。S3Bucket が空ならローカルディスクを使う
	UploadDir   string `json:"upload_dir" mapstructure:"upload_dir"`
	S3Bucket    string `json:"s3_bucket" mapstructure:"s3_bucket"`
	S3Endpoint  string `json:"s3_endpoint" mapstructure:"s3_endpoint"`
	S3Region    string `json:"s3_region" mapstructure:"s3_region"`
	S3AccessKey string `json:"s3_access_key" mapstructure:"s3_access_key"`
	S3SecretKey string `json:"s3_secret_key" mapstructure:"s3_secret_key"`
	CDNBaseURL  string `json:"cdn_base_url" mapstructure:"cdn_base_url"`
}
