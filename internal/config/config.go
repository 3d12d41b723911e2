package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	apperrors "github.com/seatrade/rag-backend/internal/errors"
)

type Config struct {
	Server    ServerConfig
	AI        AIConfig
	Knowledge KnowledgeConfig
	Source    SourceConfig
	Redis     RedisConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type AIConfig struct {
	OpenAIAPIKey   string
	ChatModel      string
	EmbeddingModel string
}

type KnowledgeConfig struct {
	ChunkSize      int
	ChunkOverlap   int
	EmbedBatchSize int
	VectorStore    VectorStoreConfig
}

type VectorStoreConfig struct {
	Milvus MilvusConfig
}

type MilvusConfig struct {
	Address    string
	Username   string
	Password   string
	Collection string
	Database   string
	TLS        bool
}

// SourceConfig 文档来源配置，provider 取值 minio 或 drive
type SourceConfig struct {
	Provider string
	MinIO    ObjectStorageConfig
	Drive    DriveConfig
}

type ObjectStorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	UseSSL    bool
}

type DriveConfig struct {
	CredentialsJSON string
	FolderID        string
}

type RedisConfig struct {
	Addr    string
	DB      int
	Enabled bool
}

var AppConfig *Config

// LoadConfig 加载配置：默认值 + 环境变量覆盖
func LoadConfig() error {
	viper.SetDefault("server.port", "8000")
	viper.SetDefault("server.env", "development")

	viper.SetDefault("ai.chat_model", "gpt-4o")
	viper.SetDefault("ai.embedding_model", "text-embedding-3-large")

	// 知识库配置默认值
	viper.SetDefault("knowledge.chunk_size", 1200)
	viper.SetDefault("knowledge.chunk_overlap", 200)
	viper.SetDefault("knowledge.embed_batch_size", 64)
	viper.SetDefault("knowledge.vector_store.milvus.address", "localhost:19530")
	viper.SetDefault("knowledge.vector_store.milvus.collection", "shipping_rag")
	viper.SetDefault("knowledge.vector_store.milvus.database", "default")
	viper.SetDefault("knowledge.vector_store.milvus.tls", false)

	viper.SetDefault("source.provider", "minio")
	viper.SetDefault("source.minio.bucket", "knowledge")
	viper.SetDefault("source.minio.prefix", "user-uploads/")
	viper.SetDefault("source.minio.use_ssl", false)

	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.enabled", false)

	viper.SetEnvPrefix("RAG")
	viper.AutomaticEnv()

	// 常用环境变量别名
	if port := os.Getenv("PORT"); port != "" {
		viper.Set("server.port", port)
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		viper.Set("ai.openai_api_key", key)
	}
	if model := os.Getenv("CHAT_MODEL"); model != "" {
		viper.Set("ai.chat_model", model)
	}
	if model := os.Getenv("EMBEDDING_MODEL"); model != "" {
		viper.Set("ai.embedding_model", model)
	}
	if addr := os.Getenv("MILVUS_ADDRESS"); addr != "" {
		viper.Set("knowledge.vector_store.milvus.address", addr)
	}
	if name := os.Getenv("INDEX_NAME"); name != "" {
		viper.Set("knowledge.vector_store.milvus.collection", name)
	}
	if provider := os.Getenv("SOURCE_PROVIDER"); provider != "" {
		viper.Set("source.provider", strings.ToLower(provider))
	}
	if endpoint := os.Getenv("MINIO_ENDPOINT"); endpoint != "" {
		viper.Set("source.minio.endpoint", endpoint)
	} else if host := os.Getenv("MINIO_HOST"); host != "" {
		port := os.Getenv("MINIO_PORT")
		if port == "" {
			port = "9000"
		}
		viper.Set("source.minio.endpoint", fmt.Sprintf("%s:%s", host, port))
	}
	if accessKey := os.Getenv("MINIO_ACCESS_KEY"); accessKey != "" {
		viper.Set("source.minio.access_key", accessKey)
	}
	if secretKey := os.Getenv("MINIO_SECRET_KEY"); secretKey != "" {
		viper.Set("source.minio.secret_key", secretKey)
	}
	if bucket := os.Getenv("MINIO_BUCKET"); bucket != "" {
		viper.Set("source.minio.bucket", bucket)
	}
	if creds := os.Getenv("GOOGLE_CREDENTIALS_JSON"); creds != "" {
		viper.Set("source.drive.credentials_json", creds)
	} else if creds := os.Getenv("GOOGLE_CREDENTIALS"); creds != "" {
		viper.Set("source.drive.credentials_json", creds)
	}
	if folder := os.Getenv("DRIVE_FOLDER_ID"); folder != "" {
		viper.Set("source.drive.folder_id", folder)
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		viper.Set("redis.addr", addr)
		viper.Set("redis.enabled", true)
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: viper.GetString("server.port"),
			Env:  viper.GetString("server.env"),
		},
		AI: AIConfig{
			OpenAIAPIKey:   viper.GetString("ai.openai_api_key"),
			ChatModel:      viper.GetString("ai.chat_model"),
			EmbeddingModel: viper.GetString("ai.embedding_model"),
		},
		Knowledge: KnowledgeConfig{
			ChunkSize:      viper.GetInt("knowledge.chunk_size"),
			ChunkOverlap:   viper.GetInt("knowledge.chunk_overlap"),
			EmbedBatchSize: viper.GetInt("knowledge.embed_batch_size"),
			VectorStore: VectorStoreConfig{
				Milvus: MilvusConfig{
					Address:    viper.GetString("knowledge.vector_store.milvus.address"),
					Username:   viper.GetString("knowledge.vector_store.milvus.username"),
					Password:   viper.GetString("knowledge.vector_store.milvus.password"),
					Collection: viper.GetString("knowledge.vector_store.milvus.collection"),
					Database:   viper.GetString("knowledge.vector_store.milvus.database"),
					TLS:        viper.GetBool("knowledge.vector_store.milvus.tls"),
				},
			},
		},
		Source: SourceConfig{
			Provider: viper.GetString("source.provider"),
			MinIO: ObjectStorageConfig{
				Endpoint:  viper.GetString("source.minio.endpoint"),
				AccessKey: viper.GetString("source.minio.access_key"),
				SecretKey: viper.GetString("source.minio.secret_key"),
				Bucket:    viper.GetString("source.minio.bucket"),
				Prefix:    viper.GetString("source.minio.prefix"),
				UseSSL:    viper.GetBool("source.minio.use_ssl"),
			},
			Drive: DriveConfig{
				CredentialsJSON: viper.GetString("source.drive.credentials_json"),
				FolderID:        viper.GetString("source.drive.folder_id"),
			},
		},
		Redis: RedisConfig{
			Addr:    viper.GetString("redis.addr"),
			DB:      viper.GetInt("redis.db"),
			Enabled: viper.GetBool("redis.enabled"),
		},
	}

	AppConfig = cfg
	return nil
}

// Validate 校验必需配置，缺失时服务不应接受流量
func (c *Config) Validate() error {
	if strings.TrimSpace(c.AI.OpenAIAPIKey) == "" {
		return apperrors.NewConfigError("OPENAI_API_KEY")
	}
	if c.Knowledge.VectorStore.Milvus.Collection == "" {
		return apperrors.NewConfigError("INDEX_NAME")
	}

	switch c.Source.Provider {
	case "minio":
		if c.Source.MinIO.Endpoint == "" {
			return apperrors.NewConfigError("MINIO_ENDPOINT")
		}
		if c.Source.MinIO.AccessKey == "" || c.Source.MinIO.SecretKey == "" {
			return apperrors.NewConfigError("MINIO_ACCESS_KEY/MINIO_SECRET_KEY")
		}
	case "drive":
		if c.Source.Drive.CredentialsJSON == "" {
			return apperrors.NewConfigError("GOOGLE_CREDENTIALS_JSON")
		}
		if c.Source.Drive.FolderID == "" {
			return apperrors.NewConfigError("DRIVE_FOLDER_ID")
		}
	default:
		return apperrors.NewConfigError(fmt.Sprintf("unknown source provider %q", c.Source.Provider))
	}

	return nil
}

// GetAppConfig 获取全局配置
func GetAppConfig() *Config {
	return AppConfig
}
