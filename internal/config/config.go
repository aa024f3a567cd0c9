package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/pkg/errors"
	"github.com/spf13/viper"

	speechmodel "github.com/zhouzirui/kiddybot/internal/model/speech"
)

const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	AI     AIConfig     `mapstructure:"ai"`
	Ark    ArkConfig    `mapstructure:"ark"`
	Speech SpeechConfig `mapstructure:"speech"`
	HTTP   HTTPConfig   `mapstructure:"http"`
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Addr string `mapstructure:"-"`
}

// LogConfig controls the zerolog global logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider    string  `mapstructure:"provider"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	Temperature float32 `mapstructure:"temperature"`
}

// ArkConfig holds the Volcengine Ark credentials used when ai.provider is "ark".
type ArkConfig struct {
	APIKey    string `mapstructure:"api_key"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	BaseURL   string `mapstructure:"base_url"`
	Region    string `mapstructure:"region"`
	Model     string `mapstructure:"model"`
}

// SpeechConfig 描述语音合成相关配置
type SpeechConfig struct {
	APIKey          string  `mapstructure:"api_key"`
	BaseURL         string  `mapstructure:"base_url"`
	VoiceID         string  `mapstructure:"voice_id"`
	ModelID         string  `mapstructure:"model_id"`
	Stability       float64 `mapstructure:"stability"`
	SimilarityBoost float64 `mapstructure:"similarity_boost"`
	Style           float64 `mapstructure:"style"`
	SpeakerBoost    bool    `mapstructure:"speaker_boost"`
	OutputPath      string  `mapstructure:"output_path"`
	AudioDir        string  `mapstructure:"audio_dir"`
	ChunkSize       int     `mapstructure:"chunk_size"`
}

// HTTPConfig configures the outbound client shared by the chat and speech adapters.
type HTTPConfig struct {
	SocksProxy string        `mapstructure:"socks_proxy"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// Load reads configuration from an optional file and the environment.
// An empty path searches ./config.yaml and ./configs/config.yaml.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(".", "configs"))
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	if err := bindLegacyEnv(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || path != "" {
			return nil, errors.Wrap(err, "failed to read config file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unable to decode config")
	}

	addr, err := resolveAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr
	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.SetDefault("ai.provider", ProviderOpenAI)
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "https://api.ai71.ai/v1/")
	v.SetDefault("ai.model", "tiiuae/falcon-180B-chat")
	v.SetDefault("ai.temperature", 0.5)

	v.SetDefault("ark.api_key", "")
	v.SetDefault("ark.access_key", "")
	v.SetDefault("ark.secret_key", "")
	v.SetDefault("ark.base_url", "https://ark.cn-beijing.volces.com/api/v3")
	v.SetDefault("ark.region", "cn-beijing")
	v.SetDefault("ark.model", "")

	defaults := speechmodel.DefaultVoiceSettings()
	v.SetDefault("speech.api_key", "")
	v.SetDefault("speech.base_url", "https://api.elevenlabs.io")
	v.SetDefault("speech.voice_id", "lbw0VLXRBdYeEtY086mt")
	v.SetDefault("speech.model_id", "eleven_multilingual_v2")
	v.SetDefault("speech.stability", defaults.Stability)
	v.SetDefault("speech.similarity_boost", defaults.SimilarityBoost)
	v.SetDefault("speech.style", defaults.Style)
	v.SetDefault("speech.speaker_boost", defaults.UseSpeakerBoost)
	v.SetDefault("speech.output_path", "./assets/speech.mp3")
	v.SetDefault("speech.audio_dir", "./assets/sessions")
	v.SetDefault("speech.chunk_size", 1024)

	v.SetDefault("http.socks_proxy", "")
	v.SetDefault("http.timeout", "0s")
}

// bindLegacyEnv keeps the provider-specific variable names working next to
// the dotted keys derived by AutomaticEnv.
func bindLegacyEnv(v *viper.Viper) error {
	bindings := map[string][]string{
		"server.port":    {"PORT", "SERVER_PORT"},
		"log.level":      {"LOG_LEVEL"},
		"ai.api_key":     {"AI_API_KEY", "AI71_API_KEY", "OPENAI_API_KEY"},
		"ark.api_key":    {"ARK_API_KEY"},
		"ark.access_key": {"ARK_ACCESS_KEY"},
		"ark.secret_key": {"ARK_SECRET_KEY"},
		"speech.api_key": {"SPEECH_API_KEY", "ELEVENLABS_API_KEY", "XI_API_KEY"},
	}
	for key, envs := range bindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return errors.Wrapf(err, "bind env for %s", key)
		}
	}
	return nil
}

// resolveAddr 解析服务器监听地址。
func resolveAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && c.APIKey != ""
}

// Enabled reports whether the Ark credentials are complete.
func (c ArkConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用 Ark 配置创建一个模型实例。
func (c ArkConfig) NewChatModel(ctx context.Context, temperature float32) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, errors.New("ark credentials or model missing: provide ARK_API_KEY + ark.model or an AK/SK pair")
	}

	temp := temperature
	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		Temperature: &temp,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create ark chat model")
	}
	return chatModel, nil
}

// Enabled reports whether speech synthesis can be attempted.
func (c SpeechConfig) Enabled() bool {
	return c.APIKey != "" && c.VoiceID != ""
}

// Model converts the flat config into the synthesizer's configuration.
func (c SpeechConfig) Model() *speechmodel.SpeechConfig {
	return &speechmodel.SpeechConfig{
		APIKey:  c.APIKey,
		BaseURL: c.BaseURL,
		VoiceID: c.VoiceID,
		ModelID: c.ModelID,
		Settings: speechmodel.VoiceSettings{
			Stability:       c.Stability,
			SimilarityBoost: c.SimilarityBoost,
			Style:           c.Style,
			UseSpeakerBoost: c.SpeakerBoost,
		},
		OutputPath: c.OutputPath,
		ChunkSize:  c.ChunkSize,
	}
}
