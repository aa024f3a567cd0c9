package speech

// VoiceSettings 对应 ElevenLabs voice_settings 字段
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// DefaultVoiceSettings returns the tuning the bot voice was designed with.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.5,
		SimilarityBoost: 0.8,
		Style:           0.0,
		UseSpeakerBoost: true,
	}
}

// SpeechConfig 语音合成服务配置
type SpeechConfig struct {
	APIKey     string        `json:"-"`
	BaseURL    string        `json:"baseUrl"`
	VoiceID    string        `json:"voiceId"`
	ModelID    string        `json:"modelId"`
	Settings   VoiceSettings `json:"voiceSettings"`
	OutputPath string        `json:"outputPath"` // 每次合成覆盖写入的固定文件
	ChunkSize  int           `json:"chunkSize"`
}
