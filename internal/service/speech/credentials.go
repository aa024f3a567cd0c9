package speech

import (
	"strings"

	"github.com/pkg/errors"

	speechmodel "github.com/zhouzirui/kiddybot/internal/model/speech"
)

// resolveCredentials 返回规范化后的 API Key 与音色，缺失时给出明确错误。
func resolveCredentials(cfg *speechmodel.SpeechConfig) (string, string, error) {
	if cfg == nil {
		return "", "", errors.New("speech config not initialised")
	}

	apiKey := strings.TrimSpace(cfg.APIKey)
	voiceID := strings.TrimSpace(cfg.VoiceID)
	if apiKey == "" || voiceID == "" {
		return "", "", errors.New("speech config is missing the api key or voice id")
	}

	return apiKey, voiceID, nil
}
