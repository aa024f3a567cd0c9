package speech

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	speechmodel "github.com/zhouzirui/kiddybot/internal/model/speech"
)

const (
	defaultBaseURL   = "https://api.elevenlabs.io"
	defaultChunkSize = 1024
	audioMIMEType    = "audio/mpeg"
)

// Synthesizer 调用 ElevenLabs 流式 TTS 接口并把音频写入固定文件。
// 每次调用都会覆盖同一个文件，写入过程由互斥锁串行化。
type Synthesizer struct {
	config *speechmodel.SpeechConfig
	client *http.Client

	mu *sync.Mutex
}

// NewSynthesizer creates a synthesizer. A nil client falls back to a client without timeout.
func NewSynthesizer(cfg *speechmodel.SpeechConfig, client *http.Client) *Synthesizer {
	if client == nil {
		client = &http.Client{}
	}
	copied := *cfg
	if copied.BaseURL == "" {
		copied.BaseURL = defaultBaseURL
	}
	if copied.ChunkSize <= 0 {
		copied.ChunkSize = defaultChunkSize
	}

	return &Synthesizer{
		config: &copied,
		client: client,
		mu:     &sync.Mutex{},
	}
}

// WithOutputPath returns a synthesizer sharing the configuration but writing to path.
// The copy has its own lock.
func (s *Synthesizer) WithOutputPath(path string) *Synthesizer {
	copied := *s.config
	copied.OutputPath = path
	return &Synthesizer{config: &copied, client: s.client, mu: &sync.Mutex{}}
}

// WithVoice returns a synthesizer speaking with voiceID, keeping the output path and lock.
// An empty voiceID keeps the configured voice.
func (s *Synthesizer) WithVoice(voiceID string) *Synthesizer {
	voiceID = ResolveVoice(voiceID, s.config.VoiceID)
	if voiceID == s.config.VoiceID {
		return s
	}
	copied := *s.config
	copied.VoiceID = voiceID
	return &Synthesizer{config: &copied, client: s.client, mu: s.mu}
}

// OutputPath reports the file each successful synthesis overwrites.
func (s *Synthesizer) OutputPath() string {
	return s.config.OutputPath
}

// Enabled reports whether credentials are present.
func (s *Synthesizer) Enabled() bool {
	if s == nil {
		return false
	}
	_, _, err := resolveCredentials(s.config)
	return err == nil
}

// Synthesize converts text to speech and writes it to the output path.
// It returns the path and true on success. Any non-200 status or transport
// failure yields ("", false) and leaves the file untouched.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (string, bool) {
	path := s.config.OutputPath
	if path == "" {
		log.Warn().Str("component", "tts").Msg("no output path configured")
		return "", false
	}

	resp, err := s.open(ctx, text)
	if err != nil {
		log.Warn().Str("component", "tts").Err(err).Msg("synthesis request failed")
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Str("component", "tts").Int("status", resp.StatusCode).Msg("synthesis rejected")
		return "", false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	written, err := s.writeFile(path, resp.Body)
	if err != nil {
		log.Warn().Str("component", "tts").Str("path", path).Err(err).Msg("write audio failed")
		return "", false
	}

	log.Debug().Str("component", "tts").Str("path", path).Int64("bytes", written).Msg("audio written")
	return path, true
}

// Stream synthesizes text and copies the audio straight to w.
func (s *Synthesizer) Stream(ctx context.Context, text string, w io.Writer) (int64, error) {
	resp, err := s.open(ctx, text)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, errors.Errorf("tts endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return io.CopyBuffer(w, resp.Body, make([]byte, s.config.ChunkSize))
}

func (s *Synthesizer) open(ctx context.Context, text string) (*http.Response, error) {
	apiKey, voiceID, err := resolveCredentials(s.config)
	if err != nil {
		return nil, err
	}

	body, err := sonic.Marshal(speechmodel.TTSRequest{
		Text:          text,
		ModelID:       s.config.ModelID,
		VoiceSettings: s.config.Settings,
	})
	if err != nil {
		return nil, errors.Wrap(err, "encode tts request")
	}

	endpoint := strings.TrimRight(s.config.BaseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(voiceID) + "/stream"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "build tts request")
	}
	req.Header.Set("Accept", audioMIMEType)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "post tts request")
	}
	return resp, nil
}

func (s *Synthesizer) writeFile(path string, body io.Reader) (int64, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, errors.Wrap(err, "create audio directory")
		}
	}

	// 写入同目录的临时文件，完整写入后再替换输出文件。
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, errors.Wrap(err, "create audio file")
	}
	tmp := f.Name()

	written, copyErr := io.CopyBuffer(f, body, make([]byte, s.config.ChunkSize))
	closeErr := f.Close()
	if copyErr != nil {
		os.Remove(tmp)
		return written, errors.Wrap(copyErr, "stream audio")
	}
	if closeErr != nil {
		os.Remove(tmp)
		return written, errors.Wrap(closeErr, "close audio file")
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return written, errors.Wrap(err, "replace audio file")
	}
	return written, nil
}
