package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	flag "github.com/spf13/pflag"

	"github.com/zhouzirui/kiddybot/internal/bootstrap"
	"github.com/zhouzirui/kiddybot/internal/playback/speaker"
	"github.com/zhouzirui/kiddybot/internal/proxy"
	"github.com/zhouzirui/kiddybot/internal/service/speech"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径")
	text := flag.StringP("text", "t", "", "TTS 输入文本")
	outputPath := flag.StringP("out", "o", "", "输出音频文件路径 (默认使用 speech.output_path)")
	voice := flag.String("voice", "", "ElevenLabs 声音 ID，默认使用配置中的 voice_id")
	play := flag.Bool("play", false, "合成后立即播放")
	timeout := flag.Duration("timeout", 45*time.Second, "请求超时时间")
	flag.Parse()

	cfg, err := bootstrap.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "配置加载失败: %v\n", err)
		os.Exit(1)
	}
	cfg.Log.Pretty = true
	if err := bootstrap.SetupLogging(cfg.Log, "", os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if !cfg.Speech.Enabled() {
		log.Fatal().Msg("语音服务未启用，请先配置 ELEVENLABS_API_KEY")
	}
	if strings.TrimSpace(*text) == "" {
		flag.Usage()
		log.Fatal().Msg("需要通过 --text 提供待合成文本")
	}

	client, err := proxy.NewHTTPClient(cfg.HTTP.SocksProxy, *timeout)
	if err != nil {
		log.Fatal().Err(err).Msg("创建 HTTP 客户端失败")
	}

	synth := speech.NewSynthesizer(cfg.Speech.Model(), client).WithVoice(*voice)
	if *outputPath != "" {
		synth = synth.WithOutputPath(*outputPath)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	started := time.Now()
	path, ok := synth.Synthesize(ctx, *text)
	if !ok {
		log.Fatal().Msg("TTS 合成失败")
	}
	log.Info().Str("path", path).Dur("elapsed", time.Since(started)).Msg("TTS 合成成功")

	if *play {
		if err := speaker.New().Play(context.Background(), path); err != nil {
			log.Fatal().Err(err).Msg("播放失败")
		}
	}
}
