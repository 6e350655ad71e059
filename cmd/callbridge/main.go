// callbridge: voice bridge between a telephony media stream and the
// STT -> LLM -> TTS pipeline that holds the conversation.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/teslashibe/go-callbridge/internal/config"
	"github.com/teslashibe/go-callbridge/internal/log"
	"github.com/teslashibe/go-callbridge/pkg/bridge"
	"github.com/teslashibe/go-callbridge/pkg/dialog"
	"github.com/teslashibe/go-callbridge/pkg/stt"
	"github.com/teslashibe/go-callbridge/pkg/tts"
)

var version = "1.0.0"

var (
	addr      = flag.String("addr", config.DefaultListenAddr, "HTTP listen address")
	logLevel  = flag.String("log-level", "info", "Log level: debug, info, warn, error")
	ttsStream = flag.Bool("tts-stream", false, "Use the websocket streaming TTS endpoint")
	voiceID   = flag.String("voice", "", "ElevenLabs voice ID (overrides ELEVENLABS_VOICE_ID)")
)

func main() {
	flag.Parse()
	log.Init(*logLevel)

	if envAddr := os.Getenv("LISTEN_ADDR"); envAddr != "" && *addr == config.DefaultListenAddr {
		*addr = envAddr
	}

	elevenKey := config.EnvRequired("ELEVENLABS_API_KEY")
	openAIKey := config.EnvRequired("OPENAI_API_KEY")

	voice := *voiceID
	if voice == "" {
		voice = config.VoiceID()
	}

	sttProvider, err := stt.NewElevenLabs(
		stt.WithAPIKey(elevenKey),
		stt.WithLogger(log.With("component", "stt")),
	)
	if err != nil {
		log.Error("Failed to create transcription provider", "error", err)
		os.Exit(1)
	}
	defer sttProvider.Close()

	ttsProvider, err := newTTSProvider(elevenKey, voice)
	if err != nil {
		log.Error("Failed to create synthesis provider", "error", err)
		os.Exit(1)
	}
	defer ttsProvider.Close()

	gen, err := dialog.NewClient(
		dialog.WithAPIKey(openAIKey),
		dialog.WithLogger(log.With("component", "dialog")),
	)
	if err != nil {
		log.Error("Failed to create dialog generator", "error", err)
		os.Exit(1)
	}

	orch := bridge.NewOrchestrator(sttProvider, gen, ttsProvider,
		bridge.WithLogger(log.L()))
	gateway := bridge.NewGateway(orch)

	app := fiber.New(fiber.Config{
		AppName:               "callbridge",
		DisableStartupMessage: true,
	})
	app.Use(recover.New())

	gateway.RegisterRoutes(app)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "ok",
			"version": version,
			"calls":   gateway.ActiveSessions(),
		})
	})

	go func() {
		log.Info("Starting server",
			"addr", *addr,
			"media_stream", fmt.Sprintf("ws://localhost%s/media-stream", *addr),
			"voice", voice,
			"tts_stream", *ttsStream)
		if err := app.Listen(*addr); err != nil {
			log.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down", "active_calls", gateway.ActiveSessions())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Error("Shutdown error", "error", err)
	}
}

// newTTSProvider picks the HTTP or websocket streaming synthesis client.
func newTTSProvider(apiKey, voice string) (tts.Provider, error) {
	opts := []tts.Option{
		tts.WithAPIKey(apiKey),
		tts.WithVoice(voice),
		tts.WithLogger(log.With("component", "tts")),
	}
	if *ttsStream {
		return tts.NewElevenLabsWS(opts...)
	}
	return tts.NewElevenLabs(opts...)
}
