// Command dictate records a dictation from the default microphone and drives
// transcription, document generation and saving from a terminal prompt.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"daisy-dictation-service/internal/app"
	"daisy-dictation-service/internal/config"
	"daisy-dictation-service/internal/notify"
	"daisy-dictation-service/internal/service/device/portaudio"
	"daisy-dictation-service/internal/service/dictation"
	"daisy-dictation-service/internal/service/playback"
)

const usage = `commands:
  start | pause | resume | stop   control the recording
  play                            play the last recording
  transcribe                      transcribe the last recording
  generate                        generate a document from the last transcript
  save <name>                     save the last document
  status                          show the session state
  quit`

func main() {
	envFile := flag.String("env", ".env", "Path to env file")
	flag.Parse()

	if err := config.LoadDotEnv(*envFile); err != nil {
		log.Fatal().Err(err).Msg("Failed to load env file")
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create application")
	}
	defer application.Shutdown()
	if err := application.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	// Playback handles are served on loopback only.
	registry := playback.NewRegistry("")
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to listen for playback")
	}
	registry.SetBaseURL("http://" + lis.Addr().String())
	playbackServer := &http.Server{Handler: registry, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := playbackServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Playback server failed")
		}
	}()
	defer playbackServer.Close()

	dev := portaudio.New(cfg.Recording.SampleRateHz, cfg.Recording.Timeslice)
	player := playback.NewExecPlayer(cfg.Playback.Command, cfg.Playback.Args)
	session := application.NewSession(dev, registry, player, notify.Func(printNotification))
	defer session.Close()

	fmt.Println(usage)
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		fmt.Print("> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Println()
			return
		case l, ok := <-lines:
			if !ok {
				return
			}
			line = l
		}
		if !run(ctx, session, strings.Fields(line)) {
			return
		}
	}
}

// run executes one command and reports whether the prompt should continue.
func run(ctx context.Context, s *dictation.Session, args []string) bool {
	if len(args) == 0 {
		return true
	}
	var err error
	switch args[0] {
	case "start":
		err = s.StartRecording(ctx)
	case "pause":
		err = s.PauseRecording()
	case "resume":
		err = s.ResumeRecording()
	case "stop":
		stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err = s.StopRecording(stopCtx)
		cancel()
	case "play":
		go func() {
			if err := s.Play(ctx); err != nil && !errors.Is(err, playback.ErrInterrupted) {
				log.Debug().Err(err).Msg("Playback ended")
			}
		}()
	case "transcribe":
		res, terr := s.Transcribe(ctx)
		if terr == nil {
			fmt.Printf("\n%s\n\n", res.Transcript)
		}
		err = terr
	case "generate":
		_, err = s.GenerateDocument(ctx, "", func(fragment string) {
			fmt.Print(fragment)
		})
		fmt.Println()
	case "save":
		if len(args) < 2 {
			fmt.Println("usage: save <name>")
			return true
		}
		_, err = s.SaveDocument(ctx, strings.Join(args[1:], " "))
	case "status":
		st := s.Status()
		fmt.Printf("state=%s elapsed=%s recording=%v transcribing=%v generating=%v playing=%v\n",
			st.Recording.State, st.Elapsed, st.Recording.HasArtifact, st.Transcribing, st.Generating, st.Playing)
	case "quit", "exit":
		return false
	case "help":
		fmt.Println(usage)
	default:
		fmt.Printf("unknown command %q\n", args[0])
	}
	if err != nil {
		log.Debug().Err(err).Str("command", args[0]).Msg("Command failed")
	}
	return true
}

func printNotification(n notify.Notification) {
	fmt.Printf("[%s] %s\n", strings.ToUpper(string(n.Level)), n.Message)
}
