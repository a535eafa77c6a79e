package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/soundloop/camduck/internal/config"
	"github.com/soundloop/camduck/internal/control"
	"github.com/soundloop/camduck/internal/ducker"
	"github.com/soundloop/camduck/internal/logging"
	"github.com/soundloop/camduck/internal/metrics"
	"github.com/soundloop/camduck/internal/pipeline"
	"github.com/soundloop/camduck/internal/probe"
)

const connectAttempts = 5

func main() {
	configPath := flag.String("config", config.DefaultPath, "config file path")
	flag.Parse()

	appConfig, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Init(logging.Config{
		Level:  appConfig.Logging.Level,
		Format: appConfig.Logging.Format,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	logging.Infof("camduck starting: music=%s endpoint=%s",
		appConfig.Audio.Music.Path, appConfig.Control.Endpoint)

	mets := metrics.New()
	if appConfig.Metrics.Addr != "" {
		mets.Serve(appConfig.Metrics.Addr)
	}

	pipe, err := pipeline.Start(pipeline.Config{
		FFmpegBin:       appConfig.Pipeline.FFmpegBin,
		SinkBin:         appConfig.Pipeline.SinkBin,
		SinkArgs:        appConfig.Pipeline.SinkArgs,
		InputFormat:     appConfig.Audio.InputFormat,
		MicDevice:       appConfig.Audio.MicDevice,
		MusicPath:       appConfig.Audio.Music.Path,
		SampleRate:      appConfig.Audio.SampleRate,
		Channels:        appConfig.Audio.Channels,
		MicGain:         appConfig.Audio.MicGain,
		ControlEndpoint: appConfig.Control.Endpoint,
	})
	if err != nil {
		logging.Errorf("Failed to start pipeline: %v", err)
		logging.Sync()
		os.Exit(1)
	}
	defer pipe.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-pipe.Done()
		if ctx.Err() == nil {
			// No self-healing: the program keeps running degraded (no audio)
			// until an external restart.
			logging.Errorf("pipeline exited, running degraded until restart")
		}
	}()

	// Give ffmpeg time to parse the graph and bind the azmq endpoint before
	// the first dial.
	logging.Infof("warming up pipeline for %v", appConfig.Pipeline.Warmup.Std())
	select {
	case <-time.After(appConfig.Pipeline.Warmup.Std()):
	case <-ctx.Done():
		logging.Infof("interrupted during warmup")
		return
	}

	client := control.NewClient(control.Config{
		Endpoint:  appConfig.Control.Endpoint,
		FilterTag: appConfig.Control.FilterTag,
		Timeout:   appConfig.Control.Timeout.Std(),
	})
	defer client.Close()

	for attempt := 1; ; attempt++ {
		err = client.Connect(ctx)
		if err == nil {
			break
		}
		if attempt >= connectAttempts || ctx.Err() != nil {
			logging.Errorf("control channel unavailable after %d attempts: %v", attempt, err)
			break
		}
		logging.Warnf("control connect attempt %d failed: %v", attempt, err)
		time.Sleep(time.Second)
	}

	loop := ducker.New(ducker.Config{
		PollInterval:   appConfig.Ducking.PollInterval.Std(),
		DebounceWindow: appConfig.Ducking.DebounceWindow.Std(),
		ActiveGain:     appConfig.Audio.Music.ActiveGain,
		Parameter:      appConfig.Control.Parameter,
	}, probe.NewCamera(), client, mets)

	loop.Run(ctx)

	logging.Infof("camduck shutting down")
	pipe.Stop()
}
