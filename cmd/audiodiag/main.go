package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/gordonklaus/portaudio"

	"github.com/soundloop/camduck/internal/config"
)

// audiodiag is a preflight check for camduck: it lists the host's audio
// devices and verifies the configured sample rate against the default output
// device, which is where the playback sink renders.
func main() {
	configPath := flag.String("config", config.DefaultPath, "config file path")
	flag.Parse()

	sampleRate := config.DefaultConfig().Audio.SampleRate
	if cfg, err := config.Load(*configPath); err == nil {
		sampleRate = cfg.Audio.SampleRate
	}

	fmt.Println("=== camduck Audio Device Diagnostics ===")
	fmt.Println()

	if err := portaudio.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize PortAudio: %v\n", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	hostAPIs, err := portaudio.HostApis()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get host APIs: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Found %d Host API(s):\n", len(hostAPIs))
	for i, api := range hostAPIs {
		fmt.Printf("  [%d] %s (devices: %d)\n", i, api.Name, len(api.Devices))
	}
	fmt.Println()

	defaultInput, err := portaudio.DefaultInputDevice()
	if err != nil {
		fmt.Printf("Default Input Device: (error: %v)\n", err)
	} else {
		fmt.Printf("Default Input Device: %s\n", defaultInput.Name)
	}

	defaultOutput, err := portaudio.DefaultOutputDevice()
	if err != nil {
		fmt.Printf("Default Output Device: (error: %v)\n", err)
	} else {
		fmt.Printf("Default Output Device: %s\n", defaultOutput.Name)
	}
	fmt.Println()

	devices, err := portaudio.Devices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get devices: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("=== All Devices (%d) ===\n\n", len(devices))
	for i, dev := range devices {
		marker := ""
		if defaultInput != nil && dev.Name == defaultInput.Name && dev.MaxInputChannels > 0 {
			marker = " [DEFAULT INPUT]"
		}
		if defaultOutput != nil && dev.Name == defaultOutput.Name && dev.MaxOutputChannels > 0 {
			marker += " [DEFAULT OUTPUT]"
		}
		if isBluetoothName(dev.Name) {
			marker += " (Bluetooth?)"
		}

		fmt.Printf("[%d] %s%s\n", i, dev.Name, marker)
		fmt.Printf("    Max Input Channels:  %d\n", dev.MaxInputChannels)
		fmt.Printf("    Max Output Channels: %d\n", dev.MaxOutputChannels)
		fmt.Printf("    Default Sample Rate: %.0f Hz\n", dev.DefaultSampleRate)
		fmt.Printf("    Output Latency: Low=%.1fms, High=%.1fms\n",
			dev.DefaultLowOutputLatency.Seconds()*1000,
			dev.DefaultHighOutputLatency.Seconds()*1000)
		fmt.Println()
	}

	if defaultOutput == nil || defaultOutput.MaxOutputChannels == 0 {
		fmt.Println("⚠️  No default output device: the playback sink has nowhere to render.")
		os.Exit(1)
	}

	fmt.Println("=== Playback Check ===")
	fmt.Println()
	if int(defaultOutput.DefaultSampleRate) != sampleRate {
		fmt.Printf("⚠️  Configured sample rate is %d Hz but the output device prefers %.0f Hz.\n",
			sampleRate, defaultOutput.DefaultSampleRate)
		fmt.Printf("   The pipeline resamples, but matching audio.sample_rate avoids the extra conversion.\n")
	} else {
		fmt.Printf("Sample rate %d Hz matches the default output device.\n", sampleRate)
	}
	if defaultOutput.DefaultHighOutputLatency.Seconds()*1000 > 100 {
		fmt.Printf("⚠️  High output latency (%.1fms); music gain changes will lag the camera by at least this much.\n",
			defaultOutput.DefaultHighOutputLatency.Seconds()*1000)
	}
}

func isBluetoothName(name string) bool {
	lower := strings.ToLower(name)
	for _, hint := range []string{"bluetooth", "airpods", "buds", "wireless", "headset"} {
		if strings.Contains(lower, hint) {
			return true
		}
	}
	return false
}
