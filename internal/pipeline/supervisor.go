// Package pipeline supervises the two media subprocesses: the ffmpeg mixer
// (mic + looping music, control endpoint, raw samples on stdout) and the
// playback sink reading those samples from stdin. One leg dying takes the
// other down with it unless a controlled stop is already underway.
package pipeline

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/soundloop/camduck/internal/logging"
)

// Grace period between the termination signal and SIGKILL on Stop.
const shutdownTimeout = 3 * time.Second

type Pipeline struct {
	mixer *exec.Cmd
	sink  *exec.Cmd

	mixerOut io.ReadCloser
	sinkIn   io.WriteCloser

	stopping atomic.Bool
	done     chan struct{}
	log      *zap.SugaredLogger
}

// Start launches both legs and links the mixer's stdout into the sink's
// stdin. There is no automatic restart: when the pipeline dies, Done()
// closes and the caller decides what to do about it.
func Start(cfg Config) (*Pipeline, error) {
	mixer := exec.Command(cfg.FFmpegBin, mixerArgs(cfg)...)
	mixer.Stderr = os.Stderr
	sink := exec.Command(cfg.SinkBin, sinkArgs(cfg)...)
	sink.Stderr = os.Stderr
	return link(mixer, sink)
}

func link(mixer, sink *exec.Cmd) (*Pipeline, error) {
	mixerOut, err := mixer.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("mixer stdout pipe: %w", err)
	}
	sinkIn, err := sink.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("sink stdin pipe: %w", err)
	}

	if err := mixer.Start(); err != nil {
		return nil, fmt.Errorf("start mixer %s: %w", mixer.Path, err)
	}
	if err := sink.Start(); err != nil {
		_ = mixer.Process.Kill()
		_ = mixer.Wait()
		return nil, fmt.Errorf("start sink %s: %w", sink.Path, err)
	}

	p := &Pipeline{
		mixer:    mixer,
		sink:     sink,
		mixerOut: mixerOut,
		sinkIn:   sinkIn,
		done:     make(chan struct{}),
		log:      logging.Component("pipeline"),
	}
	p.log.Infof("pipeline started: mixer pid=%d sink pid=%d", mixer.Process.Pid, sink.Process.Pid)

	go p.pump()

	var legs sync.WaitGroup
	legs.Add(2)
	go p.watchMixer(&legs)
	go p.watchSink(&legs)
	go func() {
		legs.Wait()
		close(p.done)
	}()

	return p, nil
}

// pump copies mixer output into the sink. Broken-pipe errors are part of
// normal teardown and are not worth a log line.
func (p *Pipeline) pump() {
	_, err := io.Copy(p.sinkIn, p.mixerOut)
	if err != nil && !isBrokenPipe(err) && !p.stopping.Load() {
		p.log.Warnf("stream link error: %v", err)
	}
	_ = p.sinkIn.Close()
}

func (p *Pipeline) watchMixer(legs *sync.WaitGroup) {
	defer legs.Done()
	err := p.mixer.Wait()
	if p.stopping.Load() {
		return
	}
	p.log.Warnf("mixer exited unexpectedly: %v", err)
	// Closing the sink's stdin lets it drain and exit on EOF; the signal
	// covers sinks that ignore EOF.
	_ = p.sinkIn.Close()
	terminate(p.sink)
}

func (p *Pipeline) watchSink(legs *sync.WaitGroup) {
	defer legs.Done()
	err := p.sink.Wait()
	if p.stopping.Load() {
		return
	}
	p.log.Warnf("sink exited unexpectedly: %v", err)
	// Without a reader the mixer would block on a broken pipe forever.
	terminate(p.mixer)
}

// Stop tears the pipeline down: mark stopping first so the watchers stand
// down, unlink the streams, then signal both processes. Safe to call any
// number of times and at any point of the pipeline's life.
func (p *Pipeline) Stop() {
	if !p.stopping.CompareAndSwap(false, true) {
		<-p.done
		return
	}

	p.log.Infof("stopping pipeline")

	_ = p.mixerOut.Close()
	_ = p.sinkIn.Close()
	terminate(p.mixer)
	terminate(p.sink)

	select {
	case <-p.done:
	case <-time.After(shutdownTimeout):
		p.log.Warnf("pipeline did not exit within %v, killing", shutdownTimeout)
		kill(p.mixer)
		kill(p.sink)
		<-p.done
	}
	p.log.Infof("pipeline stopped")
}

// Done closes once both legs have exited, for any reason.
func (p *Pipeline) Done() <-chan struct{} {
	return p.done
}

func terminate(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		// Signal delivery is unsupported on some platforms and fails once
		// the process is gone; fall back to Kill and ignore the rest.
		_ = cmd.Process.Kill()
	}
}

func kill(cmd *exec.Cmd) {
	if cmd == nil || cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}
