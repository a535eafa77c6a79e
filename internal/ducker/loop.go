// Package ducker holds the live control loop: poll the camera prober, decide
// whether the music should be audible, and push gain changes at the running
// pipeline. Raising the music on camera activity is immediate; muting it
// again only happens after the camera has been idle for a full debounce
// window, so a flaky reading never pumps the volume.
package ducker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/soundloop/camduck/internal/logging"
	"github.com/soundloop/camduck/internal/metrics"
	"github.com/soundloop/camduck/internal/probe"
)

// Setter issues one parameter change to the running pipeline. Implemented by
// control.Client; faked in tests.
type Setter interface {
	SetParameter(name string, value float64) error
}

type Config struct {
	PollInterval   time.Duration
	DebounceWindow time.Duration
	// ActiveGain is the music volume while the camera is in use; inactive is
	// always full mute (0), matching the pipeline's pre-muted start state.
	ActiveGain float64
	// Parameter is the filter parameter name, "volume" for ffmpeg's volume
	// filter.
	Parameter string
}

type Loop struct {
	cfg    Config
	prober probe.Prober
	setter Setter
	mets   *metrics.Metrics
	log    *zap.SugaredLogger

	mu      sync.Mutex
	current bool
	applied bool
	// pendingOff is the armed mute timer, nil when none. It is the single
	// owner of the debounce window: cancelling means Stop plus nil-out under
	// mu, and the fired callback re-checks under mu, so a timer racing its
	// own cancellation can never commit a stale mute.
	pendingOff *time.Timer
}

func New(cfg Config, prober probe.Prober, setter Setter, mets *metrics.Metrics) *Loop {
	if cfg.Parameter == "" {
		cfg.Parameter = "volume"
	}
	return &Loop{
		cfg:    cfg,
		prober: prober,
		setter: setter,
		mets:   mets,
		log:    logging.Component("ducker"),
	}
}

// Run polls until ctx is cancelled, then tries one final mute so a crash of
// this program does not leave music blaring into a finished call.
func (l *Loop) Run(ctx context.Context) {
	l.log.Infof("duck loop running: poll=%v debounce=%v active_gain=%v",
		l.cfg.PollInterval, l.cfg.DebounceWindow, l.cfg.ActiveGain)

	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.shutdown()
			return
		case <-ticker.C:
			l.observe(l.prober.Active())
		}
	}
}

// observe feeds one raw reading into the state machine. Commands are issued
// with mu held, which serializes them in transition order; the strict
// request/reply control channel cannot tolerate overlap.
func (l *Loop) observe(active bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.current = active
	if l.mets != nil {
		if active {
			l.mets.CameraActive.Set(1)
		} else {
			l.mets.CameraActive.Set(0)
		}
	}

	if active {
		if l.pendingOff != nil {
			l.pendingOff.Stop()
			l.pendingOff = nil
			if l.mets != nil {
				l.mets.DebounceCancels.Inc()
			}
			l.log.Debugf("camera back, pending mute cancelled")
		}
		if !l.applied {
			l.applied = true
			if l.mets != nil {
				l.mets.Transitions.WithLabelValues("active").Inc()
			}
			l.log.Infof("camera active, music up to %v", l.cfg.ActiveGain)
			l.command(l.cfg.ActiveGain)
		}
		return
	}

	if l.applied && l.pendingOff == nil {
		l.log.Debugf("camera idle, mute armed for %v", l.cfg.DebounceWindow)
		l.pendingOff = time.AfterFunc(l.cfg.DebounceWindow, l.muteAfterDebounce)
	}
}

// muteAfterDebounce commits the active→inactive transition, unless the
// window was cancelled while this callback waited on the lock.
func (l *Loop) muteAfterDebounce() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pendingOff == nil {
		return
	}
	l.pendingOff = nil

	if !l.applied || l.current {
		return
	}
	l.applied = false
	if l.mets != nil {
		l.mets.Transitions.WithLabelValues("muted").Inc()
	}
	l.log.Infof("camera idle for %v, music muted", l.cfg.DebounceWindow)
	l.command(0)
}

func (l *Loop) shutdown() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.pendingOff != nil {
		l.pendingOff.Stop()
		l.pendingOff = nil
	}
	l.applied = false
	l.log.Infof("shutting down, muting music")
	l.command(0)
}

// command must be called with mu held. Failures are logged and dropped; the
// reference behavior does not resend, the pipeline simply keeps its last
// applied gain.
func (l *Loop) command(value float64) {
	err := l.setter.SetParameter(l.cfg.Parameter, value)
	if err != nil {
		if l.mets != nil {
			l.mets.Commands.WithLabelValues("error").Inc()
		}
		l.log.Warnf("set %s=%v failed: %v", l.cfg.Parameter, value, err)
		return
	}
	if l.mets != nil {
		l.mets.Commands.WithLabelValues("ok").Inc()
	}
}
