package probe

import "os/exec"

// Camera assistant daemons that macOS spins up while a capture session is
// open. VDCAssistant covers older releases, AppleCameraAssistant newer ones.
var assistantNames = []string{"VDCAssistant", "AppleCameraAssistant"}

type cameraProber struct{}

func newCameraProber() Prober {
	return &cameraProber{}
}

func (p *cameraProber) Active() bool {
	for _, name := range assistantNames {
		// pgrep exits 0 only when a matching process exists; any failure
		// (not installed, no match) reads as inactive.
		if err := exec.Command("pgrep", "-x", name).Run(); err == nil {
			return true
		}
	}
	return false
}
