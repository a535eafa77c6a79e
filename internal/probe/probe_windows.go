package probe

import (
	"golang.org/x/sys/windows/registry"
)

const consentStorePath = `SOFTWARE\Microsoft\Windows\CurrentVersion\CapabilityAccessManager\ConsentStore\webcam`

// cameraProber reads the CapabilityAccessManager consent store. Windows
// stamps LastUsedTimeStop per app when it releases the camera; a value of
// zero with a nonzero LastUsedTimeStart means the app holds it right now.
type cameraProber struct{}

func newCameraProber() Prober {
	return &cameraProber{}
}

func (p *cameraProber) Active() bool {
	for _, root := range []registry.Key{registry.CURRENT_USER, registry.LOCAL_MACHINE} {
		if storeActive(root, consentStorePath) {
			return true
		}
	}
	return false
}

func storeActive(root registry.Key, path string) bool {
	key, err := registry.OpenKey(root, path, registry.READ)
	if err != nil {
		return false
	}
	defer key.Close()

	apps, err := key.ReadSubKeyNames(-1)
	if err != nil {
		return false
	}

	for _, app := range apps {
		if appUsingCamera(key, app) {
			return true
		}
		// Packaged apps nest one level deeper (NonPackaged holds classic ones
		// directly).
		sub, err := registry.OpenKey(key, app, registry.READ)
		if err != nil {
			continue
		}
		nested, err := sub.ReadSubKeyNames(-1)
		if err == nil {
			for _, name := range nested {
				if appUsingCamera(sub, name) {
					sub.Close()
					return true
				}
			}
		}
		sub.Close()
	}
	return false
}

func appUsingCamera(parent registry.Key, name string) bool {
	key, err := registry.OpenKey(parent, name, registry.QUERY_VALUE)
	if err != nil {
		return false
	}
	defer key.Close()

	start, _, err := key.GetIntegerValue("LastUsedTimeStart")
	if err != nil || start == 0 {
		return false
	}
	stop, _, err := key.GetIntegerValue("LastUsedTimeStop")
	if err != nil {
		return false
	}
	return stop == 0
}
