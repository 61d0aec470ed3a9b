package notify

import (
	"context"
	"sync"
)

type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
	PlatformWeb     Platform = "web"
)

// StaticDevice is a Device with fixed capabilities. A prompt grants permission
// unless it was denied before; denial is sticky, like on iOS.
type StaticDevice struct {
	platform Platform
	physical bool

	mu     sync.Mutex
	status Permission
}

func NewStaticDevice(platform Platform, physical bool, status Permission) *StaticDevice {
	if status == "" {
		status = PermissionUndetermined
	}
	return &StaticDevice{platform: platform, physical: physical, status: status}
}

func (d *StaticDevice) IsPhysical() bool { return d.physical }

// SupportsChannels is true on Android only.
func (d *StaticDevice) SupportsChannels() bool { return d.platform == PlatformAndroid }

func (d *StaticDevice) Permission(context.Context) (Permission, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.status, nil
}

func (d *StaticDevice) RequestPermission(context.Context) (Permission, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.status != PermissionDenied {
		d.status = PermissionGranted
	}
	return d.status, nil
}

// SetPermission changes the permission state, e.g. after the user edits system settings.
func (d *StaticDevice) SetPermission(p Permission) {
	d.mu.Lock()
	d.status = p
	d.mu.Unlock()
}

// Recorder is a Navigator that keeps the instructions it received.
type Recorder struct {
	mu    sync.Mutex
	stack []Navigation
	backs int
}

func (r *Recorder) Navigate(nav Navigation) {
	r.mu.Lock()
	r.stack = append(r.stack, nav)
	r.mu.Unlock()
}

func (r *Recorder) GoBack() {
	r.mu.Lock()
	r.backs++
	if len(r.stack) > 0 {
		r.stack = r.stack[:len(r.stack)-1]
	}
	r.mu.Unlock()
}

// Current returns the screen on top of the stack.
func (r *Recorder) Current() (Navigation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.stack) == 0 {
		return Navigation{}, false
	}
	return r.stack[len(r.stack)-1], true
}

// Backs returns how many times GoBack was called.
func (r *Recorder) Backs() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backs
}
