// Package devices tracks station identity: assignment, collision detection,
// and connection status. Records outlive disconnects so transaction
// attribution by device id stays valid for the whole session.
package devices

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/scanquest/orchestrator/internal/errors"
	"github.com/scanquest/orchestrator/internal/events"
	"github.com/scanquest/orchestrator/internal/logger"
	"github.com/scanquest/orchestrator/internal/models"
)

// Registry is the in-memory device registry. Connect and disconnect are
// serialized on one lock so two simultaneous claims of the same id cannot
// both succeed.
type Registry struct {
	log logger.Logger
	bus *events.Bus

	mu      sync.Mutex
	devices map[string]*models.Device
}

// New creates an empty registry
func New(log logger.Logger, bus *events.Bus) *Registry {
	return &Registry{
		log:     log,
		bus:     bus,
		devices: make(map[string]*models.Device),
	}
}

// Connect registers a device. A requested id that is currently held by a live
// connection fails with a collision error, surfaced only to the requester.
// With no requested id, the next free sequential id for the device type is
// assigned (station-1, station-2, ...).
func (r *Registry) Connect(requestedID, deviceType string) (models.Device, error) {
	if deviceType == "" {
		deviceType = models.DeviceStation
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	id := requestedID
	if id != "" {
		if existing, ok := r.devices[id]; ok && existing.ConnectionStatus == models.DeviceConnected {
			return models.Device{}, errors.Collision(fmt.Sprintf("device id %q is already connected", id))
		}
	} else {
		id = r.nextFreeID(deviceType)
	}

	d := &models.Device{
		DeviceID:         id,
		DeviceType:       deviceType,
		ConnectionStatus: models.DeviceConnected,
		Name:             displayName(id),
		ConnectedAt:      time.Now(),
	}
	r.devices[id] = d

	r.log.Info("Device connected", "device_id", id, "device_type", deviceType)
	r.bus.Publish(events.DeviceUpdate, r.listLocked())
	return *d, nil
}

// Disconnect flips the device to disconnected. The record is retained.
func (r *Registry) Disconnect(deviceID string) {
	r.mu.Lock()
	d, ok := r.devices[deviceID]
	if ok {
		d.ConnectionStatus = models.DeviceDisconnected
	}
	list := r.listLocked()
	r.mu.Unlock()

	if !ok {
		return
	}
	r.log.Info("Device disconnected", "device_id", deviceID)
	r.bus.Publish(events.DeviceUpdate, list)
}

// MarkDisconnected is Disconnect without logging at info level; used by the
// hub when a send times out and the peer is presumed gone.
func (r *Registry) MarkDisconnected(deviceID string) {
	r.mu.Lock()
	d, ok := r.devices[deviceID]
	if ok && d.ConnectionStatus == models.DeviceConnected {
		d.ConnectionStatus = models.DeviceDisconnected
	}
	r.mu.Unlock()
	if ok {
		r.log.Debug("Device marked disconnected", "device_id", deviceID)
	}
}

// Get returns the device record for an id
func (r *Registry) Get(deviceID string) (models.Device, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.devices[deviceID]
	if !ok {
		return models.Device{}, false
	}
	return *d, true
}

// List returns all device records ordered by id
func (r *Registry) List() []models.Device {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.listLocked()
}

func (r *Registry) listLocked() []models.Device {
	out := make([]models.Device, 0, len(r.devices))
	for _, d := range r.devices {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceID < out[j].DeviceID })
	return out
}

// nextFreeID finds the first unused integer suffix for the device type.
// Callers must hold r.mu.
func (r *Registry) nextFreeID(deviceType string) string {
	for n := 1; ; n++ {
		id := fmt.Sprintf("%s-%d", deviceType, n)
		if _, taken := r.devices[id]; !taken {
			return id
		}
	}
}

// displayName turns "station-3" into "Station 3"
func displayName(id string) string {
	parts := strings.SplitN(id, "-", 2)
	if len(parts) != 2 {
		return id
	}
	return strings.ToUpper(parts[0][:1]) + parts[0][1:] + " " + parts[1]
}
