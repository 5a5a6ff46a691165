package monitoring

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowcore/nucleus/kernel"
	"github.com/lowcore/nucleus/kernel/svc"
	"github.com/lowcore/nucleus/machine"
)

func newTestMonitor(t *testing.T) (*Monitor, *kernel.Kernel) {
	t.Helper()

	m := machine.NewMachine(1<<20, machine.Config{AddressWidth: 31})
	m.Attach(0x00C, machine.NewBootDisk(nil))

	k := kernel.New(m, kernel.Config{ArenaBase: 0x1000, ArenaSize: 0x1000})

	return NewMonitor(k, m), k
}

func TestListDevicesBeforeInitialization(t *testing.T) {
	mon, _ := newTestMonitor(t)

	w := httptest.NewRecorder()
	mon.listDevices(w, httptest.NewRequest("GET", "/api/devices", nil))

	assert.Equal(t, "[]", w.Body.String())
}

func TestListDevicesReportsRegisteredDevices(t *testing.T) {
	mon, k := newTestMonitor(t)

	status, err := k.Dispatch(svc.CallerKernel, svc.IDInitTable,
		&svc.Request{TableCapacity: 4})
	require.NoError(t, err)
	require.Equal(t, svc.StatusOK, status)

	status, err = k.Dispatch(svc.CallerKernel, svc.IDRegister,
		&svc.Request{DeviceAddr: 0x00C, PassThrough: true})
	require.NoError(t, err)
	require.Equal(t, svc.StatusOK, status)

	w := httptest.NewRecorder()
	mon.listDevices(w, httptest.NewRequest("GET", "/api/devices", nil))

	var rsps []deviceRsp
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rsps))
	require.Len(t, rsps, 1)
	assert.Equal(t, "00C", rsps[0].DeviceAddr)
}

func TestShowPool(t *testing.T) {
	mon, k := newTestMonitor(t)

	w := httptest.NewRecorder()
	mon.showPool(w, httptest.NewRequest("GET", "/api/pool", nil))

	var rsp struct {
		Base      uint64 `json:"base"`
		Limit     uint64 `json:"limit"`
		Available uint64 `json:"available"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rsp))
	assert.Equal(t, k.Pool().Base(), rsp.Base)
	assert.Equal(t, k.Pool().Limit(), rsp.Limit)
	assert.Equal(t, k.Pool().Available(), rsp.Available)
}

func TestListPendingAndInterrupts(t *testing.T) {
	mon, _ := newTestMonitor(t)

	w := httptest.NewRecorder()
	mon.listPending(w, httptest.NewRequest("GET", "/api/pending", nil))
	assert.JSONEq(t, `{"count":0}`, w.Body.String())

	mon.mach.PostUnsolicited(0x00C, machine.UnitAttention)

	w = httptest.NewRecorder()
	mon.showInterrupts(w, httptest.NewRequest("GET", "/api/interrupts", nil))
	assert.JSONEq(t, `{"queued":1}`, w.Body.String())
}
