package state

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpalmerr/labconsole/internal/clock"
)

var epoch = time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sequentialIDs returns an ID generator producing n1, n2, ...
func sequentialIDs() func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("n%d", n)
	}
}

func newTestStore(t *testing.T) (*Store, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(epoch)
	st := NewStore(DefaultDevices(),
		WithClock(clk),
		WithIDGenerator(sequentialIDs()),
		WithLogger(testLogger()),
	)
	t.Cleanup(st.Close)
	return st, clk
}

func deviceIDs(s State) []string {
	ids := make([]string, len(s.Devices))
	for i, d := range s.Devices {
		ids[i] = d.ID
	}
	return ids
}

func TestNewStore_InitialState(t *testing.T) {
	st, _ := newTestStore(t)

	snap := st.Snapshot()
	assert.False(t, snap.BackendConnected)
	assert.False(t, snap.IsLoading)
	assert.Nil(t, snap.GlobalError)
	assert.Empty(t, snap.Notifications)
	require.Len(t, snap.Devices, 6)

	for _, d := range snap.Devices {
		assert.False(t, d.Connected, d.ID)
		assert.Equal(t, DeviceDisconnected, d.Status, d.ID)
		assert.Equal(t, epoch, d.LastUpdate, d.ID)
	}
}

func TestNewStore_DropsDuplicateIDs(t *testing.T) {
	st := NewStore([]DeviceStatus{
		{ID: "a", Name: "A"},
		{ID: "b", Name: "B"},
		{ID: "a", Name: "A again"},
	}, WithLogger(testLogger()))
	defer st.Close()

	snap := st.Snapshot()
	assert.Equal(t, []string{"a", "b"}, deviceIDs(snap))
	assert.Equal(t, "A", snap.Devices[0].Name)
}

func TestDispatch_UpdateDeviceStatus(t *testing.T) {
	st, clk := newTestStore(t)
	clk.Advance(time.Minute)

	st.Dispatch(UpdateDeviceStatus{Device: DeviceStatus{
		ID:        "arduino_uno_r4",
		Name:      "Arduino Uno R4",
		Connected: true,
		Status:    DeviceIdle,
	}})

	snap := st.Snapshot()
	require.Len(t, snap.Devices, 6)

	arduino, ok := snap.Device("arduino_uno_r4")
	require.True(t, ok)
	assert.True(t, arduino.Connected)
	assert.Equal(t, DeviceIdle, arduino.Status)
	assert.Equal(t, epoch.Add(time.Minute), arduino.LastUpdate)

	for _, d := range snap.Devices[1:] {
		assert.False(t, d.Connected, d.ID)
		assert.Equal(t, DeviceDisconnected, d.Status, d.ID)
		assert.Equal(t, epoch, d.LastUpdate, d.ID)
	}
}

func TestDispatch_UpdateDeviceStatusStampsLastUpdate(t *testing.T) {
	st, clk := newTestStore(t)

	// caller-provided timestamp is ignored
	st.Dispatch(UpdateDeviceStatus{Device: DeviceStatus{
		ID:         "zurich_hf2li",
		Status:     DeviceBusy,
		Connected:  true,
		LastUpdate: time.Date(1999, 1, 1, 0, 0, 0, 0, time.UTC),
	}})

	d, _ := st.Snapshot().Device("zurich_hf2li")
	assert.Equal(t, clk.Now(), d.LastUpdate)
	assert.Equal(t, "Zurich HF2LI", d.Name, "empty name keeps the configured label")
}

func TestDispatch_UpdateUnknownDeviceIsNoop(t *testing.T) {
	st, _ := newTestStore(t)
	before := st.Snapshot()

	st.Dispatch(UpdateDeviceStatus{Device: DeviceStatus{ID: "not_a_device", Connected: true, Status: DeviceIdle}})

	assert.Equal(t, before, st.Snapshot())
}

func TestDispatch_FixedCardinality(t *testing.T) {
	st, clk := newTestStore(t)
	want := deviceIDs(st.Snapshot())

	statuses := []DeviceState{DeviceIdle, DeviceBusy, DeviceError, DeviceDisconnected}
	ids := append(want, "ghost", "", "ARDUINO_UNO_R4")

	for i := 0; i < 200; i++ {
		clk.Advance(time.Millisecond)
		st.Dispatch(UpdateDeviceStatus{Device: DeviceStatus{
			ID:        ids[i%len(ids)],
			Connected: i%2 == 0,
			Status:    statuses[i%len(statuses)],
		}})
		require.Equal(t, want, deviceIDs(st.Snapshot()), "after dispatch %d", i)
	}
}

func TestDispatch_RedundantStatusDiffersOnlyInLastUpdate(t *testing.T) {
	st, clk := newTestStore(t)
	update := UpdateDeviceStatus{Device: DeviceStatus{
		ID:        "picoscope_5244d",
		Name:      "PicoScope 5244D",
		Connected: true,
		Status:    DeviceBusy,
	}}

	st.Dispatch(update)
	first := st.Snapshot()

	clk.Advance(2 * time.Second)
	st.Dispatch(update)
	second := st.Snapshot()

	d1, _ := first.Device("picoscope_5244d")
	d2, _ := second.Device("picoscope_5244d")
	assert.Equal(t, 2*time.Second, d2.LastUpdate.Sub(d1.LastUpdate))

	// blank out the one field allowed to differ
	for i := range first.Devices {
		first.Devices[i].LastUpdate = time.Time{}
		second.Devices[i].LastUpdate = time.Time{}
	}
	assert.Equal(t, first, second)
}

func TestDispatch_ScalarActions(t *testing.T) {
	st, _ := newTestStore(t)

	st.Dispatch(SetBackendConnection{Connected: true})
	st.Dispatch(SetLoading{Loading: true})
	st.Dispatch(GlobalError("interlock open"))

	snap := st.Snapshot()
	assert.True(t, snap.BackendConnected)
	assert.True(t, snap.IsLoading)
	require.NotNil(t, snap.GlobalError)
	assert.Equal(t, "interlock open", *snap.GlobalError)

	// last write wins
	st.Dispatch(GlobalError("laser fault"))
	assert.Equal(t, "laser fault", *st.Snapshot().GlobalError)

	st.Dispatch(ClearGlobalError())
	st.Dispatch(SetLoading{Loading: false})
	st.Dispatch(SetBackendConnection{Connected: false})

	snap = st.Snapshot()
	assert.Nil(t, snap.GlobalError)
	assert.False(t, snap.IsLoading)
	assert.False(t, snap.BackendConnected)
}

func TestDispatch_NotificationOrdering(t *testing.T) {
	st, _ := newTestStore(t)

	for i := 1; i <= 10; i++ {
		st.Dispatch(Info(fmt.Sprintf("message %d", i)))

		snap := st.Snapshot()
		require.Len(t, snap.Notifications, i)

		surfaced, ok := snap.Surfaced()
		require.True(t, ok)
		assert.Equal(t, fmt.Sprintf("message %d", i), surfaced.Message)
		assert.Equal(t, fmt.Sprintf("n%d", i), surfaced.ID)
	}
}

func TestDispatch_AddNotificationAssignsIDAndTimestamp(t *testing.T) {
	st, clk := newTestStore(t)
	clk.Advance(90 * time.Second)

	st.Dispatch(AddNotification{
		Type:    NotificationError,
		Message: "Failed to connect",
	}.WithDuration(5000 * time.Millisecond))

	n, ok := st.Snapshot().Surfaced()
	require.True(t, ok)
	assert.Equal(t, "n1", n.ID)
	assert.Equal(t, NotificationError, n.Type)
	assert.Equal(t, "Failed to connect", n.Message)
	assert.Equal(t, epoch.Add(90*time.Second), n.Timestamp)

	ms, ok := n.DurationMs()
	require.True(t, ok)
	assert.EqualValues(t, 5000, ms)
}

func TestDispatch_DefaultIDsAreUnique(t *testing.T) {
	st := NewStore(DefaultDevices(), WithLogger(testLogger()))
	defer st.Close()

	for i := 0; i < 100; i++ {
		st.Dispatch(Sticky(NotificationInfo, "x"))
	}

	seen := make(map[string]bool)
	for _, n := range st.Snapshot().Notifications {
		require.False(t, seen[n.ID], "duplicate id %s", n.ID)
		seen[n.ID] = true
	}
}

func TestDispatch_RemoveAndClearNotifications(t *testing.T) {
	st, _ := newTestStore(t)
	st.Dispatch(Info("one"))
	st.Dispatch(Warning("two"))
	st.Dispatch(Error("three"))

	st.Dispatch(RemoveNotification{ID: "n2"})
	snap := st.Snapshot()
	require.Len(t, snap.Notifications, 2)
	assert.Equal(t, "n1", snap.Notifications[0].ID)
	assert.Equal(t, "n3", snap.Notifications[1].ID)

	// absent id is a no-op, not an error
	st.Dispatch(RemoveNotification{ID: "n2"})
	assert.Len(t, st.Snapshot().Notifications, 2)

	st.Dispatch(ClearNotifications{})
	snap = st.Snapshot()
	assert.NotNil(t, snap.Notifications)
	assert.Empty(t, snap.Notifications)
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	st, _ := newTestStore(t)
	st.Dispatch(GlobalError("boom"))
	st.Dispatch(Error("bad"))

	snap := st.Snapshot()
	snap.Devices[0].Connected = true
	*snap.GlobalError = "changed"
	snap.Notifications[0].Message = "changed"
	*snap.Notifications[0].Duration = time.Hour

	fresh := st.Snapshot()
	assert.False(t, fresh.Devices[0].Connected)
	assert.Equal(t, "boom", *fresh.GlobalError)
	assert.Equal(t, "bad", fresh.Notifications[0].Message)
	assert.Equal(t, DefaultErrorDuration, *fresh.Notifications[0].Duration)
}

func TestSnapshot_EarlierSnapshotUnaffectedByDispatch(t *testing.T) {
	st, _ := newTestStore(t)
	st.Dispatch(Info("kept"))
	before := st.Snapshot()

	st.Dispatch(RemoveNotification{ID: "n1"})
	st.Dispatch(UpdateDeviceStatus{Device: DeviceStatus{ID: "arduino_uno_r4", Connected: true, Status: DeviceIdle}})

	require.Len(t, before.Notifications, 1)
	assert.Equal(t, "kept", before.Notifications[0].Message)
	assert.False(t, before.Devices[0].Connected)
}

func TestListen_ReceivesSnapshotsInDispatchOrder(t *testing.T) {
	st, _ := newTestStore(t)

	var got []bool
	cancel := st.Listen(func(s State) {
		got = append(got, s.IsLoading)
	})

	st.Dispatch(SetLoading{Loading: true})
	st.Dispatch(SetLoading{Loading: false})
	st.Dispatch(SetLoading{Loading: true})
	cancel()
	st.Dispatch(SetLoading{Loading: false})

	// initial call plus three dispatches, nothing after cancel
	assert.Equal(t, []bool{false, true, false, true}, got)

	// cancel is idempotent
	cancel()
}

func TestListen_PanicDoesNotBreakDispatch(t *testing.T) {
	st, _ := newTestStore(t)

	calls := 0
	st.Listen(func(State) { panic("boom") })
	st.Listen(func(State) { calls++ })

	st.Dispatch(SetLoading{Loading: true})

	assert.True(t, st.Snapshot().IsLoading)
	assert.Equal(t, 2, calls)
}

func TestSubscribe_ReceivesSnapshot(t *testing.T) {
	st, _ := newTestStore(t)
	ch := st.Subscribe()
	defer st.Unsubscribe(ch)

	go st.Dispatch(SetBackendConnection{Connected: true})

	select {
	case snap := <-ch:
		assert.True(t, snap.BackendConnected)
	case <-time.After(time.Second):
		t.Fatal("Subscribe() channel did not receive snapshot")
	}
}

func TestSubscribe_SlowSubscriberDoesNotBlock(t *testing.T) {
	st, _ := newTestStore(t)
	_ = st.Subscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 200; i++ {
			st.Dispatch(SetLoading{Loading: i%2 == 0})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Dispatch() blocked on slow subscriber")
	}
}

func TestUnsubscribe_ClosesChannel(t *testing.T) {
	st, _ := newTestStore(t)
	ch := st.Subscribe()
	st.Unsubscribe(ch)
	st.Unsubscribe(ch)

	_, ok := <-ch
	assert.False(t, ok)
}

func TestClose_IgnoresLaterDispatches(t *testing.T) {
	st, _ := newTestStore(t)
	ch := st.Subscribe()

	calls := 0
	st.Listen(func(State) { calls++ })

	st.Close()
	st.Close()

	_, ok := <-ch
	assert.False(t, ok, "subscription should be closed")

	st.Dispatch(SetBackendConnection{Connected: true})
	assert.False(t, st.Snapshot().BackendConnected)
	assert.Equal(t, 1, calls, "only the registration call")

	// subscribing to a closed store yields a closed channel
	_, ok = <-st.Subscribe()
	assert.False(t, ok)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	st, _ := newTestStore(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(3)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				st.Dispatch(Info(fmt.Sprintf("%d-%d", i, j)))
				st.Dispatch(UpdateDeviceStatus{Device: DeviceStatus{ID: "arduino_uno_r4", Connected: j%2 == 0, Status: DeviceIdle}})
			}
		}(i)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				_ = st.Snapshot()
			}
		}()
		go func() {
			defer wg.Done()
			ch := st.Subscribe()
			time.Sleep(5 * time.Millisecond)
			st.Unsubscribe(ch)
		}()
	}
	wg.Wait()

	snap := st.Snapshot()
	assert.Len(t, snap.Notifications, 500)
	assert.Len(t, snap.Devices, 6)
}

func TestNotification_MarshalJSON(t *testing.T) {
	d := 5 * time.Second
	withDuration, err := json.Marshal(Notification{ID: "a", Type: NotificationError, Message: "m", Timestamp: epoch, Duration: &d})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"a","type":"error","message":"m","timestamp":"2026-01-02T15:04:05Z","duration":5000}`, string(withDuration))

	sticky, err := json.Marshal(Notification{ID: "b", Type: NotificationInfo, Message: "m", Timestamp: epoch})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"b","type":"info","message":"m","timestamp":"2026-01-02T15:04:05Z"}`, string(sticky))
}

func TestSummarize(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Store)
		want   Summary
	}{
		{
			name:   "initial",
			mutate: func(*Store) {},
			want:   Summary{TotalDevices: 6},
		},
		{
			name: "ready",
			mutate: func(st *Store) {
				st.Dispatch(SetBackendConnection{Connected: true})
				st.Dispatch(UpdateDeviceStatus{Device: DeviceStatus{ID: "arduino_uno_r4", Connected: true, Status: DeviceIdle}})
			},
			want: Summary{ConnectedDevices: 1, TotalDevices: 6, SystemReady: true},
		},
		{
			name: "loading is not ready",
			mutate: func(st *Store) {
				st.Dispatch(SetBackendConnection{Connected: true})
				st.Dispatch(UpdateDeviceStatus{Device: DeviceStatus{ID: "arduino_uno_r4", Connected: true, Status: DeviceBusy}})
				st.Dispatch(SetLoading{Loading: true})
			},
			want: Summary{ConnectedDevices: 1, TotalDevices: 6, HasBusy: true},
		},
		{
			name: "errors without backend",
			mutate: func(st *Store) {
				st.Dispatch(UpdateDeviceStatus{Device: DeviceStatus{ID: "zurich_hf2li", Connected: true, Status: DeviceError}})
			},
			want: Summary{ConnectedDevices: 1, TotalDevices: 6, HasErrors: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, _ := newTestStore(t)
			tt.mutate(st)
			assert.Equal(t, tt.want, st.Snapshot().Summarize())
		})
	}
}

func TestNotificationType_Title(t *testing.T) {
	assert.Equal(t, "Success", NotificationSuccess.Title())
	assert.Equal(t, "Error", NotificationError.Title())
	assert.Equal(t, "Warning", NotificationWarning.Title())
	assert.Equal(t, "Information", NotificationInfo.Title())
	assert.Equal(t, "", NotificationType("other").Title())
}
