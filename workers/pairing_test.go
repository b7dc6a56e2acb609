package workers

import (
	"context"
	"errors"
	"testing"

	"sincrongrupos/models"
	"sincrongrupos/tools"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePairingGateway struct {
	connectResult *tools.ConnectResult
	connectErr    error
	status        *tools.InstanceStatus
	statusErr     error
}

func (f *fakePairingGateway) Connect(ctx context.Context, token string) (*tools.ConnectResult, error) {
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	return f.connectResult, nil
}

func (f *fakePairingGateway) Status(ctx context.Context, token string) (*tools.InstanceStatus, error) {
	if f.statusErr != nil {
		return nil, f.statusErr
	}
	return f.status, nil
}

func TestPairingQRCodeExposedWithExpiry(t *testing.T) {
	db := workerTestDB(t)
	inst := seedInstance(t, db, 1, "tok-1", models.INSTANCE_STATUS_CONECTANDO)
	gw := &fakePairingGateway{connectResult: &tools.ConnectResult{QRCode: "qr-abc"}}
	s := NewPairingSession(db, gw, inst, nil)

	require.NoError(t, s.requestQR(context.Background()))

	snap := s.Snapshot()
	assert.Equal(t, PAIRING_STATE_WAITING, snap.State)
	assert.Equal(t, "qr-abc", snap.QRCode)
	assert.Greater(t, snap.ExpiresIn, 0)
	assert.LessOrEqual(t, snap.ExpiresIn, int(QR_VALIDITY.Seconds()))
}

func TestPairingAlreadyConnectedCompletesImmediately(t *testing.T) {
	db := workerTestDB(t)
	inst := seedInstance(t, db, 1, "tok-1", models.INSTANCE_STATUS_CONECTANDO)
	gw := &fakePairingGateway{connectResult: &tools.ConnectResult{Connected: true}}

	var pairedID int64
	s := NewPairingSession(db, gw, inst, func(id int64) { pairedID = id })

	require.NoError(t, s.requestQR(context.Background()))

	snap := s.Snapshot()
	assert.Equal(t, PAIRING_STATE_CONNECTED, snap.State)
	assert.Empty(t, snap.QRCode)
	assert.Equal(t, inst.ID, pairedID)

	var stored models.Instance
	require.NoError(t, db.First(&stored, inst.ID).Error)
	assert.Equal(t, models.INSTANCE_STATUS_CONECTADO, stored.Status)
}

func TestPairingCompletionRecordsHistoryAndPhone(t *testing.T) {
	db := workerTestDB(t)
	inst := seedInstance(t, db, 1, "tok-1", models.INSTANCE_STATUS_CONECTANDO)
	gw := &fakePairingGateway{
		connectResult: &tools.ConnectResult{QRCode: "qr-abc"},
		status:        &tools.InstanceStatus{Connected: true, LoggedIn: true, PhoneNumber: "5511987654321"},
	}
	s := NewPairingSession(db, gw, inst, nil)
	require.NoError(t, s.requestQR(context.Background()))

	s.checkStatus(context.Background())

	snap := s.Snapshot()
	assert.Equal(t, PAIRING_STATE_CONNECTED, snap.State)
	assert.Equal(t, "+55 11 98765-4321", snap.Phone)

	var stored models.Instance
	require.NoError(t, db.First(&stored, inst.ID).Error)
	assert.Equal(t, "5511987654321", stored.NumeroTelefone)

	var events []models.HistoryEvent
	require.NoError(t, db.Where("instancia_id = ?", inst.ID).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, models.HISTORY_EVENT_CONNECTED, events[0].EventType)
}

func TestPairingTransientStatusFailureKeepsWaiting(t *testing.T) {
	db := workerTestDB(t)
	inst := seedInstance(t, db, 1, "tok-1", models.INSTANCE_STATUS_CONECTANDO)
	gw := &fakePairingGateway{
		connectResult: &tools.ConnectResult{QRCode: "qr-abc"},
		statusErr:     errors.New("timeout"),
	}
	s := NewPairingSession(db, gw, inst, nil)
	require.NoError(t, s.requestQR(context.Background()))

	s.checkStatus(context.Background())

	snap := s.Snapshot()
	assert.Equal(t, PAIRING_STATE_WAITING, snap.State)
	assert.Equal(t, "qr-abc", snap.QRCode)
}

func TestPairingConnectFailureSetsError(t *testing.T) {
	db := workerTestDB(t)
	inst := seedInstance(t, db, 1, "tok-1", models.INSTANCE_STATUS_CONECTANDO)
	gw := &fakePairingGateway{connectErr: errors.New("gateway fora do ar")}
	s := NewPairingSession(db, gw, inst, nil)

	require.Error(t, s.requestQR(context.Background()))

	snap := s.Snapshot()
	assert.Equal(t, PAIRING_STATE_ERROR, snap.State)
	assert.NotEmpty(t, snap.Error)
}

func TestPairingConnectFailureRevertsOptimisticStatus(t *testing.T) {
	db := workerTestDB(t)
	inst := seedInstance(t, db, 1, "tok-1", models.INSTANCE_STATUS_DESCONECTADO)

	// o handler marca "conectando" depois de carregar a instância
	require.NoError(t, db.Model(&models.Instance{}).
		Where("id = ?", inst.ID).
		Update("status", models.INSTANCE_STATUS_CONECTANDO).Error)

	gw := &fakePairingGateway{connectErr: errors.New("gateway fora do ar")}
	s := NewPairingSession(db, gw, inst, nil)

	require.Error(t, s.requestQR(context.Background()))

	var stored models.Instance
	require.NoError(t, db.First(&stored, inst.ID).Error)
	assert.Equal(t, models.INSTANCE_STATUS_DESCONECTADO, stored.Status)
}

func TestPairingRegistryReplacesSession(t *testing.T) {
	db := workerTestDB(t)
	inst := seedInstance(t, db, 1, "tok-1", models.INSTANCE_STATUS_CONECTANDO)
	gw := &fakePairingGateway{connectResult: &tools.ConnectResult{QRCode: "qr-abc"}}
	reg := NewPairingRegistry()

	first := reg.Begin(db, gw, inst, nil)
	second := reg.Begin(db, gw, inst, nil)
	require.NotSame(t, first, second)

	got, ok := reg.Lookup(inst.ID)
	require.True(t, ok)
	assert.Same(t, second, got)

	reg.End(inst.ID)
	_, ok = reg.Lookup(inst.ID)
	assert.False(t, ok)
}
