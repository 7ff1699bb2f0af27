// internal/service/monitor_service_test.go
package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"drill-monitor/internal/config"
	"drill-monitor/internal/model"
	"drill-monitor/internal/service"
	pkgdriver "drill-monitor/pkg/driver"
)

// The service is the port enumeration surface the handlers depend on.
var _ pkgdriver.PortLister = (*service.MonitorService)(nil)

func newTestService(t *testing.T) *service.MonitorService {
	t.Helper()

	cfg, err := config.Load()
	require.NoError(t, err)

	svc, err := service.NewMonitorService(cfg, zap.NewNop())
	require.NoError(t, err)
	return svc
}

func TestMonitorServiceStartsDisconnected(t *testing.T) {
	svc := newTestService(t)
	defer svc.Close()

	assert.False(t, svc.IsConnected())
	assert.False(t, svc.IsContinuousMode())
	assert.NotEmpty(t, svc.SessionID())
}

func TestMonitorServiceCommandsRequireConnection(t *testing.T) {
	svc := newTestService(t)
	defer svc.Close()

	ctx := context.Background()
	assert.Error(t, svc.SetLaser(ctx, true))
	assert.Error(t, svc.SingleMeasure(ctx, model.MeasureSpeedAuto))
	assert.Error(t, svc.StartContinuous(ctx, model.MeasureSpeedHigh))
	assert.Error(t, svc.RefreshDeviceInfo(ctx))
}

func TestMonitorServiceRejectsInvalidSpeed(t *testing.T) {
	svc := newTestService(t)
	defer svc.Close()

	err := svc.SingleMeasure(context.Background(), model.MeasureSpeed("TURBO"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid measure speed")
}

func TestMonitorServiceSessionLifecycle(t *testing.T) {
	svc := newTestService(t)
	defer svc.Close()

	first := svc.SessionID()

	m := svc.HandleMeasurement(time.Now(), 1500, 90)
	assert.Equal(t, uint32(1500), m.DistanceMM)
	assert.EqualValues(t, 1, svc.Stats().TotalSamples)

	second := svc.ResetSession()
	assert.NotEqual(t, first, second)
	assert.Equal(t, second, svc.SessionID())
	assert.Zero(t, svc.Stats().TotalSamples)
}

func TestMonitorServiceStateStartsStopped(t *testing.T) {
	svc := newTestService(t)
	defer svc.Close()

	assert.Equal(t, model.DriveStateStopped, svc.State())
}
