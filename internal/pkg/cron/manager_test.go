package cron

import (
	"Realty/internal/job"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManager_RegisterJobs(t *testing.T) {
	reconcile := job.NewUnreadReconcileJob(nil, nil, time.Minute)

	assert.NoError(t, NewCronManager("", reconcile).RegisterJobs())
	assert.NoError(t, NewCronManager("@every 30s", reconcile).RegisterJobs())
	assert.NoError(t, NewCronManager("*/15 * * * * *", reconcile).RegisterJobs())
	assert.Error(t, NewCronManager("every now and then", reconcile).RegisterJobs())
}

func TestManager_RunWithoutJobs(t *testing.T) {
	mgr := NewCronManager("", job.NewUnreadReconcileJob(nil, nil, time.Minute))
	assert.NoError(t, mgr.Run())
	mgr.Stop()
}
