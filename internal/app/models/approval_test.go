package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingApproval() *Approval {
	return &Approval{
		ID:        "appr-1",
		PatientID: "pat-1",
		CompanyID: "comp-1",
		ActCode:   "SURG-APPEND",
		Status:    ApprovalStatusPending,
	}
}

func TestApprovalLifecycle(t *testing.T) {
	now := time.Now()

	t.Run("pending approves with quota and window", func(t *testing.T) {
		a := pendingApproval()
		until := now.Add(30 * 24 * time.Hour)
		require.NoError(t, a.Approve(2, 150000, nil, &until, "medical-director", now))
		assert.Equal(t, ApprovalStatusApproved, a.Status)
		assert.Equal(t, 2, a.QuantityApproved)
		assert.True(t, a.IsUsable(now))
	})

	t.Run("approve is only valid from pending", func(t *testing.T) {
		a := pendingApproval()
		require.NoError(t, a.Reject("not indicated", "medical-director", now))
		assert.ErrorIs(t, a.Approve(1, 0, nil, nil, "x", now), ErrApprovalNotPending)
	})

	t.Run("reject is only valid from pending", func(t *testing.T) {
		a := pendingApproval()
		require.NoError(t, a.Approve(1, 0, nil, nil, "x", now))
		assert.ErrorIs(t, a.Reject("too late", "x", now), ErrApprovalNotPending)
	})
}

func TestApprovalUse(t *testing.T) {
	now := time.Now()

	t.Run("use consumes quota and lands on used at the cap", func(t *testing.T) {
		a := pendingApproval()
		require.NoError(t, a.Approve(2, 0, nil, nil, "x", now))

		require.NoError(t, a.Use("inv-1", 1, now))
		assert.Equal(t, ApprovalStatusApproved, a.Status)
		assert.Equal(t, 1, a.UsedCount)

		require.NoError(t, a.Use("inv-2", 1, now))
		assert.Equal(t, ApprovalStatusUsed, a.Status)
		assert.False(t, a.IsUsable(now))
	})

	t.Run("use beyond quota is rejected", func(t *testing.T) {
		a := pendingApproval()
		require.NoError(t, a.Approve(1, 0, nil, nil, "x", now))
		assert.ErrorIs(t, a.Use("inv-1", 2, now), ErrApprovalQuotaReached)
	})

	t.Run("use before validity window starts", func(t *testing.T) {
		a := pendingApproval()
		from := now.Add(24 * time.Hour)
		require.NoError(t, a.Approve(1, 0, &from, nil, "x", now))
		assert.ErrorIs(t, a.Use("inv-1", 1, now), ErrApprovalNotStarted)
		assert.False(t, a.IsUsable(now))
	})

	t.Run("use after expiry", func(t *testing.T) {
		a := pendingApproval()
		until := now.Add(-time.Hour)
		require.NoError(t, a.Approve(1, 0, nil, &until, "x", now.Add(-2*time.Hour)))
		assert.Equal(t, ApprovalStatusExpired, a.EffectiveStatus(now))
		assert.ErrorIs(t, a.Use("inv-1", 1, now), ErrApprovalExpired)
	})

	t.Run("use of a pending approval", func(t *testing.T) {
		a := pendingApproval()
		assert.ErrorIs(t, a.Use("inv-1", 1, now), ErrApprovalNotApproved)
	})

	t.Run("zero quantity defaults to one", func(t *testing.T) {
		a := pendingApproval()
		require.NoError(t, a.Approve(1, 0, nil, nil, "x", now))
		require.NoError(t, a.Use("inv-1", 0, now))
		assert.Equal(t, 1, a.UsedCount)
		assert.Equal(t, ApprovalStatusUsed, a.Status)
	})
}

func TestApprovalReleaseUse(t *testing.T) {
	now := time.Now()

	t.Run("release drops a fully used approval back to approved", func(t *testing.T) {
		a := pendingApproval()
		require.NoError(t, a.Approve(1, 0, nil, nil, "x", now))
		require.NoError(t, a.Use("inv-1", 1, now))
		require.Equal(t, ApprovalStatusUsed, a.Status)

		a.ReleaseUse("inv-1", 1, now)
		assert.Equal(t, ApprovalStatusApproved, a.Status)
		assert.Equal(t, 0, a.UsedCount)
		assert.Empty(t, a.Uses)
		assert.True(t, a.IsUsable(now))
	})

	t.Run("release removes only the matching use entry", func(t *testing.T) {
		a := pendingApproval()
		require.NoError(t, a.Approve(3, 0, nil, nil, "x", now))
		require.NoError(t, a.Use("inv-1", 1, now))
		require.NoError(t, a.Use("inv-2", 1, now))

		a.ReleaseUse("inv-1", 1, now)
		assert.Equal(t, 1, a.UsedCount)
		require.Len(t, a.Uses, 1)
		assert.Equal(t, "inv-2", a.Uses[0].InvoiceID)
	})

	t.Run("release never drives the count negative", func(t *testing.T) {
		a := pendingApproval()
		require.NoError(t, a.Approve(2, 0, nil, nil, "x", now))
		a.ReleaseUse("inv-1", 5, now)
		assert.Equal(t, 0, a.UsedCount)
	})
}

func TestApprovalCancelAdministratively(t *testing.T) {
	now := time.Now()

	t.Run("cancel from pending and approved", func(t *testing.T) {
		for _, setup := range []func(*Approval){
			func(a *Approval) {},
			func(a *Approval) { _ = a.Approve(1, 0, nil, nil, "x", now) },
		} {
			a := pendingApproval()
			setup(a)
			require.NoError(t, a.CancelAdministratively("admin", now))
			assert.Equal(t, ApprovalStatusCancelled, a.Status)
		}
	})

	t.Run("terminal states refuse cancellation", func(t *testing.T) {
		rejected := pendingApproval()
		require.NoError(t, rejected.Reject("no", "x", now))
		assert.ErrorIs(t, rejected.CancelAdministratively("admin", now), ErrApprovalTerminal)

		used := pendingApproval()
		require.NoError(t, used.Approve(1, 0, nil, nil, "x", now))
		require.NoError(t, used.Use("inv-1", 1, now))
		assert.ErrorIs(t, used.CancelAdministratively("admin", now), ErrApprovalTerminal)

		cancelled := pendingApproval()
		require.NoError(t, cancelled.CancelAdministratively("admin", now))
		assert.ErrorIs(t, cancelled.CancelAdministratively("admin", now), ErrApprovalTerminal)
	})
}

func TestApprovalUnlimitedQuota(t *testing.T) {
	// QuantityApproved of zero means no quota cap.
	now := time.Now()
	a := pendingApproval()
	require.NoError(t, a.Approve(0, 0, nil, nil, "x", now))
	for i := 0; i < 5; i++ {
		require.NoError(t, a.Use("inv-1", 1, now))
	}
	assert.Equal(t, ApprovalStatusApproved, a.Status)
	assert.True(t, a.IsUsable(now))
}
