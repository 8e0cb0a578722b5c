package runner

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/phaserai/schema-migrate/internal/ledger"
	"github.com/phaserai/schema-migrate/internal/registry"
)

// mockLock implements lockReleaser for testing.
type mockLock struct {
	released bool
}

func (m *mockLock) Release(_ context.Context) error {
	m.released = true
	return nil
}

// mockLedger implements LedgerStore in memory.
type mockLedger struct {
	entries     []ledger.Entry
	ensureErr   error
	appliedErr  error
	checksumErr error
}

func newMockLedger() *mockLedger {
	return &mockLedger{}
}

func (m *mockLedger) EnsureSchema(_ context.Context) error {
	return m.ensureErr
}

func (m *mockLedger) AppliedVersions(_ context.Context) (map[string]struct{}, error) {
	if m.appliedErr != nil {
		return nil, m.appliedErr
	}

	versions := make(map[string]struct{}, len(m.entries))
	for _, e := range m.entries {
		versions[e.Version] = struct{}{}
	}

	return versions, nil
}

func (m *mockLedger) Applied(_ context.Context) ([]ledger.Entry, error) {
	if m.appliedErr != nil {
		return nil, m.appliedErr
	}

	return m.entries, nil
}

func (m *mockLedger) StoredChecksum(_ context.Context, version string) (string, error) {
	if m.checksumErr != nil {
		return "", m.checksumErr
	}

	for _, e := range m.entries {
		if e.Version == version {
			return e.Checksum, nil
		}
	}

	return "", ledger.ErrEntryNotFound
}

func (m *mockLedger) Record(_ context.Context, _ ledger.DB, p ledger.RecordParams) error {
	for i, e := range m.entries {
		if e.Version == p.Version {
			m.entries[i].Checksum = p.Checksum
			m.entries[i].ExecutionTimeMs = p.ExecutionTimeMs
			return nil
		}
	}

	m.entries = append(m.entries, ledger.Entry{
		Version:         p.Version,
		AppliedAt:       time.Now(),
		Checksum:        p.Checksum,
		ExecutionTimeMs: p.ExecutionTimeMs,
		Description:     p.Description,
	})

	return nil
}

func (m *mockLedger) Delete(_ context.Context, _ ledger.DB, version string) error {
	for i, e := range m.entries {
		if e.Version == version {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return nil
		}
	}

	return ledger.ErrEntryNotFound
}

func testDef(version, up, down string) registry.Definition {
	return registry.Definition{
		Version:     version,
		Name:        "test_" + version,
		Description: "test " + version,
		UpSQL:       up,
		DownSQL:     down,
		Checksum:    registry.Checksum(up),
	}
}

func threeDefs() []registry.Definition {
	return []registry.Definition{
		testDef("20250101_120000", "CREATE TABLE m1 (id INT);", "DROP TABLE m1;"),
		testDef("20250102_143000", "CREATE TABLE m2 (id INT);", "DROP TABLE m2;"),
		testDef("20250103_091500", "CREATE TABLE m3 (id INT);", "DROP TABLE m3;"),
	}
}

// testRunner builds a Runner with the lock and SQL execution stubbed
// out, so batches run against the in-memory ledger only. failOn makes
// the named version's forward step fail.
func testRunner(ml *mockLedger, defs []registry.Definition, failOn string, opts ...Option) *Runner {
	r := New(nil, ml, defs, opts...)

	r.acquireLock = func(_ context.Context) (lockReleaser, error) {
		return &mockLock{}, nil
	}

	r.applyFn = func(ctx context.Context, d *registry.Definition) error {
		if d.Version == failOn {
			return errors.New("syntax error at or near \"TABEL\"")
		}

		return ml.Record(ctx, nil, ledger.RecordParams{
			Version:     d.Version,
			Checksum:    d.Checksum,
			Description: d.Description,
		})
	}

	r.rollbackFn = func(ctx context.Context, d *registry.Definition) error {
		if d.Version == failOn {
			return errors.New("relation does not exist")
		}

		return ml.Delete(ctx, nil, d.Version)
	}

	return r
}

func TestRun_appliesAllInOrder(t *testing.T) {
	t.Parallel()

	ml := newMockLedger()

	var order []string

	r := testRunner(ml, threeDefs(), "", WithProgressCallback(func(e Event) {
		if e.Phase == PhaseApplied {
			order = append(order, e.Definition.Version)
		}
	}))

	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 3, result.AppliedCount)
	assert.Equal(t, []string{"20250101_120000", "20250102_143000", "20250103_091500"}, order)
	assert.Len(t, ml.entries, 3)
}

func TestRun_secondRun_isIdempotent(t *testing.T) {
	t.Parallel()

	ml := newMockLedger()
	r := testRunner(ml, threeDefs(), "")

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 0, result.AppliedCount)
	assert.Equal(t, "No pending migrations", result.Message)
	assert.Len(t, ml.entries, 3)
}

func TestRun_stopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	ml := newMockLedger()
	r := testRunner(ml, threeDefs(), "20250102_143000")

	result, err := r.Run(context.Background())
	require.Error(t, err)

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "20250102_143000")
	assert.Equal(t, 1, result.AppliedCount)
	require.Len(t, result.Applied, 1)
	assert.Equal(t, "20250101_120000", result.Applied[0].Version)

	// M1 committed, M2 and M3 absent.
	require.Len(t, ml.entries, 1)
	assert.Equal(t, "20250101_120000", ml.entries[0].Version)
}

func TestRun_targetVersion_boundsBatch(t *testing.T) {
	t.Parallel()

	ml := newMockLedger()
	r := testRunner(ml, threeDefs(), "", WithTarget("20250102_143000"))

	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.AppliedCount)
	require.Len(t, ml.entries, 2)
	assert.Equal(t, "20250101_120000", ml.entries[0].Version)
	assert.Equal(t, "20250102_143000", ml.entries[1].Version)
}

func TestRun_dryRun_recordsNothing(t *testing.T) {
	t.Parallel()

	ml := newMockLedger()

	var dryRunEvents int

	r := testRunner(ml, threeDefs(), "",
		WithDryRun(true),
		WithProgressCallback(func(e Event) {
			if e.Phase == PhaseDryRun {
				dryRunEvents++
			}
		}),
	)

	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 0, result.AppliedCount)
	assert.Equal(t, 3, dryRunEvents)
	assert.Empty(t, ml.entries)

	// A subsequent real run still sees everything as pending.
	real := testRunner(ml, threeDefs(), "")

	realResult, err := real.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, realResult.AppliedCount)
}

func TestRun_checksumDrift_failsBeforeAnySQL(t *testing.T) {
	t.Parallel()

	defs := threeDefs()
	ml := newMockLedger()
	ml.entries = []ledger.Entry{{
		Version:  defs[0].Version,
		Checksum: "deadbeef", // edited after it shipped
	}}

	applyCalls := 0
	r := testRunner(ml, defs, "")
	r.applyFn = func(_ context.Context, _ *registry.Definition) error {
		applyCalls++
		return nil
	}

	result, err := r.Run(context.Background())
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrChecksumDrift)
	assert.False(t, result.Success)
	assert.Zero(t, applyCalls)
}

func TestRun_lockNotAcquired_failsBeforeBatch(t *testing.T) {
	t.Parallel()

	ml := newMockLedger()
	r := testRunner(ml, threeDefs(), "")
	r.acquireLock = func(_ context.Context) (lockReleaser, error) {
		return nil, errors.New("lock held by another process")
	}

	result, err := r.Run(context.Background())
	require.Error(t, err)

	assert.False(t, result.Success)
	assert.Empty(t, ml.entries)
}

func TestRun_releasesLockOnFailure(t *testing.T) {
	t.Parallel()

	ml := newMockLedger()
	lock := &mockLock{}
	r := testRunner(ml, threeDefs(), "20250101_120000")
	r.acquireLock = func(_ context.Context) (lockReleaser, error) {
		return lock, nil
	}

	_, err := r.Run(context.Background())
	require.Error(t, err)
	assert.True(t, lock.released)
}

func TestDown_defaultStep_reversesMostRecent(t *testing.T) {
	t.Parallel()

	ml := newMockLedger()
	r := testRunner(ml, threeDefs(), "")

	_, err := r.Run(context.Background())
	require.NoError(t, err)

	result, err := testRunner(ml, threeDefs(), "").Down(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, 1, result.AppliedCount)
	assert.Equal(t, "20250103_091500", result.Applied[0].Version)
	require.Len(t, ml.entries, 2)
}

func TestDown_target_reversesEverythingAbove(t *testing.T) {
	t.Parallel()

	ml := newMockLedger()

	_, err := testRunner(ml, threeDefs(), "").Run(context.Background())
	require.NoError(t, err)

	var order []string

	down := testRunner(ml, threeDefs(), "",
		WithTarget("20250101_120000"),
		WithProgressCallback(func(e Event) {
			if e.Phase == PhaseRolledBack {
				order = append(order, e.Definition.Version)
			}
		}),
	)

	result, err := down.Down(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, result.AppliedCount)
	assert.Equal(t, []string{"20250103_091500", "20250102_143000"}, order, "descending order")
	require.Len(t, ml.entries, 1)
	assert.Equal(t, "20250101_120000", ml.entries[0].Version)
}

func TestDown_missingDownSQL_isFatal(t *testing.T) {
	t.Parallel()

	defs := threeDefs()
	defs[2].DownSQL = ""

	ml := newMockLedger()

	_, err := testRunner(ml, defs, "").Run(context.Background())
	require.NoError(t, err)

	result, err := testRunner(ml, defs, "").Down(context.Background())
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrNoDownMigration)
	assert.False(t, result.Success)
	assert.Len(t, ml.entries, 3, "ledger untouched")
}

func TestDown_versionNotInRegistry_isFatal(t *testing.T) {
	t.Parallel()

	ml := newMockLedger()
	ml.entries = []ledger.Entry{{Version: "20240101_000000", Checksum: "abc"}}

	result, err := testRunner(ml, threeDefs(), "").Down(context.Background())
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrNotInRegistry)
	assert.False(t, result.Success)
}

func TestDown_nothingApplied_isNoop(t *testing.T) {
	t.Parallel()

	ml := newMockLedger()

	result, err := testRunner(ml, threeDefs(), "").Down(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Success)
	assert.Equal(t, "Nothing to roll back", result.Message)
}

func TestStatus_reportsAppliedAndPending(t *testing.T) {
	t.Parallel()

	ml := newMockLedger()

	_, err := testRunner(ml, threeDefs(), "", WithTarget("20250102_143000")).Run(context.Background())
	require.NoError(t, err)

	status, err := testRunner(ml, threeDefs(), "").Status(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, status.TotalDefinitions)
	assert.Equal(t, 2, status.AppliedCount)
	assert.Equal(t, 1, status.PendingCount)
	assert.Equal(t, []string{"20250101_120000", "20250102_143000"}, status.AppliedVersions)
	assert.Equal(t, []string{"20250103_091500"}, status.PendingVersions)
}

func TestStatus_ensureSchemaError_propagates(t *testing.T) {
	t.Parallel()

	ml := newMockLedger()
	ml.ensureErr = errors.New("permission denied")

	_, err := testRunner(ml, threeDefs(), "").Status(context.Background())
	assert.Error(t, err)
}
