package usecases

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MyCarrier-DevOps/build-prep/internal/domain"
	"github.com/MyCarrier-DevOps/build-prep/internal/domain/mocks"
)

const (
	testRemote   = "git@github.com:alice/numenta-apps.git"
	testHome     = "/ws/products"
	testTipHash  = "1111111111111111111111111111111111111111"
	testPinHash  = "2222222222222222222222222222222222222222"
	testOtherSHA = "3333333333333333333333333333333333333333"
)

// mockLogger is a no-op logger for tests.
type mockLogger struct{}

func (m *mockLogger) Info(_ context.Context, _ string, _ map[string]interface{})           {}
func (m *mockLogger) Debug(_ context.Context, _ string, _ map[string]interface{})          {}
func (m *mockLogger) Warn(_ context.Context, _ string, _ map[string]interface{})           {}
func (m *mockLogger) Error(_ context.Context, _ string, _ error, _ map[string]interface{}) {}

func testEnv() domain.Environment {
	return domain.Environment{
		domain.EnvBuildWorkspace: "/ws",
		domain.EnvRepositoryHome: testHome,
	}
}

type syncMocks struct {
	fs  afero.Fs
	scm *mocks.MockSourceControl
}

func TestSynchronize(t *testing.T) {
	errWrong := errors.New("wrong")

	tests := []struct {
		name      string
		cfg       domain.PipelineConfig
		existing  bool
		setup     func(m syncMocks)
		want      *domain.ResolvedRevision
		wantOp    domain.SyncOp
		wantErrIs error
	}{
		{
			name: "absent working copy is cloned and reset to branch tip",
			cfg:  domain.PipelineConfig{RemoteURL: testRemote, Branch: "dev"},
			setup: func(m syncMocks) {
				gomock.InOrder(
					m.scm.EXPECT().Clone(gomock.Any(), testRemote, testHome).Return(nil),
					m.scm.EXPECT().ResolveBranchTip(gomock.Any(), testRemote, "dev").Return(testTipHash, nil),
					m.scm.EXPECT().ResetToRevision(gomock.Any(), testHome, testRemote, testTipHash).Return(testTipHash, nil),
				)
			},
			want: &domain.ResolvedRevision{
				Revision:           testTipHash,
				WorkingCopyPath:    testHome,
				FreshClone:         true,
				ResolvedFromBranch: true,
			},
		},
		{
			name:     "existing working copy is reused",
			cfg:      domain.PipelineConfig{RemoteURL: testRemote, Branch: "dev", TargetRevision: testPinHash},
			existing: true,
			setup: func(m syncMocks) {
				m.scm.EXPECT().ResetToRevision(gomock.Any(), testHome, testRemote, testPinHash).Return(testPinHash, nil)
			},
			want: &domain.ResolvedRevision{
				Revision:        testPinHash,
				WorkingCopyPath: testHome,
			},
		},
		{
			name:     "abbreviated target matches full head",
			cfg:      domain.PipelineConfig{RemoteURL: testRemote, Branch: "dev", TargetRevision: "2222222"},
			existing: true,
			setup: func(m syncMocks) {
				m.scm.EXPECT().ResetToRevision(gomock.Any(), testHome, testRemote, "2222222").Return(testPinHash, nil)
			},
			want: &domain.ResolvedRevision{
				Revision:        testPinHash,
				WorkingCopyPath: testHome,
			},
		},
		{
			name:     "symbolic target is accepted as resolved",
			cfg:      domain.PipelineConfig{RemoteURL: testRemote, Branch: "dev", TargetRevision: "HEAD"},
			existing: true,
			setup: func(m syncMocks) {
				m.scm.EXPECT().ResetToRevision(gomock.Any(), testHome, testRemote, "HEAD").Return(testPinHash, nil)
			},
			want: &domain.ResolvedRevision{
				Revision:        testPinHash,
				WorkingCopyPath: testHome,
			},
		},
		{
			name: "clone failure",
			cfg:  domain.PipelineConfig{RemoteURL: testRemote, Branch: "dev"},
			setup: func(m syncMocks) {
				m.scm.EXPECT().Clone(gomock.Any(), testRemote, testHome).Return(errWrong)
			},
			wantOp:    domain.OpClone,
			wantErrIs: errWrong,
		},
		{
			name:     "unknown branch",
			cfg:      domain.PipelineConfig{RemoteURL: testRemote, Branch: "nope"},
			existing: true,
			setup: func(m syncMocks) {
				m.scm.EXPECT().ResolveBranchTip(gomock.Any(), testRemote, "nope").
					Return("", domain.ErrBranchNotFound)
			},
			wantOp:    domain.OpResolveBranch,
			wantErrIs: domain.ErrBranchNotFound,
		},
		{
			name:     "reset failure",
			cfg:      domain.PipelineConfig{RemoteURL: testRemote, Branch: "dev", TargetRevision: testPinHash},
			existing: true,
			setup: func(m syncMocks) {
				m.scm.EXPECT().ResetToRevision(gomock.Any(), testHome, testRemote, testPinHash).
					Return("", domain.ErrResetFailed)
			},
			wantOp:    domain.OpReset,
			wantErrIs: domain.ErrResetFailed,
		},
		{
			name:     "head does not match pinned hash",
			cfg:      domain.PipelineConfig{RemoteURL: testRemote, Branch: "dev", TargetRevision: testPinHash},
			existing: true,
			setup: func(m syncMocks) {
				m.scm.EXPECT().ResetToRevision(gomock.Any(), testHome, testRemote, testPinHash).Return(testOtherSHA, nil)
			},
			wantOp:    domain.OpReset,
			wantErrIs: domain.ErrRevisionMismatch,
		},
		{
			name:     "head does not match branch tip",
			cfg:      domain.PipelineConfig{RemoteURL: testRemote, Branch: "dev"},
			existing: true,
			setup: func(m syncMocks) {
				m.scm.EXPECT().ResolveBranchTip(gomock.Any(), testRemote, "dev").Return(testTipHash, nil)
				m.scm.EXPECT().ResetToRevision(gomock.Any(), testHome, testRemote, testTipHash).Return(testOtherSHA, nil)
			},
			wantOp:    domain.OpReset,
			wantErrIs: domain.ErrRevisionMismatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			m := syncMocks{fs: afero.NewMemMapFs(), scm: mocks.NewMockSourceControl(ctrl)}
			if tt.existing {
				require.NoError(t, m.fs.MkdirAll(testHome, 0o755))
			}
			tt.setup(m)

			sync := NewRepositorySynchronizer(m.scm, m.fs, &mockLogger{})
			cfg := tt.cfg
			got, err := sync.Synchronize(context.Background(), &cfg, testEnv())

			if tt.wantErrIs != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErrIs)
				var syncErr *domain.SyncError
				require.ErrorAs(t, err, &syncErr)
				assert.Equal(t, tt.wantOp, syncErr.Op)
				assert.Equal(t, testHome, syncErr.Path)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSynchronize_MissingRepositoryHome(t *testing.T) {
	ctrl := gomock.NewController(t)
	scm := mocks.NewMockSourceControl(ctrl)

	sync := NewRepositorySynchronizer(scm, afero.NewMemMapFs(), &mockLogger{})
	_, err := sync.Synchronize(context.Background(), &domain.PipelineConfig{}, domain.Environment{})

	require.Error(t, err)
	var syncErr *domain.SyncError
	require.ErrorAs(t, err, &syncErr)
	assert.Equal(t, domain.OpInspect, syncErr.Op)
}

func TestSynchronize_Idempotent(t *testing.T) {
	ctrl := gomock.NewController(t)
	scm := mocks.NewMockSourceControl(ctrl)
	fs := afero.NewMemMapFs()

	// Only the first run clones; the second finds the working copy.
	scm.EXPECT().Clone(gomock.Any(), testRemote, testHome).
		DoAndReturn(func(_ context.Context, _, path string) error {
			return fs.MkdirAll(path, 0o755)
		}).Times(1)
	scm.EXPECT().ResetToRevision(gomock.Any(), testHome, testRemote, testPinHash).
		Return(testPinHash, nil).Times(2)

	sync := NewRepositorySynchronizer(scm, fs, &mockLogger{})
	cfg := &domain.PipelineConfig{RemoteURL: testRemote, Branch: "dev", TargetRevision: testPinHash}

	first, err := sync.Synchronize(context.Background(), cfg, testEnv())
	require.NoError(t, err)
	second, err := sync.Synchronize(context.Background(), cfg, testEnv())
	require.NoError(t, err)

	assert.True(t, first.FreshClone)
	assert.False(t, second.FreshClone)
	assert.Equal(t, first.Revision, second.Revision)
	assert.Equal(t, first.WorkingCopyPath, second.WorkingCopyPath)
}

func TestSynchronize_BranchRoundTrip(t *testing.T) {
	ctrl := gomock.NewController(t)
	scm := mocks.NewMockSourceControl(ctrl)
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll(testHome, 0o755))

	scm.EXPECT().ResolveBranchTip(gomock.Any(), testRemote, "dev").Return(testTipHash, nil)
	scm.EXPECT().ResetToRevision(gomock.Any(), testHome, testRemote, testTipHash).Return(testTipHash, nil).Times(2)

	sync := NewRepositorySynchronizer(scm, fs, &mockLogger{})
	cfg := &domain.PipelineConfig{RemoteURL: testRemote, Branch: "dev"}

	fromBranch, err := sync.Synchronize(context.Background(), cfg, testEnv())
	require.NoError(t, err)

	pinned, err := cfg.PinRevision(fromBranch.Revision)
	require.NoError(t, err)
	fromPin, err := sync.Synchronize(context.Background(), pinned, testEnv())
	require.NoError(t, err)

	assert.Equal(t, fromBranch.Revision, fromPin.Revision)
	assert.True(t, fromBranch.ResolvedFromBranch)
	assert.False(t, fromPin.ResolvedFromBranch)
}

func TestIsCommitHash(t *testing.T) {
	assert.True(t, isCommitHash("abcdef1"))
	assert.True(t, isCommitHash(testTipHash))
	assert.True(t, isCommitHash("ABCDEF1234"))
	assert.False(t, isCommitHash("abc"))
	assert.False(t, isCommitHash("HEAD"))
	assert.False(t, isCommitHash("feature-x"))
	assert.False(t, isCommitHash(testTipHash+"0"))
}
