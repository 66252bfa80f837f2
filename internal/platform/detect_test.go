package platform

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeArch(t *testing.T) {
	t.Parallel()

	require.Equal(t, "amd64", NormalizeArch("x86_64"))
	require.Equal(t, "arm64", NormalizeArch("aarch64"))
	require.Equal(t, "amd64", NormalizeArch("amd64"))
	require.Equal(t, "riscv64", NormalizeArch("riscv64"))
}

func TestDefaultModelDirFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		goos         string
		home         string
		xdg          string
		localAppData string
		want         string
		wantErr      bool
	}{
		{
			name: "linux respects xdg data home",
			goos: "linux",
			home: "/home/u",
			xdg:  "/custom/data",
			want: filepath.Join("/custom/data", "whisper-api", "models"),
		},
		{
			name: "linux falls back to dot local",
			goos: "linux",
			home: "/home/u",
			want: filepath.Join("/home/u", ".local", "share", "whisper-api", "models"),
		},
		{
			name: "darwin uses application support",
			goos: "darwin",
			home: "/Users/u",
			want: filepath.Join("/Users/u", "Library", "Application Support", "whisper-api", "models"),
		},
		{
			name:         "windows prefers localappdata",
			goos:         "windows",
			home:         `C:\Users\u`,
			localAppData: `C:\Users\u\AppData\Local`,
			want:         filepath.Join(`C:\Users\u\AppData\Local`, "whisper-api", "models"),
		},
		{
			name:    "empty home fails",
			goos:    "linux",
			wantErr: true,
		},
		{
			name:    "unknown os fails",
			goos:    "plan9",
			home:    "/home/u",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := DefaultModelDirFor(tt.goos, tt.home, tt.xdg, tt.localAppData)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestDefaultLogFileFor(t *testing.T) {
	t.Parallel()

	got, err := DefaultLogFileFor("linux", "/home/u", "", "")
	require.NoError(t, err)
	require.Equal(t, filepath.Join("/home/u", ".local", "share", "whisper-api", "whisper.log"), got)
}

func TestResolveModelDirOverride(t *testing.T) {
	t.Parallel()

	got, err := ResolveModelDir("/tmp/models//")
	require.NoError(t, err)
	require.Equal(t, filepath.Clean("/tmp/models"), got)
}
