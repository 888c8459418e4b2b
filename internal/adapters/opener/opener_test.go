package opener

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanOpenQueriesXDGMime(t *testing.T) {
	t.Parallel()

	o := &Opener{
		goos: "linux",
		run: func(_ context.Context, name string, args ...string) (string, error) {
			assert.Equal(t, "xdg-mime", name)
			if args[2] == "x-scheme-handler/argentx" {
				return "argent.desktop\n", nil
			}
			return "", nil
		},
	}

	assert.True(t, o.CanOpen(context.Background(), "argentx"))
	assert.True(t, o.CanOpen(context.Background(), "argentx://"))
	assert.False(t, o.CanOpen(context.Background(), "braavos"))
	assert.True(t, o.CanOpen(context.Background(), "https"))
	assert.False(t, o.CanOpen(context.Background(), ""))
}

func TestCanOpenQueriesWindowsRegistry(t *testing.T) {
	t.Parallel()

	var queried []string
	o := &Opener{
		goos: "windows",
		run: func(_ context.Context, name string, args ...string) (string, error) {
			assert.Equal(t, "reg", name)
			require.Len(t, args, 4)
			queried = append(queried, args[1])
			if args[1] == `HKCR\braavos` {
				return "    URL Protocol    REG_SZ\n", nil
			}
			return "", errors.New("exit status 1")
		},
	}

	assert.True(t, o.CanOpen(context.Background(), "braavos://"))
	assert.False(t, o.CanOpen(context.Background(), "keplrwallet"))
	assert.Equal(t, []string{`HKCR\braavos`, `HKCR\keplrwallet`}, queried)
}

func TestOpenUsesPlatformCommand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		goos string
		want string
	}{
		{goos: "linux", want: "xdg-open"},
		{goos: "darwin", want: "open"},
		{goos: "windows", want: "rundll32"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.goos, func(t *testing.T) {
			t.Parallel()

			var got string
			o := &Opener{
				goos: tc.goos,
				run: func(_ context.Context, name string, args ...string) (string, error) {
					got = name
					assert.Equal(t, "argentx://connect?cid=1", args[len(args)-1])
					return "", nil
				},
			}
			require.NoError(t, o.Open(context.Background(), "argentx://connect?cid=1"))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestOpenReportsMissingHandler(t *testing.T) {
	t.Parallel()

	o := &Opener{
		goos: "linux",
		run: func(context.Context, string, ...string) (string, error) {
			return "", errors.New("exit status 4")
		},
	}

	err := o.Open(context.Background(), "braavos://wc?uri=x")
	require.ErrorIs(t, err, ErrNoHandler)
	assert.ErrorContains(t, err, "braavos")
}
