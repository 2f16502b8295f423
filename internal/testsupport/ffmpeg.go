package testsupport

import (
	"fmt"
	"path/filepath"
	"testing"
)

const fakeFFmpegScript = `#!/bin/sh
echo "ffmpeg stub invoked with: $*"
input=""
while [ $# -gt 0 ]; do
  case "$1" in
    -i)
      input="$2"
      shift 2
      ;;
    -map)
      printf 'track %%s from %%s\n' "$2" "$input" > "$3"
      echo "Output: $3 (stream $2)" >&2
      shift 3
      ;;
    *)
      shift
      ;;
  esac
done
if [ ! -f "$input" ]; then
  echo "$input: No such file or directory" >&2
  exit 1
fi
echo "stub finished" >&2
exit %d
`

// FakeFFmpegScript returns the stub ffmpeg source exiting with exitCode.
func FakeFFmpegScript(exitCode int) string {
	return fmt.Sprintf(fakeFFmpegScript, exitCode)
}

// WriteFakeFFmpeg installs an ffmpeg stand-in under dir. Every
// "-map 0:<id> <file>" triple creates <file> in the working directory, then
// the script exits with exitCode. A missing input always exits 1.
func WriteFakeFFmpeg(t testing.TB, dir string, exitCode int) string {
	t.Helper()
	path := filepath.Join(dir, fmt.Sprintf("ffmpeg-exit%d", exitCode))
	writeExecutable(t, path, FakeFFmpegScript(exitCode))
	return path
}

// WriteSleepingTool installs a tool that ignores its arguments and sleeps.
func WriteSleepingTool(t testing.TB, dir string, seconds int) string {
	t.Helper()
	path := filepath.Join(dir, "ffmpeg-sleep")
	writeExecutable(t, path, fmt.Sprintf("#!/bin/sh\necho sleeping\nexec sleep %d\n", seconds))
	return path
}
