package driver

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"
)

// DefaultScreen is the Xvfb screen used for headed browsers.
const DefaultScreen = "1920x1080x24"

const xvfbStartTimeout = 3 * time.Second

var screenSize = regexp.MustCompile(`^\d+x\d+(?:x\d+)?$`)

// FrameBuffer is an Xvfb server and the X authority file that grants access
// to it.
type FrameBuffer struct {
	display  string
	authFile string
	cmd      *exec.Cmd
}

// StartFrameBuffer starts Xvfb before the driver and points the driver at
// it. The Service owns the frame buffer and stops it with the driver.
func StartFrameBuffer(screen string) ServiceOption {
	return func(s *Service) error {
		if s.xvfb != nil {
			return errors.New("frame buffer already started")
		}
		fb, err := NewFrameBuffer(screen)
		if err != nil {
			return fmt.Errorf("starting frame buffer: %w", err)
		}
		s.xvfb = fb
		return nil
	}
}

// NewFrameBuffer starts Xvfb on a display of its own choosing and authorizes
// it with xauth. screen is "WxH" or "WxHxD"; empty keeps the Xvfb default.
func NewFrameBuffer(screen string) (*FrameBuffer, error) {
	args := []string{"-displayfd", "3", "-nolisten", "tcp"}
	if screen != "" {
		if !screenSize.MatchString(screen) {
			return nil, fmt.Errorf("%w: screen size %q is not WxH or WxHxD", ErrInvalidArgument, screen)
		}
		args = append(args, "-screen", "0", screen)
	}

	auth, err := os.CreateTemp("", "webspec-xauth")
	if err != nil {
		return nil, err
	}
	auth.Close()
	fb := &FrameBuffer{authFile: auth.Name()}

	pr, pw, err := os.Pipe()
	if err != nil {
		os.Remove(fb.authFile)
		return nil, err
	}
	defer pr.Close()

	// Xvfb writes the display number to fd 3.
	fb.cmd = newExecCommand("Xvfb", args...)
	fb.cmd.ExtraFiles = []*os.File{pw}
	withEnv(fb.cmd, "XAUTHORITY="+fb.authFile)
	err = fb.cmd.Start()
	pw.Close()
	if err != nil {
		os.Remove(fb.authFile)
		return nil, fmt.Errorf("starting Xvfb: %w", err)
	}

	display := make(chan string, 1)
	go func() {
		sc := bufio.NewScanner(pr)
		if sc.Scan() {
			display <- strings.TrimSpace(sc.Text())
		}
		close(display)
	}()
	select {
	case d := <-display:
		if _, err := strconv.Atoi(d); err != nil {
			fb.Stop()
			return nil, fmt.Errorf("%w: Xvfb reported display %q", ErrRemoteProtocol, d)
		}
		fb.display = d
	case <-time.After(xvfbStartTimeout):
		fb.Stop()
		return nil, fmt.Errorf("%w: Xvfb reported no display within %v", ErrTimeout, xvfbStartTimeout)
	}

	xauth := newExecCommand("xauth", "generate", ":"+fb.display, ".", "trusted")
	withEnv(xauth, "XAUTHORITY="+fb.authFile)
	if out, err := xauth.CombinedOutput(); err != nil {
		fb.Stop()
		return nil, fmt.Errorf("xauth: %v: %s", err, out)
	}
	glog.V(1).Infof("Xvfb (pid %d) serving display :%s", fb.cmd.Process.Pid, fb.display)
	return fb, nil
}

// Env returns the variables that direct X clients to the frame buffer.
func (f *FrameBuffer) Env() []string {
	return []string{"DISPLAY=:" + f.display, "XAUTHORITY=" + f.authFile}
}

// Stop kills Xvfb and removes its authority file.
func (f *FrameBuffer) Stop() error {
	defer os.Remove(f.authFile)
	if err := f.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("killing Xvfb (pid %d): %w", f.cmd.Process.Pid, err)
	}
	// A killed Xvfb reports its signal as an exit error.
	var exitErr *exec.ExitError
	if err := f.cmd.Wait(); err != nil && !errors.As(err, &exitErr) {
		return err
	}
	return nil
}

// withEnv adds kv to the environment of cmd, starting from the current
// process environment when cmd has none of its own.
func withEnv(cmd *exec.Cmd, kv ...string) {
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	cmd.Env = append(cmd.Env, kv...)
}
