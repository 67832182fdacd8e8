package driver

import (
	"errors"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "localhost:0")
	if err != nil {
		t.Fatalf("net.Listen() returned error: %v", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestServiceOptionsRejectInvalidValues(t *testing.T) {
	s := &Service{}
	if err := StartupTimeout(0)(s); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("StartupTimeout(0) = %v, want ErrInvalidArgument", err)
	}
	if err := StartupTimeout(-time.Second)(s); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("StartupTimeout(-1s) = %v, want ErrInvalidArgument", err)
	}
	if err := StartFrameBuffer("800x600")(&Service{xvfb: &FrameBuffer{}}); err == nil {
		t.Error("StartFrameBuffer() on a service with a frame buffer returned nil error")
	}
}

func TestNewServiceChrome(t *testing.T) {
	useFakeExecCommand(t)
	port := freePort(t)

	s, err := NewService(Chrome, "chromedriver", port, StartupTimeout(10*time.Second))
	if err != nil {
		t.Fatalf("NewService(chrome) returned error: %v", err)
	}
	if !strings.HasSuffix(s.Addr(), "/wd/hub") {
		t.Errorf("Addr() = %q, want a /wd/hub suffix", s.Addr())
	}
	if pid := s.cmd.Process.Pid; pid <= 0 {
		t.Errorf("driver pid = %d, want a process ID", pid)
	}
	if err := s.Stop(); err != nil {
		t.Fatalf("Stop() returned error: %v", err)
	}
	if !s.Exited() {
		t.Error("Exited() = false after Stop()")
	}
	if err := s.Kill(); err != nil {
		t.Errorf("Kill() after Stop() returned error: %v", err)
	}
}

func TestNewServiceKillTerminatesOwnProcess(t *testing.T) {
	useFakeExecCommand(t)
	s, err := NewService(ChromeHeadless, "chromedriver", freePort(t))
	if err != nil {
		t.Fatalf("NewService(chrome-headless) returned error: %v", err)
	}
	if err := s.Kill(); err != nil {
		t.Fatalf("Kill() returned error: %v", err)
	}
	if !s.Exited() {
		t.Error("Exited() = false after Kill()")
	}
}

func recordExecCommand(t *testing.T) *[][]string {
	t.Helper()
	var calls [][]string
	old := newExecCommand
	newExecCommand = func(name string, args ...string) *exec.Cmd {
		calls = append(calls, append([]string{name}, args...))
		return fakeExecCommand(name, args...)
	}
	t.Cleanup(func() { newExecCommand = old })
	return &calls
}

func TestNewServiceStartupTimeout(t *testing.T) {
	calls := recordExecCommand(t)

	port := freePort(t)
	start := time.Now()
	_, err := NewService(Firefox, "", port, StartupTimeout(300*time.Millisecond))
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("NewService(firefox) = %v, want ErrTimeout", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("NewService(firefox) took %v to give up", elapsed)
	}
	want := [][]string{{"geckodriver", "--port", strconv.Itoa(port)}}
	if diff := cmp.Diff(want, *calls); diff != "" {
		t.Errorf("commands diff (-want +got):\n%s", diff)
	}
}

func TestNewServiceEarlyExit(t *testing.T) {
	calls := recordExecCommand(t)

	port := freePort(t)
	_, err := NewService(InternetExplorer, "", port, StartupTimeout(10*time.Second))
	if !errors.Is(err, ErrRemoteProtocol) {
		t.Fatalf("NewService(ie) = %v, want ErrRemoteProtocol", err)
	}
	want := [][]string{{"IEDriverServer", "/port=" + strconv.Itoa(port)}}
	if diff := cmp.Diff(want, *calls); diff != "" {
		t.Errorf("commands diff (-want +got):\n%s", diff)
	}
}

func TestNewServiceUnknownBrowser(t *testing.T) {
	calls := recordExecCommand(t)
	if _, err := NewService(Browser("safari"), "", 1234); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("NewService(safari) = %v, want ErrInvalidArgument", err)
	}
	if len(*calls) != 0 {
		t.Errorf("NewService(safari) ran %v", *calls)
	}
}

func TestFrameBuffer(t *testing.T) {
	useFakeExecCommand(t)

	tests := []struct {
		desc   string
		screen string
		want   []string
	}{
		{
			desc: "default screen",
			want: []string{"Xvfb", "-displayfd", "3", "-nolisten", "tcp"},
		},
		{
			desc:   "with screen size",
			screen: "1024x768x24",
			want:   []string{"Xvfb", "-displayfd", "3", "-nolisten", "tcp", "-screen", "0", "1024x768x24"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.desc, func(t *testing.T) {
			fb, err := NewFrameBuffer(tc.screen)
			if err != nil {
				t.Fatalf("NewFrameBuffer(%q) returned error: %v", tc.screen, err)
			}
			defer fb.Stop()
			if diff := cmp.Diff(tc.want, fb.cmd.Args[3:]); diff != "" {
				t.Errorf("Xvfb args diff (-want +got):\n%s", diff)
			}
			wantEnv := []string{"DISPLAY=:1", "XAUTHORITY=" + fb.authFile}
			if diff := cmp.Diff(wantEnv, fb.Env()); diff != "" {
				t.Errorf("Env() diff (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFrameBufferInvalidScreen(t *testing.T) {
	calls := recordExecCommand(t)
	for _, size := range []string{"not-a-size", "1024x", "1024x768x", "x768"} {
		if _, err := NewFrameBuffer(size); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("NewFrameBuffer(%q) = %v, want ErrInvalidArgument", size, err)
		}
	}
	if len(*calls) != 0 {
		t.Errorf("invalid screen sizes ran %v", *calls)
	}
}

func TestNewServiceWithFrameBuffer(t *testing.T) {
	useFakeExecCommand(t)

	s, err := NewService(Chrome, "chromedriver", freePort(t), StartFrameBuffer(DefaultScreen))
	if err != nil {
		t.Fatalf("NewService() returned error: %v", err)
	}
	fb := s.xvfb
	if fb == nil {
		t.Fatal("service started no frame buffer")
	}
	env := map[string]bool{}
	for _, kv := range s.cmd.Env {
		env[kv] = true
	}
	for _, kv := range fb.Env() {
		if !env[kv] {
			t.Errorf("driver environment %v lacks %s", s.cmd.Env, kv)
		}
	}
	if err := s.Kill(); err != nil {
		t.Fatalf("Kill() returned error: %v", err)
	}
	if s.xvfb != nil {
		t.Error("frame buffer still attached after Kill()")
	}
	if _, err := os.Stat(fb.authFile); !os.IsNotExist(err) {
		t.Errorf("X authority file %s not removed after Kill(): %v", fb.authFile, err)
	}
}
